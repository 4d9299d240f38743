package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"qr-attendance-backend/internal/model"
)

func (s *gormStore) IssuePin(ctx context.Context, pin *model.DailyPin) error {
	if err := s.db.WithContext(ctx).Create(pin).Error; err != nil {
		return fmt.Errorf("failed to issue pin for %s: %w", pin.Email, err)
	}
	return nil
}

// ValidatePin reports whether a PIN issued to email for role is valid on date.
func (s *gormStore) ValidatePin(ctx context.Context, email, pin, role, date string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.DailyPin{}).
		Where("email = ? AND pin = ? AND role = ? AND valid_date = ?", email, pin, role, date).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to validate pin: %w", err)
	}
	return count > 0, nil
}

// ResolvePinEvent returns the event bound to the most recently issued
// matching PIN, or nil when the PIN carries no binding.
func (s *gormStore) ResolvePinEvent(ctx context.Context, pin, role, date string) (*int64, error) {
	var p model.DailyPin
	err := s.db.WithContext(ctx).
		Where("pin = ? AND role = ? AND valid_date = ? AND event_id IS NOT NULL", pin, role, date).
		Order("id DESC").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pin event: %w", err)
	}
	return p.EventID, nil
}
