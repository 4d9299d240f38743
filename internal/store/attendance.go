package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"qr-attendance-backend/internal/feed"
	"qr-attendance-backend/internal/model"
)

func (s *gormStore) InsertAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to insert attendance for student %d: %w", rec.StudentID, err)
	}
	inserted := *rec
	s.publish(feed.Change{Table: feed.TableAttendance, Op: feed.OpInsert, EventID: rec.EventID, Record: &inserted})
	return nil
}

// LatestOpenAttendance returns the open record with the latest time_in for the
// tuple, or nil. Identical time_in values are broken by the higher id.
func (s *gormStore) LatestOpenAttendance(ctx context.Context, studentID, eventID int64, period model.Period) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND event_id = ? AND time_period = ? AND status = ? AND time_out IS NULL",
			studentID, eventID, period, model.StatusPresent).
		Order("time_in DESC").
		Order("id DESC").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open attendance: %w", err)
	}
	return &rec, nil
}

// CloseAttendance stamps time_out on record id, but only while it is still
// open. It returns nil when another writer closed the record first.
func (s *gormStore) CloseAttendance(ctx context.Context, id int64, at time.Time) (*model.AttendanceRecord, error) {
	var closed *model.AttendanceRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AttendanceRecord{}).
			Where("id = ? AND status = ? AND time_out IS NULL", id, model.StatusPresent).
			Updates(map[string]any{
				"time_out": at,
				"status":   model.StatusLeft,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var rec model.AttendanceRecord
		if err := tx.Take(&rec, id).Error; err != nil {
			return err
		}
		closed = &rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to close attendance %d: %w", id, err)
	}
	if closed != nil {
		updated := *closed
		s.publish(feed.Change{Table: feed.TableAttendance, Op: feed.OpUpdate, EventID: closed.EventID, Record: &updated})
	}
	return closed, nil
}

func (s *gormStore) ListAttendanceByEvent(ctx context.Context, eventID int64) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("time_in").Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list attendance for event %d: %w", eventID, err)
	}
	return records, nil
}

func (s *gormStore) ListAttendance(ctx context.Context) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	return records, nil
}
