package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"qr-attendance-backend/internal/model"
)

// UpsertSubscription creates or replaces a push subscription and the set of
// events it follows.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription, eventIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error; err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}

		var events []model.Event
		if len(eventIDs) > 0 {
			if err := tx.Find(&events, eventIDs).Error; err != nil {
				return fmt.Errorf("failed to load subscribed events: %w", err)
			}
		}
		if err := tx.Model(sub).Association("Events").Replace(&events); err != nil {
			return fmt.Errorf("failed to replace subscribed events: %w", err)
		}
		return nil
	})
}

// SubscribedEvents returns the ids of the events endpoint follows.
func (s *gormStore) SubscribedEvents(ctx context.Context, endpoint string) ([]int64, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Events").Take(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	ids := make([]int64, len(sub.Events))
	for i, e := range sub.Events {
		ids[i] = e.ID
	}
	return ids, nil
}

func (s *gormStore) SubscriptionsForEvent(ctx context.Context, eventID int64) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_event_mapping sem ON sem.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sem.event_id = ?", eventID).
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for event %d: %w", eventID, err)
	}
	return subscriptions, nil
}

// DeleteSubscription removes a subscription and its event mappings.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM subscription_event_mapping WHERE push_subscription_endpoint = ?", endpoint).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	})
}
