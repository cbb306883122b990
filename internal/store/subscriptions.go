package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"machine-downtime-backend/internal/model"
)

// UpsertSubscription stores sub and replaces the set of machines it follows.
// Unknown codes are ignored.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription, codes []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit("Machines").Create(sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		machines := []*model.Machine{}
		if len(codes) > 0 {
			if err := tx.Where("code IN ?", codes).Find(&machines).Error; err != nil {
				return fmt.Errorf("failed to load subscribed machines: %w", err)
			}
		}

		if err := tx.Model(sub).Association("Machines").Replace(machines); err != nil {
			return fmt.Errorf("failed to replace subscribed machines: %w", err)
		}
		sub.Machines = machines
		return nil
	})
}

// GetSubscription loads a subscription with the machines it follows.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).
		Preload("Machines").
		First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// DeleteSubscription removes a subscription and its machine links.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).
		Select("Machines").
		Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}
