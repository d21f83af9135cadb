package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).First(&subscription, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, subscriptiondomain.ErrNotFound
		}
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status subscriptiondomain.SubscriptionStatus) ([]subscriptiondomain.Subscription, error) {
	var subscriptions []subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Find(&subscriptions).Error
	return subscriptions, err
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status subscriptiondomain.SubscriptionStatus) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if status == subscriptiondomain.SubscriptionStatusCancelled {
		updates["cancelled_at"] = time.Now().UTC()
	}
	return db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ?", id).
		Updates(updates).Error
}
