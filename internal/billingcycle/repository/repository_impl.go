package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() billingcycledomain.Repository {
	return &repo{}
}

func (r *repo) InsertCycle(ctx context.Context, db *gorm.DB, cycle *billingcycledomain.Cycle) error {
	return db.WithContext(ctx).Create(cycle).Error
}

func (r *repo) InsertDetails(ctx context.Context, db *gorm.DB, details []billingcycledomain.CycleDetail) error {
	if len(details) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&details).Error
}

func (r *repo) FindCycleByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingcycledomain.Cycle, error) {
	var cycle billingcycledomain.Cycle
	err := db.WithContext(ctx).First(&cycle, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billingcycledomain.ErrNotFound
		}
		return nil, err
	}
	return &cycle, nil
}

func (r *repo) FindActiveCycle(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, at time.Time) (*billingcycledomain.Cycle, error) {
	var cycle billingcycledomain.Cycle
	err := db.WithContext(ctx).
		Where("subscription_id = ? AND cycle_start <= ? AND cycle_end >= ?", subscriptionID, at, at).
		Order("cycle_number DESC").
		First(&cycle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cycle, nil
}

func (r *repo) FindLatestCycle(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*billingcycledomain.Cycle, error) {
	var cycle billingcycledomain.Cycle
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("cycle_number DESC").
		First(&cycle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cycle, nil
}

func (r *repo) MaxCycleNumber(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (int, error) {
	var max *int
	err := db.WithContext(ctx).
		Model(&billingcycledomain.Cycle{}).
		Where("subscription_id = ?", subscriptionID).
		Select("MAX(cycle_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *repo) ListCycles(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]billingcycledomain.Cycle, error) {
	var cycles []billingcycledomain.Cycle
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("cycle_number ASC").
		Find(&cycles).Error
	return cycles, err
}

func (r *repo) ListCycleNumbers(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]int, error) {
	var numbers []int
	err := db.WithContext(ctx).
		Model(&billingcycledomain.Cycle{}).
		Where("subscription_id = ?", subscriptionID).
		Order("cycle_number ASC").
		Pluck("cycle_number", &numbers).Error
	return numbers, err
}

func (r *repo) SaveCycle(ctx context.Context, db *gorm.DB, cycle *billingcycledomain.Cycle) error {
	cycle.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(cycle).Error
}

func (r *repo) UpdateCycleNumber(ctx context.Context, db *gorm.DB, cycleID snowflake.ID, number int) error {
	return db.WithContext(ctx).
		Model(&billingcycledomain.Cycle{}).
		Where("id = ?", cycleID).
		Updates(map[string]any{
			"cycle_number": number,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *repo) ListDetails(ctx context.Context, db *gorm.DB, cycleID snowflake.ID) ([]billingcycledomain.CycleDetail, error) {
	var details []billingcycledomain.CycleDetail
	err := db.WithContext(ctx).
		Where("cycle_id = ?", cycleID).
		Order("product_id ASC").
		Find(&details).Error
	return details, err
}

func (r *repo) SaveDetail(ctx context.Context, db *gorm.DB, detail *billingcycledomain.CycleDetail) error {
	detail.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(detail).Error
}

func (r *repo) ListSubscriptionsNeedingRenewal(ctx context.Context, db *gorm.DB, day time.Time, limit int) ([]subscriptiondomain.Subscription, error) {
	query := `SELECT s.*
		 FROM subscriptions s
		 WHERE s.status = ?
		   AND NOT EXISTS (
			SELECT 1 FROM cycles c
			WHERE c.subscription_id = s.id AND c.cycle_end >= ?
		   )
		 ORDER BY s.id`
	args := []any{subscriptiondomain.SubscriptionStatusActive, day}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var subscriptions []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(query, args...).Scan(&subscriptions).Error
	return subscriptions, err
}

func (r *repo) ListCyclesDueForLateFee(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]billingcycledomain.Cycle, error) {
	query := `SELECT c.*
		 FROM cycles c
		 JOIN subscriptions s ON s.id = c.subscription_id
		 WHERE c.payment_due_date <= ?
		   AND c.late_fee_applied = ?
		   AND c.pending_balance > 0
		   AND s.status = ?
		 ORDER BY c.payment_due_date ASC, c.id ASC`
	args := []any{cutoff, false, subscriptiondomain.SubscriptionStatusActive}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var cycles []billingcycledomain.Cycle
	err := db.WithContext(ctx).Raw(query, args...).Scan(&cycles).Error
	return cycles, err
}

func (r *repo) ListCyclesDueForCollection(ctx context.Context, db *gorm.DB, from, to time.Time, limit int) ([]billingcycledomain.DueCycle, error) {
	query := `SELECT c.id AS cycle_id,
		        c.subscription_id,
		        s.customer_id,
		        cu.name AS customer_name,
		        c.payment_due_date,
		        c.pending_balance
		 FROM cycles c
		 JOIN subscriptions s ON s.id = c.subscription_id
		 JOIN customers cu ON cu.id = s.customer_id
		 WHERE c.payment_due_date >= ? AND c.payment_due_date < ?
		   AND c.pending_balance > 0
		   AND s.status = ?
		 ORDER BY cu.name ASC, c.id ASC`
	args := []any{from, to, subscriptiondomain.SubscriptionStatusActive}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var due []billingcycledomain.DueCycle
	err := db.WithContext(ctx).Raw(query, args...).Scan(&due).Error
	return due, err
}
