package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	"gorm.io/gorm"
)

type Repository interface {
	InsertCycle(ctx context.Context, db *gorm.DB, cycle *Cycle) error
	InsertDetails(ctx context.Context, db *gorm.DB, details []CycleDetail) error

	FindCycleByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Cycle, error)
	// FindActiveCycle returns the cycle whose window contains the given day.
	FindActiveCycle(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, at time.Time) (*Cycle, error)
	FindLatestCycle(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*Cycle, error)
	MaxCycleNumber(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (int, error)
	ListCycles(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]Cycle, error)
	ListCycleNumbers(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]int, error)

	SaveCycle(ctx context.Context, db *gorm.DB, cycle *Cycle) error
	UpdateCycleNumber(ctx context.Context, db *gorm.DB, cycleID snowflake.ID, number int) error

	ListDetails(ctx context.Context, db *gorm.DB, cycleID snowflake.ID) ([]CycleDetail, error)
	SaveDetail(ctx context.Context, db *gorm.DB, detail *CycleDetail) error

	// ListSubscriptionsNeedingRenewal returns active subscriptions with no
	// cycle ending on or after the given day.
	ListSubscriptionsNeedingRenewal(ctx context.Context, db *gorm.DB, day time.Time, limit int) ([]subscriptiondomain.Subscription, error)
	// ListCyclesDueForLateFee returns unescalated cycles with pending
	// balance whose due date passed the grace cutoff, for active
	// subscriptions only.
	ListCyclesDueForLateFee(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Cycle, error)
	// ListCyclesDueForCollection returns billable cycles due inside
	// [from, to) for active subscriptions, ordered by customer name.
	ListCyclesDueForCollection(ctx context.Context, db *gorm.DB, from, to time.Time, limit int) ([]DueCycle, error)
}

// DueCycle is a due cycle joined with its customer, flattened for the
// collection generator's deterministic processing order.
type DueCycle struct {
	CycleID        snowflake.ID    `json:"cycle_id"`
	SubscriptionID snowflake.ID    `json:"subscription_id"`
	CustomerID     snowflake.ID    `json:"customer_id"`
	CustomerName   string          `json:"customer_name"`
	PaymentDueDate time.Time       `json:"payment_due_date"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
}
