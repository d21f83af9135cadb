package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cobro/pkg/batch"
)

type CreateCycleRequest struct {
	SubscriptionID snowflake.ID
	Start          time.Time
	End            time.Time
	DueDate        time.Time
	// Amount overrides the catalog-derived cycle total when set.
	Amount *decimal.Decimal
}

// QuotaItem is one requested or delivered product quantity.
type QuotaItem struct {
	ProductID snowflake.ID `json:"product_id"`
	Quantity  int          `json:"quantity"`
}

type QuotaValidationItem struct {
	ProductID             snowflake.ID `json:"product_id"`
	Requested             int          `json:"requested"`
	CoveredBySubscription int          `json:"covered_by_subscription"`
	Additional            int          `json:"additional"`
}

type QuotaValidation struct {
	CycleID              snowflake.ID          `json:"cycle_id"`
	Items                []QuotaValidationItem `json:"items"`
	HasAdditionalCharges bool                  `json:"has_additional_charges"`
}

// IntegrityReport describes numbering health for one subscription.
type IntegrityReport struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
	CycleCount     int          `json:"cycle_count"`
	MaxNumber      int          `json:"max_number"`
	Gaps           []int        `json:"gaps,omitempty"`
	Duplicates     []int        `json:"duplicates,omitempty"`
}

func (r IntegrityReport) OK() bool {
	return len(r.Gaps) == 0 && len(r.Duplicates) == 0
}

type Service interface {
	// NextCycleNumber returns 1 when no cycle exists, else max+1.
	NextCycleNumber(ctx context.Context, subscriptionID snowflake.ID) (int, error)
	// CreateCycle atomically inserts the cycle and its per-product detail
	// lines. A concurrent insert that already used the number surfaces as
	// ErrCycleNumberConflict; the caller recomputes, never reuses a stale
	// number.
	CreateCycle(ctx context.Context, req CreateCycleRequest) (*Cycle, error)
	// RenumberSequence re-assigns 1..N by chronological start date.
	// Administrative repair only, never scheduled.
	RenumberSequence(ctx context.Context, subscriptionID snowflake.ID) error
	VerifyIntegrity(ctx context.Context, subscriptionID snowflake.ID) (IntegrityReport, error)

	// RenewDueSubscriptions opens the next cycle for every active
	// subscription whose current cycle has ended. Per-subscription
	// failures are isolated.
	RenewDueSubscriptions(ctx context.Context, now time.Time) (batch.RunSummary, error)
	// EnsureActiveCycle returns the cycle covering now, creating one on
	// demand. Races with scheduled renewal are resolved by re-reading on
	// duplicate-key conflicts.
	EnsureActiveCycle(ctx context.Context, subscriptionID snowflake.ID, now time.Time) (*Cycle, error)

	ValidateQuota(ctx context.Context, subscriptionID snowflake.ID, items []QuotaItem) (QuotaValidation, error)
	ApplyDelivery(ctx context.Context, subscriptionID snowflake.ID, items []QuotaItem) error
	ReverseDelivery(ctx context.Context, subscriptionID snowflake.ID, items []QuotaItem) error

	// ApplyLateFees surcharges overdue unpaid cycles exactly once.
	ApplyLateFees(ctx context.Context, now time.Time) (batch.RunSummary, error)

	GetCycle(ctx context.Context, id snowflake.ID) (*Cycle, error)
	ListCycles(ctx context.Context, subscriptionID snowflake.ID) ([]Cycle, error)
	ListDetails(ctx context.Context, cycleID snowflake.ID) ([]CycleDetail, error)
}

var (
	ErrNotFound              = errors.New("cycle_not_found")
	ErrSubscriptionNotActive = errors.New("subscription_not_active")
	ErrCycleNumberConflict   = errors.New("cycle_number_conflict")
	ErrInvalidPeriod         = errors.New("invalid_cycle_period")
	ErrInvalidQuantity       = errors.New("invalid_quantity")
	ErrNoActiveCycle         = errors.New("no_active_cycle")
)
