package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobro/pkg/batch"
	"github.com/smallbiznis/cobro/pkg/db/pagination"
)

type ManualCollectionRequest struct {
	CustomerID     snowflake.ID   `json:"customer_id"`
	CycleIDs       []snowflake.ID `json:"cycle_ids"`
	CollectionDate time.Time      `json:"collection_date"`
}

type ListOrdersFilter struct {
	CustomerID *snowflake.ID
	Date       *time.Time
	Page       pagination.Pagination
}

type Service interface {
	// GenerateDueCollections runs the automated daily pass: one open order
	// per customer for the target day, each due cycle linked exactly once.
	// Re-running for the same day is a no-op.
	GenerateDueCollections(ctx context.Context, now time.Time) (batch.RunSummary, error)
	// GenerateManualCollection validates the full request before any
	// write: every cycle must belong to the customer, be unbilled and
	// carry a pending balance.
	GenerateManualCollection(ctx context.Context, req ManualCollectionRequest) (*CollectionOrder, error)
	AttachCycles(ctx context.Context, orderID snowflake.ID, cycleIDs []snowflake.ID) error
	// CancelOrder logically cancels; rejected when any linked cycle has
	// received payment.
	CancelOrder(ctx context.Context, orderID snowflake.ID) error

	GetOrder(ctx context.Context, orderID snowflake.ID) (*CollectionOrder, []CollectionOrderCycle, error)
	// ListOrders pages through orders in ascending id order using an
	// opaque cursor token.
	ListOrders(ctx context.Context, filter ListOrdersFilter) ([]CollectionOrder, pagination.PageInfo, error)

	// BuildRouteSheetRows flattens the day's collection orders into the
	// document-generator contract, optionally restricted to one zone.
	BuildRouteSheetRows(ctx context.Context, day time.Time, zoneID *snowflake.ID) ([]CollectionRouteSheetRow, error)
}

// CollectionTarget applies the weekend-skip rule: a Sunday target shifts to
// the preceding Saturday.
func CollectionTarget(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

var (
	ErrOrderNotFound      = errors.New("collection_order_not_found")
	ErrCycleNotOwned      = errors.New("cycle_not_owned_by_customer")
	ErrCycleAlreadyBilled = errors.New("cycle_already_billed")
	ErrCycleNotBillable   = errors.New("cycle_has_no_pending_balance")
	ErrOrderHasPayments   = errors.New("order_has_paid_cycles")
	ErrEmptyCycleList     = errors.New("empty_cycle_list")
)
