package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobro/pkg/batch"
)

// Assignment is a driver/vehicle pair available for a route.
type Assignment struct {
	DriverID  snowflake.ID `json:"driver_id"`
	VehicleID snowflake.ID `json:"vehicle_id"`
}

// Stats surfaces reassignment backlog for manual escalation.
type Stats struct {
	PendingReassignment int64 `json:"pending_reassignment"`
	MaxRetriesReached   int64 `json:"max_retries_reached"`
	RescheduledToday    int64 `json:"rescheduled_today"`
}

type Service interface {
	// ReassignFailedDeliveries moves unresolved failed deliveries from
	// strictly before now to the next business day, bounded by the retry
	// counter.
	ReassignFailedDeliveries(ctx context.Context, now time.Time) (batch.RunSummary, error)
	// ReassignFailedPickups does the same for cancellation pickups.
	ReassignFailedPickups(ctx context.Context, now time.Time) (batch.RunSummary, error)
	ReassignmentStats(ctx context.Context, now time.Time) (Stats, error)

	CreatePickupOrder(ctx context.Context, subscriptionID, customerID snowflake.ID) (*CancellationOrder, error)
	MarkDeliveryStatus(ctx context.Context, detailID snowflake.ID, status DeliveryStatus) error
}

// NextBusinessDay advances one calendar day from the given date and then
// skips over Saturday and Sunday.
func NextBusinessDay(from time.Time) time.Time {
	next := from.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location())
}

var (
	ErrDetailNotFound     = errors.New("route_sheet_detail_not_found")
	ErrPickupNotFound     = errors.New("cancellation_order_not_found")
	ErrNoFleetAvailable   = errors.New("no_driver_or_vehicle_available")
	ErrRetryLimitExceeded = errors.New("retry_limit_exceeded")
)
