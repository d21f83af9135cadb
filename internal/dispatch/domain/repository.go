package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertRouteSheet(ctx context.Context, db *gorm.DB, sheet *RouteSheet) error
	FindRouteSheetForDay(ctx context.Context, db *gorm.DB, day time.Time, zoneID *snowflake.ID) (*RouteSheet, error)
	InsertDetail(ctx context.Context, db *gorm.DB, detail *RouteSheetDetail) error
	FindDetailByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RouteSheetDetail, error)
	// ListReassignableDetails returns FAILED details from strictly before
	// the given day with no reschedule date and retry_count < maxRetries.
	// A positive limit caps the batch.
	ListReassignableDetails(ctx context.Context, db *gorm.DB, before time.Time, maxRetries, limit int) ([]RouteSheetDetail, error)

	InsertPickup(ctx context.Context, db *gorm.DB, pickup *CancellationOrder) error
	FindPickupByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CancellationOrder, error)
	// ListReassignablePickups returns PENDING or CANCELLED pickups whose
	// scheduled day is strictly before the given day, not yet rescheduled
	// and under the retry bound.
	ListReassignablePickups(ctx context.Context, db *gorm.DB, before time.Time, maxRetries, limit int) ([]CancellationOrder, error)

	// FindAvailableDriverAndVehicle picks the first active driver and
	// vehicle not already assigned to a route sheet on the given day.
	FindAvailableDriverAndVehicle(ctx context.Context, db *gorm.DB, day time.Time) (*Assignment, error)
}
