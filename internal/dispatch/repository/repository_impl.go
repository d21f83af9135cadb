package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	dispatchdomain "github.com/smallbiznis/cobro/internal/dispatch/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() dispatchdomain.Repository {
	return &repo{}
}

func (r *repo) InsertRouteSheet(ctx context.Context, db *gorm.DB, sheet *dispatchdomain.RouteSheet) error {
	return db.WithContext(ctx).Create(sheet).Error
}

func (r *repo) FindRouteSheetForDay(ctx context.Context, db *gorm.DB, day time.Time, zoneID *snowflake.ID) (*dispatchdomain.RouteSheet, error) {
	stmt := db.WithContext(ctx).
		Where("route_date = ? AND status <> ?", day, dispatchdomain.RouteSheetStatusCompleted)
	if zoneID != nil {
		stmt = stmt.Where("zone_id = ?", *zoneID)
	} else {
		stmt = stmt.Where("zone_id IS NULL")
	}

	var sheet dispatchdomain.RouteSheet
	err := stmt.Order("id ASC").First(&sheet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sheet, nil
}

func (r *repo) InsertDetail(ctx context.Context, db *gorm.DB, detail *dispatchdomain.RouteSheetDetail) error {
	return db.WithContext(ctx).Create(detail).Error
}

func (r *repo) FindDetailByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*dispatchdomain.RouteSheetDetail, error) {
	var detail dispatchdomain.RouteSheetDetail
	err := db.WithContext(ctx).First(&detail, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dispatchdomain.ErrDetailNotFound
		}
		return nil, err
	}
	return &detail, nil
}

func (r *repo) ListReassignableDetails(ctx context.Context, db *gorm.DB, before time.Time, maxRetries, limit int) ([]dispatchdomain.RouteSheetDetail, error) {
	stmt := db.WithContext(ctx).
		Joins("JOIN route_sheets rs ON rs.id = route_sheet_details.route_sheet_id").
		Where("route_sheet_details.delivery_status = ?", dispatchdomain.DeliveryStatusFailed).
		Where("route_sheet_details.reschedule_date IS NULL").
		Where("route_sheet_details.retry_count < ?", maxRetries).
		Where("rs.route_date < ?", before).
		Order("route_sheet_details.id ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	var details []dispatchdomain.RouteSheetDetail
	err := stmt.Find(&details).Error
	return details, err
}

func (r *repo) InsertPickup(ctx context.Context, db *gorm.DB, pickup *dispatchdomain.CancellationOrder) error {
	return db.WithContext(ctx).Create(pickup).Error
}

func (r *repo) FindPickupByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*dispatchdomain.CancellationOrder, error) {
	var pickup dispatchdomain.CancellationOrder
	err := db.WithContext(ctx).First(&pickup, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dispatchdomain.ErrPickupNotFound
		}
		return nil, err
	}
	return &pickup, nil
}

// ListReassignablePickups selects pickups whose scheduled day passed
// without completion. PENDING covers never-attempted tasks, CANCELLED is
// the failed-attempt state; both are retried until the bound.
func (r *repo) ListReassignablePickups(ctx context.Context, db *gorm.DB, before time.Time, maxRetries, limit int) ([]dispatchdomain.CancellationOrder, error) {
	stmt := db.WithContext(ctx).
		Where("status IN ?", []dispatchdomain.PickupStatus{
			dispatchdomain.PickupStatusPending,
			dispatchdomain.PickupStatusCancelled,
		}).
		Where("scheduled_date IS NOT NULL AND scheduled_date < ?", before).
		Where("reschedule_date IS NULL").
		Where("rescheduled_count < ?", maxRetries).
		Order("id ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	var pickups []dispatchdomain.CancellationOrder
	err := stmt.Find(&pickups).Error
	return pickups, err
}

// FindAvailableDriverAndVehicle pairs the first active driver with the
// first active vehicle, each excluding anyone already on a sheet for the
// day. Drivers and vehicles are picked independently; routes do not pin a
// driver to a vehicle across days.
func (r *repo) FindAvailableDriverAndVehicle(ctx context.Context, db *gorm.DB, day time.Time) (*dispatchdomain.Assignment, error) {
	var driver dispatchdomain.Driver
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Where("id NOT IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&dispatchdomain.RouteSheet{}).
			Select("driver_id").
			Where("route_date = ?", day)).
		Order("id ASC").
		First(&driver).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dispatchdomain.ErrNoFleetAvailable
		}
		return nil, err
	}

	var vehicle dispatchdomain.Vehicle
	err = db.WithContext(ctx).
		Where("active = ?", true).
		Where("id NOT IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&dispatchdomain.RouteSheet{}).
			Select("vehicle_id").
			Where("route_date = ?", day)).
		Order("id ASC").
		First(&vehicle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dispatchdomain.ErrNoFleetAvailable
		}
		return nil, err
	}

	return &dispatchdomain.Assignment{DriverID: driver.ID, VehicleID: vehicle.ID}, nil
}
