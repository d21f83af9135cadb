package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobro/internal/config"
	dispatchdomain "github.com/smallbiznis/cobro/internal/dispatch/domain"
	"github.com/smallbiznis/cobro/pkg/batch"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config bounds the reassignment retry loop and the per-run batch.
type Config struct {
	MaxRetries int
	BatchSize  int
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		MaxRetries: cfg.Scheduler.MaxRetries,
		BatchSize:  cfg.Scheduler.BatchSize,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   dispatchdomain.Repository
	Config Config `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  dispatchdomain.Repository
	cfg   Config
}

func New(p ServiceParam) dispatchdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("dispatch.service"),
		genID: p.GenID,
		repo:  p.Repo,
		cfg:   p.Config.withDefaults(),
	}
}

// ReassignFailedDeliveries moves every eligible failed delivery to a route
// sheet on the next business day. Each task commits in its own
// transaction, so one bad record never blocks the rest of the batch.
func (s *Service) ReassignFailedDeliveries(ctx context.Context, now time.Time) (batch.RunSummary, error) {
	var summary batch.RunSummary

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	details, err := s.repo.ListReassignableDetails(ctx, s.db, today, s.cfg.MaxRetries, s.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	next := dispatchdomain.NextBusinessDay(today)
	for _, detail := range details {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if err := s.reassignDetail(ctx, detail, next); err != nil {
			s.log.Warn("delivery reassignment failed",
				zap.String("detail_id", detail.ID.String()),
				zap.Error(err),
			)
			summary.AddFailure("detail "+detail.ID.String(), err)
			continue
		}
		summary.AddSuccess()
	}
	return summary, nil
}

func (s *Service) reassignDetail(ctx context.Context, detail dispatchdomain.RouteSheetDetail, day time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindDetailByID(ctx, tx, detail.ID)
		if err != nil {
			return err
		}
		if current.DeliveryStatus != dispatchdomain.DeliveryStatusFailed ||
			current.RescheduleDate != nil ||
			current.RetryCount >= s.cfg.MaxRetries {
			return nil
		}

		sheet, err := s.findOrCreateRouteSheet(ctx, tx, day, nil)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		replacement := &dispatchdomain.RouteSheetDetail{
			ID:             s.genID.Generate(),
			RouteSheetID:   sheet.ID,
			OrderID:        current.OrderID,
			CustomerID:     current.CustomerID,
			DeliveryStatus: dispatchdomain.DeliveryStatusPending,
			RetryCount:     current.RetryCount + 1,
			Notes:          current.Notes,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.repo.InsertDetail(ctx, tx, replacement); err != nil {
			return err
		}

		current.RescheduleDate = &day
		current.UpdatedAt = now
		return tx.Save(current).Error
	})
}

// ReassignFailedPickups reschedules cancellation pickups whose scheduled
// day passed without completion, both never-attempted (PENDING) and
// failed-attempt (CANCELLED) ones.
func (s *Service) ReassignFailedPickups(ctx context.Context, now time.Time) (batch.RunSummary, error) {
	var summary batch.RunSummary

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	pickups, err := s.repo.ListReassignablePickups(ctx, s.db, today, s.cfg.MaxRetries, s.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	next := dispatchdomain.NextBusinessDay(today)
	for _, pickup := range pickups {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if err := s.reassignPickup(ctx, pickup, next); err != nil {
			s.log.Warn("pickup reassignment failed",
				zap.String("pickup_id", pickup.ID.String()),
				zap.Error(err),
			)
			summary.AddFailure("pickup "+pickup.ID.String(), err)
			continue
		}
		summary.AddSuccess()
	}
	return summary, nil
}

func (s *Service) reassignPickup(ctx context.Context, pickup dispatchdomain.CancellationOrder, day time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindPickupByID(ctx, tx, pickup.ID)
		if err != nil {
			return err
		}
		if (current.Status != dispatchdomain.PickupStatusPending &&
			current.Status != dispatchdomain.PickupStatusCancelled) ||
			current.RescheduleDate != nil ||
			current.RescheduledCount >= s.cfg.MaxRetries {
			return nil
		}

		sheet, err := s.findOrCreateRouteSheet(ctx, tx, day, nil)
		if err != nil {
			return err
		}

		current.Status = dispatchdomain.PickupStatusRescheduled
		current.RescheduleDate = &day
		current.RescheduledCount++
		current.RouteSheetID = &sheet.ID
		current.UpdatedAt = time.Now().UTC()
		return tx.Save(current).Error
	})
}

func (s *Service) findOrCreateRouteSheet(ctx context.Context, tx *gorm.DB, day time.Time, zoneID *snowflake.ID) (*dispatchdomain.RouteSheet, error) {
	sheet, err := s.repo.FindRouteSheetForDay(ctx, tx, day, zoneID)
	if err != nil {
		return nil, err
	}
	if sheet != nil {
		return sheet, nil
	}

	assignment, err := s.repo.FindAvailableDriverAndVehicle(ctx, tx, day)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sheet = &dispatchdomain.RouteSheet{
		ID:        s.genID.Generate(),
		RouteDate: day,
		ZoneID:    zoneID,
		DriverID:  assignment.DriverID,
		VehicleID: assignment.VehicleID,
		Status:    dispatchdomain.RouteSheetStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertRouteSheet(ctx, tx, sheet); err != nil {
		return nil, err
	}
	s.log.Info("route sheet created for reassignments",
		zap.Time("route_date", day),
		zap.String("driver_id", assignment.DriverID.String()),
	)
	return sheet, nil
}

// ReassignmentStats counts the reassignment backlog across both task
// kinds, deliveries and cancellation pickups: tasks still waiting for a
// pass, tasks that exhausted their retries and need manual handling, and
// tasks already rescheduled onto today.
func (s *Service) ReassignmentStats(ctx context.Context, now time.Time) (dispatchdomain.Stats, error) {
	var stats dispatchdomain.Stats
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	db := s.db.WithContext(ctx)
	retryablePickupStatuses := []dispatchdomain.PickupStatus{
		dispatchdomain.PickupStatusPending,
		dispatchdomain.PickupStatusCancelled,
	}

	var count int64
	err := db.Model(&dispatchdomain.RouteSheetDetail{}).
		Joins("JOIN route_sheets rs ON rs.id = route_sheet_details.route_sheet_id").
		Where("route_sheet_details.delivery_status = ?", dispatchdomain.DeliveryStatusFailed).
		Where("route_sheet_details.reschedule_date IS NULL").
		Where("route_sheet_details.retry_count < ?", s.cfg.MaxRetries).
		Where("rs.route_date < ?", today).
		Count(&count).Error
	if err != nil {
		return stats, err
	}
	stats.PendingReassignment = count

	err = db.Model(&dispatchdomain.CancellationOrder{}).
		Where("status IN ?", retryablePickupStatuses).
		Where("scheduled_date IS NOT NULL AND scheduled_date < ?", today).
		Where("reschedule_date IS NULL").
		Where("rescheduled_count < ?", s.cfg.MaxRetries).
		Count(&count).Error
	if err != nil {
		return stats, err
	}
	stats.PendingReassignment += count

	err = db.Model(&dispatchdomain.RouteSheetDetail{}).
		Where("delivery_status = ?", dispatchdomain.DeliveryStatusFailed).
		Where("reschedule_date IS NULL").
		Where("retry_count >= ?", s.cfg.MaxRetries).
		Count(&count).Error
	if err != nil {
		return stats, err
	}
	stats.MaxRetriesReached = count

	err = db.Model(&dispatchdomain.CancellationOrder{}).
		Where("status IN ?", retryablePickupStatuses).
		Where("reschedule_date IS NULL").
		Where("rescheduled_count >= ?", s.cfg.MaxRetries).
		Count(&count).Error
	if err != nil {
		return stats, err
	}
	stats.MaxRetriesReached += count

	err = db.Model(&dispatchdomain.RouteSheetDetail{}).
		Where("reschedule_date = ?", today).
		Count(&count).Error
	if err != nil {
		return stats, err
	}
	stats.RescheduledToday = count

	err = db.Model(&dispatchdomain.CancellationOrder{}).
		Where("reschedule_date = ?", today).
		Count(&count).Error
	if err != nil {
		return stats, err
	}
	stats.RescheduledToday += count
	return stats, nil
}

// CreatePickupOrder opens an equipment-pickup task for a cancelled
// subscription.
func (s *Service) CreatePickupOrder(ctx context.Context, subscriptionID, customerID snowflake.ID) (*dispatchdomain.CancellationOrder, error) {
	now := time.Now().UTC()
	scheduled := dispatchdomain.NextBusinessDay(now)
	pickup := &dispatchdomain.CancellationOrder{
		ID:             s.genID.Generate(),
		SubscriptionID: subscriptionID,
		CustomerID:     customerID,
		Status:         dispatchdomain.PickupStatusPending,
		ScheduledDate:  &scheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertPickup(ctx, s.db, pickup); err != nil {
		return nil, err
	}
	return pickup, nil
}

// MarkDeliveryStatus records the driver's outcome for one stop. Terminal
// outcomes do not reopen.
func (s *Service) MarkDeliveryStatus(ctx context.Context, detailID snowflake.ID, status dispatchdomain.DeliveryStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		detail, err := s.repo.FindDetailByID(ctx, tx, detailID)
		if err != nil {
			return err
		}
		if detail.DeliveryStatus == dispatchdomain.DeliveryStatusDelivered {
			return nil
		}
		detail.DeliveryStatus = status
		detail.UpdatedAt = time.Now().UTC()
		return tx.Save(detail).Error
	})
}
