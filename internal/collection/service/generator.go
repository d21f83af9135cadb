package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	collectiondomain "github.com/smallbiznis/cobro/internal/collection/domain"
	orderingdomain "github.com/smallbiznis/cobro/internal/ordering/domain"
	"github.com/smallbiznis/cobro/pkg/batch"
	"github.com/smallbiznis/cobro/pkg/db"
	"go.uber.org/zap"
)

// GenerateDueCollections is the automated daily pass. It never double-bills:
// a cycle already linked to an order is skipped, and at most one open order
// exists per customer and target day. Running the pass twice for the same
// day is a no-op on the second run.
func (s *Service) GenerateDueCollections(ctx context.Context, now time.Time) (batch.RunSummary, error) {
	var summary batch.RunSummary

	target := collectiondomain.CollectionTarget(now)
	due, err := s.cycleRepo.ListCyclesDueForCollection(ctx, s.db, target, target.AddDate(0, 0, 1), s.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, cycle := range due {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		attached, err := s.collectCycle(ctx, cycle, target)
		if err != nil {
			s.log.Warn("collection generation failed for cycle",
				zap.String("cycle_id", cycle.CycleID.String()),
				zap.String("customer_id", cycle.CustomerID.String()),
				zap.Error(err),
			)
			summary.AddFailure("cycle "+cycle.CycleID.String(), err)
			continue
		}
		if attached {
			summary.AddSuccess()
		} else {
			summary.AddSkip()
		}
	}

	return summary, nil
}

// collectCycle attaches one due cycle to the customer's order for the
// target day, creating the order when missing. Returns false when the
// cycle was already billed (idempotent no-op).
func (s *Service) collectCycle(ctx context.Context, cycle billingcycledomain.DueCycle, target time.Time) (bool, error) {
	link, err := s.repo.FindLinkByCycle(ctx, s.db, cycle.CycleID)
	if err != nil {
		return false, err
	}
	if link != nil {
		return false, nil
	}

	order, err := s.findOrCreateOrder(ctx, cycle.CustomerID, target, true)
	if err != nil {
		return false, err
	}

	if err := s.attachLink(ctx, order.ID, cycle.CycleID); err != nil {
		if errors.Is(err, collectiondomain.ErrCycleAlreadyBilled) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// findOrCreateOrder returns the open order for the customer and day,
// creating one through the generic ordering service when absent. A
// validation rejection from the primary path falls back to a minimal
// direct insert with the same required fields. A duplicate-open-order
// conflict means a concurrent creator won; re-read and use theirs.
func (s *Service) findOrCreateOrder(ctx context.Context, customerID snowflake.ID, day time.Time, automated bool) (*collectiondomain.CollectionOrder, error) {
	order, err := s.repo.FindOpenOrder(ctx, s.db, customerID, day)
	if err != nil {
		return nil, err
	}
	if order != nil {
		return order, nil
	}

	orderID, err := s.ordering.CreateOrder(ctx, orderingdomain.CreateOrderRequest{
		CustomerID:            customerID,
		OrderDate:             day,
		ScheduledDeliveryDate: day,
		IsAutomated:           automated,
	})
	switch {
	case err == nil:
		return s.repo.FindOrderByID(ctx, s.db, orderID)
	case errors.Is(err, orderingdomain.ErrValidation):
		return s.insertOrderFallback(ctx, customerID, day, automated)
	case db.IsDuplicateKeyErr(err):
		return s.reReadOpenOrder(ctx, customerID, day)
	default:
		return nil, err
	}
}

func (s *Service) insertOrderFallback(ctx context.Context, customerID snowflake.ID, day time.Time, automated bool) (*collectiondomain.CollectionOrder, error) {
	now := time.Now().UTC()
	order := &collectiondomain.CollectionOrder{
		ID:                    s.genID.Generate(),
		CustomerID:            customerID,
		OrderDate:             day,
		ScheduledDeliveryDate: day,
		Status:                collectiondomain.OrderStatusPending,
		IsAutomated:           automated,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.InsertOrder(ctx, s.db, order); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.reReadOpenOrder(ctx, customerID, day)
		}
		return nil, err
	}
	s.log.Info("collection order created via fallback insert",
		zap.String("customer_id", customerID.String()),
		zap.Time("order_date", day),
	)
	return order, nil
}

func (s *Service) reReadOpenOrder(ctx context.Context, customerID snowflake.ID, day time.Time) (*collectiondomain.CollectionOrder, error) {
	order, err := s.repo.FindOpenOrder(ctx, s.db, customerID, day)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, collectiondomain.ErrOrderNotFound
	}
	return order, nil
}

// attachLink records the cycle linkage. The unique index on cycle_id turns
// a concurrent double-attach into ErrCycleAlreadyBilled.
func (s *Service) attachLink(ctx context.Context, orderID, cycleID snowflake.ID) error {
	link := &collectiondomain.CollectionOrderCycle{
		ID:        s.genID.Generate(),
		OrderID:   orderID,
		CycleID:   cycleID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertLink(ctx, s.db, link); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return collectiondomain.ErrCycleAlreadyBilled
		}
		return err
	}
	return nil
}
