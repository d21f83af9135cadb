package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	collectiondomain "github.com/smallbiznis/cobro/internal/collection/domain"
	"gorm.io/gorm"
)

// GenerateManualCollection creates (or reuses) the customer's open order
// for the requested day and attaches the named cycles. Every cycle is
// validated before any write, so a bad cycle in the list fails the whole
// request instead of half-billing it.
func (s *Service) GenerateManualCollection(ctx context.Context, req collectiondomain.ManualCollectionRequest) (*collectiondomain.CollectionOrder, error) {
	if len(req.CycleIDs) == 0 {
		return nil, collectiondomain.ErrEmptyCycleList
	}
	if _, err := s.customerRepo.FindByID(ctx, s.db, req.CustomerID); err != nil {
		return nil, err
	}

	day := req.CollectionDate
	if day.IsZero() {
		day = time.Now().UTC()
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	if err := s.validateCycles(ctx, req.CustomerID, req.CycleIDs); err != nil {
		return nil, err
	}

	order, err := s.findOrCreateOrder(ctx, req.CustomerID, day, false)
	if err != nil {
		return nil, err
	}
	if err := s.linkCycles(ctx, order.ID, req.CycleIDs); err != nil {
		return nil, err
	}
	return order, nil
}

// AttachCycles adds cycles to an existing open order under the same
// validation rules as a manual collection.
func (s *Service) AttachCycles(ctx context.Context, orderID snowflake.ID, cycleIDs []snowflake.ID) error {
	if len(cycleIDs) == 0 {
		return collectiondomain.ErrEmptyCycleList
	}
	order, err := s.repo.FindOrderByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if order.Status.Terminal() {
		return collectiondomain.ErrOrderNotFound
	}
	if err := s.validateCycles(ctx, order.CustomerID, cycleIDs); err != nil {
		return err
	}
	return s.linkCycles(ctx, order.ID, cycleIDs)
}

// validateCycles checks that every cycle exists, belongs to the customer,
// carries a pending balance and is not already on an order.
func (s *Service) validateCycles(ctx context.Context, customerID snowflake.ID, cycleIDs []snowflake.ID) error {
	for _, cycleID := range cycleIDs {
		cycle, err := s.cycleRepo.FindCycleByID(ctx, s.db, cycleID)
		if err != nil {
			return fmt.Errorf("cycle %s: %w", cycleID, err)
		}
		sub, err := s.subsRepo.FindByID(ctx, s.db, cycle.SubscriptionID)
		if err != nil {
			return fmt.Errorf("cycle %s: %w", cycleID, err)
		}
		if sub.CustomerID != customerID {
			return fmt.Errorf("cycle %s: %w", cycleID, collectiondomain.ErrCycleNotOwned)
		}
		if !cycle.PendingBalance.IsPositive() {
			return fmt.Errorf("cycle %s: %w", cycleID, collectiondomain.ErrCycleNotBillable)
		}
		if billingcycledomain.ResolvePaymentStatus(*cycle) == billingcycledomain.PaymentStatusCredited {
			return fmt.Errorf("cycle %s: %w", cycleID, collectiondomain.ErrCycleNotBillable)
		}
		link, err := s.repo.FindLinkByCycle(ctx, s.db, cycleID)
		if err != nil {
			return err
		}
		if link != nil {
			return fmt.Errorf("cycle %s: %w", cycleID, collectiondomain.ErrCycleAlreadyBilled)
		}
	}
	return nil
}

func (s *Service) linkCycles(ctx context.Context, orderID snowflake.ID, cycleIDs []snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, cycleID := range cycleIDs {
			link := &collectiondomain.CollectionOrderCycle{
				ID:        s.genID.Generate(),
				OrderID:   orderID,
				CycleID:   cycleID,
				CreatedAt: time.Now().UTC(),
			}
			if err := s.repo.InsertLink(ctx, tx, link); err != nil {
				return fmt.Errorf("cycle %s: %w", cycleID, err)
			}
		}
		return nil
	})
}
