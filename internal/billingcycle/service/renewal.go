package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	"github.com/smallbiznis/cobro/pkg/batch"
	"go.uber.org/zap"
)

const createCycleAttempts = 3

// RenewDueSubscriptions opens the next cycle for every active subscription
// whose latest cycle has ended. Failures are isolated per subscription.
func (s *Service) RenewDueSubscriptions(ctx context.Context, now time.Time) (batch.RunSummary, error) {
	var summary batch.RunSummary
	today := dateOnly(now)

	subscriptions, err := s.repo.ListSubscriptionsNeedingRenewal(ctx, s.db, today, s.cfg.BatchSize)
	if err != nil {
		// Selection failure aborts the whole run; the next scheduled run
		// retries from scratch.
		return summary, err
	}

	for _, subscription := range subscriptions {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if _, err := s.openNextCycle(ctx, subscription, today); err != nil {
			s.log.Warn("cycle renewal failed",
				zap.String("subscription_id", subscription.ID.String()),
				zap.Error(err),
			)
			summary.AddFailure("subscription "+subscription.ID.String(), err)
			continue
		}
		summary.AddSuccess()
	}

	return summary, nil
}

// EnsureActiveCycle returns the cycle covering now, creating one on demand.
// This path races with scheduled renewal on the cycle-number unique index;
// a conflict means someone else already created it, so re-read and continue.
func (s *Service) EnsureActiveCycle(ctx context.Context, subscriptionID snowflake.ID, now time.Time) (*billingcycledomain.Cycle, error) {
	today := dateOnly(now)

	cycle, err := s.repo.FindActiveCycle(ctx, s.db, subscriptionID, today)
	if err != nil {
		return nil, err
	}
	if cycle != nil {
		return cycle, nil
	}

	subscription, err := s.subsRepo.FindByID(ctx, s.db, subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.openNextCycle(ctx, *subscription, today)
}

func (s *Service) openNextCycle(ctx context.Context, subscription subscriptiondomain.Subscription, today time.Time) (*billingcycledomain.Cycle, error) {
	if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil, billingcycledomain.ErrSubscriptionNotActive
	}

	plan, err := s.catalog.GetPlan(ctx, subscription.PlanID)
	if err != nil {
		return nil, err
	}
	cycleDays := plan.CycleDays
	if cycleDays <= 0 {
		cycleDays = 30
	}

	start := today
	end := start.AddDate(0, 0, cycleDays-1)
	dueDate := end.AddDate(0, 0, s.cfg.PaymentTermDays)

	var lastErr error
	for attempt := 0; attempt < createCycleAttempts; attempt++ {
		cycle, err := s.CreateCycle(ctx, billingcycledomain.CreateCycleRequest{
			SubscriptionID: subscription.ID,
			Start:          start,
			End:            end,
			DueDate:        dueDate,
		})
		if err == nil {
			return cycle, nil
		}
		if !errors.Is(err, billingcycledomain.ErrCycleNumberConflict) {
			return nil, err
		}
		lastErr = err

		// A concurrent creator took the number. If its cycle covers today
		// we are done; otherwise recompute and retry with a fresh number.
		existing, findErr := s.repo.FindActiveCycle(ctx, s.db, subscription.ID, today)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	return nil, lastErr
}
