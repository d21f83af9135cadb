package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	"github.com/smallbiznis/cobro/pkg/batch"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApplyLateFees surcharges cycles whose payment is overdue past the grace
// threshold. The late_fee_applied flag guards exactly-once application even
// when the escalator runs twice on the same day; each cycle is updated in
// its own transaction so one failure does not block the rest.
func (s *Service) ApplyLateFees(ctx context.Context, now time.Time) (batch.RunSummary, error) {
	var summary batch.RunSummary
	cutoff := dateOnly(now).AddDate(0, 0, -s.cfg.GracePeriodDays)

	cycles, err := s.repo.ListCyclesDueForLateFee(ctx, s.db, cutoff, s.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	percent := decimal.NewFromFloat(s.cfg.LateFeePercent)

	for _, cycle := range cycles {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if err := s.escalateCycle(ctx, cycle.ID, percent); err != nil {
			s.log.Warn("late fee escalation failed",
				zap.String("cycle_id", cycle.ID.String()),
				zap.String("subscription_id", cycle.SubscriptionID.String()),
				zap.Error(err),
			)
			summary.AddFailure("cycle "+cycle.ID.String(), err)
			continue
		}
		summary.AddSuccess()
	}

	return summary, nil
}

func (s *Service) escalateCycle(ctx context.Context, cycleID snowflake.ID, percent decimal.Decimal) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cycle billingcycledomain.Cycle
		if err := tx.WithContext(ctx).First(&cycle, "id = ?", cycleID).Error; err != nil {
			return err
		}
		// Re-check inside the transaction: a concurrent run may have
		// escalated this cycle between selection and update.
		if cycle.LateFeeApplied || !cycle.PendingBalance.IsPositive() {
			return nil
		}

		base := cycle.TotalAmount
		if !base.IsPositive() {
			subscription, err := s.subsRepo.FindByID(ctx, tx, cycle.SubscriptionID)
			if err != nil {
				return err
			}
			base, err = s.catalog.GetPlanPrice(ctx, subscription.PlanID)
			if err != nil {
				return err
			}
		}

		surcharge := base.Mul(percent).Round(2)
		newTotal := base.Add(surcharge).Round(2)
		newPending := newTotal.Sub(cycle.PaidAmount).Round(2)
		if newPending.IsNegative() {
			newPending = decimal.Zero
		}

		status := billingcycledomain.PaymentStatusOverdue
		if !newPending.IsPositive() {
			status = billingcycledomain.PaymentStatusPaid
		}

		cycle.TotalAmount = newTotal
		cycle.PendingBalance = newPending
		cycle.IsOverdue = true
		cycle.LateFeeApplied = true
		cycle.LateFeePercentage = percent
		cycle.PaymentStatus = status
		return s.repo.SaveCycle(ctx, tx, &cycle)
	})
}
