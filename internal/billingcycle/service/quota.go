package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	"gorm.io/gorm"
)

// ValidateQuota splits each requested quantity into the portion covered by
// the subscription's remaining quota and the additionally chargeable rest.
// Products absent from the plan are entirely additional.
func (s *Service) ValidateQuota(ctx context.Context, subscriptionID snowflake.ID, items []billingcycledomain.QuotaItem) (billingcycledomain.QuotaValidation, error) {
	var validation billingcycledomain.QuotaValidation

	for _, item := range items {
		if item.Quantity <= 0 {
			return validation, billingcycledomain.ErrInvalidQuantity
		}
	}

	cycle, err := s.EnsureActiveCycle(ctx, subscriptionID, s.clock.Now().UTC())
	if err != nil {
		return validation, err
	}
	validation.CycleID = cycle.ID

	details, err := s.repo.ListDetails(ctx, s.db, cycle.ID)
	if err != nil {
		return validation, err
	}
	remaining := make(map[snowflake.ID]int, len(details))
	for _, detail := range details {
		remaining[detail.ProductID] = detail.RemainingBalance
	}

	for _, item := range items {
		covered := min(item.Quantity, remaining[item.ProductID])
		validation.Items = append(validation.Items, billingcycledomain.QuotaValidationItem{
			ProductID:             item.ProductID,
			Requested:             item.Quantity,
			CoveredBySubscription: covered,
			Additional:            item.Quantity - covered,
		})
		if item.Quantity > covered {
			validation.HasAdditionalCharges = true
		}
	}
	return validation, nil
}

// ApplyDelivery increments delivered quantities on the active cycle and
// recomputes remaining balances, clamped at zero.
func (s *Service) ApplyDelivery(ctx context.Context, subscriptionID snowflake.ID, items []billingcycledomain.QuotaItem) error {
	return s.mutateQuota(ctx, subscriptionID, items, 1)
}

// ReverseDelivery undoes ApplyDelivery, used when an order is deleted
// before reaching a terminal delivered state.
func (s *Service) ReverseDelivery(ctx context.Context, subscriptionID snowflake.ID, items []billingcycledomain.QuotaItem) error {
	return s.mutateQuota(ctx, subscriptionID, items, -1)
}

func (s *Service) mutateQuota(ctx context.Context, subscriptionID snowflake.ID, items []billingcycledomain.QuotaItem, sign int) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return billingcycledomain.ErrInvalidQuantity
		}
	}

	cycle, err := s.repo.FindActiveCycle(ctx, s.db, subscriptionID, dateOnly(s.clock.Now().UTC()))
	if err != nil {
		return err
	}
	if cycle == nil {
		return billingcycledomain.ErrNoActiveCycle
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		details, err := s.repo.ListDetails(ctx, tx, cycle.ID)
		if err != nil {
			return err
		}
		byProduct := make(map[snowflake.ID]*billingcycledomain.CycleDetail, len(details))
		for i := range details {
			byProduct[details[i].ProductID] = &details[i]
		}

		for _, item := range items {
			detail, ok := byProduct[item.ProductID]
			if !ok {
				// Off-plan products carry no quota to mutate.
				continue
			}
			detail.DeliveredQuantity += sign * item.Quantity
			if detail.DeliveredQuantity < 0 {
				detail.DeliveredQuantity = 0
			}
			detail.RemainingBalance = detail.PlannedQuantity - detail.DeliveredQuantity
			if detail.RemainingBalance < 0 {
				detail.RemainingBalance = 0
			}
			if err := s.repo.SaveDetail(ctx, tx, detail); err != nil {
				return err
			}
		}
		return nil
	})
}
