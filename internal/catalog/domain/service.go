package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Service is the read-only pricing/plan catalog interface consumed by
// renewal and late-fee escalation.
type Service interface {
	GetPlan(ctx context.Context, planID snowflake.ID) (*Plan, error)
	GetPlanProducts(ctx context.Context, planID snowflake.ID) ([]PlanProduct, error)
	GetPlanPrice(ctx context.Context, planID snowflake.ID) (decimal.Decimal, error)
	// CycleTotal prices one full cycle from the plan's product lines,
	// falling back to the plan price when the plan has no lines.
	CycleTotal(ctx context.Context, planID snowflake.ID) (decimal.Decimal, error)
}
