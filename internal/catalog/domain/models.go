// Package domain holds the plan catalog models consumed by billing.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Plan describes a subscription plan: a fixed price for a recurring
// delivery window of CycleDays.
type Plan struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"price"`
	CycleDays int             `gorm:"not null" json:"cycle_days"`
	Active    bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Plan) TableName() string { return "plans" }

// PlanProduct is one product line granted by a plan per cycle.
type PlanProduct struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	PlanID    snowflake.ID    `gorm:"not null;index" json:"plan_id"`
	ProductID snowflake.ID    `gorm:"not null;index" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PlanProduct) TableName() string { return "plan_products" }

var (
	ErrPlanNotFound = errors.New("plan_not_found")
)
