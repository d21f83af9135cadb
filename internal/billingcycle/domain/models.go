// Package domain contains the billing cycle models: one Cycle per billing
// period of a subscription, with per-product quota bookkeeping in
// CycleDetail rows.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPartial  PaymentStatus = "PARTIAL"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusOverdue  PaymentStatus = "OVERDUE"
	PaymentStatusCredited PaymentStatus = "CREDITED"
)

// Cycle is one billing period. CycleNumber is sequential per subscription
// starting at 1; the composite unique index is the authority under
// concurrent creation. LateFeeApplied flips false to true at most once.
type Cycle struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID `gorm:"not null;uniqueIndex:ux_cycles_subscription_number" json:"subscription_id"`
	CycleNumber    int          `gorm:"not null;uniqueIndex:ux_cycles_subscription_number" json:"cycle_number"`

	CycleStart     time.Time `gorm:"not null" json:"cycle_start"`
	CycleEnd       time.Time `gorm:"not null;index" json:"cycle_end"`
	PaymentDueDate time.Time `gorm:"not null;index" json:"payment_due_date"`

	TotalAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_amount"`
	PaidAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"paid_amount"`
	PendingBalance decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"pending_balance"`

	PaymentStatus     PaymentStatus   `gorm:"type:text;not null;default:'PENDING'" json:"payment_status"`
	IsOverdue         bool            `gorm:"not null;default:false" json:"is_overdue"`
	LateFeeApplied    bool            `gorm:"not null;default:false" json:"late_fee_applied"`
	LateFeePercentage decimal.Decimal `gorm:"type:numeric(5,4);not null;default:0" json:"late_fee_percentage"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Cycle) TableName() string { return "cycles" }

// CycleDetail tracks planned versus delivered quantities for one product
// within a cycle. RemainingBalance is clamped at zero.
type CycleDetail struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	CycleID           snowflake.ID `gorm:"not null;index" json:"cycle_id"`
	ProductID         snowflake.ID `gorm:"not null;index" json:"product_id"`
	PlannedQuantity   int          `gorm:"not null" json:"planned_quantity"`
	DeliveredQuantity int          `gorm:"not null;default:0" json:"delivered_quantity"`
	RemainingBalance  int          `gorm:"not null" json:"remaining_balance"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CycleDetail) TableName() string { return "cycle_details" }

// RecomputePending re-derives the pending balance invariant
// pending = max(0, total - paid).
func (c *Cycle) RecomputePending() {
	pending := c.TotalAmount.Sub(c.PaidAmount).Round(2)
	if pending.IsNegative() {
		pending = decimal.Zero
	}
	c.PendingBalance = pending
}

// ResolvePaymentStatus applies the documented precedence rule: the stored
// status wins unless it is PENDING, in which case the status is derived
// from the balances.
func ResolvePaymentStatus(c Cycle) PaymentStatus {
	if c.PaymentStatus != PaymentStatusPending {
		return c.PaymentStatus
	}
	switch {
	case c.PendingBalance.IsZero() && c.PaidAmount.IsPositive():
		return PaymentStatusPaid
	case c.IsOverdue:
		return PaymentStatusOverdue
	case c.PaidAmount.IsPositive():
		return PaymentStatusPartial
	default:
		return PaymentStatusPending
	}
}
