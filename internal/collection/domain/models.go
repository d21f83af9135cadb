// Package domain contains collection order models. A collection order
// bills one or more due cycles for a customer on a date; the cycle linkage
// is an explicit join entity so idempotency checks are existence queries.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// Terminal reports whether the status closes the order. At most one
// non-terminal order may exist per customer per day.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CollectionOrder's TotalAmount intentionally stays zero for cycle
// collections: the billable amount lives on the linked cycles. Orders are
// never physically deleted, only cancelled.
type CollectionOrder struct {
	ID                    snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID            snowflake.ID    `gorm:"not null;index:ix_collection_orders_customer_day" json:"customer_id"`
	OrderDate             time.Time       `gorm:"not null;index:ix_collection_orders_customer_day" json:"order_date"`
	ScheduledDeliveryDate time.Time       `gorm:"not null" json:"scheduled_delivery_date"`
	Status                OrderStatus     `gorm:"type:text;not null;default:'PENDING'" json:"status"`
	IsAutomated           bool            `gorm:"not null;default:false" json:"is_automated"`
	TotalAmount           decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_amount"`
	Notes                 string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt             time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CollectionOrder) TableName() string { return "collection_orders" }

// CollectionOrderCycle links a billed cycle to its order. The unique index
// on cycle_id enforces that a cycle is billed by at most one order.
type CollectionOrderCycle struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID   snowflake.ID `gorm:"not null;index" json:"order_id"`
	CycleID   snowflake.ID `gorm:"not null;uniqueIndex:ux_collection_order_cycles_cycle" json:"cycle_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CollectionOrderCycle) TableName() string { return "collection_order_cycles" }

// CollectionRouteSheetRow is the flat contract consumed by the external
// document generator. Field values must stay consistent with cycle state.
type CollectionRouteSheetRow struct {
	OrderID       snowflake.ID    `json:"order_id"`
	CustomerID    snowflake.ID    `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	Address       string          `json:"address,omitempty"`
	AmountDue     decimal.Decimal `json:"amount_due"`
	DueDate       time.Time       `json:"due_date"`
	PaymentStatus string          `json:"payment_status"`
	CreditLines   []CreditLine    `json:"credit_lines,omitempty"`
}

// CreditLine is one billed cycle on a route sheet row.
type CreditLine struct {
	CycleID        snowflake.ID    `json:"cycle_id"`
	CycleNumber    int             `json:"cycle_number"`
	PaymentDueDate time.Time       `json:"payment_due_date"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
}
