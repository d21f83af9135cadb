package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPaused    SubscriptionStatus = "PAUSED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

// Subscription binds a customer to a plan. Once billing cycles exist the
// record is immutable except for status transitions.
type Subscription struct {
	ID          snowflake.ID       `gorm:"primaryKey" json:"id"`
	CustomerID  snowflake.ID       `gorm:"not null;index" json:"customer_id"`
	PlanID      snowflake.ID       `gorm:"not null;index" json:"plan_id"`
	Status      SubscriptionStatus `gorm:"type:text;not null;default:'ACTIVE'" json:"status"`
	StartAt     time.Time          `gorm:"not null" json:"start_at"`
	CancelledAt *time.Time         `gorm:"" json:"cancelled_at,omitempty"`
	Metadata    datatypes.JSONMap  `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }
