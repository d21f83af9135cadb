// Package domain holds the route-sheet, pickup and fleet models used by
// delivery dispatch and reassignment.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
	DeliveryStatusSkipped   DeliveryStatus = "SKIPPED"
)

type RouteSheetStatus string

const (
	RouteSheetStatusOpen       RouteSheetStatus = "OPEN"
	RouteSheetStatusInProgress RouteSheetStatus = "IN_PROGRESS"
	RouteSheetStatusCompleted  RouteSheetStatus = "COMPLETED"
)

type PickupStatus string

const (
	PickupStatusPending     PickupStatus = "PENDING"
	PickupStatusScheduled   PickupStatus = "SCHEDULED"
	PickupStatusInProgress  PickupStatus = "IN_PROGRESS"
	PickupStatusCompleted   PickupStatus = "COMPLETED"
	PickupStatusCancelled   PickupStatus = "CANCELLED"
	PickupStatusRescheduled PickupStatus = "RESCHEDULED"
)

type Driver struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Driver) TableName() string { return "drivers" }

type Vehicle struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Plate     string       `gorm:"not null" json:"plate"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Vehicle) TableName() string { return "vehicles" }

// RouteSheet is one delivery day for one driver/vehicle pair, optionally
// scoped to a zone.
type RouteSheet struct {
	ID        snowflake.ID     `gorm:"primaryKey" json:"id"`
	RouteDate time.Time        `gorm:"not null;index" json:"route_date"`
	ZoneID    *snowflake.ID    `gorm:"index" json:"zone_id,omitempty"`
	DriverID  snowflake.ID     `gorm:"not null" json:"driver_id"`
	VehicleID snowflake.ID     `gorm:"not null" json:"vehicle_id"`
	Status    RouteSheetStatus `gorm:"type:text;not null;default:'OPEN'" json:"status"`
	CreatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (RouteSheet) TableName() string { return "route_sheets" }

// RouteSheetDetail is one delivery stop. A FAILED detail with no
// reschedule date is eligible for reassignment.
type RouteSheetDetail struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	RouteSheetID   snowflake.ID   `gorm:"not null;index" json:"route_sheet_id"`
	OrderID        snowflake.ID   `gorm:"not null;index" json:"order_id"`
	CustomerID     snowflake.ID   `gorm:"not null;index" json:"customer_id"`
	DeliveryStatus DeliveryStatus `gorm:"type:text;not null;default:'PENDING'" json:"delivery_status"`
	RescheduleDate *time.Time     `gorm:"" json:"reschedule_date,omitempty"`
	RetryCount     int            `gorm:"not null;default:0" json:"retry_count"`
	Notes          string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (RouteSheetDetail) TableName() string { return "route_sheet_details" }

// CancellationOrder is a pickup task for a cancelled subscription's
// equipment. RescheduledCount is bounded; past the bound the task is
// surfaced for manual handling instead of retried.
type CancellationOrder struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	SubscriptionID   snowflake.ID  `gorm:"not null;index" json:"subscription_id"`
	CustomerID       snowflake.ID  `gorm:"not null;index" json:"customer_id"`
	Status           PickupStatus  `gorm:"type:text;not null;default:'PENDING'" json:"status"`
	ScheduledDate    *time.Time    `gorm:"" json:"scheduled_date,omitempty"`
	RescheduleDate   *time.Time    `gorm:"" json:"reschedule_date,omitempty"`
	RescheduledCount int           `gorm:"not null;default:0" json:"rescheduled_count"`
	RouteSheetID     *snowflake.ID `gorm:"index" json:"route_sheet_id,omitempty"`
	CreatedAt        time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CancellationOrder) TableName() string { return "cancellation_orders" }
