package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Customer struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"not null;index" json:"name"`
	Email     string            `gorm:"" json:"email,omitempty"`
	Phone     string            `gorm:"" json:"phone,omitempty"`
	Address   string            `gorm:"" json:"address,omitempty"`
	ZoneID    *snowflake.ID     `gorm:"index" json:"zone_id,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

var ErrNotFound = errors.New("customer_not_found")
