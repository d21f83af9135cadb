package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobro/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertOrder(ctx context.Context, db *gorm.DB, order *CollectionOrder) error
	SaveOrder(ctx context.Context, db *gorm.DB, order *CollectionOrder) error
	FindOrderByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CollectionOrder, error)
	// FindOpenOrder returns the non-terminal order for the customer on the
	// given day, if any.
	FindOpenOrder(ctx context.Context, db *gorm.DB, customerID snowflake.ID, day time.Time) (*CollectionOrder, error)
	ListOrders(ctx context.Context, db *gorm.DB, filter ListOrdersFilter) ([]CollectionOrder, pagination.PageInfo, error)
	ListOrdersForDay(ctx context.Context, db *gorm.DB, day time.Time) ([]CollectionOrder, error)

	InsertLink(ctx context.Context, db *gorm.DB, link *CollectionOrderCycle) error
	FindLinkByCycle(ctx context.Context, db *gorm.DB, cycleID snowflake.ID) (*CollectionOrderCycle, error)
	ListLinksByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]CollectionOrderCycle, error)
}
