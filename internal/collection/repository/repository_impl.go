package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	collectiondomain "github.com/smallbiznis/cobro/internal/collection/domain"
	"github.com/smallbiznis/cobro/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() collectiondomain.Repository {
	return &repo{}
}

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, order *collectiondomain.CollectionOrder) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) SaveOrder(ctx context.Context, db *gorm.DB, order *collectiondomain.CollectionOrder) error {
	order.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(order).Error
}

func (r *repo) FindOrderByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*collectiondomain.CollectionOrder, error) {
	var order collectiondomain.CollectionOrder
	err := db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, collectiondomain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindOpenOrder(ctx context.Context, db *gorm.DB, customerID snowflake.ID, day time.Time) (*collectiondomain.CollectionOrder, error) {
	var order collectiondomain.CollectionOrder
	err := db.WithContext(ctx).
		Where("customer_id = ? AND order_date = ? AND status NOT IN ?",
			customerID, day,
			[]collectiondomain.OrderStatus{collectiondomain.OrderStatusCompleted, collectiondomain.OrderStatusCancelled}).
		Order("id ASC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListOrders pages in ascending id order. The page token is an opaque
// cursor carrying the last id of the previous page; one extra row is
// fetched to learn whether more pages remain.
func (r *repo) ListOrders(ctx context.Context, db *gorm.DB, filter collectiondomain.ListOrdersFilter) ([]collectiondomain.CollectionOrder, pagination.PageInfo, error) {
	var info pagination.PageInfo

	stmt := db.WithContext(ctx).Model(&collectiondomain.CollectionOrder{})
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Date != nil {
		stmt = stmt.Where("order_date = ?", *filter.Date)
	}
	if filter.Page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(filter.Page.PageToken)
		if err != nil {
			return nil, info, err
		}
		after, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, info, err
		}
		stmt = stmt.Where("id > ?", after)
	}

	pageSize := filter.Page.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var orders []collectiondomain.CollectionOrder
	err := stmt.Order("id ASC").Limit(pageSize + 1).Find(&orders).Error
	if err != nil {
		return nil, info, err
	}

	if len(orders) > pageSize {
		orders = orders[:pageSize]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID: orders[len(orders)-1].ID.String(),
		})
		if err != nil {
			return nil, info, err
		}
		info.NextPageToken = token
		info.HasMore = true
	}
	return orders, info, nil
}

func (r *repo) ListOrdersForDay(ctx context.Context, db *gorm.DB, day time.Time) ([]collectiondomain.CollectionOrder, error) {
	var orders []collectiondomain.CollectionOrder
	err := db.WithContext(ctx).
		Where("order_date = ? AND status <> ?", day, collectiondomain.OrderStatusCancelled).
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repo) InsertLink(ctx context.Context, db *gorm.DB, link *collectiondomain.CollectionOrderCycle) error {
	return db.WithContext(ctx).Create(link).Error
}

func (r *repo) FindLinkByCycle(ctx context.Context, db *gorm.DB, cycleID snowflake.ID) (*collectiondomain.CollectionOrderCycle, error) {
	var link collectiondomain.CollectionOrderCycle
	err := db.WithContext(ctx).First(&link, "cycle_id = ?", cycleID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *repo) ListLinksByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]collectiondomain.CollectionOrderCycle, error) {
	var links []collectiondomain.CollectionOrderCycle
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&links).Error
	return links, err
}
