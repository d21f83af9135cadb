package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	collectiondomain "github.com/smallbiznis/cobro/internal/collection/domain"
	customerdomain "github.com/smallbiznis/cobro/internal/customer/domain"
	orderingdomain "github.com/smallbiznis/cobro/internal/ordering/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	CustomerRepo customerdomain.Repository
	OrderRepo    collectiondomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	customerRepo customerdomain.Repository
	orderRepo    collectiondomain.Repository
}

func New(p ServiceParam) orderingdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("ordering.service"),
		genID:        p.GenID,
		customerRepo: p.CustomerRepo,
		orderRepo:    p.OrderRepo,
	}
}

func (s *Service) CreateOrder(ctx context.Context, req orderingdomain.CreateOrderRequest) (snowflake.ID, error) {
	if req.CustomerID == 0 {
		return 0, orderingdomain.ValidationError("customer_id", "is required")
	}
	if req.OrderDate.IsZero() {
		return 0, orderingdomain.ValidationError("order_date", "is required")
	}
	if req.ScheduledDeliveryDate.IsZero() {
		return 0, orderingdomain.ValidationError("scheduled_delivery_date", "is required")
	}
	if req.ScheduledDeliveryDate.Before(req.OrderDate) {
		return 0, orderingdomain.ValidationError("scheduled_delivery_date", "before order date")
	}
	if _, err := s.customerRepo.FindByID(ctx, s.db, req.CustomerID); err != nil {
		return 0, orderingdomain.ValidationError("customer_id", "unknown customer")
	}

	now := time.Now().UTC()
	order := &collectiondomain.CollectionOrder{
		ID:                    s.genID.Generate(),
		CustomerID:            req.CustomerID,
		OrderDate:             req.OrderDate,
		ScheduledDeliveryDate: req.ScheduledDeliveryDate,
		Status:                collectiondomain.OrderStatusPending,
		IsAutomated:           req.IsAutomated,
		Notes:                 req.Notes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.orderRepo.InsertOrder(ctx, s.db, order); err != nil {
		return 0, err
	}
	return order.ID, nil
}
