package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/cobro/internal/catalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p ServiceParam) catalogdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("catalog.service"),
	}
}

func (s *Service) GetPlan(ctx context.Context, planID snowflake.ID) (*catalogdomain.Plan, error) {
	var plan catalogdomain.Plan
	err := s.db.WithContext(ctx).First(&plan, "id = ?", planID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogdomain.ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (s *Service) GetPlanProducts(ctx context.Context, planID snowflake.ID) ([]catalogdomain.PlanProduct, error) {
	var products []catalogdomain.PlanProduct
	err := s.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("product_id ASC").
		Find(&products).Error
	return products, err
}

func (s *Service) GetPlanPrice(ctx context.Context, planID snowflake.ID) (decimal.Decimal, error) {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return decimal.Zero, err
	}
	return plan.Price, nil
}

func (s *Service) CycleTotal(ctx context.Context, planID snowflake.ID) (decimal.Decimal, error) {
	products, err := s.GetPlanProducts(ctx, planID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(products) == 0 {
		return s.GetPlanPrice(ctx, planID)
	}

	total := decimal.Zero
	for _, product := range products {
		line := product.UnitPrice.Mul(decimal.NewFromInt(int64(product.Quantity)))
		total = total.Add(line)
	}
	return total.Round(2), nil
}
