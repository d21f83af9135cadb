package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/cobro/internal/catalog/domain"
	customerdomain "github.com/smallbiznis/cobro/internal/customer/domain"
	dispatchdomain "github.com/smallbiznis/cobro/internal/dispatch/domain"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         subscriptiondomain.Repository
	CustomerRepo customerdomain.Repository
	Catalog      catalogdomain.Service
	Dispatch     dispatchdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         subscriptiondomain.Repository
	customerRepo customerdomain.Repository
	catalog      catalogdomain.Service
	dispatch     dispatchdomain.Service
}

func New(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("subscription.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		catalog:      p.Catalog,
		dispatch:     p.Dispatch,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	if _, err := s.customerRepo.FindByID(ctx, s.db, req.CustomerID); err != nil {
		return nil, subscriptiondomain.ErrInvalidCustomer
	}
	if _, err := s.catalog.GetPlan(ctx, req.PlanID); err != nil {
		return nil, subscriptiondomain.ErrInvalidPlan
	}

	now := time.Now().UTC()
	startAt := req.StartAt
	if startAt.IsZero() {
		startAt = now
	}

	subscription := &subscriptiondomain.Subscription{
		ID:         s.genID.Generate(),
		CustomerID: req.CustomerID,
		PlanID:     req.PlanID,
		Status:     subscriptiondomain.SubscriptionStatusActive,
		StartAt:    startAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, subscription); err != nil {
		return nil, err
	}
	return subscription, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) ListActive(ctx context.Context) ([]subscriptiondomain.Subscription, error) {
	return s.repo.ListByStatus(ctx, s.db, subscriptiondomain.SubscriptionStatusActive)
}

// Cancel marks the subscription CANCELLED and opens a pickup order so the
// customer's equipment gets collected on a future route.
func (s *Service) Cancel(ctx context.Context, id snowflake.ID) error {
	subscription, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if subscription.Status == subscriptiondomain.SubscriptionStatusCancelled {
		return subscriptiondomain.ErrAlreadyCancelled
	}

	if err := s.repo.UpdateStatus(ctx, s.db, id, subscriptiondomain.SubscriptionStatusCancelled); err != nil {
		return err
	}

	if _, err := s.dispatch.CreatePickupOrder(ctx, subscription.ID, subscription.CustomerID); err != nil {
		s.log.Error("pickup order creation failed after cancel",
			zap.String("subscription_id", subscription.ID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
