package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	collectiondomain "github.com/smallbiznis/cobro/internal/collection/domain"
	"github.com/smallbiznis/cobro/internal/config"
	customerdomain "github.com/smallbiznis/cobro/internal/customer/domain"
	orderingdomain "github.com/smallbiznis/cobro/internal/ordering/domain"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	"github.com/smallbiznis/cobro/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config bounds the daily generation batch.
type Config struct {
	BatchSize int
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		BatchSize: cfg.Scheduler.BatchSize,
	}
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         collectiondomain.Repository
	CycleRepo    billingcycledomain.Repository
	SubsRepo     subscriptiondomain.Repository
	CustomerRepo customerdomain.Repository
	Ordering     orderingdomain.Service
	Config       Config `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         collectiondomain.Repository
	cycleRepo    billingcycledomain.Repository
	subsRepo     subscriptiondomain.Repository
	customerRepo customerdomain.Repository
	ordering     orderingdomain.Service
	cfg          Config
}

func New(p ServiceParam) collectiondomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("collection.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		cycleRepo:    p.CycleRepo,
		subsRepo:     p.SubsRepo,
		customerRepo: p.CustomerRepo,
		ordering:     p.Ordering,
		cfg:          p.Config.withDefaults(),
	}
}

func (s *Service) GetOrder(ctx context.Context, orderID snowflake.ID) (*collectiondomain.CollectionOrder, []collectiondomain.CollectionOrderCycle, error) {
	order, err := s.repo.FindOrderByID(ctx, s.db, orderID)
	if err != nil {
		return nil, nil, err
	}
	links, err := s.repo.ListLinksByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, links, nil
}

func (s *Service) ListOrders(ctx context.Context, filter collectiondomain.ListOrdersFilter) ([]collectiondomain.CollectionOrder, pagination.PageInfo, error) {
	return s.repo.ListOrders(ctx, s.db, filter)
}

// CancelOrder logically cancels an order. Orders whose linked cycles have
// received any payment cannot be cancelled.
func (s *Service) CancelOrder(ctx context.Context, orderID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindOrderByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == collectiondomain.OrderStatusCancelled {
			return nil
		}

		links, err := s.repo.ListLinksByOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, link := range links {
			cycle, err := s.cycleRepo.FindCycleByID(ctx, tx, link.CycleID)
			if err != nil {
				return err
			}
			if cycle.PaidAmount.IsPositive() {
				return collectiondomain.ErrOrderHasPayments
			}
		}

		order.Status = collectiondomain.OrderStatusCancelled
		return s.repo.SaveOrder(ctx, tx, order)
	})
}

// BuildRouteSheetRows flattens the day's collection orders into the
// document-generator contract. Amounts come from the linked cycles'
// pending balances, never from the order total. A non-nil zoneID keeps
// only customers in that zone.
func (s *Service) BuildRouteSheetRows(ctx context.Context, day time.Time, zoneID *snowflake.ID) ([]collectiondomain.CollectionRouteSheetRow, error) {
	orders, err := s.repo.ListOrdersForDay(ctx, s.db, day)
	if err != nil {
		return nil, err
	}

	rows := make([]collectiondomain.CollectionRouteSheetRow, 0, len(orders))
	for _, order := range orders {
		customer, err := s.customerRepo.FindByID(ctx, s.db, order.CustomerID)
		if err != nil {
			return nil, err
		}
		if zoneID != nil && (customer.ZoneID == nil || *customer.ZoneID != *zoneID) {
			continue
		}
		links, err := s.repo.ListLinksByOrder(ctx, s.db, order.ID)
		if err != nil {
			return nil, err
		}

		row := collectiondomain.CollectionRouteSheetRow{
			OrderID:      order.ID,
			CustomerID:   order.CustomerID,
			CustomerName: customer.Name,
			Address:      customer.Address,
			AmountDue:    decimal.Zero,
		}

		status := billingcycledomain.PaymentStatusPending
		for _, link := range links {
			cycle, err := s.cycleRepo.FindCycleByID(ctx, s.db, link.CycleID)
			if err != nil {
				return nil, err
			}
			row.AmountDue = row.AmountDue.Add(cycle.PendingBalance)
			if row.DueDate.IsZero() || cycle.PaymentDueDate.Before(row.DueDate) {
				row.DueDate = cycle.PaymentDueDate
			}
			status = worstStatus(status, billingcycledomain.ResolvePaymentStatus(*cycle))
			row.CreditLines = append(row.CreditLines, collectiondomain.CreditLine{
				CycleID:        cycle.ID,
				CycleNumber:    cycle.CycleNumber,
				PaymentDueDate: cycle.PaymentDueDate,
				PendingBalance: cycle.PendingBalance,
			})
		}
		row.AmountDue = row.AmountDue.Round(2)
		row.PaymentStatus = string(status)
		rows = append(rows, row)
	}
	return rows, nil
}

var statusSeverity = map[billingcycledomain.PaymentStatus]int{
	billingcycledomain.PaymentStatusPaid:     0,
	billingcycledomain.PaymentStatusCredited: 1,
	billingcycledomain.PaymentStatusPending:  2,
	billingcycledomain.PaymentStatusPartial:  3,
	billingcycledomain.PaymentStatusOverdue:  4,
}

func worstStatus(a, b billingcycledomain.PaymentStatus) billingcycledomain.PaymentStatus {
	if statusSeverity[b] > statusSeverity[a] {
		return b
	}
	return a
}
