package service

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	catalogdomain "github.com/smallbiznis/cobro/internal/catalog/domain"
	"github.com/smallbiznis/cobro/internal/clock"
	"github.com/smallbiznis/cobro/internal/config"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	"github.com/smallbiznis/cobro/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config carries the billing knobs used by renewal and escalation.
type Config struct {
	GracePeriodDays int
	LateFeePercent  float64
	PaymentTermDays int
	BatchSize       int
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		GracePeriodDays: cfg.Scheduler.GracePeriodDays,
		LateFeePercent:  cfg.Scheduler.LateFeePercent,
		PaymentTermDays: cfg.Scheduler.PaymentTermDays,
		BatchSize:       cfg.Scheduler.BatchSize,
	}
}

func (c Config) withDefaults() Config {
	if c.GracePeriodDays <= 0 {
		c.GracePeriodDays = 10
	}
	if c.LateFeePercent <= 0 {
		c.LateFeePercent = 0.20
	}
	if c.PaymentTermDays <= 0 {
		c.PaymentTermDays = 10
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     billingcycledomain.Repository
	SubsRepo subscriptiondomain.Repository
	Catalog  catalogdomain.Service
	Clock    clock.Clock `optional:"true"`
	Config   Config      `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     billingcycledomain.Repository
	subsRepo subscriptiondomain.Repository
	catalog  catalogdomain.Service
	clock    clock.Clock
	cfg      Config
}

func New(p ServiceParam) billingcycledomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("billingcycle.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		subsRepo: p.SubsRepo,
		catalog:  p.Catalog,
		clock:    clk,
		cfg:      p.Config.withDefaults(),
	}
}

func (s *Service) GetCycle(ctx context.Context, id snowflake.ID) (*billingcycledomain.Cycle, error) {
	return s.repo.FindCycleByID(ctx, s.db, id)
}

func (s *Service) ListCycles(ctx context.Context, subscriptionID snowflake.ID) ([]billingcycledomain.Cycle, error) {
	return s.repo.ListCycles(ctx, s.db, subscriptionID)
}

func (s *Service) ListDetails(ctx context.Context, cycleID snowflake.ID) ([]billingcycledomain.CycleDetail, error) {
	return s.repo.ListDetails(ctx, s.db, cycleID)
}

func (s *Service) NextCycleNumber(ctx context.Context, subscriptionID snowflake.ID) (int, error) {
	max, err := s.repo.MaxCycleNumber(ctx, s.db, subscriptionID)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (s *Service) CreateCycle(ctx context.Context, req billingcycledomain.CreateCycleRequest) (*billingcycledomain.Cycle, error) {
	if !req.End.After(req.Start) {
		return nil, billingcycledomain.ErrInvalidPeriod
	}

	subscription, err := s.subsRepo.FindByID(ctx, s.db, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	if amount == nil {
		total, err := s.catalog.CycleTotal(ctx, subscription.PlanID)
		if err != nil {
			return nil, err
		}
		amount = &total
	}

	products, err := s.catalog.GetPlanProducts(ctx, subscription.PlanID)
	if err != nil {
		return nil, err
	}

	var cycle *billingcycledomain.Cycle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.repo.MaxCycleNumber(ctx, tx, req.SubscriptionID)
		if err != nil {
			return err
		}
		number++

		now := time.Now().UTC()
		cycle = &billingcycledomain.Cycle{
			ID:             s.genID.Generate(),
			SubscriptionID: req.SubscriptionID,
			CycleNumber:    number,
			CycleStart:     req.Start,
			CycleEnd:       req.End,
			PaymentDueDate: req.DueDate,
			TotalAmount:    amount.Round(2),
			PaymentStatus:  billingcycledomain.PaymentStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		cycle.RecomputePending()

		if err := s.repo.InsertCycle(ctx, tx, cycle); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return billingcycledomain.ErrCycleNumberConflict
			}
			return err
		}

		details := make([]billingcycledomain.CycleDetail, 0, len(products))
		for _, product := range products {
			details = append(details, billingcycledomain.CycleDetail{
				ID:               s.genID.Generate(),
				CycleID:          cycle.ID,
				ProductID:        product.ProductID,
				PlannedQuantity:  product.Quantity,
				RemainingBalance: product.Quantity,
				CreatedAt:        now,
				UpdatedAt:        now,
			})
		}
		return s.repo.InsertDetails(ctx, tx, details)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("cycle created",
		zap.String("subscription_id", cycle.SubscriptionID.String()),
		zap.Int("cycle_number", cycle.CycleNumber),
	)
	return cycle, nil
}

// RenumberSequence re-assigns 1..N ordered by cycle start date. The two-pass
// offset avoids tripping the unique index while numbers shift.
func (s *Service) RenumberSequence(ctx context.Context, subscriptionID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cycles, err := s.repo.ListCycles(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if len(cycles) == 0 {
			return nil
		}

		sort.SliceStable(cycles, func(i, j int) bool {
			if cycles[i].CycleStart.Equal(cycles[j].CycleStart) {
				return cycles[i].ID < cycles[j].ID
			}
			return cycles[i].CycleStart.Before(cycles[j].CycleStart)
		})

		// Park every cycle above the highest existing number so the
		// temporary values cannot collide with numbers still in place.
		offset := 0
		for _, cycle := range cycles {
			if cycle.CycleNumber > offset {
				offset = cycle.CycleNumber
			}
		}
		offset++
		for i, cycle := range cycles {
			if err := s.repo.UpdateCycleNumber(ctx, tx, cycle.ID, offset+i); err != nil {
				return err
			}
		}
		for i, cycle := range cycles {
			if err := s.repo.UpdateCycleNumber(ctx, tx, cycle.ID, i+1); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) VerifyIntegrity(ctx context.Context, subscriptionID snowflake.ID) (billingcycledomain.IntegrityReport, error) {
	report := billingcycledomain.IntegrityReport{SubscriptionID: subscriptionID}

	numbers, err := s.repo.ListCycleNumbers(ctx, s.db, subscriptionID)
	if err != nil {
		return report, err
	}
	report.CycleCount = len(numbers)
	if len(numbers) == 0 {
		return report, nil
	}

	seen := map[int]int{}
	for _, n := range numbers {
		seen[n]++
		if n > report.MaxNumber {
			report.MaxNumber = n
		}
	}
	for n, count := range seen {
		if count > 1 {
			report.Duplicates = append(report.Duplicates, n)
		}
	}
	for n := 1; n <= report.MaxNumber; n++ {
		if seen[n] == 0 {
			report.Gaps = append(report.Gaps, n)
		}
	}
	sort.Ints(report.Duplicates)
	sort.Ints(report.Gaps)
	return report, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
