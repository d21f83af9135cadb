package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	"github.com/smallbiznis/cobro/internal/billingcycle/repository"
	catalogdomain "github.com/smallbiznis/cobro/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/cobro/internal/catalog/service"
	"github.com/smallbiznis/cobro/internal/clock"
	customerdomain "github.com/smallbiznis/cobro/internal/customer/domain"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/cobro/internal/subscription/repository"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db    *gorm.DB
	node  *snowflake.Node
	svc   billingcycledomain.Service
	cfg   Config
	repo  billingcycledomain.Repository
	clk   *clock.FakeClock
	t     *testing.T
	now   time.Time
	today time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = conn.AutoMigrate(
		&customerdomain.Customer{},
		&catalogdomain.Plan{},
		&catalogdomain.PlanProduct{},
		&subscriptiondomain.Subscription{},
		&billingcycledomain.Cycle{},
		&billingcycledomain.CycleDetail{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	now := time.Now().UTC()
	clk := clock.NewFakeClock(now)

	log := zap.NewNop()
	catalogSvc := catalogservice.New(catalogservice.ServiceParam{DB: conn, Log: log})
	cfg := Config{GracePeriodDays: 10, LateFeePercent: 0.20, PaymentTermDays: 10}
	repo := repository.Provide()
	svc := New(ServiceParam{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Repo:     repo,
		SubsRepo: subscriptionrepository.Provide(),
		Catalog:  catalogSvc,
		Clock:    clk,
		Config:   cfg,
	})

	return &testEnv{
		db:    conn,
		node:  node,
		svc:   svc,
		cfg:   cfg,
		repo:  repo,
		clk:   clk,
		t:     t,
		now:   now,
		today: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
}

func (e *testEnv) seedCustomer() snowflake.ID {
	e.t.Helper()
	id := e.node.Generate()
	if err := e.db.Create(&customerdomain.Customer{
		ID:   id,
		Name: "Customer " + id.String(),
	}).Error; err != nil {
		e.t.Fatalf("seed customer: %v", err)
	}
	return id
}

func (e *testEnv) seedPlan(price float64, cycleDays int, quantities ...int) (snowflake.ID, []snowflake.ID) {
	e.t.Helper()
	planID := e.node.Generate()
	if err := e.db.Create(&catalogdomain.Plan{
		ID:        planID,
		Name:      "Plan " + planID.String(),
		Price:     decimal.NewFromFloat(price),
		CycleDays: cycleDays,
		Active:    true,
	}).Error; err != nil {
		e.t.Fatalf("seed plan: %v", err)
	}

	productIDs := make([]snowflake.ID, 0, len(quantities))
	for _, qty := range quantities {
		productID := e.node.Generate()
		productIDs = append(productIDs, productID)
		if err := e.db.Create(&catalogdomain.PlanProduct{
			ID:        e.node.Generate(),
			PlanID:    planID,
			ProductID: productID,
			Quantity:  qty,
			UnitPrice: decimal.NewFromFloat(price).Div(decimal.NewFromInt(int64(max(qty, 1)))).Round(2),
		}).Error; err != nil {
			e.t.Fatalf("seed plan product: %v", err)
		}
	}
	return planID, productIDs
}

func (e *testEnv) seedSubscription(customerID, planID snowflake.ID, status subscriptiondomain.SubscriptionStatus) snowflake.ID {
	e.t.Helper()
	id := e.node.Generate()
	if err := e.db.Create(&subscriptiondomain.Subscription{
		ID:         id,
		CustomerID: customerID,
		PlanID:     planID,
		Status:     status,
		StartAt:    e.today.AddDate(0, -1, 0),
	}).Error; err != nil {
		e.t.Fatalf("seed subscription: %v", err)
	}
	return id
}

func (e *testEnv) cycleByID(id snowflake.ID) *billingcycledomain.Cycle {
	e.t.Helper()
	cycle, err := e.repo.FindCycleByID(context.Background(), e.db, id)
	if err != nil {
		e.t.Fatalf("load cycle: %v", err)
	}
	return cycle
}

func TestNextCycleNumberStartsAtOne(t *testing.T) {
	env := newTestEnv(t)
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)
	subID := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)

	n, err := env.svc.NextCycleNumber(context.Background(), subID)
	if err != nil {
		t.Fatalf("next cycle number: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
}

func TestCreateCycleSequentialNumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(150, 30, 6)
	subID := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)

	for want := 1; want <= 3; want++ {
		start := env.today.AddDate(0, 0, (want-1)*30)
		cycle, err := env.svc.CreateCycle(ctx, billingcycledomain.CreateCycleRequest{
			SubscriptionID: subID,
			Start:          start,
			End:            start.AddDate(0, 0, 29),
			DueDate:        start.AddDate(0, 0, 39),
		})
		if err != nil {
			t.Fatalf("create cycle %d: %v", want, err)
		}
		if cycle.CycleNumber != want {
			t.Fatalf("expected cycle number %d, got %d", want, cycle.CycleNumber)
		}
	}

	report, err := env.svc.VerifyIntegrity(ctx, subID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected clean sequence, got gaps=%v duplicates=%v", report.Gaps, report.Duplicates)
	}
}

func TestCreateCycleDerivesAmountAndDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.seedCustomer()
	planID, productIDs := env.seedPlan(120, 30, 6)
	subID := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)

	cycle, err := env.svc.CreateCycle(ctx, billingcycledomain.CreateCycleRequest{
		SubscriptionID: subID,
		Start:          env.today,
		End:            env.today.AddDate(0, 0, 29),
		DueDate:        env.today.AddDate(0, 0, 39),
	})
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}

	if !cycle.TotalAmount.IsPositive() {
		t.Fatalf("expected derived amount, got %s", cycle.TotalAmount)
	}
	assert.True(t, cycle.PendingBalance.Equal(cycle.TotalAmount))

	details, err := env.svc.ListDetails(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("list details: %v", err)
	}
	if len(details) != 1 {
		t.Fatalf("expected 1 detail line, got %d", len(details))
	}
	if details[0].ProductID != productIDs[0] {
		t.Fatalf("detail product mismatch")
	}
	if details[0].PlannedQuantity != 6 || details[0].RemainingBalance != 6 {
		t.Fatalf("expected planned=remaining=6, got %d/%d", details[0].PlannedQuantity, details[0].RemainingBalance)
	}
}

func TestCreateCycleRejectsInvalidPeriod(t *testing.T) {
	env := newTestEnv(t)
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)
	subID := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)

	_, err := env.svc.CreateCycle(context.Background(), billingcycledomain.CreateCycleRequest{
		SubscriptionID: subID,
		Start:          env.today,
		End:            env.today,
		DueDate:        env.today,
	})
	assert.ErrorIs(t, err, billingcycledomain.ErrInvalidPeriod)
}

func TestRenumberSequenceClosesGaps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)
	subID := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)

	// Seed a broken sequence directly: 2, 5, 9.
	for i, n := range []int{2, 5, 9} {
		start := env.today.AddDate(0, 0, i*30)
		if err := env.db.Create(&billingcycledomain.Cycle{
			ID:             env.node.Generate(),
			SubscriptionID: subID,
			CycleNumber:    n,
			CycleStart:     start,
			CycleEnd:       start.AddDate(0, 0, 29),
			PaymentDueDate: start.AddDate(0, 0, 39),
			TotalAmount:    decimal.NewFromInt(100),
			PendingBalance: decimal.NewFromInt(100),
			PaymentStatus:  billingcycledomain.PaymentStatusPending,
		}).Error; err != nil {
			t.Fatalf("seed cycle: %v", err)
		}
	}

	report, err := env.svc.VerifyIntegrity(ctx, subID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.OK() {
		t.Fatalf("expected gaps before renumber")
	}

	if err := env.svc.RenumberSequence(ctx, subID); err != nil {
		t.Fatalf("renumber: %v", err)
	}

	report, err = env.svc.VerifyIntegrity(ctx, subID)
	if err != nil {
		t.Fatalf("verify after renumber: %v", err)
	}
	if !report.OK() || report.MaxNumber != 3 {
		t.Fatalf("expected 1..3 after renumber, got max=%d gaps=%v", report.MaxNumber, report.Gaps)
	}

	// Chronological order preserved.
	cycles, err := env.svc.ListCycles(ctx, subID)
	if err != nil {
		t.Fatalf("list cycles: %v", err)
	}
	for i := 1; i < len(cycles); i++ {
		if cycles[i-1].CycleNumber < cycles[i].CycleNumber &&
			cycles[i-1].CycleStart.After(cycles[i].CycleStart) {
			t.Fatalf("renumber broke chronological order")
		}
	}
}

func TestRenumberSequenceSurvivesHighExistingNumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)
	subID := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)

	// Numbers sitting right where a fixed parking offset would land.
	for i, n := range []int{1003, 1004, 1005} {
		start := env.today.AddDate(0, 0, i*30)
		if err := env.db.Create(&billingcycledomain.Cycle{
			ID:             env.node.Generate(),
			SubscriptionID: subID,
			CycleNumber:    n,
			CycleStart:     start,
			CycleEnd:       start.AddDate(0, 0, 29),
			PaymentDueDate: start.AddDate(0, 0, 39),
			TotalAmount:    decimal.NewFromInt(100),
			PendingBalance: decimal.NewFromInt(100),
			PaymentStatus:  billingcycledomain.PaymentStatusPending,
		}).Error; err != nil {
			t.Fatalf("seed cycle: %v", err)
		}
	}

	if err := env.svc.RenumberSequence(ctx, subID); err != nil {
		t.Fatalf("renumber: %v", err)
	}

	report, err := env.svc.VerifyIntegrity(ctx, subID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.OK() || report.MaxNumber != 3 {
		t.Fatalf("expected clean 1..3, got max=%d gaps=%v duplicates=%v",
			report.MaxNumber, report.Gaps, report.Duplicates)
	}
}

func TestEnsureActiveCycleIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)
	subID := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)

	first, err := env.svc.EnsureActiveCycle(ctx, subID, env.now)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	second, err := env.svc.EnsureActiveCycle(ctx, subID, env.now)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same cycle, got %s and %s", first.ID, second.ID)
	}
	if first.CycleNumber != 1 {
		t.Fatalf("expected cycle number 1, got %d", first.CycleNumber)
	}
}

func TestEnsureActiveCycleRejectsInactiveSubscription(t *testing.T) {
	env := newTestEnv(t)
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)
	subID := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusCancelled)

	_, err := env.svc.EnsureActiveCycle(context.Background(), subID, env.now)
	assert.ErrorIs(t, err, billingcycledomain.ErrSubscriptionNotActive)
}
