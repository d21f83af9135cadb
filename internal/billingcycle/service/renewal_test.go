package service

import (
	"context"
	"testing"

	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	catalogservice "github.com/smallbiznis/cobro/internal/catalog/service"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/cobro/internal/subscription/repository"
	"go.uber.org/zap"
)

func TestRenewDueSubscriptionsOpensFirstCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)
	subID := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)

	summary, err := env.svc.RenewDueSubscriptions(ctx, env.now)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 0 {
		t.Fatalf("expected one success, got %+v", summary)
	}

	cycles, err := env.svc.ListCycles(ctx, subID)
	if err != nil {
		t.Fatalf("list cycles: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}

	cycle := cycles[0]
	if cycle.CycleNumber != 1 {
		t.Fatalf("expected cycle number 1, got %d", cycle.CycleNumber)
	}
	if !cycle.CycleStart.Equal(env.today) {
		t.Fatalf("expected start %s, got %s", env.today, cycle.CycleStart)
	}
	if !cycle.CycleEnd.Equal(env.today.AddDate(0, 0, 29)) {
		t.Fatalf("expected 30-day window, got end %s", cycle.CycleEnd)
	}
	if !cycle.PaymentDueDate.Equal(cycle.CycleEnd.AddDate(0, 0, env.cfg.PaymentTermDays)) {
		t.Fatalf("expected due %d days after end, got %s", env.cfg.PaymentTermDays, cycle.PaymentDueDate)
	}
}

func TestRenewDueSubscriptionsSecondRunIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)
	subID := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)

	if _, err := env.svc.RenewDueSubscriptions(ctx, env.now); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := env.svc.RenewDueSubscriptions(ctx, env.now)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatalf("expected no work on second run, got %+v", summary)
	}

	cycles, err := env.svc.ListCycles(ctx, subID)
	if err != nil {
		t.Fatalf("list cycles: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle after double run, got %d", len(cycles))
	}
}

func TestRenewDueSubscriptionsChainsNumbersAcrossExpiredCycles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)
	subID := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)

	// An expired first cycle forces a renewal into number 2.
	start := env.today.AddDate(0, 0, -60)
	if _, err := env.svc.CreateCycle(ctx, billingcycledomain.CreateCycleRequest{
		SubscriptionID: subID,
		Start:          start,
		End:            start.AddDate(0, 0, 29),
		DueDate:        start.AddDate(0, 0, 39),
	}); err != nil {
		t.Fatalf("seed expired cycle: %v", err)
	}

	summary, err := env.svc.RenewDueSubscriptions(ctx, env.now)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected one renewal, got %+v", summary)
	}

	report, err := env.svc.VerifyIntegrity(ctx, subID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.OK() || report.MaxNumber != 2 {
		t.Fatalf("expected gapless 1..2, got max=%d gaps=%v dup=%v", report.MaxNumber, report.Gaps, report.Duplicates)
	}
}

func TestRenewDueSubscriptionsHonorsBatchSize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)
	env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)
	env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)

	small := New(ServiceParam{
		DB:       env.db,
		Log:      zap.NewNop(),
		GenID:    env.node,
		Repo:     env.repo,
		SubsRepo: subscriptionrepository.Provide(),
		Catalog:  catalogservice.New(catalogservice.ServiceParam{DB: env.db, Log: zap.NewNop()}),
		Config:   Config{BatchSize: 1},
	})

	summary, err := small.RenewDueSubscriptions(ctx, env.now)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("expected batch capped at 1, got %+v", summary)
	}

	// The second run picks up the subscription the cap deferred.
	summary, err = small.RenewDueSubscriptions(ctx, env.now)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected deferred subscription renewed, got %+v", summary)
	}
}

func TestRenewDueSubscriptionsSkipsInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)
	env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusCancelled)
	env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusPaused)

	summary, err := env.svc.RenewDueSubscriptions(ctx, env.now)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatalf("expected inactive subscriptions to be skipped, got %+v", summary)
	}
}

func TestRenewDueSubscriptionsIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customerID := env.seedCustomer()
	planID, _ := env.seedPlan(100, 30, 6)

	// One healthy subscription and one pointing at a missing plan.
	healthy := env.seedSubscription(customerID, planID, subscriptiondomain.SubscriptionStatusActive)
	broken := env.seedSubscription(customerID, env.node.Generate(), subscriptiondomain.SubscriptionStatusActive)

	summary, err := env.svc.RenewDueSubscriptions(ctx, env.now)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("expected 1 success and 1 failure, got %+v", summary)
	}

	cycles, err := env.svc.ListCycles(ctx, healthy)
	if err != nil {
		t.Fatalf("list cycles: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("healthy subscription should have renewed")
	}
	cycles, err = env.svc.ListCycles(ctx, broken)
	if err != nil {
		t.Fatalf("list cycles: %v", err)
	}
	if len(cycles) != 0 {
		t.Fatalf("broken subscription should not have a cycle")
	}
}
