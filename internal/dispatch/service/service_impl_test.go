package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	collectiondomain "github.com/smallbiznis/cobro/internal/collection/domain"
	customerdomain "github.com/smallbiznis/cobro/internal/customer/domain"
	dispatchdomain "github.com/smallbiznis/cobro/internal/dispatch/domain"
	"github.com/smallbiznis/cobro/internal/dispatch/repository"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	friday = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	monday = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
)

type testEnv struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  dispatchdomain.Service
	t    *testing.T
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
		&subscriptiondomain.Subscription{},
		&collectiondomain.CollectionOrder{},
		&dispatchdomain.Driver{},
		&dispatchdomain.Vehicle{},
		&dispatchdomain.RouteSheet{},
		&dispatchdomain.RouteSheetDetail{},
		&dispatchdomain.CancellationOrder{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	svc := New(ServiceParam{
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   repository.Provide(),
		Config: Config{MaxRetries: 3},
	})

	return &testEnv{db: conn, node: node, svc: svc, t: t}
}

func (e *testEnv) seedFleet() {
	e.t.Helper()
	if err := e.db.Create(&dispatchdomain.Driver{ID: e.node.Generate(), Name: "Driver", Active: true}).Error; err != nil {
		e.t.Fatalf("seed driver: %v", err)
	}
	if err := e.db.Create(&dispatchdomain.Vehicle{ID: e.node.Generate(), Plate: "AB-123", Active: true}).Error; err != nil {
		e.t.Fatalf("seed vehicle: %v", err)
	}
}

func (e *testEnv) seedFailedDelivery(routeDate time.Time, retries int) snowflake.ID {
	e.t.Helper()
	driverID := e.node.Generate()
	vehicleID := e.node.Generate()
	if err := e.db.Create(&dispatchdomain.Driver{ID: driverID, Name: "D", Active: true}).Error; err != nil {
		e.t.Fatalf("seed driver: %v", err)
	}
	if err := e.db.Create(&dispatchdomain.Vehicle{ID: vehicleID, Plate: "X", Active: true}).Error; err != nil {
		e.t.Fatalf("seed vehicle: %v", err)
	}

	sheetID := e.node.Generate()
	if err := e.db.Create(&dispatchdomain.RouteSheet{
		ID:        sheetID,
		RouteDate: routeDate,
		DriverID:  driverID,
		VehicleID: vehicleID,
		Status:    dispatchdomain.RouteSheetStatusCompleted,
	}).Error; err != nil {
		e.t.Fatalf("seed route sheet: %v", err)
	}

	detailID := e.node.Generate()
	if err := e.db.Create(&dispatchdomain.RouteSheetDetail{
		ID:             detailID,
		RouteSheetID:   sheetID,
		OrderID:        e.node.Generate(),
		CustomerID:     e.node.Generate(),
		DeliveryStatus: dispatchdomain.DeliveryStatusFailed,
		RetryCount:     retries,
	}).Error; err != nil {
		e.t.Fatalf("seed detail: %v", err)
	}
	return detailID
}

func (e *testEnv) detail(id snowflake.ID) *dispatchdomain.RouteSheetDetail {
	e.t.Helper()
	var detail dispatchdomain.RouteSheetDetail
	if err := e.db.First(&detail, "id = ?", id).Error; err != nil {
		e.t.Fatalf("load detail: %v", err)
	}
	return &detail
}

func TestReassignFailedDeliveriesToNextBusinessDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedFleet()
	detailID := env.seedFailedDelivery(friday, 0)

	// Running on saturday: friday's failure moves to monday.
	saturday := friday.AddDate(0, 0, 1)
	summary, err := env.svc.ReassignFailedDeliveries(ctx, saturday)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected one reassignment, got %+v", summary)
	}

	original := env.detail(detailID)
	if original.RescheduleDate == nil || !original.RescheduleDate.Equal(monday) {
		t.Fatalf("expected reschedule date %s, got %v", monday, original.RescheduleDate)
	}

	var sheet dispatchdomain.RouteSheet
	if err := env.db.First(&sheet, "route_date = ? AND status <> ?", monday, dispatchdomain.RouteSheetStatusCompleted).Error; err != nil {
		t.Fatalf("expected a monday route sheet: %v", err)
	}
	var replacement dispatchdomain.RouteSheetDetail
	if err := env.db.First(&replacement, "route_sheet_id = ?", sheet.ID).Error; err != nil {
		t.Fatalf("expected replacement detail: %v", err)
	}
	if replacement.DeliveryStatus != dispatchdomain.DeliveryStatusPending {
		t.Fatalf("replacement must start PENDING, got %s", replacement.DeliveryStatus)
	}
	if replacement.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", replacement.RetryCount)
	}
	if replacement.OrderID != original.OrderID || replacement.CustomerID != original.CustomerID {
		t.Fatalf("replacement must carry the original order and customer")
	}
}

func TestReassignFailedDeliveriesIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedFleet()
	env.seedFailedDelivery(friday, 0)

	saturday := friday.AddDate(0, 0, 1)
	if _, err := env.svc.ReassignFailedDeliveries(ctx, saturday); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := env.svc.ReassignFailedDeliveries(ctx, saturday)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatalf("rescheduled detail must not be picked up again, got %+v", summary)
	}

	var count int64
	if err := env.db.Model(&dispatchdomain.RouteSheetDetail{}).Count(&count).Error; err != nil {
		t.Fatalf("count details: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected original + one replacement, got %d details", count)
	}
}

func TestReassignFailedDeliveriesHonorsRetryLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedFleet()
	exhausted := env.seedFailedDelivery(friday, 3)

	saturday := friday.AddDate(0, 0, 1)
	summary, err := env.svc.ReassignFailedDeliveries(ctx, saturday)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatalf("exhausted detail must be skipped, got %+v", summary)
	}

	detail := env.detail(exhausted)
	if detail.RescheduleDate != nil {
		t.Fatalf("exhausted detail must stay put")
	}

	stats, err := env.svc.ReassignmentStats(ctx, saturday)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.MaxRetriesReached != 1 {
		t.Fatalf("expected 1 exhausted task in stats, got %+v", stats)
	}
}

func TestReassignFailedDeliveriesNoFleetAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	detailID := env.seedFailedDelivery(friday, 0)

	// Drain the fleet so no driver is available for the new sheet.
	if err := env.db.Model(&dispatchdomain.Driver{}).Where("active = ?", true).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate drivers: %v", err)
	}

	saturday := friday.AddDate(0, 0, 1)
	summary, err := env.svc.ReassignFailedDeliveries(ctx, saturday)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected fleet failure surfaced in summary, got %+v", summary)
	}

	detail := env.detail(detailID)
	if detail.RescheduleDate != nil {
		t.Fatalf("failed reassignment must not set reschedule date")
	}
}

func TestReassignFailedPickups(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedFleet()

	scheduled := friday
	pickupID := env.node.Generate()
	if err := env.db.Create(&dispatchdomain.CancellationOrder{
		ID:             pickupID,
		SubscriptionID: env.node.Generate(),
		CustomerID:     env.node.Generate(),
		Status:         dispatchdomain.PickupStatusPending,
		ScheduledDate:  &scheduled,
	}).Error; err != nil {
		t.Fatalf("seed pickup: %v", err)
	}

	saturday := friday.AddDate(0, 0, 1)
	summary, err := env.svc.ReassignFailedPickups(ctx, saturday)
	if err != nil {
		t.Fatalf("reassign pickups: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected one pickup reassignment, got %+v", summary)
	}

	var pickup dispatchdomain.CancellationOrder
	if err := env.db.First(&pickup, "id = ?", pickupID).Error; err != nil {
		t.Fatalf("load pickup: %v", err)
	}
	if pickup.Status != dispatchdomain.PickupStatusRescheduled {
		t.Fatalf("expected RESCHEDULED, got %s", pickup.Status)
	}
	if pickup.RescheduleDate == nil || !pickup.RescheduleDate.Equal(monday) {
		t.Fatalf("expected reschedule to %s, got %v", monday, pickup.RescheduleDate)
	}
	if pickup.RescheduledCount != 1 {
		t.Fatalf("expected rescheduled count 1, got %d", pickup.RescheduledCount)
	}
	if pickup.RouteSheetID == nil {
		t.Fatalf("expected pickup attached to a route sheet")
	}
}

func (e *testEnv) seedPickup(status dispatchdomain.PickupStatus, scheduled time.Time, rescheduledCount int) snowflake.ID {
	e.t.Helper()
	id := e.node.Generate()
	if err := e.db.Create(&dispatchdomain.CancellationOrder{
		ID:               id,
		SubscriptionID:   e.node.Generate(),
		CustomerID:       e.node.Generate(),
		Status:           status,
		ScheduledDate:    &scheduled,
		RescheduledCount: rescheduledCount,
	}).Error; err != nil {
		e.t.Fatalf("seed pickup: %v", err)
	}
	return id
}

func TestReassignFailedPickupsIncludesCancelled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedFleet()

	// A pickup the driver attempted and marked CANCELLED must re-enter
	// the retry loop, not sit in limbo.
	pickupID := env.seedPickup(dispatchdomain.PickupStatusCancelled, friday, 0)

	saturday := friday.AddDate(0, 0, 1)
	summary, err := env.svc.ReassignFailedPickups(ctx, saturday)
	if err != nil {
		t.Fatalf("reassign pickups: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected cancelled pickup to be reassigned, got %+v", summary)
	}

	var pickup dispatchdomain.CancellationOrder
	if err := env.db.First(&pickup, "id = ?", pickupID).Error; err != nil {
		t.Fatalf("load pickup: %v", err)
	}
	if pickup.Status != dispatchdomain.PickupStatusRescheduled {
		t.Fatalf("expected RESCHEDULED, got %s", pickup.Status)
	}
	if pickup.RescheduledCount != 1 {
		t.Fatalf("expected rescheduled count 1, got %d", pickup.RescheduledCount)
	}
}

func TestReassignmentStatsCountsPickups(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// One pickup still waiting for a pass, one past the retry bound, one
	// already moved onto today.
	env.seedPickup(dispatchdomain.PickupStatusPending, friday, 0)
	env.seedPickup(dispatchdomain.PickupStatusCancelled, friday, 3)
	movedID := env.seedPickup(dispatchdomain.PickupStatusPending, friday, 1)
	if err := env.db.Model(&dispatchdomain.CancellationOrder{}).
		Where("id = ?", movedID).
		Update("reschedule_date", monday).Error; err != nil {
		t.Fatalf("set reschedule date: %v", err)
	}

	stats, err := env.svc.ReassignmentStats(ctx, monday)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingReassignment != 1 {
		t.Fatalf("expected 1 pending pickup, got %+v", stats)
	}
	if stats.MaxRetriesReached != 1 {
		t.Fatalf("expected exhausted pickup surfaced, got %+v", stats)
	}
	if stats.RescheduledToday != 1 {
		t.Fatalf("expected 1 pickup rescheduled today, got %+v", stats)
	}
}

func TestReassignFailedDeliveriesHonorsBatchSize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedFleet()
	env.seedFailedDelivery(friday, 0)
	env.seedFailedDelivery(friday, 0)

	small := New(ServiceParam{
		DB:     env.db,
		Log:    zap.NewNop(),
		GenID:  env.node,
		Repo:   repository.Provide(),
		Config: Config{MaxRetries: 3, BatchSize: 1},
	})

	saturday := friday.AddDate(0, 0, 1)
	summary, err := small.ReassignFailedDeliveries(ctx, saturday)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("expected batch capped at 1, got %+v", summary)
	}

	// The next pass drains the remainder.
	summary, err = small.ReassignFailedDeliveries(ctx, saturday)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("expected remaining delivery on second pass, got %+v", summary)
	}
}

func TestCreatePickupOrderSchedulesNextBusinessDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pickup, err := env.svc.CreatePickupOrder(ctx, env.node.Generate(), env.node.Generate())
	if err != nil {
		t.Fatalf("create pickup: %v", err)
	}
	if pickup.Status != dispatchdomain.PickupStatusPending {
		t.Fatalf("expected PENDING, got %s", pickup.Status)
	}
	if pickup.ScheduledDate == nil {
		t.Fatalf("expected a scheduled date")
	}
	wd := pickup.ScheduledDate.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		t.Fatalf("pickup scheduled on a weekend: %s", pickup.ScheduledDate)
	}
}

func TestMarkDeliveryStatusDeliveredIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedFleet()
	detailID := env.seedFailedDelivery(friday, 0)

	if err := env.svc.MarkDeliveryStatus(ctx, detailID, dispatchdomain.DeliveryStatusDelivered); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	// A later FAILED report must not reopen a delivered stop.
	if err := env.svc.MarkDeliveryStatus(ctx, detailID, dispatchdomain.DeliveryStatusFailed); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	detail := env.detail(detailID)
	if detail.DeliveryStatus != dispatchdomain.DeliveryStatusDelivered {
		t.Fatalf("expected DELIVERED to stick, got %s", detail.DeliveryStatus)
	}
}
