package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cobro/internal/billingcycle"
	"github.com/smallbiznis/cobro/internal/catalog"
	"github.com/smallbiznis/cobro/internal/clock"
	"github.com/smallbiznis/cobro/internal/collection"
	"github.com/smallbiznis/cobro/internal/config"
	"github.com/smallbiznis/cobro/internal/customer"
	"github.com/smallbiznis/cobro/internal/dispatch"
	"github.com/smallbiznis/cobro/internal/logger"
	"github.com/smallbiznis/cobro/internal/migration"
	"github.com/smallbiznis/cobro/internal/ordering"
	"github.com/smallbiznis/cobro/internal/scheduler"
	"github.com/smallbiznis/cobro/internal/subscription"
	"github.com/smallbiznis/cobro/pkg/db"
	"go.uber.org/fx"
)

// Scheduler-only worker: runs the daily jobs without the HTTP surface.
// Restrict jobs per instance with SCHEDULER_ENABLED_JOBS.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		customer.Module,
		catalog.Module,
		subscription.Module,
		billingcycle.Module,
		ordering.Module,
		collection.Module,
		dispatch.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
