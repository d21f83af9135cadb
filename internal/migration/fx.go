package migration

import (
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	catalogdomain "github.com/smallbiznis/cobro/internal/catalog/domain"
	collectiondomain "github.com/smallbiznis/cobro/internal/collection/domain"
	customerdomain "github.com/smallbiznis/cobro/internal/customer/domain"
	dispatchdomain "github.com/smallbiznis/cobro/internal/dispatch/domain"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		if conn.Dialector.Name() != "postgres" {
			// sqlite and mysql deployments derive the schema from the
			// models; the partial unique index is postgres-only.
			return conn.AutoMigrate(
				&customerdomain.Customer{},
				&catalogdomain.Plan{},
				&catalogdomain.PlanProduct{},
				&subscriptiondomain.Subscription{},
				&billingcycledomain.Cycle{},
				&billingcycledomain.CycleDetail{},
				&collectiondomain.CollectionOrder{},
				&collectiondomain.CollectionOrderCycle{},
				&dispatchdomain.Driver{},
				&dispatchdomain.Vehicle{},
				&dispatchdomain.RouteSheet{},
				&dispatchdomain.RouteSheetDetail{},
				&dispatchdomain.CancellationOrder{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
