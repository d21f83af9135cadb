package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(StartScheduler),
)

// StartScheduler wires the daily cron firing into the fx lifecycle. Jobs
// run in the background; fx shutdown stops the cron and cancels any run
// in flight.
func StartScheduler(lc fx.Lifecycle, log *zap.Logger, sched *Scheduler) {
	runCtx, cancel := context.WithCancel(context.Background())
	c := cron.New()

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			_, err := c.AddFunc(sched.cfg.DailyAt, func() {
				if err := sched.RunOnce(runCtx); err != nil {
					log.Warn("scheduled run failed", zap.Error(err))
				}
			})
			if err != nil {
				cancel()
				return err
			}
			c.Start()
			log.Info("scheduler started", zap.String("daily_at", sched.cfg.DailyAt))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			stopped := c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}
