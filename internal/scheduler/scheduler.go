package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	"github.com/smallbiznis/cobro/internal/clock"
	collectiondomain "github.com/smallbiznis/cobro/internal/collection/domain"
	dispatchdomain "github.com/smallbiznis/cobro/internal/dispatch/domain"
	obsmetrics "github.com/smallbiznis/cobro/internal/observability/metrics"
	"github.com/smallbiznis/cobro/pkg/batch"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

// ErrUnknownJob is returned by RunJob for names outside the job table.
var ErrUnknownJob = errors.New("unknown_job")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	CycleSvc      billingcycledomain.Service
	CollectionSvc collectiondomain.Service
	DispatchSvc   dispatchdomain.Service
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        Config `optional:"true"`
}

type Scheduler struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	cycleSvc      billingcycledomain.Service
	collectionSvc collectiondomain.Service
	dispatchSvc   dispatchdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.CycleSvc == nil || p.CollectionSvc == nil || p.DispatchSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:            p.DB,
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		cycleSvc:      p.CycleSvc,
		collectionSvc: p.CollectionSvc,
		dispatchSvc:   p.DispatchSvc,
	}, nil
}

// runJob wraps one job with a timeout, metrics and run-scoped logging.
// Deadline expiry is treated as a soft timeout: logged and counted, not
// propagated, so one slow job never fails the whole run.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) (batch.RunSummary, error),
) (batch.RunSummary, error) {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	runID := s.genID.Generate()
	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", runID.String()),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	summary, err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	schedMetrics.AddBatchProcessed(name, summary.Processed)
	schedMetrics.AddBatchFailed(name, summary.Failed)

	if err == nil {
		log.Info("job finished",
			zap.Int("processed", summary.Processed),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
		)
		return summary, nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return summary, nil
	}

	log.Error("job failed", zap.Error(err))
	return summary, fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) jobTable() []struct {
	Name string
	Run  func(ctx context.Context, now time.Time) (batch.RunSummary, error)
} {
	return []struct {
		Name string
		Run  func(ctx context.Context, now time.Time) (batch.RunSummary, error)
	}{
		{"renew_cycles", func(ctx context.Context, now time.Time) (batch.RunSummary, error) {
			return s.cycleSvc.RenewDueSubscriptions(ctx, now)
		}},
		{"late_fees", func(ctx context.Context, now time.Time) (batch.RunSummary, error) {
			return s.cycleSvc.ApplyLateFees(ctx, now)
		}},
		{"generate_collections", func(ctx context.Context, now time.Time) (batch.RunSummary, error) {
			return s.collectionSvc.GenerateDueCollections(ctx, now)
		}},
		{"reassign_deliveries", func(ctx context.Context, now time.Time) (batch.RunSummary, error) {
			return s.dispatchSvc.ReassignFailedDeliveries(ctx, now)
		}},
		{"reassign_pickups", func(ctx context.Context, now time.Time) (batch.RunSummary, error) {
			return s.dispatchSvc.ReassignFailedPickups(ctx, now)
		}},
	}
}

// RunOnce executes the full daily pass in dependency order: renewals
// before late fees, late fees before collection generation, then the two
// reassignment sweeps.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	now := s.clock.Now()

	for _, job := range s.jobTable() {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		run := job.Run
		_, jobErr := s.runJob(parent, job.Name, s.cfg.JobTimeout, func(ctx context.Context) (batch.RunSummary, error) {
			return run(ctx, now)
		})
		err = errors.Join(err, jobErr)
	}
	return err
}

// RunJob executes a single named job outside the daily schedule, for
// manual triggers. Enablement is not checked: a manual trigger is an
// explicit request.
func (s *Scheduler) RunJob(parent context.Context, name string) (batch.RunSummary, error) {
	now := s.clock.Now()
	for _, job := range s.jobTable() {
		if !strings.EqualFold(job.Name, name) {
			continue
		}
		run := job.Run
		return s.runJob(parent, job.Name, s.cfg.JobTimeout, func(ctx context.Context) (batch.RunSummary, error) {
			return run(ctx, now)
		})
	}
	return batch.RunSummary{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs means all jobs run (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// RunForever ticks RunOnce on a fixed interval. The cron-driven daily
// firing in the fx module is the production path; this loop serves
// interval-driven deployments and tests.
func (s *Scheduler) RunForever(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
