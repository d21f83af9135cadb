package scheduler

import (
	"time"

	"github.com/smallbiznis/cobro/internal/config"
)

// Config controls the daily firing spec, per-job enablement and timeouts.
type Config struct {
	// DailyAt is a cron spec for the daily run.
	DailyAt string
	// EnabledJobs restricts RunOnce to the named jobs; empty means all.
	EnabledJobs []string
	JobTimeout  time.Duration
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		DailyAt:     cfg.Scheduler.DailyAt,
		EnabledJobs: cfg.Scheduler.EnabledJobs,
		JobTimeout:  time.Duration(cfg.Scheduler.JobTimeoutSeconds) * time.Second,
	}
}

func DefaultConfig() Config {
	return Config{
		DailyAt:    "0 5 * * *",
		JobTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.DailyAt == "" {
		c.DailyAt = defaults.DailyAt
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
