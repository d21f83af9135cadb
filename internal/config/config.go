package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/smallbiznis/cobro/pkg/db"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPPort    string
	LogLevel    string

	DB db.Config

	Scheduler SchedulerConfig
}

// SchedulerConfig carries the tunables for the daily jobs.
type SchedulerConfig struct {
	// DailyAt is a cron spec (minute hour dom month dow) for the daily run.
	DailyAt string
	// EnabledJobs restricts RunOnce to the named jobs; empty means all.
	EnabledJobs []string

	BatchSize         int
	JobTimeoutSeconds int
	GracePeriodDays   int
	LateFeePercent    float64
	MaxRetries        int
	PaymentTermDays   int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "cobro"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPPort:    getenv("HTTP_PORT", "8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		DB: db.Config{
			Type:            getenv("DATABASE_TYPE", "postgres"),
			DSN:             getenv("DATABASE_DSN", ""),
			Host:            getenv("DATABASE_HOST", "localhost"),
			Port:            getenv("DATABASE_PORT", "5432"),
			Name:            getenv("DATABASE_NAME", "cobro"),
			User:            getenv("DATABASE_USER", "postgres"),
			Password:        getenv("DATABASE_PASSWORD", ""),
			SSLMode:         getenv("DATABASE_SSLMODE", "disable"),
			MaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
			MaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
			ConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		},
		Scheduler: SchedulerConfig{
			DailyAt:           getenv("SCHEDULER_DAILY_AT", "0 5 * * *"),
			EnabledJobs:       parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
			BatchSize:         getenvInt("SCHEDULER_BATCH_SIZE", 50),
			JobTimeoutSeconds: getenvInt("SCHEDULER_JOB_TIMEOUT_SECONDS", 30),
			GracePeriodDays:   getenvInt("BILLING_GRACE_PERIOD_DAYS", 10),
			LateFeePercent:    getenvFloat("BILLING_LATE_FEE_PERCENT", 0.20),
			MaxRetries:        getenvInt("DISPATCH_MAX_RETRIES", 3),
			PaymentTermDays:   getenvInt("BILLING_PAYMENT_TERM_DAYS", 10),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
