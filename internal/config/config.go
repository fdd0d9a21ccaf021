package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

type Config struct {
	AppEnv     string
	AppVersion string
	HTTPAddr   string

	Database  DatabaseConfig
	Asaas     AsaasConfig
	Auth      AuthConfig
	Notify    NotificationConfig
	Redis     RedisConfig
	Sweep     SweepConfig
	Plans     PlanConfig
	Telemetry TelemetryConfig
	RateLimit RateLimitConfig
}

type DatabaseConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type AsaasConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type AuthConfig struct {
	JWTSecret      string
	SchedulerToken string
}

type NotificationConfig struct {
	Endpoint    string
	Token       string
	Timeout     time.Duration
	MaxAttempts int
	QueueKey    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SweepConfig struct {
	OverdueSchedule  string
	ReminderSchedule string
	Concurrency      int
	GracePeriodDays  int
}

// PlanConfig holds the price list in reais, keyed by plan id.
type PlanConfig struct {
	Version string
	Prices  map[string]float64
}

type TelemetryConfig struct {
	OTLPEndpoint string
	OTLPProtocol string
	SentryDSN    string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, EnvProduction)
}

const defaultPlanPrices = "free:0,bronze:39,prata:69,ouro:119"

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("APP_VERSION", "dev")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("ASAAS_BASE_URL", "https://api.asaas.com/v3")
	v.SetDefault("ASAAS_TIMEOUT", "10s")
	v.SetDefault("NOTIFICATION_TIMEOUT", "5s")
	v.SetDefault("NOTIFICATION_MAX_ATTEMPTS", 5)
	v.SetDefault("NOTIFICATION_QUEUE_KEY", "ecclesia:notifications")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("OVERDUE_SCHEDULE", "0 9 * * *")
	v.SetDefault("REMINDER_SCHEDULE", "0 10 * * *")
	v.SetDefault("SWEEP_CONCURRENCY", 4)
	v.SetDefault("GRACE_PERIOD_DAYS", 7)
	v.SetDefault("PLAN_CATALOG_VERSION", "2024-01")
	v.SetDefault("PLAN_PRICES", defaultPlanPrices)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "http")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)

	prices, err := ParsePlanPrices(v.GetString("PLAN_PRICES"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:     strings.TrimSpace(v.GetString("APP_ENV")),
		AppVersion: strings.TrimSpace(v.GetString("APP_VERSION")),
		HTTPAddr:   v.GetString("HTTP_ADDR"),
		Database: DatabaseConfig{
			Driver:       strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			DSN:          v.GetString("DB_DSN"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Asaas: AsaasConfig{
			APIKey:  strings.TrimSpace(v.GetString("ASAAS_API_KEY")),
			BaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("ASAAS_BASE_URL")), "/"),
			Timeout: v.GetDuration("ASAAS_TIMEOUT"),
		},
		Auth: AuthConfig{
			JWTSecret:      v.GetString("AUTH_JWT_SECRET"),
			SchedulerToken: strings.TrimSpace(v.GetString("SCHEDULER_TOKEN")),
		},
		Notify: NotificationConfig{
			Endpoint:    strings.TrimSpace(v.GetString("NOTIFICATION_ENDPOINT")),
			Token:       strings.TrimSpace(v.GetString("NOTIFICATION_TOKEN")),
			Timeout:     v.GetDuration("NOTIFICATION_TIMEOUT"),
			MaxAttempts: v.GetInt("NOTIFICATION_MAX_ATTEMPTS"),
			QueueKey:    v.GetString("NOTIFICATION_QUEUE_KEY"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Sweep: SweepConfig{
			OverdueSchedule:  v.GetString("OVERDUE_SCHEDULE"),
			ReminderSchedule: v.GetString("REMINDER_SCHEDULE"),
			Concurrency:      v.GetInt("SWEEP_CONCURRENCY"),
			GracePeriodDays:  v.GetInt("GRACE_PERIOD_DAYS"),
		},
		Plans: PlanConfig{
			Version: v.GetString("PLAN_CATALOG_VERSION"),
			Prices:  prices,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
			OTLPProtocol: strings.ToLower(strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL"))),
			SentryDSN:    strings.TrimSpace(v.GetString("SENTRY_DSN")),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
	}

	if cfg.Sweep.Concurrency <= 0 {
		cfg.Sweep.Concurrency = 1
	}
	if cfg.Sweep.GracePeriodDays <= 0 {
		cfg.Sweep.GracePeriodDays = 7
	}
	return cfg, nil
}

// ParsePlanPrices parses "plan:price" pairs separated by commas.
func ParsePlanPrices(raw string) (map[string]float64, error) {
	prices := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid plan price entry %q", pair)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		price, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || price < 0 || key == "" {
			return nil, fmt.Errorf("invalid plan price entry %q", pair)
		}
		prices[key] = price
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("plan price list is empty")
	}
	return prices, nil
}
