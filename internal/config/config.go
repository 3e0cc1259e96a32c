package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	EmailGatewayURL string `env:"EMAIL_GATEWAY_URL"`
	SMSGatewayURL   string `env:"SMS_GATEWAY_URL"`
	PushGatewayURL  string `env:"PUSH_GATEWAY_URL"`

	EmailEnabled bool `env:"EMAIL_ENABLED,default=true"`
	SMSEnabled   bool `env:"SMS_ENABLED,default=true"`
	PushEnabled  bool `env:"PUSH_ENABLED,default=true"`
	InAppEnabled bool `env:"IN_APP_ENABLED,default=true"`

	RedisPoolSize     int    `env:"REDIS_POOL_SIZE,default=32"`
	RetryLimit        int    `env:"RETRY_LIMIT,default=3"`
	BulkBatchSize     int    `env:"BULK_BATCH_SIZE,default=100"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=50"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=8"`
	DefaultLanguage   string `env:"DEFAULT_LANGUAGE,default=en"`

	BulkDispatchTimeoutRaw string `env:"BULK_DISPATCH_TIMEOUT,default=5m"`
	SweepIntervalRaw       string `env:"SWEEP_INTERVAL,default=30s"`
	PendingStaleAfterRaw   string `env:"PENDING_STALE_AFTER,default=5m"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// Parsed from the raw duration strings above.
	BulkDispatchTimeout time.Duration `env:"-"`
	SweepInterval       time.Duration `env:"-"`
	PendingStaleAfter   time.Duration `env:"-"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.BulkDispatchTimeout, err = parsePositiveDuration("BULK_DISPATCH_TIMEOUT", cfg.BulkDispatchTimeoutRaw); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = parsePositiveDuration("SWEEP_INTERVAL", cfg.SweepIntervalRaw); err != nil {
		return nil, err
	}
	if cfg.PendingStaleAfter, err = parsePositiveDuration("PENDING_STALE_AFTER", cfg.PendingStaleAfterRaw); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func parsePositiveDuration(name, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, raw)
	}
	return d, nil
}
