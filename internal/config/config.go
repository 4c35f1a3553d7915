package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type ProcessorConfig struct {
	DefaultURL      string        `mapstructure:"default_url"`
	FallbackURL     string        `mapstructure:"fallback_url"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`
	FallbackTimeout time.Duration `mapstructure:"fallback_timeout"`
	MaxInflight     int64         `mapstructure:"max_inflight"`
}

type DispatchConfig struct {
	Workers            int           `mapstructure:"workers"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	SkipFailingDefault bool          `mapstructure:"skip_failing_default"`
}

type HealthConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	JaegerURL   string `mapstructure:"jaeger_url"`
}

type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// Load reads configuration from the environment. NUM_WORKERS,
// PAYMENT_PROCESSOR_URL and FALLBACK_PAYMENT_PROCESSOR_URL are required;
// everything else has a default.
func Load() (*AppConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9999)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("processor.default_timeout", "1s")
	v.SetDefault("processor.fallback_timeout", "10s")
	v.SetDefault("processor.max_inflight", 64)
	v.SetDefault("dispatch.max_attempts", 3)
	v.SetDefault("dispatch.retry_delay", "100ms")
	v.SetDefault("dispatch.skip_failing_default", false)
	v.SetDefault("health.interval", "5s")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "payment-relay")
	v.SetDefault("telemetry.jaeger_url", "http://jaeger:14268/api/traces")

	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("processor.default_url", "PAYMENT_PROCESSOR_URL")
	_ = v.BindEnv("processor.fallback_url", "FALLBACK_PAYMENT_PROCESSOR_URL")
	_ = v.BindEnv("processor.default_timeout", "DEFAULT_TIMEOUT")
	_ = v.BindEnv("processor.fallback_timeout", "FALLBACK_TIMEOUT")
	_ = v.BindEnv("processor.max_inflight", "UPSTREAM_MAX_INFLIGHT")
	_ = v.BindEnv("dispatch.workers", "NUM_WORKERS")
	_ = v.BindEnv("dispatch.max_attempts", "MAX_ATTEMPTS")
	_ = v.BindEnv("dispatch.retry_delay", "RETRY_DELAY")
	_ = v.BindEnv("dispatch.skip_failing_default", "SKIP_FAILING_DEFAULT")
	_ = v.BindEnv("health.interval", "HEALTH_INTERVAL")
	_ = v.BindEnv("telemetry.enabled", "TELEMETRY_ENABLED")
	_ = v.BindEnv("telemetry.service_name", "TELEMETRY_SERVICE_NAME")
	_ = v.BindEnv("telemetry.jaeger_url", "JAEGER_URL")

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Processor.DefaultURL == "" {
		return errors.New("PAYMENT_PROCESSOR_URL must be set")
	}
	if c.Processor.FallbackURL == "" {
		return errors.New("FALLBACK_PAYMENT_PROCESSOR_URL must be set")
	}
	if c.Dispatch.Workers <= 0 {
		return errors.New("NUM_WORKERS must be set to a positive integer")
	}
	return nil
}
