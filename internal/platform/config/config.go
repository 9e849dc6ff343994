// Package config loads process configuration from defaults, an optional
// config file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"workerhub/internal/platform/tracing"
	"workerhub/internal/ratelimit/window"
	"workerhub/internal/workers/validation"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Server    Server            `mapstructure:"server"`
	Registry  Registry          `mapstructure:"registry"`
	Bounds    validation.Bounds `mapstructure:"bounds"`
	RateLimit window.Config     `mapstructure:"rate_limit"`
	Store     Store             `mapstructure:"store"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Kafka     Kafka             `mapstructure:"kafka"`
	Log       Log               `mapstructure:"log"`
	Trace     tracing.Config    `mapstructure:"trace"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
}

// Addr is the listen address for Port.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Registry sizes the hub.
type Registry struct {
	MaxWorkers       int `mapstructure:"max_workers"`
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

// Store selects and configures the snapshot backend.
type Store struct {
	Backend     string `mapstructure:"backend"`
	DataFile    string `mapstructure:"data_file"`
	DatabaseURL string `mapstructure:"database_url"`
}

// RedisConfig configures the Redis client used by the redis backend.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Key          string        `mapstructure:"key"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Kafka enables the change feed when Brokers is non-empty.
type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether a change feed should be produced.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"server.port":                "PORT",
	"server.shutdown_timeout":    "SHUTDOWN_TIMEOUT",
	"server.cors_origin":         "CORS_ORIGIN",
	"registry.max_workers":       "MAX_WORKERS",
	"registry.subscriber_buffer": "SUBSCRIBER_BUFFER",
	"bounds.min_lat":             "BOUNDS_MIN_LAT",
	"bounds.max_lat":             "BOUNDS_MAX_LAT",
	"bounds.min_lng":             "BOUNDS_MIN_LNG",
	"bounds.max_lng":             "BOUNDS_MAX_LNG",
	"rate_limit.max_ops":         "RATE_LIMIT_MAX",
	"rate_limit.window":          "RATE_LIMIT_WINDOW",
	"store.backend":              "STORE_BACKEND",
	"store.data_file":            "DATA_FILE",
	"store.database_url":         "DATABASE_URL",
	"redis.url":                  "REDIS_URL",
	"redis.key":                  "REDIS_KEY",
	"kafka.brokers":              "KAFKA_BROKERS",
	"kafka.topic":                "KAFKA_TOPIC",
	"log.level":                  "LOG_LEVEL",
	"log.format":                 "LOG_FORMAT",
	"trace.exporter":             "TRACE_EXPORTER",
	"trace.otlp_endpoint":        "OTEL_EXPORTER_OTLP_ENDPOINT",
	"trace.sample_rate":          "TRACE_SAMPLE_RATE",
}

func setDefaults(v *viper.Viper) {
	bounds := validation.DefaultBounds()
	limits := window.DefaultConfig()

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("registry.max_workers", 10000)
	v.SetDefault("registry.subscriber_buffer", 256)
	v.SetDefault("bounds.min_lat", bounds.MinLat)
	v.SetDefault("bounds.max_lat", bounds.MaxLat)
	v.SetDefault("bounds.min_lng", bounds.MinLng)
	v.SetDefault("bounds.max_lng", bounds.MaxLng)
	v.SetDefault("rate_limit.max_ops", limits.MaxOps)
	v.SetDefault("rate_limit.window", limits.Window)
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.data_file", "workers.json")
	v.SetDefault("store.database_url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key", "workerhub:registry:snapshot")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "workerhub.registry")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("trace.exporter", tracing.ExporterNone)
	v.SetDefault("trace.otlp_endpoint", "localhost:4317")
	v.SetDefault("trace.sample_rate", 1.0)
	v.SetDefault("trace.service_name", "workerhub")
}

// Load builds a Config. configFile may be empty.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Kafka.Brokers = splitBrokers(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitBrokers accepts either a list or a single comma separated entry.
func splitBrokers(in []string) []string {
	var out []string
	for _, entry := range in {
		for b := range strings.SplitSeq(entry, ",") {
			if b = strings.TrimSpace(b); b != "" {
				out = append(out, b)
			}
		}
	}
	return out
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Registry.MaxWorkers <= 0 {
		errs = append(errs, fmt.Errorf("max workers must be positive, got %d", c.Registry.MaxWorkers))
	}
	if c.Registry.SubscriberBuffer <= 0 {
		errs = append(errs, fmt.Errorf("subscriber buffer must be positive, got %d", c.Registry.SubscriberBuffer))
	}
	if err := c.Bounds.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Trace.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.DataFile == "" {
			errs = append(errs, errors.New("data file is required for the file backend"))
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis url is required for the redis backend"))
		}
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("database url is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	return errors.Join(errs...)
}
