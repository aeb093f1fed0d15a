package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // zone names resolve in minimal containers

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variables overriding the YAML file,
// e.g. SPACEBOOK_DATABASE_DSN.
const EnvPrefix = "SPACEBOOK"

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	Booking  BookingConfig  `yaml:"booking" envconfig:"BOOKING"`
	Pricing  PricingConfig  `yaml:"pricing" envconfig:"PRICING"`
	Registry RegistryConfig `yaml:"registry" envconfig:"REGISTRY"`
	Catalog  CatalogConfig  `yaml:"catalog" envconfig:"CATALOG"`
	Events   EventsConfig   `yaml:"events" envconfig:"EVENTS"`
	Tracing  TracingConfig  `yaml:"tracing" envconfig:"TRACING"`
	Log      LogConfig      `yaml:"log" envconfig:"LOG"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port               int      `yaml:"port" envconfig:"PORT"`
	RateLimitPerSec    float64  `yaml:"rate_limit_per_sec" envconfig:"RATE_LIMIT_PER_SEC"`
	RateLimitBurst     int      `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
	CacheTTLSeconds    int      `yaml:"cache_ttl_seconds" envconfig:"CACHE_TTL_SECONDS"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" envconfig:"CORS_ALLOWED_ORIGINS"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" envconfig:"DRIVER"` // postgres | sqlite
	DSN                    string `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns           int    `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" envconfig:"CONN_MAX_LIFETIME_MINUTES"`
	ExclusionConstraint    bool   `yaml:"exclusion_constraint" envconfig:"EXCLUSION_CONSTRAINT"`
	LogSQL                 bool   `yaml:"log_sql" envconfig:"LOG_SQL"`
}

// BookingConfig holds the booking lifecycle rules.
type BookingConfig struct {
	Timezone                string   `yaml:"timezone" envconfig:"TIMEZONE"`
	BlockingStatuses        []string `yaml:"blocking_statuses" envconfig:"BLOCKING_STATUSES"`
	CancellationWindowHours int      `yaml:"cancellation_window_hours" envconfig:"CANCELLATION_WINDOW_HOURS"`
	DefaultSlotMinutes      int      `yaml:"default_slot_minutes" envconfig:"DEFAULT_SLOT_MINUTES"`
	AllowPastBookings       bool     `yaml:"allow_past_bookings" envconfig:"ALLOW_PAST_BOOKINGS"`
	CodePrefix              string   `yaml:"code_prefix" envconfig:"CODE_PREFIX"`
	DefaultCurrency         string   `yaml:"default_currency" envconfig:"DEFAULT_CURRENCY"`

	Location           *time.Location `yaml:"-" ignored:"true"`
	CancellationWindow time.Duration  `yaml:"-" ignored:"true"`
}

// PricingConfig holds quantity rounding rules.
type PricingConfig struct {
	HourlyIncrementMinutes int `yaml:"hourly_increment_minutes" envconfig:"HOURLY_INCREMENT_MINUTES"`
}

// RegistryConfig controls the resource cache.
type RegistryConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" envconfig:"CACHE_TTL_SECONDS"`
}

// CatalogConfig points at the operator resource catalog synced on startup.
type CatalogConfig struct {
	Path string `yaml:"path" envconfig:"PATH"`
}

// EventsConfig holds the RabbitMQ publisher configuration.
type EventsConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
	AMQPURL  string `yaml:"amqp_url" envconfig:"AMQP_URL"`
	Exchange string `yaml:"exchange" envconfig:"EXCHANGE"`
}

// TracingConfig holds the OTLP exporter configuration.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	Endpoint    string `yaml:"endpoint" envconfig:"ENDPOINT"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment string `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL"`
	Format     string `yaml:"format" envconfig:"FORMAT"` // json | text
	File       string `yaml:"file" envconfig:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS"`
}

// Load reads the configuration from the given path, applies environment
// overrides and fills in defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, suitable for
// tests and local runs without a config file.
func Default() *Config {
	cfg := &Config{}
	// Defaults only fail on an unknown timezone, and UTC is always known.
	_ = cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Booking.Timezone == "" {
		cfg.Booking.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		return fmt.Errorf("booking.timezone %q: %w", cfg.Booking.Timezone, err)
	}
	cfg.Booking.Location = loc

	if len(cfg.Booking.BlockingStatuses) == 0 {
		cfg.Booking.BlockingStatuses = []string{"pending", "confirmed"}
	}
	if cfg.Booking.CancellationWindowHours < 0 {
		cfg.Booking.CancellationWindowHours = 0
	} else if cfg.Booking.CancellationWindowHours == 0 {
		cfg.Booking.CancellationWindowHours = 24
	}
	cfg.Booking.CancellationWindow = time.Duration(cfg.Booking.CancellationWindowHours) * time.Hour
	if cfg.Booking.DefaultSlotMinutes <= 0 {
		cfg.Booking.DefaultSlotMinutes = 60
	}
	if cfg.Booking.CodePrefix == "" {
		cfg.Booking.CodePrefix = "BK"
	}
	if cfg.Booking.DefaultCurrency == "" {
		cfg.Booking.DefaultCurrency = "EGP"
	}

	if cfg.Pricing.HourlyIncrementMinutes <= 0 {
		cfg.Pricing.HourlyIncrementMinutes = 15
	}

	if cfg.Registry.CacheTTLSeconds <= 0 {
		cfg.Registry.CacheTTLSeconds = 300
	}

	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "booking.exchange"
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "spacebookd"
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = "otel-collector:4317"
	}
	if cfg.Tracing.Environment == "" {
		cfg.Tracing.Environment = "dev"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 30
	}
	return nil
}
