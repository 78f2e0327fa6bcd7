package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HYPE_DATABASE_DRIVER.
const EnvPrefix = "HYPE"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
	Lock     LockConfig     `mapstructure:"lock"`
	Economy  EconomyConfig  `mapstructure:"economy"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"` // overrides the host fields when set; the file path for sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"` // gorm logger: silent, error, warn, info
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text or json
	File       string `mapstructure:"file"`   // empty logs to stdout only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Lock backends.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

type LockConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

type EconomyConfig struct {
	CatalogFile     string   `mapstructure:"catalog_file"` // empty uses the built-in catalog
	CoverageRatio   string   `mapstructure:"coverage_ratio"`
	ConversionRate  int64    `mapstructure:"conversion_rate"`
	GatedTiers      []string `mapstructure:"gated_tiers"`
	RevenueSyncSpec string   `mapstructure:"revenue_sync_spec"`
	WorkerID        int64    `mapstructure:"worker_id"`
}

// Coverage parses CoverageRatio.
func (e EconomyConfig) Coverage() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(e.CoverageRatio))
	if err != nil {
		return decimal.Zero, fmt.Errorf("economy.coverage_ratio: %w", err)
	}
	if !d.IsPositive() {
		return decimal.Zero, errors.New("economy.coverage_ratio must be positive")
	}
	return d, nil
}

type BusinessConfig struct {
	MaxRetryCount   int           `mapstructure:"max_retry_count"`
	OutboxInterval  time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize int           `mapstructure:"outbox_batch_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.database", "hype")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.ledger_events", "hype_ledger_events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("lock.backend", LockBackendLocal)
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("lock.retry_interval", 100*time.Millisecond)
	v.SetDefault("lock.max_retries", 30)

	v.SetDefault("economy.catalog_file", "")
	v.SetDefault("economy.coverage_ratio", "2.3")
	v.SetDefault("economy.conversion_rate", 100)
	v.SetDefault("economy.gated_tiers", []string{"premium", "paid-priority"})
	v.SetDefault("economy.revenue_sync_spec", "@every 1m")
	v.SetDefault("economy.worker_id", 1)

	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.outbox_interval", 100*time.Millisecond)
	v.SetDefault("business.outbox_batch_size", 100)
}

// LoadConfig reads configPath (YAML) on top of the defaults and applies
// HYPE_* environment overrides. An empty path loads defaults and env only.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverMySQL, DriverPostgres:
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("database.host or database.dsn is required for %s", c.Database.Driver)
		}
	case DriverSQLite:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for sqlite")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	switch c.Lock.Backend {
	case LockBackendLocal:
	case LockBackendRedis:
		if !c.Redis.Enabled {
			return errors.New("lock.backend redis requires redis.enabled")
		}
		if c.Lock.TTL <= 0 || c.Lock.MaxRetries <= 0 {
			return errors.New("lock.ttl and lock.max_retries must be positive")
		}
	default:
		return fmt.Errorf("unknown lock.backend %q", c.Lock.Backend)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic.LedgerEvents == "" {
			return errors.New("kafka.brokers and kafka.topic.ledger_events are required when kafka is enabled")
		}
		if c.Database.Driver == DriverMemory {
			return errors.New("kafka events need a database driver for the outbox")
		}
	}

	if _, err := c.Economy.Coverage(); err != nil {
		return err
	}
	if c.Economy.ConversionRate <= 0 {
		return errors.New("economy.conversion_rate must be positive")
	}
	for _, tier := range c.Economy.GatedTiers {
		switch tier {
		case "free", "premium", "paid-priority":
		default:
			return fmt.Errorf("economy.gated_tiers: unknown tier %q", tier)
		}
	}
	if c.Economy.RevenueSyncSpec == "" {
		return errors.New("economy.revenue_sync_spec is required")
	}

	if c.Business.MaxRetryCount <= 0 {
		return errors.New("business.max_retry_count must be positive")
	}
	return nil
}
