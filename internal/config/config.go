// Package config loads inspecta configuration from an optional YAML file,
// a .env file and INSPECTA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"inspecta/internal/core/numerator"
)

// EnvPrefix is prepended to every environment override, e.g. INSPECTA_DATABASE_DSN.
const EnvPrefix = "INSPECTA"

// Counter backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Numerator NumeratorConfig `mapstructure:"numerator"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Env             string        `mapstructure:"env"`
	Version         string        `mapstructure:"version"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IsDevelopment reports whether the app runs in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development"
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type NumeratorConfig struct {
	Backend   string `mapstructure:"backend"`
	Strategy  string `mapstructure:"strategy"`
	RangeSize int64  `mapstructure:"range_size"`
	PadWidth  int    `mapstructure:"pad_width"`
}

// Options converts the numerator section into allocation options.
func (n NumeratorConfig) Options() (*numerator.Options, error) {
	strategy, err := numerator.ParseStrategy(n.Strategy)
	if err != nil {
		return nil, err
	}
	return &numerator.Options{Strategy: strategy, RangeSize: n.RangeSize}, nil
}

// Load reads configuration. configFile may be empty, in which case
// configs/config.yaml is used when present.
func Load(configFile string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Numerator.Backend {
	case BackendPostgres:
		if c.Database.DSN == "" {
			return errors.New("config: database.dsn is required for the postgres backend")
		}
	case BackendRedis:
		if !c.Redis.Enabled || c.Redis.Addr == "" {
			return errors.New("config: redis.enabled and redis.addr are required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown numerator backend %q", c.Numerator.Backend)
	}
	if _, err := c.Numerator.Options(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Numerator.PadWidth < 0 {
		return errors.New("config: numerator.pad_width must not be negative")
	}
	return nil
}

// setDefaults sets default configuration values. Every key needs a default
// so that AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "inspecta")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.encoding", "")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "inspecta")

	v.SetDefault("numerator.backend", BackendPostgres)
	v.SetDefault("numerator.strategy", numerator.StrategyStrict.String())
	v.SetDefault("numerator.range_size", numerator.DefaultRangeSize)
	v.SetDefault("numerator.pad_width", numerator.DefaultPadWidth)
}
