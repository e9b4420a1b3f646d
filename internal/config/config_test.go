package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspecta/internal/core/numerator"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
app:
  env: production
  port: 9090
database:
  dsn: postgres://inspecta@db/inspecta
numerator:
  backend: postgres
  strategy: cached
  range_size: 20
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.False(t, cfg.App.IsDevelopment())
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, "postgres://inspecta@db/inspecta", cfg.Database.DSN)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)

	opts, err := cfg.Numerator.Options()
	require.NoError(t, err)
	assert.Equal(t, numerator.StrategyCached, opts.Strategy)
	assert.Equal(t, int64(20), opts.RangeSize)
	assert.Equal(t, numerator.DefaultPadWidth, cfg.Numerator.PadWidth)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
numerator:
  backend: postgres
database:
  dsn: postgres://file
`)
	t.Setenv("INSPECTA_NUMERATOR_BACKEND", "redis")
	t.Setenv("INSPECTA_REDIS_ENABLED", "true")
	t.Setenv("INSPECTA_REDIS_ADDR", "cache:6379")
	t.Setenv("INSPECTA_NUMERATOR_PAD_WIDTH", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Numerator.Backend)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Numerator.PadWidth)
	assert.Equal(t, "inspecta", cfg.Redis.KeyPrefix)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Database:  DatabaseConfig{DSN: "postgres://x"},
			Numerator: NumeratorConfig{Backend: BackendPostgres, Strategy: "strict"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "postgres ok", mutate: func(*Config) {}},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Database.DSN = "" }, wantErr: true},
		{name: "memory needs nothing", mutate: func(c *Config) { c.Numerator.Backend = BackendMemory; c.Database.DSN = "" }},
		{name: "redis disabled", mutate: func(c *Config) { c.Numerator.Backend = BackendRedis }, wantErr: true},
		{name: "redis ok", mutate: func(c *Config) {
			c.Numerator.Backend = BackendRedis
			c.Redis = RedisConfig{Enabled: true, Addr: "localhost:6379"}
		}},
		{name: "unknown backend", mutate: func(c *Config) { c.Numerator.Backend = "etcd" }, wantErr: true},
		{name: "unknown strategy", mutate: func(c *Config) { c.Numerator.Strategy = "random" }, wantErr: true},
		{name: "negative width", mutate: func(c *Config) { c.Numerator.PadWidth = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
