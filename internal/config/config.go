// Package config defines all configuration for the exchange simulator.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive and deployment-specific fields overridable via environment
// variables: POSTGRES_{DB,HOST,PASSWORD,PORT,USER} for the database
// connection (spec-mandated names, not prefixed), and TRADESIM_* for
// everything else.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Sim      SimConfig      `mapstructure:"sim"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
}

// DatabaseConfig holds the Postgres connection parameters. Field names
// mirror the POSTGRES_{DB,HOST,PASSWORD,PORT,USER} environment variables
// the deployment environment sets directly, with no TRADESIM_ prefix.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles a libpq-style connection string from the configured fields.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DB, sslmode,
	)
}

// SimConfig tunes the per-user matching engine.
//
//   - Timeframe: candle granularity every engine replays at (1h, 4h, 1d).
//   - TicksForTest: N in the simulated-time initialization formula (spec §4.4).
//   - DefaultMultiplier: tick-driver speed a freshly created engine starts at.
//   - DefaultCommission: commission rate a freshly created engine starts at.
//   - TradableAssets: target asset symbols every engine watches candles for.
//   - IdleEvictionAfter: wall-clock inactivity before the reaper stops an engine.
//   - ReaperInterval: how often the reaper sweeps the manager's engine map.
type SimConfig struct {
	Timeframe         string        `mapstructure:"timeframe"`
	TicksForTest      int           `mapstructure:"ticks_for_test"`
	DefaultMultiplier float64       `mapstructure:"default_multiplier"`
	DefaultCommission float64       `mapstructure:"default_commission"`
	InitialCash       float64       `mapstructure:"initial_cash"`
	TradableAssets    []string      `mapstructure:"tradable_assets"`
	IdleEvictionAfter time.Duration `mapstructure:"idle_eviction_after"`
	ReaperInterval    time.Duration `mapstructure:"reaper_interval"`
}

// HTTPConfig controls the API server.
type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IngestConfig points the backfill tool at a third-party candle API.
type IngestConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADESIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The database connection uses the literal POSTGRES_* names the
	// deployment environment sets, not the TRADESIM_ prefix.
	pv := viper.New()
	pv.AutomaticEnv()
	if host := pv.GetString("POSTGRES_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := pv.GetString("POSTGRES_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &cfg.Database.Port)
	}
	if user := pv.GetString("POSTGRES_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := pv.GetString("POSTGRES_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if db := pv.GetString("POSTGRES_DB"); db != "" {
		cfg.Database.DB = db
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required (set POSTGRES_HOST)")
	}
	if c.Database.DB == "" {
		return fmt.Errorf("database.db is required (set POSTGRES_DB)")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required (set POSTGRES_USER)")
	}
	switch c.Sim.Timeframe {
	case "1h", "4h", "1d":
	default:
		return fmt.Errorf("sim.timeframe must be one of: 1h, 4h, 1d")
	}
	if c.Sim.TicksForTest <= 0 {
		return fmt.Errorf("sim.ticks_for_test must be > 0")
	}
	if c.Sim.DefaultMultiplier <= 0 {
		return fmt.Errorf("sim.default_multiplier must be > 0")
	}
	if c.Sim.InitialCash < 0 {
		return fmt.Errorf("sim.initial_cash must be >= 0")
	}
	if len(c.Sim.TradableAssets) == 0 {
		return fmt.Errorf("sim.tradable_assets must list at least one asset")
	}
	if c.Sim.IdleEvictionAfter <= 0 {
		return fmt.Errorf("sim.idle_eviction_after must be > 0")
	}
	if c.Sim.ReaperInterval <= 0 {
		return fmt.Errorf("sim.reaper_interval must be > 0")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	return nil
}
