// Package config loads the server configuration with viper.
//
// Values come from, in increasing precedence: defaults, an optional YAML
// file, and FLEETPRICING_* environment variables ("redis.addr" is read from
// FLEETPRICING_REDIS_ADDR).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/warp/fleet-pricing/calendar"
)

const EnvPrefix = "FLEETPRICING"

// Config holds all configuration for the pricing service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// Demo seeds sample stores, rules, fees and vehicles on startup.
	Demo bool `mapstructure:"demo"`
}

type DatabaseConfig struct {
	// Path of the SQLite file; ":memory:" keeps everything in process.
	Path string `mapstructure:"path"`
}

// RedisConfig configures the shared distance cache tier. An empty Addr
// disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PricingConfig struct {
	DepositMultiplier float64 `mapstructure:"deposit_multiplier"`
	InsuranceRate     float64 `mapstructure:"insurance_rate"`
}

type CalendarConfig struct {
	TieBreak string `mapstructure:"tie_break"`
	// MaxRangeDays caps the days one calendar or quote request may span.
	MaxRangeDays int `mapstructure:"max_range_days"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from path (skipped when empty) and the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
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

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.demo", false)
	v.SetDefault("database.path", "fleet-pricing.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("redis.timeout", 200*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pricing.deposit_multiplier", 3.0)
	v.SetDefault("pricing.insurance_rate", 0.05)
	v.SetDefault("calendar.tie_break", string(calendar.TieBreakLowestID))
	v.SetDefault("calendar.max_range_days", calendar.DefaultMaxRangeDays)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
}

// Validate rejects values the engines cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Pricing.DepositMultiplier < 0 {
		errs = append(errs, fmt.Errorf("pricing.deposit_multiplier must not be negative"))
	}
	if c.Pricing.InsuranceRate < 0 {
		errs = append(errs, fmt.Errorf("pricing.insurance_rate must not be negative"))
	}
	if _, ok := calendar.ParseTieBreak(c.Calendar.TieBreak); !ok {
		errs = append(errs, fmt.Errorf("calendar.tie_break: unknown value %q", c.Calendar.TieBreak))
	}
	if c.Calendar.MaxRangeDays <= 0 {
		errs = append(errs, fmt.Errorf("calendar.max_range_days must be positive: %d", c.Calendar.MaxRangeDays))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ResolverOptions turns the calendar settings into resolver options.
func (c *CalendarConfig) ResolverOptions() []calendar.Option {
	return []calendar.Option{
		calendar.WithTieBreak(c.Policy()),
		calendar.WithMaxRangeDays(c.MaxRangeDays),
	}
}

// Policy returns the parsed calendar tie-break policy.
func (c *CalendarConfig) Policy() calendar.TieBreak {
	tb, _ := calendar.ParseTieBreak(c.TieBreak)
	return tb
}
