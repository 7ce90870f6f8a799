// Package config loads the service configuration from .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/Guyuepp/feed-like/internal/observability"
)

// Config holds configuration values read from environment variables.
type Config struct {
	DBHost     string `mapstructure:"DATABASE_HOST"`
	DBPort     string `mapstructure:"DATABASE_PORT"`
	DBUser     string `mapstructure:"DATABASE_USER"`
	DBPass     string `mapstructure:"DATABASE_PASS"`
	DBName     string `mapstructure:"DATABASE_NAME"`
	DBMaxRetry int    `mapstructure:"DB_MAX_RETRY"`

	CacheHost string `mapstructure:"CACHE_HOST"`
	CachePort string `mapstructure:"CACHE_PORT"`
	CachePass string `mapstructure:"CACHE_PASS"`
	CacheDB   int    `mapstructure:"CACHE_DB"`

	ServerAddress       string `mapstructure:"SERVER_ADDRESS"`
	ContextTimeout      int    `mapstructure:"CONTEXT_TIMEOUT"` // seconds
	CacheTimeoutMS      int    `mapstructure:"CACHE_TIMEOUT_MS"`
	ReconcileIntervalMS int    `mapstructure:"RECONCILE_INTERVAL_MS"`
	LogLevel            string `mapstructure:"LOG_LEVEL"`

	ServiceName        string  `mapstructure:"SERVICE_NAME"`
	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

var defaults = map[string]any{
	"DATABASE_HOST":         "localhost",
	"DATABASE_PORT":         "3306",
	"DATABASE_USER":         "root",
	"DATABASE_PASS":         "",
	"DATABASE_NAME":         "feed",
	"DB_MAX_RETRY":          10,
	"CACHE_HOST":            "localhost",
	"CACHE_PORT":            "6379",
	"CACHE_PASS":            "",
	"CACHE_DB":              0,
	"SERVER_ADDRESS":        ":9090",
	"CONTEXT_TIMEOUT":       30,
	"CACHE_TIMEOUT_MS":      200,
	"RECONCILE_INTERVAL_MS": 1000,
	"LOG_LEVEL":             "info",
	"SERVICE_NAME":          "feed-like",
	"TRACING_ENABLED":       false,
	"TRACING_EXPORTER":      "stdout",
	"OTLP_ENDPOINT":         "localhost:4318",
	"TRACING_SAMPLE_RATIO":  1.0,
}

// Load reads the given .env files (".env" when none are named) into the process
// environment, then decodes the environment over the defaults.
// A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		logrus.Warnf("no .env file loaded, using environment only: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate ensures that required configuration values are present and usable.
func (c *Config) Validate() error {
	if c.DBHost == "" || c.DBName == "" {
		return errors.New("DATABASE_HOST and DATABASE_NAME are required")
	}
	if c.CacheHost == "" {
		return errors.New("CACHE_HOST is required")
	}
	if c.DBMaxRetry < 1 {
		return errors.New("DB_MAX_RETRY must be at least 1")
	}
	if c.ContextTimeout <= 0 {
		return errors.New("CONTEXT_TIMEOUT must be positive")
	}
	if c.CacheTimeoutMS <= 0 {
		return errors.New("CACHE_TIMEOUT_MS must be positive")
	}
	if c.ReconcileIntervalMS <= 0 {
		return errors.New("RECONCILE_INTERVAL_MS must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.TracingEnabled {
		if c.TracingExporter != "stdout" && c.TracingExporter != "otlp" {
			return fmt.Errorf("TRACING_EXPORTER must be stdout or otlp, got %q", c.TracingExporter)
		}
		if c.TracingExporter == "otlp" && c.OTLPEndpoint == "" {
			return errors.New("OTLP_ENDPOINT is required for the otlp exporter")
		}
		if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
			return errors.New("TRACING_SAMPLE_RATIO must be between 0 and 1")
		}
	}
	return nil
}

func (c *Config) Tracing() observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName:  c.ServiceName,
		Enabled:      c.TracingEnabled,
		Exporter:     c.TracingExporter,
		OTLPEndpoint: c.OTLPEndpoint,
		SamplerRatio: c.TracingSampleRatio,
	}
}

// DSN is the go-sql-driver/mysql data source name for the configured database.
func (c *Config) DSN() string {
	dsn := gomysql.NewConfig()
	dsn.User = c.DBUser
	dsn.Passwd = c.DBPass
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(c.DBHost, c.DBPort)
	dsn.DBName = c.DBName
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	return dsn.FormatDSN()
}

func (c *Config) CacheAddr() string {
	return net.JoinHostPort(c.CacheHost, c.CachePort)
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.ContextTimeout) * time.Second
}

func (c *Config) CacheTimeout() time.Duration {
	return time.Duration(c.CacheTimeoutMS) * time.Millisecond
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalMS) * time.Millisecond
}

// Level returns the parsed LOG_LEVEL. Validate has already rejected bad values.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
