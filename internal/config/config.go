package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int    `envconfig:"ARCHIVER_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int    `envconfig:"ARCHIVER_DB_MAX_CONNS" default:"8"`

	HTTPHost string `envconfig:"ARCHIVER_HTTP_HOST" default:"127.0.0.1"`
	HTTPPort int    `envconfig:"ARCHIVER_HTTP_PORT" default:"8080"`

	GeocoderBaseURL   string `envconfig:"ARCHIVER_GEOCODER_URL" default:"https://nominatim.openstreetmap.org"`
	GeocoderUserAgent string `envconfig:"ARCHIVER_GEOCODER_USER_AGENT" default:"cultural-archiver/1.0"`
	GeocoderCacheSize int    `envconfig:"ARCHIVER_GEOCODER_CACHE_SIZE" default:"4096"`
	GeocoderDisabled  bool   `envconfig:"ARCHIVER_GEOCODER_DISABLED" default:"false"`

	ImportThreshold    float64 `envconfig:"ARCHIVER_IMPORT_THRESHOLD" default:"0.7"`
	ImportRadiusMeters float64 `envconfig:"ARCHIVER_IMPORT_RADIUS_METERS" default:"100"`
	ImportTieBand      float64 `envconfig:"ARCHIVER_IMPORT_TIE_BAND" default:"0.05"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("ARCHIVER_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("ARCHIVER_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("ARCHIVER_DB_MIN_CONNS (%d) cannot exceed ARCHIVER_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("ARCHIVER_HTTP_PORT must be between 1 and 65535")
	}
	if !c.GeocoderDisabled && strings.TrimSpace(c.GeocoderBaseURL) == "" {
		return fmt.Errorf("ARCHIVER_GEOCODER_URL is required unless the geocoder is disabled")
	}
	if c.GeocoderCacheSize < 1 {
		return fmt.Errorf("ARCHIVER_GEOCODER_CACHE_SIZE must be >= 1")
	}
	if c.ImportThreshold < 0 || c.ImportThreshold > 1 {
		return fmt.Errorf("ARCHIVER_IMPORT_THRESHOLD must be between 0 and 1")
	}
	if c.ImportRadiusMeters <= 0 {
		return fmt.Errorf("ARCHIVER_IMPORT_RADIUS_METERS must be > 0")
	}
	if c.ImportTieBand < 0 {
		return fmt.Errorf("ARCHIVER_IMPORT_TIE_BAND must be >= 0")
	}
	return nil
}

// HTTPAddr returns the listen address for the read API.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}
