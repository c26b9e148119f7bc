package config

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Capture   CaptureConfig   `yaml:"capture"`
	Matching  MatchingConfig  `yaml:"matching"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Legacy    LegacyConfig    `yaml:"legacy"`
	Web       WebConfig       `yaml:"web"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type CaptureConfig struct {
	SampleInterval         time.Duration `yaml:"sample_interval" env:"SAMPLE_INTERVAL"`
	DetectTimeout          time.Duration `yaml:"detect_timeout" env:"DETECT_TIMEOUT"` // 0 disables the per-frame timeout
	MinDetectionScore      float64       `yaml:"min_detection_score" env:"MIN_DETECTION_SCORE"`
	StillMinDetectionScore float64       `yaml:"still_min_detection_score" env:"STILL_MIN_DETECTION_SCORE"` // uploaded photos are sharper than video frames
	SnapshotURL            string        `yaml:"snapshot_url" env:"CAMERA_SNAPSHOT_URL"`                     // optional IP camera for server-side capture
}

type MatchingConfig struct {
	Threshold             float64 `yaml:"threshold" env:"MATCH_THRESHOLD"`
	ConfirmationThreshold int     `yaml:"confirmation_threshold" env:"CONFIRMATION_THRESHOLD"`
	StickyOverrides       bool    `yaml:"sticky_overrides" env:"STICKY_OVERRIDES"`
}

type EmbeddingConfig struct {
	URL string `yaml:"url" env:"EMBEDDING_URL"` // face embedding service
	Dim int    `yaml:"dim" env:"EMBEDDING_DIM"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url" env:"DATABASE_URL"` // PostgreSQL connection URL; empty selects SQLite
	MaxOpenConns int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	SQLitePath   string `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

type LegacyConfig struct {
	DatabaseURL string `yaml:"database_url" env:"LEGACY_DATABASE_URL"` // MySQL DSN of the legacy PHP deployment
}

type WebConfig struct {
	Host           string   `yaml:"host" env:"WEB_HOST"`
	Port           int      `yaml:"port" env:"WEB_PORT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"WEB_ALLOWED_ORIGINS" envSeparator:","`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" env:"OTEL_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// Defaults returns the configuration described by the embedded defaults.yaml.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load returns the embedded defaults overlaid with environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and fills in anything left empty.
func (c *Config) Validate() error {
	if c.Matching.Threshold <= 0 {
		return errors.New("MATCH_THRESHOLD must be positive")
	}
	if c.Matching.ConfirmationThreshold <= 0 {
		c.Matching.ConfirmationThreshold = constants.DefaultConfirmationThreshold
	}
	switch {
	case c.Capture.SampleInterval == 0:
		c.Capture.SampleInterval = constants.DefaultSampleInterval
	case c.Capture.SampleInterval < constants.MinSampleInterval || c.Capture.SampleInterval > constants.MaxSampleInterval:
		return fmt.Errorf("SAMPLE_INTERVAL must be between %s and %s, got %s",
			constants.MinSampleInterval, constants.MaxSampleInterval, c.Capture.SampleInterval)
	}
	if c.Capture.DetectTimeout < 0 {
		return errors.New("DETECT_TIMEOUT must not be negative")
	}
	if c.Embedding.Dim < 0 {
		return errors.New("EMBEDDING_DIM must not be negative")
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "face-attendance"
	}
	return nil
}

// UsesPostgres reports whether a PostgreSQL database is configured.
func (c *DatabaseConfig) UsesPostgres() bool {
	return c.URL != ""
}
