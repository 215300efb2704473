// Package config loads graphview settings from a YAML file with
// GRAPHVIEW_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/store"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
	"github.com/dd0wney/cluso-graphview/pkg/validation"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "GRAPHVIEW_"

// Config is the complete runtime configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     store.Config    `yaml:"store"`
	Layout    layout.Config   `yaml:"layout"`
	Builder   BuilderConfig   `yaml:"builder"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// FinalFrameTimeout bounds how long a slow stream consumer may delay the
	// terminal frame of a session
	FinalFrameTimeout time.Duration `yaml:"final_frame_timeout"`
	// LayoutStartsPerSecond rate-limits session starts per client; 0 disables
	LayoutStartsPerSecond float64 `yaml:"layout_starts_per_second"`
	LayoutStartBurst      int     `yaml:"layout_start_burst"`
	// MaxActiveSessions marks the service degraded above this many running
	// sessions; 0 disables the check
	MaxActiveSessions int   `yaml:"max_active_sessions"`
	MaxBodyBytes      int64 `yaml:"max_body_bytes"`
	// SessionRetention keeps finished sessions addressable for this long;
	// MaxRetainedSessions caps how many are kept
	SessionRetention    time.Duration `yaml:"session_retention"`
	MaxRetainedSessions int           `yaml:"max_retained_sessions"`
}

// BuilderConfig sets the initial placement box of synthesized nodes
type BuilderConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	// Seed fixes initial placement when non-zero
	Seed int64 `yaml:"seed"`
	// DecodeWorkers decodes documents concurrently when above 1
	DecodeWorkers int `yaml:"decode_workers"`
}

// TransportConfig enables publishing frames to other processes
type TransportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig sets the default log level
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      0, // frame streams are long-lived
			ShutdownTimeout:   10 * time.Second,
			FinalFrameTimeout: time.Second,

			LayoutStartsPerSecond: 2,
			LayoutStartBurst:      10,
			MaxActiveSessions:     64,
			MaxBodyBytes:          64 << 10,
			SessionRetention:      layout.DefaultRetention,
			MaxRetainedSessions:   layout.DefaultMaxRetained,
		},
		Store: store.Config{
			Driver: store.DriverDir,
			Path:   "./workspaces",
		},
		Layout: layout.DefaultConfig(),
		Builder: BuilderConfig{
			Width:         synthesis.DefaultWidth,
			Height:        synthesis.DefaultHeight,
			DecodeWorkers: 4,
		},
		Transport: TransportConfig{
			Addr: "tcp://127.0.0.1:40899",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	var errs []error
	if err := validation.ValidateStruct(c); err != nil {
		errs = append(errs, err)
	}
	if err := c.Layout.Validate(); err != nil {
		errs = append(errs, err)
	}

	v := validation.NewConfigValidator("Config").
		RangeDuration("Server.ShutdownTimeout", c.Server.ShutdownTimeout, 0, 5*time.Minute).
		RangeDuration("Server.FinalFrameTimeout", c.Server.FinalFrameTimeout, 0, time.Minute).
		NonNegativeFloat("Server.LayoutStartsPerSecond", c.Server.LayoutStartsPerSecond).
		When(c.Server.LayoutStartsPerSecond > 0, func(cv *validation.ConfigValidator) {
			cv.RangeInt("Server.LayoutStartBurst", c.Server.LayoutStartBurst, 1, 10000)
		}).
		NonNegative("Server.MaxActiveSessions", c.Server.MaxActiveSessions).
		PositiveInt64("Server.MaxBodyBytes", c.Server.MaxBodyBytes).
		RangeDuration("Server.SessionRetention", c.Server.SessionRetention, 0, 24*time.Hour).
		NonNegative("Server.MaxRetainedSessions", c.Server.MaxRetainedSessions).
		PositiveFloat("Builder.Width", c.Builder.Width).
		PositiveFloat("Builder.Height", c.Builder.Height).
		RangeInt("Builder.DecodeWorkers", c.Builder.DecodeWorkers, 0, 1024).
		When(c.Store.Driver == store.DriverDir || c.Store.Driver == store.DriverSQLite, func(cv *validation.ConfigValidator) {
			cv.Required("Store.Path", c.Store.Path)
		}).
		When(c.Store.Driver == store.DriverPostgres, func(cv *validation.ConfigValidator) {
			cv.Required("Store.DSN", c.Store.DSN)
		}).
		When(c.Store.Driver == store.DriverS3, func(cv *validation.ConfigValidator) {
			cv.Required("Store.S3.Bucket", c.Store.S3.Bucket)
		}).
		When(c.Transport.Enabled, func(cv *validation.ConfigValidator) {
			cv.Required("Transport.Addr", c.Transport.Addr)
		})
	if err := v.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
