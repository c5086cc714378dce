// Package config defines service configuration and how it is loaded.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/okian/talentboard/internal/adapters/repository"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/internal/tracing"
)

const minJWTSecretLen = 16

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Owner is the identity allowed to verify talents.
	Owner string `koanf:"owner"`

	// Store selects the backend: memory or sqlite.
	Store string `koanf:"store"`

	// SQLitePath is the database file of the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// JWTSecret signs and verifies bearer tokens (HS256).
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTL bounds the lifetime of issued tokens.
	TokenTTL time.Duration `koanf:"token_ttl"`

	// QueueSize bounds the in-memory event queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of directory workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxPageSize caps the limit of every listing.
	MaxPageSize int `koanf:"max_page_size"`

	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	TracingEndpoint   string  `koanf:"tracing_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	tc := tracing.DefaultConfig()
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		Store:             repository.BackendMemory,
		SQLitePath:        "talentboard.db",
		TokenTTL:          24 * time.Hour,
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        50_000,
		MaxPageSize:       100,
		TracingEnabled:    tc.Enabled,
		TracingExporter:   tc.Exporter,
		TracingEndpoint:   tc.OTLPEndpoint,
		TracingSampleRate: tc.SampleRate,
	}
}

// OwnerIdentity parses Owner.
func (c *Config) OwnerIdentity() (model.Identity, error) {
	id, err := model.ParseIdentity(c.Owner)
	if err != nil {
		return "", fmt.Errorf("%w: owner %q: %w", ErrInvalidConfig, c.Owner, err)
	}
	return id, nil
}

// Tracing returns the tracing subsystem configuration.
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:      c.TracingEnabled,
		Exporter:     c.TracingExporter,
		OTLPEndpoint: c.TracingEndpoint,
		SampleRate:   c.TracingSampleRate,
		ServiceName:  "talentboard",
	}
}

// Validate checks the settings a serving process cannot run without.
func (c *Config) Validate() error {
	if _, err := c.OwnerIdentity(); err != nil {
		return err
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("%w: jwt_secret must be at least %d bytes", ErrInvalidConfig, minJWTSecretLen)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%w: token_ttl must be positive", ErrInvalidConfig)
	}
	return nil
}
