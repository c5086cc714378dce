package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/talentboard/internal/adapters/repository"
)

const (
	envPrefix  = "TALENTBOARD_"
	envFileVar = "TALENTBOARD_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if TALENTBOARD_CONFIG is set
//  3. env (prefix TALENTBOARD_), including values from a local .env file
func Load(ctx context.Context) (*Config, error) {
	// .env is optional; variables already set win over it.
	_ = godotenv.Load()

	base := New(ctx)
	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// TALENTBOARD_QUEUE_SIZE -> queue_size (flat keys)
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch cfg.Store {
	case repository.BackendMemory, repository.BackendSQLite:
	default:
		return nil, fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, cfg.Store)
	}
	if cfg.Store == repository.BackendSQLite && cfg.SQLitePath == "" {
		return nil, fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
	}
	return &cfg, nil
}
