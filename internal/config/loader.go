package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"
)

const (
	// EnvPrefix prefixes every environment override, e.g. RIVALS_ADDR.
	EnvPrefix = "RIVALS_"
	// FileEnv names the variable holding an optional YAML config path.
	FileEnv = "RIVALS_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if RIVALS_CONFIG is set
//  3. env (prefix RIVALS_)
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := os.Getenv(FileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrLoadConfig, path, err)
		}
	}

	// RIVALS_ROOM_TTL -> room_ttl. Underscores are kept to match the flat koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}
	// The file path itself is not a config key.
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}
	if c.RoomTTL < 0 {
		return fmt.Errorf("%w: room_ttl must not be negative", ErrInvalidConfig)
	}
	if c.TournamentDuration <= 0 || c.TickInterval <= 0 {
		return fmt.Errorf("%w: tournament_duration and tick_interval must be positive", ErrInvalidConfig)
	}
	if c.HistorianBatchSize <= 0 || c.HistorianFlushInterval <= 0 {
		return fmt.Errorf("%w: historian batch size and flush interval must be positive", ErrInvalidConfig)
	}
	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("%w: reconnect_attempts must not be negative", ErrInvalidConfig)
	}
	if c.ReconnectBaseDelay <= 0 || c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		return fmt.Errorf("%w: reconnect delays must satisfy 0 < base <= max", ErrInvalidConfig)
	}
	return nil
}

// splitList expands comma separated entries, as env vars carry lists that way.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Logger builds a logrus logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
