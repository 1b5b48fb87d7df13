// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/relic-scm/relic/lib/repodb"
	"github.com/relic-scm/relic/lib/resolve"
)

// Config is the optional file configuration. Flags override file
// values; the file is located by --config or the RELIC_CONFIG
// environment variable. There is no automatic discovery — an absent
// setting means defaults.
type Config struct {
	// Repository is the repository file path, so frequently-used
	// repositories do not need --repo on every invocation.
	Repository string `yaml:"repository"`

	// CacheCapacity is the resolved-artifact cache size. 0 disables
	// caching.
	CacheCapacity int `yaml:"cache_capacity"`

	// VerifyIntegrity enables content-hash verification on every
	// first-time resolution.
	VerifyIntegrity bool `yaml:"verify_integrity"`

	// PrefixPolicy is "strict" (ambiguous prefixes fail) or "first"
	// (lexicographically first match).
	PrefixPolicy string `yaml:"prefix_policy"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
}

// defaultConfig returns the built-in defaults used when no file and
// no flag provides a value.
func defaultConfig() Config {
	return Config{
		CacheCapacity: resolve.DefaultCacheCapacity,
		PrefixPolicy:  repodb.PrefixStrict.String(),
		LogLevel:      "warn",
	}
}

// loadConfig reads the config file at path, or at $RELIC_CONFIG when
// path is empty. Returns defaults when neither names a file.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv("RELIC_CONFIG")
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.CacheCapacity < 0 {
		return cfg, fmt.Errorf("config %s: cache_capacity must be non-negative", path)
	}
	if _, err := repodb.ParsePrefixPolicy(cfg.PrefixPolicy); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// parseLogLevel maps a config level name to a slog level.
func parseLogLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", name)
	}
}
