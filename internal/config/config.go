// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

// Package config loads Crosstalk runtime configuration from an optional
// YAML file overridden by command-line flags.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full runtime configuration.
type Config struct {
	// UseAuth enables the credential subsystem (login, register, passwd).
	UseAuth bool `koanf:"use-auth"`

	// UsePermissions enables the permission subsystem. Without it every
	// check falls back to a hardcoded deny except for baseline commands.
	UsePermissions bool `koanf:"use-permissions"`

	// UseSuperuser honors the superadmin option during permission checks.
	UseSuperuser bool `koanf:"use-superuser"`

	// DatabaseURL is the PostgreSQL connection string. Empty selects the
	// in-memory store, which loses all state on restart.
	DatabaseURL string `koanf:"database-url"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log-format"`

	// MetricsAddr is the listen address for the observability server.
	// Empty disables it.
	MetricsAddr string `koanf:"metrics-addr"`
}

// Default returns the configuration used when no file or flags override it.
func Default() Config {
	return Config{
		UseAuth:        true,
		UsePermissions: true,
		UseSuperuser:   true,
		LogFormat:      "text",
	}
}

// Load reads configuration from path (skipped when empty or missing) and
// overlays any flags changed on the given flag set. Flag names must match
// the koanf field tags.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot be run.
func (c Config) Validate() error {
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return oops.Code("CONFIG_INVALID").
			With("log-format", c.LogFormat).
			New("log-format must be \"text\" or \"json\"")
	}
	return nil
}
