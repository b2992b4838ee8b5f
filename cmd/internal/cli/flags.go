// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/treesync/lib/config"
)

// CommonFlags are the flags every treesync binary accepts.
type CommonFlags struct {
	ConfigPath string
	LogLevel   string
	Version    bool
}

// AddFlags registers the common flags on flagSet.
func (c *CommonFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.ConfigPath, "config", "", "config file (default: $"+config.EnvironmentVariable+", else built-in defaults)")
	flagSet.StringVar(&c.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&c.Version, "version", false, "print version information and exit")
}

// Config resolves the configuration file. Failures are validation
// errors.
func (c *CommonFlags) Config() (*config.Config, error) {
	cfg, err := config.Resolve(c.ConfigPath)
	if err != nil {
		return nil, Validation("%w", err)
	}
	return cfg, nil
}

// Level parses --log-level.
func (c *CommonFlags) Level() (slog.Level, error) { return ParseLevel(c.LogLevel) }
