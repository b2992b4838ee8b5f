// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/treesync/lib/journal"
)

// EnvironmentVariable names the variable holding the config file path.
const EnvironmentVariable = "TREESYNC_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// ColorModes are the accepted values of render.color.
var ColorModes = []string{"auto", "ascii", "ansi", "ansi256", "truecolor"}

// Duration is a time.Duration written as a Go duration string ("250ms")
// in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

// Config is the configuration shared by every treesync binary.
type Config struct {
	Environment Environment `yaml:"environment"`

	Paths   PathsConfig   `yaml:"paths"`
	Adapter AdapterConfig `yaml:"adapter"`
	Poller  PollerConfig  `yaml:"poller"`
	Journal JournalConfig `yaml:"journal"`
	Render  RenderConfig  `yaml:"render"`

	Authority AuthorityConfig `yaml:"authority"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Adapter *AdapterConfig `yaml:"adapter,omitempty"`
	Poller  *PollerConfig  `yaml:"poller,omitempty"`
	Journal *JournalConfig `yaml:"journal,omitempty"`
	Render  *RenderConfig  `yaml:"render,omitempty"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Root is the base directory for treesync state.
	Root string `yaml:"root"`

	// Socket is the authority's Unix socket.
	// Default: ${TREESYNC_ROOT}/authority.sock
	Socket string `yaml:"socket"`
}

// AdapterConfig configures outbound command timing.
type AdapterConfig struct {
	// SelectionDelay debounces selection reports. Default: 250ms.
	SelectionDelay Duration `yaml:"selection_delay"`

	// ContentDelay debounces outline content evaluation. Default: 300ms.
	ContentDelay Duration `yaml:"content_delay"`
}

// PollerConfig configures inbound delta polling.
type PollerConfig struct {
	// LongPollWait is how long the authority may hold a poll open.
	// Default: 25s.
	LongPollWait Duration `yaml:"long_poll_wait"`

	// ShortInterval spaces polls while long polling is off. Default: 5s.
	ShortInterval Duration `yaml:"short_interval"`
}

// JournalConfig configures delta journaling.
type JournalConfig struct {
	// Path is the journal file. Empty disables journaling.
	Path string `yaml:"path"`

	// Compression is "none", "lz4", or "zstd". Default: none.
	Compression string `yaml:"compression"`
}

// RenderConfig configures terminal output.
type RenderConfig struct {
	// Width truncates rendered lines. Zero means the terminal width
	// for interactive views and no limit otherwise.
	Width int `yaml:"width"`

	// Color is one of ColorModes. Default: auto.
	Color string `yaml:"color"`
}

// AuthorityConfig configures the demo authority server.
type AuthorityConfig struct {
	// Fixture is the JSONC tree fixture to serve.
	Fixture string `yaml:"fixture"`

	// OutboxLimit caps the deltas retained for polling clients.
	// Default: 4096.
	OutboxLimit int `yaml:"outbox_limit"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "treesync")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:   defaultRoot,
			Socket: filepath.Join(defaultRoot, "authority.sock"),
		},
		Adapter: AdapterConfig{
			SelectionDelay: Duration(250 * time.Millisecond),
			ContentDelay:   Duration(300 * time.Millisecond),
		},
		Poller: PollerConfig{
			LongPollWait:  Duration(25 * time.Second),
			ShortInterval: Duration(5 * time.Second),
		},
		Journal: JournalConfig{
			Compression: "none",
		},
		Render: RenderConfig{
			Color: "auto",
		},
		Authority: AuthorityConfig{
			OutboxLimit: 4096,
		},
	}
}

// Load loads configuration from the TREESYNC_CONFIG environment
// variable and fails when it is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your treesync.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// Resolve loads the file named by flagPath, or by TREESYNC_CONFIG when
// flagPath is empty. With neither set it returns [Default].
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

// LoadFile loads configuration from a specific file path and validates
// it.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Journal: &JournalConfig{
					Path:        "${TREESYNC_ROOT}/session.tsj",
					Compression: "zstd",
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Socket != "" {
			c.Paths.Socket = overrides.Paths.Socket
		}
	}

	if overrides.Adapter != nil {
		if overrides.Adapter.SelectionDelay != 0 {
			c.Adapter.SelectionDelay = overrides.Adapter.SelectionDelay
		}
		if overrides.Adapter.ContentDelay != 0 {
			c.Adapter.ContentDelay = overrides.Adapter.ContentDelay
		}
	}

	if overrides.Poller != nil {
		if overrides.Poller.LongPollWait != 0 {
			c.Poller.LongPollWait = overrides.Poller.LongPollWait
		}
		if overrides.Poller.ShortInterval != 0 {
			c.Poller.ShortInterval = overrides.Poller.ShortInterval
		}
	}

	if overrides.Journal != nil {
		if overrides.Journal.Path != "" {
			c.Journal.Path = overrides.Journal.Path
		}
		if overrides.Journal.Compression != "" {
			c.Journal.Compression = overrides.Journal.Compression
		}
	}

	if overrides.Render != nil {
		if overrides.Render.Width != 0 {
			c.Render.Width = overrides.Render.Width
		}
		if overrides.Render.Color != "" {
			c.Render.Color = overrides.Render.Color
		}
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"TREESYNC_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["TREESYNC_ROOT"] = c.Paths.Root

	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
	c.Journal.Path = expandVars(c.Journal.Path, vars)
	c.Authority.Fixture = expandVars(c.Authority.Fixture, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, errors.New("paths.socket is required"))
	}
	if c.Adapter.SelectionDelay < 0 {
		errs = append(errs, errors.New("adapter.selection_delay must not be negative"))
	}
	if c.Adapter.ContentDelay < 0 {
		errs = append(errs, errors.New("adapter.content_delay must not be negative"))
	}
	if c.Poller.LongPollWait <= 0 {
		errs = append(errs, errors.New("poller.long_poll_wait must be positive"))
	}
	if c.Poller.ShortInterval <= 0 {
		errs = append(errs, errors.New("poller.short_interval must be positive"))
	}
	if _, err := journal.ParseCompression(c.Journal.Compression); err != nil {
		errs = append(errs, fmt.Errorf("journal.compression: %w", err))
	}
	if c.Render.Width < 0 {
		errs = append(errs, errors.New("render.width must not be negative"))
	}
	if !slices.Contains(ColorModes, c.Render.Color) {
		errs = append(errs, fmt.Errorf("render.color must be one of: %v", ColorModes))
	}
	if c.Authority.OutboxLimit < 0 {
		errs = append(errs, errors.New("authority.outbox_limit must not be negative"))
	}

	return errors.Join(errs...)
}

// JournalCompression returns the parsed journal compression.
func (c *Config) JournalCompression() journal.Compression {
	compression, _ := journal.ParseCompression(c.Journal.Compression)
	return compression
}

// EnsurePaths creates the directories that hold the socket and journal.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Paths.Root, filepath.Dir(c.Paths.Socket)}
	if c.Journal.Path != "" {
		paths = append(paths, filepath.Dir(c.Journal.Path))
	}
	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
