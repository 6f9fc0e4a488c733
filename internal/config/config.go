// Package config loads roolz service configuration from CUE files.
package config

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Config holds the service configuration.
type Config struct {
	// Listen is the session server address.
	Listen string `json:"listen"`

	// Packages lists directories watched for rule sources.
	Packages []string `json:"packages"`

	// Database is the registry database path.
	Database string `json:"database"`

	// DebounceMS is the watcher coalescing window in milliseconds.
	DebounceMS int `json:"debounce_ms"`
}

// Default returns the configuration used when no file or flag overrides
// a setting.
func Default() Config {
	return Config{
		Listen:     "127.0.0.1:1234",
		Database:   "roolz.db",
		DebounceMS: 1000,
	}
}

// applyDefaults fills unset fields from Default(). A zero DebounceMS
// means "use the default", not "no debounce".
func (c *Config) applyDefaults() {
	def := Default()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.DebounceMS == 0 {
		c.DebounceMS = def.DebounceMS
	}
}

// Debounce returns the watcher coalescing window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.Database == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.DebounceMS < 0 {
		return fmt.Errorf("debounce_ms must not be negative (got %d)", c.DebounceMS)
	}
	return nil
}

// Load reads and decodes a CUE configuration file over the defaults.
//
// The file is evaluated with the CUE SDK in-process; any CUE evaluation
// error (syntax, conflicting values, wrong types) is reported with the
// file name.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compiling config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}
