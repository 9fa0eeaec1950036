// Package config loads bgv-go settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/Benny93/bgv-go/internal/bgv"
	"github.com/Benny93/bgv-go/internal/passes"
)

// DefaultPath is where the CLI looks for a config file when --config is not
// given.
const DefaultPath = ".bgv.toml"

// Config holds parser, pass and index settings.
type Config struct {
	VersionCheck bool     `toml:"version_check"`
	MaxDepth     int      `toml:"max_depth"`
	KeepBlocks   bool     `toml:"keep_blocks"`
	ControlEdges []string `toml:"control_edges"`
	InfoEdges    []string `toml:"info_edges"`
	IndexDir     string   `toml:"index_dir"`
	Ignore       []string `toml:"ignore"`
	LogLevel     string   `toml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	opts := passes.DefaultOptions()
	return Config{
		VersionCheck: true,
		MaxDepth:     bgv.DefaultMaxDepth,
		ControlEdges: opts.ControlEdges,
		InfoEdges:    opts.InfoEdges,
		IndexDir:     ".bgv/index",
		LogLevel:     "info",
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data into cfg, leaving unset keys untouched.
func Parse(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if cfg.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", cfg.MaxDepth)
	}
	return nil
}

// ParserOptions translates the parser settings into bgv options.
func (c Config) ParserOptions() []bgv.Option {
	opts := []bgv.Option{bgv.WithMaxDepth(c.MaxDepth)}
	if c.KeepBlocks {
		opts = append(opts, bgv.WithKeepBlocks())
	}
	return opts
}

// PassOptions returns the edge classification used by the annotation passes.
func (c Config) PassOptions() passes.Options {
	return passes.Options{ControlEdges: c.ControlEdges, InfoEdges: c.InfoEdges}
}
