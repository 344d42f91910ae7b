// Package config handles bcgen.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/bcgen/codegen"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "bcgen.toml"

// Config represents a bcgen.toml file.
type Config struct {
	Codegen  Codegen  `toml:"codegen"`
	Pipeline Pipeline `toml:"pipeline"`
	Cache    Cache    `toml:"cache"`
	Log      Log      `toml:"log"`

	// Dir is the directory containing the bcgen.toml file (set at load time).
	Dir string `toml:"-"`
}

// Codegen mirrors codegen.Options.
type Codegen struct {
	Optimizing                   bool `toml:"optimizing"`
	Asserts                      bool `toml:"asserts"`
	TypeChecks                   bool `toml:"type-checks"`
	EmitEdgeCounters             bool `toml:"emit-edge-counters"`
	OptimizationCounterThreshold int  `toml:"optimization-counter-threshold"`
}

// Pipeline configures concurrent compilation.
type Pipeline struct {
	Workers             int  `toml:"workers"`
	FallbackUnoptimized bool `toml:"fallback-unoptimized"`
}

// Cache configures the persistent code cache. An empty path disables it.
type Cache struct {
	Path string `toml:"path"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Codegen: Codegen{
			Asserts:                      true,
			TypeChecks:                   true,
			OptimizationCounterThreshold: codegen.DefaultOptimizationCounterThreshold,
		},
		Pipeline: Pipeline{
			Workers:             runtime.GOMAXPROCS(0),
			FallbackUnoptimized: true,
		},
		Cache: Cache{Path: filepath.Join(".bcgen", "cache.db")},
		Log:   Log{Verbosity: 1},
	}
}

// Load parses the bcgen.toml file in dir.
func Load(dir string) (*Config, error) {
	c, err := LoadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile parses the configuration file at path. Keys missing from the
// file keep their defaults; unknown keys are an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes configuration text over the defaults.
func Parse(text string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(text, c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	// Defaults
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Codegen.OptimizationCounterThreshold < 0 {
		c.Codegen.OptimizationCounterThreshold = 0
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a bcgen.toml file, then loads
// it. Without a file it returns Default rooted at startDir.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	start := dir

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			c := Default()
			c.Dir = start
			return c, nil
		}
		dir = parent
	}
}

// CodegenOptions converts the [codegen] section.
func (c *Config) CodegenOptions() codegen.Options {
	return codegen.Options{
		Optimizing:                   c.Codegen.Optimizing,
		Asserts:                      c.Codegen.Asserts,
		TypeChecks:                   c.Codegen.TypeChecks,
		EmitEdgeCounters:             c.Codegen.EmitEdgeCounters,
		OptimizationCounterThreshold: c.Codegen.OptimizationCounterThreshold,
	}
}

// CachePath returns the absolute cache database path, or "" when the cache
// is disabled.
func (c *Config) CachePath() string {
	if c.Cache.Path == "" || filepath.IsAbs(c.Cache.Path) {
		return c.Cache.Path
	}
	return filepath.Join(c.Dir, c.Cache.Path)
}
