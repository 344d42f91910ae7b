package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/bcgen/codegen"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[codegen]
optimizing = true
asserts = false
emit-edge-counters = true
optimization-counter-threshold = 100

[pipeline]
workers = 3
fallback-unoptimized = false

[cache]
path = "out/cache.db"

[log]
verbosity = 2
file = "bcgen.log"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	opts := c.CodegenOptions()
	if !opts.Optimizing || opts.Asserts || !opts.EmitEdgeCounters {
		t.Errorf("codegen options = %+v", opts)
	}
	if !opts.TypeChecks {
		t.Error("type-checks lost its default")
	}
	if opts.OptimizationCounterThreshold != 100 {
		t.Errorf("threshold = %d, want 100", opts.OptimizationCounterThreshold)
	}
	if c.Pipeline.Workers != 3 || c.Pipeline.FallbackUnoptimized {
		t.Errorf("pipeline = %+v", c.Pipeline)
	}
	if c.Log.Verbosity != 2 || c.Log.File != "bcgen.log" {
		t.Errorf("log = %+v", c.Log)
	}
	abs, _ := filepath.Abs(dir)
	if c.Dir != abs {
		t.Errorf("dir = %q, want %q", c.Dir, abs)
	}
	if want := filepath.Join(abs, "out", "cache.db"); c.CachePath() != want {
		t.Errorf("cache path = %q, want %q", c.CachePath(), want)
	}
}

func TestDefaults(t *testing.T) {
	c, err := Parse("")
	if err != nil {
		t.Fatal(err)
	}
	opts := c.CodegenOptions()
	def := codegen.DefaultOptions()
	if opts != def {
		t.Errorf("default options = %+v, want %+v", opts, def)
	}
	if c.Pipeline.Workers <= 0 || !c.Pipeline.FallbackUnoptimized {
		t.Errorf("pipeline defaults = %+v", c.Pipeline)
	}

	c, err = Parse("[pipeline]\nworkers = 0\n[cache]\npath = \"\"\n")
	if err != nil {
		t.Fatal(err)
	}
	if c.Pipeline.Workers <= 0 {
		t.Errorf("workers = %d, want a positive default", c.Pipeline.Workers)
	}
	if c.CachePath() != "" {
		t.Errorf("empty cache path resolved to %q", c.CachePath())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"syntax", "[codegen\n", "toml:"},
		{"unknown key", "[codegen]\nregister-count = 4\n", "unknown keys: codegen.register-count"},
		{"unknown section", "[server]\nport = 1\n", "unknown keys: server"},
		{"wrong type", "[pipeline]\nworkers = \"four\"\n", "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[log]\nverbosity = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Log.Verbosity != 3 {
		t.Errorf("verbosity = %d, want 3", c.Log.Verbosity)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadWithoutFile(t *testing.T) {
	dir := t.TempDir()
	c, err := FindAndLoad(dir)
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(dir)
	if c.Dir != abs || c.Log.Verbosity != 1 {
		t.Errorf("config = %+v", c)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load succeeded without a file")
	}
}
