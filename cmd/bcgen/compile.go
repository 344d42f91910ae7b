package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/chazu/bcgen/codecache"
	"github.com/chazu/bcgen/codeimage"
	"github.com/chazu/bcgen/pipeline"
	"github.com/chazu/bcgen/source"
)

const (
	compileOptimize = "optimize"
	compileOut      = "out"
	compileCache    = "cache"
	compileScript   = "script"
	compileListing  = "listing"
	compileWorkers  = "workers"
)

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "Compile the functions of an IR file",
		ArgsUsage: "file.ir",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  compileOptimize,
				Usage: "Emit optimized register code, falling back to unoptimized code on bailout",
			},
			&cli.StringFlag{
				Name:  compileOut,
				Usage: "Directory to write one <function>.cbor image per compiled function",
			},
			&cli.BoolFlag{
				Name:  compileCache,
				Usage: "Store compiled images in the code cache",
			},
			&cli.StringFlag{
				Name:  compileScript,
				Usage: "Source script that line:col positions refer to",
			},
			&cli.BoolFlag{
				Name:  compileListing,
				Usage: "Print the full listing of every compiled function",
			},
			&cli.IntFlag{
				Name:  compileWorkers,
				Usage: "Number of concurrent compilations; overrides [pipeline] workers",
			},
		},
		Action: runCompile,
	}
}

func runCompile(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("compile takes exactly one IR file")
	}
	cfg := configFrom(c)
	path := c.Args().First()
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	script, err := readScript(c.String(compileScript))
	if err != nil {
		return err
	}
	jobs, err := pipeline.JobsFromText(string(text), script)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	opts := pipeline.Options{
		Codegen:             cfg.CodegenOptions(),
		Workers:             cfg.Pipeline.Workers,
		FallbackUnoptimized: cfg.Pipeline.FallbackUnoptimized,
	}
	if c.Bool(compileOptimize) {
		opts.Codegen.Optimizing = true
	}
	if n := c.Int(compileWorkers); n > 0 {
		opts.Workers = n
	}
	if c.Bool(compileCache) {
		if cfg.CachePath() == "" {
			return fmt.Errorf("--cache given but no cache path is configured")
		}
		cache, err := codecache.Open(cfg.CachePath())
		if err != nil {
			return err
		}
		defer cache.Close()
		opts.Cache = cache
	}

	results, err := pipeline.New(opts).Run(c.Context, jobs)
	if err != nil {
		return err
	}
	w := c.App.Writer
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%-20s FAILED %s\n", r.Name, r.Err)
			continue
		}
		mode := "unoptimized"
		if r.Code.Optimized {
			mode = "optimized"
		}
		if r.FellBack() {
			mode += " (fallback)"
		}
		fmt.Fprintf(w, "%-20s %s %5d bytes  %s\n", r.Name, codeimage.ShortHash(r.Hash), len(r.Code.Bytecode), mode)
		if c.Bool(compileListing) {
			fmt.Fprintln(w, r.Code)
		}
		if out := c.String(compileOut); out != "" {
			if err := writeImage(out, r.Image); err != nil {
				return err
			}
		}
	}
	return pipeline.Errors(results)
}

func readScript(path string) (*source.Script, error) {
	if path == "" {
		return nil, nil
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read script %s: %w", path, err)
	}
	return source.NewScript(filepath.Base(path), string(text)), nil
}

func writeImage(dir string, img *codeimage.Image) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := codeimage.Marshal(img)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", img.Name, err)
	}
	return os.WriteFile(filepath.Join(dir, img.Name+".cbor"), data, 0o644)
}
