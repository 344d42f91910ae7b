// bcgen compiles textual flow graphs to bytecode and inspects the results.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/urfave/cli/v2"

	"github.com/chazu/bcgen/config"
)

const (
	globalConfig    = "config"
	globalVerbosity = "verbosity"
	globalMetrics   = "metrics"
)

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  globalConfig,
		Usage: "Path to a bcgen.toml file. By default bcgen.toml is searched for upwards from the working directory",
	},
	&cli.IntFlag{
		Name:  globalVerbosity,
		Value: -1,
		Usage: "Log verbosity; overrides [log] verbosity from the configuration when non-negative",
	},
	&cli.StringFlag{
		Name:  globalMetrics,
		Usage: "Write metrics in Prometheus text format to this file after the command; - for stdout",
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "bcgen: %v\n", err)
		os.Exit(1)
	}
}

// cfgKey stores the loaded configuration in the app metadata.
const cfgKey = "config"

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:   "bcgen",
		Usage:  "Bytecode generator for flow graphs",
		Writer: stdout,
		Flags:  globalFlags,
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			verbosity := cfg.Log.Verbosity
			if v := c.Int(globalVerbosity); v >= 0 {
				verbosity = v
			}
			var logFile *string
			if cfg.Log.File != "" {
				logFile = &cfg.Log.File
			}
			commonlog.Configure(verbosity, logFile)
			c.App.Metadata = map[string]any{cfgKey: cfg}
			return nil
		},
		After: func(c *cli.Context) error {
			return writeMetrics(c)
		},
		Commands: []*cli.Command{
			compileCommand(),
			disasmCommand(),
			positionsCommand(),
			cacheCommand(),
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String(globalConfig); path != "" {
		return config.LoadFile(path)
	}
	return config.FindAndLoad(".")
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[cfgKey].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func writeMetrics(c *cli.Context) error {
	path := c.String(globalMetrics)
	switch path {
	case "":
		return nil
	case "-":
		metrics.WritePrometheus(c.App.Writer, false)
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot write metrics: %w", err)
	}
	metrics.WritePrometheus(f, false)
	return f.Close()
}
