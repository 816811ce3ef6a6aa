// Package main implements the spreadcall CLI tool.
//
// The tool drives the expansion-call engine through scripted workloads and
// reports what the engine did:
//
//	spreadcall trace                  # 4000 calls, own @@iterator from call 1900
//	spreadcall trace --shared         # same, one array mutated in place
//	spreadcall stats --sites 8        # counters for a multi-site workload
//	spreadcall config init cfg.yaml   # write the default configuration
//	spreadcall version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kolkov/spreadcall/internal/config"
	"github.com/kolkov/spreadcall/internal/spread/engine"
)

var (
	// Flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "spreadcall",
	Short: "Speculative expansion-call specialization engine",
	Long: `spreadcall runs workloads against the expansion-call engine.

Call sites that repeatedly spread dense plain arrays get a guarded fast path
that reads array storage directly. Any change that could make the fast path
observably different retires it before the change becomes visible.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func newLogger(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// engineOptions maps the loaded configuration to engine options.
func engineOptions(c *config.Config) engine.Options {
	return engine.Options{
		Threshold:    c.Engine.Threshold,
		Background:   c.Engine.BackgroundCompile,
		Workers:      c.Engine.CompileWorkers,
		QueueSize:    c.Engine.CompileQueue,
		MaxArguments: c.Engine.MaxExpandedArgs,
		Logger:       logger,
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")

	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
