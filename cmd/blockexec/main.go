package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/config"
	"github.com/harshithgowdakt/blockexec/internal/exec"
	"github.com/harshithgowdakt/blockexec/internal/logging"
	"github.com/harshithgowdakt/blockexec/internal/metrics"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "blockexec",
		Short:         "Pull-based block execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (YAML)")
	root.AddCommand(
		newRunCmd(&configPath),
		newServeCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "blockexec", version)
			},
		},
	)
	return root
}

// env is what every command builds from the configuration.
type env struct {
	cfg       *config.Config
	logger    *zap.Logger
	engine    *exec.Engine
	collector *metrics.Collector
}

func setup(configPath string) (*env, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	limit, err := cfg.MemoryLimitBytes()
	if err != nil {
		return nil, err
	}
	e := exec.NewEngine(block.NewManager(block.NewResourceMonitor(limit)), logger)
	e.BatchSize = cfg.BatchSize
	c := metrics.NewCollector(e.Manager)
	e.Stats = exec.TeeSink{e.Stats, c}
	return &env{cfg: cfg, logger: logger, engine: e, collector: c}, nil
}
