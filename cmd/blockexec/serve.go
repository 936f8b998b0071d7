package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harshithgowdakt/blockexec/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve configured pipelines over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer env.logger.Sync() //nolint:errcheck
			if addr != "" {
				env.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.NewServer(env.cfg, env.engine, env.collector).Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
