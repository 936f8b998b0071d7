package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/harshithgowdakt/blockexec/internal/codec"
	"github.com/harshithgowdakt/blockexec/internal/pipeline"
	"github.com/harshithgowdakt/blockexec/internal/server"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		format     string
		framesPath string
		codecName  string
	)
	cmd := &cobra.Command{
		Use:   "run [pipeline...]",
		Short: "Run pipelines and print their rows",
		Long:  "Run the named pipelines, or every configured pipeline, on a shared worker pool.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer env.logger.Sync() //nolint:errcheck

			names := args
			if len(names) == 0 {
				for _, p := range env.cfg.Pipelines {
					names = append(names, p.Name)
				}
			}
			if len(names) == 0 {
				return errors.New("no pipelines configured")
			}
			queries := make([]*pipeline.Query, 0, len(names))
			for _, name := range names {
				p, ok := env.cfg.Pipeline(name)
				if !ok {
					return errors.Newf("unknown pipeline %q", name)
				}
				q, err := pipeline.Build(p, env.engine)
				if err != nil {
					return err
				}
				q.PollInterval = env.cfg.PollInterval
				queries = append(queries, q)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			results, err := pipeline.NewPipelineExecutor(env.cfg.Workers).Execute(ctx, queries)
			if err != nil {
				return err
			}
			defer func() {
				for _, r := range results {
					r.Release()
				}
			}()

			out := cmd.OutOrStdout()
			for i, res := range results {
				if len(results) > 1 {
					fmt.Fprintf(out, "-- %s\n", queries[i].Name)
				}
				if err := server.FormatBlocks(out, res.Blocks, res.Registers, server.ParseFormat(format)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s rows in %s, %d pulls, %d waits, filtered %d, full count %d\n",
					queries[i].Name, humanize.Comma(int64(res.Rows)), res.Elapsed, res.Pulls, res.Waits,
					res.Stats.Filtered, res.Stats.FullCount)
			}
			if framesPath != "" {
				if err := writeFrames(framesPath, codecName, results); err != nil {
					return err
				}
			}
			mon := env.engine.Manager.Monitor()
			fmt.Fprintf(cmd.ErrOrStderr(), "block memory: peak %s, limit %s\n",
				humanize.IBytes(uint64(mon.Peak())), limitString(mon.Limit()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "tsv", "output format: tsv, csv or json")
	cmd.Flags().StringVar(&framesPath, "frames", "", "also write result blocks to this frame file")
	cmd.Flags().StringVar(&codecName, "codec", "lz4", "frame codec: lz4 or none")
	return cmd
}

func writeFrames(path, codecName string, results []*pipeline.Result) error {
	c, err := codec.ByName(codecName)
	if err != nil {
		return err
	}
	var frames [][]byte
	for _, res := range results {
		for _, b := range res.Blocks {
			f, err := codec.EncodeBlock(c, b)
			if err != nil {
				return err
			}
			frames = append(frames, f)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating frame file")
	}
	if err := codec.WriteFrames(f, frames...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func limitString(limit int64) string {
	if limit <= 0 {
		return "unlimited"
	}
	return humanize.IBytes(uint64(limit))
}
