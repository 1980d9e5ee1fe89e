package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/potato/pkg/config"
	"github.com/cuemby/potato/pkg/ingest"
	"github.com/cuemby/potato/pkg/types"
	"github.com/spf13/cobra"
)

func newResyncCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Re-normalize the documents already in the store",
		Long: `Run every stored document back through normalization and upsert it,
fixing the field types of documents written by older loaders. Documents
that no longer validate are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, runID := c.runLogger(cmd)
			store, err := openStore(ctx, c.cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore(store, logger)

			total, err := store.Count(ctx)
			if err != nil {
				return err
			}
			logger.Info().Int64("documents", total).Int("batch_size", c.cfg.BatchSize).Msg("Starting resync")

			summary, err := ingest.Resync(ctx, store, types.PostSchema,
				ingest.Config{ChunkSize: c.cfg.BatchSize, Total: int(total), RunID: runID}, logger)
			if summary != nil {
				reportSummary(logger, summary)
			}
			if err != nil {
				if summary != nil && summary.Canceled {
					logger.Warn().Msg("Interrupted, stopped after the last complete chunk")
					return nil
				}
				return err
			}

			return nil
		},
	}

	cmd.Flags().Int(config.FlagBatchSize, config.Default().BatchSize, "Documents per bulk write")
	return cmd
}
