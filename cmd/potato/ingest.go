package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/potato/pkg/config"
	"github.com/cuemby/potato/pkg/ingest"
	"github.com/cuemby/potato/pkg/storage"
	"github.com/cuemby/potato/pkg/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newIngestCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a TSV export into the store",
		Long: `Load a tab-separated tweet export into the store.

Rows are read in chunks, normalized to the declared column types and
upserted by id, so loading the same file twice leaves one document per
post. Rows without an id or a parseable created_at are skipped and counted.
Interrupting the command stops it after the chunk in progress is written.`,
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

			logger.Info().
				Str("input", c.cfg.Input).
				Str("backend", string(c.cfg.Backend)).
				Int("chunk_size", c.cfg.ChunkSize).
				Msg("Starting ingest")

			summary, err := ingest.LoadFile(ctx, store, types.PostSchema, c.cfg.Input, c.cfg.CountRows,
				ingest.Config{ChunkSize: c.cfg.ChunkSize, RunID: runID}, logger)
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

			reportCount(store, logger)
			return nil
		},
	}

	d := config.Default()
	cmd.Flags().StringP(config.FlagInput, "i", d.Input, "TSV file to load")
	cmd.Flags().Int(config.FlagChunkSize, d.ChunkSize, "Rows per bulk write")
	cmd.Flags().Bool(config.FlagCountRows, d.CountRows, "Count input rows first to report remaining rows")

	return cmd
}

func reportSummary(logger zerolog.Logger, summary *ingest.RunSummary) {
	rejections := zerolog.Dict()
	for reason, n := range summary.Rejections {
		rejections.Int(string(reason), n)
	}

	event := logger.Info()
	if summary.Canceled || len(summary.ChunkErrors) > 0 {
		event = logger.Warn()
	}
	event.
		Int("chunks", summary.Chunks).
		Int("skipped_chunks", summary.SkippedChunks).
		Int("processed", summary.Processed).
		Int("rejected", summary.Rejected).
		Int("written", summary.Written).
		Int("failed", summary.Failed).
		Dict("rejections", rejections).
		Int("chunk_errors", len(summary.ChunkErrors)).
		Bool("canceled", summary.Canceled).
		Dur("duration", summary.Duration).
		Msg("Run finished")

	for _, fs := range summary.Stats {
		if fs.Attempts == 0 {
			continue
		}
		logger.Info().
			Str("field", fs.Field).
			Int64("attempts", fs.Attempts).
			Int64("successes", fs.Successes).
			Float64("success_rate", fs.SuccessRate()).
			Msg("Field conversions")
	}
}

func reportCount(store storage.Store, logger zerolog.Logger) {
	n, err := store.Count(context.Background())
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to count documents")
		return
	}
	logger.Info().Int64("documents", n).Msg("Documents in collection")
}
