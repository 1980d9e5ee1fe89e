package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/potato/pkg/api"
	"github.com/cuemby/potato/pkg/config"
	"github.com/cuemby/potato/pkg/log"
	"github.com/cuemby/potato/pkg/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analytics API",
		Long: `Serve the analytic queries over HTTP until interrupted.

Each route takes a case-insensitive search term in the "term" query
parameter; /tweet_times also accepts granularity=second|hour.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := c.logger(cmd)
			store, err := openStore(ctx, c.cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore(store, logger)

			health := metrics.NewHealthChecker(Version, "store")
			collector := metrics.NewCollector(store, health, log.WithComponent(logger, "collector"), 0)
			collector.Start()
			defer collector.Stop()

			srv := api.NewServer(store, health, log.WithComponent(logger, "api"))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Start(c.cfg.Listen)
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info().Msg("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringP(config.FlagListen, "l", config.Default().Listen, "Address to listen on")
	return cmd
}
