package main

import (
	"fmt"
	"os"

	"github.com/cuemby/potato/pkg/config"
	"github.com/cuemby/potato/pkg/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the configuration resolved before a subcommand runs
type cli struct {
	cfg config.Config
}

// logger writes to the command's stderr so stdout stays machine readable
func (c *cli) logger(cmd *cobra.Command) zerolog.Logger {
	lc := c.cfg.Logging()
	lc.Output = cmd.ErrOrStderr()
	return log.New(lc)
}

// runLogger tags every entry of one run with the command name and a fresh id
func (c *cli) runLogger(cmd *cobra.Command) (zerolog.Logger, string) {
	runID := uuid.NewString()
	return log.WithRunID(log.WithComponent(c.logger(cmd), cmd.Name()), runID), runID
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "potato",
		Short: "Potato - tweet export loader and analytics API",
		Long: `Potato loads tab-separated tweet exports into a document store,
normalizing every column to its declared type, and answers a fixed set
of analytic queries over the stored posts through an HTTP API.

Settings come from flags, POTATO_* environment variables and an optional
YAML file given with --config, in that order of precedence.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Apply(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	root.SetVersionTemplate(fmt.Sprintf(
		"Potato version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newIngestCmd(c))
	root.AddCommand(newResyncCmd(c))
	root.AddCommand(newServeCmd(c))
	root.AddCommand(newQueryCmd(c))
	root.AddCommand(newConfigCmd(c))

	return root
}
