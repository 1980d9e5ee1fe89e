package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cuemby/potato/pkg/api"
	"github.com/cuemby/potato/pkg/storage"
	"github.com/spf13/cobra"
)

func newQueryCmd(c *cli) *cobra.Command {
	var (
		term        string
		granularity string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run every analytic query once and print the results",
		Long: `Run the six analytic queries for one search term against the store and
print a JSON object keyed by API route name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := storage.ParseGranularity(granularity)
			if err != nil {
				return err
			}

			logger := c.logger(cmd)
			store, err := openStore(cmd.Context(), c.cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore(store, logger)

			var out bytes.Buffer
			out.WriteByte('{')
			for i, ep := range api.Endpoints {
				docs, err := store.Aggregate(cmd.Context(), storage.Query{Kind: ep.Kind, Term: term, Granularity: g})
				if err != nil {
					return fmt.Errorf("%s: %w", ep.Kind, err)
				}
				body, err := api.EncodeDocuments(docs)
				if err != nil {
					return err
				}
				if i > 0 {
					out.WriteByte(',')
				}
				fmt.Fprintf(&out, "%q:", strings.TrimPrefix(ep.Path, "/"))
				out.Write(body)
			}
			out.WriteString("}\n")

			_, err = cmd.OutOrStdout().Write(out.Bytes())
			return err
		},
	}

	cmd.Flags().StringVarP(&term, "term", "t", "", "Search term matched case-insensitively against post text")
	cmd.Flags().StringVar(&granularity, "granularity", string(storage.GranularitySecond), "Bucket size of tweet_times: second or hour")
	return cmd
}
