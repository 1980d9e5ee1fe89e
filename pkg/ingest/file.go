package ingest

import (
	"context"
	"fmt"

	"github.com/cuemby/potato/pkg/storage"
	"github.com/cuemby/potato/pkg/tsv"
	"github.com/cuemby/potato/pkg/types"
	"github.com/rs/zerolog"
)

// LoadFile loads a TSV export into store. With countRows set the file is read
// once beforehand so that progress can report the remaining rows.
func LoadFile(ctx context.Context, store storage.Store, schema *types.Schema, path string, countRows bool, cfg Config, logger zerolog.Logger, opts ...Option) (*RunSummary, error) {
	if countRows {
		n, err := tsv.CountRows(path)
		if err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
		cfg.Total = n
		logger.Info().Str("input", path).Int("rows", n).Msg("Counted input rows")
	}

	r, err := tsv.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	logger.Debug().Strs("columns", r.Header().Names()).Msg("Read header")
	for _, f := range schema.Fields() {
		if f.Required && !r.Header().Has(f.Name) {
			logger.Warn().Str("column", f.Name).Msg("Required column missing from header, every row will be rejected")
		}
	}

	return NewLoader(store, schema, cfg, logger, opts...).Run(ctx, r)
}
