package ingest

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/potato/pkg/storage"
	"github.com/cuemby/potato/pkg/tsv"
	"github.com/cuemby/potato/pkg/types"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"
)

// Resync re-normalizes the documents already in the store. Every document is
// rendered back to raw cells, run through the normalizer and validator again,
// and re-upserted. Documents that no longer validate are counted and left as
// they are.
func Resync(ctx context.Context, store storage.Store, schema *types.Schema, cfg Config, logger zerolog.Logger, opts ...Option) (*RunSummary, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultResyncBatchSize
	}
	if cfg.Total == 0 {
		if n, err := store.Count(ctx); err == nil {
			cfg.Total = int(n)
		}
	}

	loader := NewLoader(store, schema, cfg, logger, opts...)
	src := &scanSource{rows: make(chan tsv.Row, cfg.ChunkSize)}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(src.rows)
		line := 0
		src.err = store.Scan(gctx, func(doc bson.Raw) error {
			line++
			select {
			case src.rows <- DocumentRow(line, doc, schema):
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		return src.err
	})

	var summary *RunSummary
	g.Go(func() error {
		var err error
		summary, err = loader.Run(ctx, src)
		return err
	})

	err := g.Wait()
	return summary, err
}

// scanSource adapts a store scan to a RowSource. err is written before rows
// is closed, so Next reads it safely after the channel drains.
type scanSource struct {
	rows chan tsv.Row
	err  error
}

func (s *scanSource) Next() (tsv.Row, error) {
	row, ok := <-s.rows
	if ok {
		return row, nil
	}
	if s.err != nil {
		return tsv.Row{}, fmt.Errorf("scan failed: %w", s.err)
	}
	return tsv.Row{}, io.EOF
}

// DocumentRow renders the schema fields of a stored document as raw cells.
// Fields the document does not carry are left out of the row.
func DocumentRow(line int, doc bson.Raw, schema *types.Schema) tsv.Row {
	values := make(map[string]string, schema.Len())
	for _, f := range schema.Fields() {
		rv, err := doc.LookupErr(f.Name)
		if err != nil {
			continue
		}
		if s, ok := renderValue(rv); ok {
			values[f.Name] = s
		}
	}
	return tsv.NewRow(line, values)
}

func renderValue(rv bson.RawValue) (string, bool) {
	switch rv.Type {
	case bson.TypeString:
		return rv.StringValue(), true
	case bson.TypeInt32:
		return strconv.FormatInt(int64(rv.Int32()), 10), true
	case bson.TypeInt64:
		return strconv.FormatInt(rv.Int64(), 10), true
	case bson.TypeDouble:
		return strconv.FormatFloat(rv.Double(), 'f', -1, 64), true
	case bson.TypeBoolean:
		return strconv.FormatBool(rv.Boolean()), true
	case bson.TypeDateTime:
		return rv.Time().UTC().Format(time.RFC3339Nano), true
	case bson.TypeNull:
		return "", true
	case bson.TypeArray:
		elems, err := rv.Array().Values()
		if err != nil {
			return "", false
		}
		items := make([]string, 0, len(elems))
		for _, e := range elems {
			if s, ok := renderValue(e); ok {
				items = append(items, s)
			}
		}
		return "[" + strings.Join(items, ",") + "]", true
	}
	return "", false
}
