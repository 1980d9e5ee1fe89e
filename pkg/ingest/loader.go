package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cuemby/potato/pkg/metrics"
	"github.com/cuemby/potato/pkg/normalize"
	"github.com/cuemby/potato/pkg/storage"
	"github.com/cuemby/potato/pkg/tsv"
	"github.com/cuemby/potato/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// DefaultChunkSize is the number of rows normalized and written together
	DefaultChunkSize = 50000
	// DefaultResyncBatchSize is the chunk size used when resyncing
	DefaultResyncBatchSize = 1000

	// failuresLogged caps the per-op failures logged for one chunk
	failuresLogged = 5
)

// RowSource yields rows one at a time. Next returns io.EOF at the end, a
// *tsv.RowError for a row that could not be parsed, and any other error for
// a failure that ends the run.
type RowSource interface {
	Next() (tsv.Row, error)
}

// State is the phase of a running load
type State string

const (
	StateIdle    State = "idle"
	StateReading State = "reading"
	StateWriting State = "writing"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Config holds loader settings
type Config struct {
	// ChunkSize is the number of rows per bulk write, DefaultChunkSize if 0
	ChunkSize int
	// Total is the number of rows the source will yield, 0 when unknown.
	// It is only used to report remaining rows.
	Total int
	// RunID tags every log entry of the run
	RunID string
	// SkipIndexes disables index creation before the first chunk
	SkipIndexes bool
}

// ChunkError records a chunk whose write did not fully succeed
type ChunkError struct {
	Chunk  int
	Failed int
	Err    error
}

// RunSummary holds the cumulative counters of one run
type RunSummary struct {
	RunID string

	Chunks        int
	SkippedChunks int
	Processed     int
	Rejected      int
	Written       int
	Failed        int

	Rejections  map[normalize.RejectReason]int
	ChunkErrors []ChunkError
	Stats       []normalize.FieldStats

	Canceled bool
	Duration time.Duration
}

// Total returns the number of rows read, processed or rejected
func (s *RunSummary) Total() int {
	return s.Processed + s.Rejected
}

// Loader reads rows in chunks, normalizes and validates them, and upserts
// the valid ones
type Loader struct {
	store      storage.Store
	normalizer *normalize.Normalizer
	validator  *normalize.Validator
	memory     MemorySampler
	logger     zerolog.Logger
	cfg        Config

	mu    sync.RWMutex
	state State
}

// Option configures a Loader
type Option func(*Loader)

// WithMemorySampler replaces the process memory sampler
func WithMemorySampler(m MemorySampler) Option {
	return func(l *Loader) {
		l.memory = m
	}
}

// NewLoader creates a loader writing records of schema to store
func NewLoader(store storage.Store, schema *types.Schema, cfg Config, logger zerolog.Logger, opts ...Option) *Loader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	l := &Loader{
		store:      store,
		normalizer: normalize.New(schema, logger),
		validator:  normalize.NewValidator(schema),
		memory:     NewProcessSampler(),
		logger:     logger,
		cfg:        cfg,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current phase
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Loader) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// EnsureIndexes creates the id (unique) and author_id indexes. Collections
// written by older loaders may already carry a conflicting index, such as a
// non-unique id index over duplicate ids; that index is kept and the conflict
// logged. Any other failure is returned.
func (l *Loader) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		field  string
		unique bool
	}{
		{types.FieldID, true},
		{types.FieldAuthorID, false},
	}

	for _, idx := range indexes {
		err := l.store.EnsureIndex(ctx, idx.field, idx.unique)
		if errors.Is(err, storage.ErrIndexConflict) {
			l.logger.Warn().
				Err(err).
				Str("field", idx.field).
				Bool("unique", idx.unique).
				Msg("Keeping existing index")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to ensure %s index: %w", idx.field, err)
		}
	}
	return nil
}

// Run loads every row of src. The context is only consulted between chunks:
// a chunk that started is always written to completion. Write failures are
// recorded in the summary and do not stop the run; index and read failures
// do. The summary is returned in every case.
func (l *Loader) Run(ctx context.Context, src RowSource) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{
		RunID:      l.cfg.RunID,
		Rejections: make(map[normalize.RejectReason]int),
	}
	defer func() {
		summary.Stats = l.normalizer.Stats().Snapshot()
		summary.Duration = time.Since(start)
	}()

	if !l.cfg.SkipIndexes {
		if err := l.EnsureIndexes(ctx); err != nil {
			l.setState(StateFailed)
			return summary, err
		}
	}

	l.logger.Info().
		Int("chunk_size", l.cfg.ChunkSize).
		Int("total", l.cfg.Total).
		Msg("Starting load")

	for {
		if err := ctx.Err(); err != nil {
			summary.Canceled = true
			l.setState(StateDone)
			l.logger.Warn().
				Int("chunks", summary.Chunks).
				Int("processed", summary.Processed).
				Msg("Load canceled between chunks")
			return summary, err
		}

		l.setState(StateReading)
		timer := metrics.NewTimer()

		ops, rejected, eof, err := l.readChunk(src, summary)
		if err != nil {
			l.setState(StateFailed)
			return summary, fmt.Errorf("failed to read input: %w", err)
		}
		if len(ops) == 0 && rejected == 0 {
			break
		}

		summary.Chunks++
		l.writeChunk(ctx, summary, ops)
		timer.ObserveDuration(metrics.IngestChunkDuration)
		l.logProgress(summary)

		if eof {
			break
		}
	}

	l.setState(StateDone)
	l.logger.Info().
		Int("chunks", summary.Chunks).
		Int("processed", summary.Processed).
		Int("rejected", summary.Rejected).
		Int("written", summary.Written).
		Int("failed", summary.Failed).
		Dur("duration", time.Since(start)).
		Msg("Load complete")

	return summary, nil
}

// readChunk reads up to ChunkSize rows and turns the valid ones into ops
func (l *Loader) readChunk(src RowSource, summary *RunSummary) ([]storage.UpsertOp, int, bool, error) {
	ops := make([]storage.UpsertOp, 0, l.cfg.ChunkSize)
	rejected := 0

	for read := 0; read < l.cfg.ChunkSize; read++ {
		row, err := src.Next()
		if err == io.EOF {
			return ops, rejected, true, nil
		}
		if err != nil {
			var rowErr *tsv.RowError
			if !errors.As(err, &rowErr) {
				return nil, 0, false, err
			}
			l.logger.Debug().Int("line", rowErr.Line).Err(rowErr.Err).Msg("Malformed row")
			l.reject(summary, normalize.ReasonMalformedRow)
			rejected++
			continue
		}

		rec := l.normalizer.Normalize(row)
		if reason, ok := l.validator.Validate(rec); !ok {
			l.logger.Debug().Int("line", row.Line).Str("reason", string(reason)).Msg("Row rejected")
			l.reject(summary, reason)
			rejected++
			continue
		}

		op, err := storage.NewUpsertOp(rec)
		if err != nil {
			l.reject(summary, normalize.ReasonMissingID)
			rejected++
			continue
		}
		ops = append(ops, op)
		summary.Processed++
		metrics.IngestRowsTotal.WithLabelValues("processed").Inc()
	}

	return ops, rejected, false, nil
}

func (l *Loader) reject(summary *RunSummary, reason normalize.RejectReason) {
	summary.Rejected++
	summary.Rejections[reason]++
	metrics.IngestRowsTotal.WithLabelValues("rejected").Inc()
	metrics.IngestRejectedTotal.WithLabelValues(string(reason)).Inc()
}

// writeChunk submits ops as one bulk upsert. The write is detached from ctx
// so that cancellation never interrupts a chunk.
func (l *Loader) writeChunk(ctx context.Context, summary *RunSummary, ops []storage.UpsertOp) {
	if len(ops) == 0 {
		summary.SkippedChunks++
		metrics.IngestChunksTotal.WithLabelValues("skipped").Inc()
		l.logger.Debug().Int("chunk", summary.Chunks).Msg("No valid rows in chunk, skipping write")
		return
	}

	l.setState(StateWriting)
	res, err := l.store.UpsertMany(context.WithoutCancel(ctx), ops)

	failed := len(ops)
	if res != nil {
		failed = res.Failed
		metrics.UpsertOpsTotal.WithLabelValues("matched").Add(float64(res.Matched))
		metrics.UpsertOpsTotal.WithLabelValues("modified").Add(float64(res.Modified))
		metrics.UpsertOpsTotal.WithLabelValues("upserted").Add(float64(res.Upserted))
	}
	summary.Written += len(ops) - failed
	summary.Failed += failed
	metrics.UpsertOpsTotal.WithLabelValues("failed").Add(float64(failed))

	if err == nil {
		metrics.IngestChunksTotal.WithLabelValues("written").Inc()
		if res != nil {
			l.logger.Debug().
				Int("chunk", summary.Chunks).
				Int("applied", res.Applied()).
				Int64("matched", res.Matched).
				Int64("upserted", res.Upserted).
				Msg("Chunk written")
		}
		return
	}

	metrics.IngestChunksTotal.WithLabelValues("failed").Inc()
	summary.ChunkErrors = append(summary.ChunkErrors, ChunkError{Chunk: summary.Chunks, Failed: failed, Err: err})

	l.logger.Error().
		Err(err).
		Int("chunk", summary.Chunks).
		Int("attempted", len(ops)).
		Int("failed", failed).
		Msg("Chunk write failed")

	var bwe *storage.BulkWriteError
	if errors.As(err, &bwe) {
		for i, f := range bwe.Failures {
			if i == failuresLogged {
				l.logger.Warn().Int("more", len(bwe.Failures)-i).Msg("Further op failures not logged")
				break
			}
			l.logger.Warn().
				Int("index", f.Index).
				Int64("id", f.ID).
				Int("code", f.Code).
				Str("error", f.Message).
				Msg("Op rejected")
		}
	}
}

func (l *Loader) logProgress(summary *RunSummary) {
	event := l.logger.Info().
		Int("chunk", summary.Chunks).
		Int("processed", summary.Processed).
		Int("rejected", summary.Rejected)

	if l.cfg.Total > 0 {
		remaining := l.cfg.Total - summary.Total()
		if remaining < 0 {
			remaining = 0
		}
		event = event.Int("remaining", remaining)
	}

	if rss, err := l.memory.RSS(); err == nil {
		metrics.IngestMemoryBytes.Set(float64(rss))
		event = event.Float64("rss_mb", float64(rss)/(1024*1024))
	} else {
		l.logger.Debug().Err(err).Msg("Failed to sample memory")
	}

	event.Msg("Chunk processed")
}
