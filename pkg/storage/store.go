package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/potato/pkg/types"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrMissingID is returned when an upsert is built from a record without id
	ErrMissingID = errors.New("record has no id")
	// ErrUnknownPipeline is returned for a query kind no backend implements
	ErrUnknownPipeline = errors.New("unknown pipeline")
	// ErrInvalidGranularity is returned for an unsupported time bucket size
	ErrInvalidGranularity = errors.New("invalid granularity")
	// ErrIndexConflict is returned when an index on the field already exists
	// with other options, or existing documents violate the requested
	// uniqueness
	ErrIndexConflict = errors.New("index conflict")
)

// Store is the document store holding post records.
//
// Implementations return identical result documents for identical data, so
// callers never branch on the backend.
type Store interface {
	// EnsureIndex creates an ascending index on field. Calling it again with
	// the same arguments is a no-op. An index the store cannot reconcile with
	// what is already there fails with ErrIndexConflict.
	EnsureIndex(ctx context.Context, field string, unique bool) error

	// UpsertMany replaces-or-inserts every op keyed on id, unordered. A
	// non-nil result is returned even when some ops fail; the error is then
	// a *BulkWriteError describing the failures.
	UpsertMany(ctx context.Context, ops []UpsertOp) (*BatchResult, error)

	// Aggregate runs one analytic pipeline
	Aggregate(ctx context.Context, q Query) ([]bson.D, error)

	Count(ctx context.Context) (int64, error)

	// Scan calls fn for every stored document. The raw document is only valid
	// for the duration of the call.
	Scan(ctx context.Context, fn func(doc bson.Raw) error) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// PipelineKind names one of the analytic queries
type PipelineKind string

const (
	PipelineDailyCounts  PipelineKind = "daily_counts"
	PipelineUniqueUsers  PipelineKind = "unique_users"
	PipelineAverageLikes PipelineKind = "average_likes"
	PipelineTopPlaces    PipelineKind = "top_places"
	PipelineTimeOfDay    PipelineKind = "time_of_day"
	PipelineTopUser      PipelineKind = "top_user"
)

// Pipelines lists every analytic query in presentation order
var Pipelines = []PipelineKind{
	PipelineDailyCounts,
	PipelineUniqueUsers,
	PipelineAverageLikes,
	PipelineTopPlaces,
	PipelineTimeOfDay,
	PipelineTopUser,
}

// Granularity is the bucket size of the time-of-day histogram
type Granularity string

const (
	GranularitySecond Granularity = "second"
	GranularityHour   Granularity = "hour"
)

// ParseGranularity accepts "", "second" and "hour" in any case
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(GranularitySecond):
		return GranularitySecond, nil
	case string(GranularityHour):
		return GranularityHour, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
}

func (g Granularity) format() string {
	if g == GranularityHour {
		return "%H"
	}
	return "%H:%M:%S"
}

func (g Granularity) layout() string {
	if g == GranularityHour {
		return "15"
	}
	return "15:04:05"
}

// Query selects a pipeline and the search term its records must contain
type Query struct {
	Kind        PipelineKind
	Term        string
	Granularity Granularity
}

// Validate rejects unknown kinds and granularities
func (q Query) Validate() error {
	switch q.Kind {
	case PipelineDailyCounts, PipelineUniqueUsers, PipelineAverageLikes,
		PipelineTopPlaces, PipelineTimeOfDay, PipelineTopUser:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPipeline, q.Kind)
	}
	switch q.Granularity {
	case "", GranularitySecond, GranularityHour:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidGranularity, q.Granularity)
	}
	return nil
}

// UpsertOp replaces the document with the given id, inserting it if absent
type UpsertOp struct {
	ID  int64
	Doc bson.D
}

// NewUpsertOp builds the op for a validated record
func NewUpsertOp(rec *types.Record) (UpsertOp, error) {
	id, ok := rec.ID()
	if !ok {
		return UpsertOp{}, ErrMissingID
	}
	return UpsertOp{ID: id, Doc: RecordDocument(rec)}, nil
}

// RecordDocument renders the present fields of rec in schema order. Kept-raw
// values are stored as their original string.
func RecordDocument(rec *types.Record) bson.D {
	doc := make(bson.D, 0, rec.Present())
	for i := 0; i < rec.Schema().Len(); i++ {
		f, v := rec.At(i)
		if v.IsAbsent() {
			continue
		}
		doc = append(doc, bson.E{Key: f.Name, Value: v.Interface()})
	}
	return doc
}

// BatchResult reports the outcome of one bulk upsert
type BatchResult struct {
	Attempted int
	Matched   int64
	Modified  int64
	Upserted  int64
	Failed    int
	Failures  []OpFailure
}

// Applied returns the number of ops the store accepted
func (r *BatchResult) Applied() int {
	return r.Attempted - r.Failed
}

// OpFailure describes one rejected op of a bulk upsert
type OpFailure struct {
	Index   int
	ID      int64
	Code    int
	Message string
}

// BulkWriteError is returned when at least one op of a batch failed
type BulkWriteError struct {
	Failures []OpFailure
	// Cause is set when the whole batch failed rather than single ops
	Cause error
}

func (e *BulkWriteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("bulk write failed: %v", e.Cause)
	}
	if len(e.Failures) == 0 {
		return "bulk write failed"
	}
	first := e.Failures[0]
	return fmt.Sprintf("bulk write failed: %d op(s) rejected, first at index %d (id %d): %s",
		len(e.Failures), first.Index, first.ID, first.Message)
}

func (e *BulkWriteError) Unwrap() error {
	return e.Cause
}

// Server error codes
const (
	// duplicateKeyCode matches the server code for unique index violations
	duplicateKeyCode          = 11000
	indexOptionsConflictCode  = 85
	indexKeySpecsConflictCode = 86
)

var (
	_ Store = (*BoltStore)(nil)
	_ Store = (*MongoStore)(nil)
)
