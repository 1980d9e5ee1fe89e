package normalize

import (
	"strings"

	"github.com/cuemby/potato/pkg/metrics"
	"github.com/cuemby/potato/pkg/types"
	"github.com/rs/zerolog"
)

// Row is a source of raw cells keyed by column name
type Row interface {
	Get(name string) (string, bool)
}

// Normalizer coerces raw rows into records according to a schema
type Normalizer struct {
	schema *types.Schema
	stats  *Stats
	logger zerolog.Logger
}

// New creates a normalizer for schema
func New(schema *types.Schema, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		schema: schema,
		stats:  NewStats(schema),
		logger: logger,
	}
}

// Stats returns the conversion counters accumulated so far
func (n *Normalizer) Stats() *Stats {
	return n.stats
}

// Normalize builds a record from row. It never fails: a cell that cannot be
// coerced is handled by its field's failure policy.
func (n *Normalizer) Normalize(row Row) *types.Record {
	rec := types.NewRecord(n.schema)

	for i := 0; i < n.schema.Len(); i++ {
		f := n.schema.Field(i)
		raw, ok := row.Get(f.Name)
		if !ok {
			continue
		}

		v, coerced := coerce(f, raw)
		n.stats.observe(i, coerced)
		if !coerced && strings.TrimSpace(raw) != "" {
			n.logger.Debug().
				Str("field", f.Name).
				Str("type", string(f.Type)).
				Str("value", truncate(raw, 64)).
				Str("kept", string(v.Kind())).
				Msg("Conversion failed")
		}
		rec.Set(i, v)
	}

	return rec
}

// coerce converts one raw cell. coerced is true only when the result holds a
// value of the declared type that came from the cell itself.
func coerce(f types.Field, raw string) (types.Value, bool) {
	s := strings.TrimSpace(raw)

	if s == "" {
		if f.Type == types.FieldTypeInteger && f.OnFailure == types.FailZero {
			return types.IntValue(0), false
		}
		return types.Absent(), false
	}

	switch f.Type {
	case types.FieldTypeString:
		return types.StringValue(s), true
	case types.FieldTypeInteger:
		if n, ok := parseInteger(s); ok {
			return types.IntValue(n), true
		}
	case types.FieldTypeDecimal:
		if x, ok := parseDecimal(s); ok {
			return types.DecimalValue(x), true
		}
	case types.FieldTypeBoolean:
		if b, ok := parseBoolean(s); ok {
			return types.BoolValue(b), true
		}
	case types.FieldTypeTimestamp:
		if t, ok := parseTimestamp(s); ok {
			return types.TimeValue(t), true
		}
	case types.FieldTypeStringList:
		return types.ListValue(parseList(s)), true
	}

	return fallback(f, raw), false
}

func fallback(f types.Field, raw string) types.Value {
	switch f.OnFailure {
	case types.FailZero:
		return types.IntValue(0)
	case types.FailKeepRaw:
		return types.KeptRaw(raw)
	default:
		return types.Absent()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Stats counts conversion attempts and successes per field
type Stats struct {
	schema    *types.Schema
	attempts  []int64
	successes []int64
}

// FieldStats is the conversion outcome of one field
type FieldStats struct {
	Field     string
	Attempts  int64
	Successes int64
}

// SuccessRate returns successes/attempts as a percentage
func (f FieldStats) SuccessRate() float64 {
	if f.Attempts == 0 {
		return 0
	}
	return float64(f.Successes) / float64(f.Attempts) * 100
}

// NewStats creates zeroed counters for schema
func NewStats(schema *types.Schema) *Stats {
	return &Stats{
		schema:    schema,
		attempts:  make([]int64, schema.Len()),
		successes: make([]int64, schema.Len()),
	}
}

func (s *Stats) observe(i int, success bool) {
	name := s.schema.Field(i).Name
	s.attempts[i]++
	metrics.FieldConversionsTotal.WithLabelValues(name, "attempt").Inc()
	if success {
		s.successes[i]++
		metrics.FieldConversionsTotal.WithLabelValues(name, "success").Inc()
	}
}

// Field returns the counters of the named field
func (s *Stats) Field(name string) FieldStats {
	i, ok := s.schema.Index(name)
	if !ok {
		return FieldStats{Field: name}
	}
	return FieldStats{Field: name, Attempts: s.attempts[i], Successes: s.successes[i]}
}

// Snapshot returns the counters of every field that saw at least one attempt,
// in schema order
func (s *Stats) Snapshot() []FieldStats {
	var out []FieldStats
	for i := range s.attempts {
		if s.attempts[i] == 0 {
			continue
		}
		out = append(out, FieldStats{
			Field:     s.schema.Field(i).Name,
			Attempts:  s.attempts[i],
			Successes: s.successes[i],
		})
	}
	return out
}
