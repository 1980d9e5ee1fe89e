package normalize

import (
	"io"
	"testing"
	"time"

	"github.com/cuemby/potato/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapRow map[string]string

func (m mapRow) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func newTestNormalizer() *Normalizer {
	return New(types.PostSchema, zerolog.New(io.Discard))
}

func TestNormalize_Scenario(t *testing.T) {
	n := newTestNormalizer()

	rec := n.Normalize(mapRow{
		"id":         "123",
		"text":       "I love Music festivals",
		"like_count": "abc",
		"created_at": "2021-02-03T10:15:00Z",
	})

	id, ok := rec.ID()
	require.True(t, ok)
	assert.Equal(t, int64(123), id)

	likes, ok := rec.Get(types.FieldLikeCount).Int()
	require.True(t, ok)
	assert.Equal(t, int64(0), likes)

	created, ok := rec.Get(types.FieldCreatedAt).Time()
	require.True(t, ok)
	assert.True(t, created.Equal(time.Date(2021, 2, 3, 10, 15, 0, 0, time.UTC)))

	text, ok := rec.Get(types.FieldText).Str()
	require.True(t, ok)
	assert.Equal(t, "I love Music festivals", text)

	// Columns the row does not carry stay absent, counters included
	assert.True(t, rec.Get("retweet_count").IsAbsent())
	assert.True(t, rec.Get(types.FieldPlaceID).IsAbsent())
}

func TestNormalize_IntegerFieldsNeverNull(t *testing.T) {
	n := newTestNormalizer()

	for _, raw := range []string{"", "   ", "abc", "NaN", "inf", "1e400", "--1"} {
		t.Run(raw, func(t *testing.T) {
			rec := n.Normalize(mapRow{"retweet_count": raw})
			v := rec.Get("retweet_count")
			got, ok := v.Int()
			require.True(t, ok, "integer field must be coerced, got kind %s", v.Kind())
			assert.Equal(t, int64(0), got)
		})
	}
}

func TestNormalize_IntegerAcceptsDecimalText(t *testing.T) {
	n := newTestNormalizer()

	rec := n.Normalize(mapRow{"author_id": " 42.0 ", "quote_count": "7.9", "reply_count": "-3"})

	v, _ := rec.Get(types.FieldAuthorID).Int()
	assert.Equal(t, int64(42), v)
	v, _ = rec.Get("quote_count").Int()
	assert.Equal(t, int64(7), v)
	v, _ = rec.Get("reply_count").Int()
	assert.Equal(t, int64(-3), v)
}

func TestNormalize_LargeIntegralDecimalsKeepPrecision(t *testing.T) {
	n := newTestNormalizer()

	first, ok := n.Normalize(mapRow{"id": "1357000000000000001.0"}).ID()
	require.True(t, ok)
	second, ok := n.Normalize(mapRow{"id": "1357000000000000002.00"}).ID()
	require.True(t, ok)

	assert.Equal(t, int64(1357000000000000001), first)
	assert.Equal(t, int64(1357000000000000002), second)

	id, ok := n.Normalize(mapRow{"id": "-42."}).ID()
	require.True(t, ok)
	assert.Equal(t, int64(-42), id)
}

func TestNormalize_InexactIntegersAreNotGuessed(t *testing.T) {
	n := newTestNormalizer()

	for _, raw := range []string{"1357000000000000001.5", "1.357e18", "99999999999999999999.0"} {
		_, ok := n.Normalize(mapRow{"id": raw}).ID()
		assert.False(t, ok, "id %q must stay absent", raw)

		v, ok := n.Normalize(mapRow{"retweet_count": raw}).Get("retweet_count").Int()
		require.True(t, ok)
		assert.Equal(t, int64(0), v, "counter %q falls back to zero", raw)
	}

	v, ok := n.Normalize(mapRow{"retweet_count": "1e3"}).Get("retweet_count").Int()
	require.True(t, ok)
	assert.Equal(t, int64(1000), v)
}

func TestNormalize_IdentifierIsNotDefaulted(t *testing.T) {
	n := newTestNormalizer()

	for _, raw := range []string{"", "abc", "12a"} {
		rec := n.Normalize(mapRow{"id": raw})
		_, ok := rec.ID()
		assert.False(t, ok, "id %q must stay absent", raw)
	}
}

func TestNormalize_Timestamps(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{raw: "2021-02-03T10:15:00Z", want: time.Date(2021, 2, 3, 10, 15, 0, 0, time.UTC)},
		{raw: "2021-02-03 10:15:00+00:00", want: time.Date(2021, 2, 3, 10, 15, 0, 0, time.UTC)},
		{raw: "2021-02-03T12:15:00+02:00", want: time.Date(2021, 2, 3, 10, 15, 0, 0, time.UTC)},
		{raw: "2021-02-03 10:15:00", want: time.Date(2021, 2, 3, 10, 15, 0, 0, time.UTC)},
		{raw: "2021-02-03 10:15:00.250", want: time.Date(2021, 2, 3, 10, 15, 0, 250000000, time.UTC)},
		{raw: "2021-02-03", want: time.Date(2021, 2, 3, 0, 0, 0, 0, time.UTC)},
		{raw: "Wed Feb 03 10:15:00 +0000 2021", want: time.Date(2021, 2, 3, 10, 15, 0, 0, time.UTC)},
	}

	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rec := n.Normalize(mapRow{"created_at": tt.raw})
			got, ok := rec.Get(types.FieldCreatedAt).Time()
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	rec := n.Normalize(mapRow{"created_at": "yesterday"})
	assert.True(t, rec.Get(types.FieldCreatedAt).IsAbsent(), "unparsable timestamps become absent")
}

func TestNormalize_KeptRaw(t *testing.T) {
	n := newTestNormalizer()

	rec := n.Normalize(mapRow{"replied_to": "n/a", "from_stream": "maybe", "quoted": "1.5e3"})

	v := rec.Get("replied_to")
	assert.Equal(t, types.ValueKeptRaw, v.Kind())
	_, ok := v.Decimal()
	assert.False(t, ok)
	assert.Equal(t, "n/a", v.Interface())

	assert.Equal(t, types.ValueKeptRaw, rec.Get("from_stream").Kind())

	q, ok := rec.Get("quoted").Decimal()
	require.True(t, ok)
	assert.Equal(t, 1500.0, q)
}

func TestNormalize_BooleansAndStrings(t *testing.T) {
	n := newTestNormalizer()

	rec := n.Normalize(mapRow{
		"from_search":   "True",
		"from_stream":   "0",
		"author_handle": "  @someone\t",
		"lang":          "   ",
	})

	b, ok := rec.Get("from_search").Bool()
	require.True(t, ok)
	assert.True(t, b)

	b, ok = rec.Get("from_stream").Bool()
	require.True(t, ok)
	assert.False(t, b)

	h, _ := rec.Get(types.FieldAuthorHandle).Str()
	assert.Equal(t, "@someone", h)

	assert.True(t, rec.Get("lang").IsAbsent(), "blank strings are absent")
}

func TestNormalize_Lists(t *testing.T) {
	n := newTestNormalizer()

	rec := n.Normalize(mapRow{
		"hashtags":          "['music', \"festival\" ,  live]",
		"mentioned_handles": "a,b",
		"urls":              "[]",
	})

	l, ok := rec.Get("hashtags").List()
	require.True(t, ok)
	assert.Equal(t, []string{"music", "festival", "live"}, l)

	l, _ = rec.Get("mentioned_handles").List()
	assert.Equal(t, []string{"a", "b"}, l)

	l, ok = rec.Get("urls").List()
	require.True(t, ok)
	assert.Empty(t, l)
}

func TestStats(t *testing.T) {
	n := newTestNormalizer()

	n.Normalize(mapRow{"id": "1", "like_count": "5"})
	n.Normalize(mapRow{"id": "2", "like_count": "x"})
	n.Normalize(mapRow{"id": "oops"})

	id := n.Stats().Field(types.FieldID)
	assert.Equal(t, int64(3), id.Attempts)
	assert.Equal(t, int64(2), id.Successes)

	likes := n.Stats().Field(types.FieldLikeCount)
	assert.Equal(t, int64(2), likes.Attempts)
	assert.Equal(t, int64(1), likes.Successes)
	assert.InDelta(t, 50.0, likes.SuccessRate(), 0.001)

	snap := n.Stats().Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, types.FieldID, snap[0].Field)
	assert.Equal(t, types.FieldLikeCount, snap[1].Field)

	assert.Equal(t, FieldStats{Field: "unknown"}, n.Stats().Field("unknown"))
}

func TestValidator(t *testing.T) {
	n := newTestNormalizer()
	v := NewValidator(types.PostSchema)

	tests := []struct {
		name   string
		row    mapRow
		reason RejectReason
		ok     bool
	}{
		{
			name: "valid",
			row:  mapRow{"id": "1", "created_at": "2021-02-03T10:15:00Z"},
			ok:   true,
		},
		{
			name:   "missing id",
			row:    mapRow{"created_at": "2021-02-03T10:15:00Z"},
			reason: ReasonMissingID,
		},
		{
			name:   "non-numeric id",
			row:    mapRow{"id": "abc", "created_at": "2021-02-03T10:15:00Z"},
			reason: ReasonMissingID,
		},
		{
			name:   "unparsable created_at",
			row:    mapRow{"id": "1", "created_at": "not a date"},
			reason: ReasonMissingCreatedAt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := v.Validate(n.Normalize(tt.row))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestMissingField(t *testing.T) {
	assert.Equal(t, ReasonMissingID, MissingField("id"))
	assert.Equal(t, ReasonMissingCreatedAt, MissingField("created_at"))
	assert.Equal(t, RejectReason("missing_lang"), MissingField("lang"))
}
