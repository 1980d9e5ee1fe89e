package ingest

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cuemby/potato/pkg/storage"
	"github.com/cuemby/potato/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func putRaw(t *testing.T, s storage.Store, id int64, doc bson.D) {
	t.Helper()
	_, err := s.UpsertMany(context.Background(), []storage.UpsertOp{{ID: id, Doc: doc}})
	require.NoError(t, err)
}

func resync(t *testing.T, s storage.Store) *RunSummary {
	t.Helper()
	summary, err := Resync(context.Background(), s, types.PostSchema, Config{ChunkSize: 2},
		zerolog.New(io.Discard), WithMemorySampler(fixedSampler(0)))
	require.NoError(t, err)
	return summary
}

func TestResync_FixesTypes(t *testing.T) {
	s := newBoltStore(t)

	putRaw(t, s, 1, bson.D{
		{Key: "id", Value: int64(1)},
		{Key: "text", Value: "  padded  "},
		{Key: "like_count", Value: "7"},
		{Key: "author_id", Value: 12.0},
		{Key: "created_at", Value: "2021-02-03 10:15:00"},
		{Key: "hashtags", Value: bson.A{"a", "b"}},
		{Key: "from_stream", Value: "yes"},
	})

	summary := resync(t, s)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Rejected)

	var p types.Post
	var tags []string
	var fromStream bool
	require.NoError(t, s.Scan(context.Background(), func(doc bson.Raw) error {
		require.NoError(t, bson.Unmarshal(doc, &p))
		tags = nil
		values, err := doc.Lookup("hashtags").Array().Values()
		require.NoError(t, err)
		for _, v := range values {
			tags = append(tags, v.StringValue())
		}
		fromStream = doc.Lookup("from_stream").Boolean()
		return nil
	}))

	require.NotNil(t, p.Text)
	assert.Equal(t, "padded", *p.Text)
	require.NotNil(t, p.LikeCount)
	assert.Equal(t, int64(7), *p.LikeCount)
	require.NotNil(t, p.AuthorID)
	assert.Equal(t, int64(12), *p.AuthorID)
	require.NotNil(t, p.CreatedAt)
	assert.True(t, p.CreatedAt.Equal(time.Date(2021, 2, 3, 10, 15, 0, 0, time.UTC)))
	assert.Equal(t, []string{"a", "b"}, tags)
	assert.True(t, fromStream)
}

func TestResync_LeavesInvalidDocuments(t *testing.T) {
	s := newBoltStore(t)

	putRaw(t, s, 1, bson.D{{Key: "id", Value: int64(1)}, {Key: "text", Value: "no date"}, {Key: "like_count", Value: "3"}})
	putRaw(t, s, 2, bson.D{{Key: "id", Value: int64(2)}, {Key: "created_at", Value: time.Date(2021, 2, 3, 0, 0, 0, 0, time.UTC)}})

	summary := resync(t, s)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Rejected)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "invalid documents are not deleted")

	var likes bson.RawValue
	require.NoError(t, s.Scan(context.Background(), func(doc bson.Raw) error {
		if doc.Lookup("id").Int64() == 1 {
			likes = doc.Lookup("like_count")
		}
		return nil
	}))
	assert.Equal(t, "3", likes.StringValue(), "rejected documents are left untouched")
}

func TestResync_Idempotent(t *testing.T) {
	s := newBoltStore(t)
	for i := int64(1); i <= 5; i++ {
		putRaw(t, s, i, bson.D{
			{Key: "id", Value: i},
			{Key: "text", Value: "hello"},
			{Key: "created_at", Value: "2021-02-03T10:15:00Z"},
			{Key: "like_count", Value: "x"},
			{Key: "urls", Value: bson.A{}},
		})
	}

	first := resync(t, s)
	assert.Equal(t, 5, first.Processed)
	assert.Equal(t, 3, first.Chunks)
	before := storedPosts(t, s)

	resync(t, s)
	assert.Equal(t, before, storedPosts(t, s))
}

func TestResync_LegacyNonUniqueIDIndex(t *testing.T) {
	s := newBoltStore(t)
	require.NoError(t, s.EnsureIndex(context.Background(), types.FieldID, false))
	putRaw(t, s, 1, bson.D{
		{Key: "id", Value: int64(1)},
		{Key: "text", Value: "legacy"},
		{Key: "created_at", Value: "2021-02-03T10:15:00Z"},
		{Key: "like_count", Value: "4"},
	})

	summary := resync(t, s)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Written)

	p := storedPosts(t, s)[1]
	require.NotNil(t, p.LikeCount)
	assert.Equal(t, int64(4), *p.LikeCount)

	err := s.EnsureIndex(context.Background(), types.FieldID, true)
	assert.ErrorIs(t, err, storage.ErrIndexConflict, "the existing index is left in place")
}

type failingScanStore struct {
	fakeStore
}

func (f *failingScanStore) Scan(ctx context.Context, fn func(bson.Raw) error) error {
	return errors.New("cursor died")
}

func TestResync_ScanFailure(t *testing.T) {
	_, err := Resync(context.Background(), &failingScanStore{}, types.PostSchema, Config{},
		zerolog.New(io.Discard), WithMemorySampler(fixedSampler(0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor died")
}

func TestDocumentRow(t *testing.T) {
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: "ignored"},
		{Key: "id", Value: int64(5)},
		{Key: "like_count", Value: int32(2)},
		{Key: "quoted", Value: 1.5},
		{Key: "possibly_sensitive", Value: false},
		{Key: "place_id", Value: nil},
		{Key: "created_at", Value: time.Date(2021, 2, 3, 10, 15, 0, 0, time.UTC)},
		{Key: "media_keys", Value: bson.A{"k1", "k2"}},
	})
	require.NoError(t, err)

	row := DocumentRow(4, raw, types.PostSchema)
	assert.Equal(t, 4, row.Line)

	get := func(name string) string {
		v, ok := row.Get(name)
		require.True(t, ok, name)
		return v
	}
	assert.Equal(t, "5", get("id"))
	assert.Equal(t, "2", get("like_count"))
	assert.Equal(t, "1.5", get("quoted"))
	assert.Equal(t, "false", get("possibly_sensitive"))
	assert.Equal(t, "", get("place_id"))
	assert.Equal(t, "2021-02-03T10:15:00Z", get("created_at"))
	assert.Equal(t, "[k1,k2]", get("media_keys"))

	_, ok := row.Get("text")
	assert.False(t, ok)
	_, ok = row.Get("_id")
	assert.False(t, ok)
}
