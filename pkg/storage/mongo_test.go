package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cuemby/potato/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// newMongoTestStore connects to the server named by POTATO_TEST_MONGODB_URI,
// using a throwaway collection
func newMongoTestStore(t *testing.T) *MongoStore {
	t.Helper()

	uri := os.Getenv("POTATO_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("POTATO_TEST_MONGODB_URI not set")
	}

	ctx := context.Background()
	s, err := NewMongoStore(ctx, MongoConfig{
		URI:            uri,
		Database:       "potato_test",
		Collection:     fmt.Sprintf("tweets_%s", uuid.NewString()[:8]),
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.collection.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestMongoStore_MatchesBolt(t *testing.T) {
	m := newMongoTestStore(t)
	b := newTestStore(t)
	ctx := context.Background()

	posts := []testPost{
		{id: 1, text: "I love Music festivals", created: "2021-02-03T10:15:00Z", author: 1, handle: "amy", place: "p1", likes: 3},
		{id: 2, text: "music all day", created: "2021-02-03T23:59:59Z", author: 1, handle: "amy", likes: 5},
		{id: 3, text: "MUSIC!", created: "2021-02-04T00:00:00Z", author: 2, handle: "bob", place: "p1", likes: 0},
		{id: 4, text: "nothing here", created: "2021-02-04T08:00:00Z", author: 3, handle: "cy"},
		{id: 5, text: "music, no author"},
	}

	for _, s := range []Store{m, b} {
		require.NoError(t, s.EnsureIndex(ctx, types.FieldID, true))
		require.NoError(t, s.EnsureIndex(ctx, types.FieldAuthorID, false))
		seed(t, s, posts...)
	}

	for _, kind := range Pipelines {
		for _, term := range []string{"music", "", "doesnotexist"} {
			t.Run(fmt.Sprintf("%s/%q", kind, term), func(t *testing.T) {
				want := aggregate(t, b, kind, term)
				got := aggregate(t, m, kind, term)
				assert.Equal(t, want, got)
			})
		}
	}
}

func TestMongoStore_UpsertCounts(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()

	ops := []UpsertOp{testPost{id: 1, text: "a"}.op(t), testPost{id: 2, text: "b"}.op(t)}

	res, err := s.UpsertMany(ctx, ops)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Upserted)

	res, err = s.UpsertMany(ctx, ops)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Matched)
	assert.Equal(t, int64(0), res.Modified)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	seen := 0
	require.NoError(t, s.Scan(ctx, func(doc bson.Raw) error {
		seen++
		return nil
	}))
	assert.Equal(t, 2, seen)
}
