package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/potato/pkg/types"
	"go.mongodb.org/mongo-driver/bson"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket holding index definitions, keyed by "<collection>.<field>"
	bucketIndexes = []byte("_indexes")
)

const (
	// DefaultBoltFile is the database file created under the data directory
	DefaultBoltFile = "potato.db"

	scanPageSize = 1000
	ctxCheckRate = 1024
)

// BoltStore implements Store on an embedded BoltDB file. Documents are kept
// as BSON keyed by their numeric id; aggregations are evaluated in process.
type BoltStore struct {
	db         *bolt.DB
	collection []byte
}

// NewBoltStore opens (or creates) the database under dataDir and the bucket
// for collection
func NewBoltStore(dataDir, collection string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, DefaultBoltFile)

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &BoltStore{db: db, collection: []byte(collection)}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{s.collection, bucketIndexes} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file
func (s *BoltStore) Path() string {
	return s.db.Path()
}

// Close closes the database
func (s *BoltStore) Close(ctx context.Context) error {
	return s.db.Close()
}

// Ping fails once the database is closed
func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

func idKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func (s *BoltStore) indexName(field string) []byte {
	return []byte(string(s.collection) + "." + field)
}

func (s *BoltStore) indexBucket(field string) []byte {
	return []byte("_idx." + string(s.collection) + "." + field)
}

// EnsureIndex records the index and backfills it from the stored documents.
// The id index is the primary key and needs no bucket of its own.
func (s *BoltStore) EnsureIndex(ctx context.Context, field string, unique bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketIndexes)
		want := []byte{0}
		if unique {
			want[0] = 1
		}

		if existing := meta.Get(s.indexName(field)); existing != nil {
			if bytes.Equal(existing, want) {
				return nil
			}
			return fmt.Errorf("%w: index on %s already exists with different options", ErrIndexConflict, field)
		}

		if field != types.FieldID {
			ib, err := tx.CreateBucketIfNotExists(s.indexBucket(field))
			if err != nil {
				return fmt.Errorf("failed to create index bucket for %s: %w", field, err)
			}

			err = tx.Bucket(s.collection).ForEach(func(k, v []byte) error {
				val, ok := indexValue(v, field)
				if !ok {
					return nil
				}
				if unique && hasOtherEntry(ib, val, k) {
					return fmt.Errorf("%w: cannot build unique index on %s: duplicate value", ErrIndexConflict, field)
				}
				return ib.Put(indexEntry(val, k), nil)
			})
			if err != nil {
				return err
			}
		}

		return meta.Put(s.indexName(field), want)
	})
}

// indexes returns the secondary indexes of the collection, field -> unique
func (s *BoltStore) indexes(tx *bolt.Tx) map[string]bool {
	out := make(map[string]bool)
	prefix := s.indexName("")
	c := tx.Bucket(bucketIndexes).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		field := string(k[len(prefix):])
		if field == types.FieldID {
			continue
		}
		out[field] = len(v) > 0 && v[0] == 1
	}
	return out
}

// indexValue returns the type-tagged bytes of field, false when the field is
// missing or null
func indexValue(doc []byte, field string) ([]byte, bool) {
	rv, err := bson.Raw(doc).LookupErr(field)
	if err != nil || rv.Type == bson.TypeNull {
		return nil, false
	}
	val := make([]byte, 0, 1+len(rv.Value))
	val = append(val, byte(rv.Type))
	return append(val, rv.Value...), true
}

func indexEntry(val, key []byte) []byte {
	entry := make([]byte, 0, len(val)+len(key))
	entry = append(entry, val...)
	return append(entry, key...)
}

// hasOtherEntry reports whether val is indexed for a document other than key
func hasOtherEntry(ib *bolt.Bucket, val, key []byte) bool {
	c := ib.Cursor()
	for k, _ := c.Seek(val); k != nil && bytes.HasPrefix(k, val); k, _ = c.Next() {
		if len(k) == len(val)+len(key) && !bytes.Equal(k[len(val):], key) {
			return true
		}
	}
	return false
}

// UpsertMany writes every op in one transaction. Ops violating a unique index
// are skipped and reported; the others are written.
func (s *BoltStore) UpsertMany(ctx context.Context, ops []UpsertOp) (*BatchResult, error) {
	res := &BatchResult{Attempted: len(ops)}
	if len(ops) == 0 {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failures []OpFailure
	var matched, modified, upserted int64

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.collection)
		idx := s.indexes(tx)

		for i, op := range ops {
			data, err := bson.Marshal(op.Doc)
			if err != nil {
				failures = append(failures, OpFailure{Index: i, ID: op.ID, Message: err.Error()})
				continue
			}

			key := idKey(op.ID)
			var old []byte
			if v := b.Get(key); v != nil {
				old = append([]byte(nil), v...)
			}

			if field, dup := s.uniqueConflict(tx, idx, data, key); dup {
				failures = append(failures, OpFailure{
					Index:   i,
					ID:      op.ID,
					Code:    duplicateKeyCode,
					Message: fmt.Sprintf("duplicate key on %s", field),
				})
				continue
			}

			for field := range idx {
				ib := tx.Bucket(s.indexBucket(field))
				if ib == nil {
					continue
				}
				if old != nil {
					if val, ok := indexValue(old, field); ok {
						if err := ib.Delete(indexEntry(val, key)); err != nil {
							return err
						}
					}
				}
				if val, ok := indexValue(data, field); ok {
					if err := ib.Put(indexEntry(val, key), nil); err != nil {
						return err
					}
				}
			}

			if err := b.Put(key, data); err != nil {
				return fmt.Errorf("failed to put document %d: %w", op.ID, err)
			}

			if old == nil {
				upserted++
				continue
			}
			matched++
			if !bytes.Equal(old, data) {
				modified++
			}
		}
		return nil
	})

	if err != nil {
		res.Failed = len(ops)
		return res, &BulkWriteError{Cause: err}
	}

	res.Matched = matched
	res.Modified = modified
	res.Upserted = upserted
	res.Failed = len(failures)
	res.Failures = failures
	if len(failures) > 0 {
		return res, &BulkWriteError{Failures: failures}
	}
	return res, nil
}

func (s *BoltStore) uniqueConflict(tx *bolt.Tx, idx map[string]bool, data, key []byte) (string, bool) {
	for field, unique := range idx {
		if !unique {
			continue
		}
		ib := tx.Bucket(s.indexBucket(field))
		if ib == nil {
			continue
		}
		if val, ok := indexValue(data, field); ok && hasOtherEntry(ib, val, key) {
			return field, true
		}
	}
	return "", false
}

// Aggregate evaluates q over every stored document
func (s *BoltStore) Aggregate(ctx context.Context, q Query) ([]bson.D, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	agg := newAggregator(q)
	err := s.db.View(func(tx *bolt.Tx) error {
		n := 0
		return tx.Bucket(s.collection).ForEach(func(k, v []byte) error {
			n++
			if n%ctxCheckRate == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			var post types.Post
			if err := bson.Unmarshal(v, &post); err != nil {
				return fmt.Errorf("failed to decode document %x: %w", k, err)
			}
			agg.add(&post)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return agg.result(), nil
}

// Count returns the number of stored documents
func (s *BoltStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(s.collection).Stats().KeyN)
		return nil
	})
	return n, err
}

// Scan reads documents a page at a time and calls fn outside of any
// transaction, so fn may write to the store.
func (s *BoltStore) Scan(ctx context.Context, fn func(doc bson.Raw) error) error {
	var after []byte

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var page [][]byte
		err := s.db.View(func(tx *bolt.Tx) error {
			c := tx.Bucket(s.collection).Cursor()

			var k, v []byte
			if after == nil {
				k, v = c.First()
			} else {
				k, v = c.Seek(after)
				if k != nil && bytes.Equal(k, after) {
					k, v = c.Next()
				}
			}

			for ; k != nil && len(page) < scanPageSize; k, v = c.Next() {
				page = append(page, append([]byte(nil), v...))
				after = append(after[:0:0], k...)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, doc := range page {
			if err := fn(bson.Raw(doc)); err != nil {
				return err
			}
		}

		if len(page) < scanPageSize {
			return nil
		}
	}
}
