package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DefaultMongoURI       = "mongodb://localhost:27017/"
	DefaultDatabase       = "potato_db"
	DefaultCollection     = "tweets"
	DefaultConnectTimeout = 10 * time.Second
)

// MongoConfig locates the collection holding the posts
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// MongoStore implements Store on a MongoDB collection
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects and pings the server. A store that cannot be reached
// is an error: nothing downstream can make progress without it.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		cfg.URI = DefaultMongoURI
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.URI, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.URI, err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) EnsureIndex(ctx context.Context, field string, unique bool) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(unique),
	}
	if _, err := s.collection.Indexes().CreateOne(ctx, model); err != nil {
		var se mongo.ServerError
		if errors.As(err, &se) && (se.HasErrorCode(indexOptionsConflictCode) ||
			se.HasErrorCode(indexKeySpecsConflictCode) || se.HasErrorCode(duplicateKeyCode)) {
			return fmt.Errorf("%w: index on %s: %v", ErrIndexConflict, field, err)
		}
		return fmt.Errorf("failed to create index on %s: %w", field, err)
	}
	return nil
}

// UpsertMany submits one unordered bulk write of replace-with-upsert models
func (s *MongoStore) UpsertMany(ctx context.Context, ops []UpsertOp) (*BatchResult, error) {
	res := &BatchResult{Attempted: len(ops)}
	if len(ops) == 0 {
		return res, nil
	}

	models := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "id", Value: op.ID}}).
			SetReplacement(op.Doc).
			SetUpsert(true))
	}

	out, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if out != nil {
		res.Matched = out.MatchedCount
		res.Modified = out.ModifiedCount
		res.Upserted = out.UpsertedCount
	}
	if err == nil {
		return res, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || len(bwe.WriteErrors) == 0 {
		res.Failed = len(ops)
		return res, &BulkWriteError{Cause: err}
	}

	for _, we := range bwe.WriteErrors {
		f := OpFailure{Index: we.Index, Code: we.Code, Message: we.Message}
		if we.Index >= 0 && we.Index < len(ops) {
			f.ID = ops[we.Index].ID
		}
		res.Failures = append(res.Failures, f)
	}
	res.Failed = len(res.Failures)
	return res, &BulkWriteError{Failures: res.Failures}
}

func (s *MongoStore) Aggregate(ctx context.Context, q Query) ([]bson.D, error) {
	pipeline, err := BuildPipeline(q)
	if err != nil {
		return nil, err
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s pipeline: %w", q.Kind, err)
	}

	out := []bson.D{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to read %s results: %w", q.Kind, err)
	}
	return out, nil
}

func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.D{})
}

func (s *MongoStore) Scan(ctx context.Context, fn func(doc bson.Raw) error) error {
	cursor, err := s.collection.Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to scan collection: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		if err := fn(cursor.Current); err != nil {
			return err
		}
	}
	return cursor.Err()
}
