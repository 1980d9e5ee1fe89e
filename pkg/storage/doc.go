/*
Package storage persists post records and runs the analytic queries over them.

Two backends implement Store:

	MongoStore   a MongoDB collection; queries run as aggregation pipelines
	BoltStore    an embedded BoltDB file; queries are evaluated in process

Both store the same BSON documents (one per record, present fields only, in
schema order) and return the same result documents, so the loader, the HTTP
API and the tests do not care which one is configured.

# Writes

Records are written with UpsertMany: every op replaces the document whose id
matches, or inserts it. The batch is unordered, a failing op does not stop the
others, and the returned BatchResult counts what was matched, modified,
inserted and rejected. When any op fails the error is a *BulkWriteError:

	res, err := store.UpsertMany(ctx, ops)
	var bwe *storage.BulkWriteError
	if errors.As(err, &bwe) {
		for _, f := range bwe.Failures {
			logger.Warn().Int64("id", f.ID).Str("error", f.Message).Msg("Op rejected")
		}
	}

# BoltDB layout

	<collection>                 id (8 bytes, big endian) -> BSON document
	_indexes                     "<collection>.<field>" -> unique flag
	_idx.<collection>.<field>    type tag + value + id -> empty

Secondary index buckets are maintained on every upsert and back unique
constraints. The id index is the primary key itself.

# Queries

Each query keeps only documents whose text contains the search term, ignoring
case. The term is matched literally, never as a pattern. Counts are 32-bit
integers, as the server's $sum produces them.
*/
package storage
