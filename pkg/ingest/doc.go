/*
Package ingest loads post exports into a Store.

A Loader pulls rows from a RowSource in chunks (50,000 rows by default). Every
row is normalized and validated; the valid ones become upsert ops keyed on id
and the chunk is written as one unordered bulk upsert. Rows that fail
validation are counted by reason and skipped.

	Idle ─▶ Reading ─▶ Writing ─▶ Reading ─▶ ... ─▶ Done
	           │                    ▲
	           └── no valid rows ───┘

Before the first chunk the loader ensures a unique index on id and an index on
author_id; failing to do so ends the run, unless the store reports a conflict
with an index already on the field, which is kept and logged. A failed chunk write is logged and
recorded in the RunSummary, and the run carries on with the next chunk. A read
error that is not a malformed row ends the run.

Cancellation is only observed between chunks. A chunk that has started reading
is written to completion on a context detached from the caller's, so a
stopped run never leaves a half-written chunk behind.

After each chunk the loader logs cumulative processed and rejected counts, the
remaining rows when the total is known, and the resident memory of the
process.

Resync runs stored documents back through the same loader, fixing the types of
documents written by older loaders. Documents that no longer validate are left
in place.
*/
package ingest
