/*
Package types defines the post record model shared by the loader, the store
gateway and the query service.

# Field Schema

Every column of the tweet export is declared once in PostSchema as a Field:

	Field{Name: "like_count", Type: FieldTypeInteger, OnFailure: FailZero}

The type says what the raw string is coerced to, the failure policy says what
the record holds when coercion fails:

	FailZero     integers become 0 (engagement counters never go null)
	FailAbsent   the field is dropped from the record
	FailKeepRaw  the original string is kept as-is

Required fields (id, created_at) must use FailAbsent so that a bad value turns
into a rejection instead of a silent default. NewSchema enforces these rules
and PostSchema is built with MustSchema, so an invalid table fails at process
start.

# Values and Records

A Value is the typed result of one coercion: Coerced, KeptRaw or Absent. The
accessors (Int, Decimal, Bool, Str, Time, List) report ok=false for anything
that is not a coerced value of that type.

A Record holds one Value per schema field, in schema order. It is the unit the
batch loader validates and the store persists.

Post is the read side: a typed projection of the columns the analytic
pipelines touch, decoded from stored BSON documents.
*/
package types
