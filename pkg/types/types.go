package types

import (
	"time"
)

// Record is one normalized row, holding a value for every schema field
type Record struct {
	schema *Schema
	values []Value
}

// NewRecord creates a record with every field absent
func NewRecord(schema *Schema) *Record {
	return &Record{
		schema: schema,
		values: make([]Value, schema.Len()),
	}
}

// Schema returns the field table the record was built against
func (r *Record) Schema() *Schema {
	return r.schema
}

// Set stores the value of the field at position i
func (r *Record) Set(i int, v Value) {
	r.values[i] = v
}

// At returns the field and value at position i
func (r *Record) At(i int) (Field, Value) {
	return r.schema.Field(i), r.values[i]
}

// Get returns the named value, or Absent for unknown fields
func (r *Record) Get(name string) Value {
	i, ok := r.schema.Index(name)
	if !ok {
		return Absent()
	}
	return r.values[i]
}

// ID returns the numeric identifier if it was coerced
func (r *Record) ID() (int64, bool) {
	return r.Get(FieldID).Int()
}

// Present returns the number of non-absent fields
func (r *Record) Present() int {
	n := 0
	for _, v := range r.values {
		if !v.IsAbsent() {
			n++
		}
	}
	return n
}

// Post is the typed view of a stored record used by the analytic queries.
// Pointer fields are nil when the document does not carry them.
type Post struct {
	ID           int64      `bson:"id" json:"id"`
	Text         *string    `bson:"text,omitempty" json:"text,omitempty"`
	AuthorID     *int64     `bson:"author_id,omitempty" json:"author_id,omitempty"`
	AuthorHandle *string    `bson:"author_handle,omitempty" json:"author_handle,omitempty"`
	CreatedAt    *time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
	LikeCount    *int64     `bson:"like_count,omitempty" json:"like_count,omitempty"`
	PlaceID      *string    `bson:"place_id,omitempty" json:"place_id,omitempty"`
}
