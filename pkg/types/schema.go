package types

import (
	"errors"
	"fmt"
)

// ErrInvalidSchema is returned when a field table fails validation
var ErrInvalidSchema = errors.New("invalid schema")

// FieldType is the semantic type a raw column is coerced to
type FieldType string

const (
	FieldTypeInteger    FieldType = "integer"
	FieldTypeDecimal    FieldType = "decimal"
	FieldTypeBoolean    FieldType = "boolean"
	FieldTypeString     FieldType = "string"
	FieldTypeTimestamp  FieldType = "timestamp"
	FieldTypeStringList FieldType = "string_list"
)

// FailurePolicy decides what a field holds when its raw value cannot be coerced
type FailurePolicy string

const (
	// FailZero stores the zero value of the type (integers only)
	FailZero FailurePolicy = "zero"
	// FailAbsent leaves the field out of the record
	FailAbsent FailurePolicy = "absent"
	// FailKeepRaw keeps the original raw string
	FailKeepRaw FailurePolicy = "keep_raw"
)

// Field declares one column of the post table
type Field struct {
	Name      string
	Type      FieldType
	OnFailure FailurePolicy
	// Required fields must be present after coercion or the record is rejected
	Required bool
}

// Schema is an ordered, validated field table
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema validates fields and builds a schema
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}

	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field with empty name", ErrInvalidSchema)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f.Name)
		}
		if err := checkPolicy(f); err != nil {
			return nil, err
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	if len(s.fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidSchema)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on an invalid table
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func checkPolicy(f Field) error {
	allowed := map[FieldType][]FailurePolicy{
		FieldTypeInteger:    {FailZero, FailAbsent},
		FieldTypeDecimal:    {FailKeepRaw, FailAbsent},
		FieldTypeBoolean:    {FailKeepRaw, FailAbsent},
		FieldTypeString:     {FailAbsent},
		FieldTypeTimestamp:  {FailAbsent},
		FieldTypeStringList: {FailAbsent},
	}

	policies, ok := allowed[f.Type]
	if !ok {
		return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidSchema, f.Name, f.Type)
	}

	found := false
	for _, p := range policies {
		if p == f.OnFailure {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: field %q: policy %q not allowed for %s", ErrInvalidSchema, f.Name, f.OnFailure, f.Type)
	}

	// A required field defaulting to zero would never be rejected.
	if f.Required && f.OnFailure != FailAbsent {
		return fmt.Errorf("%w: required field %q must use policy %q", ErrInvalidSchema, f.Name, FailAbsent)
	}
	return nil
}

// Len returns the number of fields
func (s *Schema) Len() int {
	return len(s.fields)
}

// Field returns the field at position i
func (s *Schema) Field(i int) Field {
	return s.fields[i]
}

// Fields returns a copy of the field table
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Index returns the position of the named field
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Required returns the names of all required fields in schema order
func (s *Schema) Required() []string {
	var names []string
	for _, f := range s.fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Column names used by the store and the analytic queries
const (
	FieldID           = "id"
	FieldText         = "text"
	FieldCreatedAt    = "created_at"
	FieldAuthorID     = "author_id"
	FieldAuthorHandle = "author_handle"
	FieldLikeCount    = "like_count"
	FieldPlaceID      = "place_id"
)

func counter(name string) Field {
	return Field{Name: name, Type: FieldTypeInteger, OnFailure: FailZero}
}

func flag(name string) Field {
	return Field{Name: name, Type: FieldTypeBoolean, OnFailure: FailKeepRaw}
}

func text(name string) Field {
	return Field{Name: name, Type: FieldTypeString, OnFailure: FailAbsent}
}

func decimal(name string) Field {
	return Field{Name: name, Type: FieldTypeDecimal, OnFailure: FailKeepRaw}
}

func stamp(name string) Field {
	return Field{Name: name, Type: FieldTypeTimestamp, OnFailure: FailAbsent}
}

func list(name string) Field {
	return Field{Name: name, Type: FieldTypeStringList, OnFailure: FailAbsent}
}

// PostSchema is the column table of the tweet export
var PostSchema = MustSchema(
	Field{Name: FieldID, Type: FieldTypeInteger, OnFailure: FailAbsent, Required: true},
	text("event"),
	stamp("ts1"),
	stamp("ts2"),
	flag("from_stream"),
	flag("directly_from_stream"),
	flag("from_search"),
	flag("directly_from_search"),
	flag("from_quote_search"),
	flag("directly_from_quote_search"),
	flag("from_convo_search"),
	flag("directly_from_convo_search"),
	flag("from_timeline_search"),
	flag("directly_from_timeline_search"),
	text(FieldText),
	text("lang"),
	counter(FieldAuthorID),
	text(FieldAuthorHandle),
	Field{Name: FieldCreatedAt, Type: FieldTypeTimestamp, OnFailure: FailAbsent, Required: true},
	counter("conversation_id"),
	flag("possibly_sensitive"),
	text("reply_settings"),
	text("source"),
	counter("author_follower_count"),
	counter("retweet_count"),
	counter("reply_count"),
	counter(FieldLikeCount),
	counter("quote_count"),
	decimal("replied_to"),
	decimal("replied_to_author_id"),
	text("replied_to_handle"),
	decimal("replied_to_follower_count"),
	decimal("quoted"),
	decimal("quoted_author_id"),
	text("quoted_handle"),
	decimal("quoted_follower_count"),
	decimal("retweeted"),
	decimal("retweeted_author_id"),
	text("retweeted_handle"),
	decimal("retweeted_follower_count"),
	list("mentioned_author_ids"),
	list("mentioned_handles"),
	list("hashtags"),
	list("urls"),
	list("media_keys"),
	text(FieldPlaceID),
)
