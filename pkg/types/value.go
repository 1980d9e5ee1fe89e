package types

import (
	"time"
)

// ValueKind tells how a field value came to be
type ValueKind string

const (
	// ValueAbsent means the field is not part of the record
	ValueAbsent ValueKind = "absent"
	// ValueCoerced holds a value of the field's declared type
	ValueCoerced ValueKind = "coerced"
	// ValueKeptRaw holds the original string because coercion failed
	ValueKeptRaw ValueKind = "kept_raw"
)

// Value is the outcome of coercing one raw cell.
//
// Typed accessors only succeed for coerced values, so a kept-raw string is
// never mistaken for a number.
type Value struct {
	kind ValueKind
	typ  FieldType

	i    int64
	f    float64
	b    bool
	s    string
	t    time.Time
	list []string
}

// Absent returns the absent value
func Absent() Value {
	return Value{kind: ValueAbsent}
}

// KeptRaw wraps an original string that could not be coerced
func KeptRaw(raw string) Value {
	return Value{kind: ValueKeptRaw, s: raw}
}

func IntValue(v int64) Value {
	return Value{kind: ValueCoerced, typ: FieldTypeInteger, i: v}
}

func DecimalValue(v float64) Value {
	return Value{kind: ValueCoerced, typ: FieldTypeDecimal, f: v}
}

func BoolValue(v bool) Value {
	return Value{kind: ValueCoerced, typ: FieldTypeBoolean, b: v}
}

func StringValue(v string) Value {
	return Value{kind: ValueCoerced, typ: FieldTypeString, s: v}
}

// TimeValue stores t normalized to UTC
func TimeValue(t time.Time) Value {
	return Value{kind: ValueCoerced, typ: FieldTypeTimestamp, t: t.UTC()}
}

func ListValue(items []string) Value {
	return Value{kind: ValueCoerced, typ: FieldTypeStringList, list: items}
}

// Kind returns how the value was produced
func (v Value) Kind() ValueKind {
	if v.kind == "" {
		return ValueAbsent
	}
	return v.kind
}

// IsAbsent reports whether the field is missing
func (v Value) IsAbsent() bool {
	return v.Kind() == ValueAbsent
}

// Type returns the declared type of a coerced value, or "" otherwise
func (v Value) Type() FieldType {
	if v.kind != ValueCoerced {
		return ""
	}
	return v.typ
}

func (v Value) Int() (int64, bool) {
	return v.i, v.kind == ValueCoerced && v.typ == FieldTypeInteger
}

func (v Value) Decimal() (float64, bool) {
	return v.f, v.kind == ValueCoerced && v.typ == FieldTypeDecimal
}

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == ValueCoerced && v.typ == FieldTypeBoolean
}

func (v Value) Str() (string, bool) {
	return v.s, v.kind == ValueCoerced && v.typ == FieldTypeString
}

func (v Value) Time() (time.Time, bool) {
	return v.t, v.kind == ValueCoerced && v.typ == FieldTypeTimestamp
}

func (v Value) List() ([]string, bool) {
	return v.list, v.kind == ValueCoerced && v.typ == FieldTypeStringList
}

// Raw returns the original string of a kept-raw value
func (v Value) Raw() (string, bool) {
	return v.s, v.kind == ValueKeptRaw
}

// Interface returns the Go value to persist: the typed value when coerced,
// the raw string when kept raw, nil when absent.
func (v Value) Interface() interface{} {
	switch v.Kind() {
	case ValueKeptRaw:
		return v.s
	case ValueCoerced:
		switch v.typ {
		case FieldTypeInteger:
			return v.i
		case FieldTypeDecimal:
			return v.f
		case FieldTypeBoolean:
			return v.b
		case FieldTypeString:
			return v.s
		case FieldTypeTimestamp:
			return v.t
		case FieldTypeStringList:
			return v.list
		}
	}
	return nil
}
