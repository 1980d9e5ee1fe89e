package normalize

import (
	"github.com/cuemby/potato/pkg/types"
)

// RejectReason says why a row was not written
type RejectReason string

const (
	ReasonMissingID        RejectReason = "missing_id"
	ReasonMissingCreatedAt RejectReason = "missing_created_at"
	ReasonMalformedRow     RejectReason = "malformed_row"
)

// MissingField returns the reason used for an absent required field
func MissingField(name string) RejectReason {
	switch name {
	case types.FieldID:
		return ReasonMissingID
	case types.FieldCreatedAt:
		return ReasonMissingCreatedAt
	}
	return RejectReason("missing_" + name)
}

// Validator accepts records carrying every required field of their schema
type Validator struct {
	required []string
}

// NewValidator creates a validator for the required fields of schema
func NewValidator(schema *types.Schema) *Validator {
	return &Validator{required: schema.Required()}
}

// Validate returns ok=true for an acceptable record, or the reason of the
// first missing required field
func (v *Validator) Validate(rec *types.Record) (RejectReason, bool) {
	for _, name := range v.required {
		if rec.Get(name).IsAbsent() {
			return MissingField(name), false
		}
	}
	return "", true
}
