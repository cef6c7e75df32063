package transform

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Condition is a single filter predicate. A condition referencing a field the
// record does not have is vacuously true and never excludes the record.
type Condition struct {
	Field    string      `mapstructure:"field" json:"field"`
	Operator string      `mapstructure:"operator" json:"operator"`
	Value    interface{} `mapstructure:"value" json:"value"`
}

// Spec is an ordered declarative set of operations applied to a structured
// value. Operations run in a fixed order regardless of how the spec was
// written: select, rename, filter, sort, limit, convert, compute.
type Spec struct {
	// SelectFields keeps only the named keys of a map, or of every record in
	// a list of maps. Unknown names are ignored.
	SelectFields []string `mapstructure:"select_fields" json:"select_fields,omitempty"`

	// RenameFields maps old key names to new ones; unmapped keys pass
	// through unchanged.
	RenameFields map[string]string `mapstructure:"rename_fields" json:"rename_fields,omitempty"`

	// Filters keeps a record only when every condition holds.
	Filters []Condition `mapstructure:"filter_conditions" json:"filter_conditions,omitempty"`

	// SortBy sorts a list of records by the named field (stable); a record
	// missing the field sorts as 0.
	SortBy   string `mapstructure:"sort_by" json:"sort_by,omitempty"`
	SortDesc bool   `mapstructure:"sort_desc" json:"sort_desc,omitempty"`

	// Limit truncates a list to its first n elements when set.
	Limit *int `mapstructure:"limit" json:"limit,omitempty"`

	// TypeConversions coerces fields to int, float, str, bool, or datetime.
	// A failed coercion leaves the original value unchanged.
	TypeConversions map[string]string `mapstructure:"type_conversions" json:"type_conversions,omitempty"`

	// ComputedFields adds fields evaluated per record: ${field} substitutes
	// a value, "a + b" sums as floats, "a || b" concatenates as strings,
	// anything else is a literal.
	ComputedFields map[string]string `mapstructure:"computed_fields" json:"computed_fields,omitempty"`
}

// IsZero reports whether the spec contains no operations.
func (s *Spec) IsZero() bool {
	return s == nil ||
		(len(s.SelectFields) == 0 &&
			len(s.RenameFields) == 0 &&
			len(s.Filters) == 0 &&
			s.SortBy == "" &&
			s.Limit == nil &&
			len(s.TypeConversions) == 0 &&
			len(s.ComputedFields) == 0)
}

// SpecFromMap decodes a transform spec from a generic map, the shape the
// dispatch layer hands over.
func SpecFromMap(m map[string]interface{}) (*Spec, error) {
	var spec Spec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &spec,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("invalid transform spec: %w", err)
	}
	return &spec, nil
}
