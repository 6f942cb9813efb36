package extraction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Configuration errors. They are fatal at startup and are always wrapped in
// a *ConfigError.
var (
	ErrEmptySchema      = errors.New("schema has no fields")
	ErrInvalidField     = errors.New("invalid field")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrUnknownKey       = errors.New("unknown key")
	ErrCycle            = errors.New("cyclic dependency")
	ErrForwardReference = errors.New("reference to a later derived column")
	ErrBadFormula       = errors.New("malformed formula")
	ErrBadThreshold     = errors.New("threshold must be between 0 and 100")
)

// ConfigError describes a schema or derived-column misconfiguration.
type ConfigError struct {
	Key    string
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "schema config"
	if e.Key != "" {
		msg += fmt.Sprintf(": key %q", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FieldSpec declares one value to pull out of every document.
type FieldSpec struct {
	Label    string          // text the value appears next to
	Key      string          // stable column identifier
	Required bool            // missing value marks the record incomplete
	Hidden   bool            // helper field, dropped from the output table
	Default  decimal.Decimal // value used when the label is not found
}

// Schema is an ordered, immutable set of field specs with unique keys.
type Schema struct {
	fields []FieldSpec
	index  map[string]int
}

// NewSchema validates fields and returns a schema preserving their order.
func NewSchema(fields ...FieldSpec) (Schema, error) {
	if len(fields) == 0 {
		return Schema{}, &ConfigError{Err: ErrEmptySchema}
	}

	s := Schema{
		fields: make([]FieldSpec, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		f.Label = strings.TrimSpace(f.Label)
		f.Key = strings.TrimSpace(f.Key)

		switch {
		case f.Key == "":
			return Schema{}, &ConfigError{Err: ErrInvalidField, Detail: fmt.Sprintf("field %q has no key", f.Label)}
		case f.Label == "":
			return Schema{}, &ConfigError{Key: f.Key, Err: ErrInvalidField, Detail: "label is required"}
		case strings.ContainsAny(f.Key, "+-"):
			return Schema{}, &ConfigError{Key: f.Key, Err: ErrInvalidField, Detail: "key may not contain '+' or '-'"}
		}
		if _, dup := s.index[f.Key]; dup {
			return Schema{}, &ConfigError{Key: f.Key, Err: ErrDuplicateKey}
		}

		s.index[f.Key] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSchema is NewSchema for statically known fields.
func MustSchema(fields ...FieldSpec) Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultSchema returns the payslip layout used when no layout file is given.
func DefaultSchema() Schema {
	return MustSchema(
		FieldSpec{Label: "Total Earnings", Key: "Earnings", Required: true},
		FieldSpec{Label: "Overtime", Key: "Overtime"},
		FieldSpec{Label: "Commission/Bonus", Key: "CommissionBonus", Hidden: true},
		FieldSpec{Label: "Bonus / Winners", Key: "BonusWinners", Hidden: true},
		FieldSpec{Label: "Total Deductions", Key: "Deductions"},
		FieldSpec{Label: "EOBI Contribution", Key: "EOBI"},
		FieldSpec{Label: "Provident Fund Contribution Employee", Key: "PF"},
		FieldSpec{Label: "Payroll Tax", Key: "Tax"},
		FieldSpec{Label: "Medical / OPD Reimbursement", Key: "Medical"},
	)
}

// Fields returns a copy of the field specs in schema order.
func (s Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// Has reports whether key is declared.
func (s Schema) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Field returns the spec for key.
func (s Schema) Field(key string) (FieldSpec, bool) {
	i, ok := s.index[key]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Keys returns field keys in schema order.
func (s Schema) Keys() []string {
	keys := make([]string, len(s.fields))
	for i, f := range s.fields {
		keys[i] = f.Key
	}
	return keys
}
