package record

import (
	"fmt"
	"strconv"
	"strings"
)

// TriState is the normalized state of a yes/no(/NA) categorical cell.
type TriState string

const (
	TriYes     TriState = "yes"
	TriNo      TriState = "no"
	TriNA      TriState = "na"
	TriUnknown TriState = "unknown"
)

// ValueKind defines the storage type for normalized cell values.
type ValueKind string

const (
	KindString   ValueKind = "string"
	KindNumber   ValueKind = "number"
	KindList     ValueKind = "list"
	KindTriState ValueKind = "tristate"
	KindBlank    ValueKind = "blank"
	KindInvalid  ValueKind = "invalid"
)

// Value is a typed, normalized cell value. Exactly one of the payload fields
// is set, according to Kind. Invalid values keep the raw cell text so a row
// can be emitted with the offending field still visible for triage.
type Value struct {
	Kind      ValueKind `json:"kind"`
	StringVal *string   `json:"string_val,omitempty"`
	NumberVal *float64  `json:"number_val,omitempty"`
	ListVal   []string  `json:"list_val,omitempty"`
	TriVal    *TriState `json:"tri_val,omitempty"`
	Raw       string    `json:"raw,omitempty"`
}

// NewString creates a scalar string value. Empty input collapses to a blank
// marker so callers cannot smuggle blanks past the blank policy.
func NewString(s string) Value {
	if s == "" {
		return NewBlank()
	}
	return Value{Kind: KindString, StringVal: &s}
}

// NewNumber creates a numeric value.
func NewNumber(n float64) Value {
	return Value{Kind: KindNumber, NumberVal: &n}
}

// NewList creates a list value for split columns. A nil slice is stored as an
// empty, non-nil list so output rendering stays uniform.
func NewList(items []string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{Kind: KindList, ListVal: items}
}

// NewTriState creates a yes/no/NA/unknown value.
func NewTriState(t TriState) Value {
	return Value{Kind: KindTriState, TriVal: &t}
}

// NewBlank creates the explicit permitted-blank marker.
func NewBlank() Value {
	return Value{Kind: KindBlank}
}

// NewInvalid marks a cell that failed normalization, retaining its raw text.
func NewInvalid(raw string) Value {
	return Value{Kind: KindInvalid, Raw: raw}
}

// IsBlank reports whether the value is the explicit blank marker.
func (v Value) IsBlank() bool { return v.Kind == KindBlank }

// IsInvalid reports whether the value failed normalization.
func (v Value) IsInvalid() bool { return v.Kind == KindInvalid }

// AsNumber returns the numeric payload and whether one is present.
func (v Value) AsNumber() (float64, bool) {
	if v.Kind == KindNumber && v.NumberVal != nil {
		return *v.NumberVal, true
	}
	return 0, false
}

// AsString returns the scalar string payload, or "" for other kinds.
func (v Value) AsString() string {
	if v.StringVal != nil {
		return *v.StringVal
	}
	return ""
}

// AsList returns the list payload, or nil for other kinds.
func (v Value) AsList() []string {
	if v.Kind == KindList {
		return v.ListVal
	}
	return nil
}

// AsTriState returns the tri-state payload and whether one is present.
func (v Value) AsTriState() (TriState, bool) {
	if v.Kind == KindTriState && v.TriVal != nil {
		return *v.TriVal, true
	}
	return "", false
}

// Render serializes the value for tabular output. Lists are rejoined with the
// given delimiter; blanks and invalids render as the NA token so downstream
// tools see a consistent placeholder.
func (v Value) Render(delimiter string) string {
	switch v.Kind {
	case KindString:
		return v.AsString()
	case KindNumber:
		if v.NumberVal != nil {
			return strconv.FormatFloat(*v.NumberVal, 'f', -1, 64)
		}
	case KindList:
		return strings.Join(v.ListVal, delimiter)
	case KindTriState:
		if v.TriVal != nil {
			return string(*v.TriVal)
		}
	case KindBlank:
		return "NA"
	case KindInvalid:
		return "NA"
	}
	return "NA"
}

// String returns a loggable representation.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.AsString()
	case KindNumber:
		if v.NumberVal != nil {
			return strconv.FormatFloat(*v.NumberVal, 'f', -1, 64)
		}
	case KindList:
		return fmt.Sprintf("[%s]", strings.Join(v.ListVal, ", "))
	case KindTriState:
		if v.TriVal != nil {
			return string(*v.TriVal)
		}
	case KindBlank:
		return "<blank>"
	case KindInvalid:
		return fmt.Sprintf("<invalid %q>", v.Raw)
	}
	return "<unset>"
}
