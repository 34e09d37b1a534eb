package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

/*
 * Union-shaped values of the rule model.
 *
 * The canonical document carries several fields whose JSON shape varies:
 *   - Filter.value: null | scalar | [scalar...]   (scalar = string | number)
 *   - Condition.threshold: "" | number | string
 *   - Stage.groupBy: null | field | [field...]
 *
 * Each is a small struct with constructors and explicit JSON methods that
 * preserve the exact shape on round trip. Decoding rejects other shapes with
 * ErrInvalidValue. Non-finite numbers are never representable.
 */

// Scalar is a string or a finite number.
type Scalar struct {
	Text     string
	Number   float64
	IsNumber bool
}

// TextScalar returns a string scalar.
func TextScalar(s string) Scalar {
	return Scalar{Text: s}
}

// NumberScalar returns a numeric scalar. Non-finite input yields an empty text scalar.
func NumberScalar(f float64) Scalar {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Scalar{}
	}
	return Scalar{Number: f, IsNumber: true}
}

// IsBlank reports whether the scalar is an empty or whitespace-only string.
func (s Scalar) IsBlank() bool {
	return !s.IsNumber && strings.TrimSpace(s.Text) == ""
}

// String renders the scalar for display.
func (s Scalar) String() string {
	if s.IsNumber {
		return strconv.FormatFloat(s.Number, 'f', -1, 64)
	}
	return s.Text
}

// MarshalJSON implements json.Marshaler.
func (s Scalar) MarshalJSON() ([]byte, error) {
	if s.IsNumber {
		return json.Marshal(s.Number)
	}
	return json.Marshal(s.Text)
}

// UnmarshalJSON implements json.Unmarshaler. Accepts strings and numbers only.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrInvalidValue
	}
	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("scalar: %w", ErrInvalidValue)
		}
		*s = TextScalar(text)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("scalar: %w", ErrInvalidValue)
		}
		*s = NumberScalar(f)
		return nil
	default:
		return fmt.Errorf("scalar %s: %w", data, ErrInvalidValue)
	}
}

// FilterValue is null, a single scalar, or a list of scalars.
// The zero value is null.
type FilterValue struct {
	items []Scalar
	list  bool
}

// NullValue returns the null filter value.
func NullValue() FilterValue {
	return FilterValue{}
}

// ScalarValue returns a single-scalar filter value.
func ScalarValue(s Scalar) FilterValue {
	return FilterValue{items: []Scalar{s}}
}

// ListValue returns a list filter value. An empty call yields an empty list, not null.
func ListValue(items ...Scalar) FilterValue {
	cp := make([]Scalar, len(items))
	copy(cp, items)
	return FilterValue{items: cp, list: true}
}

// IsNull reports whether the value is null.
func (v FilterValue) IsNull() bool {
	return !v.list && len(v.items) == 0
}

// IsList reports whether the value is a list.
func (v FilterValue) IsList() bool {
	return v.list
}

// Scalars returns a copy of the value's scalars (one for a scalar value).
func (v FilterValue) Scalars() []Scalar {
	cp := make([]Scalar, len(v.items))
	copy(cp, v.items)
	return cp
}

// IsEmpty reports whether the value carries nothing usable:
// null, an empty list, or only blank strings.
func (v FilterValue) IsEmpty() bool {
	for _, s := range v.items {
		if !s.IsBlank() {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.list:
		items := v.items
		if items == nil {
			items = []Scalar{}
		}
		return json.Marshal(items)
	case len(v.items) == 0:
		return []byte("null"), nil
	default:
		return json.Marshal(v.items[0])
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*v = NullValue()
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var items []Scalar
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("filter value: %w", ErrInvalidValue)
		}
		*v = ListValue(items...)
		return nil
	}
	var s Scalar
	if err := s.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("filter value: %w", ErrInvalidValue)
	}
	*v = ScalarValue(s)
	return nil
}

// Threshold is a condition's comparison value: empty, a number, or text.
// The zero value is empty and encodes as "".
type Threshold struct {
	text  string
	num   float64
	isNum bool
}

// EmptyThreshold returns the empty threshold.
func EmptyThreshold() Threshold {
	return Threshold{}
}

// NumberThreshold returns a numeric threshold. Non-finite input yields the empty threshold.
func NumberThreshold(f float64) Threshold {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Threshold{}
	}
	return Threshold{num: f, isNum: true}
}

// TextThreshold returns a text threshold. The empty string is the empty threshold.
func TextThreshold(s string) Threshold {
	return Threshold{text: s}
}

// IsEmpty reports whether no threshold value is set.
func (t Threshold) IsEmpty() bool {
	return !t.isNum && t.text == ""
}

// Number returns the numeric value and whether the threshold is numeric.
func (t Threshold) Number() (float64, bool) {
	return t.num, t.isNum
}

// Text returns the text value; empty for numeric thresholds.
func (t Threshold) Text() string {
	return t.text
}

// String renders the threshold for display.
func (t Threshold) String() string {
	if t.isNum {
		return strconv.FormatFloat(t.num, 'f', -1, 64)
	}
	return t.text
}

// MarshalJSON implements json.Marshaler.
func (t Threshold) MarshalJSON() ([]byte, error) {
	if t.isNum {
		return json.Marshal(t.num)
	}
	return json.Marshal(t.text)
}

// UnmarshalJSON implements json.Unmarshaler. Null decodes to the empty threshold.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*t = EmptyThreshold()
		return nil
	}
	var s Scalar
	if err := s.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("threshold: %w", ErrInvalidValue)
	}
	if s.IsNumber {
		*t = NumberThreshold(s.Number)
	} else {
		*t = TextThreshold(s.Text)
	}
	return nil
}

// GroupBy is null, a single field, or a list of fields.
// The zero value is null.
type GroupBy struct {
	fields []string
	list   bool
}

// NoGrouping returns the null grouping.
func NoGrouping() GroupBy {
	return GroupBy{}
}

// GroupByField groups by a single field.
func GroupByField(field string) GroupBy {
	return GroupBy{fields: []string{field}}
}

// GroupByFields groups by a list of fields.
func GroupByFields(fields ...string) GroupBy {
	cp := make([]string, len(fields))
	copy(cp, fields)
	return GroupBy{fields: cp, list: true}
}

// IsNull reports whether no grouping is set.
func (g GroupBy) IsNull() bool {
	return !g.list && len(g.fields) == 0
}

// IsList reports whether the grouping was given as a list.
func (g GroupBy) IsList() bool {
	return g.list
}

// Fields returns a copy of the grouping fields.
func (g GroupBy) Fields() []string {
	cp := make([]string, len(g.fields))
	copy(cp, g.fields)
	return cp
}

// MarshalJSON implements json.Marshaler.
func (g GroupBy) MarshalJSON() ([]byte, error) {
	switch {
	case g.list:
		fields := g.fields
		if fields == nil {
			fields = []string{}
		}
		return json.Marshal(fields)
	case len(g.fields) == 0:
		return []byte("null"), nil
	default:
		return json.Marshal(g.fields[0])
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *GroupBy) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*g = NoGrouping()
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var fields []string
		if err := json.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("groupBy: %w", ErrInvalidValue)
		}
		*g = GroupByFields(fields...)
		return nil
	}
	var field string
	if err := json.Unmarshal(data, &field); err != nil {
		return fmt.Errorf("groupBy: %w", ErrInvalidValue)
	}
	*g = GroupByField(field)
	return nil
}
