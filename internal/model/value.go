package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the concrete type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDate
	KindDateTime
)

// String returns the kind name as used in mapping configs.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	default:
		return "null"
	}
}

// Value is a tagged union over the types a source cell can carry. Raw values
// from heterogeneous sources are modeled explicitly rather than as any.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

// NullValue returns the absent value.
func NullValue() Value { return Value{kind: KindNull} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue wraps a float.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// DateValue wraps a calendar date (time normalized to midnight UTC).
func DateValue(t time.Time) Value {
	return Value{kind: KindDate, t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// DateTimeValue wraps a timestamp.
func DateTimeValue(t time.Time) Value { return Value{kind: KindDateTime, t: t.UTC()} }

// Kind returns the tag of the union.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt
}

// AsFloat returns the numeric payload; integers widen.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsTime returns the date or datetime payload.
func (v Value) AsTime() (time.Time, bool) {
	return v.t, v.kind == KindDate || v.kind == KindDateTime
}

// Equal reports payload equality. Int and float compare numerically so a
// most-frequent tally treats 5 and 5.0 as one value.
func (v Value) Equal(o Value) bool {
	if (v.kind == KindInt || v.kind == KindFloat) && (o.kind == KindInt || o.kind == KindFloat) {
		a, _ := v.AsFloat()
		b, _ := o.AsFloat()
		return a == b
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	case KindDate, KindDateTime:
		return v.t.Equal(o.t)
	default:
		return false
	}
}

// String renders the payload for logs and exports.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindDateTime:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// UnmarshalJSON decodes the natural JSON forms back into tagged values.
// Strings matching the date or RFC 3339 layouts come back as Date/DateTime;
// numbers without a fractional part come back as Int.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*v = NullValue()
		return nil
	}

	switch data[0] {
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if t, err := time.Parse("2006-01-02", str); err == nil {
			*v = DateValue(t)
			return nil
		}
		if t, err := time.Parse(time.RFC3339, str); err == nil {
			*v = DateTimeValue(t)
			return nil
		}
		*v = StringValue(str)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	default:
		if !strings.ContainsAny(s, ".eE") {
			var i int64
			if err := json.Unmarshal(data, &i); err == nil {
				*v = IntValue(i)
				return nil
			}
		}
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = FloatValue(f)
		return nil
	}
}

// MarshalJSON encodes the payload in its natural JSON form; dates render as
// "2006-01-02" strings, datetimes as RFC 3339.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	case KindDate:
		return json.Marshal(v.t.Format("2006-01-02"))
	case KindDateTime:
		return json.Marshal(v.t.Format(time.RFC3339))
	default:
		return nil, fmt.Errorf("model: unknown value kind %d", v.kind)
	}
}
