package profile

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ValueKind enumerates the types a payload setting can hold.
type ValueKind int

// The closed set of setting value kinds.
const (
	ValueText ValueKind = iota
	ValueBool
	ValueInteger
	ValueFloat
	ValueTextList
)

func (k ValueKind) String() string {
	switch k {
	case ValueBool:
		return "bool"
	case ValueInteger:
		return "integer"
	case ValueFloat:
		return "float"
	case ValueTextList:
		return "text list"
	default:
		return "text"
	}
}

// Value is a single payload setting. The zero Value is an empty Text.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	list []string
}

// BoolValue wraps a boolean setting.
func BoolValue(v bool) Value { return Value{kind: ValueBool, b: v} }

// IntegerValue wraps an integer setting.
func IntegerValue(v int64) Value { return Value{kind: ValueInteger, i: v} }

// FloatValue wraps a floating point setting.
func FloatValue(v float64) Value { return Value{kind: ValueFloat, f: v} }

// TextValue wraps a string setting.
func TextValue(v string) Value { return Value{kind: ValueText, s: v} }

// TextListValue wraps a list-of-strings setting.
func TextListValue(v []string) Value { return Value{kind: ValueTextList, list: v} }

// Kind returns the kind tag of the value.
func (v Value) Kind() ValueKind { return v.kind }

// Bool returns the boolean form, or false for other kinds.
func (v Value) Bool() bool { return v.kind == ValueBool && v.b }

// Integer returns the integer form, or 0 for other kinds.
func (v Value) Integer() int64 {
	if v.kind != ValueInteger {
		return 0
	}
	return v.i
}

// Float returns the floating point form, or 0 for other kinds.
func (v Value) Float() float64 {
	if v.kind != ValueFloat {
		return 0
	}
	return v.f
}

// Text returns the string form, or "" for other kinds.
func (v Value) Text() string {
	if v.kind != ValueText {
		return ""
	}
	return v.s
}

// TextList returns the list form, or nil for other kinds.
func (v Value) TextList() []string {
	if v.kind != ValueTextList {
		return nil
	}
	return v.list
}

// IsZero reports whether the value is empty for its kind: "" for text,
// an empty list for text lists. Numeric and boolean settings always count
// as populated.
func (v Value) IsZero() bool {
	switch v.kind {
	case ValueText:
		return strings.TrimSpace(v.s) == ""
	case ValueTextList:
		return len(v.list) == 0
	default:
		return false
	}
}

// MarshalJSON encodes the value in its natural JSON form: a scalar or an
// array of strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueBool:
		return json.Marshal(v.b)
	case ValueInteger:
		return json.Marshal(v.i)
	case ValueFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, errors.Errorf("unsupported float setting %v", v.f)
		}
		raw := strconv.FormatFloat(v.f, 'g', -1, 64)
		// integral floats must keep a fraction mark, or the kind is
		// lost on decode
		if !strings.ContainsAny(raw, ".eE") {
			raw += ".0"
		}
		return []byte(raw), nil
	case ValueTextList:
		if v.list == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.s)
	}
}

// UnmarshalJSON determines the kind from the JSON form. Numbers without a
// fraction or exponent decode as integers, everything else as floats.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty setting value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "decode text setting")
		}
		*v = TextValue(s)
		return nil
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return errors.Wrap(err, "decode text list setting")
		}
		*v = TextListValue(list)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return errors.Wrap(err, "decode bool setting")
		}
		*v = BoolValue(b)
		return nil
	case 'n':
		if !bytes.Equal(data, []byte("null")) {
			return errors.Errorf("unsupported setting value %s", data)
		}
		*v = TextValue("")
		return nil
	default:
		raw := string(data)
		if strings.ContainsAny(raw, ".eE") {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return errors.Wrap(err, "decode float setting")
			}
			*v = FloatValue(f)
			return nil
		}
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errors.Wrap(err, "decode integer setting")
		}
		*v = IntegerValue(i)
		return nil
	}
}

// Settings maps setting keys to dynamically typed values. Key semantics
// are defined per payload type; the model does not interpret them.
type Settings map[string]Value

// Has reports whether the key is present.
func (s Settings) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Text returns the string setting under key, or "".
func (s Settings) Text(key string) string { return s[key].Text() }

// Bool returns the boolean setting under key, or false.
func (s Settings) Bool(key string) bool { return s[key].Bool() }

// TextList returns the list setting under key, or nil.
func (s Settings) TextList(key string) []string { return s[key].TextList() }
