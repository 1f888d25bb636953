package gridsync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the payload carried by a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindText
	KindNumber
)

// String returns a human-readable name for the ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Value is a cell scalar: null, text, or a float64 number.
// The zero Value is null.
type Value struct {
	kind   ValueKind
	text   string
	number float64
}

// Null is the absent value.
var Null = Value{}

// Text returns a text Value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{kind: KindNumber, number: f}
}

// ParseValue returns a Number when raw (ignoring surrounding whitespace) is a
// finite decimal float, and Text(raw) otherwise.
func ParseValue(raw string) Value {
	if f, ok := parseNumber(raw); ok {
		return Number(f)
	}
	return Text(raw)
}

func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	lower := strings.ToLower(strings.TrimLeft(s, "+-"))
	if strings.HasPrefix(lower, "0x") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Kind returns the tag of v.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsText returns the text payload and whether v is text.
func (v Value) AsText() (string, bool) {
	return v.text, v.kind == KindText
}

// AsNumber returns the numeric payload and whether v is a number.
func (v Value) AsNumber() (float64, bool) {
	return v.number, v.kind == KindNumber
}

// String renders v the way it is written to CSV: "" for null, the text as is,
// and the shortest decimal form for numbers.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	default:
		return ""
	}
}

// Equal reports whether v and o carry the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.number == o.number
	default:
		return true
	}
}

// rank orders kinds for sorting: numbers, then text, then null.
func (v Value) rank() int {
	switch v.kind {
	case KindNumber:
		return 0
	case KindText:
		return 1
	default:
		return 2
	}
}

// Compare orders values totally: numbers before text before null; numbers by
// magnitude and text lexicographically by byte.
func (v Value) Compare(o Value) int {
	if r1, r2 := v.rank(), o.rank(); r1 != r2 {
		if r1 < r2 {
			return -1
		}
		return 1
	}
	switch v.kind {
	case KindNumber:
		switch {
		case v.number < o.number:
			return -1
		case v.number > o.number:
			return 1
		}
		return 0
	case KindText:
		return strings.Compare(v.text, o.text)
	default:
		return 0
	}
}

// MarshalJSON encodes null as null, text as a string and numbers as numbers.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		return json.Marshal(v.number)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, strings, numbers and booleans (kept as text).
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*v = Null
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case bytes.Equal(data, []byte("true")) || bytes.Equal(data, []byte("false")):
		*v = Text(string(data))
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Number(f)
	default:
		return fmt.Errorf("cell value must be a string, number or null, got %s", data)
	}
	return nil
}
