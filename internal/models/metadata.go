package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type metadataKind uint8

const (
	kindNull metadataKind = iota
	kindString
	kindNumber
	kindBool
)

// MetadataValue is a scalar metadata value: a string, a number or a boolean.
type MetadataValue struct {
	kind metadataKind
	str  string
	num  float64
	b    bool
}

// Metadata is the open key/value context returned verbatim with search hits.
type Metadata map[string]MetadataValue

// String returns a string metadata value.
func String(s string) MetadataValue { return MetadataValue{kind: kindString, str: s} }

// Number returns a numeric metadata value.
func Number(n float64) MetadataValue { return MetadataValue{kind: kindNumber, num: n} }

// Int returns a numeric metadata value from an integer.
func Int(n int64) MetadataValue { return MetadataValue{kind: kindNumber, num: float64(n)} }

// Bool returns a boolean metadata value.
func Bool(b bool) MetadataValue { return MetadataValue{kind: kindBool, b: b} }

// IsZero reports whether v was never set.
func (v MetadataValue) IsZero() bool { return v.kind == kindNull }

// AsString returns the value and true when v holds a string.
func (v MetadataValue) AsString() (string, bool) { return v.str, v.kind == kindString }

// AsNumber returns the value and true when v holds a number.
func (v MetadataValue) AsNumber() (float64, bool) { return v.num, v.kind == kindNumber }

// AsBool returns the value and true when v holds a boolean.
func (v MetadataValue) AsBool() (bool, bool) { return v.b, v.kind == kindBool }

// Interface returns the Go value held by v (string, float64, bool or nil).
func (v MetadataValue) Interface() interface{} {
	switch v.kind {
	case kindString:
		return v.str
	case kindNumber:
		return v.num
	case kindBool:
		return v.b
	default:
		return nil
	}
}

func (v MetadataValue) String() string {
	switch v.kind {
	case kindString:
		return v.str
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// MarshalJSON encodes the scalar as its JSON primitive.
func (v MetadataValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts JSON strings, numbers, booleans and null.
// Objects and arrays are rejected so the encoding stays deterministic.
func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = MetadataValue{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '{', '[':
		return fmt.Errorf("metadata values must be scalars, got %s", string(data))
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid metadata number %s: %w", string(data), err)
		}
		*v = Number(n)
	}
	return nil
}
