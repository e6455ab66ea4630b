// Package proto defines the Hrana wire schema: the SQL value domain, the
// statement/result types, and the JSON message envelopes exchanged between
// client and server. Nothing in this package talks to a socket or a SQL
// backend; it only encodes and decodes the shapes described by the protocol.
package proto

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/segmentio/encoding/json"
)

// Kind discriminates the tagged union held by a Value.
type Kind string

const (
	KindNull    Kind = "null"
	KindInteger Kind = "integer"
	KindFloat   Kind = "float"
	KindText    Kind = "text"
	KindBlob    Kind = "blob"
)

// Value is the SQL value domain (§3): null, a 64-bit integer, a 64-bit
// float, UTF-8 text, or an opaque byte blob. Exactly one of the typed
// fields is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Int  int64
	Flt  float64
	Str  string
	Blob []byte
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// Integer wraps an int64 as a Value.
func Integer(v int64) Value { return Value{Kind: KindInteger, Int: v} }

// Float wraps a float64 as a Value. The caller must not pass NaN or Inf;
// Float does not validate because constructing a Value in Go code is
// always under program control. Validation happens on the JSON boundary,
// in UnmarshalJSON.
func Float(v float64) Value { return Value{Kind: KindFloat, Flt: v} }

// Text wraps a UTF-8 string as a Value.
func Text(v string) Value { return Value{Kind: KindText, Str: v} }

// Blob wraps a byte slice as a Value.
func Blob(v []byte) Value { return Value{Kind: KindBlob, Blob: v} }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Truthy implements the boolean coercion used by the compute machine
// (§4.2): null is false; integer/float is nonzero; text/blob is nonempty.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindInteger:
		return v.Int != 0
	case KindFloat:
		return v.Flt != 0
	case KindText:
		return len(v.Str) != 0
	case KindBlob:
		return len(v.Blob) != 0
	default:
		return false
	}
}

// Equal reports domain equality (§8 invariant 3): exact i64 comparison,
// byte-exact blob comparison, no cross-kind coercion.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInteger:
		return v.Int == other.Int
	case KindFloat:
		return v.Flt == other.Flt
	case KindText:
		return v.Str == other.Str
	case KindBlob:
		if len(v.Blob) != len(other.Blob) {
			return false
		}
		for i := range v.Blob {
			if v.Blob[i] != other.Blob[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON implements canonical serialization per §4.1: integer always
// as a decimal string, float as a JSON number, blob as padded base64, null
// as {"type":"null"}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull, "":
		return json.Marshal(struct {
			Type Kind `json:"type"`
		}{KindNull})
	case KindInteger:
		s := strconv.FormatInt(v.Int, 10)
		return json.Marshal(struct {
			Type  Kind   `json:"type"`
			Value string `json:"value"`
		}{KindInteger, s})
	case KindFloat:
		return json.Marshal(struct {
			Type  Kind    `json:"type"`
			Value float64 `json:"value"`
		}{KindFloat, v.Flt})
	case KindText:
		return json.Marshal(struct {
			Type  Kind   `json:"type"`
			Value string `json:"value"`
		}{KindText, v.Str})
	case KindBlob:
		enc := base64.StdEncoding.EncodeToString(v.Blob)
		return json.Marshal(struct {
			Type  Kind   `json:"type"`
			Base64 string `json:"base64"`
		}{KindBlob, enc})
	default:
		return nil, fmt.Errorf("proto: unknown value kind %q", v.Kind)
	}
}

// UnmarshalJSON implements strict parsing per §4.1: unknown type tags,
// non-decimal integer strings, invalid (non-strict, unpadded) base64, and
// non-UTF-8 text are all rejected. NaN/Infinity floats are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   Kind            `json:"type"`
		Value  json.RawMessage `json:"value"`
		Base64 *string         `json:"base64"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("proto: malformed value: %w", err)
	}

	switch raw.Type {
	case KindNull:
		*v = Value{Kind: KindNull}
		return nil
	case KindInteger:
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return fmt.Errorf("proto: integer value must be a decimal string: %w", err)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("proto: invalid decimal integer %q: %w", s, err)
		}
		*v = Value{Kind: KindInteger, Int: n}
		return nil
	case KindFloat:
		var fp *float64
		if err := json.Unmarshal(raw.Value, &fp); err != nil {
			return fmt.Errorf("proto: float value must be a JSON number: %w", err)
		}
		if fp == nil {
			return fmt.Errorf("proto: float value must be a JSON number, got null")
		}
		f := *fp
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("proto: float value must be finite, got %v", f)
		}
		*v = Value{Kind: KindFloat, Flt: f}
		return nil
	case KindText:
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return fmt.Errorf("proto: text value must be a string: %w", err)
		}
		if !utf8.ValidString(s) {
			return fmt.Errorf("proto: text value is not valid UTF-8")
		}
		*v = Value{Kind: KindText, Str: s}
		return nil
	case KindBlob:
		if raw.Base64 == nil {
			return fmt.Errorf("proto: blob value is missing base64 field")
		}
		b, err := base64.StdEncoding.Strict().DecodeString(*raw.Base64)
		if err != nil {
			return fmt.Errorf("proto: invalid base64 blob: %w", err)
		}
		*v = Value{Kind: KindBlob, Blob: b}
		return nil
	default:
		return fmt.Errorf("proto: unknown value type %q", raw.Type)
	}
}
