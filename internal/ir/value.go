package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueKind identifies a Value variant.
type ValueKind string

const (
	KindNull   ValueKind = "null"
	KindText   ValueKind = "text"
	KindNumber ValueKind = "number"
	KindChoice ValueKind = "choice"
	KindBool   ValueKind = "bool"
)

// Value is a sealed interface representing an attribute value.
// Only Null, Text, Number, Choice, and Bool implement it.
//
// All variants are comparable Go types, so two snapshots holding the same
// values are == and reflect.DeepEqual.
type Value interface {
	Kind() ValueKind
	String() string
	value() // Sealed - only these types implement it
}

// Null represents an explicitly cleared value.
type Null struct{}

func (Null) value() {}
func (Null) Kind() ValueKind { return KindNull }
func (Null) String() string { return "null" }

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Text is a free-form string value.
type Text string

func (Text) value() {}
func (Text) Kind() ValueKind { return KindText }
func (t Text) String() string { return string(t) }

// MarshalJSON implements json.Marshaler for Text.
func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

// Number is a finite numeric value.
type Number float64

func (Number) value() {}
func (Number) Kind() ValueKind { return KindNumber }
func (n Number) String() string { return formatNumber(float64(n)) }

// MarshalJSON implements json.Marshaler for Number.
// Non-finite numbers cannot be represented in JSON and return an error.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v", f)
	}
	return []byte(formatNumber(f)), nil
}

// Choice is a value drawn from an attribute's enumerated choice set.
type Choice string

func (Choice) value() {}
func (Choice) Kind() ValueKind { return KindChoice }
func (c Choice) String() string { return string(c) }

// MarshalJSON implements json.Marshaler for Choice.
func (c Choice) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}
func (Bool) Kind() ValueKind { return KindBool }
func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// MarshalJSON implements json.Marshaler for Bool.
func (b Bool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

// formatNumber renders integral values without a fractional part so that
// 26 and 26.0 encode identically.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// StringOf returns the string content of Text and Choice values.
func StringOf(v Value) (string, bool) {
	switch val := v.(type) {
	case Text:
		return string(val), true
	case Choice:
		return string(val), true
	case Null, Number, Bool, nil:
		return "", false
	default:
		return "", false
	}
}

// NumberOf returns the numeric content of Number values.
func NumberOf(v Value) (float64, bool) {
	switch val := v.(type) {
	case Number:
		return float64(val), true
	case Null, Text, Choice, Bool, nil:
		return 0, false
	default:
		return 0, false
	}
}

// ValueFromAny converts a decoded JSON/YAML scalar to a Value.
// Maps and lists are rejected: attribute values are scalars.
func ValueFromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return Text(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite number %v", val)
		}
		return Number(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Number(f), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// taggedValue is the storage form of a Value: the variant survives the
// round trip, which plain JSON cannot guarantee for Text vs Choice.
type taggedValue struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalTagged encodes a Value together with its variant.
func MarshalTagged(v Value) ([]byte, error) {
	if v == nil {
		v = Null{}
	}
	raw, err := MarshalValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedValue{Kind: v.Kind(), Value: raw})
}

// UnmarshalTagged decodes a Value produced by MarshalTagged.
func UnmarshalTagged(data []byte) (Value, error) {
	var tv taggedValue
	if err := json.Unmarshal(data, &tv); err != nil {
		return nil, fmt.Errorf("unmarshal tagged value: %w", err)
	}
	return decodeKind(tv.Kind, tv.Value)
}

// MarshalValue marshals a Value to plain JSON bytes.
// Uses type-switch dispatch to handle all Value variants.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case Text:
		return val.MarshalJSON()
	case Number:
		return val.MarshalJSON()
	case Choice:
		return val.MarshalJSON()
	case Bool:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes plain JSON into a Value. Strings become Text;
// use Attribute.Coerce to turn them into Choice where appropriate.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return ValueFromAny(raw)
}

func decodeKind(kind ValueKind, raw json.RawMessage) (Value, error) {
	switch kind {
	case KindNull:
		return Null{}, nil
	case KindText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("text value: %w", err)
		}
		return Text(s), nil
	case KindChoice:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("choice value: %w", err)
		}
		return Choice(s), nil
	case KindNumber:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("number value: %w", err)
		}
		return Number(f), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("bool value: %w", err)
		}
		return Bool(b), nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", kind)
	}
}

// ValuesEqual reports whether two values are the same variant with the same
// content. A nil Value equals Null.
func ValuesEqual(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	return a == b
}
