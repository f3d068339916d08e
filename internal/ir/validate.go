package ir

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrValueType is returned when a value's variant does not fit the attribute type.
var ErrValueType = errors.New("value does not match attribute type")

// Validate checks that v is a legal value for the attribute.
// Null is always legal: it clears the attribute.
func (a Attribute) Validate(v Value) error {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Text:
		if a.Type != TypeText {
			return fmt.Errorf("attribute %q: text value for %s attribute: %w", a.ID, a.Type, ErrValueType)
		}
		return nil
	case Number:
		if a.Type != TypeNumber {
			return fmt.Errorf("attribute %q: number value for %s attribute: %w", a.ID, a.Type, ErrValueType)
		}
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("attribute %q: number must be finite, got %v", a.ID, f)
		}
		return nil
	case Choice:
		if a.Type != TypeChoice {
			return fmt.Errorf("attribute %q: choice value for %s attribute: %w", a.ID, a.Type, ErrValueType)
		}
		if !slices.Contains(a.Choices, string(val)) {
			return fmt.Errorf("attribute %q: %q is not one of %v", a.ID, string(val), a.Choices)
		}
		return nil
	case Bool:
		if a.Type != TypeBoolean {
			return fmt.Errorf("attribute %q: bool value for %s attribute: %w", a.ID, a.Type, ErrValueType)
		}
		return nil
	default:
		return fmt.Errorf("attribute %q: unknown value type %T", a.ID, v)
	}
}

// Coerce converts loosely typed input into the variant the attribute type
// expects: strings become Choice on choice attributes. Anything else is
// returned unchanged and left for Validate to judge.
func (a Attribute) Coerce(v Value) Value {
	if v == nil {
		return Null{}
	}
	if t, ok := v.(Text); ok && a.Type == TypeChoice {
		return Choice(t)
	}
	return v
}
