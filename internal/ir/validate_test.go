package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeValidate(t *testing.T) {
	status := Attribute{ID: "s", Name: "status", Type: TypeChoice, Choices: []string{"alive", "dead"}}
	age := Attribute{ID: "a", Name: "age", Type: TypeNumber}
	bio := Attribute{ID: "b", Name: "bio", Type: TypeText}
	flag := Attribute{ID: "f", Name: "hidden", Type: TypeBoolean}

	tests := []struct {
		name    string
		attr    Attribute
		value   Value
		wantErr bool
	}{
		{"null always allowed", age, Null{}, false},
		{"nil treated as null", status, nil, false},
		{"finite number", age, Number(26), false},
		{"infinite number", age, Number(math.Inf(-1)), true},
		{"nan", age, Number(math.NaN()), true},
		{"choice in set", status, Choice("dead"), false},
		{"choice outside set", status, Choice("zombie"), true},
		{"text on choice attribute", status, Text("dead"), true},
		{"text on text attribute", bio, Text("born in the north"), false},
		{"number on text attribute", bio, Number(1), true},
		{"bool on boolean attribute", flag, Bool(true), false},
		{"bool on number attribute", age, Bool(true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.attr.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAttributeValidateWrapsTypeMismatch(t *testing.T) {
	age := Attribute{ID: "a", Type: TypeNumber}
	err := age.Validate(Text("old"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValueType)
}

func TestAttributeCoerce(t *testing.T) {
	status := Attribute{ID: "s", Type: TypeChoice, Choices: []string{"alive"}}
	bio := Attribute{ID: "b", Type: TypeText}

	assert.Equal(t, Choice("alive"), status.Coerce(Text("alive")))
	assert.Equal(t, Text("alive"), bio.Coerce(Text("alive")))
	assert.Equal(t, Null{}, bio.Coerce(nil))
	assert.Equal(t, Number(3), status.Coerce(Number(3)), "coerce never converts across categories")
}

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, SeverityLow, SeverityMedium)
	assert.Less(t, SeverityMedium, SeverityHigh)
	assert.Less(t, SeverityHigh, SeverityCritical)
	assert.False(t, Severity(0).Valid(), "zero value is unset")
}

func TestSeverityText(t *testing.T) {
	for _, sev := range Severities {
		text, err := sev.MarshalText()
		require.NoError(t, err)

		var got Severity
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, sev, got)
	}

	got, err := ParseSeverity(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, got)

	_, err = ParseSeverity("urgent")
	assert.Error(t, err)

	_, err = Severity(0).MarshalText()
	assert.Error(t, err)
}

func TestEntityInitialValues(t *testing.T) {
	e := Entity{
		ID: "char-1",
		Attributes: []Attribute{
			{ID: "age", Value: Number(20)},
			{ID: "title"}, // unset value
		},
	}

	values := e.InitialValues()
	assert.Equal(t, map[string]Value{"age": Number(20), "title": Null{}}, values)
}

func TestDefaultRuleSet(t *testing.T) {
	rs := DefaultRuleSet()
	assert.Equal(t, []string{"dead", "died"}, rs.TerminalValues)
	require.Len(t, rs.Monotonic, 1)
	assert.Equal(t, int64(31536000000), rs.Monotonic[0].WindowMillis)
	assert.Len(t, DefaultRuleIDs, 5)
}
