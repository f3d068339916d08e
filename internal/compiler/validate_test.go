package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/ir"
)

// =============================================================================
// RuleSet Validation Tests
// =============================================================================

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateDefaultRuleSet(t *testing.T) {
	rs := ir.DefaultRuleSet()

	assert.Empty(t, Validate(&rs), "default ruleset should have no errors")
	assert.Empty(t, Validate(rs), "value form should validate the same way")
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a ruleset")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedType, errs[0].Code)
	assert.Contains(t, errs[0].Message, "string")
}

func TestValidateRuleSet(t *testing.T) {
	off := false

	tests := []struct {
		name   string
		mutate func(rs *ir.RuleSet)
		code   string
		field  string
	}{
		{
			name:   "blank status attribute",
			mutate: func(rs *ir.RuleSet) { rs.StatusAttributes = []string{"status", "  "} },
			code:   ErrBlankName,
			field:  "status_attributes[1]",
		},
		{
			name:   "no terminal values",
			mutate: func(rs *ir.RuleSet) { rs.TerminalValues = nil },
			code:   ErrNoTerminalValues,
			field:  "terminal_values",
		},
		{
			name: "negative max decrease",
			mutate: func(rs *ir.RuleSet) {
				rs.Monotonic = []ir.MonotonicSpec{{Attribute: "age", MaxDecrease: -1, WindowMillis: 10}}
			},
			code:  ErrMonotonicBounds,
			field: "monotonic[0].max_decrease",
		},
		{
			name: "zero window",
			mutate: func(rs *ir.RuleSet) {
				rs.Monotonic = []ir.MonotonicSpec{{Attribute: "age", MaxDecrease: 1}}
			},
			code:  ErrMonotonicBounds,
			field: "monotonic[0].window_ms",
		},
		{
			name: "duplicate monotonic attribute",
			mutate: func(rs *ir.RuleSet) {
				rs.Monotonic = append(rs.Monotonic, ir.MonotonicSpec{Attribute: "AGE", MaxDecrease: 2, WindowMillis: 5})
			},
			code:  ErrDuplicateSpec,
			field: "monotonic[1].attribute",
		},
		{
			name: "transition without targets",
			mutate: func(rs *ir.RuleSet) {
				rs.Transitions = []ir.TransitionSpec{{Attribute: "status", From: "dead"}}
			},
			code:  ErrEmptyTransition,
			field: "transitions[0]",
		},
		{
			name: "self dependency",
			mutate: func(rs *ir.RuleSet) {
				rs.Dependencies = []ir.DependencySpec{{Attribute: "level", Requires: "Level", Allowed: []string{"x"}}}
			},
			code:  ErrSelfDependency,
			field: "dependencies[0].requires",
		},
		{
			name: "dependency allows nothing",
			mutate: func(rs *ir.RuleSet) {
				rs.Dependencies = []ir.DependencySpec{{Attribute: "level", Requires: "status"}}
			},
			code:  ErrEmptyAllowed,
			field: "dependencies[0].allowed",
		},
		{
			name: "unknown rule override",
			mutate: func(rs *ir.RuleSet) {
				rs.Overrides = map[string]ir.RuleOverride{"no_such_rule": {Enabled: &off}}
			},
			code:  ErrUnknownRuleOverride,
			field: "rules.no_such_rule",
		},
		{
			name: "out of range severity",
			mutate: func(rs *ir.RuleSet) {
				rs.Overrides = map[string]ir.RuleOverride{ir.RuleTemporalOrder: {Severity: ir.Severity(9)}}
			},
			code:  ErrInvalidSeverity,
			field: "rules.temporal_order.severity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := ir.DefaultRuleSet()
			tt.mutate(&rs)

			errs := Validate(&rs)
			require.Len(t, errs, 1, "got %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	rs := ir.RuleSet{
		StatusAttributes: []string{""},
		Monotonic:        []ir.MonotonicSpec{{Attribute: "", MaxDecrease: -1}},
		Dependencies:     []ir.DependencySpec{{Attribute: "a", Requires: "a"}},
	}

	errs := Validate(&rs)
	assert.Equal(t, []string{
		ErrBlankName,        // status_attributes[0]
		ErrNoTerminalValues, // terminal_values
		ErrBlankName,        // monotonic[0].attribute
		ErrMonotonicBounds,  // max_decrease
		ErrMonotonicBounds,  // window_ms
		ErrSelfDependency,
		ErrEmptyAllowed,
	}, codes(errs))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "monotonic[0]", Message: "bad", Code: ErrMonotonicBounds}
	assert.Equal(t, "[E202] monotonic[0]: bad", e.Error())

	e.Line = 4
	assert.Equal(t, "[E202] line 4: monotonic[0]: bad", e.Error())
}
