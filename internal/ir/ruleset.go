package ir

// YearMillis is one simulated year: 365 days of epoch milliseconds.
const YearMillis int64 = 365 * 24 * 60 * 60 * 1000

// Default rule IDs. Each default rule reports conflicts of the kind with
// the same name.
const (
	RuleResurrection        = string(KindResurrection)
	RuleMonotonicDecrease   = string(KindMonotonicDecrease)
	RuleInvalidTransition   = string(KindInvalidTransition)
	RuleTemporalOrder       = string(KindTemporalOrder)
	RuleDependencyViolation = string(KindDependencyViolation)
)

// DefaultRuleIDs lists the default rule IDs in registration order.
var DefaultRuleIDs = []string{
	RuleResurrection,
	RuleMonotonicDecrease,
	RuleInvalidTransition,
	RuleTemporalOrder,
	RuleDependencyViolation,
}

// RuleSet holds the data tables behind the default consistency rules.
// Attribute names and values are matched case-insensitively.
type RuleSet struct {
	// StatusAttributes names the status-like attributes the resurrection
	// rule watches.
	StatusAttributes []string `json:"status_attributes"`

	// TerminalValues end an entity's lifecycle for the resurrection rule.
	TerminalValues []string `json:"terminal_values"`

	Monotonic    []MonotonicSpec  `json:"monotonic"`
	Transitions  []TransitionSpec `json:"transitions"`
	Dependencies []DependencySpec `json:"dependencies"`

	// Overrides adjusts registered rules by ID.
	Overrides map[string]RuleOverride `json:"overrides,omitempty"`
}

// MonotonicSpec flags decreases of a numeric attribute larger than
// MaxDecrease that happen within WindowMillis of the prior value.
type MonotonicSpec struct {
	Attribute    string  `json:"attribute"`
	MaxDecrease  float64 `json:"max_decrease"`
	WindowMillis int64   `json:"window_ms"`
}

// TransitionSpec disallows moving Attribute from From directly to any of To.
type TransitionSpec struct {
	Attribute string   `json:"attribute"`
	From      string   `json:"from"`
	To        []string `json:"to"`
}

// DependencySpec requires Requires to hold one of Allowed whenever
// Attribute is set.
type DependencySpec struct {
	Attribute string   `json:"attribute"`
	Requires  string   `json:"requires"`
	Allowed   []string `json:"allowed"`
}

// RuleOverride changes a rule's registration. Nil fields keep the default.
type RuleOverride struct {
	Enabled  *bool    `json:"enabled,omitempty"`
	Severity Severity `json:"severity,omitempty"`
}

// DefaultRuleSet returns the built-in tables.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		StatusAttributes: []string{"status"},
		TerminalValues:   []string{"dead", "died"},
		Monotonic: []MonotonicSpec{
			{Attribute: "age", MaxDecrease: 1, WindowMillis: YearMillis},
		},
		Transitions: []TransitionSpec{
			{Attribute: "status", From: "dead", To: []string{"healthy", "injured"}},
		},
		Dependencies: []DependencySpec{
			{Attribute: "level", Requires: "status", Allowed: []string{"alive"}},
		},
	}
}
