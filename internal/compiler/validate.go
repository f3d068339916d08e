package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/chronicle/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// General validation errors (E200)
	ErrUnsupportedType = "E200" // unsupported type for validation

	// Table errors (E201-E209)
	ErrBlankName        = "E201" // blank attribute name or value
	ErrMonotonicBounds  = "E202" // negative max_decrease or non-positive window
	ErrDuplicateSpec    = "E203" // attribute listed twice in one table
	ErrEmptyTransition  = "E204" // transition without from or targets
	ErrSelfDependency   = "E205" // attribute requires itself
	ErrEmptyAllowed     = "E206" // dependency with no allowed values
	ErrNoTerminalValues = "E207" // status attributes without terminal values

	// Override errors (E210-E219)
	ErrUnknownRuleOverride = "E210" // override names no default rule
	ErrInvalidSeverity     = "E211" // override severity out of range
)

// ValidationError represents a ruleset validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled RuleSet for semantic problems the schema
// cannot express. Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch rs := v.(type) {
	case *ir.RuleSet:
		return validateRuleSet(rs)
	case ir.RuleSet:
		return validateRuleSet(&rs)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

func validateRuleSet(rs *ir.RuleSet) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateNames("status_attributes", rs.StatusAttributes)...)
	errs = append(errs, validateNames("terminal_values", rs.TerminalValues)...)

	// E207: a watched status can never terminate
	if len(rs.StatusAttributes) > 0 && len(rs.TerminalValues) == 0 {
		errs = append(errs, ValidationError{
			Field:   "terminal_values",
			Message: "status attributes are listed but no terminal values end them",
			Code:    ErrNoTerminalValues,
		})
	}

	seen := make(map[string]bool)
	for i, m := range rs.Monotonic {
		field := fmt.Sprintf("monotonic[%d]", i)
		errs = append(errs, checkName(field+".attribute", m.Attribute)...)
		errs = append(errs, checkDuplicate(field, m.Attribute, seen)...)

		// E202: bounds
		if m.MaxDecrease < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".max_decrease",
				Message: fmt.Sprintf("max_decrease must be >= 0, got %v", m.MaxDecrease),
				Code:    ErrMonotonicBounds,
			})
		}
		if m.WindowMillis <= 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".window_ms",
				Message: fmt.Sprintf("window_ms must be > 0, got %d", m.WindowMillis),
				Code:    ErrMonotonicBounds,
			})
		}
	}

	for i, tr := range rs.Transitions {
		field := fmt.Sprintf("transitions[%d]", i)
		errs = append(errs, checkName(field+".attribute", tr.Attribute)...)

		// E204: a transition needs both ends
		if strings.TrimSpace(tr.From) == "" || len(tr.To) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("transition on %q needs a from value and at least one target", tr.Attribute),
				Code:    ErrEmptyTransition,
			})
		}
		errs = append(errs, validateNames(field+".to", tr.To)...)
	}

	seen = make(map[string]bool)
	for i, d := range rs.Dependencies {
		field := fmt.Sprintf("dependencies[%d]", i)
		errs = append(errs, checkName(field+".attribute", d.Attribute)...)
		errs = append(errs, checkName(field+".requires", d.Requires)...)
		errs = append(errs, checkDuplicate(field, d.Attribute, seen)...)

		// E205: self dependency
		if d.Attribute != "" && strings.EqualFold(d.Attribute, d.Requires) {
			errs = append(errs, ValidationError{
				Field:   field + ".requires",
				Message: fmt.Sprintf("attribute %q cannot require itself", d.Attribute),
				Code:    ErrSelfDependency,
			})
		}

		// E206: nothing is ever allowed
		if len(d.Allowed) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".allowed",
				Message: fmt.Sprintf("dependency of %q on %q allows no values", d.Attribute, d.Requires),
				Code:    ErrEmptyAllowed,
			})
		}
	}

	for _, id := range ir.SortedKeys(rs.Overrides) {
		o := rs.Overrides[id]

		// E210: unknown rule
		if !slices.Contains(ir.DefaultRuleIDs, id) {
			errs = append(errs, ValidationError{
				Field:   "rules." + id,
				Message: fmt.Sprintf("unknown rule %q, must be one of %s", id, strings.Join(ir.DefaultRuleIDs, ", ")),
				Code:    ErrUnknownRuleOverride,
			})
		}

		// E211: severity out of range (zero means "keep")
		if o.Severity != 0 && !o.Severity.Valid() {
			errs = append(errs, ValidationError{
				Field:   "rules." + id + ".severity",
				Message: fmt.Sprintf("invalid severity %d", int(o.Severity)),
				Code:    ErrInvalidSeverity,
			})
		}
	}

	return errs
}

// validateNames reports blank entries in a list (E201).
func validateNames(field string, names []string) []ValidationError {
	var errs []ValidationError
	for i, n := range names {
		errs = append(errs, checkName(fmt.Sprintf("%s[%d]", field, i), n)...)
	}
	return errs
}

func checkName(field, name string) []ValidationError {
	if strings.TrimSpace(name) != "" {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: "must be non-empty",
		Code:    ErrBlankName,
	}}
}

// checkDuplicate reports an attribute seen earlier in the same table (E203).
func checkDuplicate(field, attr string, seen map[string]bool) []ValidationError {
	key := strings.ToLower(attr)
	if seen[key] {
		return []ValidationError{{
			Field:   field + ".attribute",
			Message: fmt.Sprintf("duplicate entry for attribute %q", attr),
			Code:    ErrDuplicateSpec,
		}}
	}
	seen[key] = true
	return nil
}
