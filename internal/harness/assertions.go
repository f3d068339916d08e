package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/timeline"
)

// AssertionContext carries what assertions query against.
type AssertionContext struct {
	Reconstructor *timeline.Reconstructor
	Entities      []ir.Entity
	Events        []ir.Event
}

func (c *AssertionContext) entity(id string) ir.Entity {
	for _, e := range c.Entities {
		if e.ID == id {
			return e
		}
	}
	return ir.Entity{ID: id}
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Detected conflicts for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nConflicts:\n")
		for i, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s@%d %s\n", i+1, ev.Kind, ev.EntityID, ev.Timestamp, ev.Title)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns one message per
// failure. An empty slice means the scenario passed.
func EvaluateAssertions(result *Result, assertions []Assertion, ctx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, ctx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, ctx *AssertionContext) error {
	switch a.Type {
	case AssertState:
		return assertState(result, a, ctx)
	case AssertExists:
		return assertExists(result, a, ctx)
	case AssertConflictCount:
		return assertConflictCount(result, a)
	case AssertChangeCount:
		return assertChangeCount(result, a, ctx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertState checks a subset of the entity's reconstructed attributes.
// Keys may be attribute ids or names.
func assertState(result *Result, a Assertion, ctx *AssertionContext) error {
	initial := ctx.entity(a.Entity)
	snap := ctx.Reconstructor.StateAt(a.Entity, int64(*a.At), ctx.Events, initial)

	for _, key := range ir.SortedKeys(a.Expect) {
		id := key
		if _, ok := initial.Attribute(key); !ok {
			if attr, ok := initial.AttributeByName(key); ok {
				id = attr.ID
			}
		}

		want, err := ir.ValueFromAny(a.Expect[key])
		if err != nil {
			return fmt.Errorf("expect.%s: %w", key, err)
		}
		got, ok := snap.Values[id]
		if !ok {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("%s.%s = %s at %d", a.Entity, key, want, int64(*a.At)),
				Actual:   "attribute not in snapshot",
				Trace:    result.Trace,
			}
		}
		if !looselyEqual(want, got) {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("%s.%s = %s at %d", a.Entity, key, want, int64(*a.At)),
				Actual:   got.String(),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// looselyEqual compares scenario-written values with reconstructed ones.
// YAML cannot say "choice", so a string matches Text and Choice alike.
func looselyEqual(want, got ir.Value) bool {
	if ws, ok := ir.StringOf(want); ok {
		gs, ok := ir.StringOf(got)
		return ok && ws == gs
	}
	return ir.ValuesEqual(want, got)
}

func assertExists(result *Result, a Assertion, ctx *AssertionContext) error {
	got := ctx.Reconstructor.ExistsAt(a.Entity, int64(*a.At), ctx.Events, ctx.entity(a.Entity))
	if got != *a.Exists {
		return &AssertionError{
			Type:     AssertExists,
			Expected: fmt.Sprintf("exists(%s, %d) = %t", a.Entity, int64(*a.At), *a.Exists),
			Actual:   fmt.Sprintf("%t", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertConflictCount(result *Result, a Assertion) error {
	n := 0
	for _, ev := range result.Trace {
		if a.Kind != "" && ev.Kind != a.Kind {
			continue
		}
		if a.Entity != "" && ev.EntityID != a.Entity {
			continue
		}
		if a.Rule != "" && ev.RuleID != a.Rule {
			continue
		}
		n++
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertConflictCount,
			Expected: fmt.Sprintf("%d conflicts%s", *a.Count, describeFilter(a)),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

func describeFilter(a Assertion) string {
	var parts []string
	if a.Kind != "" {
		parts = append(parts, "kind="+a.Kind)
	}
	if a.Entity != "" {
		parts = append(parts, "entity="+a.Entity)
	}
	if a.Rule != "" {
		parts = append(parts, "rule="+a.Rule)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func assertChangeCount(result *Result, a Assertion, ctx *AssertionContext) error {
	start, end := int64(*a.Start), int64(*a.End)
	got := ctx.Reconstructor.ChangeCount(a.Entity, a.Attribute, start, end, ctx.Events)
	if got != *a.Count {
		return &AssertionError{
			Type:     AssertChangeCount,
			Expected: fmt.Sprintf("%d changes to %s.%s in [%d, %d]", *a.Count, a.Entity, a.Attribute, start, end),
			Actual:   fmt.Sprintf("%d", got),
			Trace:    result.Trace,
		}
	}
	return nil
}
