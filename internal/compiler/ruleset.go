package compiler

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/chronicle/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// CompileRuleSet parses a CUE value into a RuleSet.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value should be the ruleset struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`ruleset: { terminal_values: ["dead"] }`)
//	rs, err := CompileRuleSet(v.LookupPath(cue.ParsePath("ruleset")))
//
// The value is first unified with the embedded #RuleSet schema, so unknown
// fields and mistyped values are reported with their source position.
// Fields the document leaves out keep ir.DefaultRuleSet's values.
func CompileRuleSet(v cue.Value) (*ir.RuleSet, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: "ruleset", Message: "ruleset is required"}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}
	v = schema.LookupPath(cue.ParsePath("#RuleSet")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	rs := ir.DefaultRuleSet()
	var err error

	if f := v.LookupPath(cue.ParsePath("status_attributes")); f.Exists() {
		if rs.StatusAttributes, err = stringList(f); err != nil {
			return nil, err
		}
	}
	if f := v.LookupPath(cue.ParsePath("terminal_values")); f.Exists() {
		if rs.TerminalValues, err = stringList(f); err != nil {
			return nil, err
		}
	}
	if f := v.LookupPath(cue.ParsePath("monotonic")); f.Exists() {
		if rs.Monotonic, err = parseMonotonic(f); err != nil {
			return nil, err
		}
	}
	if f := v.LookupPath(cue.ParsePath("transitions")); f.Exists() {
		if rs.Transitions, err = parseTransitions(f); err != nil {
			return nil, err
		}
	}
	if f := v.LookupPath(cue.ParsePath("dependencies")); f.Exists() {
		if rs.Dependencies, err = parseDependencies(f); err != nil {
			return nil, err
		}
	}
	if f := v.LookupPath(cue.ParsePath("rules")); f.Exists() {
		if rs.Overrides, err = parseOverrides(f); err != nil {
			return nil, err
		}
	}

	return &rs, nil
}

// CompileRuleSetString compiles CUE source containing a top-level
// `ruleset` field. filename is used only in error positions.
func CompileRuleSetString(src, filename string) (*ir.RuleSet, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileRuleSet(v.LookupPath(cue.ParsePath("ruleset")))
}

// LoadRuleSetFile reads and compiles a ruleset document.
func LoadRuleSetFile(path string) (*ir.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}
	return CompileRuleSetString(string(data), path)
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := []string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// parseMonotonic reads `monotonic: <attribute>: {max_decrease, window_ms}`.
func parseMonotonic(v cue.Value) ([]ir.MonotonicSpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := []ir.MonotonicSpec{}
	for iter.Next() {
		spec := ir.MonotonicSpec{Attribute: iter.Label()}
		fields := iter.Value()

		if spec.MaxDecrease, err = fields.LookupPath(cue.ParsePath("max_decrease")).Float64(); err != nil {
			return nil, formatCUEError(err)
		}
		if spec.WindowMillis, err = fields.LookupPath(cue.ParsePath("window_ms")).Int64(); err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, spec)
	}
	return out, nil
}

// parseTransitions reads `transitions: <attribute>: <from>: [<to>, ...]`.
func parseTransitions(v cue.Value) ([]ir.TransitionSpec, error) {
	attrs, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := []ir.TransitionSpec{}
	for attrs.Next() {
		attr := attrs.Label()
		froms, err := attrs.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for froms.Next() {
			to, err := stringList(froms.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, ir.TransitionSpec{Attribute: attr, From: froms.Label(), To: to})
		}
	}
	return out, nil
}

// parseDependencies reads `dependencies: <attribute>: {requires, allowed}`.
func parseDependencies(v cue.Value) ([]ir.DependencySpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := []ir.DependencySpec{}
	for iter.Next() {
		spec := ir.DependencySpec{Attribute: iter.Label()}
		fields := iter.Value()

		if spec.Requires, err = fields.LookupPath(cue.ParsePath("requires")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if spec.Allowed, err = stringList(fields.LookupPath(cue.ParsePath("allowed"))); err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// parseOverrides reads `rules: <rule id>: {enabled?, severity?}`.
func parseOverrides(v cue.Value) (map[string]ir.RuleOverride, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[string]ir.RuleOverride)
	for iter.Next() {
		var o ir.RuleOverride
		fields := iter.Value()

		if f := fields.LookupPath(cue.ParsePath("enabled")); f.Exists() {
			enabled, err := f.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			o.Enabled = &enabled
		}
		if f := fields.LookupPath(cue.ParsePath("severity")); f.Exists() {
			name, err := f.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if o.Severity, err = ir.ParseSeverity(name); err != nil {
				return nil, &CompileError{Field: "rules." + iter.Label() + ".severity", Message: err.Error(), Pos: f.Pos()}
			}
		}
		out[iter.Label()] = o
	}
	return out, nil
}
