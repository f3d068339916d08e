package consistency

import (
	"fmt"
	"strings"

	"github.com/roach88/chronicle/internal/ir"
)

// DefaultRules builds the built-in rules from rs, all enabled, in this
// order: resurrection, monotonic decrease, invalid transition, temporal
// order, dependency violation.
func DefaultRules(rs ir.RuleSet) []Rule {
	return []Rule{
		{
			ID:          ir.RuleResurrection,
			Name:        "Resurrection",
			Description: "Flags events on an entity after a status attribute took a terminal value.",
			Enabled:     true,
			Severity:    ir.SeverityHigh,
			Check:       resurrectionCheck(rs.StatusAttributes, rs.TerminalValues),
		},
		{
			ID:          ir.RuleMonotonicDecrease,
			Name:        "Monotonic decrease",
			Description: "Flags numeric attributes that drop by more than allowed within a time window.",
			Enabled:     true,
			Severity:    ir.SeverityMedium,
			Check:       monotonicCheck(rs.Monotonic),
		},
		{
			ID:          ir.RuleInvalidTransition,
			Name:        "Invalid transition",
			Description: "Flags consecutive attribute values that the transition table forbids.",
			Enabled:     true,
			Severity:    ir.SeverityMedium,
			Check:       transitionCheck(rs.Transitions),
		},
		{
			ID:          ir.RuleTemporalOrder,
			Name:        "Temporal order",
			Description: "Flags events dated before their entity was created.",
			Enabled:     true,
			Severity:    ir.SeverityLow,
			Check:       temporalOrderCheck(),
		},
		{
			ID:          ir.RuleDependencyViolation,
			Name:        "Attribute dependency",
			Description: "Flags attributes set while a required attribute holds a disallowed value.",
			Enabled:     true,
			Severity:    ir.SeverityMedium,
			Check:       dependencyCheck(rs.Dependencies),
		},
	}
}

// =============================================================================
// Resurrection
// =============================================================================

// resurrectionCheck anchors each conflict on the terminal event, so every
// later event on the entity shares one dedup key and collapses into a
// single conflict naming the first offender.
func resurrectionCheck(statusAttrs, terminalValues []string) CheckFunc {
	statuses := foldSet(statusAttrs)
	terminal := foldSet(terminalValues)

	return func(v View) ([]ir.Conflict, error) {
		var out []ir.Conflict
		for _, ent := range v.Entities {
			events := v.EntityEvents(ent.ID)

			death := -1
			for i, e := range events {
				if !statuses[fold(v.AttributeName(ent.ID, e.AttributeID))] {
					continue
				}
				if s, ok := foldedString(e.NewValue); ok && terminal[s] {
					death = i
					break
				}
			}
			if death < 0 {
				continue
			}

			terminalEvent := events[death]
			for _, e := range events[death+1:] {
				if e.Timestamp <= terminalEvent.Timestamp {
					continue
				}
				out = append(out, ir.Conflict{
					Kind:  ir.KindResurrection,
					Title: "Resurrection: activity after termination",
					Description: fmt.Sprintf("%s became %q at %d but %s changed at %d",
						ent.ID, terminalEvent.NewValue.String(), terminalEvent.Timestamp,
						v.AttributeName(ent.ID, e.AttributeID), e.Timestamp),
					EntityID:    ent.ID,
					AttributeID: terminalEvent.AttributeID,
					Events:      []ir.Event{terminalEvent, e},
					Suggestions: []string{
						fmt.Sprintf("Move the event before %d", terminalEvent.Timestamp),
						"Remove the event",
						"Check whether the terminal status was recorded by mistake",
					},
					Timestamp: terminalEvent.Timestamp,
				})
			}
		}
		return out, nil
	}
}

// =============================================================================
// Monotonic decrease
// =============================================================================

func monotonicCheck(specs []ir.MonotonicSpec) CheckFunc {
	byAttr := make(map[string]ir.MonotonicSpec, len(specs))
	for _, s := range specs {
		byAttr[fold(s.Attribute)] = s
	}

	return func(v View) ([]ir.Conflict, error) {
		var out []ir.Conflict
		for _, ent := range v.Entities {
			// Previous numeric event per attribute id.
			prev := make(map[string]ir.Event)

			for _, e := range v.EntityEvents(ent.ID) {
				name := v.AttributeName(ent.ID, e.AttributeID)
				spec, ok := byAttr[fold(name)]
				if !ok {
					continue
				}

				cur, ok := ir.NumberOf(e.NewValue)
				if !ok {
					delete(prev, e.AttributeID)
					continue
				}

				if p, ok := prev[e.AttributeID]; ok {
					before, _ := ir.NumberOf(p.NewValue)
					elapsed := e.Timestamp - p.Timestamp
					if before-cur > spec.MaxDecrease && elapsed < spec.WindowMillis {
						out = append(out, ir.Conflict{
							Kind:  ir.KindMonotonicDecrease,
							Title: fmt.Sprintf("Implausible decrease in %s", name),
							Description: fmt.Sprintf("%s of %s dropped from %s to %s within %d ms",
								name, ent.ID, p.NewValue.String(), e.NewValue.String(), elapsed),
							EntityID:    ent.ID,
							AttributeID: e.AttributeID,
							Events:      []ir.Event{p, e},
							Suggestions: []string{
								fmt.Sprintf("Check the value of %s at %d", name, e.Timestamp),
								fmt.Sprintf("Spread the change over at least %d ms", spec.WindowMillis),
							},
							Timestamp: e.Timestamp,
						})
					}
				}
				prev[e.AttributeID] = e
			}
		}
		return out, nil
	}
}

// =============================================================================
// Invalid transition
// =============================================================================

func transitionCheck(specs []ir.TransitionSpec) CheckFunc {
	// attribute -> from -> forbidden targets, all folded.
	table := make(map[string]map[string]map[string]bool)
	for _, s := range specs {
		attr := fold(s.Attribute)
		if table[attr] == nil {
			table[attr] = make(map[string]map[string]bool)
		}
		from := fold(s.From)
		if table[attr][from] == nil {
			table[attr][from] = make(map[string]bool)
		}
		for _, to := range s.To {
			table[attr][from][fold(to)] = true
		}
	}

	return func(v View) ([]ir.Conflict, error) {
		var out []ir.Conflict
		for _, ent := range v.Entities {
			// Current folded value per attribute id, seeded from initial values.
			current := make(map[string]string)
			last := make(map[string]ir.Event)
			for _, a := range ent.Attributes {
				if s, ok := foldedString(a.Value); ok {
					current[a.ID] = s
				}
			}

			for _, e := range v.EntityEvents(ent.ID) {
				name := v.AttributeName(ent.ID, e.AttributeID)
				rules, ok := table[fold(name)]
				if !ok {
					continue
				}

				next, ok := foldedString(e.NewValue)
				if !ok {
					delete(current, e.AttributeID)
					last[e.AttributeID] = e
					continue
				}

				from, hasFrom := current[e.AttributeID]
				if hasFrom && rules[from][next] {
					events := []ir.Event{e}
					if p, ok := last[e.AttributeID]; ok {
						events = []ir.Event{p, e}
					}
					out = append(out, ir.Conflict{
						Kind:  ir.KindInvalidTransition,
						Title: fmt.Sprintf("Invalid %s transition: %s to %s", name, from, next),
						Description: fmt.Sprintf("%s of %s changed from %q directly to %q at %d",
							name, ent.ID, from, next, e.Timestamp),
						EntityID:    ent.ID,
						AttributeID: e.AttributeID,
						Events:      events,
						Suggestions: []string{
							fmt.Sprintf("Add an intermediate %s value between %q and %q", name, from, next),
							"Remove the event",
						},
						Timestamp: e.Timestamp,
					})
				}
				current[e.AttributeID] = next
				last[e.AttributeID] = e
			}
		}
		return out, nil
	}
}

// =============================================================================
// Temporal order
// =============================================================================

func temporalOrderCheck() CheckFunc {
	return func(v View) ([]ir.Conflict, error) {
		var out []ir.Conflict
		for _, ent := range v.Entities {
			for _, e := range v.EntityEvents(ent.ID) {
				if e.Timestamp >= ent.CreatedAt {
					break // events are sorted
				}
				out = append(out, ir.Conflict{
					Kind:  ir.KindTemporalOrder,
					Title: "Event precedes entity creation",
					Description: fmt.Sprintf("%s of %s changed at %d, before the entity was created at %d",
						v.AttributeName(ent.ID, e.AttributeID), ent.ID, e.Timestamp, ent.CreatedAt),
					EntityID:    ent.ID,
					AttributeID: e.AttributeID,
					Events:      []ir.Event{e},
					Suggestions: []string{
						fmt.Sprintf("Move the event to %d or later", ent.CreatedAt),
						"Move the entity's creation earlier",
					},
					Timestamp: e.Timestamp,
				})
			}
		}
		return out, nil
	}
}

// =============================================================================
// Attribute dependency
// =============================================================================

// dependencyCheck walks each entity's events keeping the latest value per
// attribute name. Setting a dependent attribute to a non-null value while
// its required attribute holds a value outside Allowed is a violation.
// Entities without the required attribute are not checked.
func dependencyCheck(specs []ir.DependencySpec) CheckFunc {
	type dep struct {
		requires string
		allowed  map[string]bool
		spec     ir.DependencySpec
	}
	byAttr := make(map[string][]dep)
	for _, s := range specs {
		attr := fold(s.Attribute)
		byAttr[attr] = append(byAttr[attr], dep{
			requires: fold(s.Requires),
			allowed:  foldSet(s.Allowed),
			spec:     s,
		})
	}

	return func(v View) ([]ir.Conflict, error) {
		var out []ir.Conflict
		for _, ent := range v.Entities {
			latest := make(map[string]ir.Value)
			for _, a := range ent.Attributes {
				latest[fold(a.Name)] = valueOrNull(a.Value)
			}

			for _, e := range v.EntityEvents(ent.ID) {
				name := fold(v.AttributeName(ent.ID, e.AttributeID))

				if _, isNull := valueOrNull(e.NewValue).(ir.Null); !isNull {
					for _, d := range byAttr[name] {
						held, tracked := latest[d.requires]
						if !tracked {
							continue
						}
						s, _ := foldedString(held)
						if d.allowed[s] {
							continue
						}
						out = append(out, ir.Conflict{
							Kind: ir.KindDependencyViolation,
							Title: fmt.Sprintf("%s set while %s is %s",
								d.spec.Attribute, d.spec.Requires, held.String()),
							Description: fmt.Sprintf("%s of %s was set at %d but requires %s to be one of %s",
								d.spec.Attribute, ent.ID, e.Timestamp, d.spec.Requires,
								strings.Join(d.spec.Allowed, ", ")),
							EntityID:    ent.ID,
							AttributeID: e.AttributeID,
							Events:      []ir.Event{e},
							Suggestions: []string{
								fmt.Sprintf("Set %s to one of %s first", d.spec.Requires, strings.Join(d.spec.Allowed, ", ")),
								"Remove the event",
							},
							Timestamp: e.Timestamp,
						})
					}
				}
				latest[name] = valueOrNull(e.NewValue)
			}
		}
		return out, nil
	}
}

func valueOrNull(v ir.Value) ir.Value {
	if v == nil {
		return ir.Null{}
	}
	return v
}
