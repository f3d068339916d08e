package harness

import (
	"github.com/roach88/chronicle/internal/ir"
)

// TraceEvent is the golden-file form of one detected conflict. Content
// hashes are left out so the file stays readable.
type TraceEvent struct {
	RuleID      string   `json:"rule_id"`
	Kind        string   `json:"kind"`
	Severity    string   `json:"severity"`
	Title       string   `json:"title"`
	EntityID    string   `json:"entity_id"`
	AttributeID string   `json:"attribute_id,omitempty"`
	Timestamp   int64    `json:"timestamp"`
	EventIDs    []string `json:"event_ids"`
}

func traceEvent(c ir.Conflict) TraceEvent {
	return TraceEvent{
		RuleID:      c.RuleID,
		Kind:        string(c.Kind),
		Severity:    c.Severity.String(),
		Title:       c.Title,
		EntityID:    c.EntityID,
		AttributeID: c.AttributeID,
		Timestamp:   c.Timestamp,
		EventIDs:    c.EventIDs(),
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion held.
	Pass bool `json:"pass"`

	// Conflicts are the engine's findings, newest first.
	Conflicts []ir.Conflict `json:"conflicts"`

	// Trace is the golden-file view of Conflicts.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// RuleFailures lists rules that errored or panicked during detection.
	RuleFailures []string `json:"rule_failures,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Conflicts: []ir.Conflict{},
		Trace:     []TraceEvent{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddConflicts appends conflicts and their trace events.
func (r *Result) AddConflicts(conflicts []ir.Conflict) {
	for _, c := range conflicts {
		r.Conflicts = append(r.Conflicts, c)
		r.Trace = append(r.Trace, traceEvent(c))
	}
}
