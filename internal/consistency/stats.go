package consistency

import (
	"slices"

	"github.com/roach88/chronicle/internal/ir"
)

// Statistics aggregates a conflict list.
type Statistics struct {
	Total      int                     `json:"total"`
	BySeverity map[ir.Severity]int     `json:"by_severity"`
	ByKind     map[ir.ConflictKind]int `json:"by_kind"`
}

// Statistics counts conflicts by severity and kind. Every defined severity
// appears in BySeverity, with zero counts included.
func (e *Engine) Statistics(conflicts []ir.Conflict) Statistics {
	return Summarize(conflicts)
}

// Summarize is Statistics without an engine.
func Summarize(conflicts []ir.Conflict) Statistics {
	s := Statistics{
		Total:      len(conflicts),
		BySeverity: make(map[ir.Severity]int, len(ir.Severities)),
		ByKind:     make(map[ir.ConflictKind]int),
	}
	for _, sev := range ir.Severities {
		s.BySeverity[sev] = 0
	}
	for _, c := range conflicts {
		if c.Severity.Valid() {
			s.BySeverity[c.Severity]++
		}
		s.ByKind[c.Kind]++
	}
	return s
}

// MaxSeverity returns the highest severity among conflicts, or 0 when
// there are none.
func MaxSeverity(conflicts []ir.Conflict) ir.Severity {
	var highest ir.Severity
	for _, c := range conflicts {
		highest = max(highest, c.Severity)
	}
	return highest
}

// RecordHistory appends conflicts to the engine's history. Detect never
// does this on its own.
func (e *Engine) RecordHistory(conflicts ...ir.Conflict) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, conflicts...)
}

// History returns the recorded conflicts in recording order.
func (e *Engine) History() []ir.Conflict {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := slices.Clone(e.history)
	if out == nil {
		out = []ir.Conflict{}
	}
	return out
}

// ClearHistory discards the recorded conflicts.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}
