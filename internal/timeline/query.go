package timeline

import (
	"slices"

	"github.com/roach88/chronicle/internal/ir"
)

// LastEventFor returns the most recent event on attributeID of entityID
// with timestamp <= ts. Among equal timestamps the later insertion wins.
func (r *Reconstructor) LastEventFor(entityID, attributeID string, ts int64, events []ir.Event) (ir.Event, bool) {
	idx := r.index(entityID, events)
	for i := idx.cutoff(ts) - 1; i >= 0; i-- {
		if idx.events[i].AttributeID == attributeID {
			return idx.events[i], true
		}
	}
	return ir.Event{}, false
}

// ExistsAt reports whether entityID exists at ts. It does not before
// initial.CreatedAt, nor once any event at or before ts has set a terminal
// value. Unless WithTerminalAttributes was given, the event's attribute is
// not considered.
func (r *Reconstructor) ExistsAt(entityID string, ts int64, events []ir.Event, initial ir.Entity) bool {
	if ts < initial.CreatedAt {
		return false
	}

	idx := r.index(entityID, events)
	for _, e := range idx.events[:idx.cutoff(ts)] {
		if r.isTerminal(e, initial) {
			return false
		}
	}
	return true
}

func (r *Reconstructor) isTerminal(e ir.Event, initial ir.Entity) bool {
	s, ok := ir.StringOf(e.NewValue)
	if !ok || !slices.Contains(r.terminalValues, s) {
		return false
	}
	if len(r.terminalAttrs) == 0 {
		return true
	}
	if slices.Contains(r.terminalAttrs, e.AttributeID) {
		return true
	}
	if a, ok := initial.Attribute(e.AttributeID); ok {
		return slices.Contains(r.terminalAttrs, a.Name)
	}
	return false
}

// ChangeCount returns the number of events on attributeID of entityID with
// start <= timestamp <= end.
func (r *Reconstructor) ChangeCount(entityID, attributeID string, start, end int64, events []ir.Event) int {
	if end < start {
		return 0
	}
	idx := r.index(entityID, events)

	n := 0
	for _, e := range idx.events[idx.lowerBound(start):idx.cutoff(end)] {
		if e.AttributeID == attributeID {
			n++
		}
	}
	return n
}
