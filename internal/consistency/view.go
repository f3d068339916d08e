package consistency

import (
	"slices"

	"golang.org/x/text/cases"

	"github.com/roach88/chronicle/internal/ir"
)

// View is the read-only input every rule checks: the event log sorted
// ascending by timestamp (stable) and the entity set. Rules must not modify
// the slices a View returns.
type View struct {
	// Events holds every event, ascending by timestamp. Equal timestamps
	// keep their order from the supplied collection.
	Events []ir.Event

	// Entities holds the entities in the order supplied.
	Entities []ir.Entity

	byEntity map[string][]ir.Event
	entities map[string]ir.Entity
}

// NewView sorts a copy of events and groups it by entity.
func NewView(events []ir.Event, entities []ir.Entity) View {
	sorted := slices.Clone(events)
	sortEvents(sorted)

	v := View{
		Events:   sorted,
		Entities: entities,
		byEntity: make(map[string][]ir.Event),
		entities: make(map[string]ir.Entity, len(entities)),
	}
	for _, e := range sorted {
		v.byEntity[e.EntityID] = append(v.byEntity[e.EntityID], e)
	}
	for _, ent := range entities {
		if _, ok := v.entities[ent.ID]; !ok {
			v.entities[ent.ID] = ent
		}
	}
	return v
}

// EntityEvents returns entityID's events, ascending by timestamp.
func (v View) EntityEvents(entityID string) []ir.Event {
	return v.byEntity[entityID]
}

// Entity returns the entity with the given id.
func (v View) Entity(id string) (ir.Entity, bool) {
	e, ok := v.entities[id]
	return e, ok
}

// AttributeName resolves an event's attribute id to the attribute's name on
// its entity. Unknown attributes resolve to the id itself.
func (v View) AttributeName(entityID, attributeID string) string {
	if ent, ok := v.entities[entityID]; ok {
		if a, ok := ent.Attribute(attributeID); ok && a.Name != "" {
			return a.Name
		}
	}
	return attributeID
}

func sortEvents(events []ir.Event) {
	slices.SortStableFunc(events, func(a, b ir.Event) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
}

// fold returns the case-folded form used to compare names and values.
// A Caser is stateful, so each call builds its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// foldSet returns the case-folded members of values.
func foldSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[fold(v)] = true
	}
	return set
}

// foldedString returns the folded string content of Text and Choice values.
func foldedString(v ir.Value) (string, bool) {
	s, ok := ir.StringOf(v)
	if !ok {
		return "", false
	}
	return fold(s), true
}
