// Package testutil provides deterministic fixtures shared by tests.
package testutil

import (
	"github.com/roach88/chronicle/internal/ir"
)

// Statuses is the choice set used by Character fixtures.
var Statuses = []string{"alive", "injured", "healthy", "dead", "died", "deleted"}

// Character returns an entity with status, age, and level attributes whose
// ids equal their names.
func Character(id string, createdAt int64, status string, age float64) ir.Entity {
	return ir.Entity{
		ID:        id,
		CreatedAt: createdAt,
		Attributes: []ir.Attribute{
			{ID: "status", Name: "status", Type: ir.TypeChoice, Value: ir.Choice(status), Choices: Statuses},
			{ID: "age", Name: "age", Type: ir.TypeNumber, Value: ir.Number(age)},
			{ID: "level", Name: "level", Type: ir.TypeNumber, Value: ir.Null{}},
		},
	}
}

// Event builds an event with CreatedAt equal to its timestamp.
func Event(id string, ts int64, entityID, attributeID string, v ir.Value) ir.Event {
	return ir.Event{
		ID:          id,
		Timestamp:   ts,
		EntityID:    entityID,
		AttributeID: attributeID,
		NewValue:    v,
		CreatedAt:   ts,
	}
}

// SequentialAges returns n events on entityID's age attribute with
// age = startAge+i at t0+i.
func SequentialAges(entityID string, t0 int64, startAge float64, n int) []ir.Event {
	ids := NewSequenceIDGenerator(entityID + "-age")
	events := make([]ir.Event, n)
	for i := range n {
		events[i] = Event(ids.Generate(), t0+int64(i), entityID, "age", ir.Number(startAge+float64(i)))
	}
	return events
}
