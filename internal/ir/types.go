package ir

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// AttributeType is the closed set of attribute categories.
type AttributeType string

const (
	TypeText    AttributeType = "text"
	TypeNumber  AttributeType = "number"
	TypeChoice  AttributeType = "choice"
	TypeBoolean AttributeType = "boolean"
)

// ValidAttributeTypes defines allowed attribute types.
var ValidAttributeTypes = map[AttributeType]bool{
	TypeText:    true,
	TypeNumber:  true,
	TypeChoice:  true,
	TypeBoolean: true,
}

// Entity is a tracked domain object. Owned by the caller; the core never
// mutates it.
type Entity struct {
	ID         string      `json:"id"`
	CreatedAt  int64       `json:"created_at"` // epoch millis
	Attributes []Attribute `json:"attributes"`
}

// Attribute returns the attribute with the given id.
func (e Entity) Attribute(id string) (Attribute, bool) {
	for _, a := range e.Attributes {
		if a.ID == id {
			return a, true
		}
	}
	return Attribute{}, false
}

// AttributeByName returns the first attribute whose name matches exactly.
func (e Entity) AttributeByName(name string) (Attribute, bool) {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// InitialValues returns the attribute id → value map the entity starts from.
func (e Entity) InitialValues() map[string]Value {
	values := make(map[string]Value, len(e.Attributes))
	for _, a := range e.Attributes {
		v := a.Value
		if v == nil {
			v = Null{}
		}
		values[a.ID] = v
	}
	return values
}

// Attribute is a typed, named slot on an entity.
type Attribute struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Type      AttributeType `json:"type"`
	Value     Value         `json:"value"`
	Choices   []string      `json:"choices,omitempty"` // TypeChoice only
	CreatedAt int64         `json:"created_at,omitempty"`
	UpdatedAt int64         `json:"updated_at,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler for Attribute.
func (a *Attribute) UnmarshalJSON(data []byte) error {
	type alias Attribute
	var raw struct {
		alias
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Attribute(raw.alias)
	a.Value = Null{}
	if len(raw.Value) > 0 {
		v, err := UnmarshalValue(raw.Value)
		if err != nil {
			return fmt.Errorf("attribute %q value: %w", a.ID, err)
		}
		a.Value = a.Coerce(v)
	}
	return nil
}

// Event is an immutable record of a single attribute mutation.
type Event struct {
	ID          string `json:"id"`
	Timestamp   int64  `json:"timestamp"` // epoch millis, ordering key
	EntityID    string `json:"entity_id"`
	AttributeID string `json:"attribute_id"`
	NewValue    Value  `json:"new_value"`
	OldValue    Value  `json:"old_value,omitempty"` // nil when absent
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// UnmarshalJSON implements json.Unmarshaler for Event.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	var raw struct {
		alias
		NewValue json.RawMessage `json:"new_value"`
		OldValue json.RawMessage `json:"old_value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event(raw.alias)
	e.NewValue = Null{}
	e.OldValue = nil
	if len(raw.NewValue) > 0 {
		v, err := UnmarshalValue(raw.NewValue)
		if err != nil {
			return fmt.Errorf("event %q new_value: %w", e.ID, err)
		}
		e.NewValue = v
	}
	if len(raw.OldValue) > 0 {
		v, err := UnmarshalValue(raw.OldValue)
		if err != nil {
			return fmt.Errorf("event %q old_value: %w", e.ID, err)
		}
		e.OldValue = v
	}
	return nil
}

// Snapshot is the reconstructed attribute state of one entity at one
// point in time. Derived; never persisted by the core.
type Snapshot struct {
	EntityID  string           `json:"entity_id"`
	Timestamp int64            `json:"timestamp"`
	Values    map[string]Value `json:"attribute_values"`
}

// Clone returns a snapshot that shares no map with s.
func (s Snapshot) Clone() Snapshot {
	s.Values = maps.Clone(s.Values)
	if s.Values == nil {
		s.Values = map[string]Value{}
	}
	return s
}

// SortedAttributeIDs returns the snapshot's attribute ids in ascending order.
func (s Snapshot) SortedAttributeIDs() []string {
	return slices.Sorted(maps.Keys(s.Values))
}

// ConflictKind categorizes a detected inconsistency.
type ConflictKind string

const (
	KindResurrection        ConflictKind = "resurrection"
	KindMonotonicDecrease   ConflictKind = "monotonic_decrease"
	KindInvalidTransition   ConflictKind = "invalid_transition"
	KindTemporalOrder       ConflictKind = "temporal_order"
	KindDependencyViolation ConflictKind = "dependency_violation"
)

// Conflict is a single inconsistency reported by a rule.
type Conflict struct {
	ID          string       `json:"id"` // Content-addressed hash
	RuleID      string       `json:"rule_id"`
	Kind        ConflictKind `json:"kind"`
	Severity    Severity     `json:"severity"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	EntityID    string       `json:"entity_id"`
	AttributeID string       `json:"attribute_id,omitempty"`
	Events      []Event      `json:"events"`
	Suggestions []string     `json:"suggestions"`
	Timestamp   int64        `json:"timestamp"`
}

// DedupKey identifies conflicts that describe the same inconsistency.
type DedupKey struct {
	Kind        ConflictKind
	EntityID    string
	AttributeID string
	Timestamp   int64
}

// Key returns the conflict's dedup key.
func (c Conflict) Key() DedupKey {
	return DedupKey{
		Kind:        c.Kind,
		EntityID:    c.EntityID,
		AttributeID: c.AttributeID,
		Timestamp:   c.Timestamp,
	}
}

// EventIDs returns the ids of the events a conflict references.
func (c Conflict) EventIDs() []string {
	ids := make([]string, len(c.Events))
	for i, e := range c.Events {
		ids[i] = e.ID
	}
	return ids
}
