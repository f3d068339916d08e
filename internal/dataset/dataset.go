// Package dataset loads entities and their event logs from YAML or JSON
// documents.
package dataset

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chronicle/internal/ir"
)

// Dataset is a decoded, validated document.
type Dataset struct {
	Entities []ir.Entity
	Events   []ir.Event // document order
}

// Entity returns the entity with the given id.
func (d *Dataset) Entity(id string) (ir.Entity, bool) {
	for _, e := range d.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return ir.Entity{}, false
}

// EntityIDs returns entity ids in document order.
func (d *Dataset) EntityIDs() []string {
	ids := make([]string, len(d.Entities))
	for i, e := range d.Entities {
		ids[i] = e.ID
	}
	return ids
}

// document is the on-disk shape. JSON documents parse through the same
// YAML decoder.
type document struct {
	Entities []entityDoc `yaml:"entities"`
	Events   []eventDoc  `yaml:"events"`
}

type entityDoc struct {
	ID         string         `yaml:"id"`
	CreatedAt  Millis         `yaml:"created_at"`
	Attributes []attributeDoc `yaml:"attributes"`
}

type attributeDoc struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Value     any      `yaml:"value"`
	Choices   []string `yaml:"choices"`
	CreatedAt Millis   `yaml:"created_at"`
	UpdatedAt Millis   `yaml:"updated_at"`
}

type eventDoc struct {
	ID          string    `yaml:"id"`
	Timestamp   Millis    `yaml:"timestamp"`
	EntityID    string    `yaml:"entity_id"`
	AttributeID string    `yaml:"attribute_id"`
	NewValue    any       `yaml:"new_value"`
	OldValue    yaml.Node `yaml:"old_value"` // zero Kind when absent
	Description string    `yaml:"description"`
	CreatedAt   Millis    `yaml:"created_at"`
}

// Load reads and parses a dataset file.
func Load(path string, ids IDGenerator) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	ds, err := Parse(data, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Parse decodes a YAML or JSON document.
//
// Attribute ids default to their names and vice versa. Events without an
// id get one from ids; events without created_at inherit their timestamp.
// Values are coerced to the attribute's type and validated when the event
// names a known entity attribute. All problems are reported together.
func Parse(data []byte, ids IDGenerator) (*Dataset, error) {
	if ids == nil {
		ids = UUIDv7Generator{}
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}

	var errs []error
	ds := &Dataset{
		Entities: make([]ir.Entity, 0, len(doc.Entities)),
		Events:   make([]ir.Event, 0, len(doc.Events)),
	}

	seen := make(map[string]bool)
	for i, ed := range doc.Entities {
		ent, err := ed.toEntity()
		if err != nil {
			errs = append(errs, fmt.Errorf("entities[%d]: %w", i, err))
			continue
		}
		if seen[ent.ID] {
			errs = append(errs, fmt.Errorf("entities[%d]: duplicate entity id %q", i, ent.ID))
			continue
		}
		seen[ent.ID] = true
		ds.Entities = append(ds.Entities, ent)
	}

	eventIDs := make(map[string]bool)
	for i, evd := range doc.Events {
		ev, err := evd.toEvent(ds, ids)
		if err != nil {
			errs = append(errs, fmt.Errorf("events[%d]: %w", i, err))
			continue
		}
		if eventIDs[ev.ID] {
			errs = append(errs, fmt.Errorf("events[%d]: duplicate event id %q", i, ev.ID))
			continue
		}
		eventIDs[ev.ID] = true
		ds.Events = append(ds.Events, ev)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return ds, nil
}

func (ed entityDoc) toEntity() (ir.Entity, error) {
	if ed.ID == "" {
		return ir.Entity{}, errors.New("entity id is required")
	}

	ent := ir.Entity{
		ID:         ed.ID,
		CreatedAt:  int64(ed.CreatedAt),
		Attributes: make([]ir.Attribute, 0, len(ed.Attributes)),
	}
	for j, ad := range ed.Attributes {
		attr, err := ad.toAttribute()
		if err != nil {
			return ir.Entity{}, fmt.Errorf("entity %q attributes[%d]: %w", ed.ID, j, err)
		}
		if _, dup := ent.Attribute(attr.ID); dup {
			return ir.Entity{}, fmt.Errorf("entity %q: duplicate attribute id %q", ed.ID, attr.ID)
		}
		ent.Attributes = append(ent.Attributes, attr)
	}
	return ent, nil
}

func (ad attributeDoc) toAttribute() (ir.Attribute, error) {
	attr := ir.Attribute{
		ID:        ad.ID,
		Name:      ad.Name,
		Type:      ir.AttributeType(ad.Type),
		Choices:   ad.Choices,
		CreatedAt: int64(ad.CreatedAt),
		UpdatedAt: int64(ad.UpdatedAt),
	}
	if attr.ID == "" {
		attr.ID = attr.Name
	}
	if attr.Name == "" {
		attr.Name = attr.ID
	}
	if attr.ID == "" {
		return ir.Attribute{}, errors.New("attribute needs an id or a name")
	}
	if attr.Type == "" {
		attr.Type = ir.TypeText
	}
	if !ir.ValidAttributeTypes[attr.Type] {
		return ir.Attribute{}, fmt.Errorf("attribute %q: unknown type %q", attr.ID, ad.Type)
	}

	v, err := ir.ValueFromAny(ad.Value)
	if err != nil {
		return ir.Attribute{}, fmt.Errorf("attribute %q: %w", attr.ID, err)
	}
	attr.Value = attr.Coerce(v)
	if err := attr.Validate(attr.Value); err != nil {
		return ir.Attribute{}, err
	}
	return attr, nil
}

func (evd eventDoc) toEvent(ds *Dataset, ids IDGenerator) (ir.Event, error) {
	if evd.EntityID == "" || evd.AttributeID == "" {
		return ir.Event{}, errors.New("entity_id and attribute_id are required")
	}

	ev := ir.Event{
		ID:          evd.ID,
		Timestamp:   int64(evd.Timestamp),
		EntityID:    evd.EntityID,
		AttributeID: evd.AttributeID,
		Description: evd.Description,
		CreatedAt:   int64(evd.CreatedAt),
	}
	if ev.ID == "" {
		ev.ID = ids.Generate()
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = ev.Timestamp
	}

	var err error
	if ev.NewValue, err = ir.ValueFromAny(evd.NewValue); err != nil {
		return ir.Event{}, fmt.Errorf("event %q new_value: %w", ev.ID, err)
	}
	if evd.OldValue.Kind != 0 {
		var raw any
		if err := evd.OldValue.Decode(&raw); err != nil {
			return ir.Event{}, fmt.Errorf("event %q old_value: %w", ev.ID, err)
		}
		if ev.OldValue, err = ir.ValueFromAny(raw); err != nil {
			return ir.Event{}, fmt.Errorf("event %q old_value: %w", ev.ID, err)
		}
	}

	// Events on unknown entities or attributes are kept as-is.
	ent, ok := ds.Entity(ev.EntityID)
	if !ok {
		return ev, nil
	}
	attr, ok := ent.Attribute(ev.AttributeID)
	if !ok {
		return ev, nil
	}

	ev.NewValue = attr.Coerce(ev.NewValue)
	if err := attr.Validate(ev.NewValue); err != nil {
		return ir.Event{}, fmt.Errorf("event %q: %w", ev.ID, err)
	}
	if ev.OldValue != nil {
		ev.OldValue = attr.Coerce(ev.OldValue)
		if err := attr.Validate(ev.OldValue); err != nil {
			return ir.Event{}, fmt.Errorf("event %q old_value: %w", ev.ID, err)
		}
	}
	return ev, nil
}
