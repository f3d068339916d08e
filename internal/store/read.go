package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/queryir"
)

// EventFilter narrows ReadEvents. Zero fields do not filter.
type EventFilter struct {
	EntityIDs   []string // any of these entities
	AttributeID string
	Since       *int64 // timestamp >= Since
	Until       *int64 // timestamp <= Until
	Limit       int
}

// ConflictFilter narrows ReadConflicts. Zero fields do not filter.
type ConflictFilter struct {
	EntityIDs   []string
	MinSeverity ir.Severity
}

// RecordedConflict is a conflict together with the time it was recorded.
type RecordedConflict struct {
	ir.Conflict
	RecordedAt int64 `json:"recorded_at"`
}

var (
	entityColumns    = []string{"id", "created_at"}
	attributeColumns = []string{"entity_id", "id", "name", "type", "value", "choices", "created_at", "updated_at"}
	eventColumns     = []string{"id", "timestamp", "entity_id", "attribute_id", "new_value", "old_value", "description", "created_at"}
	conflictColumns  = []string{
		"id", "rule_id", "kind", "severity", "title", "description", "entity_id",
		"attribute_id", "timestamp", "events", "suggestions", "recorded_at",
	}
)

// ReadEntities returns every entity with its attributes, in write order.
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ReadEntities(ctx context.Context) ([]ir.Entity, error) {
	return s.readEntities(ctx, nil)
}

// ReadEntity returns one entity. Returns ErrNotFound if it was never
// written.
func (s *Store) ReadEntity(ctx context.Context, id string) (ir.Entity, error) {
	ents, err := s.readEntities(ctx, []string{id})
	if err != nil {
		return ir.Entity{}, err
	}
	if len(ents) == 0 {
		return ir.Entity{}, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return ents[0], nil
}

func (s *Store) readEntities(ctx context.Context, ids []string) ([]ir.Entity, error) {
	var filter queryir.Predicate
	var attrFilter queryir.Predicate
	if ids != nil {
		filter = queryir.In{Field: "id", Values: stringLiterals(ids)}
		attrFilter = queryir.In{Field: "entity_id", Values: stringLiterals(ids)}
	}

	entities := []ir.Entity{}
	index := make(map[string]int)
	err := s.query(ctx, queryir.Select{From: "entities", Columns: entityColumns, Filter: filter}, func(rows *sql.Rows) error {
		var ent ir.Entity
		if err := rows.Scan(&ent.ID, &ent.CreatedAt); err != nil {
			return fmt.Errorf("scan entity: %w", err)
		}
		ent.Attributes = []ir.Attribute{}
		index[ent.ID] = len(entities)
		entities = append(entities, ent)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read entities: %w", err)
	}

	err = s.query(ctx, queryir.Select{From: "attributes", Columns: attributeColumns, Filter: attrFilter}, func(rows *sql.Rows) error {
		entityID, attr, err := scanAttribute(rows)
		if err != nil {
			return err
		}
		if i, ok := index[entityID]; ok {
			entities[i].Attributes = append(entities[i].Attributes, attr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read attributes: %w", err)
	}

	return entities, nil
}

func scanAttribute(rows *sql.Rows) (string, ir.Attribute, error) {
	var (
		entityID, typ, value, choices string
		attr                          ir.Attribute
	)
	if err := rows.Scan(&entityID, &attr.ID, &attr.Name, &typ, &value, &choices, &attr.CreatedAt, &attr.UpdatedAt); err != nil {
		return "", ir.Attribute{}, fmt.Errorf("scan attribute: %w", err)
	}
	attr.Type = ir.AttributeType(typ)

	var err error
	if attr.Value, err = unmarshalValue(value); err != nil {
		return "", ir.Attribute{}, fmt.Errorf("attribute %s: %w", attr.ID, err)
	}
	list, err := unmarshalStrings(choices)
	if err != nil {
		return "", ir.Attribute{}, fmt.Errorf("attribute %s: %w", attr.ID, err)
	}
	if len(list) > 0 {
		attr.Choices = list
	}
	return entityID, attr, nil
}

// ReadEvents returns the events matching filter in append order.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadEvents(ctx context.Context, filter EventFilter) ([]ir.Event, error) {
	sel := queryir.Select{
		From:    "events",
		Columns: eventColumns,
		Filter:  filter.predicate(),
		Limit:   filter.Limit,
	}

	events := []ir.Event{}
	err := s.query(ctx, sel, func(rows *sql.Rows) error {
		ev, err := scanEvent(rows)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

func (f EventFilter) predicate() queryir.Predicate {
	var preds []queryir.Predicate
	if f.EntityIDs != nil {
		preds = append(preds, queryir.In{Field: "entity_id", Values: stringLiterals(f.EntityIDs)})
	}
	if f.AttributeID != "" {
		preds = append(preds, queryir.Equals{Field: "attribute_id", Value: queryir.String(f.AttributeID)})
	}
	if f.Since != nil {
		preds = append(preds, queryir.Compare{Field: "timestamp", Op: queryir.OpGE, Value: queryir.Int(*f.Since)})
	}
	if f.Until != nil {
		preds = append(preds, queryir.Compare{Field: "timestamp", Op: queryir.OpLE, Value: queryir.Int(*f.Until)})
	}
	if len(preds) == 0 {
		return nil
	}
	return queryir.And{Predicates: preds}
}

func scanEvent(rows *sql.Rows) (ir.Event, error) {
	var (
		ev       ir.Event
		newValue string
		oldValue sql.NullString
	)
	if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.EntityID, &ev.AttributeID, &newValue, &oldValue, &ev.Description, &ev.CreatedAt); err != nil {
		return ir.Event{}, fmt.Errorf("scan event: %w", err)
	}

	var err error
	if ev.NewValue, err = unmarshalValue(newValue); err != nil {
		return ir.Event{}, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	if ev.OldValue, err = unmarshalOptionalValue(oldValue); err != nil {
		return ir.Event{}, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	return ev, nil
}

// ReadConflicts returns recorded conflicts in recording order.
func (s *Store) ReadConflicts(ctx context.Context, filter ConflictFilter) ([]RecordedConflict, error) {
	var preds []queryir.Predicate
	if filter.EntityIDs != nil {
		preds = append(preds, queryir.In{Field: "entity_id", Values: stringLiterals(filter.EntityIDs)})
	}
	if filter.MinSeverity != 0 {
		preds = append(preds, queryir.Compare{Field: "severity", Op: queryir.OpGE, Value: queryir.Int(filter.MinSeverity)})
	}
	sel := queryir.Select{From: "conflicts", Columns: conflictColumns}
	if len(preds) > 0 {
		sel.Filter = queryir.And{Predicates: preds}
	}

	out := []RecordedConflict{}
	err := s.query(ctx, sel, func(rows *sql.Rows) error {
		rc, err := scanConflict(rows)
		if err != nil {
			return err
		}
		out = append(out, rc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read conflicts: %w", err)
	}
	return out, nil
}

func scanConflict(rows *sql.Rows) (RecordedConflict, error) {
	var (
		rc                  RecordedConflict
		kind                string
		severity            int
		events, suggestions string
	)
	err := rows.Scan(&rc.ID, &rc.RuleID, &kind, &severity, &rc.Title, &rc.Description,
		&rc.EntityID, &rc.AttributeID, &rc.Timestamp, &events, &suggestions, &rc.RecordedAt)
	if err != nil {
		return RecordedConflict{}, fmt.Errorf("scan conflict: %w", err)
	}
	rc.Kind = ir.ConflictKind(kind)
	rc.Severity = ir.Severity(severity)

	if rc.Events, err = unmarshalEvents(events); err != nil {
		return RecordedConflict{}, fmt.Errorf("conflict %s: %w", rc.ID, err)
	}
	if rc.Suggestions, err = unmarshalStrings(suggestions); err != nil {
		return RecordedConflict{}, fmt.Errorf("conflict %s: %w", rc.ID, err)
	}
	return rc, nil
}

// query compiles sel and calls scan for every row.
func (s *Store) query(ctx context.Context, sel queryir.Select, scan func(*sql.Rows) error) error {
	sqlText, params, err := s.compiler.Compile(sel)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return fmt.Errorf("query %s: %w", sel.From, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", sel.From, err)
	}
	return nil
}

func stringLiterals(ss []string) []queryir.Literal {
	out := make([]queryir.Literal, len(ss))
	for i, s := range ss {
		out[i] = queryir.String(s)
	}
	return out
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
