package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/chronicle/internal/ir"
)

// WriteEntity inserts or updates an entity and its attributes in one
// transaction. Existing attributes keep their position; new ones are
// appended. Attributes missing from ent are left in place.
func (s *Store) WriteEntity(ctx context.Context, ent ir.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write entity: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, created_at)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET created_at = excluded.created_at
	`, ent.ID, ent.CreatedAt)
	if err != nil {
		return fmt.Errorf("write entity %s: %w", ent.ID, err)
	}

	for _, attr := range ent.Attributes {
		if err := writeAttribute(ctx, tx, ent.ID, attr); err != nil {
			return fmt.Errorf("write entity %s: %w", ent.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write entity: commit: %w", err)
	}
	return nil
}

func writeAttribute(ctx context.Context, tx *sql.Tx, entityID string, attr ir.Attribute) error {
	value, err := marshalValue(attr.Value)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", attr.ID, err)
	}
	choices, err := marshalStrings(attr.Choices)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", attr.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attributes
		(entity_id, id, name, type, value, choices, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			value = excluded.value,
			choices = excluded.choices,
			updated_at = excluded.updated_at
	`,
		entityID,
		attr.ID,
		attr.Name,
		string(attr.Type),
		value,
		choices,
		attr.CreatedAt,
		attr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", attr.ID, err)
	}
	return nil
}

// AppendEvent appends an event to the log.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: a duplicate ID is
// silently ignored and inserted is false.
func (s *Store) AppendEvent(ctx context.Context, ev ir.Event) (inserted bool, err error) {
	n, err := appendEvent(ctx, s.db, ev)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AppendEvents appends events in order within one transaction and returns
// how many were new.
func (s *Store) AppendEvents(ctx context.Context, events []ir.Event) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append events: begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, ev := range events {
		n, err := appendEvent(ctx, tx, ev)
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append events: commit: %w", err)
	}
	return inserted, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendEvent(ctx context.Context, db execer, ev ir.Event) (int64, error) {
	newValue, err := marshalValue(ev.NewValue)
	if err != nil {
		return 0, fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	oldValue, err := marshalOptionalValue(ev.OldValue)
	if err != nil {
		return 0, fmt.Errorf("append event %s: %w", ev.ID, err)
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO events
		(id, timestamp, entity_id, attribute_id, new_value, old_value, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		ev.Timestamp,
		ev.EntityID,
		ev.AttributeID,
		newValue,
		oldValue,
		ev.Description,
		ev.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("append event %s: %w", ev.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("append event %s: rows affected: %w", ev.ID, err)
	}
	return n, nil
}

// WriteConflicts records detected conflicts with the given recording time.
// Conflict IDs are content-addressed, so recording the same detection
// twice is a no-op. Returns how many rows were new.
func (s *Store) WriteConflicts(ctx context.Context, conflicts []ir.Conflict, recordedAt int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write conflicts: begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, c := range conflicts {
		events, err := marshalEvents(c.Events)
		if err != nil {
			return 0, fmt.Errorf("write conflict %s: %w", c.ID, err)
		}
		suggestions, err := marshalStrings(c.Suggestions)
		if err != nil {
			return 0, fmt.Errorf("write conflict %s: %w", c.ID, err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO conflicts
			(id, rule_id, kind, severity, title, description, entity_id, attribute_id,
			 timestamp, events, suggestions, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			c.ID,
			c.RuleID,
			string(c.Kind),
			int(c.Severity),
			c.Title,
			c.Description,
			c.EntityID,
			c.AttributeID,
			c.Timestamp,
			events,
			suggestions,
			recordedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("write conflict %s: %w", c.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("write conflict %s: rows affected: %w", c.ID, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write conflicts: commit: %w", err)
	}
	return inserted, nil
}
