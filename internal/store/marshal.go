package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/chronicle/internal/ir"
)

// marshalValue converts a Value to tagged JSON TEXT for storage.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalTagged(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// marshalOptionalValue maps an absent value to SQL NULL.
func marshalOptionalValue(v ir.Value) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	s, err := marshalValue(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

func unmarshalValue(data string) (ir.Value, error) {
	v, err := ir.UnmarshalTagged([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

func unmarshalOptionalValue(data sql.NullString) (ir.Value, error) {
	if !data.Valid {
		return nil, nil
	}
	return unmarshalValue(data.String)
}

// marshalStrings converts a string list to canonical JSON TEXT.
func marshalStrings(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	out := []string{}
	if data == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	return out, nil
}

// storedEvent is the JSON form of an event embedded in a conflict row.
// Values are tagged so the variant survives.
type storedEvent struct {
	ID          string          `json:"id"`
	Timestamp   int64           `json:"timestamp"`
	EntityID    string          `json:"entity_id"`
	AttributeID string          `json:"attribute_id"`
	NewValue    json.RawMessage `json:"new_value"`
	OldValue    json.RawMessage `json:"old_value,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   int64           `json:"created_at"`
}

func marshalEvents(events []ir.Event) (string, error) {
	stored := make([]storedEvent, len(events))
	for i, e := range events {
		nv, err := ir.MarshalTagged(e.NewValue)
		if err != nil {
			return "", fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		se := storedEvent{
			ID:          e.ID,
			Timestamp:   e.Timestamp,
			EntityID:    e.EntityID,
			AttributeID: e.AttributeID,
			NewValue:    nv,
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		}
		if e.OldValue != nil {
			if se.OldValue, err = ir.MarshalTagged(e.OldValue); err != nil {
				return "", fmt.Errorf("marshal event %s: %w", e.ID, err)
			}
		}
		stored[i] = se
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(data), nil
}

func unmarshalEvents(data string) ([]ir.Event, error) {
	var stored []storedEvent
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}

	events := make([]ir.Event, len(stored))
	for i, se := range stored {
		nv, err := ir.UnmarshalTagged(se.NewValue)
		if err != nil {
			return nil, fmt.Errorf("unmarshal event %s: %w", se.ID, err)
		}
		e := ir.Event{
			ID:          se.ID,
			Timestamp:   se.Timestamp,
			EntityID:    se.EntityID,
			AttributeID: se.AttributeID,
			NewValue:    nv,
			Description: se.Description,
			CreatedAt:   se.CreatedAt,
		}
		if len(se.OldValue) > 0 {
			if e.OldValue, err = ir.UnmarshalTagged(se.OldValue); err != nil {
				return nil, fmt.Errorf("unmarshal event %s: %w", se.ID, err)
			}
		}
		events[i] = e
	}
	return events, nil
}
