package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/testutil"
)

func TestWriteEntity_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ent := testutil.Character("char-1", 100, "alive", 25)
	require.NoError(t, s.WriteEntity(ctx, ent))

	got, err := s.ReadEntity(ctx, "char-1")
	require.NoError(t, err)
	assert.Equal(t, ent, got)

	// Choice survives as Choice, not Text
	assert.Equal(t, ir.Choice("alive"), got.Attributes[0].Value)
}

func TestWriteEntity_UpdateKeepsAttributeOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ent := testutil.Character("char-1", 100, "alive", 25)
	require.NoError(t, s.WriteEntity(ctx, ent))

	updated := ir.Entity{
		ID:        "char-1",
		CreatedAt: 50,
		Attributes: []ir.Attribute{
			{ID: "age", Name: "age", Type: ir.TypeNumber, Value: ir.Number(30), UpdatedAt: 7},
			{ID: "mood", Name: "mood", Type: ir.TypeText, Value: ir.Text("calm")},
		},
	}
	require.NoError(t, s.WriteEntity(ctx, updated))

	got, err := s.ReadEntity(ctx, "char-1")
	require.NoError(t, err)

	assert.Equal(t, int64(50), got.CreatedAt)
	ids := make([]string, len(got.Attributes))
	for i, a := range got.Attributes {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"status", "age", "level", "mood"}, ids)
	assert.Equal(t, ir.Number(30), got.Attributes[1].Value)
	assert.Equal(t, int64(7), got.Attributes[1].UpdatedAt)
}

func TestAppendEvent_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ev := createTestEvent("evt-1", "char-1", 10, "dead")

	inserted, err := s.AppendEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same ID with different content is ignored
	dup := ev
	dup.NewValue = ir.Choice("alive")
	inserted, err = s.AppendEvent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	events, err := s.ReadEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.Choice("dead"), events[0].NewValue)
}

func TestAppendEvent_OldValueRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	withOld := createTestEvent("evt-1", "char-1", 10, "dead")
	withOld.OldValue = ir.Choice("alive")
	withOld.Description = "fell in battle"
	withoutOld := testutil.Event("evt-2", 20, "char-1", "age", ir.Number(26.5))

	_, err := s.AppendEvents(ctx, []ir.Event{withOld, withoutOld})
	require.NoError(t, err)

	events, err := s.ReadEvents(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, []ir.Event{withOld, withoutOld}, events)
	assert.Nil(t, events[1].OldValue, "absent old value stays absent")
}

func TestAppendEvents_CountsNewRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := testutil.SequentialAges("char-1", 0, 20, 3)
	n, err := s.AppendEvents(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	more := append(first[1:], testutil.SequentialAges("char-2", 0, 40, 2)...)
	n, err = s.AppendEvents(ctx, more)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAppendEvents_AllowsUnknownEntity(t *testing.T) {
	s := createTestStore(t)

	_, err := s.AppendEvent(context.Background(), createTestEvent("evt-1", "nobody", 1, "alive"))
	require.NoError(t, err, "events do not require a written entity")
}

func TestWriteConflicts_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	terminal := createTestEvent("evt-1", "char-1", 10, "dead")
	later := testutil.Event("evt-2", 20, "char-1", "age", ir.Number(30))
	later.OldValue = ir.Number(29)

	c := ir.Conflict{
		RuleID:      ir.RuleResurrection,
		Kind:        ir.KindResurrection,
		Severity:    ir.SeverityHigh,
		Title:       "Resurrection: activity after termination",
		Description: "char-1 changed after it ended",
		EntityID:    "char-1",
		AttributeID: "status",
		Events:      []ir.Event{terminal, later},
		Suggestions: []string{"Remove the later event"},
		Timestamp:   10,
	}
	c.ID = ir.MustConflictID(c.RuleID, c.Key(), c.EventIDs())

	n, err := s.WriteConflicts(ctx, []ir.Conflict{c}, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.WriteConflicts(ctx, []ir.Conflict{c}, 2000)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := s.ReadConflicts(ctx, ConflictFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c, got[0].Conflict)
	assert.Equal(t, int64(1000), got[0].RecordedAt)
}
