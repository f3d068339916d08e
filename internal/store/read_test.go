package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/testutil"
)

func TestReadEntity_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadEntity(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestReadEntities_EmptyStore(t *testing.T) {
	s := createTestStore(t)

	ents, err := s.ReadEntities(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ents)
	assert.Empty(t, ents)
}

func TestReadEntities_WriteOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"zed", "amy", "bob"} {
		require.NoError(t, s.WriteEntity(ctx, testutil.Character(id, 0, "alive", 1)))
	}

	ents, err := s.ReadEntities(ctx)
	require.NoError(t, err)
	require.Len(t, ents, 3)
	assert.Equal(t, "zed", ents[0].ID)
	assert.Equal(t, "amy", ents[1].ID)
	assert.Equal(t, "bob", ents[2].ID)
	for _, e := range ents {
		assert.Len(t, e.Attributes, 3)
	}
}

func TestReadEvents_EqualTimestampsKeepAppendOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Appended out of id order, all at the same instant
	events := []ir.Event{
		createTestEvent("evt-c", "char-1", 5, "alive"),
		createTestEvent("evt-a", "char-1", 5, "injured"),
		createTestEvent("evt-b", "char-1", 5, "dead"),
	}
	_, err := s.AppendEvents(ctx, events)
	require.NoError(t, err)

	got, err := s.ReadEvents(ctx, EventFilter{EntityIDs: []string{"char-1"}})
	require.NoError(t, err)
	assert.Equal(t, events, got)
}

func TestReadEvents_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.AppendEvents(ctx, []ir.Event{
		createTestEvent("e1", "a", 10, "alive"),
		testutil.Event("e2", 20, "a", "age", ir.Number(5)),
		createTestEvent("e3", "b", 30, "dead"),
		createTestEvent("e4", "c", 40, "alive"),
		testutil.Event("e5", 50, "a", "age", ir.Number(6)),
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{name: "all", filter: EventFilter{}, want: []string{"e1", "e2", "e3", "e4", "e5"}},
		{name: "entities", filter: EventFilter{EntityIDs: []string{"a", "c"}}, want: []string{"e1", "e2", "e4", "e5"}},
		{name: "empty entity list", filter: EventFilter{EntityIDs: []string{}}, want: []string{}},
		{name: "attribute", filter: EventFilter{AttributeID: "age"}, want: []string{"e2", "e5"}},
		{name: "since inclusive", filter: EventFilter{Since: ptr(int64(30))}, want: []string{"e3", "e4", "e5"}},
		{name: "until inclusive", filter: EventFilter{Until: ptr(int64(20))}, want: []string{"e1", "e2"}},
		{
			name:   "combined",
			filter: EventFilter{EntityIDs: []string{"a"}, AttributeID: "age", Since: ptr(int64(20)), Until: ptr(int64(40))},
			want:   []string{"e2"},
		},
		{name: "limit", filter: EventFilter{Limit: 2}, want: []string{"e1", "e2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := s.ReadEvents(ctx, tt.filter)
			require.NoError(t, err)

			ids := []string{}
			for _, e := range events {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestReadConflicts_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mk := func(entity string, kind ir.ConflictKind, sev ir.Severity, ts int64) ir.Conflict {
		c := ir.Conflict{
			RuleID:      string(kind),
			Kind:        kind,
			Severity:    sev,
			Title:       string(kind),
			EntityID:    entity,
			Events:      []ir.Event{},
			Suggestions: []string{},
			Timestamp:   ts,
		}
		c.ID = ir.MustConflictID(c.RuleID, c.Key(), c.EventIDs())
		return c
	}

	_, err := s.WriteConflicts(ctx, []ir.Conflict{
		mk("a", ir.KindTemporalOrder, ir.SeverityLow, 1),
		mk("a", ir.KindResurrection, ir.SeverityHigh, 2),
		mk("b", ir.KindMonotonicDecrease, ir.SeverityMedium, 3),
	}, 99)
	require.NoError(t, err)

	all, err := s.ReadConflicts(ctx, ConflictFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	forA, err := s.ReadConflicts(ctx, ConflictFilter{EntityIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Len(t, forA, 2)

	serious, err := s.ReadConflicts(ctx, ConflictFilter{MinSeverity: ir.SeverityMedium})
	require.NoError(t, err)
	require.Len(t, serious, 2)
	assert.Equal(t, ir.KindResurrection, serious[0].Kind)
	assert.Equal(t, ir.KindMonotonicDecrease, serious[1].Kind)
}
