package consistency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/testutil"
)

// runDefault runs a single default rule by id through a fresh engine.
func runDefault(t *testing.T, ruleID string, events []ir.Event, entities ...ir.Entity) []ir.Conflict {
	t.Helper()
	e := New(quiet)
	for _, r := range DefaultRules(ir.DefaultRuleSet()) {
		if r.ID == ruleID {
			require.NoError(t, e.AddRule(r))
		}
	}
	require.Len(t, e.Rules(), 1)

	report := e.Detect(events, entities)
	require.Empty(t, report.Failed())
	return report.Conflicts
}

// =============================================================================
// Resurrection
// =============================================================================

func TestResurrection(t *testing.T) {
	hero := testutil.Character("hero", 0, "alive", 25)

	tests := []struct {
		name   string
		events []ir.Event
		want   int
	}{
		{
			name: "no death",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "age", ir.Number(26)),
			},
			want: 0,
		},
		{
			name: "death is last event",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "age", ir.Number(26)),
				testutil.Event("e2", 20, "hero", "status", ir.Choice("dead")),
			},
			want: 0,
		},
		{
			name: "activity after death",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "status", ir.Choice("dead")),
				testutil.Event("e2", 20, "hero", "age", ir.Number(26)),
			},
			want: 1,
		},
		{
			name: "died counts as terminal",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "status", ir.Choice("died")),
				testutil.Event("e2", 20, "hero", "level", ir.Number(2)),
			},
			want: 1,
		},
		{
			name: "case-insensitive terminal value",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "status", ir.Text("DEAD")),
				testutil.Event("e2", 20, "hero", "age", ir.Number(26)),
			},
			want: 1,
		},
		{
			name: "simultaneous event is not after death",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "status", ir.Choice("dead")),
				testutil.Event("e2", 10, "hero", "age", ir.Number(26)),
			},
			want: 0,
		},
		{
			name: "terminal value on non-status attribute",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "nickname", ir.Text("dead")),
				testutil.Event("e2", 20, "hero", "age", ir.Number(26)),
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts := runDefault(t, ir.RuleResurrection, tt.events, hero)
			assert.Len(t, conflicts, tt.want)
		})
	}
}

func TestResurrection_AnchoredOnTerminalEvent(t *testing.T) {
	hero := testutil.Character("hero", 0, "alive", 25)
	events := []ir.Event{
		testutil.Event("e1", 1000, "hero", "status", ir.Choice("dead")),
		testutil.Event("e2", 2000, "hero", "age", ir.Number(26)),
		testutil.Event("e3", 3000, "hero", "status", ir.Choice("healthy")),
	}

	conflicts := runDefault(t, ir.RuleResurrection, events, hero)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, "status", c.AttributeID)
	assert.Equal(t, int64(1000), c.Timestamp)
	assert.Equal(t, ir.SeverityHigh, c.Severity)
	assert.Contains(t, c.Title, "Resurrection")
	assert.NotEmpty(t, c.Suggestions)
}

func TestResurrection_PerEntity(t *testing.T) {
	hero := testutil.Character("hero", 0, "alive", 25)
	villain := testutil.Character("villain", 0, "alive", 40)
	events := []ir.Event{
		testutil.Event("e1", 10, "hero", "status", ir.Choice("dead")),
		testutil.Event("e2", 20, "villain", "age", ir.Number(41)),
		testutil.Event("e3", 30, "villain", "status", ir.Choice("dead")),
		testutil.Event("e4", 40, "villain", "age", ir.Number(42)),
	}

	conflicts := runDefault(t, ir.RuleResurrection, events, hero, villain)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "villain", conflicts[0].EntityID)
}

// =============================================================================
// Monotonic decrease
// =============================================================================

func TestMonotonicDecrease(t *testing.T) {
	hero := testutil.Character("hero", 0, "alive", 25)
	year := ir.YearMillis

	tests := []struct {
		name   string
		events []ir.Event
		want   int
	}{
		{
			name: "increase",
			events: []ir.Event{
				testutil.Event("e1", 0, "hero", "age", ir.Number(25)),
				testutil.Event("e2", 10, "hero", "age", ir.Number(30)),
			},
			want: 0,
		},
		{
			name: "decrease of exactly one",
			events: []ir.Event{
				testutil.Event("e1", 0, "hero", "age", ir.Number(25)),
				testutil.Event("e2", 10, "hero", "age", ir.Number(24)),
			},
			want: 0,
		},
		{
			name: "large decrease within a year",
			events: []ir.Event{
				testutil.Event("e1", 0, "hero", "age", ir.Number(25)),
				testutil.Event("e2", 10, "hero", "age", ir.Number(20)),
			},
			want: 1,
		},
		{
			name: "large decrease after exactly a year",
			events: []ir.Event{
				testutil.Event("e1", 0, "hero", "age", ir.Number(25)),
				testutil.Event("e2", year, "hero", "age", ir.Number(20)),
			},
			want: 0,
		},
		{
			name: "large decrease one millisecond short of a year",
			events: []ir.Event{
				testutil.Event("e1", 0, "hero", "age", ir.Number(25)),
				testutil.Event("e2", year-1, "hero", "age", ir.Number(20)),
			},
			want: 1,
		},
		{
			name: "cleared value breaks the chain",
			events: []ir.Event{
				testutil.Event("e1", 0, "hero", "age", ir.Number(25)),
				testutil.Event("e2", 5, "hero", "age", ir.Null{}),
				testutil.Event("e3", 10, "hero", "age", ir.Number(20)),
			},
			want: 0,
		},
		{
			name: "other attributes ignored",
			events: []ir.Event{
				testutil.Event("e1", 0, "hero", "level", ir.Number(10)),
				testutil.Event("e2", 10, "hero", "level", ir.Number(1)),
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts := runDefault(t, ir.RuleMonotonicDecrease, tt.events, hero)
			assert.Len(t, conflicts, tt.want)
		})
	}
}

func TestMonotonicDecrease_MatchesAttributeByName(t *testing.T) {
	hero := ir.Entity{
		ID: "hero",
		Attributes: []ir.Attribute{
			{ID: "attr-7", Name: "Age", Type: ir.TypeNumber, Value: ir.Number(30)},
		},
	}
	events := []ir.Event{
		testutil.Event("e1", 0, "hero", "attr-7", ir.Number(30)),
		testutil.Event("e2", 10, "hero", "attr-7", ir.Number(10)),
	}

	conflicts := runDefault(t, ir.RuleMonotonicDecrease, events, hero)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "attr-7", conflicts[0].AttributeID)
	assert.Equal(t, []string{"e1", "e2"}, conflicts[0].EventIDs())
	assert.Equal(t, ir.SeverityMedium, conflicts[0].Severity)
}

// =============================================================================
// Invalid transition
// =============================================================================

func TestInvalidTransition(t *testing.T) {
	tests := []struct {
		name    string
		initial string
		events  []ir.Event
		want    int
	}{
		{
			name:    "dead to healthy",
			initial: "alive",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "status", ir.Choice("dead")),
				testutil.Event("e2", 20, "hero", "status", ir.Choice("healthy")),
			},
			want: 1,
		},
		{
			name:    "dead to injured",
			initial: "alive",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "status", ir.Choice("dead")),
				testutil.Event("e2", 20, "hero", "status", ir.Choice("injured")),
			},
			want: 1,
		},
		{
			name:    "seeded from initial value",
			initial: "dead",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "status", ir.Choice("healthy")),
			},
			want: 1,
		},
		{
			name:    "allowed transitions",
			initial: "alive",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "status", ir.Choice("injured")),
				testutil.Event("e2", 20, "hero", "status", ir.Choice("healthy")),
				testutil.Event("e3", 30, "hero", "status", ir.Choice("dead")),
			},
			want: 0,
		},
		{
			name:    "only consecutive values count",
			initial: "alive",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "status", ir.Choice("dead")),
				testutil.Event("e2", 20, "hero", "status", ir.Choice("alive")),
				testutil.Event("e3", 30, "hero", "status", ir.Choice("healthy")),
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hero := testutil.Character("hero", 0, tt.initial, 25)
			conflicts := runDefault(t, ir.RuleInvalidTransition, tt.events, hero)
			assert.Len(t, conflicts, tt.want)
		})
	}
}

func TestInvalidTransition_ReferencesBothEvents(t *testing.T) {
	hero := testutil.Character("hero", 0, "alive", 25)
	events := []ir.Event{
		testutil.Event("e1", 10, "hero", "status", ir.Choice("dead")),
		testutil.Event("e2", 20, "hero", "status", ir.Choice("healthy")),
	}

	conflicts := runDefault(t, ir.RuleInvalidTransition, events, hero)
	require.Len(t, conflicts, 1)
	assert.Equal(t, []string{"e1", "e2"}, conflicts[0].EventIDs())
	assert.Equal(t, int64(20), conflicts[0].Timestamp)
}

// =============================================================================
// Temporal order
// =============================================================================

func TestTemporalOrder(t *testing.T) {
	hero := testutil.Character("hero", 1000, "alive", 25)
	events := []ir.Event{
		testutil.Event("e1", 500, "hero", "age", ir.Number(24)),
		testutil.Event("e2", 999, "hero", "status", ir.Choice("injured")),
		testutil.Event("e3", 1000, "hero", "age", ir.Number(25)),
		testutil.Event("e4", 2000, "hero", "age", ir.Number(26)),
	}

	conflicts := runDefault(t, ir.RuleTemporalOrder, events, hero)
	require.Len(t, conflicts, 2, "events at createdAt are allowed")
	assert.Equal(t, "e2", conflicts[0].Events[0].ID, "newest first")
	assert.Equal(t, ir.SeverityLow, conflicts[0].Severity)
}

func TestTemporalOrder_UnknownEntitySkipped(t *testing.T) {
	events := []ir.Event{testutil.Event("e1", -5, "ghost", "age", ir.Number(1))}
	assert.Empty(t, runDefault(t, ir.RuleTemporalOrder, events))
}

// =============================================================================
// Attribute dependency
// =============================================================================

func TestDependencyViolation(t *testing.T) {
	tests := []struct {
		name    string
		initial string
		events  []ir.Event
		want    int
	}{
		{
			name:    "level set while alive",
			initial: "alive",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "level", ir.Number(2)),
			},
			want: 0,
		},
		{
			name:    "level set while dead",
			initial: "alive",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "status", ir.Choice("dead")),
				testutil.Event("e2", 20, "hero", "level", ir.Number(2)),
			},
			want: 1,
		},
		{
			name:    "precondition seeded from initial value",
			initial: "injured",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "level", ir.Number(2)),
			},
			want: 1,
		},
		{
			name:    "clearing level is always allowed",
			initial: "dead",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "level", ir.Null{}),
			},
			want: 0,
		},
		{
			name:    "status restored before level change",
			initial: "injured",
			events: []ir.Event{
				testutil.Event("e1", 10, "hero", "status", ir.Choice("alive")),
				testutil.Event("e2", 20, "hero", "level", ir.Number(3)),
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hero := testutil.Character("hero", 0, tt.initial, 25)
			conflicts := runDefault(t, ir.RuleDependencyViolation, tt.events, hero)
			assert.Len(t, conflicts, tt.want)
		})
	}
}

func TestDependencyViolation_EntityWithoutPrecondition(t *testing.T) {
	item := ir.Entity{
		ID:         "sword",
		Attributes: []ir.Attribute{{ID: "level", Name: "level", Type: ir.TypeNumber}},
	}
	events := []ir.Event{testutil.Event("e1", 10, "sword", "level", ir.Number(5))}

	assert.Empty(t, runDefault(t, ir.RuleDependencyViolation, events, item),
		"entities lacking the required attribute are not checked")
}

// =============================================================================
// Custom rule sets
// =============================================================================

func TestDefaultRules_CustomTables(t *testing.T) {
	rs := ir.RuleSet{
		StatusAttributes: []string{"state"},
		TerminalValues:   []string{"destroyed"},
		Transitions: []ir.TransitionSpec{
			{Attribute: "state", From: "sealed", To: []string{"open"}},
		},
	}
	e := New(quiet)
	for _, r := range DefaultRules(rs) {
		require.NoError(t, e.AddRule(r))
	}

	door := ir.Entity{
		ID: "door",
		Attributes: []ir.Attribute{
			{ID: "state", Name: "state", Type: ir.TypeChoice, Value: ir.Choice("sealed"),
				Choices: []string{"sealed", "open", "destroyed"}},
		},
	}
	events := []ir.Event{
		testutil.Event("e1", 10, "door", "state", ir.Choice("open")),
		testutil.Event("e2", 20, "door", "state", ir.Choice("destroyed")),
		testutil.Event("e3", 30, "door", "state", ir.Choice("sealed")),
	}

	conflicts := e.DetectConflicts(events, []ir.Entity{door})
	kinds := make([]ir.ConflictKind, len(conflicts))
	for i, c := range conflicts {
		kinds[i] = c.Kind
	}
	assert.ElementsMatch(t, []ir.ConflictKind{ir.KindInvalidTransition, ir.KindResurrection}, kinds)
}
