package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/chronicle/internal/compiler"
	"github.com/roach88/chronicle/internal/consistency"
	"github.com/roach88/chronicle/internal/dataset"
	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/store"
	"github.com/roach88/chronicle/internal/testutil"
	"github.com/roach88/chronicle/internal/timeline"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. Unnamed
// events get ids from a SequenceIDGenerator and conflicts are recorded at
// DeterministicClock times, so golden files stay byte-identical across runs.
//
// Execution flow:
//  1. Load the dataset and the ruleset
//  2. Write both through a fresh in-memory store and read them back
//  3. Run every enabled rule and record the conflicts
//  4. Evaluate assertions with a fresh Reconstructor
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	ds, err := dataset.Load(scenario.Dataset, testutil.NewSequenceIDGenerator(scenario.IDPrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	rs := ir.DefaultRuleSet()
	if scenario.RuleSet != "" {
		loaded, err := compiler.LoadRuleSetFile(scenario.RuleSet)
		if err != nil {
			return nil, fmt.Errorf("failed to load ruleset: %w", err)
		}
		if errs := compiler.Validate(loaded); len(errs) > 0 {
			return nil, fmt.Errorf("invalid ruleset: %w", errs[0])
		}
		rs = *loaded
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	entities, events, err := roundTrip(ctx, st, ds)
	if err != nil {
		return nil, err
	}

	eng, err := consistency.NewWithDefaults(rs, consistency.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build rule engine: %w", err)
	}
	report := eng.Detect(events, entities)

	clock := testutil.NewDeterministicClock(0, 1)
	if _, err := st.WriteConflicts(ctx, report.Conflicts, clock.Now()); err != nil {
		return nil, fmt.Errorf("failed to record conflicts: %w", err)
	}

	result := NewResult()
	result.AddConflicts(report.Conflicts)
	for _, f := range report.Failed() {
		result.RuleFailures = append(result.RuleFailures, f.Err.Error())
	}

	actx := &AssertionContext{
		Reconstructor: timeline.New(
			timeline.WithTerminalValues(rs.TerminalValues...),
			timeline.WithLogger(logger),
		),
		Entities: entities,
		Events:   events,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// roundTrip writes the dataset to st and reads it back, so every scenario
// also exercises the persistence codecs.
func roundTrip(ctx context.Context, st *store.Store, ds *dataset.Dataset) ([]ir.Entity, []ir.Event, error) {
	for _, ent := range ds.Entities {
		if err := st.WriteEntity(ctx, ent); err != nil {
			return nil, nil, fmt.Errorf("failed to write entity: %w", err)
		}
	}
	if _, err := st.AppendEvents(ctx, ds.Events); err != nil {
		return nil, nil, fmt.Errorf("failed to append events: %w", err)
	}

	entities, err := st.ReadEntities(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read entities: %w", err)
	}
	events, err := st.ReadEvents(ctx, store.EventFilter{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read events: %w", err)
	}
	return entities, events, nil
}
