// Package harness provides conformance testing for chronicle datasets.
//
// A scenario names a dataset, an optional CUE ruleset, and assertions about
// reconstructed state and detected conflicts. Run loads the dataset through
// a fresh in-memory store, rebuilds state with the real reconstructor, runs
// the real rule engine, and evaluates the assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	dataset: ../datasets/characters.yaml
//	ruleset: ../rulesets/strict.cue   # optional
//	id_prefix: evt                    # optional, for unnamed events
//	assertions:
//	  - type: state
//	    entity: char-1
//	    at: 2000
//	    expect: { status: dead }
//	  - type: exists
//	    entity: char-1
//	    at: 2500
//	    exists: false
//	  - type: conflict_count
//	    kind: resurrection
//	    count: 1
//	  - type: change_count
//	    entity: char-1
//	    attribute: age
//	    start: 0
//	    end: 5000
//	    count: 2
//
// Paths are relative to the scenario file.
//
// # Golden Files
//
// RunWithGolden serializes the detected conflicts as canonical JSON and
// compares them with testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
