package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chronicle/internal/dataset"
)

// Scenario defines a conformance test scenario: a dataset, the rules to
// check it with, and what reconstruction and detection must report.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dataset is the path to a dataset YAML file.
	Dataset string `yaml:"dataset"`

	// RuleSet is an optional path to a CUE ruleset document.
	// Empty means ir.DefaultRuleSet.
	RuleSet string `yaml:"ruleset,omitempty"`

	// IDPrefix seeds ids for events the dataset leaves unnamed.
	// Defaults to "evt".
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// Assertions validate reconstructed state and detected conflicts.
	// Supported types: state, exists, conflict_count, change_count
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one observable outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "state": attribute values of Entity at At
	// - "exists": whether Entity exists at At
	// - "conflict_count": number of conflicts matching Kind/Entity/Rule
	// - "change_count": number of events on Attribute in [Start, End]
	Type string `yaml:"type"`

	// Entity is the entity id (state, exists, change_count; optional
	// filter for conflict_count).
	Entity string `yaml:"entity,omitempty"`

	// At is the query timestamp (state, exists).
	At *dataset.Millis `yaml:"at,omitempty"`

	// Expect maps attribute id or name to the expected value (state).
	// Subset match: attributes not listed are not checked.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Exists is the expected existence (exists).
	Exists *bool `yaml:"exists,omitempty"`

	// Kind and Rule filter conflicts (conflict_count).
	Kind string `yaml:"kind,omitempty"`
	Rule string `yaml:"rule,omitempty"`

	// Attribute is the attribute id (change_count).
	Attribute string `yaml:"attribute,omitempty"`

	// Start and End bound the change window (change_count).
	Start *dataset.Millis `yaml:"start,omitempty"`
	End   *dataset.Millis `yaml:"end,omitempty"`

	// Count is the expected number (conflict_count, change_count).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertState         = "state"
	AssertExists        = "exists"
	AssertConflictCount = "conflict_count"
	AssertChangeCount   = "change_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Dataset and ruleset paths are resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML, resolving relative paths against
// basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.Dataset = resolve(basePath, scenario.Dataset)
	scenario.RuleSet = resolve(basePath, scenario.RuleSet)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}
	if _, err := os.Stat(s.Dataset); os.IsNotExist(err) {
		return fmt.Errorf("dataset file not found: %s", s.Dataset)
	}
	if s.RuleSet != "" {
		if _, err := os.Stat(s.RuleSet); os.IsNotExist(err) {
			return fmt.Errorf("ruleset file not found: %s", s.RuleSet)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertState:
		if a.Entity == "" || a.At == nil {
			return fmt.Errorf("assertions[%d]: entity and at are required for state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect map is required for state", index)
		}
	case AssertExists:
		if a.Entity == "" || a.At == nil {
			return fmt.Errorf("assertions[%d]: entity and at are required for exists", index)
		}
		if a.Exists == nil {
			return fmt.Errorf("assertions[%d]: exists is required for exists", index)
		}
	case AssertConflictCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for conflict_count", index)
		}
	case AssertChangeCount:
		if a.Entity == "" || a.Attribute == "" {
			return fmt.Errorf("assertions[%d]: entity and attribute are required for change_count", index)
		}
		if a.Start == nil || a.End == nil {
			return fmt.Errorf("assertions[%d]: start and end are required for change_count", index)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for change_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
