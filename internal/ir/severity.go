package ir

import (
	"fmt"
	"strings"
)

// Severity is an ordinal conflict classification.
// The zero value means "unset"; the rule engine stamps the rule's own
// severity onto conflicts that leave it unset.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

// Severities lists all severities in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// String implements fmt.Stringer.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Valid reports whether s is one of the four defined severities.
func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

// ParseSeverity parses a case-insensitive severity name.
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q: must be one of low, medium, high, critical", name)
}

// MarshalText implements encoding.TextMarshaler.
// Used for JSON values and map keys alike.
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(data []byte) error {
	sev, err := ParseSeverity(string(data))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}
