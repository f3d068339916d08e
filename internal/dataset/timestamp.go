package dataset

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Millis is an epoch-milliseconds timestamp that also accepts RFC 3339
// strings in documents.
type Millis int64

// ParseMillis parses epoch milliseconds or an RFC 3339 timestamp.
func ParseMillis(s string) (Millis, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Millis(n), nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q is neither epoch millis nor RFC 3339", s)
	}
	return Millis(t.UnixMilli()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Millis) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timestamp must be a scalar", node.Line)
	}

	parsed, err := ParseMillis(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = parsed
	return nil
}
