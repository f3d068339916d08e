// Package consistency detects logically inconsistent sequences in an
// attribute mutation log.
//
// An Engine holds a registry of rules. Detect sorts the log by timestamp,
// runs each enabled rule in registration order, and merges their conflicts:
// stamped with rule id, severity, and a content-addressed id, deduplicated
// by (kind, entity, attribute, timestamp), and ranked newest first.
//
// Each rule runs in isolation. A rule that returns an error or panics is
// logged and reported in its RuleResult; the remaining rules still run.
//
// The default rules are table driven by ir.RuleSet and compare attribute
// names and values case-insensitively.
package consistency
