package consistency

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/metrics"
)

// CheckFunc inspects a View and returns the conflicts it finds.
// Returning an error marks the rule as failed for this pass only.
type CheckFunc func(View) ([]ir.Conflict, error)

// Rule is a registered consistency check.
type Rule struct {
	ID          string
	Name        string
	Description string
	Enabled     bool

	// Severity is stamped onto conflicts that leave theirs unset.
	Severity ir.Severity

	Check CheckFunc
}

// RuleResult is the outcome of one rule in one detection pass: either its
// conflicts or the reason it produced none.
type RuleResult struct {
	RuleID    string
	Conflicts []ir.Conflict
	Err       error
}

// Report is the full outcome of a detection pass.
type Report struct {
	// Conflicts holds the deduplicated conflicts, newest first.
	Conflicts []ir.Conflict

	// Results holds one entry per enabled rule, in registry order.
	Results []RuleResult
}

// Failed returns the results whose rule failed.
func (r Report) Failed() []RuleResult {
	var failed []RuleResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Engine runs registered rules over an event log.
//
// Thread-safety: registry and history are guarded by an RWMutex. Detect
// snapshots the registry, then runs rules sequentially without holding it.
//
// INVARIANTS:
//   - rules run in registration order; replacing a rule keeps its slot
//   - a failing or panicking rule never aborts detection
//   - Detect never records history
type Engine struct {
	mu      sync.RWMutex
	rules   []Rule
	history []ir.Conflict

	logger  *slog.Logger
	metrics *metrics.Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine with an empty registry.
func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewWithDefaults creates an Engine with the default rules built from rs,
// then applies rs.Overrides.
func NewWithDefaults(rs ir.RuleSet, opts ...Option) (*Engine, error) {
	e := New(opts...)
	for _, r := range DefaultRules(rs) {
		if err := e.AddRule(r); err != nil {
			return nil, err
		}
	}
	if err := e.ApplyOverrides(rs.Overrides); err != nil {
		return nil, err
	}
	return e, nil
}

// AddRule registers r. A rule with an existing id is replaced in place.
func (e *Engine) AddRule(r Rule) error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRule)
	}
	if r.Check == nil {
		return fmt.Errorf("%w: rule %q has no check", ErrInvalidRule, r.ID)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: rule %q has invalid severity %d", ErrInvalidRule, r.ID, int(r.Severity))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if i := e.indexOf(r.ID); i >= 0 {
		e.rules[i] = r
		return nil
	}
	e.rules = append(e.rules, r)
	return nil
}

// RemoveRule unregisters id and reports whether it was registered.
func (e *Engine) RemoveRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return false
	}
	e.rules = slices.Delete(e.rules, i, i+1)
	return true
}

// ToggleRule enables or disables id and reports whether it was registered.
func (e *Engine) ToggleRule(id string, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return false
	}
	e.rules[i].Enabled = enabled
	return true
}

// SetSeverity changes the severity of a registered rule.
func (e *Engine) SetSeverity(id string, sev ir.Severity) error {
	if !sev.Valid() {
		return fmt.Errorf("%w: invalid severity %d", ErrInvalidRule, int(sev))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownRule, id)
	}
	e.rules[i].Severity = sev
	return nil
}

// ApplyOverrides applies per-rule enablement and severity overrides.
// Every override must name a registered rule.
func (e *Engine) ApplyOverrides(overrides map[string]ir.RuleOverride) error {
	for _, id := range ir.SortedKeys(overrides) {
		o := overrides[id]
		if o.Enabled != nil && !e.ToggleRule(id, *o.Enabled) {
			return fmt.Errorf("override: %w: %q", ErrUnknownRule, id)
		}
		if o.Severity != 0 {
			if err := e.SetSeverity(id, o.Severity); err != nil {
				return fmt.Errorf("override: %w", err)
			}
		}
	}
	return nil
}

// Rules returns the registered rules in registration order.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.rules)
}

// Rule returns the registered rule with the given id.
func (e *Engine) Rule(id string) (Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if i := e.indexOf(id); i >= 0 {
		return e.rules[i], true
	}
	return Rule{}, false
}

// indexOf must be called with mu held.
func (e *Engine) indexOf(id string) int {
	return slices.IndexFunc(e.rules, func(r Rule) bool { return r.ID == id })
}

// Detect sorts events ascending by timestamp (stable), runs every enabled
// rule against them, and returns the deduplicated conflicts newest first.
//
// Conflicts are deduplicated by (kind, entity, attribute, timestamp); the
// first one produced, in rule registration order, is kept.
func (e *Engine) Detect(events []ir.Event, entities []ir.Entity) Report {
	start := time.Now()
	view := NewView(events, entities)

	var (
		all     []ir.Conflict
		results []RuleResult
	)
	for _, r := range e.Rules() {
		if !r.Enabled {
			continue
		}

		res := runRule(r, view)
		results = append(results, res)
		if res.Err != nil {
			e.logger.Warn("rule failed, continuing detection",
				"rule", r.ID,
				"error", res.Err)
			e.metrics.RuleFailed(r.ID)
			continue
		}
		all = append(all, res.Conflicts...)
	}

	conflicts := dedupe(all)
	sortNewestFirst(conflicts)

	for _, c := range conflicts {
		e.metrics.ConflictDetected(string(c.Kind))
	}
	e.metrics.ObserveDetect(time.Since(start).Seconds())

	e.logger.Debug("detection complete",
		"events", len(events),
		"entities", len(entities),
		"rules", len(results),
		"conflicts", len(conflicts))

	return Report{Conflicts: conflicts, Results: results}
}

// DetectConflicts returns Detect's conflicts.
func (e *Engine) DetectConflicts(events []ir.Event, entities []ir.Entity) []ir.Conflict {
	return e.Detect(events, entities).Conflicts
}

// CheckSingleEvent reruns full detection over existing plus candidate.
// Cost is proportional to the whole log; use it for pre-flight checks of
// one new event, not bulk validation.
func (e *Engine) CheckSingleEvent(candidate ir.Event, existing []ir.Event, entities []ir.Entity) []ir.Conflict {
	events := make([]ir.Event, 0, len(existing)+1)
	events = append(events, existing...)
	events = append(events, candidate)
	return e.DetectConflicts(events, entities)
}

// CandidateConflicts reruns full detection over existing plus candidate and
// returns the conflicts that name the candidate, newest first.
//
// Conflicts are taken from each rule's output before deduplication. A prior
// offender sharing the candidate's dedup key (every event after the same
// death, for example) would otherwise be kept in its place.
func (e *Engine) CandidateConflicts(candidate ir.Event, existing []ir.Event, entities []ir.Entity) []ir.Conflict {
	events := make([]ir.Event, 0, len(existing)+1)
	events = append(events, existing...)
	events = append(events, candidate)

	var involved []ir.Conflict
	for _, res := range e.Detect(events, entities).Results {
		for _, c := range res.Conflicts {
			if slices.Contains(c.EventIDs(), candidate.ID) {
				involved = append(involved, c)
			}
		}
	}
	conflicts := dedupe(involved)
	sortNewestFirst(conflicts)
	return conflicts
}

// runRule evaluates one rule, converting a returned error or a panic into
// RuleResult.Err, and stamps rule id, severity, and content id on every
// conflict.
func runRule(r Rule, v View) (res RuleResult) {
	res.RuleID = r.ID
	defer func() {
		if p := recover(); p != nil {
			res.Conflicts = nil
			res.Err = newPanicError(r.ID, p)
		}
	}()

	conflicts, err := r.Check(v)
	if err != nil {
		res.Err = newFailedError(r.ID, err)
		return res
	}

	res.Conflicts = make([]ir.Conflict, len(conflicts))
	for i, c := range conflicts {
		res.Conflicts[i] = stamp(r, c)
	}
	return res
}

func stamp(r Rule, c ir.Conflict) ir.Conflict {
	c.RuleID = r.ID
	if !c.Severity.Valid() {
		c.Severity = r.Severity
	}
	if c.Events == nil {
		c.Events = []ir.Event{}
	}
	if c.Suggestions == nil {
		c.Suggestions = []string{}
	}
	c.ID = ir.MustConflictID(r.ID, c.Key(), c.EventIDs())
	return c
}

// dedupe keeps the first conflict for each dedup key.
func dedupe(conflicts []ir.Conflict) []ir.Conflict {
	seen := make(map[ir.DedupKey]bool, len(conflicts))
	out := make([]ir.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		k := c.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

func sortNewestFirst(conflicts []ir.Conflict) {
	slices.SortStableFunc(conflicts, func(a, b ir.Conflict) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return 0
		}
	})
}
