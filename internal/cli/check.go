package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/consistency"
	"github.com/roach88/chronicle/internal/dataset"
	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Dataset   string
	Candidate string // dataset file whose events are checked before insertion
	Record    bool   // persist detected conflicts to --db
	FailOn    string // severity at which the command exits 1
}

// CheckResult is the output of the check command.
type CheckResult struct {
	Mode         string                 `json:"mode"` // "audit" or "candidate"
	Conflicts    []ir.Conflict          `json:"conflicts"`
	Statistics   consistency.Statistics `json:"statistics"`
	RuleFailures []string               `json:"rule_failures,omitempty"`
	Recorded     int                    `json:"recorded,omitempty"`
}

func (r CheckResult) String() string {
	var b strings.Builder
	for _, c := range r.Conflicts {
		fmt.Fprintf(&b, "[%s] %s %s@%d: %s\n", c.Severity, c.Kind, c.EntityID, c.Timestamp, c.Title)
		if c.Description != "" {
			fmt.Fprintf(&b, "    %s\n", c.Description)
		}
	}
	for _, f := range r.RuleFailures {
		fmt.Fprintf(&b, "rule failed: %s\n", f)
	}

	var parts []string
	for _, sev := range slices.Backward(ir.Severities) {
		if n := r.Statistics.BySeverity[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	summary := fmt.Sprintf("%d conflict(s)", r.Statistics.Total)
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}
	if r.Recorded > 0 {
		summary += fmt.Sprintf(", %d newly recorded", r.Recorded)
	}
	b.WriteString(summary)
	return b.String()
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Detect logical inconsistencies in the event log",
		Long: `Run every enabled consistency rule over the event log and report
conflicts newest first.

With --candidate, each event in the candidate file is checked against the
existing log as if it were about to be inserted, and only conflicts that
involve the candidate are reported.

Exit codes:
  0 - No conflict at or above --fail-on (or --fail-on unset)
  1 - At least one conflict at or above --fail-on
  2 - Command error (missing database, invalid ruleset, etc.)

Examples:
  chronicle check --dataset story.yaml
  chronicle check --candidate next.yaml --fail-on high
  chronicle check --record --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "read entities and events from a YAML/JSON dataset instead of --db")
	cmd.Flags().StringVar(&opts.Candidate, "candidate", "", "dataset file of events to pre-flight against the log")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "record detected conflicts in --db")
	cmd.Flags().StringVar(&opts.FailOn, "fail-on", "", "exit 1 when a conflict reaches this severity (low|medium|high|critical)")

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	var failOn ir.Severity
	if opts.FailOn != "" {
		sev, err := ir.ParseSeverity(opts.FailOn)
		if err != nil {
			return report(f, &LoadError{Code: ErrCodeInvalidInput, Message: "invalid --fail-on", Err: err})
		}
		failOn = sev
	}

	rs, err := opts.loadRuleSet()
	if err != nil {
		return report(f, err)
	}
	log, err := opts.loadLog(ctx, opts.Dataset)
	if err != nil {
		return report(f, err)
	}
	eng, err := opts.engine(rs)
	if err != nil {
		return report(f, err)
	}

	result := CheckResult{Mode: "audit"}
	if opts.Candidate == "" {
		rep := eng.Detect(log.Events, log.Entities)
		result.Conflicts = rep.Conflicts
		for _, failed := range rep.Failed() {
			result.RuleFailures = append(result.RuleFailures, failed.Err.Error())
		}
	} else {
		result.Mode = "candidate"
		if result.Conflicts, err = checkCandidates(opts, eng, log); err != nil {
			return report(f, err)
		}
	}
	result.Statistics = eng.Statistics(result.Conflicts)
	f.VerboseLog("%d rule(s) ran over %d event(s)", len(eng.Rules()), len(log.Events))

	if opts.Record {
		n, err := recordConflicts(ctx, opts, eng, result.Conflicts)
		if err != nil {
			return report(f, err)
		}
		result.Recorded = n
	}

	if failOn != 0 && consistency.MaxSeverity(result.Conflicts) >= failOn {
		msg := fmt.Sprintf("conflicts at or above %s", failOn)
		if err := f.Failure(ErrCodeConflicts, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return f.Success(result)
}

// checkCandidates pre-flights each candidate event independently against
// the existing log.
func checkCandidates(opts *CheckOptions, eng *consistency.Engine, log *eventLog) ([]ir.Conflict, error) {
	ds, err := dataset.Load(opts.Candidate, nil)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidInput, Message: "failed to load candidate", Err: err}
	}
	if len(ds.Events) == 0 {
		return nil, &LoadError{Code: ErrCodeInvalidInput, Message: "candidate file has no events"}
	}

	entities := log.Entities
	for _, ent := range ds.Entities {
		if _, known := log.entity(ent.ID); !known {
			entities = append(entities, ent)
		}
	}

	conflicts := []ir.Conflict{}
	seen := make(map[string]bool)
	for _, cand := range ds.Events {
		cand, err := coerceCandidate(cand, entities)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInvalidInput, Message: "invalid candidate", Err: err}
		}
		for _, c := range eng.CandidateConflicts(cand, log.Events, entities) {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			conflicts = append(conflicts, c)
		}
	}
	return conflicts, nil
}

// coerceCandidate types a candidate's values by the attribute it targets
// in the existing log.
func coerceCandidate(ev ir.Event, entities []ir.Entity) (ir.Event, error) {
	for _, ent := range entities {
		if ent.ID != ev.EntityID {
			continue
		}
		attr, ok := ent.Attribute(ev.AttributeID)
		if !ok {
			return ev, nil
		}
		ev.NewValue = attr.Coerce(ev.NewValue)
		if err := attr.Validate(ev.NewValue); err != nil {
			return ir.Event{}, fmt.Errorf("event %q: %w", ev.ID, err)
		}
		return ev, nil
	}
	return ev, nil
}

func recordConflicts(ctx context.Context, opts *CheckOptions, eng *consistency.Engine, conflicts []ir.Conflict) (int, error) {
	st, err := opts.openStore(true)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	n, err := st.WriteConflicts(ctx, conflicts, time.Now().UnixMilli())
	if err != nil {
		return 0, &LoadError{Code: ErrCodeStoreFailed, Message: "failed to record conflicts", Err: err}
	}
	eng.RecordHistory(conflicts...)
	opts.Logger.Info("conflicts recorded",
		"db", opts.Config.DB,
		"detected", len(conflicts),
		"new", n,
		"history", len(eng.History()))
	return n, nil
}

// ConflictsOptions holds flags for the conflicts command.
type ConflictsOptions struct {
	*RootOptions
	MinSeverity string
}

// ConflictsResult is the output of the conflicts command.
type ConflictsResult struct {
	Conflicts []store.RecordedConflict `json:"conflicts"`
}

func (r ConflictsResult) String() string {
	if len(r.Conflicts) == 0 {
		return "no recorded conflicts"
	}
	var b strings.Builder
	for _, c := range r.Conflicts {
		fmt.Fprintf(&b, "%s [%s] %s %s@%d: %s\n",
			time.UnixMilli(c.RecordedAt).UTC().Format(time.RFC3339), c.Severity, c.Kind, c.EntityID, c.Timestamp, c.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewConflictsCommand creates the conflicts command.
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConflictsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "conflicts [entity-id...]",
		Short:         "List conflicts recorded by check --record",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConflicts(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MinSeverity, "min-severity", "", "only list conflicts at or above this severity")

	return cmd
}

func runConflicts(opts *ConflictsOptions, ids []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	filter := store.ConflictFilter{EntityIDs: ids}
	if opts.MinSeverity != "" {
		sev, err := ir.ParseSeverity(opts.MinSeverity)
		if err != nil {
			return report(f, &LoadError{Code: ErrCodeInvalidInput, Message: "invalid --min-severity", Err: err})
		}
		filter.MinSeverity = sev
	}

	st, err := opts.openStore(false)
	if err != nil {
		return report(f, err)
	}
	defer st.Close()

	recorded, err := st.ReadConflicts(cmd.Context(), filter)
	if err != nil {
		return report(f, &LoadError{Code: ErrCodeStoreFailed, Message: "failed to read conflicts", Err: err})
	}
	return f.Success(ConflictsResult{Conflicts: recorded})
}
