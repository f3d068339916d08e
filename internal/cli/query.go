package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/dataset"
	"github.com/roach88/chronicle/internal/ir"
)

// QueryOptions holds flags shared by the timeline query commands.
type QueryOptions struct {
	*RootOptions
	Dataset  string // read from a dataset file instead of the database
	At       string
	Start    string
	End      string
	Interval int64
}

func (o *QueryOptions) addSourceFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Dataset, "dataset", "", "read entities and events from a YAML/JSON dataset instead of --db")
}

// StateResult is the output of the state command.
type StateResult struct {
	Timestamp int64         `json:"timestamp"`
	Snapshots []ir.Snapshot `json:"snapshots"`
}

func (r StateResult) String() string {
	var b strings.Builder
	for i, s := range r.Snapshots {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeSnapshot(&b, s)
	}
	if len(r.Snapshots) == 0 {
		fmt.Fprintf(&b, "no entities at %d", r.Timestamp)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSnapshot(b *strings.Builder, s ir.Snapshot) {
	fmt.Fprintf(b, "%s @ %d\n", s.EntityID, s.Timestamp)
	for _, id := range s.SortedAttributeIDs() {
		fmt.Fprintf(b, "  %s = %s\n", id, s.Values[id])
	}
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state [entity-id...] --at <timestamp>",
		Short: "Reconstruct entity state at a point in time",
		Long: `Reconstruct attribute values by replaying every event at or before
--at over the entity's initial attributes. Without entity ids every
entity in the log is reconstructed.

Timestamps are epoch milliseconds or RFC 3339.

Examples:
  chronicle state hero --at 2024-05-01T00:00:00Z
  chronicle state --at 1714521600000 --dataset story.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(opts, args, cmd)
		},
	}

	opts.addSourceFlag(cmd)
	cmd.Flags().StringVar(&opts.At, "at", "", "timestamp to reconstruct at (required)")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}

func runState(opts *QueryOptions, ids []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	at, err := parseTimestampFlag("at", opts.At)
	if err != nil {
		return report(f, err)
	}
	log, rs, err := opts.prepare(cmd)
	if err != nil {
		return report(f, err)
	}

	if len(ids) == 0 {
		for _, e := range log.Entities {
			ids = append(ids, e.ID)
		}
	}

	recon := opts.reconstructor(rs)
	result := StateResult{Timestamp: at, Snapshots: []ir.Snapshot{}}

	if len(ids) == 1 {
		initial, known := log.entity(ids[0])
		if !known && !hasEvents(log, ids[0]) {
			return report(f, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("entity not found: %s", ids[0])})
		}
		result.Snapshots = append(result.Snapshots, recon.StateAt(ids[0], at, log.Events, initial))
		return f.Success(result)
	}

	states := recon.StatesAt(ids, at, log.Events, log.Entities)
	for _, id := range ids {
		if s, ok := states[id]; ok {
			result.Snapshots = append(result.Snapshots, s)
		} else {
			f.VerboseLog("skipping unknown entity %s", id)
		}
	}
	return f.Success(result)
}

// HistoryResult is the output of the history command.
type HistoryResult struct {
	EntityID  string        `json:"entity_id"`
	Start     int64         `json:"start"`
	End       int64         `json:"end"`
	Interval  int64         `json:"interval"`
	Snapshots []ir.Snapshot `json:"snapshots"`
}

func (r HistoryResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s from %d to %d: %d snapshot(s)\n", r.EntityID, r.Start, r.End, len(r.Snapshots))
	for _, s := range r.Snapshots {
		writeSnapshot(&b, s)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <entity-id> --start <timestamp> --end <timestamp>",
		Short: "Sample an entity's state over a time range",
		Long: `Reconstruct an entity at every event in [start, end], at end, and
every --interval milliseconds from start. An interval of 0 samples only
at events and at end.

The default interval is CHRONICLE_SAMPLE_INTERVAL_MS.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	opts.addSourceFlag(cmd)
	cmd.Flags().StringVar(&opts.Start, "start", "", "range start (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "range end (required)")
	cmd.Flags().Int64Var(&opts.Interval, "interval", -1, "sample step in milliseconds (default $CHRONICLE_SAMPLE_INTERVAL_MS)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runHistory(opts *QueryOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	start, end, err := opts.window()
	if err != nil {
		return report(f, err)
	}
	log, rs, err := opts.prepare(cmd)
	if err != nil {
		return report(f, err)
	}

	interval := opts.Interval
	if interval < 0 {
		interval = opts.Config.SampleIntervalMS
	}

	initial, _ := log.entity(id)
	snaps := opts.reconstructor(rs).History(id, start, end, log.Events, initial, interval)
	return f.Success(HistoryResult{
		EntityID:  id,
		Start:     start,
		End:       end,
		Interval:  interval,
		Snapshots: snaps,
	})
}

// ExistsResult is the output of the exists command.
type ExistsResult struct {
	EntityID  string `json:"entity_id"`
	Timestamp int64  `json:"timestamp"`
	Exists    bool   `json:"exists"`
}

func (r ExistsResult) String() string {
	if r.Exists {
		return fmt.Sprintf("%s exists at %d", r.EntityID, r.Timestamp)
	}
	return fmt.Sprintf("%s does not exist at %d", r.EntityID, r.Timestamp)
}

// NewExistsCommand creates the exists command.
func NewExistsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exists <entity-id> --at <timestamp>",
		Short: "Report whether an entity exists at a point in time",
		Long: `An entity does not exist before it was created, nor once any event
at or before --at set a terminal value (the ruleset's terminal_values).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExists(opts, args[0], cmd)
		},
	}

	opts.addSourceFlag(cmd)
	cmd.Flags().StringVar(&opts.At, "at", "", "timestamp to check (required)")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}

func runExists(opts *QueryOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	at, err := parseTimestampFlag("at", opts.At)
	if err != nil {
		return report(f, err)
	}
	log, rs, err := opts.prepare(cmd)
	if err != nil {
		return report(f, err)
	}

	initial, _ := log.entity(id)
	exists := opts.reconstructor(rs).ExistsAt(id, at, log.Events, initial)
	return f.Success(ExistsResult{EntityID: id, Timestamp: at, Exists: exists})
}

// ChangesResult is the output of the changes command.
type ChangesResult struct {
	EntityID    string `json:"entity_id"`
	AttributeID string `json:"attribute_id"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Count       int    `json:"count"`
}

func (r ChangesResult) String() string {
	return fmt.Sprintf("%s.%s changed %d time(s) in [%d, %d]", r.EntityID, r.AttributeID, r.Count, r.Start, r.End)
}

// NewChangesCommand creates the changes command.
func NewChangesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "changes <entity-id> <attribute-id> --start <timestamp> --end <timestamp>",
		Short:         "Count attribute changes in a time range (inclusive)",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChanges(opts, args[0], args[1], cmd)
		},
	}

	opts.addSourceFlag(cmd)
	cmd.Flags().StringVar(&opts.Start, "start", "", "range start (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "range end (required)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runChanges(opts *QueryOptions, id, attr string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	start, end, err := opts.window()
	if err != nil {
		return report(f, err)
	}
	log, rs, err := opts.prepare(cmd)
	if err != nil {
		return report(f, err)
	}

	n := opts.reconstructor(rs).ChangeCount(id, attr, start, end, log.Events)
	return f.Success(ChangesResult{EntityID: id, AttributeID: attr, Start: start, End: end, Count: n})
}

// prepare loads the event log and ruleset for a query command.
func (o *QueryOptions) prepare(cmd *cobra.Command) (*eventLog, ir.RuleSet, error) {
	rs, err := o.loadRuleSet()
	if err != nil {
		return nil, ir.RuleSet{}, err
	}
	log, err := o.loadLog(cmd.Context(), o.Dataset)
	if err != nil {
		return nil, ir.RuleSet{}, err
	}
	return log, rs, nil
}

func (o *QueryOptions) window() (int64, int64, error) {
	start, err := parseTimestampFlag("start", o.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestampFlag("end", o.End)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestampFlag(name, value string) (int64, error) {
	ms, err := dataset.ParseMillis(value)
	if err != nil {
		return 0, &LoadError{Code: ErrCodeInvalidInput, Message: "invalid --" + name, Err: err}
	}
	return int64(ms), nil
}

func hasEvents(log *eventLog, entityID string) bool {
	for _, e := range log.Events {
		if e.EntityID == entityID {
			return true
		}
	}
	return false
}
