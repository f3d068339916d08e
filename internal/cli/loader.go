package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/chronicle/internal/compiler"
	"github.com/roach88/chronicle/internal/consistency"
	"github.com/roach88/chronicle/internal/dataset"
	"github.com/roach88/chronicle/internal/ir"
	"github.com/roach88/chronicle/internal/store"
	"github.com/roach88/chronicle/internal/timeline"
)

// eventLog is everything a query or check command reads.
type eventLog struct {
	Entities []ir.Entity
	Events   []ir.Event
}

// entity returns the entity with id, or a bare entity created at the
// beginning of time when the log never declared it.
func (l *eventLog) entity(id string) (ir.Entity, bool) {
	for _, e := range l.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return ir.Entity{ID: id}, false
}

// loadLog reads the event log from datasetPath when given, otherwise from
// the configured store.
func (o *RootOptions) loadLog(ctx context.Context, datasetPath string) (*eventLog, error) {
	if datasetPath != "" {
		ds, err := dataset.Load(datasetPath, nil)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInvalidInput, Message: "failed to load dataset", Err: err}
		}
		o.Logger.Debug("dataset loaded",
			"path", datasetPath,
			"entities", len(ds.Entities),
			"events", len(ds.Events))
		return &eventLog{Entities: ds.Entities, Events: ds.Events}, nil
	}

	st, err := o.openStore(false)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	entities, err := st.ReadEntities(ctx)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStoreFailed, Message: "failed to read entities", Err: err}
	}
	events, err := st.ReadEvents(ctx, store.EventFilter{})
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStoreFailed, Message: "failed to read events", Err: err}
	}
	o.Logger.Debug("event log loaded",
		"db", o.Config.DB,
		"entities", len(entities),
		"events", len(events))
	return &eventLog{Entities: entities, Events: events}, nil
}

// openStore opens the configured database. Unless create is set, a
// missing database file is an error rather than a fresh empty log.
func (o *RootOptions) openStore(create bool) (*store.Store, error) {
	path := o.Config.DB
	if !create && path != ":memory:" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", path)}
		}
	}
	st, err := store.Open(path, store.WithBusyTimeout(o.Config.BusyTimeout), store.WithLogger(o.Logger))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStoreFailed, Message: "failed to open database", Err: err}
	}
	return st, nil
}

// loadRuleSet compiles the configured ruleset, or returns the built-in
// tables when none is configured.
func (o *RootOptions) loadRuleSet() (ir.RuleSet, error) {
	if o.Config.RuleSet == "" {
		return ir.DefaultRuleSet(), nil
	}

	rs, err := compiler.LoadRuleSetFile(o.Config.RuleSet)
	if err != nil {
		return ir.RuleSet{}, &LoadError{Code: ErrCodeRuleSet, Message: "failed to compile ruleset", Err: err}
	}
	if errs := compiler.Validate(rs); len(errs) > 0 {
		return ir.RuleSet{}, &LoadError{Code: ErrCodeRuleSet, Message: "invalid ruleset", Err: errs[0], Details: errs}
	}
	return *rs, nil
}

// reconstructor builds a Reconstructor from configuration. Terminal
// values come from the ruleset so ExistsAt and the resurrection rule
// agree.
func (o *RootOptions) reconstructor(rs ir.RuleSet) *timeline.Reconstructor {
	return timeline.New(
		timeline.WithMaxCacheSize(o.Config.CacheSize),
		timeline.WithIndexPolicy(o.Config.IndexPolicy),
		timeline.WithParallelism(o.Config.Parallelism),
		timeline.WithTerminalValues(rs.TerminalValues...),
		timeline.WithLogger(o.Logger),
		timeline.WithMetrics(o.Recorder),
	)
}

// engine builds the rule engine with the default rules over rs.
func (o *RootOptions) engine(rs ir.RuleSet) (*consistency.Engine, error) {
	eng, err := consistency.NewWithDefaults(rs,
		consistency.WithLogger(o.Logger),
		consistency.WithMetrics(o.Recorder),
	)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRuleSet, Message: "failed to build rule engine", Err: err}
	}
	return eng, nil
}

// LoadError is a failure to obtain command input, tagged with the CLI
// error code it is reported under.
type LoadError struct {
	Code    string
	Message string
	Err     error
	Details any // reported instead of Err when set
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// report prints a load error through f and converts it to an ExitError.
// Any other error is reported as generic.
func report(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	details := loadErr.Details
	if details == nil && loadErr.Err != nil {
		details = loadErr.Err.Error()
	}
	if outErr := f.Error(loadErr.Code, loadErr.Message, details); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, loadErr.Message, loadErr.Err)
}
