package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/dataset"
)

// ImportResult is the output of the import command.
type ImportResult struct {
	DB       string `json:"db"`
	Entities int    `json:"entities"`
	Events   int    `json:"events"`
	Skipped  int    `json:"skipped"` // events already in the log
}

func (r ImportResult) String() string {
	return fmt.Sprintf("Imported %d entities and %d events into %s (%d duplicate events skipped)",
		r.Entities, r.Events, r.DB, r.Skipped)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dataset>",
		Short: "Append a dataset to the event log",
		Long: `Write a YAML/JSON dataset into the SQLite event log, creating the
database if needed. Entities are upserted; events are append-only and an
event whose id is already stored is skipped. Events without an id get a
UUIDv7.

Example:
  chronicle import story.yaml --db story.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	ds, err := dataset.Load(path, dataset.UUIDv7Generator{})
	if err != nil {
		return report(f, &LoadError{Code: ErrCodeInvalidInput, Message: "failed to load dataset", Err: err})
	}

	st, err := opts.openStore(true)
	if err != nil {
		return report(f, err)
	}
	defer st.Close()

	for _, ent := range ds.Entities {
		if err := st.WriteEntity(ctx, ent); err != nil {
			return report(f, &LoadError{Code: ErrCodeStoreFailed, Message: "failed to write entity", Err: err})
		}
	}
	n, err := st.AppendEvents(ctx, ds.Events)
	if err != nil {
		return report(f, &LoadError{Code: ErrCodeStoreFailed, Message: "failed to append events", Err: err})
	}

	opts.Logger.Info("dataset imported",
		"path", path,
		"db", opts.Config.DB,
		"entities", len(ds.Entities),
		"events", n)

	return f.Success(ImportResult{
		DB:       opts.Config.DB,
		Entities: len(ds.Entities),
		Events:   n,
		Skipped:  len(ds.Events) - n,
	})
}
