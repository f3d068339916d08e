package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/compiler"
	"github.com/roach88/chronicle/internal/dataset"
)

// ErrCodeCompile marks a ruleset that failed CUE compilation or schema
// checks, as opposed to the semantic E2xx codes from compiler.Validate.
const ErrCodeCompile = "E100"

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Files  int                        `json:"files"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

func (r ValidationResult) String() string {
	if r.Valid {
		return fmt.Sprintf("✓ %d file(s) valid", r.Files)
	}

	var b strings.Builder
	b.WriteString("✗ Validation failed\n")
	for _, e := range r.Errors {
		b.WriteString("\n")
		if e.Line > 0 {
			fmt.Fprintf(&b, "line %d\n", e.Line)
		}
		fmt.Fprintf(&b, "  %s: %s: %s\n", e.Code, e.Field, e.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate rulesets and datasets without running checks",
		Long: `Validate CUE ruleset documents (.cue) and datasets (.yaml, .yml, .json).

Rulesets are compiled against the ruleset schema and checked for semantic
problems such as self dependencies or empty transition targets. Datasets
are parsed and every attribute value is checked against its type.

Exit codes:
  0 - All files valid
  1 - One or more files invalid
  2 - Command error (file not found)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	result := ValidationResult{Files: len(paths)}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return report(f, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path), Err: err})
		}
		f.VerboseLog("Validating %s", path)

		switch strings.ToLower(filepath.Ext(path)) {
		case ".cue":
			result.Errors = append(result.Errors, validateRuleSetFile(path)...)
		case ".yaml", ".yml", ".json":
			result.Errors = append(result.Errors, validateDatasetFile(path)...)
		default:
			return report(f, &LoadError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("unsupported file type: %s", path)})
		}
	}

	if len(result.Errors) == 0 {
		result.Valid = true
		return f.Success(result)
	}

	msg := fmt.Sprintf("validation failed with %d error(s)", len(result.Errors))
	if err := f.Failure(result.Errors[0].Code, result.Errors[0].Message, result); err != nil {
		return err
	}
	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, msg)
}

func validateRuleSetFile(path string) []compiler.ValidationError {
	rs, err := compiler.LoadRuleSetFile(path)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			ve := compiler.ValidationError{Field: ce.Field, Message: ce.Message, Code: ErrCodeCompile}
			if ce.Pos.IsValid() {
				ve.Line = ce.Pos.Line()
			}
			return []compiler.ValidationError{ve}
		}
		return []compiler.ValidationError{{Field: path, Message: err.Error(), Code: ErrCodeCompile}}
	}
	return compiler.Validate(rs)
}

func validateDatasetFile(path string) []compiler.ValidationError {
	_, err := dataset.Load(path, nil)
	if err == nil {
		return nil
	}

	// Parse joins every problem; report them one by one.
	var multi interface{ Unwrap() []error }
	if !errors.As(err, &multi) {
		return []compiler.ValidationError{{Field: path, Message: err.Error(), Code: ErrCodeInvalidInput}}
	}
	var out []compiler.ValidationError
	for _, e := range multi.Unwrap() {
		out = append(out, compiler.ValidationError{Field: path, Message: e.Error(), Code: ErrCodeInvalidInput})
	}
	return out
}
