package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RuleInfo describes one registered rule.
type RuleInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	Severity    string `json:"severity"`
}

// RulesResult is the output of the rules command.
type RulesResult struct {
	Source string     `json:"source"` // ruleset path or "built-in"
	Rules  []RuleInfo `json:"rules"`
}

func (r RulesResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rules (%s):\n", r.Source)
	for _, rule := range r.Rules {
		state := "on "
		if !rule.Enabled {
			state = "off"
		}
		fmt.Fprintf(&b, "  [%s] %-22s %-8s %s\n", state, rule.ID, rule.Severity, rule.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List consistency rules after ruleset overrides",
		Long: `List the registered consistency rules in evaluation order, with the
enablement and severity that --ruleset (or CHRONICLE_RULESET) leaves them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(rootOpts, cmd)
		},
	}

	return cmd
}

func runRules(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	rs, err := opts.loadRuleSet()
	if err != nil {
		return report(f, err)
	}
	eng, err := opts.engine(rs)
	if err != nil {
		return report(f, err)
	}

	result := RulesResult{Source: "built-in", Rules: []RuleInfo{}}
	if opts.Config.RuleSet != "" {
		result.Source = opts.Config.RuleSet
	}
	for _, r := range eng.Rules() {
		result.Rules = append(result.Rules, RuleInfo{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Enabled:     r.Enabled,
			Severity:    r.Severity.String(),
		})
	}
	return f.Success(result)
}
