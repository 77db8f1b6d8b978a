package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mscrnt/streamops-go/internal/rules"
)

// newRulesCommand mounts "rules validate", a config-time check that a YAML
// rule-definitions file is structurally sound before it's ever loaded into
// the store or matched against a live event.
func newRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate rule definitions",
	}
	cmd.AddCommand(newRulesValidateCommand())
	return cmd
}

func newRulesValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a rules YAML file without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := rules.LoadFile(args[0])
			if err != nil {
				return fatalf("load rules file: %w", err)
			}
			if len(defs) == 0 {
				return fatalf("rules file %s defines no rules", args[0])
			}

			var failures int
			for _, r := range defs {
				if err := rules.Validate(r); err != nil {
					failures++
					fmt.Fprintln(cmd.ErrOrStderr(), err)
				}
			}
			if failures > 0 {
				return fatalf("%d of %d rules failed validation", failures, len(defs))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rules valid\n", len(defs))
			return nil
		},
	}
}
