// Package app wires the config/logger/store/watcher/dispatcher/rule-engine/
// guardrail/API components into a runnable daemon and exposes the cobra
// command tree both cmd/streamops and cmd/streamopsd mount: flag/config
// parsing, component construction in dependency order, and signal-driven
// graceful shutdown, generalized from a single worker pool into the full
// supervisor tree this pipeline needs.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configPath string

// Execute builds and runs the root command, returning the first error a
// subcommand reports.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand assembles the "streamops" command tree: serve, rules
// validate, and config export/import.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "streamops",
		Short: "Local media-processing automation pipeline",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/streamops.yaml", "path to the config file")

	root.AddCommand(newServeCommand())
	root.AddCommand(newRulesCommand())
	root.AddCommand(newConfigCommand())
	return root
}

func fatalf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
