package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mscrnt/streamops-go/internal/config"
)

// newConfigCommand mounts "config export"/"config import" for backing up
// and restoring a deployment's flat settings without going through the API.
func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Export or import the flat configuration store",
	}
	cmd.AddCommand(newConfigExportCommand())
	cmd.AddCommand(newConfigImportCommand())
	return cmd
}

func newConfigExportCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current configuration as YAML, secret values masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fatalf("load config: %w", err)
			}

			masked := make(map[string]config.ConfigValue)
			for k, v := range cfg.All() {
				if v.Secret {
					v.Value = ""
					v.Encrypted = false
				}
				masked[k] = v
			}

			data, err := yaml.Marshal(masked)
			if err != nil {
				return fatalf("marshal config: %w", err)
			}

			if out == "" {
				fmt.Fprint(cmd.OutOrStdout(), string(data))
				return nil
			}
			return os.WriteFile(out, data, 0o600)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	return cmd
}

func newConfigImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge key/value/kind entries from a YAML file into the config store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fatalf("load config: %w", err)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fatalf("read import file: %w", err)
			}
			var incoming map[string]config.ConfigValue
			if err := yaml.Unmarshal(data, &incoming); err != nil {
				return fatalf("parse import file: %w", err)
			}

			for key, cv := range incoming {
				if cv.Secret && cv.Value == "" {
					// Masked export entries carry no value; skip rather than
					// overwrite a live secret with an empty one.
					continue
				}
				if err := cfg.Set(key, cv.Value, cv.Kind, cv.Secret); err != nil {
					return fatalf("set %s: %w", key, err)
				}
			}

			if err := cfg.Save(); err != nil {
				return fatalf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d keys\n", len(incoming))
			return nil
		},
	}
}
