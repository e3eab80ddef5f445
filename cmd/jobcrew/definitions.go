// cmd/jobcrew/definitions.go
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"jobcrew/internal/jobcrew"
	"jobcrew/pkg/registry"
)

func newDefinitionsCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "Inspect or customise the agent and task definitions",
	}

	var force bool
	export := &cobra.Command{
		Use:   "export PATH",
		Short: "Write the built-in definitions to PATH for editing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := saveDefinitions(jobcrew.DefaultDefinitions(), path); err != nil {
				return err
			}
			fmt.Fprintf(out, "Definitions written to %s\n", path)
			fmt.Fprintf(out, "Run with: jobcrew --definitions %s\n", path)
			return nil
		},
	}
	export.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	validate := &cobra.Command{
		Use:   "validate [PATH]",
		Short: "Check a definitions file (the built-in one when PATH is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				reg *registry.CrewRegistry
				err error
			)
			if len(args) == 1 {
				reg, err = registry.LoadRegistry(args[0])
			} else {
				reg, err = registry.Parse(jobcrew.DefaultDefinitions())
			}
			if err != nil {
				return fmt.Errorf("definitions validation failed: %w", err)
			}

			for _, a := range reg.Agents {
				for _, id := range a.Tools {
					if id != jobcrew.ToolJobSearch && id != jobcrew.ToolJobPage {
						return fmt.Errorf("definitions validation failed: agent %q uses unknown tool %q", a.ID, id)
					}
				}
			}

			fmt.Fprintf(out, "Definitions validation passed. Found %d agents and %d tasks.\n", len(reg.Agents), len(reg.Tasks))
			return nil
		},
	}

	cmd.AddCommand(export, validate)
	return cmd
}

func saveDefinitions(data []byte, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write definitions file: %w", err)
	}
	return nil
}
