package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagebeacon/internal/config"
)

//go:embed templates/pagebeacon.yaml templates/scenario.yaml
var templates embed.FS

// scenarioFileName is the default output of "init --scenario".
const scenarioFileName = "scenario.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a profile file or an example scenario",
		Long: `Initialize creates a new .pagebeacon profile file in the current directory.

The generated file includes default screen and language settings and
commented examples of per-site profiles. With --scenario, an example
scenario to replay is written instead.

Examples:
  # Create .pagebeacon in current directory
  pagebeacon init

  # Create an example scenario
  pagebeacon init --scenario

  # Force overwrite existing file
  pagebeacon init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing file")
	cmd.Flags().BoolP("scenario", "s", false,
		"Write an example scenario instead of a profile file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	scenario, err := cmd.Flags().GetBool("scenario")
	if err != nil {
		return err
	}

	name := "templates/pagebeacon.yaml"
	if scenario {
		name = "templates/scenario.yaml"
		if !cmd.Flags().Changed("output") {
			outputPath = scenarioFileName
		}
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := templates.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	out := cmd.OutOrStdout()
	if scenario {
		fmt.Fprintf(out, "Created scenario: %s\n", outputPath)
		fmt.Fprintf(out, "\nReplay it with: pagebeacon replay %s\n", outputPath)
		return nil
	}
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure per-site settings such as:")
	fmt.Fprintln(out, "  - Collection endpoint and request headers")
	fmt.Fprintln(out, "  - Screen size and language")
	fmt.Fprintln(out, "  - User-Agent")
	return nil
}
