package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pagebeacon.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagebeacon",
		Short: "Replay page visits through an activity beacon and collect what it sends",
		Long: `pagebeacon drives the client activity beacon through scripted page sessions
and records the page views, custom events and identify calls it reports.

Start a local collector with "pagebeacon collect", replay scenario files with
"pagebeacon replay", then summarize the stored events with "pagebeacon report".`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewReplayCmd())
	cmd.AddCommand(NewCollectCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
