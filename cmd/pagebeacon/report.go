package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagebeacon/internal/config"
	"github.com/nao1215/pagebeacon/internal/database"
	"github.com/nao1215/pagebeacon/internal/report"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the events stored by the collector",
		Long: `Report reads the collector database and prints totals, the most viewed
pages, the most frequent custom events, referrers and the latest events.

Examples:
  # Summarize every website
  pagebeacon report

  # One website as Markdown, listing the last 50 events
  pagebeacon report -w shop-1 -n 50 -m -o report.md`,
		Args: cobra.NoArgs,
		RunE: runReportCmd,
	}

	cmd.Flags().StringP("website", "w", "",
		"Only include events of this website id")
	cmd.Flags().IntP("limit", "n", config.DefaultReportLimit,
		"Number of recent events to list (0 lists none)")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	addReportFlags(cmd)

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildReportConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	return runReport(cmd.Context(), cfg, cmd.OutOrStdout())
}

// buildReportConfig creates a Config from the report command flags.
func buildReportConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	if cfg.Website, err = cmd.Flags().GetString("website"); err != nil {
		return nil, err
	}
	if cfg.ReportLimit, err = cmd.Flags().GetInt("limit"); err != nil {
		return nil, err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	if err := readReportFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runReport loads the summary and recent events and writes them.
func runReport(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(cfg.DBDir, opts)
	if err != nil {
		return err
	}
	defer db.Close()

	summary, err := db.Summarize(ctx, cfg.Website)
	if err != nil {
		return fmt.Errorf("failed to summarize events: %w", err)
	}
	rep := &report.Report{Generated: time.Now(), Summary: summary}
	if cfg.ReportLimit > 0 {
		rep.Recent, err = db.ListEvents(ctx, cfg.Website, cfg.ReportLimit)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
	}

	output, closeOutput, err := openOutput(cfg, stdout)
	if err != nil {
		return err
	}
	if _, err := newReportWriter(cfg, output).Write(rep); err != nil {
		_ = closeOutput() //nolint:errcheck // the write error is reported
		return fmt.Errorf("failed to write report: %w", err)
	}
	return closeOutput()
}
