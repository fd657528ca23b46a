package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagebeacon/internal/collector"
	"github.com/nao1215/pagebeacon/internal/config"
	"github.com/nao1215/pagebeacon/internal/database"
	"github.com/nao1215/pagebeacon/internal/log"
)

// NewCollectCmd creates the collect command.
func NewCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run a local collection endpoint that stores beacon events",
		Long: `Collect serves the beacon wire protocol and stores every accepted event in
a SQLite database under the XDG data directory.

Each response carries a session id that the beacon echoes back in its
correlation header, so events of one visit share a session.

Examples:
  # Listen on the default address (` + config.DefaultListenAddress + `)
  pagebeacon collect

  # Listen on all interfaces and keep the database elsewhere
  pagebeacon collect -l :8700 --db-dir ./data`,
		Args: cobra.NoArgs,
		RunE: runCollectCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress,
		"Address the collector listens on")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().String("cache-header", "",
		"Header carrying the session id (default X-Beacon-Cache)")

	return cmd
}

// runCollectCmd executes the collect command.
func runCollectCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildCollectConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	return runCollect(ctx, cfg, logger, cmd.OutOrStdout(), nil)
}

// buildCollectConfig creates a Config from the collect command flags.
func buildCollectConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	if cfg.ListenAddress, err = cmd.Flags().GetString("listen"); err != nil {
		return nil, err
	}
	if cfg.CacheHeader, err = cmd.Flags().GetString("cache-header"); err != nil {
		return nil, err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	return cfg, nil
}

// runCollect serves until ctx is cancelled. ready, when non-nil, receives
// the bound address.
func runCollect(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer, ready func(net.Addr)) error {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "path", db.Path())

	srv := collector.New(db,
		collector.WithLogger(logger),
		collector.WithCacheHeader(cfg.CacheHeader),
	)
	return srv.Run(ctx, cfg.ListenAddress, func(addr net.Addr) {
		fmt.Fprintf(stdout, "Collecting on http://%s%s\n", addr, collector.SendPath)
		fmt.Fprintf(stdout, "Database: %s\n", db.Path())
		fmt.Fprintln(stdout, "Press Ctrl+C to stop.")
		if ready != nil {
			ready(addr)
		}
	})
}
