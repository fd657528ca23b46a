package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagebeacon/internal/beacon"
	"github.com/nao1215/pagebeacon/internal/config"
	"github.com/nao1215/pagebeacon/internal/log"
	"github.com/nao1215/pagebeacon/internal/replay"
)

// errReplayFailed is returned when at least one scenario failed, so that
// scripted runs exit non-zero.
var errReplayFailed = errors.New("replay failed")

// NewReplayCmd creates the replay command.
func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [scenario.yaml]...",
		Short: "Replay scripted page visits through the activity beacon",
		Long: `Replay loads each scenario's page, starts the activity beacon on it and
performs the scripted steps: history navigation, title changes, clicks,
manual track and identify calls.

Every beacon request goes to the collection endpoint. Scenarios run
concurrently; a summary of what each one sent is printed at the end.

Examples:
  # Replay against a local collector ("pagebeacon collect")
  pagebeacon replay checkout.yaml

  # Replay many scenarios, two at a time, against another endpoint
  pagebeacon replay -b 2 -e https://analytics.example.com/api/send scenarios/*.yaml

  # Route beacon requests through a SOCKS5 proxy
  pagebeacon replay --proxy 127.0.0.1:1080 checkout.yaml

  # Write a Markdown summary
  pagebeacon replay -m -o replay.md checkout.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: runReplayCmd,
	}

	cmd.Flags().StringP("endpoint", "e", config.DefaultEndpoint,
		"Collection URL beacons post to")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address for beacon requests (e.g., 127.0.0.1:1080)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each beacon request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent of beacon requests")
	cmd.Flags().String("cache-header", "",
		"Header carrying the correlation token (default "+beacon.DefaultCacheHeader+")")
	cmd.Flags().String("event-attribute", "",
		"Attribute marking tracked elements (default "+beacon.DefaultEventAttribute+")")
	cmd.Flags().Duration("navigation-delay", config.DefaultNavigationDelay,
		"Delay between a history change and its page view")
	cmd.Flags().Bool("allow-localhost", false,
		"Track pages served from localhost")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of scenarios replayed concurrently")
	cmd.Flags().StringP("config", "c", "",
		"Profile file path (default: .pagebeacon in current or home directory)")
	addReportFlags(cmd)

	return cmd
}

// runReplayCmd executes the replay command.
func runReplayCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildReplayConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.ValidateReplay(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	return runReplay(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildReplayConfig creates a Config from the replay command flags.
func buildReplayConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	flags := cmd.Flags()
	if cfg.Endpoint, err = flags.GetString("endpoint"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.CacheHeader, err = flags.GetString("cache-header"); err != nil {
		return nil, err
	}
	if cfg.EventAttribute, err = flags.GetString("event-attribute"); err != nil {
		return nil, err
	}
	if cfg.NavigationDelay, err = flags.GetDuration("navigation-delay"); err != nil {
		return nil, err
	}
	if cfg.AllowLocalhost, err = flags.GetBool("allow-localhost"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if err := readReportFlags(cmd, cfg); err != nil {
		return nil, err
	}

	// An explicitly named profile file must exist; the implicit search may
	// come up empty.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.Profiles, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Targets = args
	return cfg, nil
}

// runReplay loads every scenario, replays them and writes the results.
func runReplay(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	scenarios := make([]*replay.Scenario, 0, len(cfg.Targets))
	for _, path := range cfg.Targets {
		sc, err := replay.LoadScenario(path)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, sc)
	}

	logger.Info("starting replay",
		"scenarios", len(scenarios),
		"endpoint", cfg.Endpoint,
		"batchSize", cfg.BatchSize,
	)

	runner := newRunner(cfg, logger)
	results, err := replay.NewBatchRunner(runner,
		replay.WithConcurrency(cfg.BatchSize),
		replay.WithBatchLogger(logger),
	).Run(ctx, scenarios)
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(cfg, stdout)
	if err != nil {
		return err
	}
	if _, err := newReportWriter(cfg, output).WriteReplay(results); err != nil {
		_ = closeOutput() //nolint:errcheck // the write error is reported
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := closeOutput(); err != nil {
		return err
	}

	var failed int
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d scenario(s)", errReplayFailed, failed, len(results))
	}
	return nil
}

// newRunner builds a replay runner from cfg.
func newRunner(cfg *config.Config, logger *slog.Logger) *replay.Runner {
	beaconOpts := []beacon.Option{
		beacon.WithNavigationDelay(cfg.NavigationDelay),
		beacon.WithAllowLocalhost(cfg.AllowLocalhost),
	}
	if cfg.EventAttribute != "" {
		beaconOpts = append(beaconOpts, beacon.WithEventAttribute(cfg.EventAttribute))
	}

	return replay.NewRunner(cfg.Endpoint,
		replay.WithTransport(beacon.TransportOptions{
			ProxyAddress: cfg.ProxyAddress,
			Timeout:      cfg.Timeout,
		}),
		replay.WithUserAgent(cfg.UserAgent),
		replay.WithCacheHeader(cfg.CacheHeader),
		replay.WithProfiles(cfg.Profiles),
		replay.WithBeaconOptions(beaconOpts...),
		replay.WithLogger(logger),
	)
}
