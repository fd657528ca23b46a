package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultEndpoint points at the collector started by "pagebeacon collect"
	// with its default listen address.
	DefaultEndpoint = "http://127.0.0.1:8700/api/send"

	// DefaultListenAddress is where the local collector listens. Loopback only
	// unless overridden, since the collector has no authentication.
	DefaultListenAddress = "127.0.0.1:8700"

	// DefaultTimeout bounds a single beacon request. Telemetry must never
	// hold a page hostage, so this stays short.
	DefaultTimeout = 10 * time.Second

	// DefaultBatchSize is the number of scenarios replayed concurrently.
	DefaultBatchSize = 4

	// DefaultNavigationDelay separates a history change from its page view.
	DefaultNavigationDelay = 300 * time.Millisecond

	// AppName is the application name used for XDG directory paths.
	AppName = "pagebeacon"

	// DefaultUserAgent identifies replayed traffic in collector logs.
	DefaultUserAgent = "pagebeacon/1.0 (+https://github.com/nao1215/pagebeacon)"

	// DefaultReportLimit is the number of recent events listed in a report.
	DefaultReportLimit = 20
)

// Config holds all configuration options for pagebeacon.
// It is populated from CLI flags and passed through the application
// explicitly rather than held in global state.
type Config struct {
	// Endpoint is the collection URL beacons post to.
	Endpoint string

	// ProxyAddress optionally routes beacon requests through a SOCKS5 proxy.
	ProxyAddress string

	// Timeout bounds each beacon request.
	Timeout time.Duration

	// UserAgent is sent with every beacon request.
	UserAgent string

	// CacheHeader overrides the header carrying the correlation token.
	// Empty means the beacon default.
	CacheHeader string

	// EventAttribute overrides the attribute marking tracked elements.
	// Empty means the beacon default.
	EventAttribute string

	// NavigationDelay separates a history change from its page view.
	NavigationDelay time.Duration

	// AllowLocalhost enables tracking on localhost pages, which beacons
	// skip by default.
	AllowLocalhost bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of scenarios replayed concurrently.
	BatchSize int

	// ConfigFilePath is the path to the profile file.
	// If empty, .pagebeacon is searched in the current directory and then in
	// the user's home directory.
	ConfigFilePath string

	// Profiles holds the profile file contents, if one was loaded.
	Profiles *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with
	// JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path. Empty means stdout.
	ReportFile string

	// ReportLimit is the number of recent events listed in a report.
	ReportLimit int

	// Website restricts reports to one website id. Empty means all.
	Website string

	// ListenAddress is where the collector listens.
	ListenAddress string

	// DBDir is the directory holding the collector database.
	// Defaults to the XDG data directory (~/.local/share/pagebeacon on Linux).
	DBDir string

	// Targets are the scenario files to replay.
	Targets []string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Endpoint:        DefaultEndpoint,
		Timeout:         DefaultTimeout,
		UserAgent:       DefaultUserAgent,
		NavigationDelay: DefaultNavigationDelay,
		BatchSize:       DefaultBatchSize,
		ReportLimit:     DefaultReportLimit,
		ListenAddress:   DefaultListenAddress,
		DBDir:           XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for pagebeacon.
// On Linux: ~/.local/share/pagebeacon
// On macOS: ~/Library/Application Support/pagebeacon
// On Windows: %LOCALAPPDATA%\pagebeacon
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pagebeacon.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the options shared by every command.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.NavigationDelay < 0 {
		return ErrInvalidNavigationDelay
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.Endpoint != "" {
		if err := ValidateEndpoint(c.Endpoint); err != nil {
			return err
		}
	}
	if c.ListenAddress != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidListenAddress, c.ListenAddress)
		}
	}
	return nil
}

// ValidateReplay checks the options of the replay command.
func (c *Config) ValidateReplay() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Endpoint == "" {
		return ErrNoEndpoint
	}
	return c.Validate()
}

// ValidateEndpoint reports whether endpoint is an absolute http(s) URL.
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	return nil
}
