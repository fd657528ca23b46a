package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate and Config.ValidateReplay so
// callers can tell them apart with errors.Is.
var (
	// ErrNoTarget is returned when replay is started without a scenario file.
	ErrNoTarget = errors.New("no target specified: provide at least one scenario file")

	// ErrNoEndpoint is returned when replay has no collection endpoint.
	ErrNoEndpoint = errors.New("no endpoint specified: use --endpoint or set one in the profile file")

	// ErrInvalidEndpoint is returned when the endpoint is not an absolute
	// http(s) URL.
	ErrInvalidEndpoint = errors.New("invalid endpoint: must be an absolute http(s) URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidNavigationDelay is returned when the navigation delay is
	// negative. Use 0 to send page views right after a history change.
	ErrInvalidNavigationDelay = errors.New("invalid navigation delay: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidListenAddress is returned when the collector listen address
	// is not host:port.
	ErrInvalidListenAddress = errors.New("invalid listen address: must be host:port")

	// ErrInvalidScreen is returned for a screen size not in WIDTHxHEIGHT form.
	ErrInvalidScreen = errors.New("invalid screen: must be WIDTHxHEIGHT with positive values")
)
