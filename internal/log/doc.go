// Package log provides slog helpers that keep correlation tokens and
// credentials out of log output.
//
// The beacon echoes an opaque correlation token on every request and the
// collector hands out session identifiers. Both end up as log attributes
// when debugging, so every logger built by this package wraps its handler
// in a SecureHandler that masks them.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("send settled", "token", token) // token="***REDACTED***"
//	slog.SetDefault(logger)
package log
