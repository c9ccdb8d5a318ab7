// Package log builds slog loggers that keep secrets and visited onion
// services out of log output.
//
// SecureHandler wraps any slog.Handler. It replaces the values of sensitive
// attributes (cookies, authorization headers, tokens, keys) with MaskValue,
// and values that look like credentials regardless of their key. With onion
// masking enabled it also shortens every ".onion" hostname in the message,
// string attributes and logged errors, so a shared log does not reveal
// which hidden services were contacted.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Warn("fetch failed", "url", u, "error", err)
//
// NewSecureLogger and NewSecureJSONLogger mask onion hostnames unless
// verbose is set.
package log
