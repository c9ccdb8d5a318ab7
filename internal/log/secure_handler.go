package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys are attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"api_key":             true,
	"apikey":              true,
	"api-key":             true,
	"session":             true,
	"session_id":          true,
	"sessionid":           true,
	"sid":                 true,
}

// sensitiveKeywords mask any key that contains them. The bare word "key"
// is not listed; it matches too much ("primary_key", "keyboard").
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth",
	"credential", "private", "seed", "mnemonic",
}

// sensitivePatterns mask values that look like credentials whatever their
// key is.
var sensitivePatterns = []*regexp.Regexp{
	// JWT
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	// AWS access key ID
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
	// Tor onion service secret key file
	regexp.MustCompile(`== ed25519v1-secret:`),
}

// onionLabel matches the service label of an onion hostname, whatever its
// characters. Subdomain labels in front of it are left alone.
var onionLabel = regexp.MustCompile(`(?i)\b[a-z0-9_-]+\.onion\b`)

// onionVisiblePrefix is how many characters of a long onion label stay
// readable. Labels shorter than minLabelForPrefix are hidden completely.
const (
	onionVisiblePrefix = 4
	minLabelForPrefix  = 16
)

// MaskValue replaces sensitive values.
const MaskValue = "***REDACTED***"

// MaskOnion hides every onion hostname in s. Labels of v2 or v3 length keep
// their first four characters, e.g. "2gzy***.onion"; shorter labels become
// "***.onion".
func MaskOnion(s string) string {
	if !strings.Contains(strings.ToLower(s), ".onion") {
		return s
	}
	return onionLabel.ReplaceAllStringFunc(s, func(host string) string {
		label := host[:len(host)-len(".onion")]
		if len(label) < minLabelForPrefix {
			return "***.onion"
		}
		return label[:onionVisiblePrefix] + "***.onion"
	})
}

// SecureHandler wraps an slog.Handler and sanitizes every record before
// passing it on.
type SecureHandler struct {
	handler   slog.Handler
	maskOnion bool
}

// HandlerOption configures a SecureHandler.
type HandlerOption func(*SecureHandler)

// WithOnionMasking shortens onion hostnames in messages, string attributes
// and errors.
func WithOnionMasking() HandlerOption {
	return func(h *SecureHandler) {
		h.maskOnion = true
	}
}

// NewSecureHandler wraps handler. A nil handler means
// slog.Default().Handler().
func NewSecureHandler(handler slog.Handler, opts ...HandlerOption) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	h := &SecureHandler{handler: handler}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes r and passes it to the wrapped handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	msg := r.Message
	if h.maskOnion {
		msg = MaskOnion(msg)
	}

	sanitized := slog.NewRecord(r.Time, r.Level, msg, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a handler with the sanitized attrs added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized), maskOnion: h.maskOnion}
}

// WithGroup returns a handler that nests attributes under name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), maskOnion: h.maskOnion}
}

func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		sanitized := make([]slog.Attr, len(group))
		for i, ga := range group {
			sanitized[i] = h.sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	key := strings.ToLower(a.Key)
	if sensitiveKeys[key] || containsSensitiveKeyword(key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if h.maskOnion {
			return slog.String(a.Key, MaskOnion(s))
		}
	case slog.KindAny:
		// Errors from the transport layer name the destination host.
		if err, ok := a.Value.Any().(error); ok && h.maskOnion {
			return slog.String(a.Key, MaskOnion(err.Error()))
		}
	}
	return a
}

func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// levelFor is Debug when verbose and Warn otherwise.
func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// secureOptions masks onion hostnames unless verbose is set.
func secureOptions(verbose bool) []HandlerOption {
	if verbose {
		return nil
	}
	return []HandlerOption{WithOnionMasking()}
}

// NewSecureLogger returns a text logger writing to w. Verbose loggers log
// at Debug and show onion hostnames; others log at Warn and mask them.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})
	return slog.New(NewSecureHandler(text, secureOptions(verbose)...))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})
	return slog.New(NewSecureHandler(jsonHandler, secureOptions(verbose)...))
}
