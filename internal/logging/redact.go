package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// secretKeys are substrings of attribute keys whose values are never logged
var secretKeys = []string{"password", "passphrase", "secret", "private_key", "mnemonic", "credential"}

// publicHashKeys mark attributes carrying 32-byte hashes (tx, block, topic)
// that look exactly like private keys but are public.
var publicHashKeys = []string{"hash", "topic"}

var (
	prefixedKey = regexp.MustCompile(`\b0x[0-9a-fA-F]{64}\b`)
	bareKey     = regexp.MustCompile(`\b[0-9a-fA-F]{64,}\b`)
)

func keyHas(key string, parts []string) bool {
	key = strings.ToLower(key)
	for _, p := range parts {
		if strings.Contains(key, p) {
			return true
		}
	}
	return false
}

// RedactingHandler scrubs wallet secrets from every record before handing
// it to the wrapped handler.
type RedactingHandler struct {
	inner slog.Handler
}

func NewRedactingHandler(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{inner: inner}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(scrub(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = scrub(a)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(clean)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name)}
}

// scrub returns a with secrets removed. Secret keys lose the whole value;
// other strings keep only the ends of anything shaped like a private key.
func scrub(a slog.Attr) slog.Attr {
	if keyHas(a.Key, secretKeys) {
		return slog.String(a.Key, redacted)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		members := a.Value.Group()
		out := make([]any, len(members))
		for i, m := range members {
			out[i] = scrub(m)
		}
		return slog.Group(a.Key, out...)
	case slog.KindString:
		if keyHas(a.Key, publicHashKeys) {
			return a
		}
		if v := scrubString(a.Value.String()); v != a.Value.String() {
			return slog.String(a.Key, v)
		}
	}
	return a
}

func scrubString(s string) string {
	s = prefixedKey.ReplaceAllStringFunc(s, func(m string) string {
		return m[:6] + "..." + m[len(m)-4:]
	})
	return bareKey.ReplaceAllStringFunc(s, func(m string) string {
		return m[:8] + "..." + redacted
	})
}
