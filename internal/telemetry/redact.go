package telemetry

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// redacted replaces secret values in log output.
const redacted = "[REDACTED]"

// CredentialEnvVars name the environment variables whose values must never
// reach the logs.
var CredentialEnvVars = []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY"}

// redactHandler scrubs known secret values from messages and string
// attributes, including attributes nested in groups.
type redactHandler struct {
	inner    slog.Handler
	replacer *strings.Replacer
}

// NewRedactingHandler wraps inner so that every occurrence of secrets is
// replaced. Empty secrets are ignored; with none left inner is returned as is.
func NewRedactingHandler(inner slog.Handler, secrets ...string) slog.Handler {
	var pairs []string
	for _, s := range secrets {
		if s != "" {
			pairs = append(pairs, s, redacted)
		}
	}
	if len(pairs) == 0 {
		return inner
	}
	return &redactHandler{inner: inner, replacer: strings.NewReplacer(pairs...)}
}

// EnvSecrets returns the values of the set CredentialEnvVars.
func EnvSecrets() []string {
	var out []string
	for _, name := range CredentialEnvVars {
		if v := os.Getenv(name); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.replacer.Replace(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.attr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.attr(a)
	}
	return &redactHandler{inner: h.inner.WithAttrs(clean), replacer: h.replacer}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{inner: h.inner.WithGroup(name), replacer: h.replacer}
}

func (h *redactHandler) attr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.replacer.Replace(v.String()))
	case slog.KindGroup:
		group := v.Group()
		clean := make([]any, len(group))
		for i, g := range group {
			clean[i] = h.attr(g)
		}
		return slog.Group(a.Key, clean...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, h.replacer.Replace(err.Error()))
		}
	}
	return a
}
