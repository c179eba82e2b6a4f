package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler New builds.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type settings struct {
	level      slog.Level
	format     Format
	out        io.Writer
	static     []slog.Attr
	extractors []ContextExtractor
}

// Option adjusts the settings New starts from: JSON to stdout at info.
type Option func(*settings)

func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

// WithLevelString accepts any name slog.Level understands ("warn",
// "debug+2"). Names it cannot parse are ignored.
func WithLevelString(name string) Option {
	return func(s *settings) {
		if l, err := ParseLevel(name); err == nil {
			s.level = l
		}
	}
}

// WithFormat panics on anything but FormatJSON or FormatText, so a bad
// setting fails at startup rather than silently.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Sprintf("logger: unsupported format %q", f))
	}
	return func(s *settings) { s.format = f }
}

func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.out = w
		}
	}
}

// WithAttr attaches attrs to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.static = append(s.static, attrs...) }
}

// WithContextExtractors adds per-call attributes taken from the context.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(s *settings) { s.extractors = append(s.extractors, extractors...) }
}

// WithContextValue logs ctx.Value(key) as name when present.
func WithContextValue(name string, key any) Option {
	return WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
		v := ctx.Value(key)
		return slog.Any(name, v), v != nil
	})
}

// WithEnvironment tags records with env and service. Production and staging
// log JSON at info; every other value is treated as development (text,
// debug). Options given after it still win.
func WithEnvironment(env, service string) Option {
	return func(s *settings) {
		switch strings.ToLower(env) {
		case "production", "prod", "staging", "stage":
			s.level, s.format = slog.LevelInfo, FormatJSON
		default:
			env = "development"
			s.level, s.format = slog.LevelDebug, FormatText
		}
		if service != "" {
			s.static = append(s.static, slog.String("service", service))
		}
		s.static = append(s.static, slog.String("env", env))
	}
}

func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("logger: level %q: %w", name, err)
	}
	return l, nil
}

// SetAsDefault installs l as the slog default.
func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// New builds a logger from opts.
func New(opts ...Option) *slog.Logger {
	s := settings{level: slog.LevelInfo, format: FormatJSON, out: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}

	ho := &slog.HandlerOptions{Level: s.level}
	var h slog.Handler = slog.NewJSONHandler(s.out, ho)
	if s.format == FormatText {
		h = slog.NewTextHandler(s.out, ho)
	}
	if len(s.static) > 0 {
		h = h.WithAttrs(s.static)
	}
	return slog.New(withContext(h, s.extractors))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
