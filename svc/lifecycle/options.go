package lifecycle

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
)

// Locker serialises work on one key across processes. The returned function
// releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(context.Context) error, error)
}

// Option configures a Service.
type Option func(*Service)

// WithMachines registers engines. Registering an entity type twice makes
// NewService fail.
func WithMachines(machines ...fsm.Machine) Option {
	return func(s *Service) {
		s.pending = append(s.pending, machines...)
	}
}

// WithEngines registers all four built-in engines.
func WithEngines(e *Engines) Option {
	return func(s *Service) {
		if e != nil {
			s.pending = append(s.pending, e.Machines()...)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracerProvider overrides the global otel tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithLocker takes a per-entity lock around load, transition and commit.
// Version checks still apply; the lock only turns most conflicts into waits.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

// WithAuditOptions configures the audit logger that builds transition events.
func WithAuditOptions(opts ...audit.Option) Option {
	return func(s *Service) {
		s.auditOpts = append(s.auditOpts, opts...)
	}
}

// TransitionOption attaches caller context to a transition's audit event.
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	metadata map[string]any
}

// WithReason records why the transition was requested.
func WithReason(reason string) TransitionOption {
	return WithMetadata(MetaReason, reason)
}

// WithMetadata records an extra key on the audit event. Keys used by the
// service itself (from_state, to_state, role, error_code) cannot be overridden.
func WithMetadata(key string, value any) TransitionOption {
	return func(o *transitionOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]any)
		}
		o.metadata[key] = value
	}
}
