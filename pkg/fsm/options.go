package fsm

import "time"

// Option configures an Engine during construction.
type Option func(*engineOptions)

type engineOptions struct {
	roles       RoleTable
	hookTimeout time.Duration
	audit       AuditLogger
	now         func() time.Time
}

func defaultEngineOptions() engineOptions {
	return engineOptions{
		roles: DefaultRoleTable(),
		now:   time.Now,
	}
}

// WithRoleTable replaces the default role satisfies relation.
func WithRoleTable(t RoleTable) Option {
	return func(o *engineOptions) {
		if t != nil {
			o.roles = t.clone()
		}
	}
}

// WithHookTimeout bounds every single hook call. A hook that runs longer
// fails the transition with HOOK_FAILED. Zero disables the bound.
func WithHookTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		if d >= 0 {
			o.hookTimeout = d
		}
	}
}

// WithAuditLogger sets the audit sink at construction time.
func WithAuditLogger(l AuditLogger) Option {
	return func(o *engineOptions) {
		o.audit = l
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}
