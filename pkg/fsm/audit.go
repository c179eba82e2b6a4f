package fsm

import (
	"context"
	"time"
)

// TransitionRecord is the audit entry produced by every transition attempt.
type TransitionRecord struct {
	EntityType   EntityType `json:"entity_type"`
	EntityID     string     `json:"entity_id,omitempty"`
	FromState    string     `json:"from_state"`
	ToState      string     `json:"to_state"`
	UserID       string     `json:"user_id"`
	Role         Role       `json:"role"`
	Success      bool       `json:"success"`
	ErrorCode    Code       `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Fail marks the record as failed with err's code and message.
func (r TransitionRecord) Fail(err error) TransitionRecord {
	r.Success = false
	r.ErrorCode = CodeOf(err)
	r.ErrorMessage = err.Error()
	return r
}

// AuditLogger receives exactly one record per transition attempt.
type AuditLogger interface {
	Log(ctx context.Context, rec TransitionRecord) error
}

// AuditLoggerFunc adapts a plain function to AuditLogger.
type AuditLoggerFunc func(ctx context.Context, rec TransitionRecord) error

func (f AuditLoggerFunc) Log(ctx context.Context, rec TransitionRecord) error {
	return f(ctx, rec)
}
