package audit

import (
	"context"
	"fmt"
	"time"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Event is a single append-only audit entry. Seq is assigned by the storage
// on append and is strictly increasing across the whole trail.
type Event struct {
	ID         string         `json:"id"`
	Seq        int64          `json:"seq"`
	UserID     string         `json:"user_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Result     Result         `json:"result"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Hash       string         `json:"hash,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks if the event has all required fields
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrEventValidation)
	}
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	switch e.Result {
	case ResultSuccess, ResultFailure, ResultError:
	default:
		return fmt.Errorf("%w: unknown result %q", ErrEventValidation, e.Result)
	}
	return nil
}

// MetadataString returns metadata[key] when it holds a string.
func (e *Event) MetadataString(key string) string {
	s, _ := e.Metadata[key].(string)
	return s
}

// Criteria selects events. Empty fields match everything.
type Criteria struct {
	Action     string
	Resource   string
	ResourceID string
	UserID     string
	Result     Result
	AfterSeq   int64 // only events with Seq > AfterSeq
	Limit      int   // 0 means no limit
}

// Matches reports whether e satisfies every non-empty criterion.
func (c Criteria) Matches(e Event) bool {
	switch {
	case c.Action != "" && e.Action != c.Action:
		return false
	case c.Resource != "" && e.Resource != c.Resource:
		return false
	case c.ResourceID != "" && e.ResourceID != c.ResourceID:
		return false
	case c.UserID != "" && e.UserID != c.UserID:
		return false
	case c.Result != "" && e.Result != c.Result:
		return false
	case e.Seq <= c.AfterSeq:
		return false
	}
	return true
}

// Storage is an append-only event sink. Implementations assign Seq on
// Store, never update or delete stored events, and return Query results in
// ascending Seq order.
type Storage interface {
	Store(ctx context.Context, event Event) error
	Query(ctx context.Context, criteria Criteria) ([]Event, error)
}

// StorageCounter is implemented by storages that can count without loading events.
type StorageCounter interface {
	Count(ctx context.Context, criteria Criteria) (int64, error)
}
