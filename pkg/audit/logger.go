package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextExtractor reads one string from a context; false means absent.
type contextExtractor func(context.Context) (string, bool)

// Logger builds audit events and appends them to a Storage.
type Logger struct {
	storage            Storage
	userIDExtractor    contextExtractor
	requestIDExtractor contextExtractor
	filter             *MetadataFilter
	hasher             Hasher
	now                func() time.Time
}

// NewLogger panics on a nil storage.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: nil storage")
	}
	l := &Logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewEvent builds a validated success event without storing it. Callers that
// persist the event together with other state (in one transaction) use this
// instead of Log.
func (l *Logger) NewEvent(ctx context.Context, action string, opts ...EventOption) (Event, error) {
	return l.build(ctx, action, ResultSuccess, "", opts)
}

// Log records a successful action.
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event, err := l.NewEvent(ctx, action, opts...)
	if err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}

// LogError records a failed action. Options run after the error is set, so
// WithResult can downgrade ResultError to ResultFailure for rejections.
func (l *Logger) LogError(ctx context.Context, action string, cause error, opts ...EventOption) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	event, err := l.build(ctx, action, ResultError, msg, opts)
	if err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}

// Storage returns the underlying storage.
func (l *Logger) Storage() Storage {
	return l.storage
}

// build stamps identity and context values, applies opts, then filters,
// validates and hashes the event in that order.
func (l *Logger) build(ctx context.Context, action string, result Result, errMsg string, opts []EventOption) (Event, error) {
	event := Event{
		ID:        uuid.NewString(),
		Action:    action,
		Result:    result,
		Error:     errMsg,
		UserID:    extract(ctx, l.userIDExtractor),
		RequestID: extract(ctx, l.requestIDExtractor),
		CreatedAt: l.now().UTC(),
	}
	for _, opt := range opts {
		opt(&event)
	}

	if l.filter != nil && event.Metadata != nil {
		event.Metadata = l.filter.Filter(event.Metadata)
	}
	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	if l.hasher != nil {
		event.Hash = l.hasher.Hash(event)
	}
	return event, nil
}

func extract(ctx context.Context, fn contextExtractor) string {
	if fn == nil {
		return ""
	}
	v, _ := fn(ctx)
	return v
}
