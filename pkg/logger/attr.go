package logger

import (
	"log/slog"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// ErrorCode records a machine-readable error code under "error_code".
// Empty codes produce an empty Attr.
func ErrorCode[C ~string](code C) slog.Attr {
	if code == "" {
		return slog.Attr{}
	}
	return slog.String("error_code", string(code))
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// Role records a role name under the key "role".
func Role[R ~string](role R) slog.Attr {
	return slog.String("role", string(role))
}

// EntityType records the workflow entity type under "entity_type".
func EntityType(t string) slog.Attr {
	return slog.String("entity_type", t)
}

// EntityID records the workflow entity identifier under "entity_id".
func EntityID(id string) slog.Attr {
	return slog.String("entity_id", id)
}

// Transition groups the source and target states under "transition".
func Transition(from, to string) slog.Attr {
	return Group("transition", slog.String("from", from), slog.String("to", to))
}

// State records a single state under "state".
func State(s string) slog.Attr {
	return slog.String("state", s)
}

// RequestID records the request identifier under the key "request_id".
// If id is empty, it returns an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
