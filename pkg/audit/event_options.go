package audit

import "time"

// EventOption mutates an event before it is validated and stored
type EventOption func(*Event)

// WithResource sets the resource type and ID
func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithUserID sets the acting user, overriding any context extractor
func WithUserID(userID string) EventOption {
	return func(e *Event) {
		e.UserID = userID
	}
}

// WithMetadata adds metadata to the event
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// WithMetadataMap merges m into the event metadata
func WithMetadataMap(m map[string]any) EventOption {
	return func(e *Event) {
		if len(m) == 0 {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]any, len(m))
		}
		for k, v := range m {
			e.Metadata[k] = v
		}
	}
}

// WithResult sets the event result
func WithResult(result Result) EventOption {
	return func(e *Event) {
		e.Result = result
	}
}

// WithError records err on the event without changing its result
func WithError(err error) EventOption {
	return func(e *Event) {
		if err != nil {
			e.Error = err.Error()
		}
	}
}

// WithTimestamp overrides the event creation time
func WithTimestamp(t time.Time) EventOption {
	return func(e *Event) {
		e.CreatedAt = t.UTC()
	}
}
