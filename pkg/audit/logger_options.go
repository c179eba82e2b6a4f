package audit

import "time"

// Option configures Logger behavior during initialization
type Option func(*Logger)

// Context extractors populate events from the request context. When an
// extractor reports false the corresponding field stays empty.

func WithUserIDExtractor(fn contextExtractor) Option {
	return func(l *Logger) {
		l.userIDExtractor = fn
	}
}

func WithRequestIDExtractor(fn contextExtractor) Option {
	return func(l *Logger) {
		l.requestIDExtractor = fn
	}
}

// WithMetadataFilter scrubs event metadata before it is stored.
func WithMetadataFilter(f *MetadataFilter) Option {
	return func(l *Logger) {
		l.filter = f
	}
}

// WithHasher stamps every event with a content hash.
func WithHasher(h Hasher) Option {
	return func(l *Logger) {
		l.hasher = h
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}
