package lifecycle

import (
	"context"
	"time"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/broadcast"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
	"github.com/dmitrymomot/contractflow/pkg/logger"
)

// TransitionNotice describes a committed transition. Notices are published
// only after the new state and its audit event are durable.
type TransitionNotice struct {
	EntityType fsm.EntityType `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	FromState  string         `json:"from_state"`
	ToState    string         `json:"to_state"`
	UserID     string         `json:"user_id"`
	Role       fsm.Role       `json:"role"`
	EventID    string         `json:"event_id"`
	RequestID  string         `json:"request_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// WithNotifier publishes a TransitionNotice for every committed transition.
// Delivery is best effort; failures are logged and never affect the result.
func WithNotifier(b broadcast.Broadcaster[TransitionNotice]) Option {
	return func(s *Service) {
		s.notifier = b
	}
}

func (s *Service) notify(ctx context.Context, rec fsm.TransitionRecord, event audit.Event) {
	if s.notifier == nil {
		return
	}
	n := TransitionNotice{
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		FromState:  rec.FromState,
		ToState:    rec.ToState,
		UserID:     rec.UserID,
		Role:       rec.Role,
		EventID:    event.ID,
		RequestID:  event.RequestID,
		Timestamp:  rec.Timestamp,
	}
	if err := s.notifier.Broadcast(ctx, broadcast.Message[TransitionNotice]{Data: n}); err != nil {
		s.log.WarnContext(ctx, "failed to publish transition notice",
			logger.EntityType(string(rec.EntityType)),
			logger.EntityID(rec.EntityID),
			logger.Error(err),
		)
	}
}
