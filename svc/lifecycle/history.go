package lifecycle

import (
	"time"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
)

// HistoryEntry is one transition attempt read back from the audit trail.
type HistoryEntry struct {
	Seq          int64          `json:"seq"`
	FromState    string         `json:"from_state"`
	ToState      string         `json:"to_state"`
	UserID       string         `json:"user_id"`
	Role         fsm.Role       `json:"role"`
	Success      bool           `json:"success"`
	ErrorCode    fsm.Code       `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

func historyEntry(e audit.Event) HistoryEntry {
	h := HistoryEntry{
		Seq:          e.Seq,
		FromState:    e.MetadataString(MetaFromState),
		ToState:      e.MetadataString(MetaToState),
		UserID:       e.UserID,
		Role:         fsm.Role(e.MetadataString(MetaRole)),
		Success:      e.Result == audit.ResultSuccess,
		ErrorCode:    fsm.Code(e.MetadataString(MetaErrorCode)),
		ErrorMessage: e.Error,
		Reason:       e.MetadataString(MetaReason),
		RequestID:    e.RequestID,
		Timestamp:    e.CreatedAt,
	}

	for k, v := range e.Metadata {
		switch k {
		case MetaFromState, MetaToState, MetaRole, MetaErrorCode, MetaReason:
			continue
		}
		if h.Metadata == nil {
			h.Metadata = make(map[string]any)
		}
		h.Metadata[k] = v
	}
	return h
}

// eventOptions maps a transition record onto audit event options. Service
// metadata keys are applied after caller metadata so they always win.
func eventOptions(rec fsm.TransitionRecord, extra map[string]any) []audit.EventOption {
	opts := []audit.EventOption{
		audit.WithUserID(rec.UserID),
		audit.WithResource(string(rec.EntityType), rec.EntityID),
		audit.WithTimestamp(rec.Timestamp),
		audit.WithMetadataMap(extra),
		audit.WithMetadata(MetaFromState, rec.FromState),
		audit.WithMetadata(MetaToState, rec.ToState),
		audit.WithMetadata(MetaRole, string(rec.Role)),
	}
	if !rec.Success {
		opts = append(opts,
			audit.WithResult(audit.ResultFailure),
			audit.WithMetadata(MetaErrorCode, string(rec.ErrorCode)),
			func(e *audit.Event) { e.Error = rec.ErrorMessage },
		)
	}
	return opts
}
