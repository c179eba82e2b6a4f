package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmitrymomot/contractflow/pkg/logger"
)

// streamNotices relays committed transitions as server-sent events until the
// client disconnects or falls too far behind. ?entity_type= filters the
// stream to one type.
func (h *Handler) streamNotices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)
	filter := r.URL.Query().Get("entity_type")

	sub := h.notices.Subscribe(ctx)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.log.WarnContext(ctx, "notice stream cannot flush", logger.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-sub.Receive():
			if !open {
				return
			}
			n := msg.Data
			if filter != "" && string(n.EntityType) != filter {
				continue
			}
			data, err := json.Marshal(n)
			if err != nil {
				h.log.ErrorContext(ctx, "failed to encode notice", logger.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: transition\ndata: %s\n\n", n.EventID, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
