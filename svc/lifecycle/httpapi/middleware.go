package httpapi

import (
	"net/http"

	"github.com/dmitrymomot/contractflow/pkg/requestid"
)

// HeaderRequestID carries the request id in and out.
const HeaderRequestID = "X-Request-ID"

// RequestID stores the caller's X-Request-ID in the context when it is well
// formed and mints one otherwise. The id is echoed on the response so it can
// be matched to audit history.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if !requestid.Valid(id) {
			id = requestid.New()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(requestid.WithContext(r.Context(), id)))
	})
}
