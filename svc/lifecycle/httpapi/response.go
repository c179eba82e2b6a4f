package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/contractflow/pkg/fsm"
	"github.com/dmitrymomot/contractflow/pkg/logger"
	"github.com/dmitrymomot/contractflow/svc/lifecycle"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeBadRequest   = "BAD_REQUEST"
	codeEntityExists = "ENTITY_EXISTS"
	codeInternal     = "INTERNAL"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Data: data})
}

// fail maps err onto a status and error code. Unclassified errors are
// logged and reported without their message.
func fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, Envelope{Error: &ErrorDetail{Code: code, Message: msg}})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, lifecycle.ErrEntityExists):
		return http.StatusConflict, codeEntityExists
	case errors.Is(err, lifecycle.ErrEntityNotFound):
		return http.StatusNotFound, string(fsm.CodeInvalidState)
	}

	code := fsm.CodeOf(err)
	switch code {
	case fsm.CodeInvalidState, fsm.CodeInvalidTransition:
		return http.StatusUnprocessableEntity, string(code)
	case fsm.CodeUnauthorizedRole:
		return http.StatusForbidden, string(code)
	case fsm.CodeConflict:
		return http.StatusConflict, string(code)
	case fsm.CodeHookFailed:
		return http.StatusFailedDependency, string(code)
	}
	return http.StatusInternalServerError, codeInternal
}
