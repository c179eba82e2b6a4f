package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/contractflow/pkg/broadcast"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
	"github.com/dmitrymomot/contractflow/pkg/httpserver"
	"github.com/dmitrymomot/contractflow/pkg/logger"
	"github.com/dmitrymomot/contractflow/svc/lifecycle"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"

	maxBodyBytes = 64 << 10
)

// Handler serves the lifecycle API.
type Handler struct {
	svc      *lifecycle.Service
	log      *slog.Logger
	notices  broadcast.Broadcaster[lifecycle.TransitionNotice]
	gatherer prometheus.Gatherer
	checks   []httpserver.Check
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithNotices enables GET /notices.
func WithNotices(b broadcast.Broadcaster[lifecycle.TransitionNotice]) Option {
	return func(h *Handler) { h.notices = b }
}

// WithMetrics enables GET /metrics for the given gatherer.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = g }
}

// WithReadiness adds checks to GET /readyz.
func WithReadiness(checks ...httpserver.Check) Option {
	return func(h *Handler) { h.checks = append(h.checks, checks...) }
}

func New(svc *lifecycle.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, log: logger.Discard()}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logger.Component("httpapi"))
	return h
}

// Routes builds the chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer, RequestID)

	r.Get("/healthz", httpserver.HealthHandler(h.log))
	r.Get("/readyz", httpserver.HealthHandler(h.log, append([]httpserver.Check{alwaysReady}, h.checks...)...))
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	if h.notices != nil {
		r.Get("/notices", h.streamNotices)
	}

	r.Get("/entity-types", h.entityTypes)
	r.Route("/entities/{type}/{id}", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.current)
		r.Get("/history", h.history)
		r.Get("/transitions", h.available)
		r.Post("/transitions", h.transition)
	})
	return r
}

type entityResponse struct {
	EntityType fsm.EntityType `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
}

type createRequest struct {
	State string `json:"state"`
}

type transitionRequest struct {
	To       string         `json:"to"`
	Reason   string         `json:"reason"`
	Metadata map[string]any `json:"metadata"`
}

func (h *Handler) entityTypes(w http.ResponseWriter, _ *http.Request) {
	ok(w, http.StatusOK, h.svc.EntityTypes())
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	entityType, id := entityRef(r)

	var req createRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.log, err)
		return
	}
	state := req.State
	if state == "" {
		state, _ = lifecycle.InitialState(entityType)
	}
	if err := h.svc.Create(r.Context(), entityType, id, state); err != nil {
		fail(w, r, h.log, err)
		return
	}
	ok(w, http.StatusCreated, entityResponse{EntityType: entityType, EntityID: id, State: state})
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	entityType, id := entityRef(r)
	state, err := h.svc.CurrentState(r.Context(), entityType, id)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	ok(w, http.StatusOK, entityResponse{EntityType: entityType, EntityID: id, State: state})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	entityType, id := entityRef(r)
	entries, err := h.svc.GetHistory(r.Context(), entityType, id)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	ok(w, http.StatusOK, entries)
}

func (h *Handler) available(w http.ResponseWriter, r *http.Request) {
	entityType, id := entityRef(r)
	role := fsm.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = fsm.Role(r.Header.Get(HeaderRole))
	}
	if role == "" {
		fail(w, r, h.log, fmt.Errorf("%w: role is required", errBadRequest))
		return
	}

	edges, err := h.svc.GetAvailableTransitions(r.Context(), entityType, id, role)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	if edges == nil {
		edges = []fsm.Edge[string]{}
	}
	ok(w, http.StatusOK, edges)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	entityType, id := entityRef(r)
	userID := r.Header.Get(HeaderUserID)
	role := fsm.Role(r.Header.Get(HeaderRole))
	if userID == "" || role == "" {
		fail(w, r, h.log, fmt.Errorf("%w: %s and %s headers are required", errBadRequest, HeaderUserID, HeaderRole))
		return
	}

	var req transitionRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.log, err)
		return
	}
	if req.To == "" {
		fail(w, r, h.log, fmt.Errorf("%w: target state is required", errBadRequest))
		return
	}

	opts := make([]lifecycle.TransitionOption, 0, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		opts = append(opts, lifecycle.WithMetadata(k, v))
	}
	if req.Reason != "" {
		opts = append(opts, lifecycle.WithReason(req.Reason))
	}

	next, err := h.svc.Transition(r.Context(), entityType, id, req.To, userID, role, opts...)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	ok(w, http.StatusOK, entityResponse{EntityType: entityType, EntityID: id, State: next})
}

func entityRef(r *http.Request) (fsm.EntityType, string) {
	return fsm.EntityType(chi.URLParam(r, "type")), chi.URLParam(r, "id")
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func alwaysReady(_ context.Context) error { return nil }
