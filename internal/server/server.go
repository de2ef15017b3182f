// Package server implements the read-only admin HTTP API for
// spdm-responderd, built on go-chi/chi: a middleware stack plus a Route
// tree of small handlers.
//
// Unlike a peer-facing mutating control plane, this API never changes
// responder state: certificate and measurement provisioning happens once
// at startup from internal/provision, and a connection's negotiated
// parameters are a product of the wire protocol itself. The admin surface
// exists purely so an operator can inspect what a live responder believes
// about its current connection and session table.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/spdm-io/spdm-responder/internal/spdm"
)

// ContextView is the JSON shape returned for GET /v1/context.
type ContextView struct {
	ConnectionState string                  `json:"connection_state"`
	ResponseState   string                  `json:"response_state"`
	Negotiated      NegotiatedView          `json:"negotiated"`
	Slots           [spdm.MaxSlots]SlotView `json:"slots"`
	SessionCount    int                     `json:"session_count"`
}

// NegotiatedView is the JSON shape for a Context's negotiated parameters.
type NegotiatedView struct {
	Version     string `json:"version"`
	LocalFlags  uint32 `json:"local_flags"`
	PeerFlags   uint32 `json:"peer_flags"`
	CTExponent  uint8  `json:"ct_exponent"`
	BaseHashSel uint32 `json:"base_hash_sel"`
	BaseAsymSel uint32 `json:"base_asym_sel"`
}

// SlotView is the JSON shape for one certificate slot.
type SlotView struct {
	Provisioned bool `json:"provisioned"`
	ChainLength int  `json:"chain_length"`
}

// SessionView is the JSON shape for one session table entry.
type SessionView struct {
	ID               uint32 `json:"id"`
	State            string `json:"state"`
	MutAuthRequested bool   `json:"mut_auth_requested"`
}

// ContextProvider returns the current responder Context to serve
// introspection requests against. Implementations decide how to make that
// read race-free with the dispatch goroutine (e.g. a mutex-guarded field).
type ContextProvider interface {
	Current() *spdm.Context
}

// AdminServer serves the read-only responder introspection API.
type AdminServer struct {
	ctx    ContextProvider
	logger *slog.Logger
}

// New constructs an AdminServer and returns its http.Handler. It takes
// a logger rather than also returning a mount path, since this router
// owns its full namespace.
func New(ctxProvider ContextProvider, logger *slog.Logger) http.Handler {
	s := &AdminServer{
		ctx:    ctxProvider,
		logger: logger.With(slog.String("component", "admin_server")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/context", s.handleGetContext)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
	})

	return r
}

func (s *AdminServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *AdminServer) handleGetContext(w http.ResponseWriter, _ *http.Request) {
	ctx := s.ctx.Current()
	if ctx == nil {
		http.Error(w, "responder context not yet initialized", http.StatusServiceUnavailable)
		return
	}

	view := ContextView{
		ConnectionState: ctx.ConnectionState.String(),
		ResponseState:   ctx.ResponseState.String(),
		Negotiated: NegotiatedView{
			Version:     ctx.Negotiated.Version.String(),
			LocalFlags:  uint32(ctx.Negotiated.LocalFlags),
			PeerFlags:   uint32(ctx.Negotiated.PeerFlags),
			CTExponent:  ctx.Negotiated.CTExponent,
			BaseHashSel: ctx.Negotiated.BaseHashSel,
			BaseAsymSel: ctx.Negotiated.BaseAsymSel,
		},
		SessionCount: ctx.SessionCount(),
	}
	for i, slot := range ctx.Slots {
		view.Slots[i] = SlotView{
			Provisioned: slot.Provisioned(),
			ChainLength: len(slot.Chain),
		}
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *AdminServer) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	ctx := s.ctx.Current()
	if ctx == nil {
		http.Error(w, "responder context not yet initialized", http.StatusServiceUnavailable)
		return
	}

	sessions := ctx.Sessions()
	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sessionToView(sess))
	}

	writeJSON(w, http.StatusOK, views)
}

func (s *AdminServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := s.ctx.Current()
	if ctx == nil {
		http.Error(w, "responder context not yet initialized", http.StatusServiceUnavailable)
		return
	}

	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		http.Error(w, "session id must be a uint32", http.StatusBadRequest)
		return
	}

	sess := ctx.Session(uint32(id))
	if sess == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, sessionToView(sess))
}

func sessionToView(sess *spdm.SessionInfo) SessionView {
	return SessionView{
		ID:               sess.ID,
		State:            sess.State.String(),
		MutAuthRequested: sess.MutAuthRequested,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs every admin API request at Info level with its
// method, path, status, and duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "admin request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
