// Package server exposes the board API over HTTP: load/save/init endpoints
// plus the collaboration websocket hub.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/catalog"
	"github.com/partboard/partboard/pkg/errors"
	"github.com/partboard/partboard/pkg/layout"
	"github.com/partboard/partboard/pkg/store"
)

// maxBodyBytes caps request bodies; snapshots with embedded images are large
// but bounded.
const maxBodyBytes = 64 << 20

// Options configures a Server.
type Options struct {
	// Store is the board persistence backend. Required.
	Store store.Store

	// Engine runs layout for the init endpoint. Required.
	Engine *layout.Engine

	// Logger for request and hub events. Nil falls back to log.Default().
	Logger *log.Logger
}

// Server handles board API and collaboration traffic.
type Server struct {
	store  store.Store
	engine *layout.Engine
	logger *log.Logger
	hub    *Hub
}

// New creates a server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		store:  opts.Store,
		engine: opts.Engine,
		logger: logger,
		hub:    NewHub(logger),
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/projects/{projectID}/board", func(r chi.Router) {
		r.Get("/", s.handleGetBoard)
		r.Put("/", s.handlePutBoard)
		r.Post("/init", s.handleInitBoard)
	})
	r.Get("/ws/projects/{projectID}", s.hub.HandleJoin)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	row, err := s.store.Load(r.Context(), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handlePutBoard(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "read body"))
		return
	}
	snap, err := board.UnmarshalSnapshot(body)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "decode snapshot"))
		return
	}

	if err := s.store.Save(r.Context(), projectID, snap); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projectId": projectID,
		"savedAt":   time.Now().UTC(),
	})
}

// handleInitBoard runs the initialization policy against the posted project.
// A populated board is never overwritten unless force=true, and force
// additionally requires confirm=true so a stray flag cannot destroy a board
// from a script.
func (s *Server) handleInitBoard(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	force := r.URL.Query().Get("force") == "true"
	confirm := r.URL.Query().Get("confirm") == "true"

	if force && !confirm {
		s.writeError(w, errors.New(errors.ErrCodeConfirmRequired,
			"forced regeneration replaces generated elements; pass confirm=true"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "read body"))
		return
	}
	project, err := catalog.UnmarshalProject(body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var existing *board.Snapshot
	if row, err := s.store.Load(r.Context(), projectID); err == nil {
		existing = &row.Snapshot
	} else if !errors.Is(err, errors.ErrCodeBoardNotFound) {
		s.writeError(w, err)
		return
	}

	theme := r.URL.Query().Get("theme")
	snap, err := s.engine.Initialize(r.Context(), project, existing, layout.InitOptions{
		Force: force,
		Theme: theme,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if snap != existing {
		if err := s.store.Save(r.Context(), projectID, snap); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, snap)
}

// logRequests is a structured-log request middleware.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// =============================================================================
// Response Helpers
// =============================================================================

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)

	var resp errorResponse
	resp.Error.Code = string(code)
	resp.Error.Message = errors.UserMessage(err)

	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeBoardNotFound, errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeInvalidProject, errors.ErrCodeInvalidSnapshot, errors.ErrCodeInvalidElement:
		status = http.StatusBadRequest
	case errors.ErrCodeConfirmRequired:
		status = http.StatusConflict
	}

	if status >= 500 {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
