// Package api is the HTTP surface over the announcement store and the
// scheduler: query endpoints for announcements and statistics, and run
// control for the pipeline.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kendricksin/feed-scanner/internal/pipeline"
	"github.com/kendricksin/feed-scanner/internal/scheduler"
	"github.com/kendricksin/feed-scanner/internal/store"
)

// Runner is the scheduler capability the API needs.
type Runner interface {
	RunNow(ctx context.Context, deptIDs []string) (*pipeline.Summary, error)
	ValidateDepartments(deptIDs []string) error
	Running() bool
	LastSummary() *pipeline.Summary
	NextRun() time.Time
}

// Server serves the scanner API.
type Server struct {
	store  *store.Store
	runner Runner
	log    *slog.Logger

	// authHash is the bcrypt hash of the basic-auth password; empty
	// disables auth.
	authHash []byte
}

// New creates a Server. authPassword "" leaves the API open.
func New(st *store.Store, runner Runner, authPassword string, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{store: st, runner: runner, log: log.With("component", "api")}
	if authPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(authPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		s.authHash = hash
	}
	return s, nil
}

// Router builds the chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if s.authHash != nil {
			r.Use(s.basicAuth)
		}
		r.Get("/api/announcements", s.handleListAnnouncements)
		r.Get("/api/announcements/{projectID}", s.handleGetAnnouncement)
		r.Get("/api/statistics", s.handleStatistics)
		r.Post("/api/pipeline/start", s.handlePipelineStart)
		r.Get("/api/pipeline/status", s.handlePipelineStatus)
	})

	return r
}

func (s *Server) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{
		DeptID: q.Get("dept_id"),
		Status: q.Get("status"),
		Days:   intParam(q.Get("days"), 0),
		Limit:  intParam(q.Get("limit"), 100),
	}

	rows, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.internalError(w, "list announcements", err)
		return
	}
	if rows == nil {
		rows = []*store.Announcement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"announcements": rows,
		"count":         len(rows),
	})
}

func (s *Server) handleGetAnnouncement(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	a, err := s.store.GetByProjectID(r.Context(), projectID)
	if err != nil {
		s.internalError(w, "get announcement", err)
		return
	}
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "announcement not found"})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	days := intParam(r.URL.Query().Get("days"), 7)
	stats, err := s.store.Statistics(r.Context(), days)
	if err != nil {
		s.internalError(w, "statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePipelineStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeptIDs []string `json:"dept_ids"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	// Reject bad department ids before detaching; errors inside the run
	// goroutine can only be logged, not returned to the caller.
	if err := s.runner.ValidateDepartments(req.DeptIDs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if s.runner.Running() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": scheduler.ErrRunInProgress.Error()})
		return
	}

	// Detach from the request context: the run outlives the HTTP exchange.
	go func() {
		if _, err := s.runner.RunNow(context.Background(), req.DeptIDs); err != nil {
			s.log.Warn("pipeline run not started", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"running": s.runner.Running(),
	}
	if last := s.runner.LastSummary(); last != nil {
		resp["last_summary"] = last
	}
	if next := s.runner.NextRun(); !next.IsZero() {
		resp["next_run"] = next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte("admin")) != 1 ||
			bcrypt.CompareHashAndPassword(s.authHash, []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="feed-scanner"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.log.Error(op, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	return v
}
