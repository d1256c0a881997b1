// Package server exposes the HTTP API: a thin JSON mapping onto the
// reconciler and the storage queries. No business logic lives here.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/common"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/reconcile"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/storage"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/triage"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

// Pipeline is the reconciler surface the HTTP layer drives. Satisfied by
// *reconcile.Reconciler.
type Pipeline interface {
	SyncIssues(ctx context.Context, opts reconcile.IssueSyncOptions) (*reconcile.IssueSyncResult, error)
	SyncCommits(ctx context.Context, opts reconcile.CommitSyncOptions) (*reconcile.CommitSyncResult, error)
	TriageIssue(ctx context.Context, key string, force bool) (*types.Bug, error)
	TriageBacklog(ctx context.Context, limit int) (*reconcile.TriageBacklogResult, error)
}

// Server routes API requests onto the pipeline and store.
type Server struct {
	router   chi.Router
	store    storage.Storage
	pipeline Pipeline

	// Integration availability, resolved from configuration at startup.
	triageAvailable bool
	githubAvailable bool
}

// New builds the server and registers its routes.
func New(store storage.Storage, pipeline Pipeline, triageAvailable, githubAvailable bool) *Server {
	s := &Server{
		router:          chi.NewRouter(),
		store:           store,
		pipeline:        pipeline,
		triageAvailable: triageAvailable,
		githubAvailable: githubAvailable,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(5 * time.Minute))

	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api/bugs", func(r chi.Router) {
		r.Get("/", s.handleListBugs)
		r.Post("/sync", s.handleSyncBugs)
		r.Post("/triage/batch", s.handleTriageBatch)
		r.Get("/triage/status", s.handleTriageStatus)
		r.Get("/{key}", s.handleGetBug)
		r.Post("/{key}/triage", s.handleTriageBug)
		r.Get("/{key}/commits", s.handleBugCommits)
	})

	s.router.Route("/api/github", func(r chi.Router) {
		r.Post("/sync", s.handleSyncCommits)
		r.Get("/commits", s.handleListCommits)
		r.Get("/status", s.handleGitHubStatus)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		common.Logger().Error("encode response", "error", err)
	}
}

// writeError maps the error taxonomy onto status codes: missing records are
// 404, unconfigured integrations are 503, everything else (upstream,
// persistence) is a 500 with one aggregate message.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, triage.ErrUnavailable), errors.Is(err, reconcile.ErrCommitsUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
