package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/reconcile"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"triage_available": s.triageAvailable,
		"github_available": s.githubAvailable,
	})
}

func pageFromQuery(r *http.Request) types.Page {
	page := types.Page{Number: 1, Size: defaultPageSize}
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 0 {
		page.Number = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && n > 0 {
		page.Size = n
		if page.Size > maxPageSize {
			page.Size = maxPageSize
		}
	}
	return page
}

func (s *Server) handleListBugs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := types.BugFilter{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Search:   q.Get("search"),
	}
	page := pageFromQuery(r)

	bugs, total, err := s.store.ListBugs(r.Context(), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	if bugs == nil {
		bugs = []*types.Bug{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bugs":      bugs,
		"total":     total,
		"page":      page.Number,
		"page_size": page.Size,
	})
}

func (s *Server) handleGetBug(w http.ResponseWriter, r *http.Request) {
	bug, err := s.store.FindBugByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bug)
}

type syncBugsRequest struct {
	FetchAll    bool `json:"fetch_all"`
	AutoTriage  bool `json:"auto_triage"`
	TriageLimit int  `json:"triage_limit"`
}

func (s *Server) handleSyncBugs(w http.ResponseWriter, r *http.Request) {
	var req syncBugsRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := s.pipeline.SyncIssues(r.Context(), reconcile.IssueSyncOptions{
		FetchAll:    req.FetchAll,
		AutoTriage:  req.AutoTriage,
		TriageLimit: req.TriageLimit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type triageBugRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleTriageBug(w http.ResponseWriter, r *http.Request) {
	var req triageBugRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	bug, err := s.pipeline.TriageIssue(r.Context(), chi.URLParam(r, "key"), req.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bug)
}

type triageBatchRequest struct {
	Limit int `json:"limit"`
}

func (s *Server) handleTriageBatch(w http.ResponseWriter, r *http.Request) {
	var req triageBatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := s.pipeline.TriageBacklog(r.Context(), req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTriageStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.TriageStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": s.triageAvailable,
		"stats":     stats,
	})
}

func (s *Server) handleBugCommits(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	bug, err := s.store.FindBugByKey(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}

	commits, err := s.store.CommitsForBug(r.Context(), bug.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if commits == nil {
		commits = []*types.Commit{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":     key,
		"commits": commits,
		"total":   len(commits),
	})
}

type syncCommitsRequest struct {
	MaxCommits int `json:"max_commits"`
}

func (s *Server) handleSyncCommits(w http.ResponseWriter, r *http.Request) {
	var req syncCommitsRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := s.pipeline.SyncCommits(r.Context(), reconcile.CommitSyncOptions{
		MaxCommits: req.MaxCommits,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListCommits(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)

	commits, total, err := s.store.ListCommits(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	if commits == nil {
		commits = []*types.Commit{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"commits":   commits,
		"total":     total,
		"page":      page.Number,
		"page_size": page.Size,
	})
}

func (s *Server) handleGitHubStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.CommitStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": s.githubAvailable,
		"stats":     stats,
	})
}

// decodeBody decodes an optional JSON body; an empty body leaves the request
// struct at its zero values.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(dst)
}
