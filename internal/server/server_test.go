package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/reconcile"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/storage"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/storage/sqlite"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/triage"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

type fakePipeline struct {
	issueResult   *reconcile.IssueSyncResult
	commitResult  *reconcile.CommitSyncResult
	backlogResult *reconcile.TriageBacklogResult
	triagedBug    *types.Bug
	err           error

	gotIssueOpts  reconcile.IssueSyncOptions
	gotCommitOpts reconcile.CommitSyncOptions
	gotKey        string
	gotForce      bool
	gotLimit      int
}

func (f *fakePipeline) SyncIssues(ctx context.Context, opts reconcile.IssueSyncOptions) (*reconcile.IssueSyncResult, error) {
	f.gotIssueOpts = opts
	return f.issueResult, f.err
}

func (f *fakePipeline) SyncCommits(ctx context.Context, opts reconcile.CommitSyncOptions) (*reconcile.CommitSyncResult, error) {
	f.gotCommitOpts = opts
	return f.commitResult, f.err
}

func (f *fakePipeline) TriageIssue(ctx context.Context, key string, force bool) (*types.Bug, error) {
	f.gotKey, f.gotForce = key, force
	return f.triagedBug, f.err
}

func (f *fakePipeline) TriageBacklog(ctx context.Context, limit int) (*reconcile.TriageBacklogResult, error) {
	f.gotLimit = limit
	return f.backlogResult, f.err
}

func newTestServer(t *testing.T, pipeline Pipeline) (*Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, pipeline, true, true), store
}

func seedBug(t *testing.T, store *sqlite.Store, key string) *types.Bug {
	t.Helper()
	bug := &types.Bug{
		Key:       key,
		Summary:   "summary " + key,
		Status:    "Open",
		Priority:  "High",
		UpdatedAt: time.Now().UTC(),
		FetchedAt: time.Now().UTC(),
	}
	err := store.RunInTransaction(context.Background(), func(tx storage.Transaction) error {
		return tx.CreateBug(context.Background(), bug)
	})
	require.NoError(t, err)
	return bug
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakePipeline{})

	rec := doRequest(s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["triage_available"])
}

func TestGetBug(t *testing.T) {
	s, store := newTestServer(t, &fakePipeline{})
	seedBug(t, store, "MIG-1")

	rec := doRequest(s, http.MethodGet, "/api/bugs/MIG-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var bug types.Bug
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bug))
	assert.Equal(t, "MIG-1", bug.Key)
}

func TestGetBugNotFound(t *testing.T) {
	s, _ := newTestServer(t, &fakePipeline{})

	rec := doRequest(s, http.MethodGet, "/api/bugs/MIG-404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBugsFilters(t *testing.T) {
	s, store := newTestServer(t, &fakePipeline{})
	seedBug(t, store, "MIG-1")
	seedBug(t, store, "MIG-2")

	rec := doRequest(s, http.MethodGet, "/api/bugs?status=Open&page=1&page_size=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Bugs  []types.Bug `json:"bugs"`
		Total int         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.Len(t, body.Bugs, 1)
}

func TestSyncBugsPassesOptions(t *testing.T) {
	pipeline := &fakePipeline{issueResult: &reconcile.IssueSyncResult{Fetched: 3, Created: 2, Updated: 1}}
	s, _ := newTestServer(t, pipeline)

	rec := doRequest(s, http.MethodPost, "/api/bugs/sync", map[string]interface{}{
		"fetch_all":    true,
		"auto_triage":  true,
		"triage_limit": 10,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, pipeline.gotIssueOpts.FetchAll)
	assert.True(t, pipeline.gotIssueOpts.AutoTriage)
	assert.Equal(t, 10, pipeline.gotIssueOpts.TriageLimit)

	var result reconcile.IssueSyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Fetched)
}

func TestSyncBugsEmptyBody(t *testing.T) {
	pipeline := &fakePipeline{issueResult: &reconcile.IssueSyncResult{}}
	s, _ := newTestServer(t, pipeline)

	rec := doRequest(s, http.MethodPost, "/api/bugs/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, pipeline.gotIssueOpts.FetchAll)
}

func TestTriageBugForce(t *testing.T) {
	pipeline := &fakePipeline{triagedBug: &types.Bug{Key: "MIG-1", Summary: "x", Status: "Open"}}
	s, _ := newTestServer(t, pipeline)

	rec := doRequest(s, http.MethodPost, "/api/bugs/MIG-1/triage", map[string]bool{"force": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MIG-1", pipeline.gotKey)
	assert.True(t, pipeline.gotForce)
}

func TestTriageUnavailableMapsTo503(t *testing.T) {
	pipeline := &fakePipeline{err: triage.ErrUnavailable}
	s, _ := newTestServer(t, pipeline)

	rec := doRequest(s, http.MethodPost, "/api/bugs/MIG-1/triage", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCommitsUnavailableMapsTo503(t *testing.T) {
	pipeline := &fakePipeline{err: reconcile.ErrCommitsUnavailable}
	s, _ := newTestServer(t, pipeline)

	rec := doRequest(s, http.MethodPost, "/api/github/sync", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTriageBatchPassesLimit(t *testing.T) {
	pipeline := &fakePipeline{backlogResult: &reconcile.TriageBacklogResult{Eligible: 5, Triaged: 5}}
	s, _ := newTestServer(t, pipeline)

	rec := doRequest(s, http.MethodPost, "/api/bugs/triage/batch", map[string]int{"limit": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, pipeline.gotLimit)
}

func TestTriageStatus(t *testing.T) {
	s, _ := newTestServer(t, &fakePipeline{})

	rec := doRequest(s, http.MethodGet, "/api/bugs/triage/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Available bool              `json:"available"`
		Stats     types.TriageStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Available)
	assert.Equal(t, 0, body.Stats.TotalBugs)
}

func TestSyncCommitsPassesMax(t *testing.T) {
	pipeline := &fakePipeline{commitResult: &reconcile.CommitSyncResult{Fetched: 7}}
	s, _ := newTestServer(t, pipeline)

	rec := doRequest(s, http.MethodPost, "/api/github/sync", map[string]int{"max_commits": 250})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 250, pipeline.gotCommitOpts.MaxCommits)
}

func TestBugCommitsEmpty(t *testing.T) {
	s, store := newTestServer(t, &fakePipeline{})
	seedBug(t, store, "MIG-1")

	rec := doRequest(s, http.MethodGet, "/api/bugs/MIG-1/commits", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Commits []types.Commit `json:"commits"`
		Total   int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Total)
	assert.NotNil(t, body.Commits)
}

func TestGitHubStatus(t *testing.T) {
	s, _ := newTestServer(t, &fakePipeline{})

	rec := doRequest(s, http.MethodGet, "/api/github/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Available bool              `json:"available"`
		Stats     types.CommitStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Available)
}
