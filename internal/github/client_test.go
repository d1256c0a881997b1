package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// fakeCommitServer serves a fixed pool of commits through the repository
// commits endpoint, honoring page/per_page, and counts requests.
func fakeCommitServer(t *testing.T, total int, requests *int) *httptest.Server {
	t.Helper()

	pool := make([]RestCommit, total)
	for i := range pool {
		pool[i] = RestCommit{
			SHA: fmt.Sprintf("%040d", i+1),
			Commit: CommitData{
				Message: fmt.Sprintf("commit %d", i+1),
			},
		}
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests++

		if r.URL.Path != "/repos/acme/widgets/commits" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		if page < 1 {
			page = 1
		}
		if perPage <= 0 {
			perPage = DefaultPageSize
		}

		start := (page - 1) * perPage
		end := start + perPage
		if start > total {
			start = total
		}
		if end > total {
			end = total
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pool[start:end])
	}))
}

func TestFetchAllStopsAtShortPage(t *testing.T) {
	requests := 0
	server := fakeCommitServer(t, 150, &requests)
	defer server.Close()

	client := NewClient("tok", "acme", "widgets").WithBaseURL(server.URL)

	commits, err := client.FetchAll(context.Background(), 500, time.Time{})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(commits) != 150 {
		t.Errorf("fetched %d commits, want 150", len(commits))
	}
	// Page 2 is short (50 < 100), so no third request.
	if requests != 2 {
		t.Errorf("made %d requests, want 2", requests)
	}
}

func TestFetchAllHonorsCap(t *testing.T) {
	requests := 0
	server := fakeCommitServer(t, 500, &requests)
	defer server.Close()

	client := NewClient("tok", "acme", "widgets").WithBaseURL(server.URL)

	commits, err := client.FetchAll(context.Background(), 150, time.Time{})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(commits) != 150 {
		t.Errorf("fetched %d commits, want 150 (cap)", len(commits))
	}
	if requests != 2 {
		t.Errorf("made %d requests, want 2", requests)
	}
}

func TestFetchAllEmptyRepo(t *testing.T) {
	requests := 0
	server := fakeCommitServer(t, 0, &requests)
	defer server.Close()

	client := NewClient("tok", "acme", "widgets").WithBaseURL(server.URL)

	commits, err := client.FetchAll(context.Background(), 100, time.Time{})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("fetched %d commits, want 0", len(commits))
	}
}

func TestDoRequestPermanentError(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("tok", "acme", "widgets").WithBaseURL(server.URL)

	_, err := client.ListCommits(context.Background(), 1, 100, time.Time{})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}
	// 404 is not retryable.
	if requests != 1 {
		t.Errorf("made %d requests, want 1", requests)
	}
}

func TestDoRequestRetriesRateLimit(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient("tok", "acme", "widgets").WithBaseURL(server.URL)

	commits, err := client.ListCommits(context.Background(), 1, 100, time.Time{})
	if err != nil {
		t.Fatalf("ListCommits() error = %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("got %d commits, want 0", len(commits))
	}
	if requests < 2 {
		t.Errorf("made %d requests, want at least 2 (retry after rate limit)", requests)
	}
}

func TestListCommitsSendsAuthAndSince(t *testing.T) {
	var gotAuth, gotSince string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSince = r.URL.Query().Get("since")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient("tok", "acme", "widgets").WithBaseURL(server.URL)
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := client.ListCommits(context.Background(), 1, 50, since); err != nil {
		t.Fatalf("ListCommits() error = %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", gotAuth)
	}
	if gotSince != "2024-03-01T00:00:00Z" {
		t.Errorf("since = %q", gotSince)
	}
}
