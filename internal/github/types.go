// Package github provides the client and data types for the commit-history
// feed of a GitHub repository: paginated commit listing and normalization
// into the canonical commit shape.
package github

import (
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the number of commits requested per page.
	DefaultPageSize = 100

	// DefaultMaxCommits bounds a sync pass when the caller does not set
	// its own cap.
	DefaultMaxCommits = 1000

	// MaxRetries caps retries after a transient failure.
	MaxRetries = 3
)

// Client provides HTTP access to a GitHub repository's commit feed.
type Client struct {
	Token      string
	Owner      string
	Repo       string
	BaseURL    string
	HTTPClient *http.Client
}

// RestCommit represents a raw commit entry from the repository commits API.
type RestCommit struct {
	SHA     string      `json:"sha"`
	Commit  CommitData  `json:"commit"`
	HTMLURL string      `json:"html_url"`
	Author  *RestAuthor `json:"author"`
}

// CommitData is the git-level commit payload nested under each entry.
type CommitData struct {
	Message string     `json:"message"`
	Author  *GitAuthor `json:"author"`
}

// GitAuthor is the git author signature on a commit.
type GitAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

// RestAuthor is the GitHub account associated with a commit, when one is.
type RestAuthor struct {
	Login string `json:"login"`
}
