// Package jira provides the client and data types for the Jira issue-search
// feed: paginated JQL search, normalization into the canonical bug shape, and
// issue-key extraction from free text.
package jira

import (
	"encoding/json"
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the number of issues requested per search page.
	DefaultPageSize = 100

	// MaxPages bounds the pagination loop against feeds that report an
	// inconsistent total.
	MaxPages = 1000
)

// Client provides HTTP access to a Jira instance.
type Client struct {
	BaseURL    string
	Project    string
	IssueType  string
	Username   string
	APIToken   string
	HTTPClient *http.Client
}

// Issue represents a raw Jira issue from the REST API.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue as returned by search.
type IssueFields struct {
	Summary        string          `json:"summary"`
	Description    json.RawMessage `json:"description"` // plain text or ADF document
	Status         *StatusField    `json:"status"`
	Priority       *NamedField     `json:"priority"`
	Created        string          `json:"created"`
	Updated        string          `json:"updated"`
	ResolutionDate string          `json:"resolutiondate"`
	Components     []NamedField    `json:"components"`
	Labels         []string        `json:"labels"`
	Reporter       *UserField      `json:"reporter"`
	Assignee       *UserField      `json:"assignee"`
}

// StatusField represents a Jira issue status with its category.
type StatusField struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	StatusCategory *NamedField `json:"statusCategory"`
}

// NamedField is the common {id, name} shape Jira uses for priorities,
// components, and status categories.
type NamedField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserField represents a Jira user reference.
type UserField struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// SearchResult represents a Jira JQL search response page.
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}
