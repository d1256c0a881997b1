package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/common"
)

// ErrUpstream marks transport failures and non-success responses from the
// issue-search feed. A pass that hits it aborts and rolls back.
var ErrUpstream = errors.New("jira upstream unavailable")

// searchFields is the set of fields requested from the search endpoint.
const searchFields = "summary,description,status,priority,created,updated,resolutiondate,components,labels,reporter,assignee"

// NewClient creates a new Jira client for the given instance and project.
func NewClient(baseURL, project, issueType, username, apiToken string) *Client {
	return &Client{
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		Project:   project,
		IssueType: issueType,
		Username:  username,
		APIToken:  apiToken,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a copy of the client using a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	dup := *c
	dup.HTTPClient = httpClient
	return &dup
}

// buildJQL constructs the search query for the configured project.
// statusFilter is an optional predicate applied to statusCategory, e.g.
// "!=Done"; empty means no status restriction.
func (c *Client) buildJQL(statusFilter string) string {
	parts := []string{
		"project=" + c.Project,
	}
	if c.IssueType != "" {
		parts = append(parts, "type="+c.IssueType)
	}
	if statusFilter != "" {
		parts = append(parts, "statusCategory"+statusFilter)
	}
	return strings.Join(parts, " AND ") + " ORDER BY updated DESC"
}

// Search issues a single paginated search request and returns one page of
// raw issues plus the feed-reported total.
func (c *Client) Search(ctx context.Context, maxResults, startAt int, statusFilter string) ([]Issue, int, error) {
	if maxResults <= 0 {
		maxResults = DefaultPageSize
	}

	params := url.Values{
		"jql":        {c.buildJQL(statusFilter)},
		"fields":     {searchFields},
		"startAt":    {strconv.Itoa(startAt)},
		"maxResults": {strconv.Itoa(maxResults)},
	}
	apiURL := fmt.Sprintf("%s/rest/api/2/search?%s", c.BaseURL, params.Encode())

	body, err := c.doRequest(ctx, apiURL)
	if err != nil {
		return nil, 0, err
	}

	var result SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, 0, fmt.Errorf("%w: parse search response: %v", ErrUpstream, err)
	}

	common.Logger().Debug("jira search page",
		"startAt", startAt, "returned", len(result.Issues), "total", result.Total)

	return result.Issues, result.Total, nil
}

// FetchAll retrieves every issue matching the status filter, advancing the
// offset by the number of records each page returns.
//
// Termination: cumulative count reaching the reported total, an empty page,
// or a short page (fewer records than requested) all end the loop. The short
// page check guards against feeds whose reported total never reconciles with
// the pages they actually serve.
func (c *Client) FetchAll(ctx context.Context, pageSize int, statusFilter string) ([]Issue, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []Issue
	startAt := 0

	for page := 0; page < MaxPages; page++ {
		issues, total, err := c.Search(ctx, pageSize, startAt, statusFilter)
		if err != nil {
			return nil, err
		}

		if len(issues) == 0 {
			break
		}

		all = append(all, issues...)
		startAt += len(issues)

		if len(all) >= total || len(issues) < pageSize {
			break
		}
	}

	common.Logger().Info("jira fetch complete", "project", c.Project, "fetched", len(all))
	return all, nil
}

// doRequest executes an authenticated GET and returns the response body.
// Any transport error or non-2xx status wraps ErrUpstream.
func (c *Client) doRequest(ctx context.Context, apiURL string) ([]byte, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL not configured", ErrUpstream)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

// setAuth sets basic auth when a username is configured (Jira Cloud),
// bearer auth otherwise (Jira Server PATs). Anonymous when no token.
func (c *Client) setAuth(req *http.Request) {
	if c.APIToken == "" {
		return
	}
	if c.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
