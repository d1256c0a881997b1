package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/common"
)

// ErrUpstream marks transport failures and non-success responses from the
// commit-history feed. A pass that hits it aborts and rolls back.
var ErrUpstream = errors.New("github upstream unavailable")

// requestMaxElapsed bounds the retry window for a single API request.
const requestMaxElapsed = 30 * time.Second

// NewClient creates a new GitHub client for the given repository.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a copy of the client using a custom base URL
// (for testing or GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	dup := *c
	dup.BaseURL = baseURL
	return &dup
}

// WithHTTPClient returns a copy of the client using a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	dup := *c
	dup.HTTPClient = httpClient
	return &dup
}

// Available reports whether the integration is configured. Resolved from
// configuration at construction, never probed against the network.
func (c *Client) Available() bool {
	return c.Token != "" && c.Owner != "" && c.Repo != ""
}

// ListCommits fetches a single page of commits. since is optional; the zero
// time means no lower bound.
func (c *Client) ListCommits(ctx context.Context, page, perPage int, since time.Time) ([]RestCommit, error) {
	if perPage <= 0 || perPage > DefaultPageSize {
		perPage = DefaultPageSize
	}

	params := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
	if !since.IsZero() {
		params.Set("since", since.UTC().Format(time.RFC3339))
	}
	apiURL := fmt.Sprintf("%s/repos/%s/%s/commits?%s", c.BaseURL, c.Owner, c.Repo, params.Encode())

	body, err := c.doRequest(ctx, apiURL)
	if err != nil {
		return nil, err
	}

	var commits []RestCommit
	if err := json.Unmarshal(body, &commits); err != nil {
		return nil, fmt.Errorf("%w: parse commits response: %v", ErrUpstream, err)
	}

	common.Logger().Debug("github commits page",
		"repo", c.Owner+"/"+c.Repo, "page", page, "returned", len(commits))

	return commits, nil
}

// FetchAll retrieves the repository's commit history up to maxCommits
// records (0 or negative uses DefaultMaxCommits). A short page ends the
// loop; the final page is truncated when the cap would be exceeded.
func (c *Client) FetchAll(ctx context.Context, maxCommits int, since time.Time) ([]RestCommit, error) {
	if maxCommits <= 0 {
		maxCommits = DefaultMaxCommits
	}

	var all []RestCommit
	perPage := DefaultPageSize

	for page := 1; len(all) < maxCommits; page++ {
		commits, err := c.ListCommits(ctx, page, perPage, since)
		if err != nil {
			return nil, err
		}
		if len(commits) == 0 {
			break
		}

		all = append(all, commits...)
		if len(commits) < perPage {
			break
		}
	}

	if len(all) > maxCommits {
		all = all[:maxCommits]
	}

	common.Logger().Info("github fetch complete",
		"repo", c.Owner+"/"+c.Repo, "fetched", len(all))
	return all, nil
}

// doRequest executes an authenticated GET with retry on transient failures
// and rate limits. Non-retryable API errors and exhausted retries wrap
// ErrUpstream.
func (c *Client) doRequest(ctx context.Context, apiURL string) ([]byte, error) {
	var body []byte

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = requestMaxElapsed

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if attempt > MaxRetries+1 {
			return backoff.Permanent(fmt.Errorf("max retries (%d) exceeded", MaxRetries))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		if c.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed (attempt %d): %w", attempt, err)
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
		if err != nil {
			return fmt.Errorf("read response (attempt %d): %w", attempt, err)
		}

		// GitHub signals rate limits with 429, or 403 plus an exhausted
		// X-RateLimit-Remaining header.
		if rateLimited(resp) {
			if d, ok := retryAfter(resp); ok {
				common.Logger().Warn("github rate limited", "retry_after", d)
				select {
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				case <-time.After(d):
				}
			}
			return fmt.Errorf("rate limited (attempt %d)", attempt)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
		}

		body = respBody
		return nil
	}, backoff.WithContext(bo, ctx))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return body, nil
}

func rateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// retryAfter parses the Retry-After header, when the server sent one.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
