package github

import (
	"strings"
	"time"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/common"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/jira"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

// Normalize maps a raw commit entry onto the canonical commit shape,
// extracting the issue keys for the given project from the commit message.
func Normalize(rc RestCommit, project string) *types.Commit {
	commit := &types.Commit{
		SHA:      rc.SHA,
		ShortSHA: shortSHA(rc.SHA),
		Message:  rc.Commit.Message,
		Headline: headline(rc.Commit.Message),
		URL:      rc.HTMLURL,
	}

	if a := rc.Commit.Author; a != nil {
		commit.AuthorName = a.Name
		commit.AuthorEmail = a.Email
		if a.Date != "" {
			if t, err := time.Parse(time.RFC3339, a.Date); err == nil {
				commit.AuthoredAt = &t
			} else {
				common.Logger().Warn("malformed date in commit record",
					"sha", commit.ShortSHA, "value", a.Date)
			}
		}
	}

	commit.IssueKeys = jira.ExtractIssueKeys(rc.Commit.Message, project)

	return commit
}

// shortSHA returns the leading hex characters used as the display hash.
func shortSHA(sha string) string {
	if len(sha) <= types.ShortSHALen {
		return sha
	}
	return sha[:types.ShortSHALen]
}

// headline returns the first line of a commit message, capped at
// HeadlineMaxLen characters.
func headline(message string) string {
	line := message
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		line = message[:i]
	}
	line = strings.TrimSpace(line)
	if len(line) > types.HeadlineMaxLen {
		line = line[:types.HeadlineMaxLen]
	}
	return line
}
