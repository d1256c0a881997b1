package jira

import (
	"fmt"
	"regexp"
	"time"
)

// issueKeyPattern matches issue keys like "MIG-1234" on word boundaries, so
// keys embedded inside longer alphanumeric tokens (e.g. "XABC-99" when
// looking for "ABC" keys) never match partially.
var issueKeyPattern = regexp.MustCompile(`\b([A-Z]+-[0-9]+)\b`)

// keyPrefixPattern splits a key into its letter prefix and number.
var keyPrefixPattern = regexp.MustCompile(`^([A-Z]+)-[0-9]+$`)

// ExtractIssueKeys returns the issue keys found in text whose letter prefix
// equals project exactly. Results are deduplicated with first-seen order
// preserved. Pure function, no side effects.
func ExtractIssueKeys(text, project string) []string {
	if text == "" || project == "" {
		return nil
	}

	var keys []string
	seen := make(map[string]bool)

	for _, match := range issueKeyPattern.FindAllString(text, -1) {
		sub := keyPrefixPattern.FindStringSubmatch(match)
		if sub == nil || sub[1] != project {
			continue
		}
		if seen[match] {
			continue
		}
		seen[match] = true
		keys = append(keys, match)
	}

	return keys
}

// ParseTimestamp parses Jira's timestamp formats into a time.Time.
// Jira uses ISO 8601 with timezone: 2024-01-15T10:30:00.000+0000 or
// 2024-01-15T10:30:00.000Z.
func ParseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	formats := []string{
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %s", ts)
}
