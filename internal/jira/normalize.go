package jira

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/common"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

// Normalize maps a raw Jira issue onto the canonical bug shape.
//
// Missing optional fields map to zero values; malformed date strings are
// logged and left absent rather than failing the record. The raw record is
// retained as a JSON snapshot.
func Normalize(issue Issue) *types.Bug {
	fields := issue.Fields

	bug := &types.Bug{
		Key:         issue.Key,
		ExternalID:  issue.ID,
		Summary:     fields.Summary,
		Description: DescriptionToPlainText(fields.Description),
		Labels:      fields.Labels,
		FetchedAt:   time.Now().UTC(),
	}

	if fields.Status != nil {
		bug.Status = fields.Status.Name
		if fields.Status.StatusCategory != nil {
			bug.StatusCategory = fields.Status.StatusCategory.Name
		}
	}
	if bug.Status == "" {
		bug.Status = "Unknown"
	}

	if fields.Priority != nil {
		bug.Priority = fields.Priority.Name
	}
	if len(fields.Components) > 0 {
		bug.Component = fields.Components[0].Name
	}
	if fields.Reporter != nil {
		bug.Reporter = fields.Reporter.DisplayName
	}
	if fields.Assignee != nil {
		bug.Assignee = fields.Assignee.DisplayName
	}

	bug.CreatedAt = parseDate(issue.Key, "created", fields.Created)
	bug.UpdatedAt = parseDate(issue.Key, "updated", fields.Updated)
	if fields.ResolutionDate != "" {
		if t := parseDate(issue.Key, "resolutiondate", fields.ResolutionDate); !t.IsZero() {
			bug.ResolvedAt = &t
		}
	}

	if raw, err := json.Marshal(issue); err == nil {
		bug.Raw = raw
	}

	return bug
}

// parseDate parses an upstream timestamp, logging and returning the zero
// time on malformed input instead of failing the record.
func parseDate(key, field, value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := ParseTimestamp(value)
	if err != nil {
		common.Logger().Warn("malformed date in issue record",
			"key", key, "field", field, "value", value)
		return time.Time{}
	}
	return t
}

// DescriptionToPlainText extracts plain text from a Jira description field,
// which may be a plain string (API v2) or an ADF document (API v3).
func DescriptionToPlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	// Plain string is the common case.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	// Otherwise try ADF (Atlassian Document Format).
	var doc struct {
		Type    string `json:"type"`
		Content []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Type != "doc" {
		return string(raw)
	}

	var parts []string
	for _, block := range doc.Content {
		var line []string
		for _, inline := range block.Content {
			if inline.Text != "" {
				line = append(line, inline.Text)
			}
		}
		if len(line) > 0 {
			parts = append(parts, strings.Join(line, ""))
		}
	}

	return strings.Join(parts, "\n")
}
