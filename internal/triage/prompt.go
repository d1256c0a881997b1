package triage

import (
	"strings"
	"text/template"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

const triagePromptTemplate = `You are an expert bug triage specialist for a software development team. Analyze the following bug ticket and provide a structured triage assessment.

## Bug Ticket
**Summary:** {{.Summary}}

**Description:** {{.Description}}

**Current Priority (from Jira):** {{.Priority}}
**Component:** {{.Component}}
**Labels:** {{.Labels}}

## Your Task
Analyze this ticket and provide triage information. Consider:
1. **Category**: What type of issue is this? (bug, feature_request, documentation, performance, security, ui_ux, data_issue, integration)
2. **Priority Recommendation**: Based on potential impact and severity (critical, high, medium, low)
3. **Urgency**: How soon should this be addressed? (immediate, soon, normal, backlog)
4. **Suggested Team**: Which team should handle this? (frontend, backend, infrastructure, security, data, platform, mobile, qa)
5. **Tags**: 3-5 relevant tags for categorization
6. **Confidence**: Your confidence in this assessment (0.0-1.0)
7. **Reasoning**: Brief 1-2 sentence explanation

Respond with ONLY valid JSON matching this exact structure:
{
  "category": "string",
  "priority_recommendation": "string",
  "urgency": "string",
  "suggested_team": "string",
  "tags": ["string"],
  "confidence": 0.0,
  "reasoning": "string"
}`

var triagePrompt = template.Must(template.New("triage").Parse(triagePromptTemplate))

type promptData struct {
	Summary     string
	Description string
	Priority    string
	Component   string
	Labels      string
}

// renderPrompt fills the triage prompt, substituting readable placeholders
// for fields the upstream record left empty.
func renderPrompt(bug *types.Bug) (string, error) {
	data := promptData{
		Summary:     bug.Summary,
		Description: orElse(bug.Description, "No description provided"),
		Priority:    orElse(bug.Priority, "Not set"),
		Component:   orElse(bug.Component, "Not assigned"),
		Labels:      "None",
	}
	if len(bug.Labels) > 0 {
		data.Labels = strings.Join(bug.Labels, ", ")
	}

	var sb strings.Builder
	if err := triagePrompt.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func orElse(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
