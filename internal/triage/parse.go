package triage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

// codeFenceRegex strips a surrounding markdown code fence; models sometimes
// wrap JSON output in one despite being told not to.
var codeFenceRegex = regexp.MustCompile("(?s)^```(?:json)?\\s*\n?(.*?)\n?```\\s*$")

// rawResult mirrors the response schema. Confidence is a pointer so an
// absent field can fall back to a neutral default instead of zero.
type rawResult struct {
	Category   string   `json:"category"`
	Priority   string   `json:"priority_recommendation"`
	Urgency    string   `json:"urgency"`
	Team       string   `json:"suggested_team"`
	Tags       []string `json:"tags"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// parseResponse interprets model output as a triage result. Unknown fields
// are ignored, missing fields take defaults, and confidence is clamped into
// [0, 1]. Anything that cannot be decoded wraps ErrMalformed.
func parseResponse(text string) (*types.TriageResult, error) {
	cleaned := strings.TrimSpace(text)
	if m := codeFenceRegex.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	result := &types.TriageResult{
		Category:  orElse(raw.Category, "unknown"),
		Priority:  orElse(raw.Priority, "medium"),
		Urgency:   orElse(raw.Urgency, "normal"),
		Team:      orElse(raw.Team, "unassigned"),
		Tags:      raw.Tags,
		Reasoning: raw.Reasoning,
	}

	result.Confidence = 0.5
	if raw.Confidence != nil {
		result.Confidence = *raw.Confidence
	}
	result.ClampConfidence()

	return result, nil
}
