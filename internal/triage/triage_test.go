package triage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		wantErr        bool
		wantCategory   string
		wantConfidence float64
	}{
		{
			name: "plain JSON",
			text: `{"category":"bug","priority_recommendation":"high","urgency":"soon",
				"suggested_team":"backend","tags":["crash","parser"],"confidence":0.9,
				"reasoning":"null deref in hot path"}`,
			wantCategory:   "bug",
			wantConfidence: 0.9,
		},
		{
			name:           "fenced JSON",
			text:           "```json\n{\"category\":\"security\",\"confidence\":0.7}\n```",
			wantCategory:   "security",
			wantConfidence: 0.7,
		},
		{
			name:           "fence without language tag",
			text:           "```\n{\"category\":\"performance\"}\n```",
			wantCategory:   "performance",
			wantConfidence: 0.5,
		},
		{
			name:           "missing fields take defaults",
			text:           `{}`,
			wantCategory:   "unknown",
			wantConfidence: 0.5,
		},
		{
			name:           "confidence above range clamped",
			text:           `{"category":"bug","confidence":1.7}`,
			wantCategory:   "bug",
			wantConfidence: 1,
		},
		{
			name:           "confidence below range clamped",
			text:           `{"category":"bug","confidence":-0.3}`,
			wantCategory:   "bug",
			wantConfidence: 0,
		},
		{
			name:    "prose instead of JSON",
			text:    "I think this is probably a backend bug.",
			wantErr: true,
		},
		{
			name:    "empty response",
			text:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseResponse(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("error = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseResponse() error = %v", err)
			}
			if result.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", result.Category, tt.wantCategory)
			}
			if result.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", result.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestParseResponseDefaults(t *testing.T) {
	result, err := parseResponse(`{"category":"bug"}`)
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if result.Priority != "medium" {
		t.Errorf("Priority = %q, want medium", result.Priority)
	}
	if result.Urgency != "normal" {
		t.Errorf("Urgency = %q, want normal", result.Urgency)
	}
	if result.Team != "unassigned" {
		t.Errorf("Team = %q, want unassigned", result.Team)
	}
}

func TestRenderPrompt(t *testing.T) {
	bug := &types.Bug{
		Key:         "MIG-9",
		Summary:     "Login page 500s",
		Description: "Stack trace in auth middleware",
		Priority:    "High",
		Component:   "auth",
		Labels:      []string{"regression", "p1"},
	}

	prompt, err := renderPrompt(bug)
	if err != nil {
		t.Fatalf("renderPrompt() error = %v", err)
	}

	for _, want := range []string{
		"**Summary:** Login page 500s",
		"**Description:** Stack trace in auth middleware",
		"**Current Priority (from Jira):** High",
		"**Component:** auth",
		"**Labels:** regression, p1",
		`"priority_recommendation"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestRenderPromptEmptyFields(t *testing.T) {
	bug := &types.Bug{Key: "MIG-1", Summary: "Minimal"}

	prompt, err := renderPrompt(bug)
	if err != nil {
		t.Fatalf("renderPrompt() error = %v", err)
	}

	for _, want := range []string{
		"No description provided",
		"**Current Priority (from Jira):** Not set",
		"**Component:** Not assigned",
		"**Labels:** None",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestClassifierUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		enabled bool
	}{
		{"no key", "", true},
		{"disabled", "sk-test", false},
		{"disabled and no key", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.apiKey, "", tt.enabled)
			if c.Available() {
				t.Error("Available() = true, want false")
			}
			_, err := c.Classify(context.Background(), &types.Bug{Key: "MIG-1", Summary: "x"})
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("Classify() error = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestClassifierAvailable(t *testing.T) {
	c := NewClassifier("sk-test", "", true)
	if !c.Available() {
		t.Error("Available() = false, want true")
	}
	if string(c.model) != DefaultModel {
		t.Errorf("model = %q, want default", c.model)
	}
}
