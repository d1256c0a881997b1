package types

import (
	"testing"
	"time"
)

func TestBugValidate(t *testing.T) {
	tests := []struct {
		name    string
		bug     Bug
		wantErr bool
	}{
		{
			name:    "valid bug",
			bug:     Bug{Key: "MIG-1", Summary: "crash on save", Status: "Open"},
			wantErr: false,
		},
		{
			name:    "missing key",
			bug:     Bug{Summary: "crash on save", Status: "Open"},
			wantErr: true,
		},
		{
			name:    "whitespace key",
			bug:     Bug{Key: "   ", Summary: "crash", Status: "Open"},
			wantErr: true,
		},
		{
			name:    "missing summary",
			bug:     Bug{Key: "MIG-1", Status: "Open"},
			wantErr: true,
		},
		{
			name:    "missing status",
			bug:     Bug{Key: "MIG-1", Summary: "crash"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bug.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBugResolutionDays(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	resolved := created.Add(72 * time.Hour)

	bug := Bug{Key: "MIG-1", Summary: "s", Status: "Done", CreatedAt: created, ResolvedAt: &resolved}
	if got := bug.ResolutionDays(); got != 3 {
		t.Errorf("ResolutionDays() = %d, want 3", got)
	}

	open := Bug{Key: "MIG-2", Summary: "s", Status: "Open", CreatedAt: created}
	if got := open.ResolutionDays(); got != -1 {
		t.Errorf("ResolutionDays() for unresolved = %d, want -1", got)
	}
}

func TestTriageResultClampConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"in range", 0.85, 0.85},
		{"above one", 1.7, 1.0},
		{"below zero", -0.3, 0.0},
		{"exactly one", 1.0, 1.0},
		{"exactly zero", 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := TriageResult{Confidence: tt.in}
			r.ClampConfidence()
			if r.Confidence != tt.want {
				t.Errorf("ClampConfidence(%v) = %v, want %v", tt.in, r.Confidence, tt.want)
			}
		})
	}
}

func TestBugTriaged(t *testing.T) {
	bug := Bug{Key: "MIG-1", Summary: "s", Status: "Open"}
	if bug.Triaged() {
		t.Error("Triaged() = true for bug without triage block")
	}

	bug.Triage = &TriageResult{Category: "bug"}
	if bug.Triaged() {
		t.Error("Triaged() = true for triage block without timestamp")
	}

	bug.Triage.TriagedAt = time.Now()
	if !bug.Triaged() {
		t.Error("Triaged() = false for populated triage block")
	}
}

func TestPageOffset(t *testing.T) {
	tests := []struct {
		page Page
		want int
	}{
		{Page{Number: 1, Size: 50}, 0},
		{Page{Number: 0, Size: 50}, 0},
		{Page{Number: 2, Size: 50}, 50},
		{Page{Number: 4, Size: 20}, 60},
	}

	for _, tt := range tests {
		if got := tt.page.Offset(); got != tt.want {
			t.Errorf("Page%+v.Offset() = %d, want %d", tt.page, got, tt.want)
		}
	}
}
