package jira

import (
	"reflect"
	"testing"
)

func TestExtractIssueKeys(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		project string
		want    []string
	}{
		{
			name:    "boundary and prefix filtering",
			text:    "fixes ABC-123 and ABCD-4567, see XABC-99",
			project: "ABC",
			want:    []string{"ABC-123"},
		},
		{
			name:    "longer prefix configured",
			text:    "fixes ABC-123 and ABCD-4567, see XABC-99",
			project: "ABCD",
			want:    []string{"ABCD-4567"},
		},
		{
			name:    "deduplicates preserving first-seen order",
			text:    "MIG-2 then MIG-1 then MIG-2 again",
			project: "MIG",
			want:    []string{"MIG-2", "MIG-1"},
		},
		{
			name:    "multiple keys in order",
			text:    "Fix MIG-10, MIG-3 and MIG-42",
			project: "MIG",
			want:    []string{"MIG-10", "MIG-3", "MIG-42"},
		},
		{
			name:    "no match inside longer token",
			text:    "release-vMIG-77-hotfix xMIG-12",
			project: "MIG",
			want:    nil,
		},
		{
			name:    "lowercase never matches",
			text:    "mig-123 Mig-456",
			project: "MIG",
			want:    nil,
		},
		{
			name:    "empty text",
			text:    "",
			project: "MIG",
			want:    nil,
		},
		{
			name:    "empty project",
			text:    "MIG-1",
			project: "",
			want:    nil,
		},
		{
			name:    "key at string edges",
			text:    "MIG-1 middle MIG-2",
			project: "MIG",
			want:    []string{"MIG-1", "MIG-2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractIssueKeys(tt.text, tt.project)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractIssueKeys(%q, %q) = %v, want %v",
					tt.text, tt.project, got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name      string
		timestamp string
		wantErr   bool
		wantYear  int
	}{
		{
			name:      "Jira Cloud format with milliseconds",
			timestamp: "2024-01-15T10:30:00.000+0000",
			wantYear:  2024,
		},
		{
			name:      "Z suffix with milliseconds",
			timestamp: "2024-01-15T10:30:00.000Z",
			wantYear:  2024,
		},
		{
			name:      "without milliseconds",
			timestamp: "2024-01-15T10:30:00+0000",
			wantYear:  2024,
		},
		{
			name:      "RFC3339",
			timestamp: "2024-01-15T10:30:00Z",
			wantYear:  2024,
		},
		{
			name:      "negative offset",
			timestamp: "2024-06-15T10:30:00.000-0500",
			wantYear:  2024,
		},
		{
			name:      "empty string",
			timestamp: "",
			wantErr:   true,
		},
		{
			name:      "garbage",
			timestamp: "not-a-timestamp",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.timestamp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimestamp(%q) error = %v, wantErr %v", tt.timestamp, err, tt.wantErr)
			}
			if !tt.wantErr && got.Year() != tt.wantYear {
				t.Errorf("ParseTimestamp(%q) year = %d, want %d", tt.timestamp, got.Year(), tt.wantYear)
			}
		})
	}
}
