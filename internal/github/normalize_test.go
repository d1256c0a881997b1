package github

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	rc := RestCommit{
		SHA: "a1b2c3d4e5f60718293a4b5c6d7e8f9012345678",
		Commit: CommitData{
			Message: "Fix MIG-42 null deref in parser\n\nAlso touches MIG-7 and MIG-42 again.",
			Author: &GitAuthor{
				Name:  "Dev One",
				Email: "dev@example.com",
				Date:  "2024-03-05T14:30:00Z",
			},
		},
		HTMLURL: "https://github.com/acme/widgets/commit/a1b2c3d",
	}

	commit := Normalize(rc, "MIG")

	if commit.SHA != rc.SHA {
		t.Errorf("SHA = %q", commit.SHA)
	}
	if commit.ShortSHA != "a1b2c3d" {
		t.Errorf("ShortSHA = %q, want a1b2c3d", commit.ShortSHA)
	}
	if commit.Headline != "Fix MIG-42 null deref in parser" {
		t.Errorf("Headline = %q", commit.Headline)
	}
	if commit.AuthorName != "Dev One" || commit.AuthorEmail != "dev@example.com" {
		t.Errorf("author = %q <%q>", commit.AuthorName, commit.AuthorEmail)
	}
	if commit.AuthoredAt == nil || commit.AuthoredAt.Day() != 5 {
		t.Errorf("AuthoredAt = %v", commit.AuthoredAt)
	}
	if !reflect.DeepEqual(commit.IssueKeys, []string{"MIG-42", "MIG-7"}) {
		t.Errorf("IssueKeys = %v, want [MIG-42 MIG-7]", commit.IssueKeys)
	}
	if err := commit.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestNormalizeNoAuthor(t *testing.T) {
	rc := RestCommit{
		SHA:    "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		Commit: CommitData{Message: "orphan commit"},
	}

	commit := Normalize(rc, "MIG")

	if commit.AuthorName != "" || commit.AuthoredAt != nil {
		t.Errorf("expected empty author, got %q / %v", commit.AuthorName, commit.AuthoredAt)
	}
	if commit.IssueKeys != nil {
		t.Errorf("IssueKeys = %v, want nil", commit.IssueKeys)
	}
}

func TestNormalizeMalformedDate(t *testing.T) {
	rc := RestCommit{
		SHA: "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		Commit: CommitData{
			Message: "bad date",
			Author:  &GitAuthor{Name: "Dev", Date: "last tuesday"},
		},
	}

	commit := Normalize(rc, "MIG")

	if commit.AuthoredAt != nil {
		t.Errorf("AuthoredAt = %v, want nil for malformed input", commit.AuthoredAt)
	}
	if commit.AuthorName != "Dev" {
		t.Errorf("AuthorName = %q", commit.AuthorName)
	}
}

func TestHeadline(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"single line", "fix it", "fix it"},
		{"multi line", "first line\nsecond line", "first line"},
		{"trailing whitespace", "fix it  \nmore", "fix it"},
		{"empty", "", ""},
		{"long line truncated", strings.Repeat("x", 250), strings.Repeat("x", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := headline(tt.message); got != tt.want {
				t.Errorf("headline() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShortSHA(t *testing.T) {
	if got := shortSHA("abc"); got != "abc" {
		t.Errorf("shortSHA(abc) = %q", got)
	}
	if got := shortSHA("abcdef0123456789"); got != "abcdef0" {
		t.Errorf("shortSHA = %q, want abcdef0", got)
	}
}
