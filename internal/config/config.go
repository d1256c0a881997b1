// Package config provides viper-backed configuration for the bug dashboard.
//
// Configuration sources, in precedence order:
//  1. Environment variables (BUGDASH_* plus the conventional credential vars
//     ANTHROPIC_API_KEY and GITHUB_TOKEN)
//  2. An optional config.yaml in the working directory or ~/.bugdash/
//  3. Registered defaults
//
// Integration availability (GitHub sync, AI triage) is resolved once at
// startup from the presence of credentials and carried as explicit fields on
// Settings. Nothing downstream re-checks the environment lazily.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyDatabasePath = "db.path"

	KeyJiraBaseURL   = "jira.base-url"
	KeyJiraProject   = "jira.project"
	KeyJiraIssueType = "jira.issue-type"
	KeyJiraUsername  = "jira.username"
	KeyJiraAPIToken  = "jira.api-token"

	KeyGitHubOwner = "github.owner"
	KeyGitHubRepo  = "github.repo"
	KeyGitHubToken = "github.token"

	KeyTriageEnabled = "triage.enabled"
	KeyTriageModel   = "triage.model"
	KeyTriageAPIKey  = "triage.api-key"

	KeyServerAddr = "server.addr"

	KeyFetchTimeout  = "fetch.timeout"
	KeyFetchPageSize = "fetch.page-size"
)

// v is the package-level viper instance, created by Initialize.
var v *viper.Viper

// Initialize sets up the viper instance, registers defaults, and reads an
// optional config.yaml. Safe to call more than once; the last call wins.
func Initialize() error {
	v = viper.New()

	v.SetEnvPrefix("BUGDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Conventional credential env vars take their usual names.
	_ = v.BindEnv(KeyTriageAPIKey, "ANTHROPIC_API_KEY")
	_ = v.BindEnv(KeyGitHubToken, "GITHUB_TOKEN")
	_ = v.BindEnv(KeyJiraAPIToken, "JIRA_API_TOKEN")

	registerDefaults()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.bugdash")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; everything has env/default coverage.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	return nil
}

func registerDefaults() {
	v.SetDefault(KeyDatabasePath, ".bugdash/bugs.db")

	v.SetDefault(KeyJiraBaseURL, "https://jira.atlassian.com")
	v.SetDefault(KeyJiraProject, "MIG")
	v.SetDefault(KeyJiraIssueType, "Bug")

	v.SetDefault(KeyTriageEnabled, true)
	v.SetDefault(KeyTriageModel, "claude-3-5-haiku-20241022")

	v.SetDefault(KeyServerAddr, ":8080")

	v.SetDefault(KeyFetchTimeout, "30s")
	v.SetDefault(KeyFetchPageSize, 100)
}

// Settings is the fully resolved configuration handed to constructors at
// process start. Clients receive it by value; there is no global client state.
type Settings struct {
	DatabasePath string

	JiraBaseURL   string
	JiraProject   string
	JiraIssueType string
	JiraUsername  string
	JiraAPIToken  string

	GitHubOwner string
	GitHubRepo  string
	GitHubToken string

	TriageEnabled bool
	TriageModel   string
	TriageAPIKey  string

	ServerAddr string

	FetchTimeout time.Duration
	PageSize     int
}

// Load resolves Settings from the initialized viper instance.
func Load() (*Settings, error) {
	if v == nil {
		if err := Initialize(); err != nil {
			return nil, err
		}
	}

	s := &Settings{
		DatabasePath:  v.GetString(KeyDatabasePath),
		JiraBaseURL:   strings.TrimSuffix(v.GetString(KeyJiraBaseURL), "/"),
		JiraProject:   v.GetString(KeyJiraProject),
		JiraIssueType: v.GetString(KeyJiraIssueType),
		JiraUsername:  v.GetString(KeyJiraUsername),
		JiraAPIToken:  v.GetString(KeyJiraAPIToken),
		GitHubOwner:   v.GetString(KeyGitHubOwner),
		GitHubRepo:    v.GetString(KeyGitHubRepo),
		GitHubToken:   v.GetString(KeyGitHubToken),
		TriageEnabled: v.GetBool(KeyTriageEnabled),
		TriageModel:   v.GetString(KeyTriageModel),
		TriageAPIKey:  v.GetString(KeyTriageAPIKey),
		ServerAddr:    v.GetString(KeyServerAddr),
		FetchTimeout:  v.GetDuration(KeyFetchTimeout),
		PageSize:      v.GetInt(KeyFetchPageSize),
	}

	if s.JiraProject == "" {
		return nil, fmt.Errorf("jira.project must be configured")
	}
	if s.FetchTimeout <= 0 {
		s.FetchTimeout = 30 * time.Second
	}
	if s.PageSize <= 0 || s.PageSize > 100 {
		s.PageSize = 100
	}

	return s, nil
}

// GitHubAvailable reports whether the commit feed integration is configured.
// Resolved from credentials present at startup, never re-checked lazily.
func (s *Settings) GitHubAvailable() bool {
	return s.GitHubToken != "" && s.GitHubOwner != "" && s.GitHubRepo != ""
}

// TriageAvailable reports whether the AI triage integration is configured.
func (s *Settings) TriageAvailable() bool {
	return s.TriageEnabled && s.TriageAPIKey != ""
}

// GetString returns a string config value from the initialized instance.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool returns a bool config value from the initialized instance.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// Set overrides a config value. Intended for tests and flag binding.
func Set(key string, value interface{}) {
	if v == nil {
		_ = Initialize()
	}
	v.Set(key, value)
}
