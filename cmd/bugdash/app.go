package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/config"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/github"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/jira"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/reconcile"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/storage/sqlite"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/triage"
)

// app bundles the wired components for one command invocation.
type app struct {
	settings   *config.Settings
	store      *sqlite.Store
	reconciler *reconcile.Reconciler
}

// buildApp resolves configuration and wires the clients, store, and
// reconciler. The caller owns closing the store.
func buildApp(ctx context.Context, onMessage func(string)) (*app, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(ctx, settings.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	jiraClient := jira.NewClient(
		settings.JiraBaseURL, settings.JiraProject, settings.JiraIssueType,
		settings.JiraUsername, settings.JiraAPIToken,
	).WithHTTPClient(&http.Client{Timeout: settings.FetchTimeout})

	githubClient := github.NewClient(
		settings.GitHubToken, settings.GitHubOwner, settings.GitHubRepo,
	).WithHTTPClient(&http.Client{Timeout: settings.FetchTimeout})

	classifier := triage.NewClassifier(
		settings.TriageAPIKey, settings.TriageModel, settings.TriageEnabled,
	)

	return &app{
		settings: settings,
		store:    store,
		reconciler: &reconcile.Reconciler{
			Issues:    jiraClient,
			Commits:   githubClient,
			Triage:    classifier,
			Store:     store,
			Project:   settings.JiraProject,
			PageSize:  settings.PageSize,
			OnMessage: onMessage,
		},
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
}
