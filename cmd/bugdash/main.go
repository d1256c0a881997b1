// bugdash syncs Jira bugs and GitHub commits into a local SQLite store,
// links commits to bugs, and triages bugs with Claude.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/config"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "bugdash",
	Short: "Bug dashboard sync and triage service",
	Long: `bugdash ingests Jira issues and GitHub commits into a local SQLite
store, links commits to bugs by the issue keys in their messages, and
enriches bugs with AI triage classification.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(func() {
		if err := config.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	})

	rootCmd.PersistentFlags().String("db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().String("project", "", "Jira project key (overrides config)")
}

// applyFlagOverrides copies set persistent flags into the config layer.
func applyFlagOverrides(cmd *cobra.Command) {
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		config.Set(config.KeyDatabasePath, db)
	}
	if project, _ := cmd.Flags().GetString("project"); project != "" {
		config.Set(config.KeyJiraProject, project)
	}
}

func main() {
	ctx := context.Background()

	if err := telemetry.Init(ctx, "bugdash", version); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: telemetry init failed: %v\n", err)
	}
	defer telemetry.Shutdown(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
