package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and integration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyFlagOverrides(cmd)
		ctx := cmd.Context()

		a, err := buildApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		triageStats, err := a.store.TriageStats(ctx)
		if err != nil {
			return fmt.Errorf("triage stats: %w", err)
		}
		commitStats, err := a.store.CommitStats(ctx)
		if err != nil {
			return fmt.Errorf("commit stats: %w", err)
		}

		bold := color.New(color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Printf("%s %s\n", bold("Database:"), a.store.Path())
		fmt.Printf("%s %s\n\n", bold("Project:"), a.settings.JiraProject)

		fmt.Println(bold("Bugs"))
		fmt.Printf("  Total:     %d\n", triageStats.TotalBugs)
		fmt.Printf("  Triaged:   %d\n", triageStats.TriagedBugs)
		fmt.Printf("  Untriaged: %d\n", triageStats.UntriagedBugs)
		printBreakdown("By category", triageStats.ByCategory)
		printBreakdown("By team", triageStats.ByTeam)

		fmt.Printf("\n%s\n", bold("Commits"))
		fmt.Printf("  Total:            %d\n", commitStats.TotalCommits)
		fmt.Printf("  With issue keys:  %d\n", commitStats.CommitsWithKeys)
		fmt.Printf("  Links:            %d\n", commitStats.TotalLinks)
		fmt.Printf("  Bugs with fixes:  %d\n", commitStats.BugsWithCommits)

		fmt.Printf("\n%s\n", bold("Integrations"))
		fmt.Printf("  Triage: %s\n", availability(a.settings.TriageAvailable(), green, red))
		fmt.Printf("  GitHub: %s\n", availability(a.settings.GitHubAvailable(), green, red))
		return nil
	},
}

func printBreakdown(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("  %s:\n", label)
	for _, k := range keys {
		fmt.Printf("    %-12s %d\n", k, counts[k])
	}
}

func availability(ok bool, green, red func(a ...interface{}) string) string {
	if ok {
		return green("available")
	}
	return red("unavailable")
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
