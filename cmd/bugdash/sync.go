package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/reconcile"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch Jira issues and reconcile them into the local store",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyFlagOverrides(cmd)
		ctx := cmd.Context()

		gray := color.New(color.FgHiBlack).SprintFunc()
		a, err := buildApp(ctx, func(msg string) {
			fmt.Println(gray(msg))
		})
		if err != nil {
			return err
		}
		defer a.Close()

		fetchAll, _ := cmd.Flags().GetBool("all")
		autoTriage, _ := cmd.Flags().GetBool("triage")
		limit, _ := cmd.Flags().GetInt("triage-limit")

		result, err := a.reconciler.SyncIssues(ctx, reconcile.IssueSyncOptions{
			FetchAll:    fetchAll,
			AutoTriage:  autoTriage,
			TriageLimit: limit,
		})
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s fetched=%d created=%d updated=%d\n",
			green("Sync complete:"), result.Fetched, result.Created, result.Updated)
		if autoTriage {
			fmt.Printf("Triage: done=%d errors=%d skipped=%d\n",
				result.Triaged, result.TriageErrors, result.TriageSkipped)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("all", false, "include resolved issues")
	syncCmd.Flags().Bool("triage", false, "triage new and untriaged issues after sync")
	syncCmd.Flags().Int("triage-limit", 0, "max issues to triage this pass (0 = unlimited)")
	rootCmd.AddCommand(syncCmd)
}
