package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/reconcile"
)

var syncCommitsCmd = &cobra.Command{
	Use:   "sync-commits",
	Short: "Fetch GitHub commits, store them, and link them to bugs",
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

		maxCommits, _ := cmd.Flags().GetInt("max")
		sinceStr, _ := cmd.Flags().GetString("since")

		var since time.Time
		if sinceStr != "" {
			since, err = time.Parse("2006-01-02", sinceStr)
			if err != nil {
				return fmt.Errorf("parse --since (want YYYY-MM-DD): %w", err)
			}
		}

		result, err := a.reconciler.SyncCommits(ctx, reconcile.CommitSyncOptions{
			MaxCommits: maxCommits,
			Since:      since,
		})
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s fetched=%d created=%d updated=%d links=%d\n",
			green("Commit sync complete:"),
			result.Fetched, result.Created, result.Updated, result.LinksCreated)
		return nil
	},
}

func init() {
	syncCommitsCmd.Flags().Int("max", 0, "max commits to fetch (0 = client default)")
	syncCommitsCmd.Flags().String("since", "", "only commits authored after this date (YYYY-MM-DD)")
	rootCmd.AddCommand(syncCommitsCmd)
}
