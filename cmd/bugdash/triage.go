package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var triageCmd = &cobra.Command{
	Use:   "triage [KEY]",
	Short: "Triage one bug by key, or the whole untriaged backlog",
	Args:  cobra.MaximumNArgs(1),
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

		if len(args) == 1 {
			force, _ := cmd.Flags().GetBool("force")
			bug, err := a.reconciler.TriageIssue(ctx, args[0], force)
			if err != nil {
				return err
			}

			cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
			fmt.Printf("%s %s\n", cyan(bug.Key), bug.Summary)
			if tr := bug.Triage; tr != nil {
				fmt.Printf("  category:   %s\n", tr.Category)
				fmt.Printf("  priority:   %s\n", tr.Priority)
				fmt.Printf("  urgency:    %s\n", tr.Urgency)
				fmt.Printf("  team:       %s\n", tr.Team)
				fmt.Printf("  tags:       %s\n", strings.Join(tr.Tags, ", "))
				fmt.Printf("  confidence: %.2f\n", tr.Confidence)
				fmt.Printf("  reasoning:  %s\n", tr.Reasoning)
			}
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		result, err := a.reconciler.TriageBacklog(ctx, limit)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s eligible=%d triaged=%d errors=%d\n",
			green("Backlog triage complete:"),
			result.Eligible, result.Triaged, result.Errors)
		return nil
	},
}

func init() {
	triageCmd.Flags().Bool("force", false, "re-triage even if a triage block exists (single key only)")
	triageCmd.Flags().Int("limit", 0, "max bugs to triage in backlog mode (0 = all)")
	rootCmd.AddCommand(triageCmd)
}
