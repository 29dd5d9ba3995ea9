package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"task-manager/internal/service"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show completion statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := service.NewStatsService(a.repo, a.loc).Compute(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	rows, err := service.NewCategoryService(a.repo).Summary(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "completed:       %d of %d\n", st.TotalCompleted, st.Total)
	fmt.Fprintf(w, "completion rate: %.1f%%\n", st.CompletionRate)
	fmt.Fprintf(w, "this week:       %d\n", st.CompletedWeek)
	fmt.Fprintf(w, "this month:      %d\n", st.CompletedMonth)
	fmt.Fprintln(w, "open by category:")
	for _, row := range rows {
		fmt.Fprintf(w, "  %-9s %d\n", row.Category, row.Count)
	}
	return nil
}
