package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show scrape statistics over a recent window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if days <= 0 {
				return fmt.Errorf("--days must be > 0")
			}
			since := time.Now().UTC().AddDate(0, 0, -days)
			stats, err := a.Store.RunStats(cmd.Context(), since)
			if err != nil {
				return fmt.Errorf("run stats: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "last %d days:\n", days)
			fmt.Fprintf(out, "  runs:       %d (success=%d partial=%d failed=%d)\n",
				stats.Runs, stats.Succeeded, stats.Partial, stats.Failed)
			fmt.Fprintf(out, "  new jobs:   %d\n", stats.NewJobs)
			fmt.Fprintf(out, "  duplicates: %d\n", stats.Duplicates)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "window size in days")
	return cmd
}
