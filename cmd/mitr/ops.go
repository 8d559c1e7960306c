package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/siddham-jain/msme-mitr-sub000/internal/analytics"
	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

var queueStatsCmd = &cobra.Command{
	Use:   "queue-stats",
	Short: "Print per-status extraction job counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		stats, err := a.db.QueueStats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("pending:    %d\nprocessing: %d\ncompleted:  %d\nfailed:     %d\n",
			stats.Pending, stats.Processing, stats.Completed, stats.Failed)
		return nil
	},
}

var retryFailedCmd = &cobra.Command{
	Use:   "retry-failed",
	Short: "Reset all permanently failed jobs to pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.db.RetryFailedJobs(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("reset %d failed job(s) to pending\n", n)
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete completed jobs older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		cutoff := time.Now().Add(-a.cfg.Queue.Retention())
		n, err := a.db.PurgeCompletedJobs(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("purged %d completed job(s) older than %s\n", n, cutoff.Format(time.RFC3339))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export extracted attributes to stdout (CSV or JSON)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		format, _ := cmd.Flags().GetString("format")
		anonymize, _ := cmd.Flags().GetBool("anonymize")
		filter, err := exportFilter(cmd)
		if err != nil {
			return err
		}

		agg := analytics.NewAggregator(a.db, a.db, nil, newQuietLogger())
		return agg.Export(cmd.Context(), os.Stdout, filter,
			analytics.ExportFormat(format), anonymize)
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "export format: csv or json")
	exportCmd.Flags().Bool("anonymize", false, "replace identifiers with stable hashes")
	exportCmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	exportCmd.Flags().String("to", "", "end date (YYYY-MM-DD)")
	exportCmd.Flags().String("location", "", "filter by normalized location")
	exportCmd.Flags().String("industry", "", "filter by normalized industry")
	exportCmd.Flags().String("languages", "", "comma-separated language tags")
}

func exportFilter(cmd *cobra.Command) (store.Filter, error) {
	var f store.Filter
	if raw, _ := cmd.Flags().GetString("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, fmt.Errorf("invalid --from: %w", err)
		}
		f.From = t
	}
	if raw, _ := cmd.Flags().GetString("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, fmt.Errorf("invalid --to: %w", err)
		}
		f.To = t
	}
	f.Location, _ = cmd.Flags().GetString("location")
	f.Industry, _ = cmd.Flags().GetString("industry")
	if raw, _ := cmd.Flags().GetString("languages"); raw != "" {
		f.Languages = strings.Split(raw, ",")
	}
	return f, nil
}
