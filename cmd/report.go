package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/homebid/match-cli/internal/report"
	"github.com/homebid/match-cli/pkg/notion"
)

var (
	reportDays     int
	reportKeepDays int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write an outreach summary page to Notion",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "report")
		if err != nil {
			return err
		}
		defer st.Close()

		nc := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(3))
		since := time.Now().UTC().AddDate(0, 0, -reportDays)

		rep := report.NewReporter(st, nc, cfg.Notion.ReportDB)
		stats, err := rep.Run(ctx, since)
		if err != nil {
			return eris.Wrap(err, "report")
		}
		fmt.Printf("Report written: %d new prospects since %s\n",
			stats.ProspectsNew, since.Format("2006-01-02"))

		if reportKeepDays > 0 {
			cutoff := time.Now().UTC().AddDate(0, 0, -reportKeepDays)
			archived, err := rep.Prune(ctx, cutoff)
			if err != nil {
				return eris.Wrap(err, "report: prune")
			}
			if archived > 0 {
				fmt.Printf("Archived %d report pages older than %s\n",
					archived, cutoff.Format("2006-01-02"))
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "aggregation window in days")
	reportCmd.Flags().IntVar(&reportKeepDays, "keep-days", 0,
		"archive report pages older than this many days (0 keeps everything)")
	rootCmd.AddCommand(reportCmd)
}
