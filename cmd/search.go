package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/homebid/match-cli/internal/search"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid lexical + vector search over bid cards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "search")
		if err != nil {
			return err
		}
		defer st.Close()

		s := search.NewSearcher(st, newEmbedClient(), &cfg.Search, queryTimeout())
		results, err := s.Search(ctx, args[0], searchLimit)
		if err != nil {
			return eris.Wrap(err, "search")
		}

		if len(results) == 0 {
			fmt.Println("No results")
			return nil
		}

		fmt.Printf("%-38s %-14s %-30s %7s\n", "ID", "CATEGORY", "JOB TYPE", "SCORE")
		for _, r := range results {
			fmt.Printf("%-38s %-14s %-30s %7.4f\n", r.ID, r.Category, truncate(r.JobType, 30), r.Score)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max results (default from config)")
	rootCmd.AddCommand(searchCmd)
}

// truncate shortens s to max runes for table display.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
