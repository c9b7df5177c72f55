package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/homebid/match-cli/internal/match"
	"github.com/homebid/match-cli/internal/outreach"
)

var matchCmd = &cobra.Command{
	Use:   "match <bid-card-id>",
	Short: "Rank contractors for a bid card",
	Long: `Fetches candidates, scores them, persists the shortlist as a fresh
match run, and escalates to directory outreach when the shortlist is thin
and a places key is configured.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "match")
		if err != nil {
			return err
		}
		defer st.Close()

		bc, err := st.GetBidCard(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "match: load bid card")
		}
		if bc == nil {
			return eris.Errorf("match: bid card %s not found", args[0])
		}

		var esc match.Escalator
		if p := newPlacesClient(); p != nil {
			esc = outreach.NewEscalator(st, p, &cfg.Outreach, &cfg.Places, queryTimeout())
		}
		m := match.NewMatcher(st, esc, match.FromConfig(cfg.Matching), &cfg.Matching, queryTimeout())

		results, err := m.Match(ctx, bc)
		if err != nil {
			return eris.Wrap(err, "match")
		}

		if len(results) == 0 {
			fmt.Println("No matching contractors")
			return nil
		}

		fmt.Printf("%-4s %-38s %8s %10s\n", "RANK", "CONTRACTOR", "SCORE", "DISTANCE")
		for _, r := range results {
			dist := "-"
			if r.DistanceMiles != nil {
				dist = fmt.Sprintf("%.1f mi", *r.DistanceMiles)
			}
			fmt.Printf("%-4d %-38s %8.4f %10s\n", r.Rank, r.ContractorID, r.Score, dist)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
}
