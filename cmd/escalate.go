package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/outreach"
)

var escalateCmd = &cobra.Command{
	Use:   "escalate <bid-card-id>",
	Short: "Discover and invite prospects for a thin bid card",
	Long: `Runs the outreach escalation directly: looks up directory businesses
around the bid card, seeds them as prospects, and queues invitations.
Contractors already on the latest shortlist are excluded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "escalate")
		if err != nil {
			return err
		}
		defer st.Close()

		bc, err := st.GetBidCard(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "escalate: load bid card")
		}
		if bc == nil {
			return eris.Errorf("escalate: bid card %s not found", args[0])
		}

		var known []string
		matches, err := st.LatestMatches(ctx, bc.ID)
		if err != nil {
			return eris.Wrap(err, "escalate: load latest matches")
		}
		for _, m := range matches {
			known = append(known, m.ContractorID)
		}

		esc := outreach.NewEscalator(st, newPlacesClient(), &cfg.Outreach, &cfg.Places, queryTimeout())
		summary, err := esc.Escalate(ctx, *bc, known)
		if err != nil {
			return eris.Wrap(err, "escalate")
		}
		if summary.Partial() {
			zap.L().Warn("some directory lookups failed",
				zap.Int("lookup_failures", summary.LookupFailures),
			)
		}

		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(escalateCmd)
}
