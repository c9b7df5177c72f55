package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/homebid/match-cli/internal/crm"
)

var crmLimit int

var crmCmd = &cobra.Command{
	Use:   "crm",
	Short: "Push unsynced prospects to Salesforce as Leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "crm")
		if err != nil {
			return err
		}
		defer st.Close()

		sf, err := initSalesforce()
		if err != nil {
			return err
		}

		stats, err := crm.NewSyncer(st, sf, crmLimit).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "crm sync")
		}

		fmt.Printf("Reconciled %d prospects: %d new leads, %d already in CRM, %d rejected\n",
			stats.Listed, stats.Created, stats.Existing, stats.Failed)
		return nil
	},
}

func init() {
	crmCmd.Flags().IntVar(&crmLimit, "limit", 0, "max prospects per run (default 500)")
	rootCmd.AddCommand(crmCmd)
}
