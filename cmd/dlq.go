package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/outreach"
	"github.com/homebid/match-cli/internal/resilience"
)

var (
	dlqRequeue bool
	dlqChannel string
	dlqType    string
	dlqLimit   int
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect or requeue dead-lettered invitations",
	Long: `Lists dead letters whose retry window has opened, or with --requeue
returns them to the delivery queue with a fresh attempt budget.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "dlq")
		if err != nil {
			return err
		}
		defer st.Close()

		filter := resilience.DLQFilter{
			Channel:   dlqChannel,
			ErrorType: dlqType,
			Limit:     dlqLimit,
		}

		if dlqRequeue {
			w := outreach.NewWorker(st, map[model.Channel]outreach.Sender{}, &cfg.Delivery)
			n, err := w.RequeueDLQ(ctx, filter)
			if err != nil {
				return eris.Wrap(err, "dlq requeue")
			}
			fmt.Printf("Requeued %d invitations\n", n)
			return nil
		}

		total, err := st.CountDLQ(ctx)
		if err != nil {
			return eris.Wrap(err, "dlq count")
		}
		entries, err := st.DequeueDLQ(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "dlq list")
		}

		fmt.Printf("Dead letters: %d total, %d ready for retry\n", total, len(entries))
		for _, e := range entries {
			fmt.Printf("  %-6s %-36s retry %d/%d next %s  %s\n",
				e.Channel, e.InvitationID, e.RetryCount, e.MaxRetries,
				e.NextRetryAt.Format(time.RFC3339), e.Error)
		}
		return nil
	},
}

func init() {
	dlqCmd.Flags().BoolVar(&dlqRequeue, "requeue", false, "return listed entries to the delivery queue")
	dlqCmd.Flags().StringVar(&dlqChannel, "channel", "", "filter by delivery channel (sms, email)")
	dlqCmd.Flags().StringVar(&dlqType, "type", "", "filter by error type (transient, permanent)")
	dlqCmd.Flags().IntVar(&dlqLimit, "limit", 50, "maximum entries to list or requeue")
	rootCmd.AddCommand(dlqCmd)
}
