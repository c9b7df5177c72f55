package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/outreach"
)

var deliverOnce bool

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Run the invitation delivery worker",
	Long: `Polls queued invitations and delivers them over the configured
channels. SMS and email currently go through the log sender; real gateway
senders plug into the same interface.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, "deliver")
		if err != nil {
			return err
		}
		defer st.Close()

		senders := map[model.Channel]outreach.Sender{
			model.ChannelSMS:   outreach.NewLogSender(model.ChannelSMS),
			model.ChannelEmail: outreach.NewLogSender(model.ChannelEmail),
		}
		w := outreach.NewWorker(st, senders, &cfg.Delivery)

		if deliverOnce {
			n, err := w.DeliverBatch(ctx)
			if err != nil {
				return eris.Wrap(err, "deliver")
			}
			fmt.Printf("Delivered %d invitations\n", n)
			return nil
		}

		return w.Run(ctx)
	},
}

func init() {
	deliverCmd.Flags().BoolVar(&deliverOnce, "once", false, "deliver one batch and exit")
	rootCmd.AddCommand(deliverCmd)
}
