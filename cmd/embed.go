package main

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var embedBackfillLimit int

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Backfill bid-card embeddings",
	Long: `Re-embeds bid cards whose embedding is missing or was computed by a
different model than the one configured. Per-card failures are logged and
skipped; rerun to pick them up.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "embed")
		if err != nil {
			return err
		}
		defer st.Close()

		client := newEmbedClient()
		cards, err := st.ListBidCardsForBackfill(ctx, cfg.Embedding.Model, embedBackfillLimit)
		if err != nil {
			return err
		}
		if len(cards) == 0 {
			fmt.Println("Nothing to embed")
			return nil
		}

		concurrency := cfg.Embedding.Concurrency
		if concurrency <= 0 {
			concurrency = 4
		}

		var embedded, failed atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, bc := range cards {
			g.Go(func() error {
				vec, err := client.EmbedText(gctx, bc.EmbeddingText())
				if err != nil {
					zap.L().Warn("embed failed",
						zap.String("bid_card_id", bc.ID),
						zap.Error(err),
					)
					failed.Add(1)
					return nil
				}
				if err := st.UpdateBidCardEmbedding(gctx, bc.ID, vec, client.Model()); err != nil {
					zap.L().Warn("save embedding failed",
						zap.String("bid_card_id", bc.ID),
						zap.Error(err),
					)
					failed.Add(1)
					return nil
				}
				embedded.Add(1)
				return nil
			})
		}
		_ = g.Wait()

		zap.L().Info("embedding backfill complete",
			zap.Int("candidates", len(cards)),
			zap.Int64("embedded", embedded.Load()),
			zap.Int64("failed", failed.Load()),
		)
		fmt.Printf("Embedded %d bid cards (%d failed)\n", embedded.Load(), failed.Load())
		return nil
	},
}

func init() {
	embedCmd.Flags().IntVar(&embedBackfillLimit, "limit", 500, "max bid cards per run")
	rootCmd.AddCommand(embedCmd)
}
