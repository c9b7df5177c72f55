package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/fetch"
	"github.com/homebid/match-cli/internal/licensing"
)

var (
	licensesStates string
	licensesForce  bool
)

var licensesCmd = &cobra.Command{
	Use:   "licenses",
	Short: "Sync state contractor license rosters",
	Long: `Downloads state licensing board rosters (CA CSLB, FL DBPR, TX TDLR),
upserts them into the licenses table, and cross-references license numbers
onto prospects by phone. Sources with an unchanged ETag are skipped unless
--force is set.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, "licenses")
		if err != nil {
			return err
		}
		defer st.Close()

		if err := os.MkdirAll(cfg.Licensing.TempDir, 0o755); err != nil {
			return eris.Wrapf(err, "licenses: create temp dir %s", cfg.Licensing.TempDir)
		}

		httpf := fetch.NewHTTPFetcher(fetch.HTTPOptions{
			UserAgent:  "match-cli licensing sync",
			Timeout:    5 * time.Minute,
			MaxRetries: 3,
		})
		ftpf := fetch.NewFTPFetcher(fetch.FTPOptions{Timeout: 5 * time.Minute})

		reg := licensing.NewRegistry(&cfg.Licensing, httpf, ftpf)
		eng := licensing.NewEngine(st, reg, cfg.Licensing.TempDir)

		opts := licensing.RunOpts{Force: licensesForce}
		if licensesStates != "" {
			opts.States = splitAndTrim(strings.ToUpper(licensesStates))
		}

		zap.L().Info("starting license sync",
			zap.Strings("states", opts.States),
			zap.Bool("force", opts.Force),
		)

		stats, err := eng.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "licenses")
		}

		fmt.Printf("Synced %d sources, skipped %d, failed %d (%d rows upserted, %d prospects linked)\n",
			stats.Synced, stats.Skipped, stats.Failed, stats.RowsUpserted, stats.ProspectsLinked)
		return nil
	},
}

func init() {
	licensesCmd.Flags().StringVar(&licensesStates, "states", "", "comma-separated state codes (default: all)")
	licensesCmd.Flags().BoolVar(&licensesForce, "force", false, "resync even when the roster ETag is unchanged")
	rootCmd.AddCommand(licensesCmd)
}
