package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/homebid/match-cli/internal/market"
	"github.com/homebid/match-cli/internal/store"
)

var marketsState string

var marketsCmd = &cobra.Command{
	Use:   "markets <shapefile>...",
	Short: "Load market boundary polygons from shapefiles",
	Long: `Loads census place or county shapefiles into the markets table for
point-in-polygon market assignment. Reloads upsert on the market slug, so
rerunning with a newer vintage refreshes boundaries in place. Requires the
postgres backend.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "markets")
		if err != nil {
			return err
		}
		defer st.Close()

		gs, ok := st.(store.GeoStore)
		if !ok {
			return eris.New("markets requires the postgres backend")
		}
		if err := gs.MigrateGeo(ctx); err != nil {
			return eris.Wrap(err, "markets: migrate geo schema")
		}

		loader := market.NewLoader(gs)
		loaded, err := loader.Load(ctx, args, strings.ToUpper(marketsState))
		if err != nil {
			return eris.Wrap(err, "markets")
		}

		fmt.Printf("Loaded %d market boundaries\n", loaded)
		return nil
	},
}

func init() {
	marketsCmd.Flags().StringVar(&marketsState, "state", "", "two-letter state code for the shapefiles (required)")
	_ = marketsCmd.MarkFlagRequired("state")
	rootCmd.AddCommand(marketsCmd)
}
