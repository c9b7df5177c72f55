package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/fetch"
	"github.com/homebid/match-cli/internal/model"
)

var importCSVPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import contractor profiles from CSV",
	Long: `Upserts contractor profiles from a headered CSV. Expected columns:
id (optional, generated when empty), name, categories (pipe-separated),
lat, lng, phone, email, rating, active_jobs, max_concurrent,
accept_rate_30d, license_number, enabled.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "import")
		if err != nil {
			return err
		}
		defer st.Close()

		contractors, skipped, err := readContractorsCSV(ctx, importCSVPath)
		if err != nil {
			return err
		}

		imported := 0
		for i := range contractors {
			if err := st.UpsertContractor(ctx, &contractors[i]); err != nil {
				zap.L().Warn("contractor upsert failed",
					zap.String("name", contractors[i].Name),
					zap.Error(err),
				)
				skipped++
				continue
			}
			imported++
		}

		zap.L().Info("contractor import complete",
			zap.Int("imported", imported),
			zap.Int("skipped", skipped),
			zap.String("csv", importCSVPath),
		)
		fmt.Printf("Imported %d contractors (%d skipped)\n", imported, skipped)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}

// readContractorsCSV streams the CSV into contractor profiles. Rows without
// a name are counted as skipped, not errors.
func readContractorsCSV(ctx context.Context, path string) ([]model.Contractor, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "import: open %s", path)
	}
	defer f.Close()

	rows, errs := fetch.StreamCSV(ctx, f, fetch.CSVOptions{TrimSpace: true})

	var (
		contractors []model.Contractor
		skipped     int
		colIdx      map[string]int
	)
	for rec := range rows {
		if colIdx == nil {
			colIdx = mapCSVColumns(rec)
			continue
		}
		c, ok := parseContractorRow(rec, colIdx)
		if !ok {
			skipped++
			continue
		}
		contractors = append(contractors, c)
	}
	if err := <-errs; err != nil {
		return nil, 0, eris.Wrap(err, "import: parse csv")
	}
	return contractors, skipped, nil
}

func mapCSVColumns(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseContractorRow(rec []string, col map[string]int) (model.Contractor, bool) {
	get := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	c := model.Contractor{
		ID:      get("id"),
		Name:    get("name"),
		Phone:   get("phone"),
		Email:   get("email"),
		Enabled: true,
	}
	if c.Name == "" {
		return model.Contractor{}, false
	}

	for _, raw := range strings.Split(get("categories"), "|") {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		cat, err := model.ParseCategory(raw)
		if err != nil {
			continue
		}
		c.Categories = append(c.Categories, cat)
	}

	if lat, lng := get("lat"), get("lng"); lat != "" && lng != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		ln, errLng := strconv.ParseFloat(lng, 64)
		if errLat == nil && errLng == nil {
			c.Location = &model.LatLng{Lat: la, Lng: ln}
		}
	}

	c.Rating = parseFloatOr(get("rating"), 0)
	c.ActiveJobs = parseIntOr(get("active_jobs"), 0)
	c.MaxConcurrent = parseIntOr(get("max_concurrent"), 0)
	c.AcceptRate30d = parseFloatOr(get("accept_rate_30d"), 0)
	if ln := get("license_number"); ln != "" {
		c.LicenseNumber = &ln
	}
	if v := strings.ToLower(get("enabled")); v != "" {
		c.Enabled = v != "false" && v != "0"
	}
	return c, true
}

func parseIntOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloatOr(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}
