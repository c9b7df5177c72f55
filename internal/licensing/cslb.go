package licensing

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/homebid/match-cli/internal/fetch"
	"github.com/homebid/match-cli/internal/model"
)

// defaultCSLBURL is the CSLB public data portal master list (ZIP with a
// single CSV inside).
const defaultCSLBURL = "https://www.cslb.ca.gov/OnlineServices/DataPortal/MasterLicenseData.zip"

// CSLB syncs the California Contractors State License Board master list.
type CSLB struct {
	f   fetch.Fetcher
	url string
}

// NewCSLB returns the California source. An empty url uses the public
// data portal location.
func NewCSLB(f fetch.Fetcher, url string) *CSLB {
	if url == "" {
		url = defaultCSLBURL
	}
	return &CSLB{f: f, url: url}
}

func (d *CSLB) State() string { return "CA" }
func (d *CSLB) URL() string   { return d.url }

func (d *CSLB) ETag(ctx context.Context) (string, error) {
	return d.f.HeadETag(ctx, d.url)
}

func (d *CSLB) Roster(ctx context.Context, tempDir string) (<-chan model.License, <-chan error) {
	out := make(chan model.License, 64)
	errOut := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errOut)

		zipPath := filepath.Join(tempDir, "cslb_master.zip")
		if _, err := d.f.DownloadToFile(ctx, d.url, zipPath); err != nil {
			errOut <- eris.Wrap(err, "cslb: download master list")
			return
		}
		defer os.Remove(zipPath) //nolint:errcheck

		csvPath, err := fetch.ExtractZIPSingle(zipPath, tempDir)
		if err != nil {
			errOut <- eris.Wrap(err, "cslb: extract master list")
			return
		}
		defer os.Remove(csvPath) //nolint:errcheck

		file, err := os.Open(csvPath)
		if err != nil {
			errOut <- eris.Wrap(err, "cslb: open master list")
			return
		}
		defer file.Close() //nolint:errcheck

		rows, errs := fetch.StreamCSV(ctx, file, fetch.CSVOptions{LazyQuotes: true})

		var colIdx map[string]int
		for rec := range rows {
			if colIdx == nil {
				colIdx = mapColumns(rec)
				continue
			}
			lic, ok := d.parseRow(rec, colIdx)
			if !ok {
				continue
			}
			select {
			case out <- lic:
			case <-ctx.Done():
				return
			}
		}
		if err := <-errs; err != nil {
			errOut <- eris.Wrap(err, "cslb: parse master list")
		}
	}()

	return out, errOut
}

func (d *CSLB) parseRow(rec []string, colIdx map[string]int) (model.License, bool) {
	number := trimQuotes(getCol(rec, colIdx, "licenseno"))
	name := sanitizeUTF8(trimQuotes(getCol(rec, colIdx, "businessname")))
	if number == "" || name == "" {
		return model.License{}, false
	}

	return model.License{
		State:          "CA",
		LicenseNumber:  number,
		BusinessName:   name,
		Classification: trimQuotes(getCol(rec, colIdx, "classifications")),
		Status:         normalizeStatus(getCol(rec, colIdx, "primarystatus")),
		City:           sanitizeUTF8(trimQuotes(getCol(rec, colIdx, "city"))),
		Zip:            trimQuotes(getCol(rec, colIdx, "zipcode")),
		Phone:          phonePtr(getCol(rec, colIdx, "businessphone")),
		IssuedAt:       parseDate(getCol(rec, colIdx, "issuedate")),
		ExpiresAt:      parseDate(getCol(rec, colIdx, "expirationdate")),
	}, true
}
