package licensing

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/homebid/match-cli/internal/fetch"
	"github.com/homebid/match-cli/internal/model"
)

// defaultTXURL is the TDLR licensed-contractor workbook.
const defaultTXURL = "https://www.tdlr.texas.gov/LicenseSearch/licfile.xlsx"

// Texas syncs the TDLR contractor workbook (XLSX, header row first).
type Texas struct {
	f   fetch.Fetcher
	url string
}

// NewTexas returns the Texas source. An empty url uses the TDLR
// download location.
func NewTexas(f fetch.Fetcher, url string) *Texas {
	if url == "" {
		url = defaultTXURL
	}
	return &Texas{f: f, url: url}
}

func (d *Texas) State() string { return "TX" }
func (d *Texas) URL() string   { return d.url }

func (d *Texas) ETag(ctx context.Context) (string, error) {
	return d.f.HeadETag(ctx, d.url)
}

func (d *Texas) Roster(ctx context.Context, tempDir string) (<-chan model.License, <-chan error) {
	out := make(chan model.License, 64)
	errOut := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errOut)

		xlsxPath := filepath.Join(tempDir, "tdlr_contractors.xlsx")
		if _, err := d.f.DownloadToFile(ctx, d.url, xlsxPath); err != nil {
			errOut <- eris.Wrap(err, "texas: download workbook")
			return
		}
		defer os.Remove(xlsxPath) //nolint:errcheck

		rows, errs := fetch.StreamXLSX(ctx, xlsxPath, fetch.XLSXOptions{})

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
			errOut <- eris.Wrap(err, "texas: parse workbook")
		}
	}()

	return out, errOut
}

func (d *Texas) parseRow(rec []string, colIdx map[string]int) (model.License, bool) {
	number := trimQuotes(getCol(rec, colIdx, "license number"))
	name := sanitizeUTF8(trimQuotes(getCol(rec, colIdx, "business name")))
	if number == "" || name == "" {
		return model.License{}, false
	}

	return model.License{
		State:          "TX",
		LicenseNumber:  number,
		BusinessName:   name,
		Classification: trimQuotes(getCol(rec, colIdx, "license type")),
		Status:         normalizeStatus(getCol(rec, colIdx, "license status")),
		City:           sanitizeUTF8(trimQuotes(getCol(rec, colIdx, "city"))),
		Zip:            trimQuotes(getCol(rec, colIdx, "zip")),
		Phone:          phonePtr(getCol(rec, colIdx, "phone number")),
		IssuedAt:       parseDate(getCol(rec, colIdx, "license issue date")),
		ExpiresAt:      parseDate(getCol(rec, colIdx, "license expiration date")),
	}, true
}
