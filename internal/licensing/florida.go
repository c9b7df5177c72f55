package licensing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/homebid/match-cli/internal/fetch"
	"github.com/homebid/match-cli/internal/model"
)

const (
	defaultFLFTPAddr = "ftp.dbpr.state.fl.us"
	defaultFLFTPPath = "/pub/llweb/cilb_certified.csv"
)

// DBPR licensure extracts are positional; there is no header row.
const (
	flColLicenseType = 1
	flColNumber      = 2
	flColStatus      = 3
	flColName        = 4
	flColCity        = 8
	flColZip         = 10
	flColPhone       = 12
	flColIssued      = 13
	flColExpires     = 14
)

// rosterDownloader is the slice of the fetch layer the FTP source needs.
type rosterDownloader interface {
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Florida syncs the Construction Industry Licensing Board extract that
// DBPR still publishes on anonymous FTP, encoded Windows-1252.
type Florida struct {
	f    rosterDownloader
	addr string
	path string
}

// NewFlorida returns the Florida source. Empty addr or path fall back
// to the DBPR public extract location.
func NewFlorida(f rosterDownloader, addr, path string) *Florida {
	if addr == "" {
		addr = defaultFLFTPAddr
	}
	if path == "" {
		path = defaultFLFTPPath
	}
	return &Florida{f: f, addr: addr, path: path}
}

func (d *Florida) State() string { return "FL" }

func (d *Florida) URL() string {
	return fmt.Sprintf("ftp://%s%s", d.addr, d.path)
}

// ETag always reports no change marker; FTP gives us nothing to compare.
func (d *Florida) ETag(context.Context) (string, error) {
	return "", nil
}

func (d *Florida) Roster(ctx context.Context, tempDir string) (<-chan model.License, <-chan error) {
	out := make(chan model.License, 64)
	errOut := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errOut)

		csvPath := filepath.Join(tempDir, "fl_cilb.csv")
		if _, err := d.f.DownloadToFile(ctx, d.URL(), csvPath); err != nil {
			errOut <- eris.Wrap(err, "florida: download extract")
			return
		}
		defer os.Remove(csvPath) //nolint:errcheck

		file, err := os.Open(csvPath)
		if err != nil {
			errOut <- eris.Wrap(err, "florida: open extract")
			return
		}
		defer file.Close() //nolint:errcheck

		rows, errs := fetch.StreamCSV(ctx, file, fetch.CSVOptions{
			LazyQuotes: true,
			Charset:    "windows-1252",
		})

		for rec := range rows {
			lic, ok := d.parseRow(rec)
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
			errOut <- eris.Wrap(err, "florida: parse extract")
		}
	}()

	return out, errOut
}

func (d *Florida) parseRow(rec []string) (model.License, bool) {
	if len(rec) <= flColExpires {
		return model.License{}, false
	}
	number := trimQuotes(rec[flColNumber])
	name := sanitizeUTF8(trimQuotes(rec[flColName]))
	if number == "" || name == "" {
		return model.License{}, false
	}

	return model.License{
		State:          "FL",
		LicenseNumber:  number,
		BusinessName:   name,
		Classification: trimQuotes(rec[flColLicenseType]),
		Status:         normalizeStatus(rec[flColStatus]),
		City:           sanitizeUTF8(trimQuotes(rec[flColCity])),
		Zip:            trimQuotes(rec[flColZip]),
		Phone:          phonePtr(rec[flColPhone]),
		IssuedAt:       parseDate(rec[flColIssued]),
		ExpiresAt:      parseDate(rec[flColExpires]),
	}, true
}
