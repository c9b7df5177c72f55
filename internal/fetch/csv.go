// Package fetch downloads and parses contractor license rosters from HTTP,
// FTP, CSV, XLSX, and ZIP sources.
package fetch

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune            // default ','
	Comment    rune            // comment character (0 = none)
	LazyQuotes bool            // tolerate stray quotes inside fields
	TrimSpace  bool            // trim whitespace around every field
	Charset    string          // source charset (e.g. "windows-1252"); empty means UTF-8
	HasHeader  bool            // if true, the first row is diverted to HeaderCh
	HeaderCh   chan<- []string // optional: receives the header row
}

// decodeReader wraps r with a charset decoder when the source is not
// UTF-8. Legacy board extracts are commonly windows-1252.
func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}

func newCSVReader(r io.Reader, opts CSVOptions) *csv.Reader {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // board extracts have ragged rows
	return reader
}

// StreamCSV reads CSV rows from r and sends them to a channel. The caller
// must drain the row channel; a terminal error, if any, arrives on the
// error channel. Both channels close when parsing finishes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		decoded, err := decodeReader(r, opts.Charset)
		if err != nil {
			errCh <- err
			return
		}
		reader := newCSVReader(decoded, opts)

		send := func(ch chan<- []string, rec []string) bool {
			select {
			case ch <- rec:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for i := 0; ; i++ {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for j, field := range record {
					record[j] = strings.TrimSpace(field)
				}
			}

			if i == 0 && opts.HasHeader {
				if opts.HeaderCh != nil && !send(opts.HeaderCh, record) {
					errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
					return
				}
				continue
			}

			if !send(rowCh, record) {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
