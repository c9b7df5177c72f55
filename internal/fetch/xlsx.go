package fetch

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the workbook reader.
type XLSXOptions struct {
	SheetName  string          // if set, overrides SheetIndex
	SheetIndex int             // default 0
	SkipRows   int             // leading rows to drop (header rows)
	HeaderCh   chan<- []string // optional: receives the first row
}

// pickSheet resolves which worksheet to read. Boards move the data sheet
// between vintages, so both name and index addressing work.
func pickSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		if sheet, ok := f.Sheet[opts.SheetName]; ok {
			return sheet, nil
		}
		return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func cellStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}

// ReadXLSX loads the selected sheet into memory as string rows. Fine for
// the workbook sizes state boards publish; use StreamXLSX when the caller
// wants backpressure.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		cells := cellStrings(row)
		if i == 0 && opts.HeaderCh != nil {
			opts.HeaderCh <- cells
		}
		if i >= opts.SkipRows {
			rows = append(rows, cells)
		}
	}
	return rows, nil
}

// StreamXLSX sends the selected sheet's rows to a channel. Both channels
// close when the sheet is exhausted or the context is cancelled.
func StreamXLSX(ctx context.Context, path string, opts XLSXOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: open file")
			return
		}
		sheet, err := pickSheet(f, opts)
		if err != nil {
			errCh <- err
			return
		}

		send := func(ch chan<- []string, cells []string) bool {
			select {
			case ch <- cells:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for i, row := range sheet.Rows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}

			cells := cellStrings(row)
			if i == 0 && opts.HeaderCh != nil && !send(opts.HeaderCh, cells) {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled sending header")
				return
			}
			if i < opts.SkipRows {
				continue
			}
			if !send(rowCh, cells) {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
