package fetch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

type sheetData struct {
	name string
	rows [][]string
}

// writeWorkbook saves a workbook with the given sheets, in order, and
// returns its path.
func writeWorkbook(t *testing.T, sheets ...sheetData) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, sd := range sheets {
		sheet, err := f.AddSheet(sd.name)
		require.NoError(t, err)
		for _, cells := range sd.rows {
			row := sheet.AddRow()
			for _, value := range cells {
				row.AddCell().SetString(value)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func rosterSheet(name string) sheetData {
	return sheetData{name: name, rows: [][]string{
		{"License", "Business"},
		{"123456", "Acme Roofing"},
		{"789012", "Bluebonnet Electric"},
	}}
}

func TestReadXLSX(t *testing.T) {
	path := writeWorkbook(t,
		sheetData{name: "Cover", rows: [][]string{{"Texas Licensed Contractors"}}},
		rosterSheet("Licenses"),
	)
	roster := rosterSheet("Licenses").rows

	cases := map[string]struct {
		opts XLSXOptions
		want [][]string
	}{
		"default first sheet": {
			want: [][]string{{"Texas Licensed Contractors"}},
		},
		"sheet by index": {
			opts: XLSXOptions{SheetIndex: 1},
			want: roster,
		},
		"sheet by name": {
			opts: XLSXOptions{SheetName: "Licenses"},
			want: roster,
		},
		"skip header rows": {
			opts: XLSXOptions{SheetName: "Licenses", SkipRows: 1},
			want: roster[1:],
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rows, err := ReadXLSX(path, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, rows)
		})
	}
}

func TestReadXLSX_Errors(t *testing.T) {
	path := writeWorkbook(t, rosterSheet("Licenses"))

	cases := map[string]struct {
		path    string
		opts    XLSXOptions
		wantErr string
	}{
		"unknown sheet name": {path: path, opts: XLSXOptions{SheetName: "Missing"}, wantErr: `sheet "Missing" not found`},
		"index out of range": {path: path, opts: XLSXOptions{SheetIndex: 5}, wantErr: "out of range"},
		"missing file":       {path: filepath.Join(t.TempDir(), "nope.xlsx"), wantErr: "open file"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadXLSX(tc.path, tc.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestReadXLSX_HeaderDiverted(t *testing.T) {
	path := writeWorkbook(t, rosterSheet("Licenses"))
	headerCh := make(chan []string, 1)

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1, HeaderCh: headerCh})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"License", "Business"}, <-headerCh)
}

func TestStreamXLSX(t *testing.T) {
	path := writeWorkbook(t, rosterSheet("Licenses"))
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SkipRows: 1, HeaderCh: headerCh})
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		require.NoError(t, err)
	}

	assert.Equal(t, [][]string{
		{"123456", "Acme Roofing"},
		{"789012", "Bluebonnet Electric"},
	}, rows)
	assert.Equal(t, []string{"License", "Business"}, <-headerCh)
}

func TestStreamXLSX_CancelMidStream(t *testing.T) {
	bulk := make([][]string, 1000)
	for i := range bulk {
		bulk[i] = []string{"123456", "Acme Roofing"}
	}
	path := writeWorkbook(t, sheetData{name: "Licenses", rows: bulk})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rowCh, errCh := StreamXLSX(ctx, path, XLSXOptions{})
	for range 5 {
		<-rowCh
	}
	cancel()
	for range rowCh {
	}

	var gotErr error
	for err := range errCh {
		gotErr = err
	}
	// The producer may flush its buffered rows before noticing the
	// cancelled context, so a clean close is also acceptable.
	if gotErr != nil {
		assert.Contains(t, gotErr.Error(), "context cancelled")
	}
}
