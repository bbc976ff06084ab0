package workbook

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/comps-intel/internal/model"
)

type testSheet struct {
	name   string
	hidden bool
	rows   [][]string
}

func createTestXLSX(t *testing.T, sheets []testSheet) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.name)
		require.NoError(t, err)
		for _, rowData := range s.rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func createTestExcelize(t *testing.T, sheets []testSheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, rowData := range s.rows {
			for c, v := range rowData {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(s.name, cell, v))
			}
		}
	}
	for i, s := range sheets {
		if s.hidden && i > 0 {
			require.NoError(t, f.SetSheetVisible(s.name, false))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRead_XLSX(t *testing.T) {
	data := createTestXLSX(t, []testSheet{
		{name: "Public Comps", rows: [][]string{{"Company", "Score"}, {"Acme", "90"}}},
		{name: "Notes", rows: [][]string{{"hello"}}},
	})

	sheets, err := Read("deck.xlsx", data)
	require.NoError(t, err)
	require.Len(t, sheets, 2)

	assert.Equal(t, "Public Comps", sheets[0].Name)
	assert.Equal(t, model.VisibilityVisible, sheets[0].Visibility)
	assert.Equal(t, [][]string{{"Company", "Score"}, {"Acme", "90"}}, sheets[0].Rows)
	assert.Equal(t, "Notes", sheets[1].Name)
}

func TestRead_ExcelizeHiddenSheet(t *testing.T) {
	data := createTestExcelize(t, []testSheet{
		{name: "Deal Comps", rows: [][]string{{"Target", "Acquirer"}, {"A", "B"}}},
		{name: "Scratch", hidden: true, rows: [][]string{{"x"}}},
	})

	sheets, err := Read("model.xlsm", data)
	require.NoError(t, err)
	require.Len(t, sheets, 2)

	assert.Equal(t, "Deal Comps", sheets[0].Name)
	assert.True(t, sheets[0].Visible())
	assert.Equal(t, [][]string{{"Target", "Acquirer"}, {"A", "B"}}, sheets[0].Rows)
	assert.Equal(t, "Scratch", sheets[1].Name)
	assert.False(t, sheets[1].Visible())
}

func TestRead_CSV(t *testing.T) {
	data := []byte("\ufeffCompany, Ticker\nAcme,ACM\nBeta\n")

	sheets, err := Read("list.CSV", data)
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	assert.Equal(t, CSVSheetName, sheets[0].Name)
	assert.True(t, sheets[0].Visible())
	assert.Equal(t, [][]string{{"Company", "Ticker"}, {"Acme", "ACM"}, {"Beta"}}, sheets[0].Rows)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		data   []byte
		reason string
	}{
		{"empty", "a.xlsx", nil, "empty file"},
		{"unsupported", "deck.pptx", []byte("x"), `unsupported extension ".pptx"`},
		{"legacy xls", "old.xls", []byte("x"), `unsupported extension ".xls"`},
		{"corrupt xlsx", "bad.xlsx", []byte("not a zip archive"), "parse xlsx"},
		{"corrupt xlsm", "bad.xlsm", []byte("not a zip archive"), "parse workbook"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(tt.file, tt.data)
			require.Error(t, err)

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.file, le.Path)
			assert.Equal(t, tt.reason, le.Reason)
			assert.Contains(t, err.Error(), tt.file)
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.xlsx"))
	assert.True(t, Supported("a.XLSM"))
	assert.True(t, Supported("dir/a.csv"))
	assert.False(t, Supported("a.xls"))
	assert.False(t, Supported("a.pdf"))
	assert.False(t, Supported("noext"))
}
