package workbook

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/comps-intel/internal/model"
)

func readXLSX(data []byte) ([]model.WorkbookSheet, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open binary")
	}

	sheets := make([]model.WorkbookSheet, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		ws := model.WorkbookSheet{
			Name:       sheet.Name,
			Visibility: model.VisibilityVisible,
		}
		if sheet.Hidden {
			ws.Visibility = model.VisibilityHidden
		}
		for _, row := range sheet.Rows {
			ws.Rows = append(ws.Rows, rowToStrings(row))
		}
		sheets = append(sheets, ws)
	}
	return sheets, nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}
