package workbook

import (
	"bytes"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/comps-intel/internal/model"
)

func readExcelize(data []byte) ([]model.WorkbookSheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "excelize: open reader")
	}
	defer f.Close() //nolint:errcheck

	names := f.GetSheetList()
	sheets := make([]model.WorkbookSheet, 0, len(names))
	for _, name := range names {
		visible, err := f.GetSheetVisible(name)
		if err != nil {
			return nil, eris.Wrapf(err, "excelize: sheet visibility %q", name)
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, eris.Wrapf(err, "excelize: read rows %q", name)
		}
		ws := model.WorkbookSheet{
			Name:       name,
			Visibility: model.VisibilityVisible,
			Rows:       rows,
		}
		if !visible {
			ws.Visibility = model.VisibilityHidden
		}
		sheets = append(sheets, ws)
	}
	return sheets, nil
}
