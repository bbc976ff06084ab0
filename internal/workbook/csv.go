package workbook

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/comps-intel/internal/model"
)

// readCSV materializes CSV text as a single visible sheet.
func readCSV(data []byte) ([]model.WorkbookSheet, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read record")
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		rows = append(rows, record)
	}

	return []model.WorkbookSheet{{
		Name:       CSVSheetName,
		Visibility: model.VisibilityVisible,
		Rows:       rows,
	}}, nil
}
