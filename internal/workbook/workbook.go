// Package workbook reads spreadsheet bytes into ordered, visibility-tagged sheets.
package workbook

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/comps-intel/internal/model"
)

// CSVSheetName is the tab name given to materialized CSV input.
const CSVSheetName = "Sheet1"

// LoadError reports a workbook that could not be read. It is fatal for the
// file it names and nothing else.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("workbook: %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("workbook: %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Supported reports whether name has an extension Read can parse.
func Supported(name string) bool {
	switch ext(name) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm", ".csv":
		return true
	}
	return false
}

// Read parses raw bytes into sheets in workbook order. The format is chosen by
// the extension of name. Plain .xlsx goes through the tealeg reader first and
// falls back to excelize when tealeg rejects the file.
func Read(name string, data []byte) ([]model.WorkbookSheet, error) {
	if len(data) == 0 {
		return nil, &LoadError{Path: name, Reason: "empty file"}
	}

	switch ext(name) {
	case ".csv":
		sheets, err := readCSV(data)
		if err != nil {
			return nil, &LoadError{Path: name, Reason: "parse csv", Err: err}
		}
		return sheets, nil

	case ".xlsx":
		sheets, err := readXLSX(data)
		if err == nil {
			return sheets, nil
		}
		zap.L().Debug("workbook: xlsx reader failed, trying excelize",
			zap.String("file", name),
			zap.Error(err),
		)
		sheets, ferr := readExcelize(data)
		if ferr != nil {
			return nil, &LoadError{Path: name, Reason: "parse xlsx", Err: eris.Wrapf(ferr, "excelize fallback after: %v", err)}
		}
		return sheets, nil

	case ".xlsm", ".xltx", ".xltm":
		sheets, err := readExcelize(data)
		if err != nil {
			return nil, &LoadError{Path: name, Reason: "parse workbook", Err: err}
		}
		return sheets, nil

	default:
		return nil, &LoadError{Path: name, Reason: fmt.Sprintf("unsupported extension %q", ext(name))}
	}
}

func ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
