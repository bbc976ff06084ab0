// Package model defines the data types shared by the extraction engine.
package model

// Visibility is the display state of a worksheet tab.
type Visibility string

const (
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
)

// WorkbookSheet is one named tab of a workbook. Blank cells are empty strings.
type WorkbookSheet struct {
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Rows       [][]string `json:"rows"`
}

// Visible reports whether the sheet is shown to workbook users.
func (s WorkbookSheet) Visible() bool {
	return s.Visibility != VisibilityHidden
}

// SheetClass is the derived role of a worksheet.
type SheetClass string

const (
	SheetClassTransaction  SheetClass = "transaction"
	SheetClassComparable   SheetClass = "comparable"
	SheetClassUnclassified SheetClass = "unclassified"
)

// ClassifiedSheet pairs a sheet with the class it was selected under.
type ClassifiedSheet struct {
	WorkbookSheet
	Class SheetClass `json:"class"`
}
