// Package sheets decides which worksheet tabs of a workbook carry transaction
// comps and which carry comparable-company comps.
package sheets

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/comps-intel/internal/model"
)

const (
	// MaxPerClass is how many sheets of each class survive scoring.
	MaxPerClass = 2
	// FallbackSheets is how many visible sheets are taken when no name matches.
	FallbackSheets = 3
)

// A bare "ma" only counts as a standalone token so names like "Summary Comps"
// stay out of the transaction class.
const maToken = `(?:^|[^a-z])ma(?:[^a-z]|$)`

var (
	transactionPattern = regexp.MustCompile(
		`(?i)(m&a|` + maToken + `|transaction|precedent|deal|private).*comps|comps.*(m&a|` + maToken + `|transaction|precedent|deal)`)
	comparablePattern = regexp.MustCompile(`(?i)(equity|trading|public).*comps|^comps$`)
)

// dataSourceMarkers are vendor names that usually mark a raw export tab.
var dataSourceMarkers = []string{
	"pitchbook", "pitch book", "pitch_book",
	"capiq", "cap iq", "cap_iq", "capitaliq", "capital iq", "capital_iq",
	"factset", "fact set", "fact_set",
	"crunchbase", "crunch base", "crunch_base",
	"preqin", "pre qin", "pre_qin",
}

var sectorKeywords = []string{"sector", "industry", "domain", "segment", "category"}

// Match classifies a single name. The transaction pattern is checked first,
// so a name is never reported as both classes.
func Match(name string) model.SheetClass {
	trimmed := strings.TrimSpace(name)
	switch {
	case transactionPattern.MatchString(trimmed):
		return model.SheetClassTransaction
	case comparablePattern.MatchString(trimmed):
		return model.SheetClassComparable
	default:
		return model.SheetClassUnclassified
	}
}

// Score ranks same-class sheet names. Higher is better.
func Score(name string) int {
	lower := strings.ToLower(name)
	score := 100

	for _, m := range dataSourceMarkers {
		if strings.Contains(lower, m) {
			score -= 50
			break
		}
	}
	for _, k := range sectorKeywords {
		if strings.Contains(lower, k) {
			score += 30
			break
		}
	}

	return score - utf8.RuneCountInString(name)
}

// Classification is the outcome of classifying one workbook. Each list is
// ordered best score first.
type Classification struct {
	Transaction []model.ClassifiedSheet
	Comparable  []model.ClassifiedSheet
	// Fallback is set when no sheet name matched and the first visible sheets
	// were taken as comparable sheets.
	Fallback bool
}

// HasTransaction reports whether any transaction sheet was selected.
func (c Classification) HasTransaction() bool { return len(c.Transaction) > 0 }

// HasComparable reports whether any comparable sheet was selected.
func (c Classification) HasComparable() bool { return len(c.Comparable) > 0 }

// Sheets returns transaction sheets followed by comparable sheets.
func (c Classification) Sheets() []model.ClassifiedSheet {
	out := make([]model.ClassifiedSheet, 0, len(c.Transaction)+len(c.Comparable))
	out = append(out, c.Transaction...)
	return append(out, c.Comparable...)
}

// Classify selects candidate sheets from a workbook. Hidden sheets are ignored.
func Classify(sheets []model.WorkbookSheet) Classification {
	var txn, comp, visible []model.WorkbookSheet
	for _, s := range sheets {
		if !s.Visible() {
			continue
		}
		visible = append(visible, s)

		switch Match(s.Name) {
		case model.SheetClassTransaction:
			txn = append(txn, s)
		case model.SheetClassComparable:
			comp = append(comp, s)
		}
	}

	var out Classification
	out.Transaction = top(txn, model.SheetClassTransaction)
	out.Comparable = top(comp, model.SheetClassComparable)

	if len(txn) == 0 && len(comp) == 0 && len(visible) > 0 {
		n := min(FallbackSheets, len(visible))
		out.Fallback = true
		out.Comparable = make([]model.ClassifiedSheet, 0, n)
		for _, s := range visible[:n] {
			out.Comparable = append(out.Comparable, model.ClassifiedSheet{WorkbookSheet: s, Class: model.SheetClassComparable})
		}
		zap.L().Info("sheets: no comps tab found, using first visible sheets",
			zap.Int("count", n),
		)
	}

	zap.L().Debug("sheets: classified workbook",
		zap.Int("sheets", len(sheets)),
		zap.Int("visible", len(visible)),
		zap.Int("transaction", len(out.Transaction)),
		zap.Int("comparable", len(out.Comparable)),
	)
	return out
}

// top keeps the MaxPerClass best-scoring sheets. Ties keep discovery order.
func top(sheets []model.WorkbookSheet, class model.SheetClass) []model.ClassifiedSheet {
	if len(sheets) == 0 {
		return nil
	}

	type scored struct {
		sheet model.WorkbookSheet
		score int
	}
	ranked := make([]scored, len(sheets))
	for i, s := range sheets {
		ranked[i] = scored{sheet: s, score: Score(s.Name)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	n := min(MaxPerClass, len(ranked))
	out := make([]model.ClassifiedSheet, n)
	for i := range n {
		out[i] = model.ClassifiedSheet{WorkbookSheet: ranked[i].sheet, Class: class}
	}
	return out
}
