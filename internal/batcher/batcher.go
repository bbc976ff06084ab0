// Package batcher serializes classified sheets into size-bounded request text.
package batcher

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/comps-intel/internal/model"
)

const (
	// Preamble opens every serialized batch.
	Preamble = "Below is data from an Excel file containing company information:\n\n"
	// TruncationMarker is appended wherever sheet text was cut to fit.
	TruncationMarker = "\n... (truncated due to size limits)"

	sheetSeparator = "\n\n"
	cellSeparator  = " | "
)

// Options bounds batch sizes. Sizes are counted in bytes, which never
// undercounts characters.
type Options struct {
	MaxChars      int
	CharsPerToken int
	BatchTokens   int
}

// DefaultOptions sizes batches for a 1M-token input window with a 20% margin
// and a 200k-token per-request ceiling.
func DefaultOptions() Options {
	return Options{
		MaxChars:      3_200_000,
		CharsPerToken: 4,
		BatchTokens:   200_000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxChars <= 0 {
		o.MaxChars = d.MaxChars
	}
	if o.CharsPerToken <= 0 {
		o.CharsPerToken = d.CharsPerToken
	}
	if o.BatchTokens <= 0 {
		o.BatchTokens = d.BatchTokens
	}
	return o
}

// Section is one sheet's serialized text inside a batch.
type Section struct {
	Name  string
	Class model.SheetClass
	Text  string
}

// Batch is one unit of extraction work. Text is the full serialized context
// and never exceeds the configured MaxChars.
type Batch struct {
	Sections  []Section
	Text      string
	Truncated bool
}

// HasClass reports whether any section in the batch has the given class.
func (b Batch) HasClass(c model.SheetClass) bool {
	for _, s := range b.Sections {
		if s.Class == c {
			return true
		}
	}
	return false
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string, charsPerToken int) int {
	if charsPerToken <= 0 {
		charsPerToken = DefaultOptions().CharsPerToken
	}
	return len(text) / charsPerToken
}

// Serialize renders one sheet as a header line followed by pipe-delimited
// rows. Rows with no content are dropped.
func Serialize(s model.ClassifiedSheet) string {
	var b strings.Builder
	b.WriteString(header(s))
	first := true
	for _, row := range s.Rows {
		if blank(row) {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		first = false
		b.WriteString(strings.Join(trimTrailing(row), cellSeparator))
	}
	return b.String()
}

func header(s model.ClassifiedSheet) string {
	if s.Class == "" || s.Class == model.SheetClassUnclassified {
		return "=== SHEET: " + s.Name + " ===\n"
	}
	return "=== SHEET: " + s.Name + " (" + string(s.Class) + ") ===\n"
}

// Split groups sheets into batches. Sheets are accumulated greedily until the
// next one would push the batch's estimated tokens past BatchTokens. A sheet
// larger than the ceiling gets a batch of its own.
func Split(sheets []model.ClassifiedSheet, opts Options) []Batch {
	opts = opts.withDefaults()
	if len(sheets) == 0 {
		return nil
	}

	var (
		groups  [][]Section
		current []Section
		tokens  int
	)
	for _, s := range sheets {
		sec := Section{Name: s.Name, Class: s.Class, Text: Serialize(s)}
		t := EstimateTokens(sec.Text, opts.CharsPerToken)
		if len(current) > 0 && tokens+t > opts.BatchTokens {
			groups = append(groups, current)
			current = nil
			tokens = 0
		}
		current = append(current, sec)
		tokens += t
	}
	groups = append(groups, current)

	batches := make([]Batch, 0, len(groups))
	for _, g := range groups {
		batches = append(batches, Assemble(g, opts.MaxChars))
	}

	if len(batches) > 1 {
		zap.L().Info("batcher: split sheets into batches",
			zap.Int("sheets", len(sheets)),
			zap.Int("batches", len(batches)),
		)
	}
	return batches
}

// Assemble joins sections under the preamble without exceeding maxChars. The
// section that overflows is cut and marked; sections after it are skipped.
func Assemble(sections []Section, maxChars int) Batch {
	if maxChars <= 0 {
		maxChars = DefaultOptions().MaxChars
	}

	var (
		b     strings.Builder
		batch Batch
	)
	b.WriteString(Preamble)

	for _, sec := range sections {
		need := len(sec.Text) + len(sheetSeparator)
		if b.Len()+need <= maxChars {
			b.WriteString(sec.Text)
			b.WriteString(sheetSeparator)
			batch.Sections = append(batch.Sections, sec)
			continue
		}

		batch.Truncated = true
		remaining := maxChars - b.Len() - len(TruncationMarker) - len(sheetSeparator)
		if remaining <= 0 {
			zap.L().Warn("batcher: context limit reached, skipping sheet",
				zap.String("sheet", sec.Name),
			)
			break
		}

		cut := cutUTF8(sec.Text, remaining)
		b.WriteString(cut)
		b.WriteString(TruncationMarker)
		b.WriteString(sheetSeparator)
		sec.Text = cut
		batch.Sections = append(batch.Sections, sec)
		zap.L().Warn("batcher: sheet truncated to fit context",
			zap.String("sheet", sec.Name),
			zap.Int("kept_bytes", len(cut)),
		)
		break
	}

	batch.Text = clamp(b.String(), maxChars)
	if len(batch.Text) < b.Len() {
		batch.Truncated = true
	}
	return batch
}

// clamp enforces the hard budget on fully assembled text.
func clamp(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	if maxChars <= len(TruncationMarker) {
		return cutUTF8(text, maxChars)
	}
	return cutUTF8(text, maxChars-len(TruncationMarker)) + TruncationMarker
}

// cutUTF8 returns the longest prefix of s no longer than n bytes that ends on
// a rune boundary.
func cutUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimTrailing(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
