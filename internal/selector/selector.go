// Package selector narrows candidate workbook paths to a small, balanced
// working set.
package selector

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/comps-intel/internal/model"
	"github.com/sells-group/comps-intel/internal/sheets"
)

const (
	// MaxFiles bounds the working set.
	MaxFiles = 4
	// PerCategory is taken from each category when both are present.
	PerCategory = 2
)

// sharedDocsMarker prefixes the drive-relative part of a SharePoint path.
const sharedDocsMarker = "Shared Documents/"

var fullPathPattern = regexp.MustCompile(`(?i)Full Path:\s*(.+?\.(?:xlsx|xlsm|xls|csv|pptx|pdf))`)

// Folder names that mark a category by convention.
var (
	transactionFolders = regexp.MustCompile(`(?i)(^|[^a-z])(m&a|ma|transactions?|precedents?|deals?)([^a-z]|$)`)
	comparableFolders  = regexp.MustCompile(`(?i)(public|trading|equity)[ _-]*comps`)
)

// ExtractPaths pulls "Full Path: ..." references out of free text, cut at the
// file extension, trimmed and deduplicated in order of first appearance.
func ExtractPaths(text string) []model.FileReference {
	seen := make(map[string]bool)
	var refs []model.FileReference
	for _, m := range fullPathPattern.FindAllStringSubmatch(text, -1) {
		p := strings.TrimSpace(m[1])
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		refs = append(refs, model.FileReference{
			Path:         p,
			RelativePath: RelativePath(p),
			Category:     Categorize(p),
		})
	}
	return refs
}

// RelativePath returns the part of p after "Shared Documents/", or p itself.
func RelativePath(p string) string {
	if _, after, ok := strings.Cut(p, sharedDocsMarker); ok {
		return after
	}
	return p
}

// Categorize infers a file's category: folder convention first, then the
// sheet-name rules on the file's base name, then a bare "comps" catch-all.
func Categorize(p string) model.FileCategory {
	p = strings.ReplaceAll(p, `\`, "/")
	dir, file := path.Split(p)

	for _, seg := range strings.Split(strings.Trim(dir, "/"), "/") {
		if seg == "" {
			continue
		}
		switch {
		case comparableFolders.MatchString(seg):
			return model.FileCategoryComparable
		case transactionFolders.MatchString(seg):
			return model.FileCategoryTransaction
		}
	}

	base := strings.TrimSuffix(file, path.Ext(file))
	switch sheets.Match(base) {
	case model.SheetClassTransaction:
		return model.FileCategoryTransaction
	case model.SheetClassComparable:
		return model.FileCategoryComparable
	}
	if strings.Contains(strings.ToLower(base), "comps") {
		return model.FileCategoryComparable
	}
	return model.FileCategoryUnknown
}

// Select returns at most MaxFiles references sorted by path. Both categories
// present: the first PerCategory of each. One category: up to MaxFiles of it.
// Nothing categorized: the first MaxFiles candidates.
func Select(candidates []model.FileReference) []model.FileReference {
	var all, txn, comp []model.FileReference
	seen := make(map[string]bool)
	for _, c := range candidates {
		if c.Path == "" || seen[c.Path] {
			continue
		}
		seen[c.Path] = true
		if c.Category == "" {
			c.Category = Categorize(c.Path)
		}
		if c.RelativePath == "" {
			c.RelativePath = RelativePath(c.Path)
		}
		all = append(all, c)
		switch c.Category {
		case model.FileCategoryTransaction:
			txn = append(txn, c)
		case model.FileCategoryComparable:
			comp = append(comp, c)
		}
	}

	var out []model.FileReference
	switch {
	case len(txn) > 0 && len(comp) > 0:
		out = append(out, head(txn, PerCategory)...)
		out = append(out, head(comp, PerCategory)...)
	case len(txn) > 0:
		out = head(txn, MaxFiles)
	case len(comp) > 0:
		out = head(comp, MaxFiles)
	default:
		out = head(all, MaxFiles)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	zap.L().Info("selector: selected files",
		zap.Int("candidates", len(all)),
		zap.Int("transaction", len(txn)),
		zap.Int("comparable", len(comp)),
		zap.Int("selected", len(out)),
	)
	return out
}

// Paths returns the logical paths of refs.
func Paths(refs []model.FileReference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Path
	}
	return out
}

func head(refs []model.FileReference, n int) []model.FileReference {
	if len(refs) > n {
		refs = refs[:n]
	}
	return append([]model.FileReference(nil), refs...)
}
