// Package aggregate merges per-file extraction outcomes into one ranked,
// bounded analysis result.
package aggregate

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/comps-intel/internal/model"
)

// Options bounds the merged result.
type Options struct {
	MaxTransactions   int
	MaxCandidates     int
	VerifiedThreshold int
}

// DefaultOptions returns the production bounds.
func DefaultOptions() Options {
	return Options{MaxTransactions: 20, MaxCandidates: 20, VerifiedThreshold: 70}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxTransactions <= 0 {
		o.MaxTransactions = d.MaxTransactions
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = d.MaxCandidates
	}
	if o.VerifiedThreshold <= 0 {
		o.VerifiedThreshold = d.VerifiedThreshold
	}
	return o
}

// Merge consolidates outcomes for subject. Failed outcomes only contribute to
// the failed-file list. When no outcome succeeded the result type is Error.
func Merge(subject string, outcomes []model.FileOutcome, opts Options) *model.AnalysisResult {
	opts = opts.withDefaults()

	res := &model.AnalysisResult{
		SubjectCompany:  subject,
		TotalFilesFound: len(outcomes),
		FailedFiles:     []model.FailedFile{},
	}

	var (
		txns            []model.TransactionRecord
		companies       []model.CompanyCandidate
		hasTxn, hasComp bool
	)
	for _, o := range outcomes {
		if o.Failed() {
			res.FailedFiles = append(res.FailedFiles, model.FailedFile{Path: o.Path, Error: o.Err})
			continue
		}
		res.FilesProcessed++
		hasTxn = hasTxn || o.HasTransaction
		hasComp = hasComp || o.HasComparable
		txns = append(txns, o.Extraction.Transactions...)
		companies = append(companies, o.Extraction.Companies...)
		if res.Reasoning == "" {
			res.Reasoning = o.Extraction.Reasoning
		}
	}

	switch {
	case res.FilesProcessed == 0:
		res.Type = model.ResultTypeError
	case hasTxn && hasComp:
		res.Type = model.ResultTypeBoth
	case hasTxn:
		res.Type = model.ResultTypeTransaction
	default:
		res.Type = model.ResultTypeComparable
	}

	res.Transactions = RankTransactions(txns, opts.MaxTransactions)
	res.ClassifiedCompanySet = ClassifyCandidates(companies, opts.VerifiedThreshold, opts.MaxCandidates)
	res.TransactionCount = len(res.Transactions)
	res.VerifiedCount = len(res.Verified)
	res.CrossCheckCount = len(res.ToCrossCheck)

	zap.L().Info("aggregate: merged outcomes",
		zap.String("subject", subject),
		zap.String("type", string(res.Type)),
		zap.Int("files_processed", res.FilesProcessed),
		zap.Int("files_failed", len(res.FailedFiles)),
		zap.Int("transactions", res.TransactionCount),
		zap.Int("verified", res.VerifiedCount),
		zap.Int("crosscheck", res.CrossCheckCount),
	)
	return res
}

// RankTransactions orders records by populated metric count, most first, and
// keeps at most limit. Equal counts keep their input order.
func RankTransactions(txns []model.TransactionRecord, limit int) []model.TransactionRecord {
	out := append([]model.TransactionRecord{}, txns...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MetricCount() > out[j].MetricCount()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ClassifyCandidates splits candidates at threshold, keeps the best-scoring
// entry per normalized name, resolves names present on both sides to
// Verified, and ranks each list by score.
func ClassifyCandidates(candidates []model.CompanyCandidate, threshold, limit int) model.ClassifiedCompanySet {
	verified := newBucket()
	crossCheck := newBucket()
	fold := cases.Fold()

	for _, c := range candidates {
		key := NormalizeName(fold, c.Name)
		if key == "" {
			continue
		}
		if c.Score >= threshold {
			verified.offer(key, c)
		} else {
			crossCheck.offer(key, c)
		}
	}
	for key := range verified.byKey {
		crossCheck.remove(key)
	}

	return model.ClassifiedCompanySet{
		Verified:     verified.ranked(limit),
		ToCrossCheck: crossCheck.ranked(limit),
	}
}

// NormalizeName is the dedup identity of a company name: NFKC, case-folded,
// with whitespace runs collapsed.
func NormalizeName(fold cases.Caser, name string) string {
	return strings.Join(strings.Fields(fold.String(norm.NFKC.String(name))), " ")
}

// bucket keeps one candidate per key, remembering first-seen order.
type bucket struct {
	byKey map[string]model.CompanyCandidate
	order []string
}

func newBucket() *bucket {
	return &bucket{byKey: make(map[string]model.CompanyCandidate)}
}

func (b *bucket) offer(key string, c model.CompanyCandidate) {
	existing, ok := b.byKey[key]
	if !ok {
		b.byKey[key] = c
		b.order = append(b.order, key)
		return
	}
	if c.Score > existing.Score {
		b.byKey[key] = c
	}
}

func (b *bucket) remove(key string) {
	delete(b.byKey, key)
}

func (b *bucket) ranked(limit int) []model.CompanyCandidate {
	out := make([]model.CompanyCandidate, 0, len(b.byKey))
	for _, key := range b.order {
		if c, ok := b.byKey[key]; ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
