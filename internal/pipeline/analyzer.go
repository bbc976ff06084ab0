// Package pipeline runs one competitive-intelligence analysis end to end:
// selection, download, sheet classification, batching, extraction and
// consolidation, wrapped by the analysis cache.
package pipeline

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/comps-intel/internal/aggregate"
	"github.com/sells-group/comps-intel/internal/batcher"
	"github.com/sells-group/comps-intel/internal/cache"
	"github.com/sells-group/comps-intel/internal/extract"
	"github.com/sells-group/comps-intel/internal/model"
	"github.com/sells-group/comps-intel/internal/selector"
	"github.com/sells-group/comps-intel/internal/sheets"
	"github.com/sells-group/comps-intel/internal/storage"
	"github.com/sells-group/comps-intel/internal/store"
	"github.com/sells-group/comps-intel/internal/workbook"
)

// NoCandidatesReasoning is reported when selection leaves nothing to read.
const NoCandidatesReasoning = "no candidate files found"

// Analyzer is safe for concurrent use. Each Analyze call gets its own
// extraction session; the cache is shared.
type Analyzer struct {
	downloader storage.Downloader
	extractor  *extract.Extractor
	cache      *cache.Cache
	store      store.Store
	batch      batcher.Options
	merge      aggregate.Options
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithStore records every computed analysis in st.
func WithStore(st store.Store) Option {
	return func(a *Analyzer) { a.store = st }
}

// WithBatchOptions overrides the batch budget.
func WithBatchOptions(o batcher.Options) Option {
	return func(a *Analyzer) { a.batch = o }
}

// WithAggregateOptions overrides the result bounds and verified threshold.
func WithAggregateOptions(o aggregate.Options) Option {
	return func(a *Analyzer) { a.merge = o }
}

// New creates an Analyzer.
func New(dl storage.Downloader, ex *extract.Extractor, c *cache.Cache, opts ...Option) (*Analyzer, error) {
	if dl == nil || ex == nil || c == nil {
		return nil, eris.New("pipeline: downloader, extractor and cache are required")
	}
	a := &Analyzer{
		downloader: dl,
		extractor:  ex,
		cache:      c,
		batch:      batcher.DefaultOptions(),
		merge:      aggregate.DefaultOptions(),
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Cache returns the shared analysis cache.
func (a *Analyzer) Cache() *cache.Cache { return a.cache }

// Analyze produces the consolidated result for subject from the candidate
// files. Per-file failures are reported in the result; an error is returned
// only for invalid input or cancellation.
func (a *Analyzer) Analyze(ctx context.Context, subject string, candidates []model.FileReference) (*model.AnalysisResult, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, eris.New("pipeline: subject company required")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: context")
	}

	log := zap.L().With(zap.String("subject", subject))
	selected := selector.Select(candidates)
	if len(selected) == 0 {
		log.Info("pipeline: no candidate files", zap.Int("candidates", len(candidates)))
		return &model.AnalysisResult{
			SubjectCompany:       subject,
			Type:                 model.ResultTypeComparable,
			Transactions:         []model.TransactionRecord{},
			ClassifiedCompanySet: model.ClassifiedCompanySet{Verified: []model.CompanyCandidate{}, ToCrossCheck: []model.CompanyCandidate{}},
			Reasoning:            NoCandidatesReasoning,
			FailedFiles:          []model.FailedFile{},
		}, nil
	}

	key := cache.Fingerprint(subject, selector.Paths(selected))
	log = log.With(zap.String("cache_key", key))
	if res, ok := a.cache.Get(ctx, key); ok {
		return res, nil
	}

	start := time.Now()
	run := a.startRun(ctx, subject, key)
	session := a.extractor.NewSession()

	outcomes := make([]model.FileOutcome, 0, len(selected))
	for i, ref := range selected {
		log.Info("pipeline: processing file",
			zap.Int("file", i+1),
			zap.Int("of", len(selected)),
			zap.String("path", ref.Path),
			zap.String("category", string(ref.Category)),
		)
		outcome := a.processFile(ctx, session, subject, ref)
		if err := ctx.Err(); err != nil {
			a.failRun(ctx, run, "cancelled")
			return nil, eris.Wrap(err, "pipeline: analysis cancelled")
		}
		if outcome.Failed() {
			log.Warn("pipeline: file failed", zap.String("path", ref.Path), zap.String("error", outcome.Err))
		}
		outcomes = append(outcomes, outcome)
	}

	res := aggregate.Merge(subject, outcomes, a.merge)
	if res.Type != model.ResultTypeError {
		a.cache.Put(ctx, key, res)
	}
	a.finishRun(ctx, run, res)

	log.Info("pipeline: analysis complete",
		zap.String("type", string(res.Type)),
		zap.Bool("backup_credential", session.BackupActive()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// processFile never returns an error; failures are carried in the outcome.
func (a *Analyzer) processFile(ctx context.Context, session *extract.Session, subject string, ref model.FileReference) model.FileOutcome {
	out := model.FileOutcome{Path: ref.Path}
	fail := func(err error) model.FileOutcome {
		out.Err = err.Error()
		return out
	}

	data, err := a.downloader.Download(ctx, ref)
	if err != nil {
		return fail(err)
	}

	tabs, err := workbook.Read(fileName(ref.Path), data)
	if err != nil {
		return fail(err)
	}

	cls := sheets.Classify(tabs)
	selected := cls.Sheets()
	if len(selected) == 0 {
		return fail(eris.New("pipeline: no visible sheets"))
	}

	batches := batcher.Split(selected, a.batch)
	zap.L().Debug("pipeline: batched sheets",
		zap.String("path", ref.Path),
		zap.Int("sheets", len(selected)),
		zap.Int("batches", len(batches)),
		zap.Bool("transaction_sheets", cls.HasTransaction()),
		zap.Bool("comparable_sheets", cls.HasComparable()),
		zap.Bool("fallback", cls.Fallback),
	)

	ext, err := session.ExtractFile(ctx, subject, batches)
	if err != nil {
		return fail(err)
	}
	if ext.Empty() {
		return fail(eris.New("pipeline: no records extracted"))
	}
	// The result type follows what was extracted, not how the sheets were
	// named: a deal sheet that only yields peers is a comparable result.
	out.HasTransaction = len(ext.Transactions) > 0
	out.HasComparable = len(ext.Companies) > 0
	out.Extraction = ext
	return out
}

func (a *Analyzer) startRun(ctx context.Context, subject, key string) *model.Run {
	if a.store == nil {
		return nil
	}
	run, err := a.store.CreateRun(ctx, subject, key)
	if err != nil {
		zap.L().Warn("pipeline: create run failed", zap.Error(err))
		return nil
	}
	return run
}

func (a *Analyzer) finishRun(ctx context.Context, run *model.Run, res *model.AnalysisResult) {
	if run == nil {
		return
	}
	if res.Type == model.ResultTypeError {
		a.failRun(ctx, run, failureSummary(res))
		return
	}
	if err := a.store.CompleteRun(ctx, run.ID, res); err != nil {
		zap.L().Warn("pipeline: complete run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (a *Analyzer) failRun(ctx context.Context, run *model.Run, cause string) {
	if run == nil {
		return
	}
	// The request context may already be done; the record still has to land.
	if err := a.store.FailRun(context.WithoutCancel(ctx), run.ID, cause); err != nil {
		zap.L().Warn("pipeline: fail run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func failureSummary(res *model.AnalysisResult) string {
	parts := make([]string, 0, len(res.FailedFiles))
	for _, f := range res.FailedFiles {
		parts = append(parts, f.Path+": "+f.Error)
	}
	return "all files failed: " + strings.Join(parts, "; ")
}

func fileName(p string) string {
	return path.Base(strings.ReplaceAll(p, `\`, "/"))
}
