// Package extract drives the text-generation service over serialized sheet
// batches and parses its replies into typed records.
package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/comps-intel/internal/batcher"
	"github.com/sells-group/comps-intel/internal/model"
	"github.com/sells-group/comps-intel/pkg/llm"
)

// Config tunes the extraction client.
type Config struct {
	Model           string
	FallbackModel   string
	UnavailableWait time.Duration
	// BatchPause separates consecutive batches of the same file.
	BatchPause time.Duration
	// MaxRecords caps transactions and companies per call.
	MaxRecords int
	// RequestsPerMinute paces calls across all sessions. Zero disables pacing.
	RequestsPerMinute int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Model:           "gemini-2.5-flash",
		FallbackModel:   "gemini-2.5-flash-lite",
		UnavailableWait: 5 * time.Second,
		BatchPause:      10 * time.Second,
		MaxRecords:      10,
	}
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Extractor is shared across analysis requests. Per-request state lives in
// a Session.
type Extractor struct {
	primary llm.Generator
	backup  llm.Generator
	cfg     Config
	limiter *rate.Limiter
	sleep   SleepFunc
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithSleep replaces the pause implementation.
func WithSleep(fn SleepFunc) Option {
	return func(e *Extractor) { e.sleep = fn }
}

// WithLimiter replaces the request pacer.
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Extractor) { e.limiter = l }
}

// New creates an Extractor. backup may be nil when no second credential is
// configured.
func New(primary, backup llm.Generator, cfg Config, opts ...Option) *Extractor {
	d := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = d.MaxRecords
	}

	e := &Extractor{
		primary: primary,
		backup:  backup,
		cfg:     cfg,
		sleep:   sleepCtx,
	}
	if cfg.RequestsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Session carries state across the calls of one analysis request. It is not
// safe for concurrent use.
type Session struct {
	e            *Extractor
	backupActive bool
}

// NewSession starts a session on the primary credential.
func (e *Extractor) NewSession() *Session {
	return &Session{e: e}
}

// BackupActive reports whether the backup credential has been swapped in.
func (s *Session) BackupActive() bool { return s.backupActive }

// ExtractBatch runs the retry and fallback state machine for one batch. A
// returned error is definitive for the batch.
func (s *Session) ExtractBatch(ctx context.Context, subject string, batch batcher.Batch) (*model.Extraction, error) {
	e := s.e
	prompt := BuildPrompt(subject, batch, e.cfg.MaxRecords)
	policy := Policy{
		FallbackModel:   e.cfg.FallbackModel,
		UnavailableWait: e.cfg.UnavailableWait,
		HasBackup:       e.backup != nil,
	}
	st := State{Model: e.cfg.Model, BackupActive: s.backupActive, Attempt: 1}

	for {
		gen := e.primary
		if st.BackupActive {
			gen = e.backup
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "extract: wait for rate limiter")
			}
		}

		text, err := gen.Generate(ctx, prompt, st.Model)
		if err == nil {
			ext, perr := Parse(text, e.cfg.MaxRecords)
			if perr == nil {
				zap.L().Debug("extract: batch extracted",
					zap.String("model", st.Model),
					zap.Int("attempt", st.Attempt),
					zap.Int("transactions", len(ext.Transactions)),
					zap.Int("companies", len(ext.Companies)),
				)
				return ext, nil
			}
			err = perr
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "extract: context cancelled")
		}

		d := policy.Next(st, err)
		if !d.Retry {
			zap.L().Warn("extract: batch failed",
				zap.String("model", st.Model),
				zap.Int("attempt", st.Attempt),
				zap.String("reason", d.Reason),
				zap.Error(err),
			)
			return nil, eris.Wrapf(err, "extract: %s after %d attempt(s)", d.Reason, st.Attempt)
		}

		zap.L().Info("extract: retrying",
			zap.String("reason", d.Reason),
			zap.String("model", d.Next.Model),
			zap.Int("next_attempt", d.Next.Attempt),
			zap.Duration("wait", d.Wait),
		)
		if d.ActivateBackup {
			s.backupActive = true
		}
		st = d.Next

		if err := e.sleep(ctx, d.Wait); err != nil {
			return nil, eris.Wrap(err, "extract: context cancelled")
		}
	}
}

// ExtractFile extracts every batch of one file in order, pausing between
// batches, and merges the successful results. It fails only when no batch
// succeeded.
func (s *Session) ExtractFile(ctx context.Context, subject string, batches []batcher.Batch) (*model.Extraction, error) {
	if len(batches) == 0 {
		return nil, eris.New("extract: no batches")
	}

	merged := &model.Extraction{}
	var (
		lastErr   error
		succeeded int
	)
	for i, b := range batches {
		if i > 0 {
			zap.L().Info("extract: pausing between batches",
				zap.Int("batch", i+1),
				zap.Int("of", len(batches)),
				zap.Duration("pause", s.e.cfg.BatchPause),
			)
			if err := s.e.sleep(ctx, s.e.cfg.BatchPause); err != nil {
				return nil, eris.Wrap(err, "extract: context cancelled")
			}
		}

		ext, err := s.ExtractBatch(ctx, subject, b)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		succeeded++
		merged.Transactions = append(merged.Transactions, ext.Transactions...)
		merged.Companies = append(merged.Companies, ext.Companies...)
		if merged.Reasoning == "" {
			merged.Reasoning = ext.Reasoning
		}
	}

	if succeeded == 0 {
		return nil, lastErr
	}
	return merged, nil
}
