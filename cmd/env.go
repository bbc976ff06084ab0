package main

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/comps-intel/internal/aggregate"
	"github.com/sells-group/comps-intel/internal/batcher"
	"github.com/sells-group/comps-intel/internal/cache"
	"github.com/sells-group/comps-intel/internal/config"
	"github.com/sells-group/comps-intel/internal/extract"
	"github.com/sells-group/comps-intel/internal/pipeline"
	"github.com/sells-group/comps-intel/internal/storage"
	"github.com/sells-group/comps-intel/internal/store"
	anthropicpkg "github.com/sells-group/comps-intel/pkg/anthropic"
	"github.com/sells-group/comps-intel/pkg/gemini"
	"github.com/sells-group/comps-intel/pkg/llm"
)

// analysisEnv holds the analyzer and the resources behind it, shared by the
// analyze/batch/serve commands.
type analysisEnv struct {
	Analyzer *pipeline.Analyzer
	Cache    *cache.Cache
	Store    store.Store // nil when run history is disabled

	closers []func()
}

// Close releases resources held by the environment.
func (e *analysisEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// initAnalyzer validates c for mode and builds the analyzer. Callers should
// defer env.Close().
func initAnalyzer(ctx context.Context, c *config.Config, mode string) (*analysisEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	env := &analysisEnv{}
	fail := func(err error) (*analysisEnv, error) {
		env.Close()
		return nil, err
	}

	primary, backup, err := newGenerators(ctx, c)
	if err != nil {
		return fail(err)
	}
	ex := extract.New(primary, backup, extractConfig(c))

	dl, err := newDownloader(c)
	if err != nil {
		return fail(err)
	}

	ch, err := newCache(ctx, c, env)
	if err != nil {
		return fail(err)
	}
	env.Cache = ch

	opts := []pipeline.Option{
		pipeline.WithBatchOptions(batcher.Options{
			MaxChars:      c.Extract.MaxChars,
			CharsPerToken: c.Extract.CharsPerToken,
			BatchTokens:   c.Extract.BatchTokens,
		}),
		pipeline.WithAggregateOptions(aggregate.Options{
			MaxTransactions:   c.Aggregate.MaxTransactions,
			MaxCandidates:     c.Aggregate.MaxCandidates,
			VerifiedThreshold: c.Aggregate.VerifiedThreshold,
		}),
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return fail(err)
	}
	if st != nil {
		env.Store = st
		env.closers = append(env.closers, func() { _ = st.Close() })
		opts = append(opts, pipeline.WithStore(st))
	}

	a, err := pipeline.New(dl, ex, ch, opts...)
	if err != nil {
		return fail(err)
	}
	env.Analyzer = a

	zap.L().Info("analyzer ready",
		zap.String("provider", c.LLM.Provider),
		zap.String("storage", c.Storage.Provider),
		zap.String("store", c.Store.Driver),
		zap.Bool("redis", c.Cache.RedisAddr != ""),
	)
	return env, nil
}

// newGenerators returns the primary generator and, when a backup key is
// configured, a second generator on that key.
func newGenerators(ctx context.Context, c *config.Config) (llm.Generator, llm.Generator, error) {
	switch c.LLM.Provider {
	case "gemini":
		mk := func(key string) (llm.Generator, error) {
			return gemini.NewClient(ctx, gemini.Config{
				APIKey:       key,
				BaseURL:      c.Gemini.BaseURL,
				Temperature:  c.Gemini.Temperature,
				JSONResponse: true,
			})
		}
		primary, err := mk(c.Gemini.Key)
		if err != nil {
			return nil, nil, err
		}
		if c.Gemini.BackupKey == "" {
			return primary, nil, nil
		}
		backup, err := mk(c.Gemini.BackupKey)
		if err != nil {
			return nil, nil, eris.Wrap(err, "backup key")
		}
		return primary, backup, nil

	case "anthropic":
		if c.Anthropic.Key == "" {
			return nil, nil, eris.New("anthropic: api key is required")
		}
		mk := func(key string) llm.Generator {
			var opts []option.RequestOption
			if c.Anthropic.BaseURL != "" {
				opts = append(opts, option.WithBaseURL(c.Anthropic.BaseURL))
			}
			return anthropicpkg.NewGenerator(anthropicpkg.NewClient(key, opts...), c.Anthropic.MaxTokens)
		}
		var backup llm.Generator
		if c.Anthropic.BackupKey != "" {
			backup = mk(c.Anthropic.BackupKey)
		}
		return mk(c.Anthropic.Key), backup, nil

	default:
		return nil, nil, eris.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
}

// extractConfig maps the provider's models and the pacing knobs onto the
// extraction client.
func extractConfig(c *config.Config) extract.Config {
	ec := extract.Config{
		UnavailableWait:   time.Duration(c.LLM.UnavailableWaitSecs) * time.Second,
		BatchPause:        time.Duration(c.LLM.BatchPauseSecs) * time.Second,
		MaxRecords:        c.Extract.MaxRecords,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
	}
	switch c.LLM.Provider {
	case "anthropic":
		ec.Model = c.Anthropic.Model
		ec.FallbackModel = c.Anthropic.FallbackModel
	default:
		ec.Model = c.Gemini.Model
		ec.FallbackModel = c.Gemini.FallbackModel
	}
	return ec
}

func newDownloader(c *config.Config) (storage.Downloader, error) {
	switch c.Storage.Provider {
	case "graph":
		return storage.NewGraph(storage.GraphConfig{
			TenantID:          c.Storage.TenantID,
			ClientID:          c.Storage.ClientID,
			ClientSecret:      c.Storage.ClientSecret,
			DriveID:           c.Storage.DriveID,
			BaseURL:           c.Storage.GraphURL,
			RequestsPerSecond: c.Storage.RequestsPerSecond,
			MaxBytes:          int64(c.Storage.MaxMB) << 20,
		})
	case "local":
		return storage.NewLocal(c.Storage.LocalRoot)
	default:
		return nil, eris.Errorf("unsupported storage provider: %s", c.Storage.Provider)
	}
}

// newCache builds the in-process cache, mirrored to Redis when configured.
// The Redis client is closed with env.
func newCache(ctx context.Context, c *config.Config, env *analysisEnv) (*cache.Cache, error) {
	ttl := time.Duration(c.Cache.TTLHours) * time.Hour

	var opts []cache.Option
	if c.Cache.RedisAddr != "" {
		rs, err := cache.NewRedisStore(ctx, c.Cache.RedisAddr)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, func() { _ = rs.Close() })
		opts = append(opts, cache.WithRemote(rs))
	}
	return cache.New(c.Cache.Capacity, ttl, opts...), nil
}

// initStore opens and migrates the run history store. It returns nil when
// the driver is "none".
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if c.Store.Driver == "none" {
		return nil, nil
	}

	dsn := c.Store.DatabaseURL
	if dsn == "" && c.Store.Driver == "sqlite" {
		dsn = "comps.db"
	}
	st, err := store.Open(ctx, c.Store.Driver, dsn, &store.PoolConfig{MaxConns: c.Store.MaxConns})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
