// Package cache holds completed analyses keyed by subject and file set.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/sells-group/comps-intel/internal/model"
)

const (
	DefaultCapacity = 100
	DefaultTTL      = 48 * time.Hour
)

// Remote is an optional shared tier behind the in-process store.
type Remote interface {
	Get(ctx context.Context, key string) (*model.AnalysisResult, bool, error)
	Set(ctx context.Context, key string, res *model.AnalysisResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

type entry struct {
	result  *model.AnalysisResult
	created time.Time
}

// Cache is a bounded, TTL-expiring store of analysis results. When full, an
// insert evicts the least recently read or written entry. It is safe for
// concurrent use.
type Cache struct {
	mu       sync.Mutex
	lru      *expirable.LRU[string, entry]
	capacity int
	ttl      time.Duration
	remote   Remote
	now      func() time.Time
}

// Option customizes a Cache.
type Option func(*Cache)

// WithRemote mirrors writes to r and consults it on local misses.
func WithRemote(r Remote) Option {
	return func(c *Cache) { c.remote = r }
}

// WithClock replaces the time source used for entry age.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache holding at most capacity entries for ttl each.
func New(capacity int, ttl time.Duration, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		lru:      expirable.NewLRU[string, entry](capacity, nil, ttl),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns a copy of the stored result with Cached set. Expired and stale
// entries are removed and reported as misses.
func (c *Cache) Get(ctx context.Context, key string) (*model.AnalysisResult, bool) {
	c.mu.Lock()
	e, ok := c.lru.Get(key)
	if ok && c.now().Sub(e.created) >= c.ttl {
		c.lru.Remove(key)
		ok = false
	}
	if ok && Stale(e.result) {
		c.lru.Remove(key)
		c.mu.Unlock()
		zap.L().Info("cache: stale entry bypassed", zap.String("key", key))
		c.deleteRemote(ctx, key)
		return nil, false
	}
	c.mu.Unlock()

	if ok {
		zap.L().Info("cache: hit", zap.String("key", key))
		return served(e.result), true
	}
	return c.getRemote(ctx, key)
}

func (c *Cache) getRemote(ctx context.Context, key string) (*model.AnalysisResult, bool) {
	if c.remote == nil {
		zap.L().Info("cache: miss", zap.String("key", key))
		return nil, false
	}

	res, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache: remote get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		zap.L().Info("cache: miss", zap.String("key", key))
		return nil, false
	}
	if Stale(res) {
		zap.L().Info("cache: stale remote entry bypassed", zap.String("key", key))
		c.deleteRemote(ctx, key)
		return nil, false
	}

	res.Cached = false
	c.mu.Lock()
	c.lru.Add(key, entry{result: res, created: c.now()})
	c.mu.Unlock()

	zap.L().Info("cache: remote hit", zap.String("key", key))
	return served(res), true
}

// Put stores res under key, replacing any entry and restarting its TTL.
// Error-type results are never stored. Put reports whether res was stored.
func (c *Cache) Put(ctx context.Context, key string, res *model.AnalysisResult) bool {
	if res == nil || res.Type == model.ResultTypeError {
		return false
	}
	stored := res.Clone()
	stored.Cached = false

	c.mu.Lock()
	c.lru.Add(key, entry{result: stored, created: c.now()})
	c.mu.Unlock()

	if c.remote != nil {
		if err := c.remote.Set(ctx, key, stored, c.ttl); err != nil {
			zap.L().Warn("cache: remote set failed", zap.String("key", key), zap.Error(err))
		}
	}
	zap.L().Info("cache: stored result", zap.String("key", key), zap.String("type", string(res.Type)))
	return true
}

// Stats describes the in-process store.
type Stats struct {
	Size     int      `json:"cache_size"`
	Capacity int      `json:"max_size"`
	TTLHours float64  `json:"ttl_hours"`
	Keys     []string `json:"entries"`
}

// Stats returns current occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.lru.Keys()
	if keys == nil {
		keys = []string{}
	}
	return Stats{
		Size:     len(keys),
		Capacity: c.capacity,
		TTLHours: c.ttl.Hours(),
		Keys:     keys,
	}
}

// Clear drops every entry, locally and in the remote tier.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()

	if c.remote != nil {
		if err := c.remote.Clear(ctx); err != nil {
			return err
		}
	}
	zap.L().Info("cache: cleared")
	return nil
}

func (c *Cache) deleteRemote(ctx context.Context, key string) {
	if c.remote == nil {
		return
	}
	if err := c.remote.Delete(ctx, key); err != nil {
		zap.L().Warn("cache: remote delete failed", zap.String("key", key), zap.Error(err))
	}
}

func served(res *model.AnalysisResult) *model.AnalysisResult {
	out := res.Clone()
	out.Cached = true
	return out
}

// Stale reports whether a stored result looks like a silent failure and must
// be recomputed rather than served.
func Stale(res *model.AnalysisResult) bool {
	if res == nil {
		return true
	}
	if res.FilesProcessed == 0 && (len(res.FailedFiles) > 0 || res.TotalFilesFound > 0) {
		return true
	}

	candidates := res.VerifiedCount + res.CrossCheckCount
	switch res.Type {
	case model.ResultTypeTransaction:
		return res.TransactionCount == 0
	case model.ResultTypeComparable:
		return candidates == 0
	case model.ResultTypeBoth:
		return res.TransactionCount == 0 && candidates == 0
	default:
		return true
	}
}
