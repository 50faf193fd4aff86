// Package cache is a read-through resolution cache that sits in front of the
// mapping store. It keeps a bounded LRU of positive entries and tombstones,
// coalesces concurrent misses for one key into a single load, and optionally
// shares entries through a remote tier.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/serroba/redirect-engine/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned by GetOrLoad for tombstoned codes, and by loaders
// to signal that a code does not resolve.
var ErrNotFound = errors.New("cache: code not found")

const (
	tierLocal  = "local"
	tierRemote = "remote"
)

// Entry is the cached view of a mapping. Found is false for tombstones.
type Entry struct {
	Code      string
	TargetURL string
	Active    bool
	ExpiresAt *time.Time
	CachedAt  time.Time
	Found     bool
}

// Live reports whether the entry may be served as a redirect at now.
func (e Entry) Live(now time.Time) bool {
	if !e.Found || !e.Active {
		return false
	}

	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}

// Loader fetches an entry from the system of record. It returns ErrNotFound
// when the code does not resolve.
type Loader func(ctx context.Context, code string) (Entry, error)

// Remote is a shared cache tier, typically Redis.
type Remote interface {
	Get(ctx context.Context, code string) (Entry, bool, error)
	Set(ctx context.Context, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, code string) error
}

// Config bounds the cache.
type Config struct {
	Size        int
	TTL         time.Duration
	NegativeTTL time.Duration
	LoadTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Size:        100_000,
		TTL:         5 * time.Minute,
		NegativeTTL: 10 * time.Second,
		LoadTimeout: 2 * time.Second,
	}
}

type item struct {
	entry   Entry
	staleAt time.Time
}

// fillState tracks the loads in flight for one code. gen moves on every
// Invalidate of that code so loads that started earlier are not cached.
type fillState struct {
	gen  uint64
	refs int
}

// Cache is safe for concurrent use.
type Cache struct {
	cfg     Config
	entries *lru.Cache[string, item]
	flights singleflight.Group
	remote  Remote
	logger  *zap.Logger
	now     func() time.Time

	// mu orders local writes from fills against Invalidate.
	mu    sync.Mutex
	fills map[string]*fillState
}

// Option configures a Cache.
type Option func(*Cache)

// WithRemote adds a shared tier consulted after a local miss.
func WithRemote(r Remote) Option {
	return func(c *Cache) {
		c.remote = r
	}
}

// WithLogger sets the logger used for degraded remote-tier operations.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache. Size must be positive; NegativeTTL must not exceed TTL.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", cfg.Size)
	}

	if cfg.TTL <= 0 || cfg.NegativeTTL <= 0 {
		return nil, errors.New("cache ttls must be positive")
	}

	if cfg.NegativeTTL > cfg.TTL {
		return nil, fmt.Errorf("negative ttl %s exceeds ttl %s", cfg.NegativeTTL, cfg.TTL)
	}

	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultConfig().LoadTimeout
	}

	entries, err := lru.NewWithEvict(cfg.Size, func(string, item) {
		metrics.CacheOperations.WithLabelValues(tierLocal, "evict").Inc()
	})
	if err != nil {
		return nil, err
	}

	c := &Cache{
		cfg:     cfg,
		entries: entries,
		fills:   make(map[string]*fillState),
		logger:  zap.NewNop(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GetOrLoad returns the entry for code, invoking load on a miss. Concurrent
// misses for the same code share one load. Tombstones yield ErrNotFound.
func (c *Cache) GetOrLoad(ctx context.Context, code string, load Loader) (Entry, error) {
	if e, ok := c.lookup(code); ok {
		metrics.CacheOperations.WithLabelValues(tierLocal, hitResult(e)).Inc()

		return result(e)
	}

	metrics.CacheOperations.WithLabelValues(tierLocal, "miss").Inc()

	ch := c.flights.DoChan(code, func() (any, error) {
		return c.fill(ctx, code, load)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, res.Err
		}

		e, _ := res.Val.(Entry)

		return result(e)
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	}
}

// Invalidate drops code from every tier and detaches in-flight loads of code
// so their results are not cached. Other codes are unaffected.
func (c *Cache) Invalidate(ctx context.Context, code string) error {
	c.detach(code)
	c.flights.Forget(code)

	if c.remote == nil {
		return nil
	}

	err := c.remote.Delete(ctx, code)

	// Fills that began before the delete may have read the old remote entry.
	c.detach(code)

	if err != nil {
		metrics.CacheOperations.WithLabelValues(tierRemote, "error").Inc()

		return fmt.Errorf("remote invalidate %s: %w", code, err)
	}

	return nil
}

// Len returns the number of locally cached entries, including stale ones.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) lookup(code string) (Entry, bool) {
	it, ok := c.entries.Get(code)
	if !ok || !c.now().Before(it.staleAt) {
		return Entry{}, false
	}

	return it.entry, true
}

func (c *Cache) fill(ctx context.Context, code string, load Loader) (Entry, error) {
	// A flight that started after the previous one finished may find the key filled.
	if e, ok := c.lookup(code); ok {
		return e, nil
	}

	gen := c.beginFill(code)
	defer c.endFill(code)

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.LoadTimeout)
	defer cancel()

	if e, ok := c.fromRemote(loadCtx, code); ok {
		e.Code = code
		c.store(e, gen)

		return e, nil
	}

	e, err := load(loadCtx, code)

	switch {
	case errors.Is(err, ErrNotFound):
		e = Entry{Code: code}
	case err != nil:
		metrics.CacheOperations.WithLabelValues(tierLocal, "load_error").Inc()

		return Entry{}, err
	default:
		e.Code = code
		e.Found = true
	}

	metrics.CacheOperations.WithLabelValues(tierLocal, "load").Inc()

	e.CachedAt = c.now()

	if ttl := c.store(e, gen); ttl > 0 && c.remote != nil {
		c.fillRemote(loadCtx, e, ttl, gen)
	}

	return e, nil
}

func (c *Cache) fillRemote(ctx context.Context, e Entry, ttl time.Duration, gen uint64) {
	if err := c.remote.Set(ctx, e, ttl); err != nil {
		metrics.CacheOperations.WithLabelValues(tierRemote, "error").Inc()
		c.logger.Warn("remote cache fill failed", zap.String("code", e.Code), zap.Error(err))

		return
	}

	// An Invalidate that bumped gen before this Set may have deleted first.
	if c.current(e.Code, gen) {
		return
	}

	if err := c.remote.Delete(ctx, e.Code); err != nil {
		metrics.CacheOperations.WithLabelValues(tierRemote, "error").Inc()
		c.logger.Warn("remote cache undo failed", zap.String("code", e.Code), zap.Error(err))
	}

	c.detach(e.Code)
}

func (c *Cache) detach(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.fills[code]; ok {
		st.gen++
	}

	c.entries.Remove(code)
}

func (c *Cache) beginFill(code string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.fills[code]
	if !ok {
		st = &fillState{}
		c.fills[code] = st
	}

	st.refs++

	return st.gen
}

func (c *Cache) endFill(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.fills[code]

	st.refs--
	if st.refs == 0 {
		delete(c.fills, code)
	}
}

func (c *Cache) current(code string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fills[code].gen == gen
}

func (c *Cache) fromRemote(ctx context.Context, code string) (Entry, bool) {
	if c.remote == nil {
		return Entry{}, false
	}

	e, ok, err := c.remote.Get(ctx, code)
	if err != nil {
		metrics.CacheOperations.WithLabelValues(tierRemote, "error").Inc()
		c.logger.Warn("remote cache read failed", zap.String("code", code), zap.Error(err))

		return Entry{}, false
	}

	if !ok {
		metrics.CacheOperations.WithLabelValues(tierRemote, "miss").Inc()

		return Entry{}, false
	}

	metrics.CacheOperations.WithLabelValues(tierRemote, hitResult(e)).Inc()

	return e, true
}

// store caches e locally unless e.Code was invalidated since gen was read.
// It returns the ttl applied, or zero when nothing was cached.
func (c *Cache) store(e Entry, gen uint64) time.Duration {
	ttl := c.ttlFor(e)
	if ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fills[e.Code].gen != gen {
		return 0
	}

	c.entries.Add(e.Code, item{entry: e, staleAt: c.now().Add(ttl)})

	return ttl
}

func (c *Cache) ttlFor(e Entry) time.Duration {
	if !e.Found {
		return c.cfg.NegativeTTL
	}

	ttl := c.cfg.TTL

	if e.ExpiresAt != nil {
		if remaining := e.ExpiresAt.Sub(c.now()); remaining < ttl {
			ttl = remaining
		}
	}

	return ttl
}

func hitResult(e Entry) string {
	if e.Found {
		return "hit"
	}

	return "hit_negative"
}

func result(e Entry) (Entry, error) {
	if !e.Found {
		return Entry{}, ErrNotFound
	}

	return e, nil
}
