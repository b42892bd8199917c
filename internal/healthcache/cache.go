// Package healthcache is the tiered store for computed health scores:
// an in-process LRU in front of an optional on-disk store in front of an
// optional shared persistent store. Lookups fall through the tiers in that
// order and backfill upward on a hit. Any tier failing degrades that tier to
// a miss; a cache problem never fails a selection request.
package healthcache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"torrentstream/selectservice/internal/domain"
	"torrentstream/selectservice/internal/metrics"
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultMemoryEntries = 2048

	// defaultPersistentTimeout bounds a shared-store read so a slow Redis
	// round trip cannot stall a lookup; the deadline expiring counts as a
	// miss.
	defaultPersistentTimeout = 150 * time.Millisecond
)

// Store is a durable key→score tier. Implementations: DiskStore (bbolt) and
// RedisStore.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteAll(ctx context.Context) error
}

// Entry is the stored unit: the score plus its expiry, so every tier can
// judge freshness locally.
type Entry struct {
	Score     domain.HealthScore `json:"score"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

func (e Entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	MemoryHits     uint64  `json:"memoryHits"`
	DiskHits       uint64  `json:"diskHits"`
	PersistentHits uint64  `json:"persistentHits"`
	Misses         uint64  `json:"misses"`
	Expired        uint64  `json:"expired"`
	Errors         uint64  `json:"errors"`
	MemoryEntries  int     `json:"memoryEntries"`
	HitRate        float64 `json:"hitRate"`
}

type Config struct {
	TTL               time.Duration
	MemoryEntries     int
	PersistentTimeout time.Duration
}

// Cache is the tiered health-score cache. Safe for concurrent use.
type Cache struct {
	cfg        Config
	memory     *lru.Cache[string, Entry]
	disk       Store
	persistent Store
	logger     *slog.Logger
	now        func() time.Time

	memoryHits     atomic.Uint64
	diskHits       atomic.Uint64
	persistentHits atomic.Uint64
	misses         atomic.Uint64
	expired        atomic.Uint64
	errors         atomic.Uint64
}

type Option func(*Cache)

// WithDiskStore attaches the on-device tier.
func WithDiskStore(store Store) Option {
	return func(c *Cache) { c.disk = store }
}

// WithPersistentStore attaches the shared tier (Redis in production).
func WithPersistentStore(store Store) Option {
	return func(c *Cache) { c.persistent = store }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(cfg Config, logger *slog.Logger, opts ...Option) (*Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MemoryEntries <= 0 {
		cfg.MemoryEntries = DefaultMemoryEntries
	}
	if cfg.PersistentTimeout <= 0 {
		cfg.PersistentTimeout = defaultPersistentTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	memory, err := lru.New[string, Entry](cfg.MemoryEntries)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		cfg:    cfg,
		memory: memory,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached score for a candidate identity. An expired entry is
// a miss; lower-tier hits are copied into the tiers above them.
func (c *Cache) Get(ctx context.Context, key string) (domain.HealthScore, bool) {
	now := c.now()

	if entry, ok := c.memory.Get(key); ok {
		if entry.expired(now) {
			c.memory.Remove(key)
			c.expired.Add(1)
		} else {
			c.memoryHits.Add(1)
			metrics.CacheTierHitsTotal.WithLabelValues("memory").Inc()
			return entry.Score, true
		}
	}

	if c.disk != nil {
		entry, ok, err := c.disk.Get(ctx, key)
		switch {
		case err != nil:
			c.errors.Add(1)
			metrics.CacheTierErrorsTotal.WithLabelValues("disk").Inc()
			c.logger.Warn("disk cache read failed", "key", key, "error", err)
		case ok && entry.expired(now):
			c.expired.Add(1)
			c.deleteStore(ctx, c.disk, "disk", key)
		case ok:
			c.diskHits.Add(1)
			metrics.CacheTierHitsTotal.WithLabelValues("disk").Inc()
			c.memory.Add(key, entry)
			return entry.Score, true
		}
	}

	if c.persistent != nil {
		readCtx, cancel := context.WithTimeout(ctx, c.cfg.PersistentTimeout)
		entry, ok, err := c.persistent.Get(readCtx, key)
		cancel()
		switch {
		case err != nil:
			// Includes the read deadline expiring: degrade to a miss.
			c.errors.Add(1)
			metrics.CacheTierErrorsTotal.WithLabelValues("persistent").Inc()
			c.logger.Warn("persistent cache read failed", "key", key, "error", err)
		case ok && entry.expired(now):
			c.expired.Add(1)
		case ok:
			c.persistentHits.Add(1)
			metrics.CacheTierHitsTotal.WithLabelValues("persistent").Inc()
			c.backfill(ctx, key, entry)
			return entry.Score, true
		}
	}

	c.misses.Add(1)
	metrics.CacheMissesTotal.Inc()
	return domain.HealthScore{}, false
}

// Put writes the score to every available tier.
func (c *Cache) Put(ctx context.Context, key string, score domain.HealthScore) {
	entry := Entry{Score: score, ExpiresAt: c.now().Add(c.cfg.TTL)}
	c.memory.Add(key, entry)
	c.setStore(ctx, c.disk, "disk", key, entry)
	c.setStore(ctx, c.persistent, "persistent", key, entry)
}

// Invalidate removes one candidate's score from every tier.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.memory.Remove(key)
	c.deleteStore(ctx, c.disk, "disk", key)
	c.deleteStore(ctx, c.persistent, "persistent", key)
}

// InvalidateAll clears every tier.
func (c *Cache) InvalidateAll(ctx context.Context) {
	c.memory.Purge()
	for name, store := range map[string]Store{"disk": c.disk, "persistent": c.persistent} {
		if store == nil {
			continue
		}
		if err := store.DeleteAll(ctx); err != nil {
			c.errors.Add(1)
			metrics.CacheTierErrorsTotal.WithLabelValues(name).Inc()
			c.logger.Warn("cache tier clear failed", "tier", name, "error", err)
		}
	}
}

// Stats snapshots the counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		MemoryHits:     c.memoryHits.Load(),
		DiskHits:       c.diskHits.Load(),
		PersistentHits: c.persistentHits.Load(),
		Misses:         c.misses.Load(),
		Expired:        c.expired.Load(),
		Errors:         c.errors.Load(),
		MemoryEntries:  c.memory.Len(),
	}
	hits := s.MemoryHits + s.DiskHits + s.PersistentHits
	if total := hits + s.Misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// TTL exposes the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.cfg.TTL }

func (c *Cache) backfill(ctx context.Context, key string, entry Entry) {
	c.memory.Add(key, entry)
	c.setStore(ctx, c.disk, "disk", key, entry)
}

func (c *Cache) setStore(ctx context.Context, store Store, tier, key string, entry Entry) {
	if store == nil {
		return
	}
	if err := store.Set(ctx, key, entry, c.cfg.TTL); err != nil {
		c.errors.Add(1)
		metrics.CacheTierErrorsTotal.WithLabelValues(tier).Inc()
		c.logger.Warn("cache tier write failed", "tier", tier, "key", key, "error", err)
	}
}

func (c *Cache) deleteStore(ctx context.Context, store Store, tier, key string) {
	if store == nil {
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		c.errors.Add(1)
		metrics.CacheTierErrorsTotal.WithLabelValues(tier).Inc()
		c.logger.Warn("cache tier delete failed", "tier", tier, "key", key, "error", err)
	}
}
