package healthcache

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"torrentstream/selectservice/internal/domain"
)

// fakeStore is an in-memory Store with togglable failure, standing in for
// the disk and persistent tiers.
type fakeStore struct {
	entries map[string]Entry
	fail    bool
	gets    int
	sets    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]Entry)}
}

var errStoreDown = errors.New("store down")

func (f *fakeStore) Get(_ context.Context, key string) (Entry, bool, error) {
	f.gets++
	if f.fail {
		return Entry{}, false, errStoreDown
	}
	entry, ok := f.entries[key]
	return entry, ok, nil
}

func (f *fakeStore) Set(_ context.Context, key string, entry Entry, _ time.Duration) error {
	f.sets++
	if f.fail {
		return errStoreDown
	}
	f.entries[key] = entry
	return nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	if f.fail {
		return errStoreDown
	}
	delete(f.entries, key)
	return nil
}

func (f *fakeStore) DeleteAll(_ context.Context) error {
	if f.fail {
		return errStoreDown
	}
	f.entries = make(map[string]Entry)
	return nil
}

func testScore(overall int) domain.HealthScore {
	return domain.HealthScore{Overall: overall, Risk: domain.RiskLow, P2P: overall, Freshness: 100}
}

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	cache, err := New(Config{TTL: 30 * time.Minute, MemoryEntries: 16}, slog.Default(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cache
}

func TestCachePutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	cache.Put(ctx, "prov:hash1", testScore(80))

	got, ok := cache.Get(ctx, "prov:hash1")
	if !ok {
		t.Fatal("expected memory hit")
	}
	if got.Overall != 80 {
		t.Fatalf("overall = %d, want 80", got.Overall)
	}

	stats := cache.Stats()
	if stats.MemoryHits != 1 || stats.Misses != 0 {
		t.Fatalf("stats = %+v, want one memory hit", stats)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	current := time.Now()
	cache := newTestCache(t, WithClock(func() time.Time { return current }))

	cache.Put(ctx, "prov:hash1", testScore(80))
	current = current.Add(31 * time.Minute)

	if _, ok := cache.Get(ctx, "prov:hash1"); ok {
		t.Fatal("entry older than TTL must be a miss")
	}
	if stats := cache.Stats(); stats.Expired == 0 {
		t.Fatalf("stats = %+v, want expired counted", stats)
	}
}

func TestCacheFallsThroughToDisk(t *testing.T) {
	ctx := context.Background()
	disk := newFakeStore()
	cache := newTestCache(t, WithDiskStore(disk))

	disk.entries["prov:hash1"] = Entry{Score: testScore(70), ExpiresAt: time.Now().Add(time.Hour)}

	got, ok := cache.Get(ctx, "prov:hash1")
	if !ok || got.Overall != 70 {
		t.Fatalf("disk tier lookup = (%+v, %v), want hit with overall 70", got, ok)
	}
	if stats := cache.Stats(); stats.DiskHits != 1 {
		t.Fatalf("stats = %+v, want one disk hit", stats)
	}

	// Second lookup must be served from memory after the backfill.
	gets := disk.gets
	if _, ok := cache.Get(ctx, "prov:hash1"); !ok {
		t.Fatal("expected backfilled memory hit")
	}
	if disk.gets != gets {
		t.Fatal("memory tier should have absorbed the second lookup")
	}
}

func TestCachePersistentHitBackfillsUpperTiers(t *testing.T) {
	ctx := context.Background()
	disk := newFakeStore()
	persistent := newFakeStore()
	cache := newTestCache(t, WithDiskStore(disk), WithPersistentStore(persistent))

	persistent.entries["prov:hash1"] = Entry{Score: testScore(65), ExpiresAt: time.Now().Add(time.Hour)}

	got, ok := cache.Get(ctx, "prov:hash1")
	if !ok || got.Overall != 65 {
		t.Fatalf("persistent tier lookup = (%+v, %v), want hit with overall 65", got, ok)
	}
	if _, ok := disk.entries["prov:hash1"]; !ok {
		t.Fatal("persistent hit must backfill the disk tier")
	}
	if stats := cache.Stats(); stats.PersistentHits != 1 {
		t.Fatalf("stats = %+v, want one persistent hit", stats)
	}
}

func TestCacheDegradesWhenTiersFail(t *testing.T) {
	ctx := context.Background()
	disk := newFakeStore()
	persistent := newFakeStore()
	disk.fail = true
	persistent.fail = true
	cache := newTestCache(t, WithDiskStore(disk), WithPersistentStore(persistent))

	// Writes and reads must not error out; memory keeps working alone.
	cache.Put(ctx, "prov:hash1", testScore(80))
	got, ok := cache.Get(ctx, "prov:hash1")
	if !ok || got.Overall != 80 {
		t.Fatalf("memory tier must survive backing-store failures, got (%+v, %v)", got, ok)
	}

	if stats := cache.Stats(); stats.Errors == 0 {
		t.Fatalf("stats = %+v, want tier errors counted", stats)
	}
}

func TestCachePersistentTimeoutIsMiss(t *testing.T) {
	ctx := context.Background()
	slow := &slowStore{delay: 200 * time.Millisecond}
	cache, err := New(Config{
		TTL:               30 * time.Minute,
		MemoryEntries:     16,
		PersistentTimeout: 20 * time.Millisecond,
	}, slog.Default(), WithPersistentStore(slow))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	if _, ok := cache.Get(ctx, "prov:hash1"); ok {
		t.Fatal("slow persistent store must degrade to a miss")
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("lookup took %v, timeout did not bound the persistent read", elapsed)
	}
}

// slowStore blocks until the context deadline fires.
type slowStore struct {
	delay time.Duration
}

func (s *slowStore) Get(ctx context.Context, _ string) (Entry, bool, error) {
	select {
	case <-time.After(s.delay):
		return Entry{}, false, nil
	case <-ctx.Done():
		return Entry{}, false, ctx.Err()
	}
}

func (s *slowStore) Set(context.Context, string, Entry, time.Duration) error { return nil }
func (s *slowStore) Delete(context.Context, string) error                    { return nil }
func (s *slowStore) DeleteAll(context.Context) error                         { return nil }

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	disk := newFakeStore()
	persistent := newFakeStore()
	cache := newTestCache(t, WithDiskStore(disk), WithPersistentStore(persistent))

	cache.Put(ctx, "prov:hash1", testScore(80))
	cache.Put(ctx, "prov:hash2", testScore(60))

	cache.Invalidate(ctx, "prov:hash1")
	if _, ok := cache.Get(ctx, "prov:hash1"); ok {
		t.Fatal("invalidated key must miss")
	}
	if _, ok := cache.Get(ctx, "prov:hash2"); !ok {
		t.Fatal("other keys must survive a single invalidation")
	}

	cache.InvalidateAll(ctx)
	if _, ok := cache.Get(ctx, "prov:hash2"); ok {
		t.Fatal("InvalidateAll must clear every key")
	}
	if len(disk.entries) != 0 || len(persistent.entries) != 0 {
		t.Fatal("InvalidateAll must clear backing tiers")
	}
}

func TestCacheStatsHitRate(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)

	cache.Put(ctx, "prov:hash1", testScore(80))
	for i := 0; i < 9; i++ {
		cache.Get(ctx, "prov:hash1")
	}
	cache.Get(ctx, "prov:absent")

	stats := cache.Stats()
	if stats.HitRate < 0.89 || stats.HitRate > 0.91 {
		t.Fatalf("hit rate = %.2f, want 0.90", stats.HitRate)
	}
}

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenDiskStore(t.TempDir() + "/health.db")
	if err != nil {
		t.Fatalf("OpenDiskStore: %v", err)
	}
	defer store.Close()

	entry := Entry{Score: testScore(77), ExpiresAt: time.Now().Add(time.Hour).UTC()}
	if err := store.Set(ctx, "prov:hash1", entry, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := store.Get(ctx, "prov:hash1")
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v), want hit", ok, err)
	}
	if got.Score.Overall != 77 {
		t.Fatalf("overall = %d, want 77", got.Score.Overall)
	}

	if _, ok, _ := store.Get(ctx, "prov:absent"); ok {
		t.Fatal("unexpected hit for absent key")
	}
}

func TestDiskStorePrune(t *testing.T) {
	ctx := context.Background()
	store, err := OpenDiskStore(t.TempDir() + "/health.db")
	if err != nil {
		t.Fatalf("OpenDiskStore: %v", err)
	}
	defer store.Close()

	now := time.Now()
	live := Entry{Score: testScore(80), ExpiresAt: now.Add(time.Hour)}
	dead := Entry{Score: testScore(40), ExpiresAt: now.Add(-time.Hour)}
	if err := store.Set(ctx, "live", live, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "dead", dead, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	pruned, err := store.Prune(ctx, now)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}
	if _, ok, _ := store.Get(ctx, "live"); !ok {
		t.Fatal("live entry must survive pruning")
	}
	if _, ok, _ := store.Get(ctx, "dead"); ok {
		t.Fatal("expired entry must be pruned")
	}
}
