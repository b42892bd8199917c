package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"torrentstream/selectservice/internal/domain"
	"torrentstream/selectservice/internal/healthcache"
)

func highTierService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	return NewService(domain.DeviceProfile{Tier: domain.DeviceTierHigh}, slog.Default(), opts...)
}

func torrent(id string, resolution domain.Resolution, seeders int) domain.SourceCandidate {
	return domain.SourceCandidate{
		InfoHash: id,
		Provider: domain.Provider{
			ID:          "prov",
			Type:        domain.ProviderTorrent,
			Reliability: domain.ReliabilityGood,
		},
		File:    domain.FileInfo{Name: "Movie.2023." + resolution.Label() + ".WEB-DL.mkv", SizeBytes: 4 * 1024 * 1024 * 1024},
		Quality: domain.QualityInfo{Resolution: resolution},
		Codec:   domain.CodecH264,
		Release: domain.ReleaseInfo{Type: domain.ReleaseWEBDL},
		Health:  &domain.HealthSignals{Seeders: &seeders},
	}
}

func cachedDebrid(id string) domain.SourceCandidate {
	return domain.SourceCandidate{
		InfoHash:     id,
		Provider:     domain.Provider{ID: "rd", Type: domain.ProviderDebrid, Reliability: domain.ReliabilityExcellent},
		File:         domain.FileInfo{Name: "Movie.2023.1080p.WEB-DL.mkv", SizeBytes: 4 * 1024 * 1024 * 1024},
		Quality:      domain.QualityInfo{Resolution: domain.Resolution1080p},
		Availability: &domain.AvailabilityInfo{Cached: true, Service: "real-debrid"},
	}
}

func hash(prefix string) string {
	const pad = "0000000000000000000000000000000000000000"
	return (prefix + pad)[:40]
}

func TestRankEndToEnd(t *testing.T) {
	svc := highTierService(t)

	request := RankRequest{
		Candidates: []domain.SourceCandidate{
			torrent(hash("a"), domain.Resolution720p, 40),
			torrent(hash("b"), domain.Resolution2160p, 40),
			torrent(hash("c"), domain.Resolution1080p, 40),
		},
	}

	outcome, err := svc.Rank(context.Background(), request)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(outcome.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(outcome.Results))
	}
	if outcome.Results[0].Candidate.Quality.Resolution != domain.Resolution2160p {
		t.Fatalf("best result resolution = %s, want 2160p first", outcome.Results[0].Candidate.Quality.Resolution)
	}
	for i, r := range outcome.Results {
		if r.Rank != i+1 {
			t.Fatalf("rank at %d = %d", i, r.Rank)
		}
		if r.Health == nil {
			t.Fatalf("result %d has no health score", i)
		}
		if len(r.Badges) == 0 {
			t.Fatalf("result %d has no badges", i)
		}
	}
}

func TestRankCachedSourcesFirst(t *testing.T) {
	svc := highTierService(t)

	outcome, err := svc.Rank(context.Background(), RankRequest{
		Candidates: []domain.SourceCandidate{
			torrent(hash("a"), domain.Resolution2160p, 500),
			cachedDebrid(hash("b")),
		},
	})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if !outcome.Results[0].Candidate.InstantlyPlayable() {
		t.Fatal("cached debrid source must rank first")
	}
}

func TestRankInvalidCandidateRejected(t *testing.T) {
	svc := highTierService(t)

	bad := torrent(hash("a"), domain.Resolution1080p, 10)
	bad.File.SizeBytes = -1

	_, err := svc.Rank(context.Background(), RankRequest{
		Candidates: []domain.SourceCandidate{bad},
	})
	if !errors.Is(err, ErrInvalidCandidate) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidCandidate)
	}
}

func TestRankAppliesFilter(t *testing.T) {
	svc := highTierService(t)

	outcome, err := svc.Rank(context.Background(), RankRequest{
		Candidates: []domain.SourceCandidate{
			torrent(hash("a"), domain.Resolution720p, 40),
			torrent(hash("b"), domain.Resolution2160p, 40),
		},
		Filter: domain.FilterSpec{
			Enabled:       true,
			MinResolution: domain.Resolution1080p,
		},
	})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(outcome.Results) != 1 {
		t.Fatalf("results = %d, want the 2160p candidate only", len(outcome.Results))
	}
	if len(outcome.AppliedFilters) == 0 {
		t.Fatal("applied filters must be surfaced")
	}
}

func TestRankConflictResolutionSurfaced(t *testing.T) {
	svc := highTierService(t)

	outcome, err := svc.Rank(context.Background(), RankRequest{
		Candidates: []domain.SourceCandidate{torrent(hash("a"), domain.Resolution720p, 40)},
		Filter: domain.FilterSpec{
			Enabled:            true,
			MinResolution:      domain.Resolution2160p,
			ConflictResolution: domain.ConflictResolution{Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(outcome.Results) != 1 {
		t.Fatal("conflict resolution should rescue the only candidate")
	}
	if len(outcome.ConflictsResolved) == 0 {
		t.Fatal("concessions must be reported")
	}
}

func TestRankLimit(t *testing.T) {
	svc := highTierService(t)

	candidates := make([]domain.SourceCandidate, 30)
	for i := range candidates {
		candidates[i] = torrent(hash(string(rune('a'+i%26))+string(rune('a'+i/26))), domain.Resolution1080p, 40+i)
	}

	outcome, err := svc.Rank(context.Background(), RankRequest{Candidates: candidates, Limit: 5})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(outcome.Results) != 5 {
		t.Fatalf("results = %d, want limit 5", len(outcome.Results))
	}
	if outcome.Total != 30 {
		t.Fatalf("total = %d, want 30", outcome.Total)
	}
}

func TestRankUsesHealthCache(t *testing.T) {
	cache, err := healthcache.New(healthcache.Config{TTL: 30 * time.Minute, MemoryEntries: 64}, slog.Default())
	if err != nil {
		t.Fatalf("healthcache.New: %v", err)
	}
	svc := highTierService(t, WithHealthCache(cache))

	request := RankRequest{Candidates: []domain.SourceCandidate{torrent(hash("a"), domain.Resolution1080p, 40)}}

	if _, err := svc.Rank(context.Background(), request); err != nil {
		t.Fatalf("first Rank: %v", err)
	}
	if _, err := svc.Rank(context.Background(), request); err != nil {
		t.Fatalf("second Rank: %v", err)
	}

	stats := svc.CacheStats()
	if stats.MemoryHits == 0 {
		t.Fatalf("stats = %+v, second run must hit the cache", stats)
	}
}

func TestRecommendEndToEnd(t *testing.T) {
	svc := highTierService(t)

	uhd := torrent(hash("a"), domain.Resolution2160p, 40)
	fhd := torrent(hash("b"), domain.Resolution1080p, 40)

	outcome, err := svc.Recommend(context.Background(), RecommendRequest{
		RankRequest: RankRequest{Candidates: []domain.SourceCandidate{fhd, uhd}},
		Profile:     domain.UserProfile{PreferredResolution: domain.Resolution2160p},
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if outcome.Results[0].Candidate.Quality.Resolution != domain.Resolution2160p {
		t.Fatal("preferred resolution should lead")
	}
	if outcome.Results[0].RecommendationScore <= 0 {
		t.Fatal("recommendation score missing")
	}
	if len(outcome.Results[0].Reasons) == 0 {
		t.Fatal("reasons missing")
	}
}

func TestRecommendProfileConstraintsActAsFilter(t *testing.T) {
	svc := highTierService(t)

	outcome, err := svc.Recommend(context.Background(), RecommendRequest{
		RankRequest: RankRequest{Candidates: []domain.SourceCandidate{
			torrent(hash("a"), domain.Resolution720p, 40),
			torrent(hash("b"), domain.Resolution2160p, 40),
		}},
		Profile: domain.UserProfile{
			Constraints: &domain.FilterSpec{
				Enabled:       true,
				MinResolution: domain.Resolution1080p,
			},
		},
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(outcome.Results) != 1 {
		t.Fatalf("results = %d, want constraints applied", len(outcome.Results))
	}
}

func TestEvaluateHealthAndCachedHealth(t *testing.T) {
	cache, err := healthcache.New(healthcache.Config{TTL: 30 * time.Minute, MemoryEntries: 64}, slog.Default())
	if err != nil {
		t.Fatalf("healthcache.New: %v", err)
	}
	svc := highTierService(t, WithHealthCache(cache))
	ctx := context.Background()

	c := torrent(hash("a"), domain.Resolution1080p, 40)
	score, err := svc.EvaluateHealth(ctx, c)
	if err != nil {
		t.Fatalf("EvaluateHealth: %v", err)
	}
	if score.Overall <= 0 {
		t.Fatalf("overall = %d", score.Overall)
	}

	cached, err := svc.CachedHealth(ctx, c.ID())
	if err != nil {
		t.Fatalf("CachedHealth: %v", err)
	}
	if cached.Overall != score.Overall {
		t.Fatalf("cached overall = %d, want %d", cached.Overall, score.Overall)
	}

	if _, err := svc.CachedHealth(ctx, "prov:absent"); !errors.Is(err, ErrNoHealthData) {
		t.Fatalf("err = %v, want %v", err, ErrNoHealthData)
	}

	svc.InvalidateHealth(ctx, c.ID())
	if _, err := svc.CachedHealth(ctx, c.ID()); !errors.Is(err, ErrNoHealthData) {
		t.Fatal("invalidated score must be gone")
	}
}

func TestAnalyzeSeasonPackPassthrough(t *testing.T) {
	svc := highTierService(t)
	info := svc.AnalyzeSeasonPack("Show.S01.Complete.2160p.BluRay.REMUX", 120*1024*1024*1024)
	if !info.IsSeasonPack || info.Confidence < 90 {
		t.Fatalf("info = %+v, want confident season pack", info)
	}
}

func TestRankEmptyCandidates(t *testing.T) {
	svc := highTierService(t)
	outcome, err := svc.Rank(context.Background(), RankRequest{})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(outcome.Results) != 0 || outcome.Total != 0 {
		t.Fatalf("outcome = %+v, want empty", outcome)
	}
}
