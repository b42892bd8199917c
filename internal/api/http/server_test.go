package apihttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"torrentstream/selectservice/internal/domain"
	"torrentstream/selectservice/internal/engine"
	"torrentstream/selectservice/internal/healthcache"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cache, err := healthcache.New(healthcache.Config{TTL: 30 * time.Minute, MemoryEntries: 64}, slog.Default())
	if err != nil {
		t.Fatalf("healthcache.New: %v", err)
	}
	svc := engine.NewService(
		domain.DeviceProfile{Tier: domain.DeviceTierHigh},
		slog.Default(),
		engine.WithHealthCache(cache),
	)
	ts := httptest.NewServer(NewServer(svc, WithLogger(slog.Default())).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func testCandidate(id string, resolution domain.Resolution, seeders int) domain.SourceCandidate {
	return domain.SourceCandidate{
		InfoHash: fmt.Sprintf("%-40s", id)[:40],
		Provider: domain.Provider{
			ID:          "prov",
			Type:        domain.ProviderTorrent,
			Reliability: domain.ReliabilityGood,
		},
		File:    domain.FileInfo{Name: "Movie.2023.1080p.WEB-DL.mkv", SizeBytes: 4 * 1024 * 1024 * 1024},
		Quality: domain.QualityInfo{Resolution: resolution},
		Codec:   domain.CodecH264,
		Release: domain.ReleaseInfo{Type: domain.ReleaseWEBDL},
		Health:  &domain.HealthSignals{Seeders: &seeders},
	}
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestRankEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/select/rank", engine.RankRequest{
		Candidates: []domain.SourceCandidate{
			testCandidate("low", domain.Resolution720p, 40),
			testCandidate("high", domain.Resolution2160p, 40),
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var outcome engine.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(outcome.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(outcome.Results))
	}
	if outcome.Results[0].Candidate.Quality.Resolution != domain.Resolution2160p {
		t.Fatalf("first result resolution = %s, want 2160p", outcome.Results[0].Candidate.Quality.Resolution)
	}
	if outcome.Results[0].Rank != 1 {
		t.Fatalf("first rank = %d, want 1", outcome.Results[0].Rank)
	}
}

func TestRankEndpointRejectsInvalidCandidate(t *testing.T) {
	ts := newTestServer(t)

	bad := testCandidate("bad", domain.Resolution1080p, 10)
	bad.File.SizeBytes = -5

	resp := postJSON(t, ts.URL+"/select/rank", engine.RankRequest{
		Candidates: []domain.SourceCandidate{bad},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRankEndpointRejectsMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/select/rank", "application/json", bytes.NewBufferString("{nope"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRankEndpointMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/select/rank")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestRecommendEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/select/recommend", engine.RecommendRequest{
		RankRequest: engine.RankRequest{
			Candidates: []domain.SourceCandidate{
				testCandidate("fhd", domain.Resolution1080p, 40),
				testCandidate("uhd", domain.Resolution2160p, 40),
			},
		},
		Profile: domain.UserProfile{PreferredResolution: domain.Resolution2160p},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var outcome engine.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if outcome.Results[0].RecommendationScore <= 0 {
		t.Fatal("recommendation score missing")
	}
}

func TestHealthEndpointComputeThenRead(t *testing.T) {
	ts := newTestServer(t)

	c := testCandidate("one", domain.Resolution1080p, 40)
	resp := postJSON(t, ts.URL+"/select/health", c)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST status = %d, want 200", resp.StatusCode)
	}
	var score domain.HealthScore
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if score.Overall <= 0 {
		t.Fatalf("overall = %d", score.Overall)
	}

	getResp, err := http.Get(ts.URL + "/select/health?id=" + c.ID())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d, want 200 for cached score", getResp.StatusCode)
	}
}

func TestHealthEndpointMissIs404(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/select/health?id=prov:absent")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSeasonPackEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/select/seasonpack?filename=Show.S01.Complete.2160p.BluRay.REMUX&size=128849018880")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var info domain.SeasonPackInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !info.IsSeasonPack || info.Confidence < 90 {
		t.Fatalf("info = %+v, want confident season pack", info)
	}

	missing, err := http.Get(ts.URL + "/select/seasonpack")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusBadRequest {
		t.Fatalf("status without filename = %d, want 400", missing.StatusCode)
	}
}

func TestCacheStatsAndInvalidate(t *testing.T) {
	ts := newTestServer(t)

	c := testCandidate("one", domain.Resolution1080p, 40)
	resp := postJSON(t, ts.URL+"/select/health", c)
	resp.Body.Close()

	statsResp, err := http.Get(ts.URL + "/select/cache/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	defer statsResp.Body.Close()
	if statsResp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", statsResp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/select/cache", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", delResp.StatusCode)
	}

	missResp, err := http.Get(ts.URL + "/select/health?id=" + c.ID())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer missResp.Body.Close()
	if missResp.StatusCode != http.StatusNotFound {
		t.Fatalf("status after invalidation = %d, want 404", missResp.StatusCode)
	}
}

func TestHealthAndLimitsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	limitsResp, err := http.Get(ts.URL + "/select/limits")
	if err != nil {
		t.Fatalf("GET /select/limits: %v", err)
	}
	defer limitsResp.Body.Close()
	var limits domain.BatchLimits
	if err := json.NewDecoder(limitsResp.Body).Decode(&limits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if limits.MaxWorkers != 8 {
		t.Fatalf("limits = %+v, want high-tier workers", limits)
	}
}
