// Package engine composes the selection pipeline: validate, filter, score
// in device-sized batches, rank, decorate. It owns the health cache and is
// the only package HTTP handlers talk to.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"torrentstream/selectservice/internal/batch"
	"torrentstream/selectservice/internal/domain"
	"torrentstream/selectservice/internal/filter"
	"torrentstream/selectservice/internal/health"
	"torrentstream/selectservice/internal/healthcache"
	"torrentstream/selectservice/internal/metrics"
	"torrentstream/selectservice/internal/quality"
	"torrentstream/selectservice/internal/recommend"
	"torrentstream/selectservice/internal/seasonpack"
)

var (
	ErrInvalidCandidate = errors.New("invalid candidate")
	ErrNoHealthData     = errors.New("no cached health score")
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// RankRequest is one selection invocation.
type RankRequest struct {
	Candidates  []domain.SourceCandidate `json:"candidates"`
	Filter      domain.FilterSpec        `json:"filter"`
	Preferences domain.Preferences       `json:"preferences"`
	Limit       int                      `json:"limit,omitempty"`
}

// RecommendRequest adds the per-user taste signals.
type RecommendRequest struct {
	RankRequest
	Profile domain.UserProfile `json:"profile"`
}

// Outcome is what a ranking or recommendation run produced, including the
// metadata the UI needs to explain the result set.
type Outcome struct {
	Results             []domain.RankedResult `json:"results"`
	Total               int                   `json:"total"`
	AppliedFilters      []string              `json:"appliedFilters,omitempty"`
	ConflictsResolved   []string              `json:"conflictsResolved,omitempty"`
	Incomplete          bool                  `json:"incomplete,omitempty"`
	BackgroundProcessed int                   `json:"backgroundProcessed,omitempty"`
	ElapsedMS           int64                 `json:"elapsedMs"`
}

type Service struct {
	filters    *filter.Engine
	evaluator  *health.Evaluator
	cache      *healthcache.Cache
	optimizer  *batch.Optimizer
	badgeLimit int
	logger     *slog.Logger
	now        func() time.Time
}

type ServiceOption func(*Service)

// WithHealthCache attaches the tiered health cache. Without one, health is
// recomputed on every invocation.
func WithHealthCache(cache *healthcache.Cache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithEvaluator overrides the default health model tuning.
func WithEvaluator(evaluator *health.Evaluator) ServiceOption {
	return func(s *Service) {
		if evaluator != nil {
			s.evaluator = evaluator
		}
	}
}

// WithBadgeLimit caps per-result badges.
func WithBadgeLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.badgeLimit = limit
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(device domain.DeviceProfile, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		filters:    filter.NewEngine(logger),
		evaluator:  health.NewEvaluator(health.DefaultConfig()),
		optimizer:  batch.New(device, logger),
		badgeLimit: quality.DefaultBadgeLimit,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Rank runs the full pipeline and returns the best candidates in order.
func (s *Service) Rank(ctx context.Context, request RankRequest) (Outcome, error) {
	startedAt := s.now()
	outcome, top, err := s.prepare(ctx, request, "rank")
	if err != nil {
		return Outcome{}, err
	}

	results := make([]domain.RankedResult, 0, len(top))
	for i, sc := range top {
		results = append(results, domain.RankedResult{
			Candidate:    sc.Candidate,
			QualityScore: sc.QualityScore,
			Health:       sc.Health,
			Pack:         sc.Pack,
			Badges:       quality.Badges(sc.Candidate, s.badgeLimit),
			Rank:         i + 1,
		})
	}

	outcome.Results = results
	outcome.ElapsedMS = s.now().Sub(startedAt).Milliseconds()
	metrics.RankDuration.WithLabelValues("rank").Observe(time.Since(startedAt).Seconds())
	return outcome, nil
}

// Recommend runs the pipeline and layers personalization on top. The
// profile's own constraints, when present, are applied as the filter.
func (s *Service) Recommend(ctx context.Context, request RecommendRequest) (Outcome, error) {
	startedAt := s.now()
	if request.Profile.Constraints != nil {
		request.Filter = *request.Profile.Constraints
	}

	outcome, top, err := s.prepare(ctx, request.RankRequest, "recommend")
	if err != nil {
		return Outcome{}, err
	}

	results := recommend.Recommend(top, request.Profile, request.Preferences)
	for i := range results {
		results[i].Badges = quality.Badges(results[i].Candidate, s.badgeLimit)
	}

	outcome.Results = results
	outcome.ElapsedMS = s.now().Sub(startedAt).Milliseconds()
	metrics.RankDuration.WithLabelValues("recommend").Observe(time.Since(startedAt).Seconds())
	return outcome, nil
}

// prepare runs the shared front half: validation, filtering and batched
// scoring. The returned slice is already ranked best-first.
func (s *Service) prepare(ctx context.Context, request RankRequest, mode string) (Outcome, []domain.ScoredCandidate, error) {
	for i, c := range request.Candidates {
		if err := c.Validate(); err != nil {
			metrics.RankRequestsTotal.WithLabelValues(mode, "invalid").Inc()
			return Outcome{}, nil, fmt.Errorf("%w at index %d: %v", ErrInvalidCandidate, i, err)
		}
	}
	metrics.RankCandidates.Observe(float64(len(request.Candidates)))

	filtered, err := s.filters.Apply(request.Filter, request.Candidates)
	if err != nil {
		metrics.RankRequestsTotal.WithLabelValues(mode, "invalid").Inc()
		return Outcome{}, nil, err
	}

	limit := request.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	prefs := domain.NormalizePreferences(request.Preferences)
	batchResult := s.optimizer.Process(ctx, filtered.Candidates, s.derive, limit, prefs)

	if batchResult.Failed > 0 {
		s.logger.Warn("some candidates failed scoring",
			"mode", mode,
			"failed", batchResult.Failed,
			"processed", batchResult.Processed,
		)
	}
	metrics.RankRequestsTotal.WithLabelValues(mode, "ok").Inc()

	outcome := Outcome{
		Total:               len(filtered.Candidates),
		AppliedFilters:      filtered.AppliedFilters,
		ConflictsResolved:   filtered.ConflictsResolved,
		Incomplete:          batchResult.Incomplete,
		BackgroundProcessed: batchResult.BackgroundProcessed,
	}
	return outcome, batchResult.Top, nil
}

// derive is the per-candidate scoring unit handed to the batch optimizer.
func (s *Service) derive(ctx context.Context, c domain.SourceCandidate) (domain.ScoredCandidate, error) {
	sc := domain.ScoredCandidate{
		Candidate:    c,
		QualityScore: quality.Score(c),
		Pack:         seasonpack.Analyze(c.File.Name, c.File.SizeBytes),
	}

	score, ok := s.cachedHealth(ctx, c.ID())
	if !ok {
		score = s.evaluator.Evaluate(c, s.now())
		s.storeHealth(ctx, c.ID(), score)
	}
	sc.Health = &score
	return sc, nil
}

// EvaluateHealth computes (or serves from cache) the health score for one
// candidate.
func (s *Service) EvaluateHealth(ctx context.Context, c domain.SourceCandidate) (domain.HealthScore, error) {
	if err := c.Validate(); err != nil {
		return domain.HealthScore{}, fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}
	if score, ok := s.cachedHealth(ctx, c.ID()); ok {
		return score, nil
	}
	score := s.evaluator.Evaluate(c, s.now())
	s.storeHealth(ctx, c.ID(), score)
	return score, nil
}

// CachedHealth returns the cached score for a candidate identity without
// recomputing. ErrNoHealthData when the cache has nothing fresh.
func (s *Service) CachedHealth(ctx context.Context, id string) (domain.HealthScore, error) {
	if score, ok := s.cachedHealth(ctx, id); ok {
		return score, nil
	}
	return domain.HealthScore{}, fmt.Errorf("%w: %s", ErrNoHealthData, id)
}

// AnalyzeSeasonPack exposes the filename analyzer.
func (s *Service) AnalyzeSeasonPack(filename string, sizeBytes int64) domain.SeasonPackInfo {
	return seasonpack.Analyze(filename, sizeBytes)
}

// CacheStats snapshots health-cache effectiveness. Zero stats without a
// cache attached.
func (s *Service) CacheStats() healthcache.Stats {
	if s.cache == nil {
		return healthcache.Stats{}
	}
	return s.cache.Stats()
}

// InvalidateHealth drops one candidate's cached score; with an empty id it
// clears the whole cache.
func (s *Service) InvalidateHealth(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if id == "" {
		s.cache.InvalidateAll(ctx)
		return
	}
	s.cache.Invalidate(ctx, id)
}

func (s *Service) cachedHealth(ctx context.Context, id string) (domain.HealthScore, bool) {
	if s.cache == nil {
		return domain.HealthScore{}, false
	}
	return s.cache.Get(ctx, id)
}

func (s *Service) storeHealth(ctx context.Context, id string, score domain.HealthScore) {
	if s.cache == nil {
		return
	}
	s.cache.Put(ctx, id, score)
}

// BatchLimits exposes the effective device limits for diagnostics.
func (s *Service) BatchLimits() domain.BatchLimits {
	return s.optimizer.Limits()
}
