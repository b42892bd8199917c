// Package batch runs the per-candidate scoring work (quality, health,
// season-pack analysis) over large candidate sets without exceeding what the
// host device can afford. Work is chunked; chunks are processed at full
// speed until the requested result count is covered, the rest are paced in
// the background.
// Memory stays bounded: only the current chunk plus the running top-K ever
// live at once.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"torrentstream/selectservice/internal/domain"
	"torrentstream/selectservice/internal/metrics"
	"torrentstream/selectservice/internal/ranking"
)

// DeriveFunc computes the scored view of one candidate.
type DeriveFunc func(ctx context.Context, c domain.SourceCandidate) (domain.ScoredCandidate, error)

// DefaultKeep bounds the top-K accumulator when the caller does not say how
// many results it wants.
const DefaultKeep = 100

// defaultBackgroundInterval paces background chunk starts so scoring a long
// tail never saturates a TV device's CPU.
const defaultBackgroundInterval = 200 * time.Millisecond

// Result reports what a batch run produced and how far it got.
type Result struct {
	// Top holds the best `keep` scored candidates seen, ranked best-first.
	Top []domain.ScoredCandidate

	Processed           int
	BackgroundProcessed int
	Failed              int
	Skipped             int

	// Incomplete is set when cancellation or a disabled background tier
	// cut the run short. Partial results are still valid.
	Incomplete bool
}

// Optimizer executes batch scoring within per-device limits. Safe for
// concurrent use.
type Optimizer struct {
	limits  domain.BatchLimits
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Option func(*Optimizer)

// WithBackgroundInterval overrides the pacing between background chunks.
func WithBackgroundInterval(interval time.Duration) Option {
	return func(o *Optimizer) {
		if interval > 0 {
			o.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

func New(profile domain.DeviceProfile, logger *slog.Logger, opts ...Option) *Optimizer {
	tier := profile.Tier
	if tier == "" {
		tier = domain.ClassifyDevice(profile.MemoryBytes, profile.Cores)
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Optimizer{
		limits:  tier.Limits(),
		limiter: rate.NewLimiter(rate.Every(defaultBackgroundInterval), 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Limits exposes the effective per-tier bounds.
func (o *Optimizer) Limits() domain.BatchLimits { return o.limits }

// Process scores candidates chunk by chunk, keeping the best `keep` results
// ranked by prefs. Chunks run eagerly until `keep` candidates have been
// scored; the tail beyond that runs only when the device tier allows
// background work, paced by the rate limiter.
// Cancellation between chunks stops the run and returns partial results with
// Incomplete set, never an error.
func (o *Optimizer) Process(
	ctx context.Context,
	candidates []domain.SourceCandidate,
	derive DeriveFunc,
	keep int,
	prefs domain.Preferences,
) Result {
	if keep <= 0 {
		keep = DefaultKeep
	}

	var result Result
	top := make([]domain.ScoredCandidate, 0, keep)

	chunks := chunk(candidates, o.limits.ChunkSize)
	for i, current := range chunks {
		// Chunks are priority until the accumulator has keep results;
		// only the long tail beyond that runs paced in the background.
		background := result.Processed >= keep

		if background && !o.limits.BackgroundEnabled {
			result.Skipped += remaining(chunks[i:])
			result.Incomplete = true
			o.logger.Debug("background scoring disabled on this device tier",
				"skipped", result.Skipped)
			break
		}

		if err := ctx.Err(); err != nil {
			result.Skipped += remaining(chunks[i:])
			result.Incomplete = true
			metrics.BatchCancellationsTotal.Inc()
			break
		}

		if background {
			if err := o.limiter.Wait(ctx); err != nil {
				result.Skipped += remaining(chunks[i:])
				result.Incomplete = true
				metrics.BatchCancellationsTotal.Inc()
				break
			}
		}

		scored, failed := o.processChunk(ctx, current, derive)
		result.Processed += len(scored)
		result.Failed += failed
		if background {
			result.BackgroundProcessed += len(scored)
			metrics.BatchChunksTotal.WithLabelValues("background").Inc()
		} else {
			metrics.BatchChunksTotal.WithLabelValues("priority").Inc()
		}

		// Merge into the bounded accumulator: rank chunk + current top
		// together, keep the best `keep`. Peak memory is keep + one chunk.
		top = ranking.Rank(append(top, scored...), prefs)
		if len(top) > keep {
			top = top[:keep:keep]
		}
	}

	result.Top = top
	return result
}

// processChunk fans the chunk out over the tier's worker budget.
func (o *Optimizer) processChunk(
	ctx context.Context,
	candidates []domain.SourceCandidate,
	derive DeriveFunc,
) ([]domain.ScoredCandidate, int) {
	sem := semaphore.NewWeighted(int64(o.limits.MaxWorkers))
	var wg sync.WaitGroup
	var mu sync.Mutex

	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	failed := 0

	for _, c := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled mid-chunk: finish in-flight work, drop the rest.
			break
		}
		wg.Add(1)
		go func(c domain.SourceCandidate) {
			defer wg.Done()
			defer sem.Release(1)

			sc, err := derive(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				o.logger.Debug("candidate scoring failed", "candidate", c.ID(), "error", err)
				return
			}
			scored = append(scored, sc)
		}(c)
	}
	wg.Wait()
	return scored, failed
}

func chunk(candidates []domain.SourceCandidate, size int) [][]domain.SourceCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]domain.SourceCandidate{candidates}
	}
	chunks := make([][]domain.SourceCandidate, 0, (len(candidates)+size-1)/size)
	for start := 0; start < len(candidates); start += size {
		end := start + size
		if end > len(candidates) {
			end = len(candidates)
		}
		chunks = append(chunks, candidates[start:end])
	}
	return chunks
}

func remaining(chunks [][]domain.SourceCandidate) int {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	return total
}
