// Package health turns raw swarm and availability signals into a bounded
// health score with a risk classification and an optional download-time
// estimate.
package health

import (
	"math"
	"time"

	"torrentstream/selectservice/internal/domain"
)

// Config tunes the scoring model. Zero values fall back to the defaults via
// normalize, so callers can override selectively.
type Config struct {
	// SeederScale maps log1p(seeders) onto the 0..100 P2P axis. The default
	// puts ~40 seeders at full score.
	SeederScale float64

	// LeecherPenaltyCap bounds how much a crowded swarm can subtract from
	// the P2P score.
	LeecherPenaltyCap float64

	// FreshFor is the window in which a health observation counts as fully
	// fresh.
	FreshFor time.Duration

	// StaleAfter is the horizon past which freshness bottoms out at
	// FreshnessFloor.
	StaleAfter time.Duration

	// FreshnessFloor keeps very old observations from zeroing the score
	// outright; stale data is still data.
	FreshnessFloor int

	// AssumedSeederKBps is the per-seeder throughput assumption behind the
	// download estimate.
	AssumedSeederKBps float64
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		SeederScale:       27.0,
		LeecherPenaltyCap: 25.0,
		FreshFor:          15 * time.Minute,
		StaleAfter:        24 * time.Hour,
		FreshnessFloor:    20,
		AssumedSeederKBps: 150,
	}
}

const (
	instantOverall = 95
	deadCeiling    = 15

	riskLowThreshold    = 70
	riskMediumThreshold = 40
)

// Evaluator computes health scores. Safe for concurrent use.
type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: normalize(cfg)}
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.SeederScale <= 0 {
		cfg.SeederScale = def.SeederScale
	}
	if cfg.LeecherPenaltyCap <= 0 {
		cfg.LeecherPenaltyCap = def.LeecherPenaltyCap
	}
	if cfg.FreshFor <= 0 {
		cfg.FreshFor = def.FreshFor
	}
	if cfg.StaleAfter <= cfg.FreshFor {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.FreshnessFloor <= 0 || cfg.FreshnessFloor > 100 {
		cfg.FreshnessFloor = def.FreshnessFloor
	}
	if cfg.AssumedSeederKBps <= 0 {
		cfg.AssumedSeederKBps = def.AssumedSeederKBps
	}
	return cfg
}

// Evaluate scores a candidate at the given instant. Instantly playable
// sources bypass the swarm model entirely: their delivery does not depend on
// peers, so they get a fixed high score and a zero-wait estimate.
func (e *Evaluator) Evaluate(c domain.SourceCandidate, now time.Time) domain.HealthScore {
	if c.InstantlyPlayable() {
		zero := 0.0
		return domain.HealthScore{
			Overall:                  instantOverall,
			Risk:                     domain.RiskLow,
			P2P:                      100,
			Freshness:                100,
			EstimatedDownloadMinutes: &zero,
			ComputedAt:               now,
		}
	}

	signals := c.Health
	if signals == nil {
		signals = &domain.HealthSignals{}
	}

	p2p := e.p2pScore(signals)
	freshness := e.freshnessScore(signals.LastChecked, now)

	// P2P dominates: a stale observation of a huge swarm still beats a
	// fresh observation of a dead one.
	overall := (3*p2p + freshness) / 4
	overall += c.Provider.Reliability.HealthOffset()
	overall = clampScore(overall)

	score := domain.HealthScore{
		P2P:        p2p,
		Freshness:  freshness,
		ComputedAt: now,
	}

	if signals.Seeders != nil && *signals.Seeders == 0 {
		if overall > deadCeiling {
			overall = deadCeiling
		}
		score.Overall = overall
		score.Risk = domain.RiskDead
		return score
	}

	score.Overall = overall
	score.Risk = classifyRisk(overall)
	score.EstimatedDownloadMinutes = e.estimateMinutes(c)
	return score
}

// p2pScore maps swarm counts onto 0..100. Seeders scale logarithmically:
// the jump from 0 to 10 seeders matters far more than 100 to 110.
func (e *Evaluator) p2pScore(signals *domain.HealthSignals) int {
	if signals.Seeders == nil {
		// Unknown swarm: neutral midpoint rather than assuming the worst.
		return 50
	}
	seeders := *signals.Seeders
	if seeders <= 0 {
		return 0
	}

	raw := math.Log1p(float64(seeders)) * e.cfg.SeederScale

	if signals.Leechers != nil && *signals.Leechers > 0 {
		ratio := float64(*signals.Leechers) / float64(seeders)
		if ratio > 1 {
			penalty := (ratio - 1) * 10
			if penalty > e.cfg.LeecherPenaltyCap {
				penalty = e.cfg.LeecherPenaltyCap
			}
			raw -= penalty
		}
	}

	return clampScore(int(math.Round(raw)))
}

// freshnessScore decays linearly from 100 within FreshFor down to the floor
// at StaleAfter. A missing timestamp is treated as maximally stale.
func (e *Evaluator) freshnessScore(lastChecked *time.Time, now time.Time) int {
	if lastChecked == nil {
		return e.cfg.FreshnessFloor
	}
	age := now.Sub(*lastChecked)
	if age <= e.cfg.FreshFor {
		return 100
	}
	if age >= e.cfg.StaleAfter {
		return e.cfg.FreshnessFloor
	}

	span := (e.cfg.StaleAfter - e.cfg.FreshFor).Seconds()
	elapsed := (age - e.cfg.FreshFor).Seconds()
	decay := elapsed / span
	return clampScore(int(math.Round(100 - decay*float64(100-e.cfg.FreshnessFloor))))
}

// estimateMinutes projects download time from size and swarm. Returns nil
// when there is no basis for an estimate. The exponent keeps the projection
// sub-linear: large swarms saturate the client's link, they don't multiply
// it forever.
func (e *Evaluator) estimateMinutes(c domain.SourceCandidate) *float64 {
	if c.Health == nil || c.Health.Seeders == nil || *c.Health.Seeders <= 0 || c.File.SizeBytes <= 0 {
		return nil
	}
	seeders := float64(*c.Health.Seeders)

	throughputKBps := e.cfg.AssumedSeederKBps * seeders
	linearMinutes := float64(c.File.SizeBytes) / 1024 / throughputKBps / 60
	minutes := math.Pow(linearMinutes, 0.9)
	if minutes < 0.1 {
		minutes = 0.1
	}
	return &minutes
}

func classifyRisk(overall int) domain.RiskLevel {
	switch {
	case overall >= riskLowThreshold:
		return domain.RiskLow
	case overall >= riskMediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
