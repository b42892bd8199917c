// Package quality implements the deterministic multi-factor quality score
// and the badge list derived from it. Everything here is a pure function of
// the candidate: same input, same score, no I/O.
package quality

import (
	"strings"

	"torrentstream/selectservice/internal/domain"
)

// Score composes the per-field bonuses into one quality score. Each factor
// is monotonic: raising resolution, codec efficiency, audio tier or release
// tier while holding the rest fixed never lowers the total. Missing optional
// fields contribute zero, never an error.
func Score(c domain.SourceCandidate) int {
	score := c.Quality.Resolution.BaseScore()
	score += c.Quality.HDR.Bonus()
	score += c.Codec.EfficiencyBonus()
	score += c.Audio.Format.Bonus()
	score += c.Release.Type.Bonus()
	score += healthBonus(c.Health)
	score += editionBonus(c.Release.Edition)
	return score
}

// healthBonus folds swarm observations into the quality score as a small
// additive nudge. The full health model lives in the health evaluator; this
// only rewards clearly well-seeded, highly available sources.
func healthBonus(signals *domain.HealthSignals) int {
	if signals == nil {
		return 0
	}
	bonus := 0
	if signals.Seeders != nil {
		switch s := *signals.Seeders; {
		case s >= 100:
			bonus += 3
		case s >= 10:
			bonus += 1
		}
	}
	if signals.Availability != nil {
		switch a := *signals.Availability; {
		case a >= 0.95:
			bonus += 4
		case a >= 0.8:
			bonus += 2
		}
	}
	return bonus
}

func editionBonus(edition string) int {
	value := strings.ToLower(strings.TrimSpace(edition))
	if value == "" {
		return 0
	}
	switch {
	case strings.Contains(value, "remaster"):
		return 3
	case strings.Contains(value, "director"):
		return 2
	case strings.Contains(value, "extended"):
		return 2
	case strings.Contains(value, "imax"):
		return 2
	default:
		return 1
	}
}
