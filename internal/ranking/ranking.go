// Package ranking orders scored candidates. Two modes share one hard
// invariant: instantly playable sources always precede swarm-dependent ones,
// and equal candidates keep a stable, ID-tie-broken order so repeated calls
// agree.
package ranking

import (
	"sort"
	"strings"

	"torrentstream/selectservice/internal/domain"
)

// Rank sorts candidates best-first according to the preferences. The input
// slice is not modified; the returned slice is a sorted copy.
func Rank(candidates []domain.ScoredCandidate, prefs domain.Preferences) []domain.ScoredCandidate {
	prefs = domain.NormalizePreferences(prefs)

	sorted := append([]domain.ScoredCandidate(nil), candidates...)
	if prefs.Weighted {
		composites := compositeScores(sorted, prefs)
		sort.SliceStable(sorted, func(i, j int) bool {
			return weightedLess(sorted[i], sorted[j], composites[sorted[i].Candidate.ID()], composites[sorted[j].Candidate.ID()])
		})
		return sorted
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return lexicographicLess(sorted[i], sorted[j], prefs)
	})
	return sorted
}

// lexicographicLess is the default comparator chain: instant partition,
// quality, health, size (direction from prefs), provider reliability, then
// candidate ID so full ties still order deterministically.
func lexicographicLess(a, b domain.ScoredCandidate, prefs domain.Preferences) bool {
	if c := compareInstant(a, b); c != 0 {
		return c > 0
	}
	if a.QualityScore != b.QualityScore {
		return a.QualityScore > b.QualityScore
	}
	if ah, bh := a.HealthOverall(), b.HealthOverall(); ah != bh {
		return ah > bh
	}
	if prefs.PreferSeasonPacks && a.Pack.IsSeasonPack != b.Pack.IsSeasonPack {
		return a.Pack.IsSeasonPack
	}
	if c := compareSize(a, b, prefs.SizeDirection); c != 0 {
		return c > 0
	}
	if ar, br := a.Candidate.Provider.Reliability, b.Candidate.Provider.Reliability; ar != br {
		return ar > br
	}
	return strings.Compare(a.Candidate.ID(), b.Candidate.ID()) < 0
}

// weightedLess keeps the instant partition hard even in weighted mode, then
// orders by composite score with the ID tie-break.
func weightedLess(a, b domain.ScoredCandidate, compositeA, compositeB float64) bool {
	if c := compareInstant(a, b); c != 0 {
		return c > 0
	}
	if compositeA != compositeB {
		return compositeA > compositeB
	}
	return strings.Compare(a.Candidate.ID(), b.Candidate.ID()) < 0
}

func compareInstant(a, b domain.ScoredCandidate) int {
	ai, bi := a.Candidate.InstantlyPlayable(), b.Candidate.InstantlyPlayable()
	switch {
	case ai == bi:
		return 0
	case ai:
		return 1
	default:
		return -1
	}
}

func compareSize(a, b domain.ScoredCandidate, direction domain.SizeDirection) int {
	as, bs := a.Candidate.File.SizeBytes, b.Candidate.File.SizeBytes
	if as == bs {
		return 0
	}
	larger := as > bs
	if direction == domain.SizeSmallerFirst {
		larger = !larger
	}
	if larger {
		return 1
	}
	return -1
}

// compositeScores normalizes each factor to [0,1] over the input set and
// combines them with the preference weights. Keyed by candidate ID so the
// sort closure stays cheap.
func compositeScores(candidates []domain.ScoredCandidate, prefs domain.Preferences) map[string]float64 {
	if len(candidates) == 0 {
		return nil
	}

	var (
		minQuality, maxQuality = candidates[0].QualityScore, candidates[0].QualityScore
		minSize, maxSize       = candidates[0].Candidate.File.SizeBytes, candidates[0].Candidate.File.SizeBytes
	)
	for _, sc := range candidates[1:] {
		if sc.QualityScore < minQuality {
			minQuality = sc.QualityScore
		}
		if sc.QualityScore > maxQuality {
			maxQuality = sc.QualityScore
		}
		if sc.Candidate.File.SizeBytes < minSize {
			minSize = sc.Candidate.File.SizeBytes
		}
		if sc.Candidate.File.SizeBytes > maxSize {
			maxSize = sc.Candidate.File.SizeBytes
		}
	}

	scores := make(map[string]float64, len(candidates))
	for _, sc := range candidates {
		quality := normalizeInt(sc.QualityScore, minQuality, maxQuality)

		// Unknown health maps to 0, an observed score to its 0..1 value.
		health := 0.0
		if overall := sc.HealthOverall(); overall >= 0 {
			health = float64(overall) / 100
		}

		size := normalizeInt64(sc.Candidate.File.SizeBytes, minSize, maxSize)
		if prefs.SizeDirection == domain.SizeSmallerFirst {
			size = 1 - size
		}

		reliability := float64(sc.Candidate.Provider.Reliability) / float64(domain.ReliabilityExcellent)

		scores[sc.Candidate.ID()] = prefs.Weights.Quality*quality +
			prefs.Weights.Health*health +
			prefs.Weights.Size*size +
			prefs.Weights.Reliability*reliability
	}
	return scores
}

func normalizeInt(v, min, max int) float64 {
	if max == min {
		return 0.5
	}
	return float64(v-min) / float64(max-min)
}

func normalizeInt64(v, min, max int64) float64 {
	if max == min {
		return 0.5
	}
	return float64(v-min) / float64(max-min)
}
