// Package recommend layers per-user personalization on top of the base
// ranking. The boost is bounded: taste can reorder near-equals, it can never
// lift a bad source over a clearly better one.
package recommend

import (
	"fmt"
	"sort"
	"strings"

	"torrentstream/selectservice/internal/domain"
	"torrentstream/selectservice/internal/ranking"
)

// Boost percentages per matched preference, before the overall cap.
const (
	resolutionBoostPercent = 8.0
	hdrBoostPercent        = 6.0
	seasonPackBoostPercent = 8.0
)

// Recommend orders candidates by personalized score and explains each
// placement. The instant-playability partition from the base ranking stays
// hard; within each partition the boosted score decides, with the candidate
// ID breaking exact ties.
func Recommend(candidates []domain.ScoredCandidate, profile domain.UserProfile, prefs domain.Preferences) []domain.RankedResult {
	prefs = domain.NormalizePreferences(prefs)
	base := ranking.Rank(candidates, prefs)

	results := make([]domain.RankedResult, 0, len(base))
	for _, sc := range base {
		score, reasons := personalize(sc, profile, prefs)
		results = append(results, domain.RankedResult{
			Candidate:           sc.Candidate,
			QualityScore:        sc.QualityScore,
			Health:              sc.Health,
			Pack:                sc.Pack,
			RecommendationScore: score,
			Reasons:             reasons,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		ai, bi := a.Candidate.InstantlyPlayable(), b.Candidate.InstantlyPlayable()
		if ai != bi {
			return ai
		}
		if a.RecommendationScore != b.RecommendationScore {
			return a.RecommendationScore > b.RecommendationScore
		}
		return strings.Compare(a.Candidate.ID(), b.Candidate.ID()) < 0
	})

	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// personalize computes the boosted score and the human-readable reasons.
// The total boost is capped at prefs.MaxBoostPercent of the base score.
func personalize(sc domain.ScoredCandidate, profile domain.UserProfile, prefs domain.Preferences) (float64, []string) {
	base := baseScore(sc)

	boost := 0.0
	var reasons []string

	if profile.PreferredResolution != domain.ResolutionUnknown &&
		sc.Candidate.Quality.Resolution == profile.PreferredResolution {
		boost += resolutionBoostPercent
		reasons = append(reasons, fmt.Sprintf("Matches preferred %s", profile.PreferredResolution.Label()))
	}
	if profile.PreferHDR && sc.Candidate.Quality.HDR != domain.HDRNone {
		boost += hdrBoostPercent
		reasons = append(reasons, "HDR as preferred")
	}
	if prefs.PreferSeasonPacks && sc.Pack.IsSeasonPack {
		boost += seasonPackBoostPercent
		switch sc.Pack.PackType {
		case domain.PackCompleteSeries:
			reasons = append(reasons, "Complete series available")
		case domain.PackMultiSeason:
			reasons = append(reasons, "Multi-season pack available")
		default:
			reasons = append(reasons, "Complete season available")
		}
	}

	if boost > prefs.MaxBoostPercent {
		boost = prefs.MaxBoostPercent
	}

	// Non-boosting context the UI surfaces alongside the taste matches.
	if sc.Candidate.InstantlyPlayable() {
		reasons = append(reasons, "Plays instantly")
	}
	if sc.Health != nil && sc.Health.Risk == domain.RiskDead {
		reasons = append(reasons, "No active seeders")
	}

	return base * (1 + boost/100), reasons
}

// baseScore folds quality and health into the personalization baseline.
// Unknown health simply contributes nothing.
func baseScore(sc domain.ScoredCandidate) float64 {
	base := float64(sc.QualityScore)
	if overall := sc.HealthOverall(); overall >= 0 {
		base += float64(overall) / 2
	}
	return base
}
