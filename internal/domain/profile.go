package domain

// SizeDirection controls how file size breaks ranking ties: larger files for
// completeness, smaller for speed on constrained links.
type SizeDirection string

const (
	SizeLargerFirst  SizeDirection = "larger"
	SizeSmallerFirst SizeDirection = "smaller"
)

// RankWeights drive the weighted composite ranking mode. Factors are
// normalized to [0,1] over the input before weighting.
type RankWeights struct {
	Quality     float64 `json:"quality"`
	Health      float64 `json:"health"`
	Size        float64 `json:"size"`
	Reliability float64 `json:"reliability"`
}

// Preferences tune ranking and recommendation for one invocation.
type Preferences struct {
	SizeDirection     SizeDirection `json:"sizeDirection,omitempty"`
	Weighted          bool          `json:"weighted,omitempty"`
	Weights           RankWeights   `json:"weights,omitempty"`
	PreferSeasonPacks bool          `json:"preferSeasonPacks,omitempty"`
	// MaxBoostPercent bounds personalization so it refines but never
	// inverts the base quality/health ordering.
	MaxBoostPercent float64 `json:"maxBoostPercent,omitempty"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		SizeDirection: SizeLargerFirst,
		Weights: RankWeights{
			Quality:     1,
			Health:      0.8,
			Size:        0.3,
			Reliability: 0.4,
		},
		MaxBoostPercent: 20,
	}
}

// NormalizePreferences clamps weights and the boost bound into sane ranges,
// falling back to defaults for zero values.
func NormalizePreferences(prefs Preferences) Preferences {
	defaults := DefaultPreferences()
	if prefs.SizeDirection != SizeSmallerFirst {
		prefs.SizeDirection = SizeLargerFirst
	}
	clamp := func(value float64) float64 {
		if value < 0 {
			return 0
		}
		if value > 5 {
			return 5
		}
		return value
	}
	prefs.Weights.Quality = clamp(prefs.Weights.Quality)
	prefs.Weights.Health = clamp(prefs.Weights.Health)
	prefs.Weights.Size = clamp(prefs.Weights.Size)
	prefs.Weights.Reliability = clamp(prefs.Weights.Reliability)
	if prefs.Weights == (RankWeights{}) {
		prefs.Weights = defaults.Weights
	}
	if prefs.MaxBoostPercent <= 0 || prefs.MaxBoostPercent > 50 {
		prefs.MaxBoostPercent = defaults.MaxBoostPercent
	}
	return prefs
}

// UserProfile carries the per-user taste signals the recommendation engine
// personalizes with. Constraints, when present, run through the filter
// engine before ranking.
type UserProfile struct {
	PreferredResolution Resolution  `json:"preferredResolution,omitempty"`
	PreferHDR           bool        `json:"preferHdr,omitempty"`
	Constraints         *FilterSpec `json:"constraints,omitempty"`
}
