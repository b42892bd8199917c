package domain

import "time"

// RiskLevel classifies the download risk derived from the overall health
// score. Dead is a hard classification for zero-seeder torrents.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
	RiskDead   RiskLevel = "dead"
)

// HealthScore is an immutable health snapshot for one candidate. Scores are
// recomputed rather than mutated; the health cache stores them by candidate
// identity and treats entries older than its TTL as misses.
type HealthScore struct {
	Overall                  int       `json:"overall"`
	Risk                     RiskLevel `json:"risk"`
	P2P                      int       `json:"p2p"`
	Freshness                int       `json:"freshness"`
	EstimatedDownloadMinutes *float64  `json:"estimatedDownloadMinutes,omitempty"`
	ComputedAt               time.Time `json:"computedAt"`
}

type Badge struct {
	Label    string `json:"label"`
	Category string `json:"category"`
	Weight   int    `json:"weight"`
}

// PackType is the closed set of season-pack shapes a release name can take.
type PackType string

const (
	PackSingleEpisode  PackType = "single_episode"
	PackCompleteSeason PackType = "complete_season"
	PackMultiSeason    PackType = "multi_season"
	PackCompleteSeries PackType = "complete_series"
)

type EpisodeRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// SeasonPackInfo is derived once per candidate from filename + size and is
// cacheable indefinitely (filenames don't change).
type SeasonPackInfo struct {
	IsSeasonPack     bool          `json:"isSeasonPack"`
	Seasons          []int         `json:"seasons,omitempty"`
	EpisodeRange     *EpisodeRange `json:"episodeRange,omitempty"`
	PackType         PackType      `json:"packType"`
	Confidence       int           `json:"confidence"`
	EpisodeSizeBytes int64         `json:"episodeSizeBytes,omitempty"`
}

// ScoredCandidate is the per-invocation derived view of a candidate: the raw
// candidate plus everything the ranking comparators need.
type ScoredCandidate struct {
	Candidate    SourceCandidate `json:"candidate"`
	QualityScore int             `json:"qualityScore"`
	Health       *HealthScore    `json:"health,omitempty"`
	Pack         SeasonPackInfo  `json:"pack"`
}

// HealthOverall returns the overall health score, or -1 when no health
// snapshot exists, so comparators can order unknown below any known score.
func (s ScoredCandidate) HealthOverall() int {
	if s.Health == nil {
		return -1
	}
	return s.Health.Overall
}

type RankedResult struct {
	Candidate           SourceCandidate `json:"candidate"`
	QualityScore        int             `json:"qualityScore"`
	Health              *HealthScore    `json:"health,omitempty"`
	Pack                SeasonPackInfo  `json:"pack"`
	Badges              []Badge         `json:"badges,omitempty"`
	Rank                int             `json:"rank"`
	RecommendationScore float64         `json:"recommendationScore,omitempty"`
	Reasons             []string        `json:"reasons,omitempty"`
}

// FilterResult reports the surviving candidates plus enough metadata for the
// UI to explain why the set differs from the strict request.
type FilterResult struct {
	Candidates        []SourceCandidate `json:"candidates"`
	AppliedFilters    []string          `json:"appliedFilters,omitempty"`
	ConflictsResolved []string          `json:"conflictsResolved,omitempty"`
}
