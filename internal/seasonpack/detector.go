// Package seasonpack derives season/episode/pack metadata from a release
// filename and its size. Analysis is a pure function: same filename and size
// always produce the same result, and garbage input yields the non-pack
// default rather than an error.
package seasonpack

import (
	"regexp"
	"strconv"
	"strings"

	"torrentstream/selectservice/internal/domain"
)

var (
	completeSeriesPattern = regexp.MustCompile(`(?i)\b(?:complete\s+(?:series|collection)|all\s+seasons|full\s+series)\b`)
	seasonSpanPattern     = regexp.MustCompile(`(?i)\bs(\d{1,2})\s*[-–]\s*s?(\d{1,2})\b`)
	seasonsWordSpan       = regexp.MustCompile(`(?i)\bseasons?\s+(\d{1,2})\s*[-–]\s*(\d{1,2})\b`)
	episodeSpanPattern    = regexp.MustCompile(`(?i)\bs(\d{1,2})\s*e(\d{1,3})\s*[-–]\s*e?(\d{1,3})\b`)
	singleEpisodePattern  = regexp.MustCompile(`(?i)\bs(\d{1,2})\s*[\._ ]?\s*e(\d{1,3})\b`)
	crossEpisodePattern   = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
	seasonOnlyPattern     = regexp.MustCompile(`(?i)\bs(\d{1,2})\b`)
	seasonWordPattern     = regexp.MustCompile(`(?i)\bseason\s+(\d{1,2})\b`)
)

const (
	// assumedEpisodesPerSeason feeds size-plausibility checks when the
	// filename doesn't reveal an episode count.
	assumedEpisodesPerSeason = 10

	minPlausibleEpisodeBytes = int64(100 * 1024 * 1024)
	maxPlausibleEpisodeBytes = int64(15 * 1024 * 1024 * 1024)
)

// Analyze parses a release filename into SeasonPackInfo. Matchers run most
// specific first; the first hit decides the pack type. Confidence starts at
// the pattern's base and is adjusted by corroborating signals (plausible
// per-episode size, pack keywords), clamped to [0,100].
func Analyze(filename string, sizeBytes int64) domain.SeasonPackInfo {
	name := normalizeSeparators(filename)
	if name == "" {
		return nonPack()
	}
	if sizeBytes < 0 {
		sizeBytes = 0
	}

	if completeSeriesPattern.MatchString(name) {
		info := domain.SeasonPackInfo{
			IsSeasonPack: true,
			PackType:     domain.PackCompleteSeries,
			Confidence:   95,
		}
		if match := seasonSpanPattern.FindStringSubmatch(name); len(match) >= 3 {
			info.Seasons = seasonRange(match[1], match[2])
		}
		return corroborate(info, name, sizeBytes)
	}

	if match := seasonSpanPattern.FindStringSubmatch(name); len(match) >= 3 {
		seasons := seasonRange(match[1], match[2])
		if len(seasons) > 1 {
			return corroborate(domain.SeasonPackInfo{
				IsSeasonPack: true,
				Seasons:      seasons,
				PackType:     domain.PackMultiSeason,
				Confidence:   90,
			}, name, sizeBytes)
		}
	}

	if match := seasonsWordSpan.FindStringSubmatch(name); len(match) >= 3 {
		seasons := seasonRange(match[1], match[2])
		if len(seasons) > 1 {
			return corroborate(domain.SeasonPackInfo{
				IsSeasonPack: true,
				Seasons:      seasons,
				PackType:     domain.PackMultiSeason,
				Confidence:   85,
			}, name, sizeBytes)
		}
	}

	if match := episodeSpanPattern.FindStringSubmatch(name); len(match) >= 4 {
		season := parseIntOrZero(match[1])
		from := parseIntOrZero(match[2])
		to := parseIntOrZero(match[3])
		if season > 0 && to > from {
			return corroborate(domain.SeasonPackInfo{
				IsSeasonPack: true,
				Seasons:      []int{season},
				EpisodeRange: &domain.EpisodeRange{From: from, To: to},
				PackType:     domain.PackCompleteSeason,
				Confidence:   80,
			}, name, sizeBytes)
		}
	}

	if match := singleEpisodePattern.FindStringSubmatch(name); len(match) >= 3 {
		return singleEpisode(parseIntOrZero(match[1]), parseIntOrZero(match[2]))
	}
	if match := crossEpisodePattern.FindStringSubmatch(name); len(match) >= 3 {
		if season := parseIntOrZero(match[1]); season > 0 && season <= 50 {
			return singleEpisode(season, parseIntOrZero(match[2]))
		}
	}

	if match := seasonOnlyPattern.FindStringSubmatch(name); len(match) >= 2 {
		if season := parseIntOrZero(match[1]); season > 0 {
			return corroborate(domain.SeasonPackInfo{
				IsSeasonPack: true,
				Seasons:      []int{season},
				PackType:     domain.PackCompleteSeason,
				Confidence:   80,
			}, name, sizeBytes)
		}
	}
	if match := seasonWordPattern.FindStringSubmatch(name); len(match) >= 2 {
		if season := parseIntOrZero(match[1]); season > 0 {
			return corroborate(domain.SeasonPackInfo{
				IsSeasonPack: true,
				Seasons:      []int{season},
				PackType:     domain.PackCompleteSeason,
				Confidence:   70,
			}, name, sizeBytes)
		}
	}

	return nonPack()
}

// normalizeSeparators maps release-name separators (dots, underscores) to
// spaces so the patterns only have to reason about word boundaries.
func normalizeSeparators(filename string) string {
	replaced := strings.Map(func(r rune) rune {
		if r == '.' || r == '_' {
			return ' '
		}
		return r
	}, filename)
	return strings.TrimSpace(replaced)
}

func nonPack() domain.SeasonPackInfo {
	return domain.SeasonPackInfo{PackType: domain.PackSingleEpisode}
}

func singleEpisode(season, episode int) domain.SeasonPackInfo {
	info := nonPack()
	if season > 0 {
		info.Seasons = []int{season}
	}
	if episode > 0 {
		info.EpisodeRange = &domain.EpisodeRange{From: episode, To: episode}
	}
	info.Confidence = 95
	return info
}

// corroborate adjusts a pattern match's base confidence with secondary
// signals and fills the per-episode size estimate when the episode count is
// known.
func corroborate(info domain.SeasonPackInfo, name string, sizeBytes int64) domain.SeasonPackInfo {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "complete") || strings.Contains(lower, "full season") {
		info.Confidence += 10
	}
	if strings.Contains(lower, "remux") || strings.Contains(lower, "pack") || strings.Contains(lower, "batch") {
		info.Confidence += 5
	}

	episodes := knownEpisodeCount(info)
	if sizeBytes > 0 {
		perEpisode := sizeBytes / int64(likelyEpisodeCount(info))
		switch {
		case perEpisode >= minPlausibleEpisodeBytes && perEpisode <= maxPlausibleEpisodeBytes:
			info.Confidence += 5
		case perEpisode < minPlausibleEpisodeBytes/2 || perEpisode > 2*maxPlausibleEpisodeBytes:
			info.Confidence -= 15
		}
	}
	if episodes > 0 && sizeBytes > 0 {
		info.EpisodeSizeBytes = sizeBytes / int64(episodes)
	}

	if info.Confidence > 100 {
		info.Confidence = 100
	}
	if info.Confidence < 0 {
		info.Confidence = 0
	}
	return info
}

// knownEpisodeCount returns the episode count only when the filename states
// it (an explicit episode range); 0 means unknown and the per-episode size
// estimate stays unset.
func knownEpisodeCount(info domain.SeasonPackInfo) int {
	if info.EpisodeRange != nil && info.EpisodeRange.To >= info.EpisodeRange.From {
		return info.EpisodeRange.To - info.EpisodeRange.From + 1
	}
	return 0
}

// likelyEpisodeCount is the plausibility-check denominator: the known count
// when stated, otherwise an assumed per-season episode count.
func likelyEpisodeCount(info domain.SeasonPackInfo) int {
	if known := knownEpisodeCount(info); known > 0 {
		return known
	}
	seasons := len(info.Seasons)
	if seasons == 0 {
		seasons = 1
	}
	return seasons * assumedEpisodesPerSeason
}

func seasonRange(fromRaw, toRaw string) []int {
	from := parseIntOrZero(fromRaw)
	to := parseIntOrZero(toRaw)
	if from <= 0 || to < from || to-from > 50 {
		if from > 0 {
			return []int{from}
		}
		return nil
	}
	seasons := make([]int, 0, to-from+1)
	for season := from; season <= to; season++ {
		seasons = append(seasons, season)
	}
	return seasons
}

func parseIntOrZero(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
