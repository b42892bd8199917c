package quality

import (
	"fmt"
	"sort"
	"strings"

	"torrentstream/selectservice/internal/domain"
)

// DefaultBadgeLimit caps how many badges a result carries before the
// overflow marker; the UI passes its own cap when its layout differs.
const DefaultBadgeLimit = 8

// OverflowCategory marks the synthetic "+N more" badge appended when the
// list is truncated for display.
const OverflowCategory = "overflow"

// Badges returns the display badges for a candidate, sorted by descending
// weight, capped at limit with an explicit "+N more" marker when truncated.
// A limit <= 0 falls back to DefaultBadgeLimit.
func Badges(c domain.SourceCandidate, limit int) []domain.Badge {
	if limit <= 0 {
		limit = DefaultBadgeLimit
	}

	badges := make([]domain.Badge, 0, 10)
	add := func(label, category string, weight int) {
		if strings.TrimSpace(label) == "" || weight <= 0 {
			return
		}
		badges = append(badges, domain.Badge{Label: label, Category: category, Weight: weight})
	}

	if c.InstantlyPlayable() {
		label := "Instant"
		if c.Availability != nil && c.Availability.Service != "" {
			label = "Cached: " + c.Availability.Service
		}
		add(label, "availability", 100)
	}
	add(c.Quality.Resolution.Label(), "resolution", c.Quality.Resolution.BaseScore())
	if c.Quality.HDR != domain.HDRNone {
		add(strings.ToUpper(c.Quality.HDR.String()), "hdr", 30+c.Quality.HDR.Bonus())
	}
	add(c.Release.Type.Label(), "release", 20+c.Release.Type.Bonus())
	if c.Codec != domain.CodecUnknown {
		add(strings.ToUpper(c.Codec.String()), "codec", 10+c.Codec.EfficiencyBonus())
	}
	if c.Audio.Format != domain.AudioUnknown {
		add(strings.ToUpper(c.Audio.Format.String()), "audio", 8+c.Audio.Format.Bonus())
	}
	if c.Release.Edition != "" {
		add(c.Release.Edition, "edition", 12)
	}
	if c.Provider.Reliability == domain.ReliabilityExcellent {
		add("Trusted provider", "provider", 6)
	}
	if c.Health != nil && c.Health.Seeders != nil && *c.Health.Seeders >= 100 {
		add(fmt.Sprintf("%d seeders", *c.Health.Seeders), "health", 5)
	}
	if c.Release.Group != "" {
		add(c.Release.Group, "group", 3)
	}

	// Descending weight; label breaks ties so the order is deterministic.
	sort.SliceStable(badges, func(i, j int) bool {
		if badges[i].Weight != badges[j].Weight {
			return badges[i].Weight > badges[j].Weight
		}
		return badges[i].Label < badges[j].Label
	})

	if len(badges) <= limit {
		return badges
	}
	overflow := len(badges) - limit
	truncated := append([]domain.Badge(nil), badges[:limit]...)
	truncated = append(truncated, domain.Badge{
		Label:    fmt.Sprintf("+%d more", overflow),
		Category: OverflowCategory,
	})
	return truncated
}
