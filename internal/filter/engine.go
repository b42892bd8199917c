// Package filter applies declarative FilterSpec constraints to candidate
// sets and, when the strict result is empty, progressively relaxes the spec
// until something survives.
package filter

import (
	"fmt"
	"log/slog"

	"torrentstream/selectservice/internal/domain"
	"torrentstream/selectservice/internal/metrics"
)

// Engine evaluates filter specs. Stateless; safe for concurrent use.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Apply filters candidates against the spec. A disabled spec passes
// everything through untouched. When the strict pass eliminates every
// candidate and conflict resolution is enabled, constraints are dropped one
// at a time, in the spec's declared order, against a working copy; the
// caller's spec is never modified. Each concession is reported in
// ConflictsResolved.
func (e *Engine) Apply(spec domain.FilterSpec, candidates []domain.SourceCandidate) (domain.FilterResult, error) {
	if err := spec.Validate(); err != nil {
		return domain.FilterResult{}, err
	}

	if !spec.Enabled {
		return domain.FilterResult{Candidates: candidates}, nil
	}

	surviving := e.applyOnce(spec, candidates)
	result := domain.FilterResult{
		Candidates:     surviving,
		AppliedFilters: describeConstraints(spec),
	}
	if len(surviving) > 0 || len(candidates) == 0 {
		return result, nil
	}

	if !spec.ConflictResolution.Enabled {
		// Empty is a legitimate answer when the caller asked for strictness.
		return result, nil
	}

	working := spec.Clone()
	order := working.ConflictResolution.Order
	if len(order) == 0 {
		order = domain.DefaultRelaxOrder()
	}

	for _, step := range order {
		// A step may apply more than once: the resolution floor steps down
		// one tier at a time so the concession stays minimal.
		applied := false
		for relax(&working, step) {
			if !applied {
				applied = true
				result.ConflictsResolved = append(result.ConflictsResolved, string(step))
				metrics.FilterRelaxationsTotal.WithLabelValues(string(step)).Inc()
			}

			surviving = e.applyOnce(working, candidates)
			if len(surviving) > 0 {
				e.logger.Debug("filter conflict resolved",
					"steps", result.ConflictsResolved,
					"survivors", len(surviving),
				)
				result.Candidates = surviving
				result.AppliedFilters = describeConstraints(working)
				return result, nil
			}
		}
	}

	// Every concession exhausted and still nothing.
	result.Candidates = surviving
	result.AppliedFilters = describeConstraints(working)
	return result, nil
}

func (e *Engine) applyOnce(spec domain.FilterSpec, candidates []domain.SourceCandidate) []domain.SourceCandidate {
	surviving := make([]domain.SourceCandidate, 0, len(candidates))
	for _, c := range candidates {
		if matches(spec, c) {
			surviving = append(surviving, c)
		}
	}
	return surviving
}

// matches ANDs every active constraint; SourceTypes is an OR-group
// internally.
func matches(spec domain.FilterSpec, c domain.SourceCandidate) bool {
	if spec.MinResolution != domain.ResolutionUnknown && c.Quality.Resolution < spec.MinResolution {
		return false
	}
	if spec.RequireHDR && c.Quality.HDR == domain.HDRNone {
		return false
	}
	if len(spec.SourceTypes) > 0 {
		found := false
		for _, st := range spec.SourceTypes {
			if c.Provider.Type == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if spec.MinSeeders > 0 {
		// Seeder floors only make sense for swarm-delivered content;
		// instant sources have no swarm to judge.
		if !c.InstantlyPlayable() {
			if c.Health == nil || c.Health.Seeders == nil || *c.Health.Seeders < spec.MinSeeders {
				return false
			}
		}
	}
	if spec.MinSizeBytes > 0 && c.File.SizeBytes < spec.MinSizeBytes {
		return false
	}
	if spec.MaxSizeBytes > 0 && c.File.SizeBytes > spec.MaxSizeBytes {
		return false
	}
	if len(spec.Codecs) > 0 && !containsCodec(spec.Codecs, c.Codec) {
		return false
	}
	if len(spec.AudioFormats) > 0 && !containsAudio(spec.AudioFormats, c.Audio.Format) {
		return false
	}
	if len(spec.ReleaseTypes) > 0 && !containsRelease(spec.ReleaseTypes, c.Release.Type) {
		return false
	}
	if len(spec.Providers) > 0 && !containsString(spec.Providers, c.Provider.ID) {
		return false
	}
	return true
}

// relax weakens one constraint in place. Returns false when the constraint
// was already inactive, so no-op steps are not reported as concessions.
func relax(spec *domain.FilterSpec, step domain.RelaxStep) bool {
	switch step {
	case domain.RelaxMinSeeders:
		if spec.MinSeeders == 0 {
			return false
		}
		spec.MinSeeders = 0
	case domain.RelaxMinResolution:
		if spec.MinResolution == domain.ResolutionUnknown {
			return false
		}
		spec.MinResolution = spec.MinResolution - 1
	case domain.RelaxHDR:
		if !spec.RequireHDR {
			return false
		}
		spec.RequireHDR = false
	case domain.RelaxCodecs:
		if len(spec.Codecs) == 0 {
			return false
		}
		spec.Codecs = nil
	case domain.RelaxAudio:
		if len(spec.AudioFormats) == 0 {
			return false
		}
		spec.AudioFormats = nil
	case domain.RelaxRelease:
		if len(spec.ReleaseTypes) == 0 {
			return false
		}
		spec.ReleaseTypes = nil
	case domain.RelaxSizeBounds:
		if spec.MinSizeBytes == 0 && spec.MaxSizeBytes == 0 {
			return false
		}
		spec.MinSizeBytes = 0
		spec.MaxSizeBytes = 0
	case domain.RelaxProviders:
		if len(spec.Providers) == 0 {
			return false
		}
		spec.Providers = nil
	default:
		return false
	}
	return true
}

// describeConstraints lists the active constraints for the response payload.
func describeConstraints(spec domain.FilterSpec) []string {
	var described []string
	if spec.MinResolution != domain.ResolutionUnknown {
		described = append(described, "minResolution="+spec.MinResolution.String())
	}
	if spec.RequireHDR {
		described = append(described, "requireHdr")
	}
	if len(spec.SourceTypes) > 0 {
		described = append(described, fmt.Sprintf("sourceTypes=%v", spec.SourceTypes))
	}
	if spec.MinSeeders > 0 {
		described = append(described, fmt.Sprintf("minSeeders=%d", spec.MinSeeders))
	}
	if spec.MinSizeBytes > 0 {
		described = append(described, fmt.Sprintf("minSizeBytes=%d", spec.MinSizeBytes))
	}
	if spec.MaxSizeBytes > 0 {
		described = append(described, fmt.Sprintf("maxSizeBytes=%d", spec.MaxSizeBytes))
	}
	if len(spec.Codecs) > 0 {
		described = append(described, fmt.Sprintf("codecs=%v", spec.Codecs))
	}
	if len(spec.AudioFormats) > 0 {
		described = append(described, fmt.Sprintf("audioFormats=%v", spec.AudioFormats))
	}
	if len(spec.ReleaseTypes) > 0 {
		described = append(described, fmt.Sprintf("releaseTypes=%v", spec.ReleaseTypes))
	}
	if len(spec.Providers) > 0 {
		described = append(described, fmt.Sprintf("providers=%v", spec.Providers))
	}
	return described
}

func containsCodec(list []domain.VideoCodec, v domain.VideoCodec) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsAudio(list []domain.AudioFormat, v domain.AudioFormat) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsRelease(list []domain.ReleaseType, v domain.ReleaseType) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
