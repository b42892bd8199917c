package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSizeBoundsInverted = errors.New("minSizeBytes must not exceed maxSizeBytes")
	ErrNegativeBound      = errors.New("filter bounds must be >= 0")
	ErrUnknownRelaxStep   = errors.New("unknown conflict-resolution step")
)

// RelaxStep names one constraint the conflict-resolution pass may drop or
// loosen when the strict filter eliminates every candidate.
type RelaxStep string

const (
	RelaxMinSeeders    RelaxStep = "drop_min_seeders"
	RelaxMinResolution RelaxStep = "relax_min_resolution"
	RelaxHDR           RelaxStep = "drop_hdr_requirement"
	RelaxCodecs        RelaxStep = "drop_codec_allowlist"
	RelaxAudio         RelaxStep = "drop_audio_allowlist"
	RelaxRelease       RelaxStep = "drop_release_allowlist"
	RelaxSizeBounds    RelaxStep = "drop_size_bounds"
	RelaxProviders     RelaxStep = "drop_provider_allowlist"
)

// DefaultRelaxOrder is the relaxation order used when a spec enables
// conflict resolution without declaring its own order: cheapest concessions
// first (seeders), picture-quality concessions last.
func DefaultRelaxOrder() []RelaxStep {
	return []RelaxStep{
		RelaxMinSeeders,
		RelaxSizeBounds,
		RelaxRelease,
		RelaxAudio,
		RelaxCodecs,
		RelaxHDR,
		RelaxMinResolution,
		RelaxProviders,
	}
}

type ConflictResolution struct {
	Enabled bool        `json:"enabled"`
	Order   []RelaxStep `json:"order,omitempty"`
}

// FilterSpec is a declarative, serializable multi-criteria filter. It is
// plain data rather than callbacks so specs can be compared in tests and
// cloned for conflict-resolution's working copy. Zero values mean "no
// constraint"; SourceTypes is OR-combined internally, everything else ANDs.
type FilterSpec struct {
	Enabled            bool               `json:"enabled"`
	MinResolution      Resolution         `json:"minResolution,omitempty"`
	RequireHDR         bool               `json:"requireHdr,omitempty"`
	SourceTypes        []ProviderType     `json:"sourceTypes,omitempty"`
	MinSeeders         int                `json:"minSeeders,omitempty"`
	MinSizeBytes       int64              `json:"minSizeBytes,omitempty"`
	MaxSizeBytes       int64              `json:"maxSizeBytes,omitempty"`
	Codecs             []VideoCodec       `json:"codecs,omitempty"`
	AudioFormats       []AudioFormat      `json:"audioFormats,omitempty"`
	ReleaseTypes       []ReleaseType      `json:"releaseTypes,omitempty"`
	Providers          []string           `json:"providers,omitempty"`
	ConflictResolution ConflictResolution `json:"conflictResolution"`
}

// Validate rejects malformed specs up front, before any candidate is
// processed.
func (s FilterSpec) Validate() error {
	if s.MinSeeders < 0 || s.MinSizeBytes < 0 || s.MaxSizeBytes < 0 {
		return ErrNegativeBound
	}
	if s.MinSizeBytes > 0 && s.MaxSizeBytes > 0 && s.MinSizeBytes > s.MaxSizeBytes {
		return fmt.Errorf("%w: min=%d max=%d", ErrSizeBoundsInverted, s.MinSizeBytes, s.MaxSizeBytes)
	}
	known := map[RelaxStep]struct{}{
		RelaxMinSeeders: {}, RelaxMinResolution: {}, RelaxHDR: {}, RelaxCodecs: {},
		RelaxAudio: {}, RelaxRelease: {}, RelaxSizeBounds: {}, RelaxProviders: {},
	}
	for _, step := range s.ConflictResolution.Order {
		if _, ok := known[step]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRelaxStep, step)
		}
	}
	return nil
}

// Clone returns a deep copy. Conflict resolution relaxes the copy, never the
// caller's spec.
func (s FilterSpec) Clone() FilterSpec {
	cloned := s
	cloned.SourceTypes = append([]ProviderType(nil), s.SourceTypes...)
	cloned.Codecs = append([]VideoCodec(nil), s.Codecs...)
	cloned.AudioFormats = append([]AudioFormat(nil), s.AudioFormats...)
	cloned.ReleaseTypes = append([]ReleaseType(nil), s.ReleaseTypes...)
	cloned.Providers = append([]string(nil), s.Providers...)
	cloned.ConflictResolution.Order = append([]RelaxStep(nil), s.ConflictResolution.Order...)
	return cloned
}
