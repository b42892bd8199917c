package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingIdentity = errors.New("candidate has no provider id or content identity")
	ErrNegativeSize    = errors.New("candidate size must be >= 0")
	ErrBadAvailability = errors.New("availability fraction must be within [0,1]")
	ErrNegativeSwarm   = errors.New("seeders and leechers must be >= 0")
)

// Resolution is the video resolution ladder, ordered lowest to highest.
type Resolution int

const (
	ResolutionUnknown Resolution = iota
	ResolutionSD
	Resolution720p
	Resolution1080p
	Resolution1440p
	Resolution2160p
)

// BaseScore returns the resolution component of the quality score.
// Values are strictly increasing along the ladder.
func (r Resolution) BaseScore() int {
	switch r {
	case ResolutionSD:
		return 10
	case Resolution720p:
		return 25
	case Resolution1080p:
		return 40
	case Resolution1440p:
		return 48
	case Resolution2160p:
		return 60
	default:
		return 0
	}
}

func (r Resolution) String() string {
	switch r {
	case ResolutionSD:
		return "sd"
	case Resolution720p:
		return "720p"
	case Resolution1080p:
		return "1080p"
	case Resolution1440p:
		return "1440p"
	case Resolution2160p:
		return "2160p"
	default:
		return "unknown"
	}
}

// Label returns the UI-facing badge form ("4K" instead of "2160p").
func (r Resolution) Label() string {
	if r == Resolution2160p {
		return "4K"
	}
	return strings.ToUpper(r.String())
}

func ParseResolution(raw string) Resolution {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sd", "480p", "576p":
		return ResolutionSD
	case "720p", "hd":
		return Resolution720p
	case "1080p", "fhd", "fullhd":
		return Resolution1080p
	case "1440p", "2k", "qhd":
		return Resolution1440p
	case "2160p", "4k", "uhd":
		return Resolution2160p
	default:
		return ResolutionUnknown
	}
}

func (r Resolution) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Resolution) UnmarshalText(data []byte) error {
	*r = ParseResolution(string(data))
	return nil
}

// HDRVariant covers the dynamic-range tag of a release.
type HDRVariant int

const (
	HDRNone HDRVariant = iota
	HDR10
	HDR10Plus
	HDRDolbyVision
)

func (h HDRVariant) Bonus() int {
	switch h {
	case HDR10:
		return 6
	case HDR10Plus:
		return 8
	case HDRDolbyVision:
		return 10
	default:
		return 0
	}
}

func (h HDRVariant) String() string {
	switch h {
	case HDR10:
		return "hdr10"
	case HDR10Plus:
		return "hdr10plus"
	case HDRDolbyVision:
		return "dolbyvision"
	default:
		return "none"
	}
}

func ParseHDRVariant(raw string) HDRVariant {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "hdr10":
		return HDR10
	case "hdr10plus", "hdr10+":
		return HDR10Plus
	case "dolbyvision", "dv", "dolby vision":
		return HDRDolbyVision
	default:
		return HDRNone
	}
}

func (h HDRVariant) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *HDRVariant) UnmarshalText(data []byte) error {
	*h = ParseHDRVariant(string(data))
	return nil
}

// VideoCodec carries a fixed compression-efficiency bonus: more efficient
// codecs deliver the same picture in fewer bits and score higher.
type VideoCodec int

const (
	CodecUnknown VideoCodec = iota
	CodecMPEG4
	CodecH264
	CodecHEVC
	CodecAV1
)

func (c VideoCodec) EfficiencyBonus() int {
	switch c {
	case CodecMPEG4:
		return 2
	case CodecH264:
		return 5
	case CodecHEVC:
		return 10
	case CodecAV1:
		return 12
	default:
		return 0
	}
}

func (c VideoCodec) String() string {
	switch c {
	case CodecMPEG4:
		return "mpeg4"
	case CodecH264:
		return "h264"
	case CodecHEVC:
		return "hevc"
	case CodecAV1:
		return "av1"
	default:
		return "unknown"
	}
}

func ParseVideoCodec(raw string) VideoCodec {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mpeg4", "xvid", "divx":
		return CodecMPEG4
	case "h264", "x264", "avc", "h.264":
		return CodecH264
	case "hevc", "x265", "h265", "h.265":
		return CodecHEVC
	case "av1":
		return CodecAV1
	default:
		return CodecUnknown
	}
}

func (c VideoCodec) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *VideoCodec) UnmarshalText(data []byte) error {
	*c = ParseVideoCodec(string(data))
	return nil
}

// AudioFormat is the audio tier ladder, stereo at the bottom and the
// object-based formats (Atmos, DTS:X) at the top.
type AudioFormat int

const (
	AudioUnknown AudioFormat = iota
	AudioStereo
	AudioAC3
	AudioEAC3
	AudioDTS
	AudioTrueHD
	AudioAtmos
	AudioDTSX
)

func (a AudioFormat) Bonus() int {
	switch a {
	case AudioStereo:
		return 2
	case AudioAC3:
		return 4
	case AudioEAC3:
		return 5
	case AudioDTS:
		return 6
	case AudioTrueHD:
		return 8
	case AudioAtmos, AudioDTSX:
		return 10
	default:
		return 0
	}
}

func (a AudioFormat) String() string {
	switch a {
	case AudioStereo:
		return "stereo"
	case AudioAC3:
		return "ac3"
	case AudioEAC3:
		return "eac3"
	case AudioDTS:
		return "dts"
	case AudioTrueHD:
		return "truehd"
	case AudioAtmos:
		return "atmos"
	case AudioDTSX:
		return "dtsx"
	default:
		return "unknown"
	}
}

func ParseAudioFormat(raw string) AudioFormat {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "stereo", "2.0", "aac":
		return AudioStereo
	case "ac3", "dd5.1", "dolby digital":
		return AudioAC3
	case "eac3", "dd+", "ddp5.1":
		return AudioEAC3
	case "dts":
		return AudioDTS
	case "truehd":
		return AudioTrueHD
	case "atmos":
		return AudioAtmos
	case "dtsx", "dts:x", "dts-x":
		return AudioDTSX
	default:
		return AudioUnknown
	}
}

func (a AudioFormat) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AudioFormat) UnmarshalText(data []byte) error {
	*a = ParseAudioFormat(string(data))
	return nil
}

// ReleaseType is the provenance ladder of a release, CAM at the bottom and
// untouched BluRay remuxes at the top.
type ReleaseType int

const (
	ReleaseUnknown ReleaseType = iota
	ReleaseCAM
	ReleaseTS
	ReleaseHDTV
	ReleaseDVDRip
	ReleaseWEBRip
	ReleaseWEBDL
	ReleaseBluRay
	ReleaseRemux
)

func (t ReleaseType) Bonus() int {
	switch t {
	case ReleaseCAM:
		return 1
	case ReleaseTS:
		return 2
	case ReleaseHDTV:
		return 6
	case ReleaseDVDRip:
		return 8
	case ReleaseWEBRip:
		return 10
	case ReleaseWEBDL:
		return 14
	case ReleaseBluRay:
		return 18
	case ReleaseRemux:
		return 25
	default:
		return 0
	}
}

func (t ReleaseType) String() string {
	switch t {
	case ReleaseCAM:
		return "cam"
	case ReleaseTS:
		return "telesync"
	case ReleaseHDTV:
		return "hdtv"
	case ReleaseDVDRip:
		return "dvdrip"
	case ReleaseWEBRip:
		return "webrip"
	case ReleaseWEBDL:
		return "webdl"
	case ReleaseBluRay:
		return "bluray"
	case ReleaseRemux:
		return "remux"
	default:
		return "unknown"
	}
}

// Label returns the conventional scene spelling for badges.
func (t ReleaseType) Label() string {
	switch t {
	case ReleaseCAM:
		return "CAM"
	case ReleaseTS:
		return "TS"
	case ReleaseHDTV:
		return "HDTV"
	case ReleaseDVDRip:
		return "DVDRip"
	case ReleaseWEBRip:
		return "WEBRip"
	case ReleaseWEBDL:
		return "WEB-DL"
	case ReleaseBluRay:
		return "BluRay"
	case ReleaseRemux:
		return "REMUX"
	default:
		return "Unknown"
	}
}

func ParseReleaseType(raw string) ReleaseType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cam", "camrip":
		return ReleaseCAM
	case "ts", "telesync":
		return ReleaseTS
	case "hdtv":
		return ReleaseHDTV
	case "dvdrip":
		return ReleaseDVDRip
	case "webrip":
		return ReleaseWEBRip
	case "webdl", "web-dl":
		return ReleaseWEBDL
	case "bluray", "blu-ray", "bdrip":
		return ReleaseBluRay
	case "remux":
		return ReleaseRemux
	default:
		return ReleaseUnknown
	}
}

func (t ReleaseType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ReleaseType) UnmarshalText(data []byte) error {
	*t = ParseReleaseType(string(data))
	return nil
}

// ProviderType is the closed set of source origins.
type ProviderType string

const (
	ProviderTorrent      ProviderType = "torrent"
	ProviderDirectStream ProviderType = "direct"
	ProviderDebrid       ProviderType = "debrid"
)

// ReliabilityTier buckets how trustworthy a provider's manifests are.
type ReliabilityTier int

const (
	ReliabilityPoor ReliabilityTier = iota
	ReliabilityFair
	ReliabilityGood
	ReliabilityExcellent
)

// HealthOffset is the additive adjustment a provider tier applies to the
// P2P health sub-score.
func (r ReliabilityTier) HealthOffset() int {
	switch r {
	case ReliabilityPoor:
		return -10
	case ReliabilityGood:
		return 5
	case ReliabilityExcellent:
		return 10
	default:
		return 0
	}
}

func (r ReliabilityTier) String() string {
	switch r {
	case ReliabilityPoor:
		return "poor"
	case ReliabilityFair:
		return "fair"
	case ReliabilityGood:
		return "good"
	case ReliabilityExcellent:
		return "excellent"
	default:
		return "fair"
	}
}

func ParseReliabilityTier(raw string) ReliabilityTier {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "poor":
		return ReliabilityPoor
	case "good":
		return ReliabilityGood
	case "excellent":
		return ReliabilityExcellent
	default:
		return ReliabilityFair
	}
}

func (r ReliabilityTier) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *ReliabilityTier) UnmarshalText(data []byte) error {
	*r = ParseReliabilityTier(string(data))
	return nil
}

type FileInfo struct {
	Name      string     `json:"name"`
	Extension string     `json:"extension,omitempty"`
	SizeBytes int64      `json:"sizeBytes"`
	AddedAt   *time.Time `json:"addedAt,omitempty"`
}

type QualityInfo struct {
	Resolution  Resolution `json:"resolution"`
	BitrateKbps int        `json:"bitrateKbps,omitempty"`
	HDR         HDRVariant `json:"hdr,omitempty"`
}

type AudioInfo struct {
	Format      AudioFormat `json:"format"`
	Channels    int         `json:"channels,omitempty"`
	BitrateKbps int         `json:"bitrateKbps,omitempty"`
}

type ReleaseInfo struct {
	Type    ReleaseType `json:"type"`
	Group   string      `json:"group,omitempty"`
	Edition string      `json:"edition,omitempty"`
}

type Provider struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Type        ProviderType    `json:"type"`
	Reliability ReliabilityTier `json:"reliability"`
}

// HealthSignals are the raw swarm/provider observations attached to a
// candidate by the scraper layer. All fields are optional; nil means the
// signal was never observed, which is distinct from an observed zero.
type HealthSignals struct {
	Seeders      *int       `json:"seeders,omitempty"`
	Leechers     *int       `json:"leechers,omitempty"`
	Availability *float64   `json:"availability,omitempty"`
	LastChecked  *time.Time `json:"lastChecked,omitempty"`
}

type AvailabilityInfo struct {
	Cached    bool       `json:"cached"`
	Service   string     `json:"service,omitempty"`
	Region    string     `json:"region,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// SourceCandidate is one discovered playable item competing for selection.
// Identity is provider id + content hash (or URL when no hash exists); the
// engine does not deduplicate — callers own that boundary.
type SourceCandidate struct {
	InfoHash     string            `json:"infoHash,omitempty"`
	URL          string            `json:"url,omitempty"`
	File         FileInfo          `json:"file"`
	Quality      QualityInfo       `json:"quality"`
	Codec        VideoCodec        `json:"codec,omitempty"`
	Audio        AudioInfo         `json:"audio"`
	Release      ReleaseInfo       `json:"release"`
	Provider     Provider          `json:"provider"`
	Health       *HealthSignals    `json:"health,omitempty"`
	Availability *AvailabilityInfo `json:"availability,omitempty"`
}

// ID returns the cache/sort identity of the candidate.
func (c SourceCandidate) ID() string {
	identity := NormalizeInfoHash(c.InfoHash)
	if identity == "" {
		identity = strings.ToLower(strings.TrimSpace(c.URL))
	}
	return strings.ToLower(strings.TrimSpace(c.Provider.ID)) + ":" + identity
}

// InstantlyPlayable reports whether the candidate can start playback with no
// download wait: debrid-cached files and direct streams. A debrid candidate
// flagged cached is always treated as instant regardless of P2P fields.
func (c SourceCandidate) InstantlyPlayable() bool {
	if c.Provider.Type == ProviderDirectStream {
		return true
	}
	return c.Provider.Type == ProviderDebrid && c.Availability != nil && c.Availability.Cached
}

// Validate enforces the candidate invariants. Violations here are genuine
// precondition failures and are surfaced to the caller, unlike parse-level
// noise which degrades to conservative defaults.
func (c SourceCandidate) Validate() error {
	if NormalizeInfoHash(c.InfoHash) == "" && strings.TrimSpace(c.URL) == "" {
		return ErrMissingIdentity
	}
	if strings.TrimSpace(c.Provider.ID) == "" {
		return fmt.Errorf("%w: empty provider id", ErrMissingIdentity)
	}
	if c.File.SizeBytes < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeSize, c.File.SizeBytes)
	}
	if c.Health != nil {
		if c.Health.Availability != nil && (*c.Health.Availability < 0 || *c.Health.Availability > 1) {
			return fmt.Errorf("%w: got %v", ErrBadAvailability, *c.Health.Availability)
		}
		if (c.Health.Seeders != nil && *c.Health.Seeders < 0) || (c.Health.Leechers != nil && *c.Health.Leechers < 0) {
			return ErrNegativeSwarm
		}
	}
	return nil
}

// NormalizeInfoHash lowercases a bare or urn-prefixed infohash.
func NormalizeInfoHash(raw string) string {
	value := strings.TrimSpace(strings.ToLower(raw))
	return strings.TrimPrefix(value, "urn:btih:")
}
