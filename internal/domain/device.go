package domain

// DeviceTier is a coarse bucket of host hardware capability, derived once
// from a capability probe and injected into the batch optimizer.
type DeviceTier string

const (
	DeviceTierLow  DeviceTier = "low"
	DeviceTierMid  DeviceTier = "mid"
	DeviceTierHigh DeviceTier = "high"
)

// DeviceProfile is the capability descriptor supplied by the host
// environment.
type DeviceProfile struct {
	Tier        DeviceTier `json:"tier"`
	MemoryBytes int64      `json:"memoryBytes"`
	Cores       int        `json:"cores"`
}

// BatchLimits are the per-tier processing bounds. Background processing is
// disabled entirely on the lowest tier.
type BatchLimits struct {
	MaxWorkers        int  `json:"maxWorkers"`
	ChunkSize         int  `json:"chunkSize"`
	BackgroundEnabled bool `json:"backgroundEnabled"`
}

// ClassifyDevice buckets raw capability numbers into a tier. Thresholds are
// tuned for TV-class hardware: 1 GiB / 2 cores is the floor for mid.
func ClassifyDevice(memoryBytes int64, cores int) DeviceTier {
	const gib = int64(1024 * 1024 * 1024)
	switch {
	case memoryBytes >= 3*gib && cores >= 4:
		return DeviceTierHigh
	case memoryBytes >= gib && cores >= 2:
		return DeviceTierMid
	default:
		return DeviceTierLow
	}
}

func (t DeviceTier) Limits() BatchLimits {
	switch t {
	case DeviceTierHigh:
		return BatchLimits{MaxWorkers: 8, ChunkSize: 100, BackgroundEnabled: true}
	case DeviceTierMid:
		return BatchLimits{MaxWorkers: 4, ChunkSize: 50, BackgroundEnabled: true}
	default:
		return BatchLimits{MaxWorkers: 2, ChunkSize: 20, BackgroundEnabled: false}
	}
}

func ParseDeviceTier(raw string) DeviceTier {
	switch DeviceTier(raw) {
	case DeviceTierLow:
		return DeviceTierLow
	case DeviceTierHigh:
		return DeviceTierHigh
	default:
		return DeviceTierMid
	}
}
