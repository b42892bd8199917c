package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr       string
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string

	RedisURL      string
	DiskCachePath string
	CacheTTL      time.Duration
	CacheEntries  int
	CacheDisabled bool

	DeviceTier        string
	DeviceMemoryBytes int64
	DeviceCores       int

	BadgeLimit int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8092"),
		RequestTimeout: time.Duration(getEnvInt("SELECT_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),

		RedisURL:      getEnv("REDIS_URL", ""),
		DiskCachePath: getEnv("SELECT_DISK_CACHE_PATH", ""),
		CacheTTL:      time.Duration(getEnvInt("SELECT_HEALTH_CACHE_TTL_MINUTES", 30)) * time.Minute,
		CacheEntries:  getEnvInt("SELECT_HEALTH_CACHE_ENTRIES", 2048),
		CacheDisabled: getEnvBool("SELECT_HEALTH_CACHE_DISABLED", false),

		// Device capability comes from env on server deployments; TV
		// hosts pass their probe results instead.
		DeviceTier:        strings.ToLower(getEnv("SELECT_DEVICE_TIER", "")),
		DeviceMemoryBytes: getEnvInt64("SELECT_DEVICE_MEMORY_BYTES", 0),
		DeviceCores:       getEnvInt("SELECT_DEVICE_CORES", 0),

		BadgeLimit: getEnvInt("SELECT_BADGE_LIMIT", 8),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
