package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	apihttp "torrentstream/selectservice/internal/api/http"
	"torrentstream/selectservice/internal/app"
	"torrentstream/selectservice/internal/domain"
	"torrentstream/selectservice/internal/engine"
	"torrentstream/selectservice/internal/healthcache"
	"torrentstream/selectservice/internal/metrics"
	"torrentstream/selectservice/internal/telemetry"
)

const diskPruneInterval = 15 * time.Minute

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "source-select")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	device := buildDeviceProfile(cfg)
	logger.Info("configuration loaded",
		slog.String("service", "source-select"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("deviceTier", string(device.Tier)),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Bool("hasDiskCache", strings.TrimSpace(cfg.DiskCachePath) != ""),
		slog.Bool("cacheDisabled", cfg.CacheDisabled),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serviceOpts := []engine.ServiceOption{engine.WithBadgeLimit(cfg.BadgeLimit)}
	cache, diskStore := buildHealthCache(rootCtx, cfg, logger)
	if cache != nil {
		serviceOpts = append(serviceOpts, engine.WithHealthCache(cache))
	}
	if diskStore != nil {
		defer func() {
			if err := diskStore.Close(); err != nil {
				logger.Warn("disk cache close failed", slog.String("error", err.Error()))
			}
		}()
	}

	selectService := engine.NewService(device, logger, serviceOpts...)
	handler := apihttp.NewServer(selectService, apihttp.WithLogger(logger)).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("source select service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("deviceTier", string(device.Tier)),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("source select service stopped")
}

// buildDeviceProfile resolves the hardware tier for the batch optimizer.
// An explicit SELECT_DEVICE_TIER wins; otherwise the raw memory/core probe
// values are classified downstream.
func buildDeviceProfile(cfg app.Config) domain.DeviceProfile {
	profile := domain.DeviceProfile{
		MemoryBytes: cfg.DeviceMemoryBytes,
		Cores:       cfg.DeviceCores,
	}
	if tier := strings.TrimSpace(cfg.DeviceTier); tier != "" {
		profile.Tier = domain.ParseDeviceTier(tier)
	} else if profile.MemoryBytes > 0 || profile.Cores > 0 {
		profile.Tier = domain.ClassifyDevice(profile.MemoryBytes, profile.Cores)
	} else {
		// Server deployments without a probe get the full budget.
		profile.Tier = domain.DeviceTierHigh
	}
	return profile
}

func buildHealthCache(ctx context.Context, cfg app.Config, logger *slog.Logger) (*healthcache.Cache, *healthcache.DiskStore) {
	if cfg.CacheDisabled {
		logger.Info("health cache disabled, every evaluation recomputes")
		return nil, nil
	}

	var opts []healthcache.Option
	var diskStore *healthcache.DiskStore

	if path := strings.TrimSpace(cfg.DiskCachePath); path != "" {
		store, err := healthcache.OpenDiskStore(path)
		if err != nil {
			logger.Warn("disk cache unavailable, continuing without it",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		} else {
			diskStore = store
			opts = append(opts, healthcache.WithDiskStore(store))
			if pruned, err := store.Prune(ctx, time.Now()); err != nil {
				logger.Warn("disk cache prune failed", slog.String("error", err.Error()))
			} else if pruned > 0 {
				logger.Info("disk cache pruned", slog.Int("entries", pruned))
			}
			go pruneDiskCache(ctx, store, logger)
		}
	}

	if redisURL := strings.TrimSpace(cfg.RedisURL); redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("invalid redis url, persistent tier disabled", slog.String("error", err.Error()))
		} else {
			client := redis.NewClient(redisOpts)
			store := healthcache.NewRedisStore(client)
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := store.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warn("redis not reachable, persistent tier disabled", slog.String("error", err.Error()))
			} else {
				logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
				opts = append(opts, healthcache.WithPersistentStore(store))
			}
		}
	}

	cache, err := healthcache.New(healthcache.Config{
		TTL:           cfg.CacheTTL,
		MemoryEntries: cfg.CacheEntries,
	}, logger, opts...)
	if err != nil {
		logger.Warn("health cache init failed, continuing without cache", slog.String("error", err.Error()))
		return nil, diskStore
	}
	return cache, diskStore
}

func pruneDiskCache(ctx context.Context, store *healthcache.DiskStore, logger *slog.Logger) {
	ticker := time.NewTicker(diskPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := store.Prune(ctx, time.Now())
			if err != nil {
				logger.Warn("disk cache prune failed", slog.String("error", err.Error()))
				continue
			}
			if pruned > 0 {
				logger.Debug("disk cache pruned", slog.Int("entries", pruned))
			}
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
