package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"torrentstream/selectservice/internal/domain"
	"torrentstream/selectservice/internal/engine"
	"torrentstream/selectservice/internal/healthcache"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SelectService is the engine surface the HTTP layer depends on.
type SelectService interface {
	Rank(ctx context.Context, request engine.RankRequest) (engine.Outcome, error)
	Recommend(ctx context.Context, request engine.RecommendRequest) (engine.Outcome, error)
	EvaluateHealth(ctx context.Context, c domain.SourceCandidate) (domain.HealthScore, error)
	CachedHealth(ctx context.Context, id string) (domain.HealthScore, error)
	AnalyzeSeasonPack(filename string, sizeBytes int64) domain.SeasonPackInfo
	CacheStats() healthcache.Stats
	InvalidateHealth(ctx context.Context, id string)
	BatchLimits() domain.BatchLimits
}

// maxBodyBytes bounds request bodies; candidate lists are large but finite.
const maxBodyBytes = 8 << 20

type Server struct {
	service SelectService
	logger  *slog.Logger
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(service SelectService, options ...ServerOption) *Server {
	server := &Server{
		service: service,
		logger:  slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/select/rank", s.handleRank)
	mux.HandleFunc("/select/recommend", s.handleRecommend)
	mux.HandleFunc("/select/health", s.handleSourceHealth)
	mux.HandleFunc("/select/seasonpack", s.handleSeasonPack)
	mux.HandleFunc("/select/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/select/cache", s.handleCacheInvalidate)
	mux.HandleFunc("/select/limits", s.handleLimits)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "source-select",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(100, 200, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var request engine.RankRequest
	if !decodeBody(w, r, &request) {
		return
	}

	outcome, err := s.service.Rank(r.Context(), request)
	if err != nil {
		s.writeServiceError(w, r, "rank", err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var request engine.RecommendRequest
	if !decodeBody(w, r, &request) {
		return
	}

	outcome, err := s.service.Recommend(r.Context(), request)
	if err != nil {
		s.writeServiceError(w, r, "recommend", err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// handleSourceHealth serves two shapes: GET with ?id= reads the cache only,
// POST with a candidate body computes (and caches) a fresh score.
func (s *Server) handleSourceHealth(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
			return
		}
		score, err := s.service.CachedHealth(r.Context(), id)
		if err != nil {
			if errors.Is(err, engine.ErrNoHealthData) {
				writeError(w, http.StatusNotFound, "not_found", "no cached health score for id")
				return
			}
			s.writeServiceError(w, r, "health", err)
			return
		}
		writeJSON(w, http.StatusOK, score)

	case http.MethodPost:
		var candidate domain.SourceCandidate
		if !decodeBody(w, r, &candidate) {
			return
		}
		score, err := s.service.EvaluateHealth(r.Context(), candidate)
		if err != nil {
			s.writeServiceError(w, r, "health", err)
			return
		}
		writeJSON(w, http.StatusOK, score)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSeasonPack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "filename is required")
		return
	}

	var sizeBytes int64
	if raw := strings.TrimSpace(r.URL.Query().Get("size")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid size")
			return
		}
		sizeBytes = parsed
	}

	writeJSON(w, http.StatusOK, s.service.AnalyzeSeasonPack(filename, sizeBytes))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.service.CacheStats())
}

// handleCacheInvalidate drops one cached score (?id=) or everything.
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	s.service.InvalidateHealth(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.service.BatchLimits())
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Warn("request failed",
		slog.String("op", op),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	switch {
	case errors.Is(err, engine.ErrInvalidCandidate),
		errors.Is(err, domain.ErrSizeBoundsInverted),
		errors.Is(err, domain.ErrNegativeBound),
		errors.Is(err, domain.ErrUnknownRelaxStep):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "selection failed")
	}
}

// decodeBody parses a JSON body with a size cap; on failure it writes the
// error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
