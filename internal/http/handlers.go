package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/climate-api/internal/degraded"
	"github.com/kjstillabower/climate-api/internal/lifecycle"
	"github.com/kjstillabower/climate-api/internal/models"
	"github.com/kjstillabower/climate-api/internal/observability"
	"github.com/kjstillabower/climate-api/internal/service"
	"github.com/kjstillabower/climate-api/internal/store"
	"github.com/kjstillabower/climate-api/internal/traffic"
)

const (
	serviceName = "climate-api"

	// routeIndex lists the data routes in the order the welcome page shows them.
	routeIndex = "Available Routes:<br/>" +
		"/api/v1.0/precipitation<br/>" +
		"/api/v1.0/stations<br/>" +
		"/api/v1.0/tobs<br/>" +
		"/api/v1.0/temp_stats_start/yyyy-mm-dd<br/>" +
		"/api/v1.0/temp_stats_start_end/yyyy-mm-dd/yyyy-mm-dd<br/>"
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow         time.Duration
	DegradedErrorPct       int
	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration
	StartTime              time.Time
}

// StorePinger reports whether the store answers queries. *store.Store implements it.
type StorePinger interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	climate          *service.ClimateService
	store            StorePinger
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil, in which case health
// reports only lifecycle and store reachability.
func NewHandler(climate *service.ClimateService, pinger StorePinger, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		climate:      climate,
		store:        pinger,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// Welcome handles GET /.
func (h *Handler) Welcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(routeIndex))
}

// GetPrecipitation handles GET /api/v1.0/precipitation. The readings are wrapped in a
// one-element outer array; clients depend on that shape.
func (h *Handler) GetPrecipitation(w http.ResponseWriter, r *http.Request) {
	readings, err := h.climate.Precipitation(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	degraded.RecordSuccess()
	writeJSON(w, http.StatusOK, [][]models.PrecipitationReading{readings})
}

// GetStations handles GET /api/v1.0/stations.
func (h *Handler) GetStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.climate.Stations(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	degraded.RecordSuccess()
	writeJSON(w, http.StatusOK, stations)
}

// GetTemperatureObservations handles GET /api/v1.0/tobs.
func (h *Handler) GetTemperatureObservations(w http.ResponseWriter, r *http.Request) {
	observations, err := h.climate.TemperatureObservations(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	degraded.RecordSuccess()
	writeJSON(w, http.StatusOK, observations)
}

// GetTemperatureStatsFrom handles GET /api/v1.0/temp_stats_start/{start_date}/.
// start_date is not validated; the store compares it as a string.
func (h *Handler) GetTemperatureStatsFrom(w http.ResponseWriter, r *http.Request) {
	stats, err := h.climate.TemperatureStatsFrom(r.Context(), mux.Vars(r)["start_date"])
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	degraded.RecordSuccess()
	writeJSON(w, http.StatusOK, []models.TemperatureStats{stats})
}

// GetTemperatureStatsBetween handles GET /api/v1.0/temp_stats_start_end/{start_date}/{end_date}.
func (h *Handler) GetTemperatureStatsBetween(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	stats, err := h.climate.TemperatureStatsBetween(r.Context(), vars["start_date"], vars["end_date"])
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	degraded.RecordSuccess()
	writeJSON(w, http.StatusOK, []models.TemperatureStats{stats})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	storeOK    bool
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"store": "healthy"}
	if !result.storeOK {
		checks["store"] = "unhealthy"
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   serviceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// starting > shutting-down > store unreachable > idle > error rate > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if !lifecycle.IsReady() {
		return healthResult{"starting", http.StatusServiceUnavailable, "startup", false}
	}
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", true}
	}
	if h.store != nil {
		if err := h.store.HealthCheck(ctx); err != nil {
			h.logger.Debug("store health check failed", zap.Error(err))
			return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable", false}
		}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, "", true}
	}
	cfg := h.healthConfig
	if cfg.IdleWindow > 0 && cfg.MinimumLifespan > 0 && time.Since(cfg.StartTime) >= cfg.MinimumLifespan {
		threshold := float64(cfg.IdleThresholdReqPerMin) * cfg.IdleWindow.Minutes()
		if float64(traffic.RequestCount(cfg.IdleWindow)) < threshold {
			return healthResult{"idle", http.StatusOK, "low_traffic", true}
		}
	}
	if degraded.Breached(cfg.DegradedWindow, cfg.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach", true}
	}
	return healthResult{"healthy", http.StatusOK, "", true}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}

// writeStoreError records the failure for degraded detection and answers 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	degraded.RecordError()
	observability.LoggerFromContext(r.Context()).Error("store query failed",
		zap.String("path", r.URL.Path),
		zap.String("category", string(store.CategorizeError(err))),
		zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "STORE_QUERY_FAILED", "Unable to read climate data")
}
