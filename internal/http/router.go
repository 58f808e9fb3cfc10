package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/climate-api/internal/observability"
)

// NewRouter registers every route on a gorilla/mux router with the standard middleware chain.
// StrictSlash redirects the slashless form of temp_stats_start (and a trailing slash on the
// other routes) to the registered path.
func NewRouter(h *Handler, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter().StrictSlash(true)
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/", h.Welcome).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.PathPrefix("/api/v1.0").Subrouter()
	api.HandleFunc("/precipitation", h.GetPrecipitation).Methods(http.MethodGet)
	api.HandleFunc("/stations", h.GetStations).Methods(http.MethodGet)
	api.HandleFunc("/tobs", h.GetTemperatureObservations).Methods(http.MethodGet)
	api.HandleFunc("/temp_stats_start/{start_date}/", h.GetTemperatureStatsFrom).Methods(http.MethodGet)
	api.HandleFunc("/temp_stats_start_end/{start_date}/{end_date}", h.GetTemperatureStatsBetween).Methods(http.MethodGet)
	return router
}
