// Package service answers each climate API route with one store query.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-api/internal/models"
	"github.com/kjstillabower/climate-api/internal/observability"
	"github.com/kjstillabower/climate-api/internal/store"
)

// Fixed query parameters of the snapshot routes. They correspond to the last
// twelve months of the hawaii.sqlite snapshot and its most active station.
const (
	PrecipitationStartDate = "2016-08-23"
	ObservationStartDate   = "2016-08-18"
	ObservationStationID   = "USC00519281"
)

// SessionSource hands out per-request store sessions. *store.Store implements it.
type SessionSource interface {
	Session(ctx context.Context) (*store.Session, error)
}

// ClimateService runs the route queries. Each method holds one session for its
// duration and releases it before returning.
type ClimateService struct {
	sessions SessionSource
}

// NewClimateService returns a ClimateService reading through sessions.
func NewClimateService(sessions SessionSource) *ClimateService {
	return &ClimateService{sessions: sessions}
}

// withSession acquires a session, runs fn and releases the session on every path.
func (s *ClimateService) withSession(ctx context.Context, op string, fn func(*store.Session) error) error {
	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	sess, err := s.sessions.Session(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("release session", zap.String("op", op), zap.Error(cerr))
		}
	}()

	if err := fn(sess); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Debug("query served", zap.String("op", op), zap.Duration("duration", time.Since(start)))
	return nil
}

// Precipitation returns (date, prcp) for every measurement on or after PrecipitationStartDate.
func (s *ClimateService) Precipitation(ctx context.Context) ([]models.PrecipitationReading, error) {
	var out []models.PrecipitationReading
	err := s.withSession(ctx, "precipitation", func(sess *store.Session) error {
		var err error
		out, err = sess.Precipitation(ctx, store.MeasurementFilter{From: PrecipitationStartDate})
		return err
	})
	return out, err
}

// Stations returns the id and name of every station.
func (s *ClimateService) Stations(ctx context.Context) ([]models.StationSummary, error) {
	var out []models.StationSummary
	err := s.withSession(ctx, "stations", func(sess *store.Session) error {
		var err error
		out, err = sess.Stations(ctx)
		return err
	})
	return out, err
}

// TemperatureObservations returns the date-ordered observations of ObservationStationID
// on or after ObservationStartDate.
func (s *ClimateService) TemperatureObservations(ctx context.Context) ([]models.TemperatureObservation, error) {
	var out []models.TemperatureObservation
	err := s.withSession(ctx, "tobs", func(sess *store.Session) error {
		var err error
		out, err = sess.TemperatureObservations(ctx, store.MeasurementFilter{
			Station: ObservationStationID,
			From:    ObservationStartDate,
		})
		return err
	})
	return out, err
}

// TemperatureStatsFrom aggregates tobs over measurements dated on or after start.
func (s *ClimateService) TemperatureStatsFrom(ctx context.Context, start string) (models.TemperatureStats, error) {
	agg, err := s.temperatureStats(ctx, store.MeasurementFilter{From: start})
	if err != nil {
		return models.TemperatureStats{}, err
	}
	return models.TemperatureStats{
		StartDate:          start,
		MinimumTemperature: agg.Min,
		AverageTemperature: agg.Avg,
		MaximumTemperature: agg.Max,
	}, nil
}

// TemperatureStatsBetween aggregates tobs over measurements dated within [start, end].
// An inverted range matches nothing and yields nil statistics.
func (s *ClimateService) TemperatureStatsBetween(ctx context.Context, start, end string) (models.TemperatureStats, error) {
	agg, err := s.temperatureStats(ctx, store.MeasurementFilter{From: start, To: end})
	if err != nil {
		return models.TemperatureStats{}, err
	}
	return models.TemperatureStats{
		StartDate:          start,
		EndDate:            &end,
		MinimumTemperature: agg.Min,
		AverageTemperature: agg.Avg,
		MaximumTemperature: agg.Max,
	}, nil
}

func (s *ClimateService) temperatureStats(ctx context.Context, f store.MeasurementFilter) (models.TemperatureAggregate, error) {
	var agg models.TemperatureAggregate
	err := s.withSession(ctx, "temp_stats", func(sess *store.Session) error {
		var err error
		agg, err = sess.TemperatureStats(ctx, f)
		return err
	})
	return agg, err
}
