package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-api/internal/models"
	"github.com/kjstillabower/climate-api/internal/observability"
)

// MeasurementFilter restricts measurement queries. Empty fields add no predicate.
// From and To are inclusive and compared as strings by the database, so any
// value is accepted; non-date input simply matches by lexicographic order.
type MeasurementFilter struct {
	Station string
	From    string
	To      string
}

func (f MeasurementFilter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if f.Station != "" {
		clauses = append(clauses, "station = ?")
		args = append(args, f.Station)
	}
	if f.From != "" {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Session holds one dedicated connection for the duration of a request.
// A Session is not safe for concurrent use.
type Session struct {
	conn   *sql.Conn
	logger *zap.Logger
	closed bool
}

// Close releases the connection back to the pool. Safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	observability.DBSessionsOpen.Dec()
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	return nil
}

// query runs q and hands the rows to scan, recording metrics under name.
func (s *Session) query(ctx context.Context, name, q string, args []interface{}, scan func(*sql.Rows) error) (err error) {
	if s.closed {
		return ErrSessionClosed
	}
	start := time.Now()
	defer func() {
		observability.RecordQuery(name, time.Since(start).Seconds(), err)
		if err != nil {
			observability.RecordQueryError(name, string(CategorizeError(err)))
		}
	}()

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s query: %w", name, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logger.Warn("close rows", zap.String("query", name), zap.Error(cerr))
		}
	}()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("%s scan: %w", name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s rows: %w", name, err)
	}
	return nil
}

// Dates are selected through CAST so the driver never sees a DATE or TIMESTAMP
// declared type; it would otherwise parse them into time.Time and they would
// scan back as RFC3339 strings.
const dateColumn = "CAST(date AS TEXT)"

// Precipitation returns (date, prcp) for matching measurements in storage order.
func (s *Session) Precipitation(ctx context.Context, f MeasurementFilter) ([]models.PrecipitationReading, error) {
	where, args := f.where()
	out := make([]models.PrecipitationReading, 0)
	err := s.query(ctx, "precipitation", "SELECT "+dateColumn+", prcp FROM measurement"+where, args, func(rows *sql.Rows) error {
		var r models.PrecipitationReading
		var prcp sql.NullFloat64
		if err := rows.Scan(&r.Date, &prcp); err != nil {
			return err
		}
		r.Prcp = nullFloat(prcp)
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stations returns (station, name) for every station in storage order. NULL
// values stay nil.
func (s *Session) Stations(ctx context.Context) ([]models.StationSummary, error) {
	out := make([]models.StationSummary, 0)
	err := s.query(ctx, "stations", "SELECT station, name FROM station", nil, func(rows *sql.Rows) error {
		var id, name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		out = append(out, models.StationSummary{StationID: nullString(id), Name: nullString(name)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TemperatureObservations returns (date, tobs) for matching measurements ordered by
// date. Rows with equal dates keep storage (rowid) order.
func (s *Session) TemperatureObservations(ctx context.Context, f MeasurementFilter) ([]models.TemperatureObservation, error) {
	where, args := f.where()
	q := "SELECT station, " + dateColumn + ", tobs FROM measurement" + where + " ORDER BY date ASC, rowid ASC"
	out := make([]models.TemperatureObservation, 0)
	err := s.query(ctx, "tobs", q, args, func(rows *sql.Rows) error {
		var station sql.NullString
		var o models.TemperatureObservation
		var tobs sql.NullFloat64
		if err := rows.Scan(&station, &o.Date, &tobs); err != nil {
			return err
		}
		o.Temperature = nullFloat(tobs)
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TemperatureStats returns MIN, AVG and MAX of tobs over matching measurements.
// An empty match yields an aggregate with all fields nil.
func (s *Session) TemperatureStats(ctx context.Context, f MeasurementFilter) (models.TemperatureAggregate, error) {
	where, args := f.where()
	var agg models.TemperatureAggregate
	err := s.query(ctx, "temp_stats", "SELECT MIN(tobs), AVG(tobs), MAX(tobs) FROM measurement"+where, args, func(rows *sql.Rows) error {
		var lo, avg, hi sql.NullFloat64
		if err := rows.Scan(&lo, &avg, &hi); err != nil {
			return err
		}
		agg = models.TemperatureAggregate{Min: nullFloat(lo), Avg: nullFloat(avg), Max: nullFloat(hi)}
		return nil
	})
	if err != nil {
		return models.TemperatureAggregate{}, err
	}
	return agg, nil
}

func nullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
