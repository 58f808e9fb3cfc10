// Package testhelpers builds SQLite fixture databases shaped like the climate
// snapshot the service reads in production.
package testhelpers

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kjstillabower/climate-api/internal/models"
)

// Schema matches the tables of the hawaii.sqlite snapshot.
const Schema = `
CREATE TABLE station (
  id        INTEGER PRIMARY KEY,
  station   TEXT,
  name      TEXT,
  latitude  FLOAT,
  longitude FLOAT,
  elevation FLOAT
);
CREATE TABLE measurement (
  id      INTEGER PRIMARY KEY,
  station TEXT,
  date    TEXT,
  prcp    FLOAT,
  tobs    FLOAT
);
`

// F returns a pointer to v, for nullable fixture columns.
func F(v float64) *float64 {
	return &v
}

// HawaiiStations is a small subset of the snapshot's stations.
func HawaiiStations() []models.Station {
	return []models.Station{
		{Station: "USC00519397", Name: "WAIKIKI 717.2, HI US", Latitude: F(21.2716), Longitude: F(-157.8168), Elevation: F(3.0)},
		{Station: "USC00513117", Name: "KANEOHE 838.1, HI US", Latitude: F(21.4234), Longitude: F(-157.8015), Elevation: F(14.6)},
		{Station: "USC00519281", Name: "WAIHEE 837.5, HI US", Latitude: F(21.45167), Longitude: F(-157.84889), Elevation: F(32.9)},
	}
}

// HawaiiMeasurements spans both sides of the fixed 2016-08-18 and 2016-08-23 cutoffs,
// includes NULL prcp and tobs values, and is inserted out of date order.
func HawaiiMeasurements() []models.Measurement {
	return []models.Measurement{
		{Station: "USC00519281", Date: "2016-08-20", Prcp: F(0.01), Tobs: F(77)},
		{Station: "USC00519281", Date: "2016-08-17", Prcp: F(0.00), Tobs: F(76)},
		{Station: "USC00519281", Date: "2016-08-18", Prcp: F(0.00), Tobs: F(80)},
		{Station: "USC00519397", Date: "2016-08-23", Prcp: F(0.00), Tobs: F(81)},
		{Station: "USC00519281", Date: "2016-08-23", Prcp: F(1.79), Tobs: F(77)},
		{Station: "USC00513117", Date: "2016-08-23", Prcp: nil, Tobs: F(76)},
		{Station: "USC00519281", Date: "2016-08-24", Prcp: F(2.15), Tobs: nil},
		{Station: "USC00519397", Date: "2016-08-22", Prcp: F(0.40), Tobs: F(78)},
		{Station: "USC00519281", Date: "2017-08-18", Prcp: F(0.06), Tobs: F(79)},
		{Station: "USC00513117", Date: "2010-01-01", Prcp: F(0.28), Tobs: F(67)},
	}
}

// NewDatabase writes a fixture database with Schema and the given rows into a
// temp dir and returns its path. The file is removed when the test ends.
func NewDatabase(t testing.TB, stations []models.Station, measurements []models.Measurement) string {
	t.Helper()
	path := NewDatabaseWithSchema(t, Schema)

	db := openWritable(t, path)
	defer db.Close()

	for _, s := range stations {
		if _, err := db.Exec(
			"INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)",
			s.Station, s.Name, s.Latitude, s.Longitude, s.Elevation,
		); err != nil {
			t.Fatalf("insert station %s: %v", s.Station, err)
		}
	}
	for _, m := range measurements {
		if _, err := db.Exec(
			"INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)",
			m.Station, m.Date, m.Prcp, m.Tobs,
		); err != nil {
			t.Fatalf("insert measurement %s %s: %v", m.Station, m.Date, err)
		}
	}
	return path
}

// NewHawaiiDatabase is NewDatabase with HawaiiStations and HawaiiMeasurements.
func NewHawaiiDatabase(t testing.TB) string {
	t.Helper()
	return NewDatabase(t, HawaiiStations(), HawaiiMeasurements())
}

// NewDatabaseWithSchema creates a database from arbitrary DDL, for schema mismatch tests.
func NewDatabaseWithSchema(t testing.TB, ddl string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "climate.sqlite")
	db := openWritable(t, path)
	defer db.Close()
	if ddl == "" {
		// forces the file to be written so read-only opens find it
		ddl = "PRAGMA user_version = 1"
	}
	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("exec schema: %v", err)
	}
	return path
}

func openWritable(t testing.TB, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("ping fixture db: %v", err)
	}
	return db
}
