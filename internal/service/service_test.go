package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-api/internal/store"
	"github.com/kjstillabower/climate-api/internal/testhelpers"
)

func newTestService(t *testing.T) (*ClimateService, *store.Store) {
	t.Helper()
	st, err := store.Open(store.Config{Path: testhelpers.NewHawaiiDatabase(t), MaxOpenConns: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewClimateService(st), st
}

func assertFloat(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s = nil, want %v", name, want)
		return
	}
	if math.Abs(*got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, *got, want)
	}
}

func TestClimateService_Precipitation(t *testing.T) {
	svc, st := newTestService(t)

	got, err := svc.Precipitation(context.Background())
	if err != nil {
		t.Fatalf("Precipitation() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5: %+v", len(got), got)
	}
	for _, r := range got {
		if r.Date < PrecipitationStartDate {
			t.Errorf("reading dated %s is before %s", r.Date, PrecipitationStartDate)
		}
	}
	if got[2].Prcp != nil {
		t.Errorf("got[2].Prcp = %v, want nil", *got[2].Prcp)
	}
	assertFloat(t, "got[1].Prcp", got[1].Prcp, 1.79)
	if n := st.InUse(); n != 0 {
		t.Errorf("InUse() after call = %d, want 0", n)
	}
}

func TestClimateService_Stations(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.Stations(context.Background())
	if err != nil {
		t.Fatalf("Stations() error = %v", err)
	}
	want := []string{"USC00519397", "USC00513117", "USC00519281"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].StationID == nil || *got[i].StationID != id {
			t.Errorf("got[%d].StationID = %v, want %q", i, got[i].StationID, id)
		}
	}
}

func TestClimateService_TemperatureObservations(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.TemperatureObservations(context.Background())
	if err != nil {
		t.Fatalf("TemperatureObservations() error = %v", err)
	}
	wantDates := []string{"2016-08-18", "2016-08-20", "2016-08-23", "2016-08-24", "2017-08-18"}
	if len(got) != len(wantDates) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(wantDates), got)
	}
	for i, d := range wantDates {
		if got[i].Date != d {
			t.Errorf("got[%d].Date = %q, want %q", i, got[i].Date, d)
		}
	}
	assertFloat(t, "got[0].Temperature", got[0].Temperature, 80)
	if got[3].Temperature != nil {
		t.Errorf("got[3].Temperature = %v, want nil", *got[3].Temperature)
	}
}

func TestClimateService_TemperatureStatsFrom(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.TemperatureStatsFrom(context.Background(), "2016-08-23")
	if err != nil {
		t.Fatalf("TemperatureStatsFrom() error = %v", err)
	}
	if got.StartDate != "2016-08-23" || got.EndDate != nil {
		t.Errorf("dates = %q / %v, want 2016-08-23 / nil", got.StartDate, got.EndDate)
	}
	assertFloat(t, "MinimumTemperature", got.MinimumTemperature, 76)
	assertFloat(t, "AverageTemperature", got.AverageTemperature, 78.25)
	assertFloat(t, "MaximumTemperature", got.MaximumTemperature, 81)
}

func TestClimateService_TemperatureStatsBetween(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.TemperatureStatsBetween(context.Background(), "2016-08-22", "2016-08-23")
	if err != nil {
		t.Fatalf("TemperatureStatsBetween() error = %v", err)
	}
	if got.EndDate == nil || *got.EndDate != "2016-08-23" {
		t.Errorf("EndDate = %v, want 2016-08-23", got.EndDate)
	}
	assertFloat(t, "MinimumTemperature", got.MinimumTemperature, 76)
	assertFloat(t, "AverageTemperature", got.AverageTemperature, 78)
	assertFloat(t, "MaximumTemperature", got.MaximumTemperature, 81)
}

func TestClimateService_TemperatureStatsBetween_Inverted(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.TemperatureStatsBetween(context.Background(), "2017-01-01", "2016-01-01")
	if err != nil {
		t.Fatalf("TemperatureStatsBetween() error = %v", err)
	}
	if got.MinimumTemperature != nil || got.AverageTemperature != nil || got.MaximumTemperature != nil {
		t.Errorf("inverted range stats = %+v, want all nil", got)
	}
}

type failingSource struct{ err error }

func (f failingSource) Session(ctx context.Context) (*store.Session, error) {
	return nil, f.err
}

func TestClimateService_SessionError(t *testing.T) {
	acquireErr := errors.New("database is locked")
	svc := NewClimateService(failingSource{err: acquireErr})

	if _, err := svc.Stations(context.Background()); !errors.Is(err, acquireErr) {
		t.Errorf("Stations() error = %v, want wrapped %v", err, acquireErr)
	}
	if _, err := svc.TemperatureStatsFrom(context.Background(), "2016-01-01"); !errors.Is(err, acquireErr) {
		t.Errorf("TemperatureStatsFrom() error = %v, want wrapped %v", err, acquireErr)
	}
}

// TestClimateService_ReleasesSessionOnQueryError verifies that a failing query still
// returns its connection to the pool.
func TestClimateService_ReleasesSessionOnQueryError(t *testing.T) {
	svc, st := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Precipitation(ctx); err == nil {
		t.Fatal("Precipitation() with cancelled context returned nil error")
	}
	if n := st.InUse(); n != 0 {
		t.Errorf("InUse() after failed call = %d, want 0", n)
	}
}
