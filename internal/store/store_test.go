package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-api/internal/testhelpers"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(Config{Path: path, MaxOpenConns: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hawaii.sqlite")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"dsn override", Config{DSN: "file:x.db?mode=ro", Path: path}, "file:x.db?mode=ro"},
		{"plain path", Config{Path: path}, "file:" + path + "?mode=ro&_query_only=1"},
		{"busy timeout", Config{Path: path, BusyTimeout: 2 * time.Second}, "file:" + path + "?mode=ro&_query_only=1&_busy_timeout=2000"},
		{"file prefix", Config{Path: "file:" + path}, "file:" + path + "?mode=ro&_query_only=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if err != nil {
				t.Fatalf("buildDSN() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildDSN_MissingFile(t *testing.T) {
	_, err := buildDSN(Config{Path: filepath.Join(t.TempDir(), "absent.sqlite")})
	if err == nil {
		t.Fatal("buildDSN() expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("buildDSN() error = %v, want os.ErrNotExist", err)
	}
}

func TestBuildDSN_EmptyPath(t *testing.T) {
	if _, err := buildDSN(Config{Path: "  "}); err == nil {
		t.Fatal("buildDSN() expected error for empty path")
	}
}

// TestOpen_VerifiesSchema verifies that Open refuses a database without the expected tables
// and surfaces a SchemaError naming them.
func TestOpen_VerifiesSchema(t *testing.T) {
	path := testhelpers.NewDatabaseWithSchema(t, "")

	_, err := Open(Config{Path: path}, zap.NewNop())

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Open() error = %v, want *SchemaError", err)
	}
	if len(schemaErr.Problems) != 2 {
		t.Errorf("Problems = %v, want station and measurement missing", schemaErr.Problems)
	}
}

func TestOpen_Succeeds(t *testing.T) {
	s := openTestStore(t, testhelpers.NewHawaiiDatabase(t))
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// TestOpen_ReadOnly verifies that the store connection rejects writes.
func TestOpen_ReadOnly(t *testing.T) {
	s := openTestStore(t, testhelpers.NewHawaiiDatabase(t))
	_, err := s.db.Exec("DELETE FROM station")
	if err == nil {
		t.Fatal("DELETE succeeded on read-only store")
	}
	if !strings.Contains(err.Error(), "readonly") {
		t.Errorf("DELETE error = %v, want read-only error", err)
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	s, err := Open(Config{Path: testhelpers.NewHawaiiDatabase(t)}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() on closed store returned nil error")
	}
}

// TestSession_ReleasesConnection verifies that closing a session returns its connection
// to the pool and that Close is idempotent.
func TestSession_ReleasesConnection(t *testing.T) {
	s := openTestStore(t, testhelpers.NewHawaiiDatabase(t))
	ctx := context.Background()

	sess, err := s.Session(ctx)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if got := s.InUse(); got != 1 {
		t.Errorf("InUse() with open session = %d, want 1", got)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if got := s.InUse(); got != 0 {
		t.Errorf("InUse() after Close = %d, want 0", got)
	}

	if _, err := sess.Stations(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Stations() after Close error = %v, want ErrSessionClosed", err)
	}
}

func TestSession_ClosedStore(t *testing.T) {
	s, err := Open(Config{Path: testhelpers.NewHawaiiDatabase(t)}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = s.Close()
	if _, err := s.Session(context.Background()); err == nil {
		t.Error("Session() on closed store returned nil error")
	}
}
