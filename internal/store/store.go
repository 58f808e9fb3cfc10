package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/kjstillabower/climate-api/internal/observability"
)

const (
	driverName = "sqlite3"

	// pingTimeout bounds the startup connectivity check and schema verification.
	pingTimeout = 5 * time.Second
)

// ErrSessionClosed is returned by queries on a Session after Close.
var ErrSessionClosed = errors.New("store: session closed")

// Config holds store connection settings.
type Config struct {
	// Path is the SQLite database file. It must already exist; the store never creates it.
	Path string
	// DSN, when set, is passed to the driver as-is and Path is ignored.
	DSN          string
	MaxOpenConns int
	BusyTimeout  time.Duration
	// LogQueries logs every SQL statement and its arguments at debug level.
	LogQueries bool
}

// Store is the read-only data access layer over the station and measurement tables.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to the database, verifies connectivity, and checks the station and
// measurement tables against the declared schema. Any failure is returned; callers
// should treat it as fatal.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.LogQueries {
		db = sql.OpenDB(NewQueryLogConnector(dsn, logger))
	} else {
		db, err = sql.Open(driverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	s := &Store{db: db, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := s.VerifySchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// buildDSN returns a read-only DSN for cfg.Path unless cfg.DSN overrides it.
func buildDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", fmt.Errorf("database path is required")
	}
	file := strings.TrimPrefix(path, "file:")
	if i := strings.IndexByte(file, '?'); i >= 0 {
		file = file[:i]
	}
	if _, err := os.Stat(file); err != nil {
		return "", fmt.Errorf("database file %s: %w", file, err)
	}

	params := []string{
		"mode=ro",
		"_query_only=1",
	}
	if cfg.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", cfg.BusyTimeout.Milliseconds()))
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + strings.Join(params, "&"), nil
}

// Session acquires a dedicated connection for one request. The caller must Close it,
// normally with defer right after the error check.
func (s *Store) Session(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	observability.DBSessionsOpen.Inc()
	return &Session{conn: conn, logger: s.logger}, nil
}

// HealthCheck verifies the database answers a trivial query.
func (s *Store) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("store health check: %w", err)
	}
	return nil
}

// InUse returns the number of pool connections currently checked out.
func (s *Store) InUse() int {
	return s.db.Stats().InUse
}

// Close closes the connection pool. Call during shutdown after requests have drained.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
