package store

import (
	"context"
	"database/sql/driver"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// queryLogConnector opens sqlite3 connections wrapped to log every statement at debug level.
type queryLogConnector struct {
	dsn    string
	logger *zap.Logger
}

type queryLogConn struct {
	conn   driver.Conn
	logger *zap.Logger
}

type queryLogStmt struct {
	stmt   driver.Stmt
	query  string
	logger *zap.Logger
}

// NewQueryLogConnector returns a driver.Connector for sql.OpenDB that logs each
// statement and its arguments through logger.
func NewQueryLogConnector(dsn string, logger *zap.Logger) driver.Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &queryLogConnector{dsn: dsn, logger: logger.Named("sql")}
}

func (c *queryLogConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := (&sqlite3.SQLiteDriver{}).Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &queryLogConn{conn: conn, logger: c.logger}, nil
}

func (c *queryLogConnector) Driver() driver.Driver {
	return queryLogDriver{}
}

// queryLogDriver only exists to satisfy driver.Connector; connections come from Connect.
type queryLogDriver struct{}

func (queryLogDriver) Open(name string) (driver.Conn, error) {
	return nil, fmt.Errorf("sqlite3 query log: open through sql.OpenDB(NewQueryLogConnector(...))")
}

func (c *queryLogConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &queryLogStmt{stmt: stmt, query: query, logger: c.logger}, nil
}

func (c *queryLogConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	prep, ok := c.conn.(driver.ConnPrepareContext)
	if !ok {
		return c.Prepare(query)
	}
	stmt, err := prep.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &queryLogStmt{stmt: stmt, query: query, logger: c.logger}, nil
}

func (c *queryLogConn) Close() error {
	return c.conn.Close()
}

func (c *queryLogConn) Begin() (driver.Tx, error) {
	//nolint:staticcheck // SA1019: fallback when the conn lacks ConnBeginTx
	return c.conn.Begin()
}

func (c *queryLogConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if b, ok := c.conn.(driver.ConnBeginTx); ok {
		return b.BeginTx(ctx, opts)
	}
	//nolint:staticcheck // SA1019: fallback when the conn lacks ConnBeginTx
	return c.conn.Begin()
}

func (s *queryLogStmt) Close() error {
	return s.stmt.Close()
}

func (s *queryLogStmt) NumInput() int {
	return s.stmt.NumInput()
}

func (s *queryLogStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.log("exec", valuesToStrings(args))
	//nolint:staticcheck // SA1019: fallback when the stmt lacks StmtExecContext
	return s.stmt.Exec(args)
}

func (s *queryLogStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	s.log("exec", namedValuesToStrings(args))
	if e, ok := s.stmt.(driver.StmtExecContext); ok {
		return e.ExecContext(ctx, args)
	}
	//nolint:staticcheck // SA1019: fallback when the stmt lacks StmtExecContext
	return s.stmt.Exec(namedValuesToValues(args))
}

func (s *queryLogStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.log("query", valuesToStrings(args))
	//nolint:staticcheck // SA1019: fallback when the stmt lacks StmtQueryContext
	return s.stmt.Query(args)
}

func (s *queryLogStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	s.log("query", namedValuesToStrings(args))
	if q, ok := s.stmt.(driver.StmtQueryContext); ok {
		return q.QueryContext(ctx, args)
	}
	//nolint:staticcheck // SA1019: fallback when the stmt lacks StmtQueryContext
	return s.stmt.Query(namedValuesToValues(args))
}

func (s *queryLogStmt) log(op string, args []string) {
	s.logger.Debug("sql",
		zap.String("op", op),
		zap.String("statement", s.query),
		zap.Strings("args", args),
	)
}

func valuesToStrings(args []driver.Value) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = formatArg(a)
	}
	return out
}

func namedValuesToStrings(args []driver.NamedValue) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a.Name != "" {
			out[i] = a.Name + "=" + formatArg(a.Value)
		} else {
			out[i] = formatArg(a.Value)
		}
	}
	return out
}

func namedValuesToValues(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i := range args {
		out[i] = args[i].Value
	}
	return out
}

func formatArg(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
