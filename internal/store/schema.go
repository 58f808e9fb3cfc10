package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Affinity is a SQLite column type affinity, derived from the declared column type.
type Affinity string

const (
	AffinityText    Affinity = "TEXT"
	AffinityNumeric Affinity = "NUMERIC"
	AffinityInteger Affinity = "INTEGER"
	AffinityReal    Affinity = "REAL"
	AffinityBlob    Affinity = "BLOB"
)

// Column is a required column and the affinities it may be declared with.
type Column struct {
	Name       string
	Affinities []Affinity
}

// Table is the statically declared shape of a table the store reads.
// Only consumed columns are listed; extra columns in the database are ignored.
type Table struct {
	Name    string
	Columns []Column
}

var numericAffinities = []Affinity{AffinityReal, AffinityNumeric, AffinityInteger}

var StationTable = Table{
	Name: "station",
	Columns: []Column{
		{Name: "station", Affinities: []Affinity{AffinityText}},
		{Name: "name", Affinities: []Affinity{AffinityText}},
	},
}

// MeasurementTable accepts DATE declarations (NUMERIC affinity) for date since SQLite
// stores ISO strings unchanged under either affinity.
var MeasurementTable = Table{
	Name: "measurement",
	Columns: []Column{
		{Name: "station", Affinities: []Affinity{AffinityText}},
		{Name: "date", Affinities: []Affinity{AffinityText, AffinityNumeric}},
		{Name: "prcp", Affinities: numericAffinities},
		{Name: "tobs", Affinities: numericAffinities},
	},
}

// Schema lists every table the store queries.
var Schema = []Table{StationTable, MeasurementTable}

// SchemaError lists every mismatch between the declared schema and the database.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "schema mismatch: " + strings.Join(e.Problems, "; ")
}

// VerifySchema checks every table in Schema against the database.
func (s *Store) VerifySchema(ctx context.Context) error {
	return verifySchema(ctx, s.db, Schema)
}

func verifySchema(ctx context.Context, db *sql.DB, tables []Table) error {
	var problems []string
	for _, table := range tables {
		exists, err := tableExists(ctx, db, table.Name)
		if err != nil {
			return err
		}
		if !exists {
			problems = append(problems, fmt.Sprintf("table %q not found", table.Name))
			continue
		}
		declared, err := tableColumns(ctx, db, table.Name)
		if err != nil {
			return err
		}
		for _, col := range table.Columns {
			declType, ok := declared[strings.ToLower(col.Name)]
			if !ok {
				problems = append(problems, fmt.Sprintf("%s.%s: column not found", table.Name, col.Name))
				continue
			}
			aff := affinityOf(declType)
			if !containsAffinity(col.Affinities, aff) {
				problems = append(problems, fmt.Sprintf("%s.%s: declared %q (%s affinity), want one of %v",
					table.Name, col.Name, declType, aff, col.Affinities))
			}
		}
	}
	if len(problems) > 0 {
		return &SchemaError{Problems: problems}
	}
	return nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up table %s: %w", name, err)
	}
	return n > 0, nil
}

// tableColumns returns declared column types keyed by lower-cased column name.
func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var (
			cid      int
			name     string
			declType string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info %s: %w", table, err)
		}
		cols[strings.ToLower(name)] = declType
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	return cols, nil
}

// affinityOf applies SQLite's column affinity rules (section 3.1 of the datatype docs) in order.
func affinityOf(declType string) Affinity {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "INT"):
		return AffinityInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return AffinityText
	case strings.Contains(t, "BLOB"), strings.TrimSpace(t) == "":
		return AffinityBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return AffinityReal
	default:
		return AffinityNumeric
	}
}

func containsAffinity(list []Affinity, a Affinity) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}
