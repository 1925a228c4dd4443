package publish

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"restaurants/internal/domain"
)

// dialect captures the differences between the SQL drivers.
type dialect struct {
	driverName string
	quote      func(string) string
	// placeholder returns the bind marker for the 1-based argument n.
	placeholder func(n int) string
	floatType   string
}

func doubleQuote(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

var (
	sqliteDialect = dialect{
		driverName:  "sqlite",
		quote:       doubleQuote,
		placeholder: func(int) string { return "?" },
		floatType:   "REAL",
	}
	mysqlDialect = dialect{
		driverName:  "mysql",
		quote:       func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
		placeholder: func(int) string { return "?" },
		floatType:   "DOUBLE",
	}
	postgresDialect = dialect{
		driverName:  "postgres",
		quote:       doubleQuote,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		floatType:   "DOUBLE PRECISION",
	}
)

// sqlSink is the shared implementation for SQLite, MySQL and Postgres.
type sqlSink struct {
	dialect dialect
	db      *sql.DB
	table   string
}

func newSQLSink(d dialect, dsn, table string) (*sqlSink, error) {
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driverName, err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)
	return &sqlSink{dialect: d, db: db, table: table}, nil
}

// Publish drops and recreates the table, then inserts every record in one
// transaction.
func (s *sqlSink) Publish(ctx context.Context, ds *domain.Dataset, cols domain.ColumnNames) (int, error) {
	if len(ds.Columns) == 0 {
		return 0, fmt.Errorf("publish: dataset has no columns")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	table := s.dialect.quote(s.table)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return 0, fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.createTable(ds.Columns, cols)); err != nil {
		return 0, fmt.Errorf("create table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.insert(ds.Columns))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(ds.Columns))
	for i := range ds.Records {
		for j, name := range ds.Columns {
			args[j] = value(&ds.Records[i], name, cols)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return ds.Len(), nil
}

func (s *sqlSink) createTable(columns []string, cols domain.ColumnNames) string {
	defs := make([]string, len(columns))
	for i, name := range columns {
		typ := "TEXT"
		if name == cols.Latitude || name == cols.Longitude {
			typ = s.dialect.floatType
		}
		defs[i] = s.dialect.quote(name) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", s.dialect.quote(s.table), strings.Join(defs, ", "))
}

func (s *sqlSink) insert(columns []string) string {
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, name := range columns {
		names[i] = s.dialect.quote(name)
		marks[i] = s.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.dialect.quote(s.table), strings.Join(names, ", "), strings.Join(marks, ", "))
}

func (s *sqlSink) Close() error {
	return s.db.Close()
}
