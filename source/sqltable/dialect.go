package sqltable

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect interface {
	// Name is the database/sql driver name the dialect targets.
	Name() string
	// Quote quotes an identifier.
	Quote(ident string) string
	// Columns lists the columns of table in declaration order.
	Columns(ctx context.Context, db *sql.DB, table string) ([]string, error)
	// DefaultOrder returns the ORDER BY expression used when none is set.
	DefaultOrder(columns []string) string
}

// SQLite is the dialect of modernc.org/sqlite (driver "sqlite").
var SQLite Dialect = sqliteDialect{}

// MySQL is the dialect of github.com/go-sql-driver/mysql (driver "mysql").
var MySQL Dialect = mysqlDialect{}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	default:
		return nil, fmt.Errorf("sqltable: unsupported driver %q", driver)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d sqliteDialect) Columns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func (d sqliteDialect) DefaultOrder([]string) string { return "rowid" }

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (d mysqlDialect) Columns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT COLUMN_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION",
		table)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

// DefaultOrder orders by every column, which is stable for tables without
// duplicate rows.
func (d mysqlDialect) DefaultOrder(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
	}
	return strings.Join(quoted, ", ")
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
