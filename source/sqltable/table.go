// Package sqltable exposes a SQL table as row header, column header and cell
// providers. Rows are paged with LIMIT/OFFSET under a fixed ordering.
package sqltable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/pagegrid/provider"
)

// NA is the rendering of NULL.
const NA = "NA"

// ErrTableChanged is returned when a page query yields fewer rows than the
// row count read at Open.
var ErrTableChanged = errors.New("sqltable: table changed since open")

type options struct {
	dialect  Dialect
	orderBy  string
	rowNames string
}

// Option configures Open.
type Option func(*options)

// WithDialect sets the SQL dialect. Defaults to SQLite.
func WithDialect(d Dialect) Option {
	return func(o *options) {
		o.dialect = d
	}
}

// WithOrderBy sets the ORDER BY expression used for paging.
func WithOrderBy(expr string) Option {
	return func(o *options) {
		o.orderBy = expr
	}
}

// WithRowNames uses column as row headers. The column is not shown as a cell
// column.
func WithRowNames(column string) Option {
	return func(o *options) {
		o.rowNames = column
	}
}

// Table is an opened SQL table.
type Table struct {
	db       *sql.DB
	dialect  Dialect
	name     string
	columns  []string
	rows     int
	orderBy  string
	rowNames string
}

// Open reads the column list and row count of table.
func Open(ctx context.Context, db *sql.DB, table string, opts ...Option) (*Table, error) {
	o := options{dialect: SQLite}
	for _, fn := range opts {
		fn(&o)
	}

	columns, err := o.dialect.Columns(ctx, db, table)
	if err != nil {
		return nil, fmt.Errorf("sqltable: columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("sqltable: table %s not found", table)
	}

	t := &Table{
		db:       db,
		dialect:  o.dialect,
		name:     table,
		orderBy:  o.orderBy,
		rowNames: o.rowNames,
	}

	if o.rowNames != "" {
		i := slices.Index(columns, o.rowNames)
		if i < 0 {
			return nil, fmt.Errorf("sqltable: row name column %s not in %s", o.rowNames, table)
		}
		columns = slices.Delete(columns, i, i+1)
		if t.orderBy == "" {
			t.orderBy = o.dialect.Quote(o.rowNames)
		}
	}
	t.columns = columns
	if t.orderBy == "" {
		t.orderBy = o.dialect.DefaultOrder(columns)
	}

	q := "SELECT COUNT(*) FROM " + o.dialect.Quote(table)
	if err := db.QueryRowContext(ctx, q).Scan(&t.rows); err != nil {
		return nil, fmt.Errorf("sqltable: count %s: %w", table, err)
	}
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Rows returns the row count read at Open.
func (t *Table) Rows() int { return t.rows }

// Columns returns the cell column names.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// RowHeaders returns the row header provider. Without a row name column the
// headers are positional.
func (t *Table) RowHeaders() provider.ListProvider[string] {
	return provider.ListFunc[string]{
		N: t.rows,
		Fetch: func(ctx context.Context, r provider.Range) ([]string, error) {
			if t.rowNames == "" {
				return provider.IndexedHeaders(r, true), nil
			}
			rows, err := t.query(ctx, []string{t.rowNames}, r)
			if err != nil {
				return nil, err
			}
			out := make([]string, len(rows))
			for i, row := range rows {
				out[i] = row[0]
			}
			return out, nil
		},
	}
}

// ColumnHeaders returns the column header provider.
func (t *Table) ColumnHeaders() provider.ListProvider[string] {
	return provider.Static[string](t.Columns())
}

// Cells returns the cell provider.
func (t *Table) Cells() provider.GridProvider[string] {
	return provider.GridFunc[string]{
		Rows:    t.rows,
		Columns: len(t.columns),
		Fetch: func(ctx context.Context, r provider.GridRange) (*provider.Grid[string], error) {
			// rows past the end surface as ErrTableChanged from query
			if r.Rows.Start < 0 || r.Columns.Start < 0 || r.Columns.End() > len(t.columns) {
				return nil, fmt.Errorf("block %s outside %dx%d table", r, t.rows, len(t.columns))
			}
			if r.Rows.Empty() || r.Columns.Empty() {
				return provider.NewGrid[string](r, nil)
			}
			cols := t.columns[r.Columns.Start:r.Columns.End()]
			rows, err := t.query(ctx, cols, r.Rows)
			if err != nil {
				return nil, err
			}
			values := make([]string, 0, r.Cells())
			for _, row := range rows {
				values = append(values, row...)
			}
			return provider.NewGrid(r, values)
		},
	}
}

// SelectSQL returns the page query for columns.
func (t *Table) SelectSQL(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = t.dialect.Quote(c)
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(" FROM ")
	b.WriteString(t.dialect.Quote(t.name))
	b.WriteString(" ORDER BY ")
	b.WriteString(t.orderBy)
	b.WriteString(" LIMIT ? OFFSET ?")
	return b.String()
}

func (t *Table) query(ctx context.Context, columns []string, r provider.Range) ([][]string, error) {
	rows, err := t.db.QueryContext(ctx, t.SelectSQL(columns), r.Count, r.Start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([][]string, 0, r.Count)
	cells := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]string, len(cells))
		for i, c := range cells {
			if c.Valid {
				row[i] = c.String
			} else {
				row[i] = NA
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != r.Count {
		return nil, fmt.Errorf("%w: %s returned %d rows, want %d", ErrTableChanged, r, len(out), r.Count)
	}
	return out, nil
}
