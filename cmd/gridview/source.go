package main

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/hupe1980/pagegrid/blobstore/bloburl"
	"github.com/hupe1980/pagegrid/provider"
	"github.com/hupe1980/pagegrid/source/eval"
	"github.com/hupe1980/pagegrid/source/frame"
	"github.com/hupe1980/pagegrid/source/sqltable"
)

// source is the data behind one view.
type source struct {
	title string
	rows  provider.ListProvider[string]
	cols  provider.ListProvider[string]
	cells provider.GridProvider[string]
	close func() error
}

func openSource(ctx context.Context, cfg SourceConfig) (*source, error) {
	switch cfg.Kind {
	case "demo":
		return demoSource(cfg.Rows, cfg.Columns), nil
	case "sql":
		return sqlSource(ctx, cfg)
	case "frame":
		return frameSource(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// demoSource serves a synthetic data frame through an in-process
// evaluation session.
func demoSource(rows, cols int) *source {
	rng := rand.New(rand.NewPCG(uint64(rows), uint64(cols)))

	tbl := &eval.Table{}
	for c := range cols {
		tbl.ColNames = append(tbl.ColNames, "v"+strconv.Itoa(c+1))
		col := make([]any, rows)
		for r := range rows {
			switch {
			case c == 0:
				col[r] = r + 1
			case rng.IntN(50) == 0:
				col[r] = nil
			default:
				col[r] = float64(rng.IntN(100000)) / 100
			}
		}
		tbl.Columns = append(tbl.Columns, col)
	}

	session := eval.NewMemorySession(nil)
	session.Assign("df", tbl)
	v := tbl.Variable("df")

	return &source{
		title: "demo df",
		rows:  eval.NewHeaderProvider(session, v, true),
		cols:  eval.NewHeaderProvider(session, v, false),
		cells: eval.NewItemsProvider(session, v),
		close: func() error { return nil },
	}
}

func sqlSource(ctx context.Context, cfg SourceConfig) (*source, error) {
	dialect, err := sqltable.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := normalizeDSN(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Name(), dsn)
	if err != nil {
		return nil, err
	}

	opts := []sqltable.Option{sqltable.WithDialect(dialect)}
	if cfg.RowNames != "" {
		opts = append(opts, sqltable.WithRowNames(cfg.RowNames))
	}
	tbl, err := sqltable.Open(ctx, db, cfg.Table, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &source{
		title: dialect.Name() + " " + tbl.Name(),
		rows:  tbl.RowHeaders(),
		cols:  tbl.ColumnHeaders(),
		cells: tbl.Cells(),
		close: db.Close,
	}, nil
}

// normalizeDSN applies viewer defaults to MySQL DSNs.
func normalizeDSN(driver, dsn string) (string, error) {
	if driver != "mysql" {
		return dsn, nil
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	if mc.Timeout == 0 {
		mc.Timeout = 5 * time.Second
	}
	if mc.ReadTimeout == 0 {
		mc.ReadTimeout = 30 * time.Second
	}
	return mc.FormatDSN(), nil
}

func frameSource(ctx context.Context, cfg SourceConfig) (*source, error) {
	store, err := bloburl.Open(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	r, err := frame.Open(ctx, store, cfg.Name)
	if err != nil {
		return nil, err
	}
	return &source{
		title: cfg.Name,
		rows:  r.RowHeaders(),
		cols:  r.ColumnHeaders(),
		cells: r.Cells(),
		close: r.Close,
	}, nil
}
