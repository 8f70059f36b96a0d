// Command gridview browses a large table in the terminal, fetching only the
// pages on screen.
//
//	gridview -source demo -rows 100000
//	gridview -source sql -driver sqlite -dsn data.db -table people
//	gridview -source frame -url s3://bucket/frames -name df.frame
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	configPath = flag.String("config", "", "path to TOML config file")
	kind       = flag.String("source", "", "source kind: demo, sql or frame")
	driver     = flag.String("driver", "", "sql driver: sqlite or mysql")
	dsn        = flag.String("dsn", "", "sql data source name")
	table      = flag.String("table", "", "sql table")
	rowNames   = flag.String("row-names", "", "sql column holding row names")
	blobURL    = flag.String("url", "", "blob store URL holding frames")
	frameName  = flag.String("name", "", "frame blob name")
	rows       = flag.Int("rows", 0, "demo row count")
	cols       = flag.Int("columns", 0, "demo column count")
	logFile    = flag.String("log", "", "write JSON logs to file")
	debug      = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "gridview: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	applyFlags(&cfg)

	logger, closeLog, err := cfg.Log.logger()
	if err != nil {
		return err
	}
	defer closeLog()

	src, err := openSource(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer src.close()

	m, err := newModel(src, cfg, logger, newNotifier(64))
	if err != nil {
		return err
	}
	defer m.close()

	logger.InfoContext(ctx, "viewer started", "source", cfg.Source.Kind, "rows", m.cells.RowCount(), "columns", m.cells.ColumnCount())

	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// applyFlags overrides config values with flags that were set.
func applyFlags(cfg *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source.Kind = *kind
		case "driver":
			cfg.Source.Driver = *driver
		case "dsn":
			cfg.Source.DSN = *dsn
		case "table":
			cfg.Source.Table = *table
		case "row-names":
			cfg.Source.RowNames = *rowNames
		case "url":
			cfg.Source.URL = *blobURL
		case "name":
			cfg.Source.Name = *frameName
		case "rows":
			cfg.Source.Rows = *rows
		case "columns":
			cfg.Source.Columns = *cols
		case "log":
			cfg.Log.File = *logFile
		case "debug":
			if *debug {
				cfg.Log.Level = "debug"
			}
		}
	})
}
