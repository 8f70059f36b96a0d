package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/hupe1980/pagegrid"
	"github.com/hupe1980/pagegrid/resource"
)

// Config is the root configuration of the viewer.
type Config struct {
	View   ViewConfig   `toml:"view"`
	Fetch  FetchConfig  `toml:"fetch"`
	Source SourceConfig `toml:"source"`
	Log    LogConfig    `toml:"log"`
}

// ViewConfig configures the page managers and the layout.
type ViewConfig struct {
	PageSize       int    `toml:"page_size"`
	ColumnPageSize int    `toml:"column_page_size"`
	MaxPages       int    `toml:"max_pages"`
	TTL            string `toml:"ttl"`
	RetryDelay     string `toml:"retry_delay"`
	ColumnWidth    int    `toml:"column_width"`
}

// FetchConfig bounds provider load across all managers of the view.
type FetchConfig struct {
	MaxConcurrent int64   `toml:"max_concurrent"`
	PerSecond     float64 `toml:"per_second"`
	Burst         int     `toml:"burst"`
}

// SourceConfig selects the data source.
type SourceConfig struct {
	Kind string `toml:"kind"` // demo, sql or frame

	// demo
	Rows    int `toml:"rows"`
	Columns int `toml:"columns"`

	// sql
	Driver   string `toml:"driver"`
	DSN      string `toml:"dsn"`
	Table    string `toml:"table"`
	RowNames string `toml:"row_names"`

	// frame
	URL  string `toml:"url"`
	Name string `toml:"name"`
}

// LogConfig configures logging. The terminal belongs to the UI, so logs go
// to a file or nowhere.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func defaultConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero fields.
func (c *Config) applyDefaults() {
	def := pagegrid.DefaultConfig()
	if c.View.PageSize == 0 {
		c.View.PageSize = def.PageSize
	}
	if c.View.MaxPages == 0 {
		c.View.MaxPages = def.MaxPages
	}
	if c.View.TTL == "" {
		c.View.TTL = def.TTL.String()
	}
	if c.View.ColumnWidth == 0 {
		c.View.ColumnWidth = 12
	}
	if c.Fetch.MaxConcurrent == 0 {
		c.Fetch.MaxConcurrent = 4
	}
	if c.Source.Kind == "" {
		c.Source.Kind = "demo"
	}
	if c.Source.Rows == 0 {
		c.Source.Rows = 10000
	}
	if c.Source.Columns == 0 {
		c.Source.Columns = 40
	}
	if c.Source.Driver == "" {
		c.Source.Driver = "sqlite"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func loadConfig(path string) (Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// managerConfig converts the view section to a manager configuration.
func (v ViewConfig) managerConfig() (pagegrid.Config, error) {
	ttl, err := time.ParseDuration(v.TTL)
	if err != nil {
		return pagegrid.Config{}, fmt.Errorf("view.ttl: %w", err)
	}
	var retry time.Duration
	if v.RetryDelay != "" {
		if retry, err = time.ParseDuration(v.RetryDelay); err != nil {
			return pagegrid.Config{}, fmt.Errorf("view.retry_delay: %w", err)
		}
	}
	cfg := pagegrid.Config{
		PageSize:       v.PageSize,
		ColumnPageSize: v.ColumnPageSize,
		TTL:            ttl,
		MaxPages:       v.MaxPages,
		RetryDelay:     retry,
	}
	return cfg, cfg.Validate()
}

func (f FetchConfig) controller() *resource.Controller {
	return resource.NewController(resource.Config{
		MaxConcurrentFetches: f.MaxConcurrent,
		FetchesPerSecond:     f.PerSecond,
		FetchBurst:           f.Burst,
	})
}

// logger returns the viewer logger and a function closing its file.
func (l LogConfig) logger() (*pagegrid.Logger, func() error, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, nil, fmt.Errorf("log.level: %w", err)
	}
	if l.File == "" {
		return pagegrid.NoopLogger(), func() error { return nil }, nil
	}
	f, err := os.OpenFile(l.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return pagegrid.NewLogger(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})), f.Close, nil
}
