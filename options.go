package pagegrid

import (
	"log/slog"
	"time"

	"github.com/hupe1980/pagegrid/resource"
)

// Default manager configuration.
const (
	DefaultPageSize = 32
	DefaultTTL      = time.Minute
	DefaultMaxPages = 4
)

// Config holds the paging parameters of a manager.
type Config struct {
	// PageSize is the number of items per 1-D page, or rows per grid block.
	PageSize int
	// ColumnPageSize is the number of columns per grid block.
	// Zero means "same as PageSize". Ignored by ListManager.
	ColumnPageSize int
	// TTL is how long a loaded page may stay idle before the next access
	// re-fetches it. Zero disables expiry.
	TTL time.Duration
	// MaxPages bounds the number of cached pages (or blocks).
	MaxPages int
	// RetryDelay is the minimum delay between a failed fetch and its retry.
	// Zero retries on the next access.
	RetryDelay time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageSize: DefaultPageSize,
		TTL:      DefaultTTL,
		MaxPages: DefaultMaxPages,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return invalidConfig("page size must be positive, got %d", c.PageSize)
	}
	if c.ColumnPageSize < 0 {
		return invalidConfig("column page size must not be negative, got %d", c.ColumnPageSize)
	}
	if c.MaxPages <= 0 {
		return invalidConfig("max pages must be positive, got %d", c.MaxPages)
	}
	if c.TTL < 0 {
		return invalidConfig("ttl must not be negative, got %s", c.TTL)
	}
	if c.RetryDelay < 0 {
		return invalidConfig("retry delay must not be negative, got %s", c.RetryDelay)
	}
	return nil
}

func (c Config) columnPageSize() int {
	if c.ColumnPageSize == 0 {
		return c.PageSize
	}
	return c.ColumnPageSize
}

type options struct {
	cfg        Config
	name       string
	logger     *Logger
	metrics    MetricsCollector
	clock      func() time.Time
	controller *resource.Controller
	dispatch   func(func())
}

func defaultOptions() options {
	return options{
		cfg:     DefaultConfig(),
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
}

// Option configures a page manager.
type Option func(*options)

// WithConfig replaces the whole paging configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithPageSize sets the items per page (rows per block for grids).
func WithPageSize(n int) Option {
	return func(o *options) {
		o.cfg.PageSize = n
	}
}

// WithColumnPageSize sets the columns per grid block.
func WithColumnPageSize(n int) Option {
	return func(o *options) {
		o.cfg.ColumnPageSize = n
	}
}

// WithTTL sets the page freshness window. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.cfg.TTL = ttl
	}
}

// WithMaxPages sets the eviction bound.
func WithMaxPages(n int) Option {
	return func(o *options) {
		o.cfg.MaxPages = n
	}
}

// WithRetryDelay sets the minimum delay before a failed page is fetched again.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		o.cfg.RetryDelay = d
	}
}

// WithName tags the manager's log output, e.g. "rows", "columns" or "cells".
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := pagegrid.NewJSONLogger(slog.LevelDebug)
//	m, _ := pagegrid.NewListManager(p, pagegrid.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithClock overrides the time source used for expiry and retry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithController shares a resource controller between managers so that
// together they respect one concurrency and rate budget.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithDispatcher sets the function used to deliver change notifications.
// A UI passes a function that hands the callback to its event loop, so that
// subscribers run on the UI goroutine:
//
//	pagegrid.WithDispatcher(func(f func()) { program.Send(runMsg(f)) })
//
// By default subscribers run on the goroutine that completed the fetch.
func WithDispatcher(dispatch func(func())) Option {
	return func(o *options) {
		o.dispatch = dispatch
	}
}

func applyOptions(opts []Option) (options, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return o, err
	}
	if o.name != "" {
		o.logger = o.logger.WithManager(o.name)
	}
	return o, nil
}
