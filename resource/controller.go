package resource

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMaxConcurrentFetches is used when Config.MaxConcurrentFetches <= 0.
const DefaultMaxConcurrentFetches = 4

// Config holds fetch limits.
type Config struct {
	// MaxConcurrentFetches is the maximum number of provider calls in flight.
	// If <= 0, DefaultMaxConcurrentFetches is used.
	MaxConcurrentFetches int64

	// FetchesPerSecond caps how often provider calls may start.
	// If 0, unlimited.
	FetchesPerSecond float64

	// FetchBurst is the token bucket size for FetchesPerSecond.
	// If <= 0, defaults to 1.
	FetchBurst int
}

// Controller governs access to a slow backend shared by several page
// managers (e.g. the row-header, column-header and cell managers of one view).
type Controller struct {
	cfg Config

	fetchSem *semaphore.Weighted
	limiter  *rate.Limiter

	inFlight atomic.Int64
	started  atomic.Int64
	waited   atomic.Int64 // nanoseconds spent waiting for a slot or token
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = DefaultMaxConcurrentFetches
	}
	if cfg.FetchBurst <= 0 {
		cfg.FetchBurst = 1
	}

	c := &Controller{
		cfg:      cfg,
		fetchSem: semaphore.NewWeighted(cfg.MaxConcurrentFetches),
	}

	if cfg.FetchesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.FetchesPerSecond), cfg.FetchBurst)
	}

	return c
}

// AcquireFetch blocks until a fetch may start: the rate limiter allows it and
// a concurrency slot is free. Every successful call must be paired with
// ReleaseFetch.
func (c *Controller) AcquireFetch(ctx context.Context) error {
	if c == nil {
		return nil
	}

	start := time.Now()
	defer func() { c.waited.Add(int64(time.Since(start))) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := c.fetchSem.Acquire(ctx, 1); err != nil {
		return err
	}

	c.inFlight.Add(1)
	c.started.Add(1)
	return nil
}

// TryAcquireFetch attempts to start a fetch without blocking.
func (c *Controller) TryAcquireFetch() bool {
	if c == nil {
		return true
	}
	if c.limiter != nil && !c.limiter.AllowN(time.Now(), 1) {
		return false
	}
	if !c.fetchSem.TryAcquire(1) {
		return false
	}
	c.inFlight.Add(1)
	c.started.Add(1)
	return true
}

// ReleaseFetch releases a slot obtained by AcquireFetch or TryAcquireFetch.
func (c *Controller) ReleaseFetch() {
	if c == nil {
		return
	}
	c.inFlight.Add(-1)
	c.fetchSem.Release(1)
}

// InFlight returns the number of fetches currently holding a slot.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// Started returns the number of fetches admitted so far.
func (c *Controller) Started() int64 {
	if c == nil {
		return 0
	}
	return c.started.Load()
}

// WaitTime returns the cumulative time callers spent in AcquireFetch.
func (c *Controller) WaitTime() time.Duration {
	if c == nil {
		return 0
	}
	return time.Duration(c.waited.Load())
}

// MaxConcurrentFetches returns the configured concurrency limit.
func (c *Controller) MaxConcurrentFetches() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MaxConcurrentFetches
}
