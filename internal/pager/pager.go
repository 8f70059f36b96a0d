package pager

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hupe1980/pagegrid/internal/cache"
	"github.com/hupe1980/pagegrid/resource"
)

// ErrClosed is returned by Load after Close.
var ErrClosed = errors.New("pager closed")

// Fetcher loads the data for one page.
type Fetcher[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Metrics receives cache events. All methods must be safe for concurrent use.
type Metrics interface {
	RecordHit()
	RecordMiss()
	RecordFetch(duration time.Duration, err error)
	RecordEviction()
	RecordExpiry()
}

// Event reports that a page finished loading, successfully or not.
type Event[K comparable] struct {
	Key   K
	State State
}

// Config configures a Pager.
type Config[K comparable] struct {
	// MaxPages bounds the number of resident pages. Must be > 0.
	MaxPages int
	// TTL is the idle time after which a loaded page is re-fetched on access.
	// Zero disables expiry.
	TTL time.Duration
	// RetryDelay is the minimum time between a failure and the next fetch of
	// the same page. Zero retries on the next access.
	RetryDelay time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Controller bounds concurrent fetches. May be nil.
	Controller *resource.Controller
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
	// Metrics may be nil.
	Metrics Metrics
	// Dispatch runs subscriber callbacks. Defaults to calling them directly on
	// the goroutine that completed the fetch.
	Dispatch func(func())
	// WrapError maps any failure (including a canceled slot acquisition)
	// to the error stored on the page. May be nil.
	WrapError func(key K, err error) error
}

// Stats summarizes pager activity.
type Stats struct {
	Resident int
	Loading  int
	// Hits counts accesses served from a fresh loaded page.
	Hits int64
	// Misses counts accesses that started a fetch: absent, expired or
	// failed pages. Accesses to a page already loading count as neither.
	Misses    int64
	Fetches   int64
	Evictions int64
	Expiries  int64
}

type subscriber[K comparable] struct {
	id uint64
	fn func(Event[K])
}

// Pager caches pages of V keyed by K.
type Pager[K comparable, V any] struct {
	mu    sync.Mutex
	pages *cache.LRU[K, *Page[K, V]]
	fetch Fetcher[K, V]
	cfg   Config[K]

	nextFetch uint64
	subs      []subscriber[K]
	nextSub   uint64

	hits      int64
	misses    int64
	fetches   int64
	evictions int64
	expiries  int64

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// New creates a Pager. cfg.MaxPages must be positive.
func New[K comparable, V any](fetch Fetcher[K, V], cfg Config[K]) *Pager[K, V] {
	if cfg.MaxPages <= 0 {
		panic("pager: MaxPages must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.Dispatch == nil {
		cfg.Dispatch = func(f func()) { f() }
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pager[K, V]{
		pages:  cache.NewLRU[K, *Page[K, V]](),
		fetch:  fetch,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Get returns the page value if it is loaded and fresh, together with the
// page state. It never blocks: on a miss, an expired page or a failed page it
// schedules a fetch (unless one is already in flight) and returns the zero
// value with StateLoading.
func (p *Pager[K, V]) Get(key K) (V, State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg := p.touch(key)
	if pg == nil {
		var zero V
		return zero, StateEmpty
	}
	return pg.value, pg.state
}

// Load returns the page value, waiting for an in-flight or newly scheduled
// fetch. It returns the page's error if the fetch failed, and ctx.Err() if
// ctx is done first.
func (p *Pager[K, V]) Load(ctx context.Context, key K) (V, error) {
	var zero V

	for {
		p.mu.Lock()
		pg := p.touch(key)
		if pg == nil {
			p.mu.Unlock()
			return zero, ErrClosed
		}
		switch pg.state {
		case StateLoaded:
			v := pg.value
			p.mu.Unlock()
			return v, nil
		case StateFailed:
			err := pg.err
			p.mu.Unlock()
			return zero, err
		}
		done := pg.done
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-done:
		}

		p.mu.Lock()
		state, v, err := pg.state, pg.value, pg.err
		p.mu.Unlock()

		switch state {
		case StateLoaded:
			return v, nil
		case StateFailed:
			return zero, err
		}
		// Discarded (evicted or invalidated while loading): start over.
	}
}

// touch looks up key, records the access and schedules a fetch if needed.
// It returns nil if the pager is closed and the page is not resident.
// Must be called with p.mu held.
func (p *Pager[K, V]) touch(key K) *Page[K, V] {
	if p.closed {
		pg, _ := p.pages.Peek(key)
		return pg
	}

	now := p.cfg.Now()

	pg, ok := p.pages.Get(key)
	if !ok {
		p.miss()
		pg = &Page[K, V]{key: key, state: StateEmpty, lastAccess: now}
		p.pages.Add(key, pg)
		p.dispatch(pg)
		p.enforceLimit()
		return pg
	}

	switch pg.state {
	case StateLoaded:
		if p.cfg.TTL > 0 && now.Sub(pg.lastAccess) > p.cfg.TTL {
			p.expiries++
			p.cfg.Metrics.RecordExpiry()
			p.miss()
			p.cfg.Logger.Debug("page expired", "page", key, "idle", now.Sub(pg.lastAccess))
			pg.clearValue()
			pg.lastAccess = now
			p.dispatch(pg)
			return pg
		}
		p.hits++
		p.cfg.Metrics.RecordHit()
	case StateFailed:
		if now.Sub(pg.failedAt) >= p.cfg.RetryDelay {
			p.miss()
			p.dispatch(pg)
		}
	case StateEmpty:
		p.miss()
		p.dispatch(pg)
	}

	pg.lastAccess = now
	return pg
}

// miss records an access that needs a fetch. Must be called with p.mu held.
func (p *Pager[K, V]) miss() {
	p.misses++
	p.cfg.Metrics.RecordMiss()
}

// dispatch marks pg Loading and starts its fetch. Must be called with p.mu held.
func (p *Pager[K, V]) dispatch(pg *Page[K, V]) {
	p.nextFetch++
	id := p.nextFetch

	ctx, cancel := context.WithCancel(p.ctx)

	pg.state = StateLoading
	pg.err = nil
	pg.fetchID = id
	pg.done = make(chan struct{})
	pg.cancel = cancel

	p.fetches++
	p.wg.Add(1)
	go p.run(ctx, pg, id)
}

func (p *Pager[K, V]) run(ctx context.Context, pg *Page[K, V], id uint64) {
	defer p.wg.Done()

	var (
		v   V
		err error
	)

	start := time.Now()
	if err = p.cfg.Controller.AcquireFetch(ctx); err == nil {
		v, err = p.fetch(ctx, pg.key)
		p.cfg.Controller.ReleaseFetch()
	}
	p.cfg.Metrics.RecordFetch(time.Since(start), err)

	canceled := ctx.Err() != nil
	if err != nil && p.cfg.WrapError != nil {
		err = p.cfg.WrapError(pg.key, err)
	}

	p.complete(pg, id, v, err, canceled)
}

func (p *Pager[K, V]) complete(pg *Page[K, V], id uint64, v V, err error, canceled bool) {
	p.mu.Lock()

	if pg.fetchID != id || pg.done == nil {
		p.mu.Unlock()
		return
	}

	pg.cancel()
	pg.cancel = nil
	done := pg.done
	pg.done = nil

	if cur, ok := p.pages.Peek(pg.key); !ok || cur != pg {
		pg.state = StateEmpty
		pg.clearValue()
		p.mu.Unlock()
		close(done)
		p.cfg.Logger.Debug("discarding fetch result for evicted page", "page", pg.key)
		return
	}

	now := p.cfg.Now()
	pg.lastAccess = now
	if err != nil {
		pg.state = StateFailed
		pg.err = err
		pg.failedAt = now
		pg.clearValue()
	} else {
		pg.state = StateLoaded
		pg.value = v
	}

	// Completion counts as an access: move the page to the front.
	p.pages.Add(pg.key, pg)
	p.enforceLimit()

	ev := Event[K]{Key: pg.key, State: pg.state}
	var subs []subscriber[K]
	if !p.closed {
		subs = append(subs, p.subs...)
	}
	p.mu.Unlock()

	close(done)

	switch {
	case err != nil && canceled:
		p.cfg.Logger.Debug("page fetch canceled", "page", pg.key)
	case err != nil:
		p.cfg.Logger.Warn("page fetch failed", "page", pg.key, "error", err)
	}

	if len(subs) > 0 {
		p.cfg.Dispatch(func() {
			for _, s := range subs {
				s.fn(ev)
			}
		})
	}
}

// enforceLimit evicts least recently used non-loading pages until the bound
// holds. Must be called with p.mu held.
func (p *Pager[K, V]) enforceLimit() {
	for p.pages.Len() > p.cfg.MaxPages {
		key, _, ok := p.pages.Oldest(func(_ K, pg *Page[K, V]) bool {
			return pg.state == StateLoading
		})
		if !ok {
			return
		}
		p.pages.Remove(key)
		p.evictions++
		p.cfg.Metrics.RecordEviction()
		p.cfg.Logger.Debug("page evicted", "page", key)
	}
}

// Subscribe registers fn to be called whenever a page finishes loading.
// The returned function removes the subscription.
func (p *Pager[K, V]) Subscribe(fn func(Event[K])) (cancel func()) {
	p.mu.Lock()
	p.nextSub++
	id := p.nextSub
	p.subs = append(p.subs, subscriber[K]{id: id, fn: fn})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, s := range p.subs {
				if s.id == id {
					p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Invalidate drops every resident page and cancels in-flight fetches.
// It returns the number of pages dropped.
func (p *Pager[K, V]) Invalidate() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.pages.Invalidate(func(_ K, pg *Page[K, V]) bool {
		if pg.cancel != nil {
			pg.cancel()
		}
		return true
	})
	p.cfg.Logger.Debug("pages invalidated", "count", n)
	return n
}

// Pages returns snapshots of the resident pages, most recently used first.
func (p *Pager[K, V]) Pages() []Info[K] {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos := make([]Info[K], 0, p.pages.Len())
	p.pages.Range(func(_ K, pg *Page[K, V]) bool {
		infos = append(infos, pg.info())
		return true
	})
	return infos
}

// Stats returns activity counters.
func (p *Pager[K, V]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Resident:  p.pages.Len(),
		Hits:      p.hits,
		Misses:    p.misses,
		Fetches:   p.fetches,
		Evictions: p.evictions,
		Expiries:  p.expiries,
	}
	p.pages.Range(func(_ K, pg *Page[K, V]) bool {
		if pg.state == StateLoading {
			s.Loading++
		}
		return true
	})
	return s
}

// Close cancels in-flight fetches and waits for them to finish. Resident
// pages remain readable; no new fetches are started.
func (p *Pager[K, V]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordHit()                       {}
func (nopMetrics) RecordMiss()                      {}
func (nopMetrics) RecordFetch(time.Duration, error) {}
func (nopMetrics) RecordEviction()                  {}
func (nopMetrics) RecordExpiry()                    {}
