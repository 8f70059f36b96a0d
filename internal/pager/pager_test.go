package pager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/pagegrid/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// fetcher returns "k<key>#<n>" where n counts fetches of that key.
type fetcher struct {
	mu    sync.Mutex
	calls map[int]int
	hold  chan struct{}
	fail  error
}

func newFetcher() *fetcher {
	return &fetcher{calls: make(map[int]int)}
}

func (f *fetcher) fetch(ctx context.Context, key int) (string, error) {
	f.mu.Lock()
	f.calls[key]++
	n := f.calls[key]
	hold, fail := f.hold, f.fail
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail != nil {
		return "", fail
	}
	return fmt.Sprintf("k%d#%d", key, n), nil
}

func (f *fetcher) count(key int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fetcher) holdAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = make(chan struct{})
}

func (f *fetcher) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hold != nil {
		close(f.hold)
		f.hold = nil
	}
}

func (f *fetcher) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func newPager(t *testing.T, f *fetcher, cfg Config[int]) *Pager[int, string] {
	t.Helper()
	if cfg.MaxPages == 0 {
		cfg.MaxPages = 4
	}
	p := New(f.fetch, cfg)
	t.Cleanup(func() {
		f.release()
		_ = p.Close()
	})
	return p
}

func residentKeys(p *Pager[int, string]) []int {
	var keys []int
	for _, info := range p.Pages() {
		keys = append(keys, info.Key)
	}
	return keys
}

func TestPager_GetMissThenHit(t *testing.T) {
	f := newFetcher()
	p := newPager(t, f, Config[int]{})

	v, state := p.Get(7)
	assert.Equal(t, StateLoading, state)
	assert.Empty(t, v)

	require.Eventually(t, func() bool {
		_, state := p.Get(7)
		return state == StateLoaded
	}, waitFor, time.Millisecond)

	v, state = p.Get(7)
	assert.Equal(t, StateLoaded, state)
	assert.Equal(t, "k7#1", v)
	assert.Equal(t, 1, f.count(7))
}

func TestPager_Coalescing(t *testing.T) {
	f := newFetcher()
	f.holdAll()
	p := newPager(t, f, Config[int]{})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, state := p.Get(3)
			assert.Equal(t, StateLoading, state)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return f.count(3) == 1 }, waitFor, time.Millisecond)

	// Blocking loaders attach to the same fetch.
	results := make(chan string, 5)
	for range 5 {
		go func() {
			v, err := p.Load(context.Background(), 3)
			assert.NoError(t, err)
			results <- v
		}()
	}

	f.release()
	for range 5 {
		assert.Equal(t, "k3#1", <-results)
	}
	assert.Equal(t, 1, f.count(3))
	assert.Equal(t, int64(1), p.Stats().Fetches)
}

func TestPager_EvictsLeastRecentlyUsed(t *testing.T) {
	f := newFetcher()
	p := newPager(t, f, Config[int]{MaxPages: 2})
	ctx := context.Background()

	// 1. Load 0 and 1.
	_, err := p.Load(ctx, 0)
	require.NoError(t, err)
	_, err = p.Load(ctx, 1)
	require.NoError(t, err)

	// 2. Touch 0 so that 1 becomes the LRU page.
	_, state := p.Get(0)
	require.Equal(t, StateLoaded, state)

	// 3. Load 2 -> 1 is evicted.
	_, err = p.Load(ctx, 2)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{0, 2}, residentKeys(p))
	assert.Equal(t, int64(1), p.Stats().Evictions)

	// 4. Accessing 1 again fetches it again.
	_, err = p.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, f.count(1))
	assert.LessOrEqual(t, len(p.Pages()), 2)
}

func TestPager_NeverEvictsLoadingPages(t *testing.T) {
	f := newFetcher()
	f.holdAll()
	p := newPager(t, f, Config[int]{MaxPages: 1})

	p.Get(0)
	p.Get(1)
	p.Get(2)

	// Every page is loading, so the bound is temporarily exceeded.
	assert.Len(t, p.Pages(), 3)
	assert.Equal(t, 3, p.Stats().Loading)
	assert.Zero(t, p.Stats().Evictions)

	f.release()

	require.Eventually(t, func() bool {
		s := p.Stats()
		return s.Loading == 0 && s.Resident == 1
	}, waitFor, time.Millisecond)
}

func TestPager_DiscardsCompletionAfterInvalidate(t *testing.T) {
	f := newFetcher()
	f.holdAll()
	p := newPager(t, f, Config[int]{})

	var events atomic.Int32
	p.Subscribe(func(Event[int]) { events.Add(1) })

	p.Get(5)
	require.Eventually(t, func() bool { return f.count(5) == 1 }, waitFor, time.Millisecond)

	assert.Equal(t, 1, p.Invalidate())
	f.release()

	// The canceled fetch must not resurrect the page.
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, p.Pages())
	assert.Zero(t, events.Load())

	// A new request starts a new fetch.
	v, err := p.Load(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "k5#2", v)
}

func TestPager_Expiry(t *testing.T) {
	f := newFetcher()
	clock := testutil.NewClock(time.Unix(0, 0))
	p := newPager(t, f, Config[int]{TTL: time.Minute, Now: clock.Now})

	v, err := p.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "k1#1", v)

	// Within TTL: served from cache.
	clock.Advance(30 * time.Second)
	v, state := p.Get(1)
	assert.Equal(t, StateLoaded, state)
	assert.Equal(t, "k1#1", v)

	// Idle beyond TTL: placeholder and exactly one re-fetch.
	clock.Advance(61 * time.Second)
	f.holdAll()
	v, state = p.Get(1)
	assert.Equal(t, StateLoading, state)
	assert.Empty(t, v)
	p.Get(1)
	p.Get(1)
	f.release()

	v, err = p.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "k1#2", v)
	assert.Equal(t, 2, f.count(1))
	assert.Equal(t, int64(1), p.Stats().Expiries)
}

func TestPager_FailureIsRetriedOnAccess(t *testing.T) {
	f := newFetcher()
	boom := errors.New("boom")
	f.failWith(boom)
	p := newPager(t, f, Config[int]{})

	events := make(chan Event[int], 4)
	p.Subscribe(func(ev Event[int]) { events <- ev })

	_, err := p.Load(context.Background(), 2)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Event[int]{Key: 2, State: StateFailed}, <-events)

	f.failWith(nil)

	// Next access retries.
	_, state := p.Get(2)
	assert.Equal(t, StateLoading, state)
	assert.Equal(t, Event[int]{Key: 2, State: StateLoaded}, <-events)

	v, state := p.Get(2)
	assert.Equal(t, StateLoaded, state)
	assert.Equal(t, "k2#2", v)
}

func TestPager_RetryDelay(t *testing.T) {
	f := newFetcher()
	f.failWith(errors.New("boom"))
	clock := testutil.NewClock(time.Unix(0, 0))
	p := newPager(t, f, Config[int]{RetryDelay: 5 * time.Second, Now: clock.Now})

	_, err := p.Load(context.Background(), 0)
	require.Error(t, err)

	_, state := p.Get(0)
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, 1, f.count(0))

	clock.Advance(5 * time.Second)
	f.failWith(nil)

	_, err = p.Load(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, f.count(0))
}

func TestPager_WrapError(t *testing.T) {
	f := newFetcher()
	f.failWith(errors.New("raw"))
	wrapped := errors.New("wrapped")
	p := newPager(t, f, Config[int]{WrapError: func(int, error) error { return wrapped }})

	_, err := p.Load(context.Background(), 0)
	assert.Equal(t, wrapped, err)
}

func TestPager_SubscribeCancel(t *testing.T) {
	f := newFetcher()
	p := newPager(t, f, Config[int]{})

	var a, b atomic.Int32
	cancelA := p.Subscribe(func(Event[int]) { a.Add(1) })
	p.Subscribe(func(Event[int]) { b.Add(1) })

	_, err := p.Load(context.Background(), 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, waitFor, time.Millisecond)

	cancelA()
	cancelA() // idempotent

	_, err = p.Load(context.Background(), 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.Load() == 2 }, waitFor, time.Millisecond)
	assert.Equal(t, int32(1), a.Load())
}

func TestPager_Dispatch(t *testing.T) {
	f := newFetcher()
	queue := make(chan func(), 4)
	p := newPager(t, f, Config[int]{Dispatch: func(fn func()) { queue <- fn }})

	var got []Event[int]
	p.Subscribe(func(ev Event[int]) { got = append(got, ev) })

	_, err := p.Load(context.Background(), 9)
	require.NoError(t, err)

	// Nothing runs until the "UI thread" drains the queue.
	assert.Empty(t, got)
	(<-queue)()
	assert.Equal(t, []Event[int]{{Key: 9, State: StateLoaded}}, got)
}

func TestPager_LoadContextCanceled(t *testing.T) {
	f := newFetcher()
	f.holdAll()
	p := newPager(t, f, Config[int]{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Load(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPager_Close(t *testing.T) {
	f := newFetcher()
	p := newPager(t, f, Config[int]{})

	_, err := p.Load(context.Background(), 0)
	require.NoError(t, err)

	f.holdAll()
	p.Get(1)
	require.Eventually(t, func() bool { return f.count(1) == 1 }, waitFor, time.Millisecond)

	// Close cancels the held fetch and waits for it.
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	// Resident data stays readable, nothing new is fetched.
	v, state := p.Get(0)
	assert.Equal(t, StateLoaded, state)
	assert.Equal(t, "k0#1", v)

	_, state = p.Get(2)
	assert.Equal(t, StateEmpty, state)

	_, err = p.Load(context.Background(), 3)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 2, f.total())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}

type countingMetrics struct {
	hits, misses atomic.Int64
}

func (m *countingMetrics) RecordHit()                       { m.hits.Add(1) }
func (m *countingMetrics) RecordMiss()                      { m.misses.Add(1) }
func (m *countingMetrics) RecordFetch(time.Duration, error) {}
func (m *countingMetrics) RecordEviction()                  {}
func (m *countingMetrics) RecordExpiry()                    {}

func TestPager_StatsCountOnlyFreshHits(t *testing.T) {
	f := newFetcher()
	f.holdAll()
	mc := &countingMetrics{}
	p := newPager(t, f, Config[int]{Metrics: mc})

	// 1. Accesses to a loading page are neither hits nor misses.
	for range 3 {
		_, state := p.Get(0)
		assert.Equal(t, StateLoading, state)
	}
	s := p.Stats()
	assert.Zero(t, s.Hits)
	assert.Equal(t, int64(1), s.Misses)

	// 2. Once loaded, accesses are hits.
	f.release()
	_, err := p.Load(context.Background(), 0)
	require.NoError(t, err)
	p.Get(0)

	s = p.Stats()
	assert.Equal(t, s.Hits, mc.hits.Load())
	assert.Equal(t, s.Misses, mc.misses.Load())
	assert.Equal(t, int64(1), s.Misses)
	assert.Positive(t, s.Hits)
}
