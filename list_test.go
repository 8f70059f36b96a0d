package pagegrid_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pagegrid"
	"github.com/hupe1980/pagegrid/provider"
	"github.com/hupe1980/pagegrid/resource"
	"github.com/hupe1980/pagegrid/testutil"
)

const waitFor = 2 * time.Second

func itemName(i int) string { return fmt.Sprintf("item%d", i) }

func newList(t *testing.T, n int, opts ...pagegrid.Option) (*pagegrid.ListManager[string], *testutil.ListStub[string]) {
	t.Helper()

	stub := testutil.NewListStub(n, itemName)
	m, err := pagegrid.NewListManager[string](stub, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, stub
}

func eventuallyReady[T any](t *testing.T, get func() pagegrid.Item[T]) T {
	t.Helper()

	var v T
	require.Eventually(t, func() bool {
		var ok bool
		v, ok = get().Value()
		return ok
	}, waitFor, time.Millisecond)
	return v
}

func TestListManager_PageRanges(t *testing.T) {
	m, _ := newList(t, 100, pagegrid.WithPageSize(32))

	assert.Equal(t, 100, m.Count())
	assert.Equal(t, 4, m.PageCount())

	tests := []struct {
		page int
		want provider.Range
	}{
		{0, provider.Range{Start: 0, Count: 32}},
		{1, provider.Range{Start: 32, Count: 32}},
		{2, provider.Range{Start: 64, Count: 32}},
		{3, provider.Range{Start: 96, Count: 4}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.page), func(t *testing.T) {
			assert.Equal(t, tt.want, m.PageRange(tt.page))
		})
	}

	assert.Equal(t, 0, m.PageOf(31))
	assert.Equal(t, 1, m.PageOf(32))
	assert.Equal(t, 3, m.PageOf(99))
}

func TestListManager_GetItem(t *testing.T) {
	m, stub := newList(t, 100, pagegrid.WithPageSize(32))

	first := m.GetItem(5)
	assert.False(t, first.IsReady())

	assert.Equal(t, "item5", eventuallyReady(t, func() pagegrid.Item[string] { return m.GetItem(5) }))

	for i := range 32 {
		v, ok := m.GetItem(i).Value()
		require.True(t, ok, "index %d", i)
		assert.Equal(t, itemName(i), v)
	}
	assert.Equal(t, []provider.Range{{Start: 0, Count: 32}}, stub.Calls())
}

func TestListManager_LastPageClipped(t *testing.T) {
	m, stub := newList(t, 100, pagegrid.WithPageSize(32))

	v, err := m.Load(t.Context(), 99)
	require.NoError(t, err)
	assert.Equal(t, "item99", v)
	assert.Equal(t, []provider.Range{{Start: 96, Count: 4}}, stub.Calls())
}

func TestListManager_Coalescing(t *testing.T) {
	m, stub := newList(t, 100, pagegrid.WithPageSize(32))
	stub.Hold()

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.False(t, m.GetItem(i%32).IsReady())
		}()
	}
	wg.Wait()

	stub.Release()
	eventuallyReady(t, func() pagegrid.Item[string] { return m.GetItem(0) })

	assert.Equal(t, 1, stub.CallCount())
}

func TestListManager_LoadJoinsInFlightFetch(t *testing.T) {
	m, stub := newList(t, 10, pagegrid.WithPageSize(10))
	stub.Hold()

	m.GetItem(0)

	errs := make(chan error, 5)
	for i := range 5 {
		go func() {
			_, err := m.Load(t.Context(), i)
			errs <- err
		}()
	}

	stub.Release()
	for range 5 {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, 1, stub.CallCount())
}

func TestListManager_Eviction(t *testing.T) {
	m, stub := newList(t, 100, pagegrid.WithPageSize(10), pagegrid.WithMaxPages(2))
	ctx := t.Context()

	for _, i := range []int{0, 10, 20} {
		_, err := m.Load(ctx, i)
		require.NoError(t, err)
	}

	pages := m.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, 2, pages[0].Page)
	assert.Equal(t, 1, pages[1].Page)

	// Touch page 1 so that page 2 becomes the least recently used.
	assert.True(t, m.GetItem(15).IsReady())

	_, err := m.Load(ctx, 30)
	require.NoError(t, err)

	pages = m.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, 3, pages[0].Page)
	assert.Equal(t, 1, pages[1].Page)
	assert.Equal(t, int64(2), m.Stats().Evictions)

	// Page 0 was evicted: accessing it fetches again.
	_, err = m.Load(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, stub.CallCount())
}

func TestListManager_LoadingPagesAreNotEvicted(t *testing.T) {
	m, stub := newList(t, 100, pagegrid.WithPageSize(10), pagegrid.WithMaxPages(1))
	stub.Hold()

	m.GetItem(0)
	m.GetItem(10)
	m.GetItem(20)

	assert.Len(t, m.Pages(), 3)
	for _, p := range m.Pages() {
		assert.Equal(t, pagegrid.StateLoading, p.State)
	}

	stub.Release()
	require.Eventually(t, func() bool {
		s := m.Stats()
		return s.Loading == 0 && s.Resident == 1
	}, waitFor, time.Millisecond)
}

func TestListManager_Expiry(t *testing.T) {
	clock := testutil.NewClock(time.Unix(0, 0))
	mc := &pagegrid.BasicMetricsCollector{}
	m, stub := newList(t, 20,
		pagegrid.WithPageSize(10),
		pagegrid.WithTTL(time.Minute),
		pagegrid.WithClock(clock.Now),
		pagegrid.WithMetricsCollector(mc),
	)

	_, err := m.Load(t.Context(), 3)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	assert.True(t, m.GetItem(3).IsReady())

	stub.Hold()
	clock.Advance(61 * time.Second)
	assert.Equal(t, pagegrid.ItemPending, m.GetItem(3).Status())
	assert.Equal(t, pagegrid.ItemPending, m.GetItem(4).Status())
	stub.Release()

	assert.Equal(t, "item3", eventuallyReady(t, func() pagegrid.Item[string] { return m.GetItem(3) }))
	assert.Equal(t, 2, stub.CallCount())
	assert.Equal(t, int64(1), m.Stats().Expiries)
	assert.Equal(t, int64(1), mc.GetStats().Expiries)
}

func TestListManager_ShortFetchFails(t *testing.T) {
	clock := testutil.NewClock(time.Unix(0, 0))
	m, stub := newList(t, 10,
		pagegrid.WithPageSize(10),
		pagegrid.WithRetryDelay(time.Second),
		pagegrid.WithClock(clock.Now),
	)
	stub.ShortBy(5)

	_, err := m.Load(t.Context(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, pagegrid.ErrFetchFailed)
	assert.ErrorIs(t, err, pagegrid.ErrProtocolMismatch)

	var pm *pagegrid.ProtocolMismatchError
	require.ErrorAs(t, err, &pm)
	assert.Equal(t, "10 items", pm.Expected)
	assert.Equal(t, "5 items", pm.Actual)

	// Within the retry delay the page stays failed.
	assert.Equal(t, pagegrid.ItemFailed, m.GetItem(0).Status())
	assert.Equal(t, 1, stub.CallCount())

	stub.ShortBy(0)
	clock.Advance(time.Second)

	assert.Equal(t, pagegrid.ItemPending, m.GetItem(0).Status())
	assert.Equal(t, "item0", eventuallyReady(t, func() pagegrid.Item[string] { return m.GetItem(0) }))
	assert.Equal(t, 2, stub.CallCount())
}

func TestListManager_FailureRetriedOnAccess(t *testing.T) {
	m, stub := newList(t, 10, pagegrid.WithPageSize(10))
	stub.ShortBy(5)

	_, err := m.Load(t.Context(), 0)
	require.Error(t, err)

	// No retry delay: the next access re-dispatches.
	assert.False(t, m.GetItem(0).IsReady())
	require.Eventually(t, func() bool { return stub.CallCount() == 2 }, waitFor, time.Millisecond)
}

func TestListManager_FetchErrorHidesCause(t *testing.T) {
	m, stub := newList(t, 10)
	boom := errors.New("session lost")
	stub.FailWith(boom)

	_, err := m.Load(t.Context(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, pagegrid.ErrFetchFailed)
	assert.NotErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "session lost")

	var fe *pagegrid.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "0", fe.Page)
	assert.Equal(t, "[0,10)", fe.Range)
}

func TestListManager_RangeErrors(t *testing.T) {
	m, _ := newList(t, 100)

	assert.PanicsWithError(t, "index 100 out of range [0,100)", func() { m.GetItem(100) })
	assert.PanicsWithError(t, "index -1 out of range [0,100)", func() { m.GetItem(-1) })

	_, err := m.Load(t.Context(), 100)
	var re *pagegrid.RangeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "index", re.Axis)

	_, err = m.LoadRange(t.Context(), 90, 20)
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 109, re.Value)
}

func TestListManager_LoadRange(t *testing.T) {
	m, stub := newList(t, 100, pagegrid.WithPageSize(32))

	items, err := m.LoadRange(t.Context(), 30, 40)
	require.NoError(t, err)
	require.Len(t, items, 40)
	for i, v := range items {
		assert.Equal(t, itemName(30+i), v)
	}
	assert.Equal(t, 3, stub.CallCount())

	items, err = m.LoadRange(t.Context(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListManager_Subscribe(t *testing.T) {
	m, stub := newList(t, 100, pagegrid.WithPageSize(32))

	events := make(chan pagegrid.PageEvent, 4)
	cancel := m.Subscribe(func(ev pagegrid.PageEvent) { events <- ev })

	m.GetItem(97)

	select {
	case ev := <-events:
		assert.Equal(t, 3, ev.Page)
		assert.Equal(t, provider.Range{Start: 96, Count: 4}, ev.Range)
		assert.Equal(t, pagegrid.StateLoaded, ev.State)
	case <-time.After(waitFor):
		t.Fatal("no event")
	}

	stub.FailWith(errors.New("boom"))
	m.GetItem(0)
	select {
	case ev := <-events:
		assert.Equal(t, 0, ev.Page)
		assert.Equal(t, pagegrid.StateFailed, ev.State)
	case <-time.After(waitFor):
		t.Fatal("no failure event")
	}

	cancel()
	stub.FailWith(nil)
	_, err := m.Load(t.Context(), 40)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestListManager_Dispatcher(t *testing.T) {
	queue := make(chan func(), 8)
	m, _ := newList(t, 10, pagegrid.WithDispatcher(func(f func()) { queue <- f }))

	var got []int
	m.Subscribe(func(ev pagegrid.PageEvent) { got = append(got, ev.Page) })

	_, err := m.Load(t.Context(), 0)
	require.NoError(t, err)

	var f func()
	select {
	case f = <-queue:
	case <-time.After(waitFor):
		t.Fatal("nothing dispatched")
	}
	assert.Empty(t, got)
	f()
	assert.Equal(t, []int{0}, got)
}

func TestListManager_Invalidate(t *testing.T) {
	m, stub := newList(t, 100, pagegrid.WithPageSize(32))

	_, err := m.LoadRange(t.Context(), 0, 64)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Invalidate())
	assert.Empty(t, m.Pages())
	assert.False(t, m.GetItem(0).IsReady())

	eventuallyReady(t, func() pagegrid.Item[string] { return m.GetItem(0) })
	assert.Equal(t, 3, stub.CallCount())
}

func TestListManager_InvalidateDiscardsInFlight(t *testing.T) {
	m, stub := newList(t, 10)
	stub.Hold()

	m.GetItem(0)
	require.Eventually(t, func() bool { return stub.CallCount() == 1 }, waitFor, time.Millisecond)

	m.Invalidate()
	stub.Release()

	assert.Never(t, func() bool { return len(m.Pages()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestListManager_Close(t *testing.T) {
	m, stub := newList(t, 100, pagegrid.WithPageSize(10))

	_, err := m.Load(t.Context(), 0)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.True(t, m.GetItem(0).IsReady())
	assert.False(t, m.GetItem(50).IsReady())

	_, err = m.Load(t.Context(), 50)
	assert.ErrorIs(t, err, pagegrid.ErrClosed)
	assert.Equal(t, 1, stub.CallCount())
}

func TestListManager_SharedController(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxConcurrentFetches: 1})
	m, stub := newList(t, 100, pagegrid.WithPageSize(10), pagegrid.WithController(rc))
	stub.Hold()

	m.GetItem(0)
	m.GetItem(10)
	m.GetItem(20)

	require.Eventually(t, func() bool { return stub.CallCount() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, int64(1), rc.InFlight())

	stub.Release()
	require.Eventually(t, func() bool { return m.Stats().Loading == 0 }, waitFor, time.Millisecond)
	assert.Equal(t, 3, stub.CallCount())
	assert.Equal(t, int64(0), rc.InFlight())
}

func TestListManager_Metrics(t *testing.T) {
	mc := &pagegrid.BasicMetricsCollector{}
	m, _ := newList(t, 100, pagegrid.WithPageSize(10), pagegrid.WithMetricsCollector(mc))

	_, err := m.Load(t.Context(), 0)
	require.NoError(t, err)
	m.GetItem(1)
	m.GetItem(2)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.FetchCount)
	assert.Zero(t, stats.FetchErrors)
}

func TestNewListManager_InvalidConfig(t *testing.T) {
	stub := testutil.NewListStub(10, itemName)

	tests := []struct {
		name string
		p    provider.ListProvider[string]
		opts []pagegrid.Option
	}{
		{"nil provider", nil, nil},
		{"zero page size", stub, []pagegrid.Option{pagegrid.WithPageSize(0)}},
		{"zero max pages", stub, []pagegrid.Option{pagegrid.WithMaxPages(0)}},
		{"negative ttl", stub, []pagegrid.Option{pagegrid.WithTTL(-time.Second)}},
		{"negative count", provider.ListFunc[string]{N: -1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pagegrid.NewListManager(tt.p, tt.opts...)
			assert.ErrorIs(t, err, pagegrid.ErrInvalidConfig)
		})
	}
}

func TestListManager_LoadContextCanceled(t *testing.T) {
	m, stub := newList(t, 10)
	stub.Hold()
	defer stub.Release()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Load(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
