package pagegrid

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pagegrid/internal/pager"
	"github.com/hupe1980/pagegrid/provider"
)

// PageEvent reports that a 1-D page finished loading or failed.
// Subscribers re-render the indices in Range.
type PageEvent struct {
	Page  int
	Range provider.Range
	State PageState
}

// PageInfo is a snapshot of a cached 1-D page.
type PageInfo struct {
	Page       int
	Range      provider.Range
	State      PageState
	LastAccess time.Time
}

// ListManager serves a 1-D sequence of items in fixed-size pages fetched on
// demand from a ListProvider.
//
// GetItem never blocks: it returns a Ready item from a fresh loaded page, or a
// placeholder while the page is fetched in the background. Subscribers are
// told when a page completes so the caller can re-render.
//
// A ListManager is safe for concurrent use.
type ListManager[T any] struct {
	provider provider.ListProvider[T]
	count    int
	pageSize int
	pager    *pager.Pager[int, []T]
	logger   *Logger
}

// NewListManager creates a manager over p. The provider's Count is read once.
func NewListManager[T any](p provider.ListProvider[T], opts ...Option) (*ListManager[T], error) {
	if p == nil {
		return nil, invalidConfig("nil provider")
	}

	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	count := p.Count()
	if count < 0 {
		return nil, invalidConfig("negative count %d", count)
	}

	m := &ListManager[T]{
		provider: p,
		count:    count,
		pageSize: o.cfg.PageSize,
		logger:   o.logger,
	}
	m.pager = pager.New(m.fetch, newPagerConfig(o, func(page int, err error) error {
		return wrapFetchError(strconv.Itoa(page), m.PageRange(page).String(), err)
	}))

	o.logger.LogCreated(context.Background(), "list", strconv.Itoa(count), o.cfg)

	return m, nil
}

func (m *ListManager[T]) fetch(ctx context.Context, page int) ([]T, error) {
	r := m.PageRange(page)

	items, err := m.provider.FetchRange(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(items) != r.Count {
		return nil, &ProtocolMismatchError{
			Page:     strconv.Itoa(page),
			Expected: strconv.Itoa(r.Count) + " items",
			Actual:   strconv.Itoa(len(items)) + " items",
		}
	}
	return items, nil
}

// Count returns the number of addressable items.
func (m *ListManager[T]) Count() int { return m.count }

// PageSize returns the number of items per page.
func (m *ListManager[T]) PageSize() int { return m.pageSize }

// PageCount returns the number of pages covering the sequence.
func (m *ListManager[T]) PageCount() int {
	return (m.count + m.pageSize - 1) / m.pageSize
}

// PageOf returns the page holding index.
func (m *ListManager[T]) PageOf(index int) int { return index / m.pageSize }

// PageRange returns the item range of page. The last page is clipped at Count.
func (m *ListManager[T]) PageRange(page int) provider.Range {
	start := page * m.pageSize
	return provider.Range{Start: start, Count: max(0, min(m.pageSize, m.count-start))}
}

func (m *ListManager[T]) checkIndex(index int) error {
	if index < 0 || index >= m.count {
		return &RangeError{Axis: "index", Value: index, Limit: m.count}
	}
	return nil
}

// GetItem returns the item at index without blocking. If its page is not
// loaded and fresh, a fetch is scheduled (or joined) and a placeholder is
// returned. GetItem panics with a *RangeError if index is out of range.
func (m *ListManager[T]) GetItem(index int) Item[T] {
	if err := m.checkIndex(index); err != nil {
		panic(err)
	}

	page := m.PageOf(index)
	items, state := m.pager.Get(page)
	if state != StateLoaded {
		return placeholder[T](state)
	}
	return Ready(items[index-page*m.pageSize])
}

// Load returns the item at index, waiting for its page to be fetched.
func (m *ListManager[T]) Load(ctx context.Context, index int) (T, error) {
	var zero T
	if err := m.checkIndex(index); err != nil {
		return zero, err
	}

	page := m.PageOf(index)
	items, err := m.pager.Load(ctx, page)
	if err != nil {
		return zero, translateError(err)
	}
	return items[index-page*m.pageSize], nil
}

// LoadRange returns count items starting at start. All covering pages are
// loaded concurrently.
func (m *ListManager[T]) LoadRange(ctx context.Context, start, count int) ([]T, error) {
	if count <= 0 {
		return nil, nil
	}
	if err := m.checkIndex(start); err != nil {
		return nil, err
	}
	if err := m.checkIndex(start + count - 1); err != nil {
		return nil, err
	}

	first, last := m.PageOf(start), m.PageOf(start+count-1)
	pages := make([][]T, last-first+1)

	g, gctx := errgroup.WithContext(ctx)
	for i := range pages {
		g.Go(func() error {
			items, err := m.pager.Load(gctx, first+i)
			if err != nil {
				return translateError(err)
			}
			pages[i] = items
			return nil
		})
	}

	err := g.Wait()
	rng := provider.Range{Start: start, Count: count}
	m.logger.LogLoadRange(ctx, rng.String(), len(pages), err)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, count)
	for i, items := range pages {
		pr := m.PageRange(first + i).Intersect(rng)
		off := pr.Start - (first+i)*m.pageSize
		out = append(out, items[off:off+pr.Count]...)
	}
	return out, nil
}

// Subscribe registers fn to be called, through the configured dispatcher,
// whenever a page finishes loading or fails. The returned function cancels
// the subscription.
func (m *ListManager[T]) Subscribe(fn func(PageEvent)) (cancel func()) {
	return m.pager.Subscribe(func(ev pager.Event[int]) {
		fn(PageEvent{Page: ev.Key, Range: m.PageRange(ev.Key), State: ev.State})
	})
}

// Invalidate drops all cached pages and cancels in-flight fetches. The next
// access re-fetches. It returns the number of pages dropped.
func (m *ListManager[T]) Invalidate() int {
	n := m.pager.Invalidate()
	m.logger.LogInvalidate(context.Background(), n)
	return n
}

// Pages returns snapshots of the cached pages, most recently used first.
func (m *ListManager[T]) Pages() []PageInfo {
	infos := m.pager.Pages()
	out := make([]PageInfo, len(infos))
	for i, info := range infos {
		out[i] = PageInfo{
			Page:       info.Key,
			Range:      m.PageRange(info.Key),
			State:      info.State,
			LastAccess: info.LastAccess,
		}
	}
	return out
}

// Stats returns cache activity counters.
func (m *ListManager[T]) Stats() Stats { return m.pager.Stats() }

// Close cancels outstanding fetches and waits for them to return. Cached pages
// stay readable; GetItem returns placeholders for anything else.
func (m *ListManager[T]) Close() error { return m.pager.Close() }
