// Package pagegrid provides windowed paging and caching of large remote
// sequences and grids for UIs.
//
// A UI renders a data set of arbitrary size as if it were fully materialized,
// while the managers fetch only bounded pages from a slow, asynchronous
// provider on demand.
//
// # Quick Start
//
//	rows, _ := pagegrid.NewListManager[string](rowHeaders)
//	cells, _ := pagegrid.NewGridManager[string](cellProvider,
//	    pagegrid.WithPageSize(32),
//	    pagegrid.WithColumnPageSize(16),
//	)
//
//	cells.Subscribe(func(ev pagegrid.GridEvent) {
//	    redraw(ev.Range) // block became available (or failed)
//	})
//
//	item := cells.GetItem(row, col) // never blocks
//	if v, ok := item.Value(); ok {
//	    draw(v)
//	} else {
//	    drawPlaceholder(item.Status())
//	}
//
// # Paging
//
// A ListManager splits [0, Count) into pages of PageSize items; the last page
// is clipped at Count. A GridManager splits the grid into blocks of
// PageSize rows by ColumnPageSize columns, clipped at the trailing edges.
// One provider call fills one page or block.
//
// # Page Lifecycle
//
//	Empty -> Loading -> Loaded | Failed
//	Loaded -> Loading   (accessed after TTL of inactivity)
//	Failed -> Loading   (accessed again, after RetryDelay)
//
// Concurrent requests for a page share one fetch. At most MaxPages pages are
// cached; the least recently used page that is not loading is evicted.
// Completions for pages that were evicted or invalidated meanwhile are
// discarded.
//
// An expired page does not serve stale data: GetItem returns Pending until
// the re-fetch completes.
//
// # Errors
//
// Fetch failures never surface through GetItem. They turn the page Failed,
// are reported to subscribers and are retried on the next access. Blocking
// Load calls return a *FetchError or *ProtocolMismatchError, both matching
// ErrFetchFailed. Out-of-range indices are caller bugs: GetItem panics with a
// *RangeError.
//
// # Notifications
//
// Subscribers run outside the manager lock. WithDispatcher hands them to a UI
// event loop; by default they run on the goroutine that completed the fetch.
//
// # Providers
//
// Package provider defines the ListProvider and GridProvider contracts.
// Implementations live in source/eval (evaluation session), source/sqltable
// (SQL tables) and source/frame (compressed frame blobs in a blobstore).
package pagegrid
