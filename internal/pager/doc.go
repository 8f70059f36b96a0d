// Package pager implements the page state machine shared by the 1-D and 2-D
// page managers.
//
// A Pager maps a page key (an int for lists, a block pair for grids) to a
// Page and drives each page through
//
//	Empty -> Loading -> Loaded | Failed
//	Loaded -> Loading   (expired on access)
//	Failed -> Loading   (next access, after RetryDelay)
//
// Invariants:
//   - At most one fetch is in flight per resident key. Concurrent requests
//     for a Loading page attach to it instead of fetching again.
//   - After any insertion or completion the number of resident pages is at
//     most MaxPages, unless every surplus page is Loading. Loading pages are
//     never evicted.
//   - A fetch that completes after its page was evicted or invalidated is
//     discarded. It never re-inserts the page.
//
// All state is guarded by a single mutex. Fetches run on their own
// goroutines; subscribers are invoked outside the lock through the
// configured dispatcher.
package pager
