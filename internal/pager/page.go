package pager

import (
	"context"
	"time"
)

// State is the load state of a page.
type State uint8

const (
	// StateEmpty means the page holds no data and no fetch is running.
	StateEmpty State = iota
	// StateLoading means a fetch for the page is in flight.
	StateLoading
	// StateLoaded means the page holds the provider's data.
	StateLoaded
	// StateFailed means the last fetch failed. The page is retried on access.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Page is one cached unit. All fields are guarded by the owning Pager's mutex
// except key, which never changes.
type Page[K comparable, V any] struct {
	key   K
	state State
	value V // zero unless state == StateLoaded
	err   error

	lastAccess time.Time
	failedAt   time.Time

	fetchID uint64
	done    chan struct{} // closed when the current fetch finishes
	cancel  context.CancelFunc
}

// Info is a point-in-time snapshot of a page.
type Info[K comparable] struct {
	Key        K
	State      State
	LastAccess time.Time
}

func (pg *Page[K, V]) info() Info[K] {
	return Info[K]{Key: pg.key, State: pg.state, LastAccess: pg.lastAccess}
}

func (pg *Page[K, V]) clearValue() {
	var zero V
	pg.value = zero
}
