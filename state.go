package pagegrid

import "github.com/hupe1980/pagegrid/internal/pager"

// PageState is the load state of a page or block.
type PageState = pager.State

// Page states.
const (
	StateEmpty   = pager.StateEmpty
	StateLoading = pager.StateLoading
	StateLoaded  = pager.StateLoaded
	StateFailed  = pager.StateFailed
)

// Stats summarizes the activity of a manager.
type Stats = pager.Stats

// placeholder returns the Item shown for a page that is not loaded.
func placeholder[T any](state PageState) Item[T] {
	if state == StateFailed {
		return Failed[T]()
	}
	return Pending[T]()
}

func newPagerConfig[K comparable](o options, wrap func(K, error) error) pager.Config[K] {
	return pager.Config[K]{
		MaxPages:   o.cfg.MaxPages,
		TTL:        o.cfg.TTL,
		RetryDelay: o.cfg.RetryDelay,
		Now:        o.clock,
		Controller: o.controller,
		Logger:     o.logger.Logger,
		Metrics:    o.metrics,
		Dispatch:   o.dispatch,
		WrapError:  wrap,
	}
}
