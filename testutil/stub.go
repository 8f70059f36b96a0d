package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/pagegrid/provider"
)

// gate blocks fetches between Hold and Release.
type gate struct {
	mu  sync.Mutex
	ch  chan struct{}
	err error
}

// Hold makes subsequent fetches block until Release.
func (g *gate) Hold() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ch == nil {
		g.ch = make(chan struct{})
	}
}

// Release unblocks held fetches.
func (g *gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ch != nil {
		close(g.ch)
		g.ch = nil
	}
}

// FailWith makes fetches return err. A nil err restores normal behavior.
func (g *gate) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// ListStub is a provider.ListProvider that records every call.
type ListStub[T any] struct {
	gate

	n    int
	item func(i int) T

	mu    sync.Mutex
	calls []provider.Range
	short int
}

// NewListStub returns a stub of n items whose values are item(i).
func NewListStub[T any](n int, item func(i int) T) *ListStub[T] {
	return &ListStub[T]{n: n, item: item}
}

// Count implements provider.ListProvider.
func (s *ListStub[T]) Count() int { return s.n }

// FetchRange implements provider.ListProvider.
func (s *ListStub[T]) FetchRange(ctx context.Context, r provider.Range) ([]T, error) {
	s.mu.Lock()
	s.calls = append(s.calls, r)
	short := s.short
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	count := max(r.Count-short, 0)
	out := make([]T, 0, count)
	for i := r.Start; i < r.Start+count; i++ {
		out = append(out, s.item(i))
	}
	return out, nil
}

// ShortBy makes fetches return k fewer items than requested.
func (s *ListStub[T]) ShortBy(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.short = k
}

// Calls returns the ranges requested so far.
func (s *ListStub[T]) Calls() []provider.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.Range(nil), s.calls...)
}

// CallCount returns the number of FetchRange calls.
func (s *ListStub[T]) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// GridStub is a provider.GridProvider that records every call.
type GridStub[T any] struct {
	gate

	rows, cols int
	cell       func(row, col int) T

	mu       sync.Mutex
	calls    []provider.GridRange
	clipRows int
}

// NewGridStub returns a rows x cols stub whose cells are cell(row, col).
func NewGridStub[T any](rows, cols int, cell func(row, col int) T) *GridStub[T] {
	return &GridStub[T]{rows: rows, cols: cols, cell: cell}
}

// RowCount implements provider.GridProvider.
func (s *GridStub[T]) RowCount() int { return s.rows }

// ColumnCount implements provider.GridProvider.
func (s *GridStub[T]) ColumnCount() int { return s.cols }

// FetchBlock implements provider.GridProvider.
func (s *GridStub[T]) FetchBlock(ctx context.Context, r provider.GridRange) (*provider.Grid[T], error) {
	s.mu.Lock()
	s.calls = append(s.calls, r)
	clip := s.clipRows
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	out := r
	out.Rows.Count = max(r.Rows.Count-clip, 0)
	return provider.NewGridFunc(out, s.cell), nil
}

// ClipRows makes fetches return a block k rows shorter than requested.
func (s *GridStub[T]) ClipRows(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clipRows = k
}

// Calls returns the blocks requested so far.
func (s *GridStub[T]) Calls() []provider.GridRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.GridRange(nil), s.calls...)
}

// CallCount returns the number of FetchBlock calls.
func (s *GridStub[T]) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
