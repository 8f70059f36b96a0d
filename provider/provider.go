package provider

import (
	"context"
	"fmt"
)

// ListProvider supplies a 1-D sequence of items.
type ListProvider[T any] interface {
	// Count returns the total number of items. It is read once by the page
	// manager and must stay stable for the provider's lifetime.
	Count() int
	// FetchRange returns exactly r.Count items covering [r.Start, r.End()).
	FetchRange(ctx context.Context, r Range) ([]T, error)
}

// GridProvider supplies a 2-D grid of cells.
type GridProvider[T any] interface {
	// RowCount returns the number of rows.
	RowCount() int
	// ColumnCount returns the number of columns.
	ColumnCount() int
	// FetchBlock returns a grid covering exactly r.
	FetchBlock(ctx context.Context, r GridRange) (*Grid[T], error)
}

// ListFunc adapts a count and a fetch function to ListProvider.
type ListFunc[T any] struct {
	N     int
	Fetch func(ctx context.Context, r Range) ([]T, error)
}

// Count implements ListProvider.
func (f ListFunc[T]) Count() int { return f.N }

// FetchRange implements ListProvider.
func (f ListFunc[T]) FetchRange(ctx context.Context, r Range) ([]T, error) {
	return f.Fetch(ctx, r)
}

// GridFunc adapts dimensions and a fetch function to GridProvider.
type GridFunc[T any] struct {
	Rows    int
	Columns int
	Fetch   func(ctx context.Context, r GridRange) (*Grid[T], error)
}

// RowCount implements GridProvider.
func (f GridFunc[T]) RowCount() int { return f.Rows }

// ColumnCount implements GridProvider.
func (f GridFunc[T]) ColumnCount() int { return f.Columns }

// FetchBlock implements GridProvider.
func (f GridFunc[T]) FetchBlock(ctx context.Context, r GridRange) (*Grid[T], error) {
	return f.Fetch(ctx, r)
}

// Static is an in-memory ListProvider backed by a slice.
type Static[T any] []T

// Count implements ListProvider.
func (s Static[T]) Count() int { return len(s) }

// FetchRange implements ListProvider.
func (s Static[T]) FetchRange(ctx context.Context, r Range) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Start < 0 || r.Count < 0 || r.End() > len(s) {
		return nil, fmt.Errorf("range %s outside [0,%d)", r, len(s))
	}
	out := make([]T, r.Count)
	copy(out, s[r.Start:r.End()])
	return out, nil
}

// StaticGrid is an in-memory GridProvider backed by a slice of rows.
// All rows must have the same length.
type StaticGrid[T any] [][]T

// RowCount implements GridProvider.
func (s StaticGrid[T]) RowCount() int { return len(s) }

// ColumnCount implements GridProvider.
func (s StaticGrid[T]) ColumnCount() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0])
}

// FetchBlock implements GridProvider.
func (s StaticGrid[T]) FetchBlock(ctx context.Context, r GridRange) (*Grid[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Rows.Start < 0 || r.Rows.End() > s.RowCount() || r.Columns.Start < 0 || r.Columns.End() > s.ColumnCount() {
		return nil, fmt.Errorf("block %s outside %dx%d grid", r, s.RowCount(), s.ColumnCount())
	}
	return NewGridFunc(r, func(row, col int) T { return s[row][col] }), nil
}

// IndexedHeaders returns positional header labels for r, used when a source
// has no row or column names. Row labels look like "[i,]" and column labels
// like "[,i]".
func IndexedHeaders(r Range, isRow bool) []string {
	headers := make([]string, 0, r.Count)
	for i := r.Start; i < r.End(); i++ {
		if isRow {
			headers = append(headers, fmt.Sprintf("[%d,]", i))
		} else {
			headers = append(headers, fmt.Sprintf("[,%d]", i))
		}
	}
	return headers
}
