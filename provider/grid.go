package provider

import (
	"errors"
	"fmt"
)

// ErrGridShape is returned by NewGrid when the value count does not match the
// block dimensions.
var ErrGridShape = errors.New("grid shape mismatch")

// Grid is a rectangular block of values fetched from a GridProvider.
// Values are stored row-major. A Grid is immutable once built.
type Grid[T any] struct {
	rng    GridRange
	values []T
}

// NewGrid wraps row-major values covering r.
// It returns ErrGridShape if len(values) != r.Rows.Count*r.Columns.Count.
func NewGrid[T any](r GridRange, values []T) (*Grid[T], error) {
	if r.Rows.Count < 0 || r.Columns.Count < 0 {
		return nil, fmt.Errorf("%w: negative extent %s", ErrGridShape, r)
	}
	if len(values) != r.Cells() {
		return nil, fmt.Errorf("%w: %s needs %d values, got %d", ErrGridShape, r, r.Cells(), len(values))
	}
	return &Grid[T]{rng: r, values: values}, nil
}

// NewGridFunc builds a grid by calling fn for every cell in r, using absolute
// coordinates.
func NewGridFunc[T any](r GridRange, fn func(row, col int) T) *Grid[T] {
	values := make([]T, 0, r.Cells())
	for row := r.Rows.Start; row < r.Rows.End(); row++ {
		for col := r.Columns.Start; col < r.Columns.End(); col++ {
			values = append(values, fn(row, col))
		}
	}
	return &Grid[T]{rng: r, values: values}
}

// Range returns the block covered by the grid.
func (g *Grid[T]) Range() GridRange { return g.rng }

// Len returns the number of cells held by the grid.
func (g *Grid[T]) Len() int { return len(g.values) }

// At returns the value at absolute coordinates (row, col).
// ok is false when the cell lies outside the grid.
func (g *Grid[T]) At(row, col int) (v T, ok bool) {
	if !g.rng.Contains(row, col) {
		return v, false
	}
	i := (row-g.rng.Rows.Start)*g.rng.Columns.Count + (col - g.rng.Columns.Start)
	return g.values[i], true
}

// Row returns a copy of the cells of one absolute row restricted to cols.
func (g *Grid[T]) Row(row int, cols Range) []T {
	cols = cols.Intersect(g.rng.Columns)
	if !g.rng.Rows.Contains(row) || cols.Empty() {
		return nil
	}
	base := (row - g.rng.Rows.Start) * g.rng.Columns.Count
	lo := base + cols.Start - g.rng.Columns.Start
	out := make([]T, cols.Count)
	copy(out, g.values[lo:lo+cols.Count])
	return out
}
