package provider

import "fmt"

// Range is a half-open interval [Start, Start+Count) of indices.
type Range struct {
	Start int
	Count int
}

// End returns the exclusive upper bound of the range.
func (r Range) End() int { return r.Start + r.Count }

// Contains reports whether i lies inside the range.
func (r Range) Contains(i int) bool { return i >= r.Start && i < r.End() }

// Empty reports whether the range covers no indices.
func (r Range) Empty() bool { return r.Count <= 0 }

// Intersect returns the overlap of r and o. The result is empty when the
// ranges are disjoint.
func (r Range) Intersect(o Range) Range {
	start := max(r.Start, o.Start)
	end := min(r.End(), o.End())
	if end <= start {
		return Range{Start: start}
	}
	return Range{Start: start, Count: end - start}
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End())
}

// GridRange is a rectangular block of cells.
type GridRange struct {
	Rows    Range
	Columns Range
}

// Contains reports whether the cell (row, col) lies inside the block.
func (g GridRange) Contains(row, col int) bool {
	return g.Rows.Contains(row) && g.Columns.Contains(col)
}

// Cells returns the number of cells covered by the block.
func (g GridRange) Cells() int { return g.Rows.Count * g.Columns.Count }

func (g GridRange) String() string {
	return fmt.Sprintf("rows %s x cols %s", g.Rows, g.Columns)
}
