package pagegrid

import "iter"

// Indexer is the read side of a ListManager.
type Indexer[T any] interface {
	Count() int
	GetItem(index int) Item[T]
}

// Sequence is a read-only view of an Indexer as an indexable sequence of
// length Len. It holds no state: reading it only triggers the underlying
// manager's normal fetch path.
type Sequence[T any] struct {
	src Indexer[T]
}

// NewSequence returns a sequence over src.
func NewSequence[T any](src Indexer[T]) Sequence[T] {
	return Sequence[T]{src: src}
}

// Len returns the length of the sequence.
func (s Sequence[T]) Len() int {
	if s.src == nil {
		return 0
	}
	return s.src.Count()
}

// At returns element i. It panics if i is out of range.
func (s Sequence[T]) At(i int) Item[T] { return s.src.GetItem(i) }

// All iterates the sequence from the start. Each call starts over.
func (s Sequence[T]) All() iter.Seq2[int, Item[T]] {
	return func(yield func(int, Item[T]) bool) {
		for i := range s.Len() {
			if !yield(i, s.src.GetItem(i)) {
				return
			}
		}
	}
}

// Window iterates elements [start, start+count) clipped to the sequence.
func (s Sequence[T]) Window(start, count int) iter.Seq2[int, Item[T]] {
	return func(yield func(int, Item[T]) bool) {
		end := min(start+count, s.Len())
		for i := max(start, 0); i < end; i++ {
			if !yield(i, s.src.GetItem(i)) {
				return
			}
		}
	}
}

// GridView exposes a GridManager as rows of cells.
type GridView[T any] struct {
	m *GridManager[T]
}

// NewGridView returns a view over m.
func NewGridView[T any](m *GridManager[T]) GridView[T] {
	return GridView[T]{m: m}
}

// RowCount returns the number of rows.
func (v GridView[T]) RowCount() int { return v.m.RowCount() }

// ColumnCount returns the number of columns.
func (v GridView[T]) ColumnCount() int { return v.m.ColumnCount() }

// Cell returns cell (row, col).
func (v GridView[T]) Cell(row, col int) Item[T] { return v.m.GetItem(row, col) }

// Row returns a sequence over the cells of one row.
func (v GridView[T]) Row(row int) Sequence[T] {
	return NewSequence[T](gridRow[T]{m: v.m, row: row})
}

type gridRow[T any] struct {
	m   *GridManager[T]
	row int
}

func (r gridRow[T]) Count() int { return r.m.ColumnCount() }

func (r gridRow[T]) GetItem(col int) Item[T] { return r.m.GetItem(r.row, col) }
