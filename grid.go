package pagegrid

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pagegrid/internal/pager"
	"github.com/hupe1980/pagegrid/provider"
)

// GridKey identifies a block of a grid by its block coordinates.
type GridKey struct {
	Row int
	Col int
}

func (k GridKey) String() string {
	return fmt.Sprintf("(%d,%d)", k.Row, k.Col)
}

// GridEvent reports that a block finished loading or failed.
type GridEvent struct {
	Block GridKey
	Range provider.GridRange
	State PageState
}

// GridPageInfo is a snapshot of a cached block.
type GridPageInfo struct {
	Block      GridKey
	Range      provider.GridRange
	State      PageState
	LastAccess time.Time
}

// GridManager serves a 2-D grid in rectangular blocks of
// PageSize rows x ColumnPageSize columns fetched from a GridProvider.
// It follows the same rules as ListManager; the capacity bound counts blocks.
type GridManager[T any] struct {
	provider provider.GridProvider[T]
	rows     int
	cols     int
	rowSize  int
	colSize  int
	pager    *pager.Pager[GridKey, *provider.Grid[T]]
	logger   *Logger
}

// NewGridManager creates a manager over p. The provider's dimensions are read
// once.
func NewGridManager[T any](p provider.GridProvider[T], opts ...Option) (*GridManager[T], error) {
	if p == nil {
		return nil, invalidConfig("nil provider")
	}

	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	rows, cols := p.RowCount(), p.ColumnCount()
	if rows < 0 || cols < 0 {
		return nil, invalidConfig("negative extent %dx%d", rows, cols)
	}

	m := &GridManager[T]{
		provider: p,
		rows:     rows,
		cols:     cols,
		rowSize:  o.cfg.PageSize,
		colSize:  o.cfg.columnPageSize(),
		logger:   o.logger,
	}
	m.pager = pager.New(m.fetch, newPagerConfig(o, func(key GridKey, err error) error {
		return wrapFetchError(key.String(), m.BlockRange(key).String(), err)
	}))

	o.logger.LogCreated(context.Background(), "grid", fmt.Sprintf("%dx%d", rows, cols), o.cfg)

	return m, nil
}

func (m *GridManager[T]) fetch(ctx context.Context, key GridKey) (*provider.Grid[T], error) {
	r := m.BlockRange(key)

	grid, err := m.provider.FetchBlock(ctx, r)
	if err != nil {
		return nil, err
	}
	if grid == nil || grid.Range() != r || grid.Len() != r.Cells() {
		actual := "nil grid"
		if grid != nil {
			actual = fmt.Sprintf("%s with %d cells", grid.Range(), grid.Len())
		}
		return nil, &ProtocolMismatchError{
			Page:     key.String(),
			Expected: r.String(),
			Actual:   actual,
		}
	}
	return grid, nil
}

// RowCount returns the number of rows.
func (m *GridManager[T]) RowCount() int { return m.rows }

// ColumnCount returns the number of columns.
func (m *GridManager[T]) ColumnCount() int { return m.cols }

// BlockSize returns the rows and columns per block.
func (m *GridManager[T]) BlockSize() (rows, cols int) { return m.rowSize, m.colSize }

// BlockOf returns the key of the block holding cell (row, col).
func (m *GridManager[T]) BlockOf(row, col int) GridKey {
	return GridKey{Row: row / m.rowSize, Col: col / m.colSize}
}

// BlockRange returns the cells covered by a block, clipped at the trailing
// edges of the grid.
func (m *GridManager[T]) BlockRange(key GridKey) provider.GridRange {
	rowStart, colStart := key.Row*m.rowSize, key.Col*m.colSize
	return provider.GridRange{
		Rows:    provider.Range{Start: rowStart, Count: max(0, min(m.rowSize, m.rows-rowStart))},
		Columns: provider.Range{Start: colStart, Count: max(0, min(m.colSize, m.cols-colStart))},
	}
}

func (m *GridManager[T]) checkCell(row, col int) error {
	if row < 0 || row >= m.rows {
		return &RangeError{Axis: "row", Value: row, Limit: m.rows}
	}
	if col < 0 || col >= m.cols {
		return &RangeError{Axis: "column", Value: col, Limit: m.cols}
	}
	return nil
}

// GetItem returns cell (row, col) without blocking, scheduling a fetch of its
// block if needed. It panics with a *RangeError if the cell is out of range.
func (m *GridManager[T]) GetItem(row, col int) Item[T] {
	if err := m.checkCell(row, col); err != nil {
		panic(err)
	}

	grid, state := m.pager.Get(m.BlockOf(row, col))
	if state != StateLoaded {
		return placeholder[T](state)
	}
	v, _ := grid.At(row, col)
	return Ready(v)
}

// Load returns cell (row, col), waiting for its block to be fetched.
func (m *GridManager[T]) Load(ctx context.Context, row, col int) (T, error) {
	var zero T
	if err := m.checkCell(row, col); err != nil {
		return zero, err
	}

	grid, err := m.pager.Load(ctx, m.BlockOf(row, col))
	if err != nil {
		return zero, translateError(err)
	}
	v, _ := grid.At(row, col)
	return v, nil
}

// LoadBlock returns the cells of r, loading all covering blocks concurrently.
func (m *GridManager[T]) LoadBlock(ctx context.Context, r provider.GridRange) (*provider.Grid[T], error) {
	if r.Rows.Empty() || r.Columns.Empty() {
		return provider.NewGrid[T](r, nil)
	}
	if err := m.checkCell(r.Rows.Start, r.Columns.Start); err != nil {
		return nil, err
	}
	if err := m.checkCell(r.Rows.End()-1, r.Columns.End()-1); err != nil {
		return nil, err
	}

	lo := m.BlockOf(r.Rows.Start, r.Columns.Start)
	hi := m.BlockOf(r.Rows.End()-1, r.Columns.End()-1)
	width := hi.Col - lo.Col + 1
	blocks := make([]*provider.Grid[T], (hi.Row-lo.Row+1)*width)

	g, gctx := errgroup.WithContext(ctx)
	for i := range blocks {
		key := GridKey{Row: lo.Row + i/width, Col: lo.Col + i%width}
		g.Go(func() error {
			grid, err := m.pager.Load(gctx, key)
			if err != nil {
				return translateError(err)
			}
			blocks[i] = grid
			return nil
		})
	}

	err := g.Wait()
	m.logger.LogLoadRange(ctx, r.String(), len(blocks), err)
	if err != nil {
		return nil, err
	}

	return provider.NewGridFunc(r, func(row, col int) T {
		key := m.BlockOf(row, col)
		v, _ := blocks[(key.Row-lo.Row)*width+key.Col-lo.Col].At(row, col)
		return v
	}), nil
}

// Subscribe registers fn to be called, through the configured dispatcher,
// whenever a block finishes loading or fails.
func (m *GridManager[T]) Subscribe(fn func(GridEvent)) (cancel func()) {
	return m.pager.Subscribe(func(ev pager.Event[GridKey]) {
		fn(GridEvent{Block: ev.Key, Range: m.BlockRange(ev.Key), State: ev.State})
	})
}

// Invalidate drops all cached blocks and cancels in-flight fetches.
func (m *GridManager[T]) Invalidate() int {
	n := m.pager.Invalidate()
	m.logger.LogInvalidate(context.Background(), n)
	return n
}

// Pages returns snapshots of the cached blocks, most recently used first.
func (m *GridManager[T]) Pages() []GridPageInfo {
	infos := m.pager.Pages()
	out := make([]GridPageInfo, len(infos))
	for i, info := range infos {
		out[i] = GridPageInfo{
			Block:      info.Key,
			Range:      m.BlockRange(info.Key),
			State:      info.State,
			LastAccess: info.LastAccess,
		}
	}
	return out
}

// Stats returns cache activity counters.
func (m *GridManager[T]) Stats() Stats { return m.pager.Stats() }

// Close cancels outstanding fetches and waits for them to return.
func (m *GridManager[T]) Close() error { return m.pager.Close() }
