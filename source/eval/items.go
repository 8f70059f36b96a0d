package eval

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/pagegrid/codec"
	"github.com/hupe1980/pagegrid/provider"
)

// ErrShape is returned when a grid.data result does not have the requested
// dimensions.
var ErrShape = errors.New("grid.data result does not match the requested block")

type dataResult struct {
	RowNames []any `json:"row.names"`
	ColNames []any `json:"col.names"`
	// Data is either an array of columns or an object keyed by column name.
	// A column is an array, or a scalar when a single row was requested.
	Data any `json:"data"`
}

// ItemsProvider supplies the cells of a variable as strings.
// It implements provider.GridProvider[string].
type ItemsProvider struct {
	session Session
	v       Variable
	codec   codec.Codec
}

// NewItemsProvider returns a cell provider for v.
func NewItemsProvider(s Session, v Variable, opts ...Option) *ItemsProvider {
	o := applyOptions(opts)
	return &ItemsProvider{session: s, v: v, codec: o.codec}
}

// RowCount implements provider.GridProvider.
func (p *ItemsProvider) RowCount() int { return p.v.Rows }

// ColumnCount implements provider.GridProvider.
func (p *ItemsProvider) ColumnCount() int { return p.v.Columns }

// Expr returns the expression evaluated for r.
func (p *ItemsProvider) Expr(r provider.GridRange) string {
	return fmt.Sprintf("rtvs:::grid.data(%s, %s, %s)", p.v.Name, RangeString(r.Rows), RangeString(r.Columns))
}

// FetchBlock implements provider.GridProvider.
func (p *ItemsProvider) FetchBlock(ctx context.Context, r provider.GridRange) (*provider.Grid[string], error) {
	raw, err := p.session.Evaluate(ctx, p.Expr(r))
	if err != nil {
		return nil, err
	}

	var res dataResult
	if err := codec.Decode(p.codec, raw, &res); err != nil {
		return nil, fmt.Errorf("decode grid.data result: %w", err)
	}

	if len(res.RowNames) != r.Rows.Count || len(res.ColNames) != r.Columns.Count {
		return nil, fmt.Errorf("%w: got %d rows x %d columns, want %s",
			ErrShape, len(res.RowNames), len(res.ColNames), r)
	}

	columns, err := res.columns()
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, r.Cells())
	for row := range r.Rows.Count {
		for col := range r.Columns.Count {
			values = append(values, columns[col][row])
		}
	}
	return provider.NewGrid(r, values)
}

// columns returns the cells column by column, checking every column has one
// value per row.
func (d *dataResult) columns() ([][]string, error) {
	var raw []any
	switch data := d.Data.(type) {
	case []any:
		raw = data
	case map[string]any:
		for _, name := range d.ColNames {
			col, ok := data[formatValue(name)]
			if !ok {
				return nil, fmt.Errorf("%w: missing column %q", ErrShape, formatValue(name))
			}
			raw = append(raw, col)
		}
	default:
		return nil, fmt.Errorf("%w: data is %T", ErrShape, d.Data)
	}

	if len(raw) != len(d.ColNames) {
		return nil, fmt.Errorf("%w: %d data columns for %d names", ErrShape, len(raw), len(d.ColNames))
	}

	cols := make([][]string, len(raw))
	for i, c := range raw {
		if vs, ok := c.([]any); ok {
			cols[i] = formatValues(vs)
		} else {
			// single row
			cols[i] = []string{formatValue(c)}
		}
		if len(cols[i]) != len(d.RowNames) {
			return nil, fmt.Errorf("%w: column %d has %d values for %d rows", ErrShape, i, len(cols[i]), len(d.RowNames))
		}
	}
	return cols, nil
}
