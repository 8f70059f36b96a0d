package eval

import (
	"context"
	"fmt"

	"github.com/hupe1980/pagegrid/codec"
	"github.com/hupe1980/pagegrid/provider"
)

type headerResult struct {
	Headers []any `json:"headers"`
}

// HeaderProvider supplies the row or column names of a variable.
// It implements provider.ListProvider[string].
type HeaderProvider struct {
	session Session
	v       Variable
	isRow   bool
	codec   codec.Codec
}

// NewHeaderProvider returns a provider of row names (isRow) or column names.
func NewHeaderProvider(s Session, v Variable, isRow bool, opts ...Option) *HeaderProvider {
	o := applyOptions(opts)
	return &HeaderProvider{session: s, v: v, isRow: isRow, codec: o.codec}
}

// Count implements provider.ListProvider.
func (p *HeaderProvider) Count() int {
	if p.isRow {
		return p.v.Rows
	}
	return p.v.Columns
}

// Expr returns the expression evaluated for r.
func (p *HeaderProvider) Expr(r provider.Range) string {
	flag := "FALSE"
	if p.isRow {
		flag = "TRUE"
	}
	return fmt.Sprintf("rtvs:::grid.header(%s, %s, %s)", p.v.Name, RangeString(r), flag)
}

// FetchRange implements provider.ListProvider. Variables without names get
// positional headers.
func (p *HeaderProvider) FetchRange(ctx context.Context, r provider.Range) ([]string, error) {
	raw, err := p.session.Evaluate(ctx, p.Expr(r))
	if err != nil {
		return nil, err
	}

	var res headerResult
	if err := codec.Decode(p.codec, raw, &res); err != nil {
		return nil, fmt.Errorf("decode grid.header result: %w", err)
	}

	if len(res.Headers) == 0 {
		return provider.IndexedHeaders(r, p.isRow), nil
	}
	return formatValues(res.Headers), nil
}
