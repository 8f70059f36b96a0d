// Package eval implements providers that page through a variable of a live
// evaluation session, such as an R session.
//
// Every fetch evaluates one grid expression in the session and decodes its
// JSON result:
//
//	rtvs:::grid.header(df, 33:64, TRUE)   -> {"headers": ["a", "b", ...]}
//	rtvs:::grid.data(df, 1:32, 1:10)      -> {"row.names": [...], "col.names": [...], "data": ...}
//
// Ranges are written 1-based and inclusive, the way R indexes.
package eval

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hupe1980/pagegrid/codec"
	"github.com/hupe1980/pagegrid/provider"
)

// Session evaluates expressions and returns their JSON result.
// It must be safe for concurrent use.
type Session interface {
	Evaluate(ctx context.Context, expr string) ([]byte, error)
}

// SessionFunc adapts a function to Session.
type SessionFunc func(ctx context.Context, expr string) ([]byte, error)

// Evaluate implements Session.
func (f SessionFunc) Evaluate(ctx context.Context, expr string) ([]byte, error) {
	return f(ctx, expr)
}

// Variable is a two-dimensional session variable.
type Variable struct {
	// Name is the expression naming the variable, e.g. "df" or "env$df".
	Name    string
	Rows    int
	Columns int
}

// NA is the rendering of a missing value.
const NA = "NA"

// RangeString renders r as a 1-based inclusive R range, e.g. "33:64".
func RangeString(r provider.Range) string {
	return strconv.Itoa(r.Start+1) + ":" + strconv.Itoa(r.End())
}

type options struct {
	codec codec.Codec
}

// Option configures a provider.
type Option func(*options)

// WithCodec sets the codec used to decode session results.
// Defaults to codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

func applyOptions(opts []Option) options {
	o := options{codec: codec.Default}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// formatValue renders a decoded JSON value the way the session prints it.
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return NA
	case string:
		return v
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func formatValues(vs []any) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = formatValue(v)
	}
	return out
}
