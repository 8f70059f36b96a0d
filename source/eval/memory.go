package eval

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/hupe1980/pagegrid/codec"
	"github.com/hupe1980/pagegrid/provider"
)

// Table is an in-memory data frame served by MemorySession.
type Table struct {
	// RowNames and ColNames may be nil for unnamed dimensions.
	RowNames []string
	ColNames []string
	// Columns holds the values column by column.
	Columns [][]any
}

// Rows returns the number of rows.
func (t *Table) Rows() int {
	if len(t.Columns) == 0 {
		return len(t.RowNames)
	}
	return len(t.Columns[0])
}

// Variable returns the Variable describing t under name.
func (t *Table) Variable(name string) Variable {
	return Variable{Name: name, Rows: t.Rows(), Columns: len(t.Columns)}
}

var (
	headerExpr = regexp.MustCompile(`^rtvs:::grid\.header\((.+), (\d+):(\d+), (TRUE|FALSE)\)$`)
	dataExpr   = regexp.MustCompile(`^rtvs:::grid\.data\((.+), (\d+):(\d+), (\d+):(\d+)\)$`)
)

// MemorySession answers grid expressions from in-memory tables. It serves
// the demo viewer and tests.
type MemorySession struct {
	mu     sync.RWMutex
	tables map[string]*Table
	codec  codec.Codec
}

// NewMemorySession returns an empty session encoding results with c.
// A nil c selects codec.Default.
func NewMemorySession(c codec.Codec) *MemorySession {
	if c == nil {
		c = codec.Default
	}
	return &MemorySession{tables: make(map[string]*Table), codec: c}
}

// Assign binds t to name, replacing any previous value.
func (s *MemorySession) Assign(name string, t *Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = t
}

// Evaluate implements Session.
func (s *MemorySession) Evaluate(ctx context.Context, expr string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m := headerExpr.FindStringSubmatch(expr); m != nil {
		t, err := s.lookup(m[1])
		if err != nil {
			return nil, err
		}
		r := parseRange(m[2], m[3])
		names := t.ColNames
		if m[4] == "TRUE" {
			names = t.RowNames
		}
		extent := len(t.Columns)
		if m[4] == "TRUE" {
			extent = t.Rows()
		}
		if r.End() > extent {
			return nil, fmt.Errorf("subscript out of bounds: %s", expr)
		}
		res := headerResult{}
		if names != nil {
			for i := r.Start; i < r.End(); i++ {
				res.Headers = append(res.Headers, names[i])
			}
		}
		return s.codec.Marshal(res)
	}

	if m := dataExpr.FindStringSubmatch(expr); m != nil {
		t, err := s.lookup(m[1])
		if err != nil {
			return nil, err
		}
		rows, cols := parseRange(m[2], m[3]), parseRange(m[4], m[5])
		if rows.End() > t.Rows() || cols.End() > len(t.Columns) {
			return nil, fmt.Errorf("subscript out of bounds: %s", expr)
		}

		res := dataResult{}
		data := make([]any, 0, cols.Count)
		for c := cols.Start; c < cols.End(); c++ {
			res.ColNames = append(res.ColNames, nameAt(t.ColNames, c, false))
			vals := t.Columns[c][rows.Start:rows.End()]
			if len(vals) == 1 {
				data = append(data, vals[0])
			} else {
				data = append(data, vals)
			}
		}
		for r := rows.Start; r < rows.End(); r++ {
			res.RowNames = append(res.RowNames, nameAt(t.RowNames, r, true))
		}
		res.Data = data
		return s.codec.Marshal(res)
	}

	return nil, fmt.Errorf("unsupported expression: %s", expr)
}

func (s *MemorySession) lookup(name string) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("object '%s' not found", name)
	}
	return t, nil
}

// parseRange converts a 1-based inclusive range back to a Range. The
// operands already matched \d+.
func parseRange(from, to string) provider.Range {
	a, _ := strconv.Atoi(from)
	b, _ := strconv.Atoi(to)
	return provider.Range{Start: a - 1, Count: b - a + 1}
}

func nameAt(names []string, i int, isRow bool) string {
	if names == nil {
		return provider.IndexedHeaders(provider.Range{Start: i, Count: 1}, isRow)[0]
	}
	return names[i]
}
