// Package provider defines the data-source contracts consumed by the page
// managers.
//
// A provider knows the extent of a dataset and can fetch any contiguous range
// (1-D) or rectangular block (2-D) of it. Providers are typically slow and
// remote (a live evaluation session, a SQL server, an object store); the page
// managers call them from background goroutines and never on the caller's
// goroutine.
//
// # Contracts
//
//	type ListProvider[T any] interface {
//	    Count() int
//	    FetchRange(ctx context.Context, r Range) ([]T, error)
//	}
//
//	type GridProvider[T any] interface {
//	    RowCount() int
//	    ColumnCount() int
//	    FetchBlock(ctx context.Context, r GridRange) (*Grid[T], error)
//	}
//
// FetchRange must return exactly r.Count items and FetchBlock a grid of exactly
// r.Rows.Count x r.Columns.Count cells. The managers treat any other shape as a
// failed fetch.
//
// Implementations must be safe for concurrent use: several ranges or blocks may
// be outstanding at once.
package provider
