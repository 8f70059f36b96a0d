// Package invalidate tracks which indices of a view need to be redrawn.
//
// Page notifications arrive as ranges ("rows [32,64) are now loaded"). A UI
// adds them to a Set as they arrive and drains the set once per frame.
package invalidate

import (
	"iter"
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/pagegrid/provider"
)

// Set is a concurrency-safe set of dirty indices backed by a roaring bitmap.
// Negative indices are ignored; indices must fit in 31 bits.
type Set struct {
	mu sync.Mutex
	rb *roaring.Bitmap
}

// New returns an empty set.
func New() *Set {
	return &Set{rb: roaring.New()}
}

// Add marks index i dirty.
func (s *Set) Add(i int) {
	if i < 0 {
		return
	}
	s.mu.Lock()
	s.rb.Add(uint32(i))
	s.mu.Unlock()
}

// AddRange marks every index of r dirty.
func (s *Set) AddRange(r provider.Range) {
	r = r.Intersect(provider.Range{Start: 0, Count: math.MaxInt32})
	if r.Empty() {
		return
	}
	s.mu.Lock()
	s.rb.AddRange(uint64(r.Start), uint64(r.End()))
	s.mu.Unlock()
}

// Contains reports whether i is dirty.
func (s *Set) Contains(i int) bool {
	if i < 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rb.Contains(uint32(i))
}

// Len returns the number of dirty indices.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.rb.GetCardinality())
}

// IsEmpty reports whether nothing is dirty.
func (s *Set) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rb.IsEmpty()
}

// Intersects reports whether any index of r is dirty.
func (s *Set) Intersects(r provider.Range) bool {
	if r.Empty() || r.Start < 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rb.IntersectsWithInterval(uint64(r.Start), uint64(r.End()))
}

// Drain removes and returns all dirty indices in ascending order.
func (s *Set) Drain() iter.Seq[int] {
	s.mu.Lock()
	rb := s.rb
	s.rb = roaring.New()
	s.mu.Unlock()

	return func(yield func(int) bool) {
		it := rb.Iterator()
		for it.HasNext() {
			if !yield(int(it.Next())) {
				return
			}
		}
	}
}

// Clear removes all indices.
func (s *Set) Clear() {
	s.mu.Lock()
	s.rb.Clear()
	s.mu.Unlock()
}
