package invalidate

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/pagegrid/provider"
)

func TestSet(t *testing.T) {
	s := New()
	assert.True(t, s.IsEmpty())

	s.Add(3)
	s.Add(-1)
	s.AddRange(provider.Range{Start: 96, Count: 4})
	s.AddRange(provider.Range{Start: 10, Count: 0})

	assert.Equal(t, 5, s.Len())
	assert.True(t, s.Contains(3))
	assert.True(t, s.Contains(99))
	assert.False(t, s.Contains(100))
	assert.False(t, s.Contains(-1))

	assert.True(t, s.Intersects(provider.Range{Start: 90, Count: 7}))
	assert.False(t, s.Intersects(provider.Range{Start: 4, Count: 90}))

	assert.Equal(t, []int{3, 96, 97, 98, 99}, slices.Collect(s.Drain()))
	assert.True(t, s.IsEmpty())
	assert.Empty(t, slices.Collect(s.Drain()))
}

func TestSet_Clear(t *testing.T) {
	s := New()
	s.AddRange(provider.Range{Start: 0, Count: 1000})
	s.Clear()
	assert.Zero(t, s.Len())
}

func TestSet_Concurrent(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for p := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddRange(provider.Range{Start: p * 32, Count: 32})
		}()
	}
	wg.Wait()

	assert.Equal(t, 256, s.Len())
}
