package cache

import (
	"container/list"
	"sync/atomic"
)

// LRU is an access-ordered map. The front of the list is the most recently
// used entry.
type LRU[K comparable, V any] struct {
	items     map[K]*list.Element
	evictList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// NewLRU creates an empty LRU.
func NewLRU[K comparable, V any]() *LRU[K, V] {
	return &LRU[K, V]{
		items:     make(map[K]*list.Element),
		evictList: list.New(),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry[K, V]).value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Peek returns the value for key without touching recency or stats.
func (c *LRU[K, V]) Peek(key K) (V, bool) {
	if ent, ok := c.items[key]; ok {
		return ent.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Add inserts or replaces key and marks it most recently used.
func (c *LRU[K, V]) Add(key K, value V) {
	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		ent.Value.(*entry[K, V]).value = value
		return
	}
	c.items[key] = c.evictList.PushFront(&entry[K, V]{key: key, value: value})
}

// Remove deletes key. It reports whether the key was present.
func (c *LRU[K, V]) Remove(key K) bool {
	ent, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(ent)
	return true
}

// Oldest returns the least recently used entry for which skip returns false.
// A nil skip accepts every entry.
func (c *LRU[K, V]) Oldest(skip func(K, V) bool) (K, V, bool) {
	for e := c.evictList.Back(); e != nil; e = e.Prev() {
		kv := e.Value.(*entry[K, V])
		if skip != nil && skip(kv.key, kv.value) {
			continue
		}
		return kv.key, kv.value, true
	}
	var (
		zk K
		zv V
	)
	return zk, zv, false
}

// Range calls fn for every entry from most to least recently used until fn
// returns false. fn must not modify the cache.
func (c *LRU[K, V]) Range(fn func(K, V) bool) {
	for e := c.evictList.Front(); e != nil; e = e.Next() {
		kv := e.Value.(*entry[K, V])
		if !fn(kv.key, kv.value) {
			return
		}
	}
}

// Invalidate removes entries matching the predicate and returns how many
// were removed.
func (c *LRU[K, V]) Invalidate(predicate func(K, V) bool) int {
	var toRemove []*list.Element

	for e := c.evictList.Front(); e != nil; e = e.Next() {
		kv := e.Value.(*entry[K, V])
		if predicate(kv.key, kv.value) {
			toRemove = append(toRemove, e)
		}
	}

	for _, e := range toRemove {
		c.removeElement(e)
	}
	return len(toRemove)
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	return c.evictList.Len()
}

// Stats returns lookup statistics recorded by Get.
func (c *LRU[K, V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *LRU[K, V]) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	delete(c.items, e.Value.(*entry[K, V]).key)
}
