// Package cache provides the access-ordered store behind the page managers.
//
// LRU keeps entries in a map for lookup and a doubly linked list for recency.
// Eviction is driven by the caller: Oldest walks from the least recently used
// end and lets the caller skip entries that must stay resident (pages with a
// fetch in flight).
//
// LRU is not safe for concurrent use. The pager owns one LRU per manager and
// serializes every access under its own mutex, so lookup, insertion, state
// transitions and eviction happen atomically with respect to each other.
package cache
