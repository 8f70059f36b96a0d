package pagegrid

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting cache metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// All methods are called from background goroutines and must be safe for
// concurrent use.
type MetricsCollector interface {
	// RecordHit is called when GetItem is served from a fresh loaded page.
	RecordHit()

	// RecordMiss is called when a request needs a fetch (absent or failed page).
	RecordMiss()

	// RecordFetch is called after each provider call.
	// duration includes time spent waiting for a fetch slot.
	RecordFetch(duration time.Duration, err error)

	// RecordEviction is called when a page is evicted by capacity pressure.
	RecordEviction()

	// RecordExpiry is called when an idle page is found expired.
	RecordExpiry()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordHit()                       {}
func (NoopMetricsCollector) RecordMiss()                      {}
func (NoopMetricsCollector) RecordFetch(time.Duration, error) {}
func (NoopMetricsCollector) RecordEviction()                  {}
func (NoopMetricsCollector) RecordExpiry()                    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	Hits            atomic.Int64
	Misses          atomic.Int64
	FetchCount      atomic.Int64
	FetchErrors     atomic.Int64
	FetchTotalNanos atomic.Int64
	Evictions       atomic.Int64
	Expiries        atomic.Int64
}

// RecordHit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordHit() {
	b.Hits.Add(1)
}

// RecordMiss implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMiss() {
	b.Misses.Add(1)
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(duration time.Duration, err error) {
	b.FetchCount.Add(1)
	b.FetchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FetchErrors.Add(1)
	}
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction() {
	b.Evictions.Add(1)
}

// RecordExpiry implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExpiry() {
	b.Expiries.Add(1)
}

// GetStats returns a snapshot of the collected metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		Hits:          b.Hits.Load(),
		Misses:        b.Misses.Load(),
		FetchCount:    b.FetchCount.Load(),
		FetchErrors:   b.FetchErrors.Load(),
		FetchAvgNanos: b.getAvgFetchNanos(),
		Evictions:     b.Evictions.Load(),
		Expiries:      b.Expiries.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgFetchNanos() int64 {
	count := b.FetchCount.Load()
	if count == 0 {
		return 0
	}
	return b.FetchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	Hits          int64
	Misses        int64
	FetchCount    int64
	FetchErrors   int64
	FetchAvgNanos int64
	Evictions     int64
	Expiries      int64
}

// HitRate returns hits / (hits + misses), or 0 when nothing was recorded.
func (s BasicMetricsStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
