// Package resource implements the Controller that governs access to a slow
// data backend.
//
// Several page managers usually sit in front of the same remote session: a
// grid view owns one manager for row headers, one for column headers and one
// for cells. A shared Controller keeps them from flooding the backend.
//
//	┌───────────────────────────────────────────────┐
//	│                  Controller                   │
//	├───────────────────────┬───────────────────────┤
//	│  Concurrent fetches   │  Fetch rate           │
//	│  (weighted semaphore) │  (token bucket)       │
//	├───────────────────────┼───────────────────────┤
//	│  AcquireFetch         │  FetchesPerSecond     │
//	│  TryAcquireFetch      │  FetchBurst           │
//	│  ReleaseFetch         │                       │
//	└───────────────────────┴───────────────────────┘
//
// # Usage
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentFetches: 2,
//	    FetchesPerSecond:     20,
//	})
//
//	if err := rc.AcquireFetch(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseFetch()
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows optional limiting without nil checks everywhere.
package resource
