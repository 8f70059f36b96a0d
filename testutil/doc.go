// Package testutil provides testing utilities for pagegrid.
//
// This package is intended for use in tests only. It provides a manually
// advanced clock and provider stubs that count calls, can hold fetches in
// flight and can be switched into failure modes.
//
// # Clock
//
//	clock := testutil.NewClock(time.Unix(0, 0))
//	m, _ := pagegrid.NewListManager(p, pagegrid.WithClock(clock.Now))
//	clock.Advance(2 * time.Minute)
//
// # Provider Stubs
//
//	stub := testutil.NewListStub(100, func(i int) string { return strconv.Itoa(i) })
//	stub.Hold()            // fetches block until Release
//	... issue requests ...
//	stub.Release()
//	stub.CallCount()       // number of FetchRange calls
package testutil
