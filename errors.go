package pagegrid

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pagegrid/internal/pager"
)

var (
	// ErrInvalidConfig is returned by the constructors when the configuration
	// or provider is unusable.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrFetchFailed matches every error produced by a failed page fetch.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrProtocolMismatch matches fetches whose result did not have the
	// requested shape.
	ErrProtocolMismatch = errors.New("protocol mismatch")

	// ErrClosed is returned by blocking loads after Close.
	ErrClosed = errors.New("page manager closed")
)

// RangeError reports an index outside the declared extent. It indicates a
// caller bug: GetItem panics with it, Load and LoadRange return it.
type RangeError struct {
	// Axis is "index", "row" or "column".
	Axis  string
	Value int
	Limit int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [0,%d)", e.Axis, e.Value, e.Limit)
}

// FetchError reports that the provider failed to deliver a page.
//
// The provider's error text is kept in the message for diagnostics, but the
// error does not unwrap to it: callers only get the success/failure signal
// (errors.Is(err, ErrFetchFailed)).
type FetchError struct {
	// Page identifies the page or block, e.g. "3" or "(1,0)".
	Page string
	// Range is the requested range or block.
	Range string
	cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %s %s: %v", e.Page, e.Range, e.cause)
}

// Is reports whether target is ErrFetchFailed.
func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// ProtocolMismatchError reports a fetch whose result did not cover exactly the
// requested range or block. It is treated as a failed fetch.
type ProtocolMismatchError struct {
	Page     string
	Expected string
	Actual   string
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("page %s: provider returned %s, expected %s", e.Page, e.Actual, e.Expected)
}

// Is reports whether target is ErrProtocolMismatch or ErrFetchFailed.
func (e *ProtocolMismatchError) Is(target error) bool {
	return target == ErrProtocolMismatch || target == ErrFetchFailed
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// wrapFetchError keeps typed fetch errors and wraps anything else (for
// example a canceled slot acquisition) into a FetchError.
func wrapFetchError(page, rng string, err error) error {
	if errors.Is(err, ErrFetchFailed) {
		return err
	}
	return &FetchError{Page: page, Range: rng, cause: err}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pager.ErrClosed) {
		return ErrClosed
	}
	return err
}
