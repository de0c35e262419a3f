package batch

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the runner.
var (
	// ErrInvalidGroupSize is returned when the group size is zero or negative.
	ErrInvalidGroupSize = errors.New("group size must be positive")

	// ErrRetryExhausted is returned when a group is still failing after the
	// configured number of dispatch rounds.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrFetchFailed is the reason recorded for a Failure created without one.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrFetchPanic is the reason recorded when a fetch panics.
	ErrFetchPanic = errors.New("fetch panicked")
)

// ItemFailure is an item that was still failing when its group gave up.
type ItemFailure struct {
	// Index is the item's position in the input passed to Run.
	Index int
	ID    string
	Err   error
}

// UnresolvedError reports the items of a group that could not be resolved
// before the retry policy gave up.
type UnresolvedError struct {
	// Group is the index of the failing group.
	Group int
	// Attempts is the number of dispatch rounds performed for the group.
	Attempts int
	// Items lists the still-failing items in input order with the reason of
	// their last failure. Items sharing an ID are reported separately.
	Items []ItemFailure
}

// ItemIDs returns the still-failing item IDs in input order.
func (e *UnresolvedError) ItemIDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, f := range e.Items {
		ids = append(ids, f.ID)
	}
	return ids
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, f := range e.Items {
		parts = append(parts, fmt.Sprintf("%d:%s (%v)", f.Index, f.ID, f.Err))
	}
	return fmt.Sprintf("group %d unresolved after %d attempts: %s: %s",
		e.Group, e.Attempts, ErrRetryExhausted, strings.Join(parts, ", "))
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UnresolvedError) Unwrap() error {
	return ErrRetryExhausted
}
