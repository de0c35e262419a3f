package batch

import "context"

// Item is a unit of fetch work. ID must be stable for the lifetime of a run;
// it is used in logs, errors and by sinks to map payloads back to items.
type Item interface {
	ID() string
}

// Result is the outcome of fetching one item: either a Success carrying a
// payload or a Failure carrying the reason.
type Result[P any] struct {
	Payload P
	Err     error
}

// Success returns a successful Result.
func Success[P any](payload P) Result[P] {
	return Result[P]{Payload: payload}
}

// Failure returns a failed Result. A nil reason is replaced by ErrFetchFailed
// so that a Failure can never be mistaken for a Success.
func Failure[P any](reason error) Result[P] {
	if reason == nil {
		reason = ErrFetchFailed
	}
	return Result[P]{Err: reason}
}

// OK reports whether the result is a Success.
func (r Result[P]) OK() bool {
	return r.Err == nil
}

// Fetcher performs one call for one item. Ordinary upstream failures must be
// returned as Failure results rather than panics.
type Fetcher[I Item, P any] interface {
	Fetch(ctx context.Context, item I) Result[P]
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc[I Item, P any] func(ctx context.Context, item I) Result[P]

// Fetch calls f(ctx, item).
func (f FetchFunc[I, P]) Fetch(ctx context.Context, item I) Result[P] {
	return f(ctx, item)
}

// Group is a contiguous slice of the work items, dispatched together.
type Group[I Item] struct {
	// Index is the zero-based position of the group in the run.
	Index int
	// Offset is the position of the group's first item in the full item list.
	Offset int
	Items  []I
}

// Len returns the number of items in the group.
func (g Group[I]) Len() int {
	return len(g.Items)
}

// Outcome holds the results of one dispatch attempt over a group.
// Outcome[i] corresponds to Group.Items[i].
type Outcome[P any] []Result[P]

// Failed returns the indices of failed results.
func (o Outcome[P]) Failed() []int {
	var failed []int
	for i, r := range o {
		if !r.OK() {
			failed = append(failed, i)
		}
	}
	return failed
}

// AllOK reports whether every result in the outcome is a Success.
func (o Outcome[P]) AllOK() bool {
	for _, r := range o {
		if !r.OK() {
			return false
		}
	}
	return true
}

// Entry pairs a work item with its resolved payload.
type Entry[I Item, P any] struct {
	Item    I
	Payload P
}

// Batch is the ordered concatenation of all resolved groups.
type Batch[I Item, P any] []Entry[I, P]

// Sink persists a fully resolved batch.
type Sink[I Item, P any] interface {
	Persist(ctx context.Context, b Batch[I, P]) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc[I Item, P any] func(ctx context.Context, b Batch[I, P]) error

// Persist calls f(ctx, b).
func (f SinkFunc[I, P]) Persist(ctx context.Context, b Batch[I, P]) error {
	return f(ctx, b)
}
