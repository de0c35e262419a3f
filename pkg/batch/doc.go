// Package batch provides a grouped fan-out fetcher with whole-group repair.
//
// A run takes an ordered list of independent work items, each needing one
// outbound call, and splits it into fixed-size groups. Groups are dispatched
// one at a time: every item in the group is fetched concurrently, and the
// group is resubmitted as a whole until every item reports success. Resolved
// groups are appended, in order, to the final batch which is then handed to
// a Sink.
//
// Example usage:
//
//	cfg := batch.DefaultConfig("constellations")
//	runner, err := batch.NewRunner(cfg, batch.FetchFunc[Item, string](fetch))
//	if err != nil {
//		return err
//	}
//	report, err := runner.Process(ctx, items, sink)
//
// The runner:
//   - Splits items into groups of GroupSize (the last group holds the remainder)
//   - Fetches all items of a group in parallel, each under FetchTimeout
//   - Converts fetch errors and panics into Failure results
//   - Resubmits the entire group while any item failed, with exponential backoff
//   - Gives up after Retry.MaxAttempts rounds with an UnresolvedError
//   - Persists the batch exactly once, only when every group resolved
package batch
