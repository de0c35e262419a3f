package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds runner configuration.
type Config struct {
	// Name labels the job in logs and metrics.
	Name string

	// GroupSize is the number of items dispatched together.
	// It also bounds the number of in-flight fetches.
	GroupSize int

	// FetchTimeout bounds every single fetch.
	FetchTimeout time.Duration

	// Retry controls whole-group resubmission.
	Retry RetryPolicy
}

// DefaultConfig returns the default runner configuration for a job.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		GroupSize:    11,
		FetchTimeout: 60 * time.Second,
		Retry:        DefaultRetryPolicy(),
	}
}

// Report summarizes a run.
type Report struct {
	Job       string
	Items     int
	Groups    int
	Rounds    int // group dispatch rounds, including resubmissions
	Fetches   int // individual fetch invocations
	Failures  int // failed fetch results across all rounds
	Persisted int
	Duration  time.Duration
}

type runStats struct {
	rounds   int
	fetches  int
	failures int
}

// Runner splits work into groups, dispatches each group concurrently and
// repairs failing groups by resubmitting them whole.
type Runner[I Item, P any] struct {
	fetcher Fetcher[I, P]
	config  Config
	logger  zerolog.Logger
}

// NewRunner creates a new runner.
func NewRunner[I Item, P any](cfg Config, fetcher Fetcher[I, P]) (*Runner[I, P], error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.GroupSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGroupSize, cfg.GroupSize)
	}
	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch_timeout must be positive (got %s)", cfg.FetchTimeout)
	}
	if err := cfg.Retry.validate(); err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = "batch"
	}

	return &Runner[I, P]{
		fetcher: fetcher,
		config:  cfg,
		logger:  log.With().Str("component", "batch").Str("job", cfg.Name).Logger(),
	}, nil
}

// Config returns the runner configuration.
func (r *Runner[I, P]) Config() Config {
	return r.config
}

// Dispatch fetches every item of the group concurrently and waits for all of
// them. The returned outcome has one result per item, in group order. Dispatch
// only fails when ctx is done; individual fetch failures are part of the outcome.
func (r *Runner[I, P]) Dispatch(ctx context.Context, g Group[I]) (Outcome[P], error) {
	return r.dispatch(ctx, g, &runStats{})
}

func (r *Runner[I, P]) dispatch(ctx context.Context, g Group[I], st *runStats) (Outcome[P], error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dispatch group %d: %w", g.Index, err)
	}

	outcome := make(Outcome[P], g.Len())

	var eg errgroup.Group
	for i, item := range g.Items {
		eg.Go(func() error {
			// each goroutine owns exactly one slot
			outcome[i] = r.fetchOne(ctx, item)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dispatch group %d: %w", g.Index, err)
	}

	failed := 0
	for _, res := range outcome {
		if !res.OK() {
			failed++
		}
	}

	st.rounds++
	st.fetches += len(outcome)
	st.failures += failed

	batchDispatchRoundsTotal.WithLabelValues(r.config.Name).Inc()
	batchFetchesTotal.WithLabelValues(r.config.Name, "success").Add(float64(len(outcome) - failed))
	batchFetchesTotal.WithLabelValues(r.config.Name, "failure").Add(float64(failed))

	r.logger.Debug().
		Int("group", g.Index).
		Int("items", g.Len()).
		Int("failed", failed).
		Msg("Group dispatched")

	return outcome, nil
}

// fetchOne runs a single fetch under the per-fetch timeout. A panic in the
// fetcher becomes a Failure so sibling fetches are unaffected.
func (r *Runner[I, P]) fetchOne(ctx context.Context, item I) (res Result[P]) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.config.FetchTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			res = Failure[P](fmt.Errorf("%w: %v", ErrFetchPanic, rec))
		}
		if !res.OK() {
			r.logger.Debug().
				Err(res.Err).
				Str("item", item.ID()).
				Msg("Item fetch failed")
		}
	}()

	return r.fetcher.Fetch(fetchCtx, item)
}

// Repair resubmits the whole group until every item succeeds, starting from
// an outcome already obtained from Dispatch. An all-success outcome is
// returned as is. When the retry policy is exhausted Repair returns an
// *UnresolvedError naming the items that still fail.
func (r *Runner[I, P]) Repair(ctx context.Context, g Group[I], outcome Outcome[P]) (Outcome[P], error) {
	return r.repair(ctx, g, outcome, &runStats{})
}

func (r *Runner[I, P]) repair(ctx context.Context, g Group[I], outcome Outcome[P], st *runStats) (Outcome[P], error) {
	if len(outcome) != g.Len() {
		return nil, fmt.Errorf("repair group %d: outcome has %d results for %d items", g.Index, len(outcome), g.Len())
	}

	policy := r.config.Retry
	bo := policy.newBackOff()

	for attempt := 1; ; attempt++ {
		failed := outcome.Failed()
		if len(failed) == 0 {
			if attempt > 1 {
				r.logger.Info().
					Int("group", g.Index).
					Int("attempt", attempt).
					Msg("Group succeeded after retry")
			}
			return outcome, nil
		}

		if !policy.Unbounded() && attempt >= policy.MaxAttempts {
			batchRetryExhaustedTotal.WithLabelValues(r.config.Name).Inc()
			err := r.unresolved(g, outcome, attempt)
			r.logger.Error().
				Int("group", g.Index).
				Int("max_attempts", policy.MaxAttempts).
				Strs("items", err.ItemIDs()).
				Msg("Retry attempts exhausted")
			return nil, err
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			wait = policy.MaxBackoff
		}
		batchRetryBackoffSeconds.WithLabelValues(r.config.Name).Observe(wait.Seconds())

		r.logger.Warn().
			Int("group", g.Index).
			Int("attempt", attempt).
			Int("failed", len(failed)).
			Str("first_failure", g.Items[failed[0]].ID()).
			AnErr("reason", outcome[failed[0]].Err).
			Dur("backoff", wait).
			Msg("Group has failed items, resubmitting whole group")

		if err := sleepContext(ctx, wait); err != nil {
			r.logger.Warn().
				Int("group", g.Index).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return nil, fmt.Errorf("repair group %d: %w", g.Index, err)
		}

		next, err := r.dispatch(ctx, g, st)
		if err != nil {
			return nil, err
		}
		outcome = next
	}
}

func (r *Runner[I, P]) unresolved(g Group[I], outcome Outcome[P], attempts int) *UnresolvedError {
	failed := outcome.Failed()
	items := make([]ItemFailure, 0, len(failed))
	for _, i := range failed {
		items = append(items, ItemFailure{
			Index: g.Index*r.config.GroupSize + i,
			ID:    g.Items[i].ID(),
			Err:   outcome[i].Err,
		})
	}
	return &UnresolvedError{
		Group:    g.Index,
		Attempts: attempts,
		Items:    items,
	}
}

// Run resolves every item, group by group, and returns the batch in the
// original item order. Groups are processed strictly in sequence; a group is
// appended only once all of its items succeeded.
func (r *Runner[I, P]) Run(ctx context.Context, items []I) (Batch[I, P], error) {
	b, _, err := r.run(ctx, items)
	return b, err
}

func (r *Runner[I, P]) run(ctx context.Context, items []I) (Batch[I, P], Report, error) {
	start := time.Now()
	report := Report{Job: r.config.Name, Items: len(items)}
	st := &runStats{}

	finish := func() {
		report.Rounds = st.rounds
		report.Fetches = st.fetches
		report.Failures = st.failures
		report.Duration = time.Since(start)
	}

	groups, err := Split(items, r.config.GroupSize)
	if err != nil {
		finish()
		return nil, report, err
	}
	report.Groups = len(groups)

	r.logger.Info().
		Int("items", len(items)).
		Int("groups", len(groups)).
		Int("group_size", r.config.GroupSize).
		Msg("Starting batch run")

	resolved := make(Batch[I, P], 0, len(items))
	for _, g := range groups {
		groupStart := time.Now()

		outcome, err := r.dispatch(ctx, g, st)
		if err == nil {
			outcome, err = r.repair(ctx, g, outcome, st)
		}
		if err != nil {
			finish()
			var unresolved *UnresolvedError
			if !errors.As(err, &unresolved) {
				r.logger.Error().Err(err).Int("group", g.Index).Msg("Batch run aborted")
			}
			return nil, report, err
		}

		for i, res := range outcome {
			resolved = append(resolved, Entry[I, P]{Item: g.Items[i], Payload: res.Payload})
		}

		batchGroupDuration.WithLabelValues(r.config.Name).Observe(time.Since(groupStart).Seconds())
		r.logger.Info().
			Int("group", g.Index).
			Int("resolved", len(resolved)).
			Int("total", len(items)).
			Dur("duration", time.Since(groupStart)).
			Msg("Group resolved")
	}

	finish()
	r.logger.Info().
		Int("items", report.Items).
		Int("rounds", report.Rounds).
		Int("fetches", report.Fetches).
		Dur("duration", report.Duration).
		Msg("Batch run complete")

	return resolved, report, nil
}

// Process runs the batch and hands the resolved batch to the sink exactly
// once. The sink is not called when the run fails.
func (r *Runner[I, P]) Process(ctx context.Context, items []I, sink Sink[I, P]) (Report, error) {
	if sink == nil {
		return Report{Job: r.config.Name}, fmt.Errorf("sink is required")
	}

	b, report, err := r.run(ctx, items)
	if err != nil {
		return report, err
	}

	if err := sink.Persist(ctx, b); err != nil {
		r.logger.Error().Err(err).Int("entries", len(b)).Msg("Persisting batch failed")
		return report, fmt.Errorf("persist batch: %w", err)
	}
	report.Persisted = len(b)

	return report, nil
}
