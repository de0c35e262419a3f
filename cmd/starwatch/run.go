package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/starwatch/pkg/apod"
	"github.com/Sternrassler/starwatch/pkg/astronomy"
	"github.com/Sternrassler/starwatch/pkg/aurorawatch"
	"github.com/Sternrassler/starwatch/pkg/batch"
	"github.com/Sternrassler/starwatch/pkg/cache"
	"github.com/Sternrassler/starwatch/pkg/config"
	"github.com/Sternrassler/starwatch/pkg/etl"
	"github.com/Sternrassler/starwatch/pkg/logging"
	"github.com/Sternrassler/starwatch/pkg/metrics"
	"github.com/Sternrassler/starwatch/pkg/notify"
	"github.com/Sternrassler/starwatch/pkg/openmeteo"
	"github.com/Sternrassler/starwatch/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// reportTimeout bounds notification and metrics push after the run.
const reportTimeout = 30 * time.Second

type jobStore interface {
	etl.ConstellationStore
	etl.CityStore
	etl.AuroraStore
	etl.PictureStore
}

type chartClient interface {
	etl.ChartFetcher
	etl.SkyFetcher
}

type dependencies struct {
	store    jobStore
	charts   chartClient
	sun      etl.SunTimesFetcher
	aurora   etl.StatusFetcher
	pictures etl.PictureFetcher // nil without apod.api_key
	notifier notify.Notifier
}

// jobArgs are the per-command flags.
type jobArgs struct {
	date string // --date, or --from for backfill
	days int
}

func run(ctx context.Context, opts *options, job string, args jobArgs) error {
	settings, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		settings.Log.Level = opts.logLevel
	}
	if opts.pretty {
		settings.Log.Pretty = true
	}

	logging.Setup(settings.LoggingConfig(os.Stderr))
	defer logging.Close()
	logger := logging.NewLogger("cli")

	deps, cleanup, err := wire(ctx, settings, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return err
	}
	defer cleanup()

	report, runErr := runJob(ctx, settings, job, args, deps)
	if runErr != nil {
		logger.Error().Err(runErr).Str("job", job).Msg("Job failed")
	} else {
		logger.Info().
			Str("job", job).
			Int("items", report.Items).
			Int("rounds", report.Rounds).
			Int("persisted", report.Persisted).
			Dur("duration", report.Duration).
			Msg("Job complete")
	}

	finish(ctx, settings, job, report, runErr, deps.notifier, logger)
	return runErr
}

// runJob builds and runs the named job.
func runJob(ctx context.Context, s *config.Settings, job string, args jobArgs, deps dependencies) (batch.Report, error) {
	switch job {
	case jobConstellations:
		j, err := etl.NewConstellationJob(s.JobConfig(job), deps.store, deps.charts)
		if err != nil {
			return batch.Report{Job: job}, err
		}
		return j.Run(ctx, args.date)
	case jobLocations:
		j, err := etl.NewLocationJob(s.JobConfig(job), deps.store, deps.charts, deps.sun)
		if err != nil {
			return batch.Report{Job: job}, err
		}
		return j.Run(ctx, args.date)
	case jobBackfill:
		j, err := etl.NewLocationJob(s.JobConfig(job), deps.store, deps.charts, deps.sun)
		if err != nil {
			return batch.Report{Job: job}, err
		}
		return j.Backfill(ctx, args.date, args.days)
	case jobAurora:
		j, err := etl.NewAuroraJob(s.JobConfig(job), deps.store, deps.aurora)
		if err != nil {
			return batch.Report{Job: job}, err
		}
		return j.Run(ctx)
	case jobAPOD:
		if deps.pictures == nil {
			return batch.Report{Job: job}, fmt.Errorf("apod.api_key is required for the %s job", job)
		}
		j, err := etl.NewPictureJob(s.JobConfig(job), deps.store, deps.pictures)
		if err != nil {
			return batch.Report{Job: job}, err
		}
		return j.Run(ctx, args.date)
	default:
		return batch.Report{Job: job}, fmt.Errorf("unknown job %q", job)
	}
}

// finish sends the run report and pushes metrics. Neither can fail the run.
func finish(ctx context.Context, s *config.Settings, job string, report batch.Report, runErr error, n notify.Notifier, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if err := n.Notify(ctx, job, report, runErr); err != nil {
		logger.Warn().Err(err).Msg("Run report not delivered")
	}

	if url := s.Metrics.PushgatewayURL; url != "" {
		if err := metrics.Push(ctx, url, "starwatch_"+job); err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("Metrics push failed")
		}
	}
}

// wire opens every external dependency. The returned cleanup closes them.
func wire(ctx context.Context, s *config.Settings, logger zerolog.Logger) (dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (dependencies, func(), error) {
		cleanup()
		return dependencies{}, func() {}, err
	}

	st, err := store.Open(ctx, s.StoreConfig())
	if err != nil {
		return fail(fmt.Errorf("open store: %w", err))
	}
	closers = append(closers, st.Close)

	var chartCache *cache.Manager
	if opts := s.RedisOptions(); opts != nil {
		rc := redis.NewClient(opts)
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unavailable, chart cache disabled")
			rc.Close()
		} else {
			chartCache = cache.NewManager(rc)
			closers = append(closers, func() { rc.Close() })
		}
	}

	charts, err := astronomy.New(s.AstronomyConfig(chartCache))
	if err != nil {
		return fail(fmt.Errorf("create astronomy client: %w", err))
	}
	closers = append(closers, func() { charts.Close() })

	sun, err := openmeteo.New(s.OpenMeteoConfig())
	if err != nil {
		return fail(fmt.Errorf("create open-meteo client: %w", err))
	}

	aurora, err := aurorawatch.New(s.AuroraWatchConfig())
	if err != nil {
		return fail(fmt.Errorf("create aurorawatch client: %w", err))
	}

	deps := dependencies{store: st, charts: charts, sun: sun, aurora: aurora}
	if s.APOD.APIKey != "" {
		pictures, err := apod.New(s.APODConfig())
		if err != nil {
			return fail(fmt.Errorf("create apod client: %w", err))
		}
		deps.pictures = pictures
	}

	var notifier notify.Notifier = notify.Nop{}
	if s.Notify.Enabled {
		ses, err := notify.NewSES(ctx, s.SESConfig())
		if err != nil {
			return fail(fmt.Errorf("create notifier: %w", err))
		}
		notifier = ses
	}

	deps.notifier = notifier
	return deps, cleanup, nil
}
