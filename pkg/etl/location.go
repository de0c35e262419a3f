package etl

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/starwatch/pkg/astronomy"
	"github.com/Sternrassler/starwatch/pkg/batch"
	"github.com/Sternrassler/starwatch/pkg/openmeteo"
	"github.com/Sternrassler/starwatch/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultBackfillDays is how many consecutive dates a backfill covers.
const DefaultBackfillDays = 8

// CityStore is the storage the location job needs.
type CityStore interface {
	Cities(ctx context.Context) ([]store.City, error)
	InsertStargazingStatus(ctx context.Context, statuses []store.StargazingStatus) error
}

// SkyFetcher renders the per-city images.
type SkyFetcher interface {
	AreaChart(ctx context.Context, obs astronomy.Observer) (string, error)
	MoonPhase(ctx context.Context, obs astronomy.Observer) (string, error)
}

// SunTimesFetcher looks up sunrise and sunset.
type SunTimesFetcher interface {
	SunTimes(ctx context.Context, lat, lon float64, date string) (openmeteo.SunTimes, error)
}

// LocationItem is one city forecast to resolve.
type LocationItem struct {
	City store.City
	Date time.Time
}

// ID implements batch.Item.
func (i LocationItem) ID() string {
	return strconv.FormatInt(i.City.ID, 10) + ":" + i.City.Name + ":" + i.Date.Format(time.DateOnly)
}

func (i LocationItem) observer() astronomy.Observer {
	return astronomy.Observer{
		Latitude:  i.City.Latitude,
		Longitude: i.City.Longitude,
		Date:      i.Date.Format(time.DateOnly),
	}
}

// LocationForecast is everything fetched for one city.
type LocationForecast struct {
	Sun          openmeteo.SunTimes
	StarChartURL string
	MoonPhaseURL string
}

// LocationJob builds the daily stargazing status of every city.
type LocationJob struct {
	store  CityStore
	sky    SkyFetcher
	sun    SunTimesFetcher
	runner *batch.Runner[LocationItem, LocationForecast]
	config Config
	logger zerolog.Logger
}

// NewLocationJob creates the location job.
func NewLocationJob(cfg Config, st CityStore, sky SkyFetcher, sun SunTimesFetcher) (*LocationJob, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if sky == nil {
		return nil, fmt.Errorf("sky fetcher is required")
	}
	if sun == nil {
		return nil, fmt.Errorf("sun times fetcher is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Batch.Name == "" {
		cfg.Batch.Name = "locations"
	}

	j := &LocationJob{
		store:  st,
		sky:    sky,
		sun:    sun,
		config: cfg,
		logger: log.With().Str("component", "etl").Str("job", cfg.Batch.Name).Logger(),
	}

	runner, err := batch.NewRunner[LocationItem, LocationForecast](cfg.Batch, batch.FetchFunc[LocationItem, LocationForecast](j.fetch))
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}
	j.runner = runner

	return j, nil
}

// Run resolves and stores the forecast of every city for date
// (YYYY-MM-DD, empty for the default horizon).
func (j *LocationJob) Run(ctx context.Context, date string) (batch.Report, error) {
	day, err := j.config.ObservationDate(date)
	if err != nil {
		return batch.Report{Job: j.config.Batch.Name}, err
	}

	cities, err := j.store.Cities(ctx)
	if err != nil {
		return batch.Report{Job: j.config.Batch.Name}, fmt.Errorf("load cities: %w", err)
	}

	items := LocationItems(cities, day, 1)
	j.logger.Info().
		Int("cities", len(items)).
		Str("date", day.Format(time.DateOnly)).
		Msg("Building stargazing status")

	return j.runner.Process(ctx, items, batch.SinkFunc[LocationItem, LocationForecast](j.persist))
}

// Backfill resolves and stores days consecutive dates for every city,
// starting at from (YYYY-MM-DD, empty for today).
func (j *LocationJob) Backfill(ctx context.Context, from string, days int) (batch.Report, error) {
	if days < 1 {
		return batch.Report{Job: j.config.Batch.Name}, fmt.Errorf("backfill days must be >= 1 (got %d)", days)
	}
	start, err := j.config.StartDate(from)
	if err != nil {
		return batch.Report{Job: j.config.Batch.Name}, err
	}

	cities, err := j.store.Cities(ctx)
	if err != nil {
		return batch.Report{Job: j.config.Batch.Name}, fmt.Errorf("load cities: %w", err)
	}

	items := LocationItems(cities, start, days)
	j.logger.Info().
		Int("cities", len(cities)).
		Int("days", days).
		Str("from", start.Format(time.DateOnly)).
		Msg("Backfilling stargazing status")

	return j.runner.Process(ctx, items, batch.SinkFunc[LocationItem, LocationForecast](j.persist))
}

// LocationItems builds one item per city and date, city by city, each city
// covering days dates from start.
func LocationItems(cities []store.City, start time.Time, days int) []LocationItem {
	items := make([]LocationItem, 0, len(cities)*days)
	for _, c := range cities {
		for d := 0; d < days; d++ {
			items = append(items, LocationItem{City: c, Date: start.AddDate(0, 0, d)})
		}
	}
	return items
}

// fetch resolves all three sources concurrently; any failure fails the
// whole item.
func (j *LocationJob) fetch(ctx context.Context, item LocationItem) batch.Result[LocationForecast] {
	obs := item.observer()

	var forecast LocationForecast
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sun, err := j.sun.SunTimes(gctx, obs.Latitude, obs.Longitude, obs.Date)
		if err != nil {
			return fmt.Errorf("sun times: %w", err)
		}
		forecast.Sun = sun
		return nil
	})
	g.Go(func() error {
		chart, err := j.sky.AreaChart(gctx, obs)
		if err != nil {
			return fmt.Errorf("star chart: %w", err)
		}
		forecast.StarChartURL = chart
		return nil
	})
	g.Go(func() error {
		moon, err := j.sky.MoonPhase(gctx, obs)
		if err != nil {
			return fmt.Errorf("moon phase: %w", err)
		}
		forecast.MoonPhaseURL = moon
		return nil
	})
	if err := g.Wait(); err != nil {
		return batch.Failure[LocationForecast](err)
	}

	return batch.Success(forecast)
}

func (j *LocationJob) persist(ctx context.Context, b batch.Batch[LocationItem, LocationForecast]) error {
	return j.store.InsertStargazingStatus(ctx, StargazingStatuses(b))
}

// StargazingStatuses converts a resolved batch into store insert rows.
func StargazingStatuses(b batch.Batch[LocationItem, LocationForecast]) []store.StargazingStatus {
	rows := make([]store.StargazingStatus, len(b))
	for i, e := range b {
		rows[i] = store.StargazingStatus{
			CityID:       e.Item.City.ID,
			Sunrise:      e.Payload.Sun.Sunrise,
			Sunset:       e.Payload.Sun.Sunset,
			StatusDate:   e.Item.Date,
			StarChartURL: e.Payload.StarChartURL,
			MoonPhaseURL: e.Payload.MoonPhaseURL,
		}
	}
	return rows
}
