package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/starwatch/pkg/astronomy"
	"github.com/Sternrassler/starwatch/pkg/batch"
	"github.com/Sternrassler/starwatch/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConstellationStore is the storage the constellation job needs.
type ConstellationStore interface {
	ConstellationCodes(ctx context.Context) ([]string, error)
	UpdateConstellationURLs(ctx context.Context, urls []store.ConstellationURL) error
}

// ChartFetcher renders constellation charts.
type ChartFetcher interface {
	ConstellationChart(ctx context.Context, req astronomy.ConstellationChartRequest) (string, error)
}

// ConstellationItem is one constellation chart to render.
type ConstellationItem struct {
	Code     string
	Observer astronomy.Observer
}

// ID implements batch.Item.
func (i ConstellationItem) ID() string {
	return i.Code
}

// ConstellationJob refreshes the chart URL of every constellation.
type ConstellationJob struct {
	store  ConstellationStore
	charts ChartFetcher
	runner *batch.Runner[ConstellationItem, string]
	config Config
	logger zerolog.Logger
}

// NewConstellationJob creates the constellation job.
func NewConstellationJob(cfg Config, st ConstellationStore, charts ChartFetcher) (*ConstellationJob, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if charts == nil {
		return nil, fmt.Errorf("chart fetcher is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Batch.Name == "" {
		cfg.Batch.Name = "constellations"
	}

	j := &ConstellationJob{
		store:  st,
		charts: charts,
		config: cfg,
		logger: log.With().Str("component", "etl").Str("job", cfg.Batch.Name).Logger(),
	}

	runner, err := batch.NewRunner[ConstellationItem, string](cfg.Batch, batch.FetchFunc[ConstellationItem, string](j.fetch))
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}
	j.runner = runner

	return j, nil
}

// Run renders and stores a chart for every constellation as seen on date
// (YYYY-MM-DD, empty for the default horizon).
func (j *ConstellationJob) Run(ctx context.Context, date string) (batch.Report, error) {
	day, err := j.config.ObservationDate(date)
	if err != nil {
		return batch.Report{Job: j.config.Batch.Name}, err
	}

	codes, err := j.store.ConstellationCodes(ctx)
	if err != nil {
		return batch.Report{Job: j.config.Batch.Name}, fmt.Errorf("load constellations: %w", err)
	}

	items := ConstellationItems(codes, j.config.Observer, day)
	j.logger.Info().
		Int("constellations", len(items)).
		Str("date", day.Format(time.DateOnly)).
		Msg("Refreshing constellation charts")

	return j.runner.Process(ctx, items, batch.SinkFunc[ConstellationItem, string](j.persist))
}

// ConstellationItems builds one work item per code, in code order.
func ConstellationItems(codes []string, at Coordinates, day time.Time) []ConstellationItem {
	obs := astronomy.Observer{
		Latitude:  at.Latitude,
		Longitude: at.Longitude,
		Date:      day.Format(time.DateOnly),
	}
	items := make([]ConstellationItem, len(codes))
	for i, code := range codes {
		items[i] = ConstellationItem{Code: code, Observer: obs}
	}
	return items
}

func (j *ConstellationJob) fetch(ctx context.Context, item ConstellationItem) batch.Result[string] {
	url, err := j.charts.ConstellationChart(ctx, astronomy.ConstellationChartRequest{
		Code:     item.Code,
		Observer: item.Observer,
	})
	if err != nil {
		return batch.Failure[string](err)
	}
	return batch.Success(url)
}

func (j *ConstellationJob) persist(ctx context.Context, b batch.Batch[ConstellationItem, string]) error {
	return j.store.UpdateConstellationURLs(ctx, ConstellationURLs(b))
}

// ConstellationURLs converts a resolved batch into store update rows.
func ConstellationURLs(b batch.Batch[ConstellationItem, string]) []store.ConstellationURL {
	urls := make([]store.ConstellationURL, len(b))
	for i, e := range b {
		urls[i] = store.ConstellationURL{Code: e.Item.Code, URL: e.Payload}
	}
	return urls
}
