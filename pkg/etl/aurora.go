package etl

import (
	"context"
	"fmt"

	"github.com/Sternrassler/starwatch/pkg/aurorawatch"
	"github.com/Sternrassler/starwatch/pkg/batch"
	"github.com/Sternrassler/starwatch/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AuroraStore is the storage the aurora job needs.
type AuroraStore interface {
	Countries(ctx context.Context) ([]store.Country, error)
	InsertAuroraStatus(ctx context.Context, statuses []store.AuroraStatus) (int64, error)
}

// StatusFetcher reads the current aurora alert level.
type StatusFetcher interface {
	CurrentStatus(ctx context.Context) (aurorawatch.Status, error)
}

// AuroraItem is the single alert lookup of an aurora run.
type AuroraItem struct{}

// ID implements batch.Item.
func (AuroraItem) ID() string {
	return "aurora-status"
}

// AuroraJob records how visible an aurora is from every country.
type AuroraJob struct {
	store  AuroraStore
	status StatusFetcher
	runner *batch.Runner[AuroraItem, aurorawatch.Status]
	config Config
	logger zerolog.Logger
}

// NewAuroraJob creates the aurora job.
func NewAuroraJob(cfg Config, st AuroraStore, status StatusFetcher) (*AuroraJob, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if status == nil {
		return nil, fmt.Errorf("status fetcher is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Batch.Name == "" {
		cfg.Batch.Name = "aurora"
	}

	j := &AuroraJob{
		store:  st,
		status: status,
		config: cfg,
		logger: log.With().Str("component", "etl").Str("job", cfg.Batch.Name).Logger(),
	}

	runner, err := batch.NewRunner[AuroraItem, aurorawatch.Status](cfg.Batch, batch.FetchFunc[AuroraItem, aurorawatch.Status](j.fetch))
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}
	j.runner = runner

	return j, nil
}

// Run fetches the current alert level and stores one row per country.
func (j *AuroraJob) Run(ctx context.Context) (batch.Report, error) {
	countries, err := j.store.Countries(ctx)
	if err != nil {
		return batch.Report{Job: j.config.Batch.Name}, fmt.Errorf("load countries: %w", err)
	}

	sink := batch.SinkFunc[AuroraItem, aurorawatch.Status](func(ctx context.Context, b batch.Batch[AuroraItem, aurorawatch.Status]) error {
		return j.persist(ctx, countries, b)
	})
	return j.runner.Process(ctx, []AuroraItem{{}}, sink)
}

func (j *AuroraJob) fetch(ctx context.Context, _ AuroraItem) batch.Result[aurorawatch.Status] {
	status, err := j.status.CurrentStatus(ctx)
	if err != nil {
		return batch.Failure[aurorawatch.Status](err)
	}
	return batch.Success(status)
}

func (j *AuroraJob) persist(ctx context.Context, countries []store.Country, b batch.Batch[AuroraItem, aurorawatch.Status]) error {
	for _, e := range b {
		rows, skipped := AuroraStatuses(countries, e.Payload)
		for _, name := range skipped {
			j.logger.Debug().Str("country", name).Msg("No aurora visibility rule for country")
		}

		inserted, err := j.store.InsertAuroraStatus(ctx, rows)
		if err != nil {
			return err
		}
		j.logger.Info().
			Str("level", string(e.Payload.Level)).
			Time("updated_at", e.Payload.UpdatedAt).
			Int64("new_rows", inserted).
			Msg("Recorded aurora status")
	}
	return nil
}

// AuroraStatuses maps an alert to one row per country with a visibility
// rule. Countries without one are returned by name in skipped.
func AuroraStatuses(countries []store.Country, status aurorawatch.Status) (rows []store.AuroraStatus, skipped []string) {
	for _, c := range countries {
		v, ok := aurorawatch.VisibilityIn(status.Level, c.Name)
		if !ok {
			skipped = append(skipped, c.Name)
			continue
		}
		rows = append(rows, store.AuroraStatus{
			CountryID:          c.ID,
			StatusAt:           status.UpdatedAt,
			CameraVisibility:   v.Camera,
			NakedEyeVisibility: v.NakedEye,
		})
	}
	return rows, skipped
}
