package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/starwatch/pkg/apod"
	"github.com/Sternrassler/starwatch/pkg/batch"
	"github.com/Sternrassler/starwatch/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PictureStore is the storage the picture job needs.
type PictureStore interface {
	UpsertPicture(ctx context.Context, p store.Picture) error
}

// PictureFetcher looks up the astronomy picture of a date.
type PictureFetcher interface {
	Picture(ctx context.Context, date string) (apod.Picture, error)
}

// PictureItem is one date whose picture to fetch.
type PictureItem struct {
	Date time.Time
}

// ID implements batch.Item.
func (i PictureItem) ID() string {
	return i.Date.Format(time.DateOnly)
}

// PictureJob stores the astronomy picture of the day.
type PictureJob struct {
	store    PictureStore
	pictures PictureFetcher
	runner   *batch.Runner[PictureItem, apod.Picture]
	config   Config
	logger   zerolog.Logger
}

// NewPictureJob creates the picture job.
func NewPictureJob(cfg Config, st PictureStore, pictures PictureFetcher) (*PictureJob, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if pictures == nil {
		return nil, fmt.Errorf("picture fetcher is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Batch.Name == "" {
		cfg.Batch.Name = "apod"
	}

	j := &PictureJob{
		store:    st,
		pictures: pictures,
		config:   cfg,
		logger:   log.With().Str("component", "etl").Str("job", cfg.Batch.Name).Logger(),
	}

	runner, err := batch.NewRunner[PictureItem, apod.Picture](cfg.Batch, batch.FetchFunc[PictureItem, apod.Picture](j.fetch))
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}
	j.runner = runner

	return j, nil
}

// Run fetches and stores the picture of date (YYYY-MM-DD, empty for today).
func (j *PictureJob) Run(ctx context.Context, date string) (batch.Report, error) {
	day, err := j.config.StartDate(date)
	if err != nil {
		return batch.Report{Job: j.config.Batch.Name}, err
	}

	j.logger.Info().Str("date", day.Format(time.DateOnly)).Msg("Fetching picture of the day")
	return j.runner.Process(ctx, []PictureItem{{Date: day}}, batch.SinkFunc[PictureItem, apod.Picture](j.persist))
}

func (j *PictureJob) fetch(ctx context.Context, item PictureItem) batch.Result[apod.Picture] {
	p, err := j.pictures.Picture(ctx, item.ID())
	if err != nil {
		return batch.Failure[apod.Picture](err)
	}
	return batch.Success(p)
}

func (j *PictureJob) persist(ctx context.Context, b batch.Batch[PictureItem, apod.Picture]) error {
	for _, e := range b {
		if err := j.store.UpsertPicture(ctx, store.Picture{
			Date:      e.Item.Date,
			MediaType: e.Payload.MediaType,
			Title:     e.Payload.Title,
			URL:       e.Payload.URL,
		}); err != nil {
			return err
		}
	}
	return nil
}
