package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	selectConstellationCodes = `SELECT constellation_code FROM constellation ORDER BY constellation_code`

	selectCities = `SELECT city_id, city_name, country_id, latitude, longitude, elevation FROM city ORDER BY city_id`

	updateConstellationURL = `UPDATE constellation SET constellation_url = $1 WHERE constellation_code = $2`

	insertStargazingStatus = `INSERT INTO stargazing_status
		(city_id, sunrise, sunset, status_date, star_chart_url, moon_phase_url)
		VALUES ($1, $2, $3, $4, $5, $6)`

	selectCountries = `SELECT country_id, country_name FROM country ORDER BY country_id`

	insertAuroraStatus = `INSERT INTO aurora_status
		(country_id, aurora_status_at, camera_visibility, naked_eye_visibility)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (country_id, aurora_status_at, camera_visibility, naked_eye_visibility) DO NOTHING`

	upsertPicture = `INSERT INTO apod (apod_date, media_type, title, url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (apod_date) DO UPDATE
		SET media_type = EXCLUDED.media_type, title = EXCLUDED.title, url = EXCLUDED.url`
)

// Country is a row of the country table.
type Country struct {
	ID   int64
	Name string
}

// AuroraStatus is the aurora visibility from one country at an alert time.
type AuroraStatus struct {
	CountryID          int64
	StatusAt           time.Time
	CameraVisibility   bool
	NakedEyeVisibility bool
}

// Picture is one day's astronomy picture.
type Picture struct {
	Date      time.Time
	MediaType string
	Title     string
	URL       string
}

// City is a location the daily job forecasts for.
type City struct {
	ID        int64
	Name      string
	CountryID int64
	Latitude  float64
	Longitude float64
	Elevation float64
}

// ConstellationURL pairs a constellation code with its chart image URL.
type ConstellationURL struct {
	Code string
	URL  string
}

// StargazingStatus is one city's forecast row for a date.
type StargazingStatus struct {
	CityID       int64
	Sunrise      time.Time
	Sunset       time.Time
	StatusDate   time.Time
	StarChartURL string
	MoonPhaseURL string
}

// ConstellationCodes returns every constellation code, ordered by code.
func (s *Store) ConstellationCodes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, selectConstellationCodes)
	if err != nil {
		return nil, fmt.Errorf("query constellation codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect constellation codes: %w", err)
	}
	return codes, nil
}

// Cities returns every city, ordered by id.
func (s *Store) Cities(ctx context.Context) ([]City, error) {
	rows, err := s.pool.Query(ctx, selectCities)
	if err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	cities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (City, error) {
		var c City
		err := row.Scan(&c.ID, &c.Name, &c.CountryID, &c.Latitude, &c.Longitude, &c.Elevation)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect cities: %w", err)
	}
	return cities, nil
}

// UpdateConstellationURLs writes every URL in one transaction. If any code
// matches no row the whole update is rolled back with ErrUnknownConstellation.
func (s *Store) UpdateConstellationURLs(ctx context.Context, urls []ConstellationURL) error {
	if len(urls) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, u := range urls {
			batch.Queue(updateConstellationURL, u.URL, u.Code)
		}

		br := tx.SendBatch(ctx, batch)
		for _, u := range urls {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("update %s: %w", u.Code, err)
			}
			if tag.RowsAffected() == 0 {
				br.Close()
				return fmt.Errorf("%w: %s", ErrUnknownConstellation, u.Code)
			}
		}
		return br.Close()
	})
	if err != nil {
		return fmt.Errorf("update constellation urls: %w", err)
	}

	s.logger.Info().Int("rows", len(urls)).Msg("Updated constellation URLs")
	return nil
}

// InsertStargazingStatus inserts one row per city in one transaction.
func (s *Store) InsertStargazingStatus(ctx context.Context, statuses []StargazingStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, st := range statuses {
			batch.Queue(insertStargazingStatus,
				st.CityID, st.Sunrise, st.Sunset, st.StatusDate, st.StarChartURL, st.MoonPhaseURL)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert stargazing status: %w", err)
	}

	s.logger.Info().Int("rows", len(statuses)).Msg("Inserted stargazing status")
	return nil
}

// Countries returns every country, ordered by id.
func (s *Store) Countries(ctx context.Context) ([]Country, error) {
	rows, err := s.pool.Query(ctx, selectCountries)
	if err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}
	countries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Country, error) {
		var c Country
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect countries: %w", err)
	}
	return countries, nil
}

// InsertAuroraStatus inserts the rows in one transaction. Rows already
// recorded for the same alert are skipped, so re-running an unchanged alert
// inserts nothing. It returns the number of new rows.
func (s *Store) InsertAuroraStatus(ctx context.Context, statuses []AuroraStatus) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}

	var inserted int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, st := range statuses {
			batch.Queue(insertAuroraStatus, st.CountryID, st.StatusAt, st.CameraVisibility, st.NakedEyeVisibility)
		}

		br := tx.SendBatch(ctx, batch)
		for range statuses {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return err
			}
			inserted += tag.RowsAffected()
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("insert aurora status: %w", err)
	}

	s.logger.Info().Int64("rows", inserted).Int("skipped", len(statuses)-int(inserted)).Msg("Inserted aurora status")
	return inserted, nil
}

// UpsertPicture stores the picture of the day, replacing any earlier row
// for the same date.
func (s *Store) UpsertPicture(ctx context.Context, p Picture) error {
	if _, err := s.pool.Exec(ctx, upsertPicture, p.Date, p.MediaType, p.Title, p.URL); err != nil {
		return fmt.Errorf("upsert picture %s: %w", p.Date.Format(time.DateOnly), err)
	}
	s.logger.Info().Str("date", p.Date.Format(time.DateOnly)).Str("media_type", p.MediaType).Msg("Stored picture of the day")
	return nil
}
