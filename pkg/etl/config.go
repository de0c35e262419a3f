package etl

import (
	"fmt"
	"time"

	"github.com/Sternrassler/starwatch/pkg/batch"
)

// Coordinates is a point on Earth in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// London is the default observer for constellation charts.
var London = Coordinates{Latitude: 51.5072, Longitude: -0.1276}

// Config holds job configuration.
type Config struct {
	Batch batch.Config

	// HorizonDays is how far ahead of today the default observation date is.
	HorizonDays int

	// Observer is used by jobs that are not tied to a city.
	Observer Coordinates

	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default configuration for the named job.
func DefaultConfig(name string) Config {
	return Config{
		Batch:       batch.DefaultConfig(name),
		HorizonDays: 7,
		Observer:    London,
	}
}

func (c Config) validate() error {
	if c.HorizonDays < 0 {
		return fmt.Errorf("horizon_days must be >= 0 (got %d)", c.HorizonDays)
	}
	if c.Observer.Latitude < -90 || c.Observer.Latitude > 90 {
		return fmt.Errorf("observer latitude out of range: %g", c.Observer.Latitude)
	}
	if c.Observer.Longitude < -180 || c.Observer.Longitude > 180 {
		return fmt.Errorf("observer longitude out of range: %g", c.Observer.Longitude)
	}
	return nil
}

// ObservationDate returns the explicit date (YYYY-MM-DD) if given, otherwise
// today plus HorizonDays. The result is midnight UTC.
func (c Config) ObservationDate(explicit string) (time.Time, error) {
	if explicit != "" {
		return c.StartDate(explicit)
	}
	return c.today().AddDate(0, 0, c.HorizonDays), nil
}

// StartDate returns the explicit date (YYYY-MM-DD) if given, otherwise
// today. The result is midnight UTC.
func (c Config) StartDate(explicit string) (time.Time, error) {
	if explicit != "" {
		day, err := time.Parse(time.DateOnly, explicit)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", explicit, err)
		}
		return day, nil
	}
	return c.today(), nil
}

func (c Config) today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	y, m, d := now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
