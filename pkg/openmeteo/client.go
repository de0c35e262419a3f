// Package openmeteo fetches sunrise and sunset times from the Open-Meteo
// forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public Open-Meteo endpoint.
const DefaultBaseURL = "https://api.open-meteo.com"

// ErrNoDailyData is returned when the response carries no sunrise or sunset.
var ErrNoDailyData = errors.New("open-meteo response has no daily sunrise/sunset")

// localLayout is the ISO8601 local time format Open-Meteo uses for daily values.
const localLayout = "2006-01-02T15:04"

var openMeteoRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "starwatch_openmeteo_requests_total",
	Help: "Total Open-Meteo requests by status",
}, []string{"status"})

// SunTimes are the sunrise and sunset for one location and date.
type SunTimes struct {
	Sunrise time.Time
	Sunset  time.Time
}

// Config holds the client configuration.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "starwatch/1.0",
		Timeout:   30 * time.Second,
	}
}

// Client is the Open-Meteo forecast client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new Open-Meteo client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     log.With().Str("component", "openmeteo-client").Logger(),
	}, nil
}

type forecastResponse struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Daily            struct {
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// SunTimes returns sunrise and sunset at lat/lon on date (YYYY-MM-DD),
// in the location's own UTC offset.
func (c *Client) SunTimes(ctx context.Context, lat, lon float64, date string) (SunTimes, error) {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return SunTimes{}, fmt.Errorf("invalid date %q: %w", date, err)
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("daily", "sunrise,sunset")
	q.Set("timezone", "auto")
	q.Set("start_date", date)
	q.Set("end_date", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return SunTimes{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		openMeteoRequestsTotal.WithLabelValues("network_error").Inc()
		return SunTimes{}, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()
	openMeteoRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Float64("latitude", lat).
			Float64("longitude", lon).
			Msg("Forecast request error")
		return SunTimes{}, fmt.Errorf("forecast request: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return SunTimes{}, fmt.Errorf("decode forecast: %w", err)
	}
	if len(decoded.Daily.Sunrise) == 0 || len(decoded.Daily.Sunset) == 0 {
		return SunTimes{}, ErrNoDailyData
	}

	zone := time.FixedZone("", decoded.UTCOffsetSeconds)
	sunrise, err := time.ParseInLocation(localLayout, decoded.Daily.Sunrise[0], zone)
	if err != nil {
		return SunTimes{}, fmt.Errorf("parse sunrise: %w", err)
	}
	sunset, err := time.ParseInLocation(localLayout, decoded.Daily.Sunset[0], zone)
	if err != nil {
		return SunTimes{}, fmt.Errorf("parse sunset: %w", err)
	}

	c.logger.Debug().
		Str("date", date).
		Time("sunrise", sunrise).
		Time("sunset", sunset).
		Msg("Fetched sun times")

	return SunTimes{Sunrise: sunrise, Sunset: sunset}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
