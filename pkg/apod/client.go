// Package apod fetches NASA's Astronomy Picture of the Day.
package apod

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

// DefaultBaseURL is the public NASA API host.
const DefaultBaseURL = "https://api.nasa.gov"

// ErrInvalidPicture is returned when the response is not a usable picture.
var ErrInvalidPicture = errors.New("invalid astronomy picture")

var apodRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "starwatch_apod_requests_total",
	Help: "Total APOD requests by status",
}, []string{"status"})

// Picture is one day's astronomy picture.
type Picture struct {
	Date      time.Time
	MediaType string
	Title     string
	URL       string
}

// Config holds the client configuration.
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

// DefaultConfig returns a safe default configuration without an API key.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "starwatch/1.0",
		Timeout:   10 * time.Second,
	}
}

// Client is the APOD client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new APOD client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     log.With().Str("component", "apod-client").Logger(),
	}, nil
}

type pictureResponse struct {
	Date      string `json:"date"`
	MediaType string `json:"media_type"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

// Picture returns the picture for date (YYYY-MM-DD).
func (c *Client) Picture(ctx context.Context, date string) (Picture, error) {
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return Picture{}, fmt.Errorf("invalid date %q: %w", date, err)
	}

	q := url.Values{}
	q.Set("api_key", c.config.APIKey)
	q.Set("date", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/planetary/apod?"+q.Encode(), nil)
	if err != nil {
		return Picture{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apodRequestsTotal.WithLabelValues("network_error").Inc()
		return Picture{}, fmt.Errorf("apod request: %w", err)
	}
	defer resp.Body.Close()
	apodRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().Int("status", resp.StatusCode).Str("date", date).Msg("APOD request error")
		return Picture{}, fmt.Errorf("apod request: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded pictureResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Picture{}, fmt.Errorf("decode apod: %w", err)
	}
	if err := validate(decoded); err != nil {
		return Picture{}, err
	}

	return Picture{
		Date:      day,
		MediaType: strings.ToLower(decoded.MediaType),
		Title:     decoded.Title,
		URL:       decoded.URL,
	}, nil
}

// validate accepts images and videos with a title and an https url.
func validate(p pictureResponse) error {
	switch strings.ToLower(p.MediaType) {
	case "image", "video":
	default:
		return fmt.Errorf("%w: media type %q", ErrInvalidPicture, p.MediaType)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidPicture)
	}
	if !strings.HasPrefix(p.URL, "https://") {
		return fmt.Errorf("%w: url %q is not https", ErrInvalidPicture, p.URL)
	}
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
