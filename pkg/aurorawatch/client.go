// Package aurorawatch reads the current geomagnetic alert level from the
// AuroraWatch UK status API.
package aurorawatch

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public AuroraWatch UK API.
const DefaultBaseURL = "https://aurorawatch-api.lancs.ac.uk"

const (
	statusPath = "/0.2/status/current-status.xml"

	// updatedLayout is the timestamp format of <updated><datetime>.
	updatedLayout = "2006-01-02T15:04:05-0700"
)

// ErrUnknownLevel is returned for a status_id outside green/yellow/amber/red.
var ErrUnknownLevel = errors.New("unknown aurora alert level")

var auroraRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "starwatch_aurorawatch_requests_total",
	Help: "Total AuroraWatch status requests by status",
}, []string{"status"})

// Level is an AuroraWatch alert level.
type Level string

// Alert levels, lowest first.
const (
	LevelGreen  Level = "green"
	LevelYellow Level = "yellow"
	LevelAmber  Level = "amber"
	LevelRed    Level = "red"
)

// ParseLevel validates a status_id.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelGreen, LevelYellow, LevelAmber, LevelRed:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// Status is the current alert level and when it was last updated.
type Status struct {
	Level     Level
	UpdatedAt time.Time
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
		Timeout:   10 * time.Second,
	}
}

// Client is the AuroraWatch UK client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new AuroraWatch client.
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
		logger:     log.With().Str("component", "aurorawatch-client").Logger(),
	}, nil
}

type currentStatus struct {
	XMLName xml.Name `xml:"current_status"`
	Updated struct {
		Datetime string `xml:"datetime"`
	} `xml:"updated"`
	SiteStatus struct {
		StatusID string `xml:"status_id,attr"`
	} `xml:"site_status"`
}

// CurrentStatus fetches the current alert level.
func (c *Client) CurrentStatus(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+statusPath, nil)
	if err != nil {
		return Status{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		auroraRequestsTotal.WithLabelValues("network_error").Inc()
		return Status{}, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()
	auroraRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().Int("status", resp.StatusCode).Msg("AuroraWatch request error")
		return Status{}, fmt.Errorf("status request: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return decodeStatus(resp.Body)
}

func decodeStatus(r io.Reader) (Status, error) {
	var doc currentStatus
	if err := xml.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&doc); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}

	level, err := ParseLevel(doc.SiteStatus.StatusID)
	if err != nil {
		return Status{}, err
	}
	updated, err := time.Parse(updatedLayout, strings.TrimSpace(doc.Updated.Datetime))
	if err != nil {
		return Status{}, fmt.Errorf("parse updated time: %w", err)
	}

	return Status{Level: level, UpdatedAt: updated}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
