// Package astronomy provides an HTTP client for the astronomyapi.com studio
// endpoints with rate limiting, a circuit breaker, and chart URL caching.
package astronomy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/starwatch/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public astronomyapi.com endpoint.
const DefaultBaseURL = "https://api.astronomyapi.com"

const (
	starChartPath = "/api/v2/studio/star-chart"
	moonPhasePath = "/api/v2/studio/moon-phase"

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 1 << 20
)

// Client is the astronomyapi.com client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	cache      *cache.Manager
	authHeader string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, without trailing slash.
	BaseURL string

	// AuthKey is the pre-encoded Basic auth key. If empty, ApplicationID and
	// ApplicationSecret are encoded instead.
	AuthKey           string
	ApplicationID     string
	ApplicationSecret string

	UserAgent string
	Timeout   time.Duration // Per HTTP request

	// Pacing: at most Burst requests are started per RequestInterval.
	// A zero interval disables pacing.
	RequestInterval time.Duration
	Burst           int

	// Circuit Breaker
	BreakerThreshold uint32        // Consecutive failures before opening
	BreakerTimeout   time.Duration // Open duration before a half-open trial request

	// Caching (optional)
	Cache    *cache.Manager
	CacheTTL time.Duration
}

// DefaultBurst lets one default-sized group of requests start together.
const DefaultBurst = 11

// DefaultConfig returns a safe default configuration.
func DefaultConfig(authKey string) Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		AuthKey:          authKey,
		UserAgent:        "starwatch/1.0",
		Timeout:          30 * time.Second,
		RequestInterval:  2 * time.Second,
		Burst:            DefaultBurst,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
		CacheTTL:         24 * time.Hour,
	}
}

// New creates a new astronomy API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	authHeader, err := buildAuthHeader(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.RequestInterval < 0 {
		return nil, fmt.Errorf("request interval must be >= 0 (got %s)", cfg.RequestInterval)
	}
	if cfg.BreakerThreshold == 0 {
		return nil, fmt.Errorf("breaker threshold must be >= 1")
	}
	if cfg.Cache != nil && cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("cache ttl must be > 0 when a cache is configured")
	}
	if cfg.Burst < 1 {
		return nil, fmt.Errorf("burst must be >= 1 (got %d)", cfg.Burst)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := log.With().Str("component", "astronomy-client").Logger()

	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Limit(float64(cfg.Burst) / cfg.RequestInterval.Seconds())
	}

	threshold := cfg.BreakerThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "astronomyapi",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				astronomyBreakerState.Set(1)
			} else {
				astronomyBreakerState.Set(0)
			}
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		breaker:    breaker,
		cache:      cfg.Cache,
		authHeader: authHeader,
		config:     cfg,
		logger:     logger,
	}, nil
}

// PacingDelay is the longest a request can wait for the limiter when n
// requests start at once and the bucket is empty.
func (c Config) PacingDelay(n int) time.Duration {
	if c.RequestInterval <= 0 || n <= 0 {
		return 0
	}
	burst := c.Burst
	if burst < 1 {
		burst = 1
	}
	return time.Duration(n) * c.RequestInterval / time.Duration(burst)
}

func buildAuthHeader(cfg Config) (string, error) {
	switch {
	case cfg.AuthKey != "":
		key := strings.TrimSpace(cfg.AuthKey)
		if strings.HasPrefix(key, "Basic ") {
			return key, nil
		}
		return "Basic " + key, nil
	case cfg.ApplicationID != "" && cfg.ApplicationSecret != "":
		raw := cfg.ApplicationID + ":" + cfg.ApplicationSecret
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw)), nil
	default:
		return "", fmt.Errorf("auth key or application id and secret are required")
	}
}

// ConstellationChartRequest selects a constellation chart as seen by an observer.
type ConstellationChartRequest struct {
	Code     string // IAU abbreviation, e.g. "ori"
	Observer Observer
}

// ConstellationChart renders a star chart focused on one constellation and
// returns its image URL.
func (c *Client) ConstellationChart(ctx context.Context, req ConstellationChartRequest) (string, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return "", fmt.Errorf("constellation code is required")
	}
	key := cache.ChartKey{
		Kind:      cache.KindConstellation,
		Date:      req.Observer.Date,
		Latitude:  req.Observer.Latitude,
		Longitude: req.Observer.Longitude,
		Params:    map[string]string{"constellation": code},
	}
	return c.render(ctx, cache.KindConstellation, starChartPath, key, newConstellationRequest(code, req.Observer))
}

// AreaChart renders a star chart of the sky area overhead the observer.
func (c *Client) AreaChart(ctx context.Context, obs Observer) (string, error) {
	key := cache.ChartKey{
		Kind:      cache.KindArea,
		Date:      obs.Date,
		Latitude:  obs.Latitude,
		Longitude: obs.Longitude,
	}
	return c.render(ctx, cache.KindArea, starChartPath, key, newAreaRequest(obs))
}

// MoonPhase renders the moon phase image for the observer's date.
func (c *Client) MoonPhase(ctx context.Context, obs Observer) (string, error) {
	key := cache.ChartKey{
		Kind:      cache.KindMoonPhase,
		Date:      obs.Date,
		Latitude:  obs.Latitude,
		Longitude: obs.Longitude,
	}
	return c.render(ctx, cache.KindMoonPhase, moonPhasePath, key, newMoonPhaseRequest(obs))
}

// render resolves one image URL: cache, rate limiter, breaker, HTTP.
func (c *Client) render(ctx context.Context, kind, path string, key cache.ChartKey, body any) (string, error) {
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			c.logger.Debug().Str("kind", kind).Str("key", key.String()).Msg("Chart served from cache")
			return entry.ImageURL, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
	}

	if err := c.pace(ctx); err != nil {
		return "", err
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, kind, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			astronomyRequestsTotal.WithLabelValues(kind, "breaker_open").Inc()
			return "", fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return "", err
	}
	imageURL := res.(string)

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, cache.NewChartEntry(imageURL, c.config.CacheTTL)); err != nil {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache chart")
		}
	}
	return imageURL, nil
}

// pace blocks until the limiter admits one request. A reservation that
// cannot be honoured is returned to the bucket so later rounds are not
// delayed by requests that never went out.
func (c *Client) pace(ctx context.Context) error {
	r := c.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate limiter: burst exceeded")
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		r.Cancel()
		return fmt.Errorf("rate limiter: pacing delay %s exceeds fetch deadline", delay.Round(time.Millisecond))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return fmt.Errorf("rate limiter: %w", ctx.Err())
	}
}

// post executes one request and extracts data.imageUrl from the response.
func (c *Client) post(ctx context.Context, kind, path string, body any) (string, error) {
	startTime := time.Now()
	defer func() {
		astronomyRequestDuration.WithLabelValues(kind).Observe(time.Since(startTime).Seconds())
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().Str("kind", kind).Str("path", path).Msg("Executing astronomy request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		astronomyErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		astronomyRequestsTotal.WithLabelValues(kind, "network_error").Inc()
		return "", &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	status := strconv.Itoa(resp.StatusCode)
	if err != nil {
		astronomyErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		astronomyRequestsTotal.WithLabelValues(kind, status).Inc()
		return "", &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
	}
	astronomyRequestsTotal.WithLabelValues(kind, status).Inc()

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		astronomyErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("kind", kind).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Astronomy request error")
		return "", &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    errorMessage(resp.Status, raw),
		}
	}

	var decoded studioResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		astronomyErrorsTotal.WithLabelValues(string(ErrorClassPayload)).Inc()
		return "", &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassPayload, Message: "decode response", Err: err}
	}
	if decoded.Data == nil || decoded.Data.ImageURL == "" {
		astronomyErrorsTotal.WithLabelValues(string(ErrorClassPayload)).Inc()
		return "", &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassPayload, Message: "no image", Err: ErrMissingImageURL}
	}
	return decoded.Data.ImageURL, nil
}

// errorMessage prefers a short body excerpt over the bare status line.
func errorMessage(status string, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return status
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return status + ": " + msg
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
