package astronomy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/starwatch/internal/testutil"
	"github.com/Sternrassler/starwatch/pkg/cache"
	"github.com/redis/go-redis/v9"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig("dGVzdDpzZWNyZXQ=")
	cfg.BaseURL = baseURL
	cfg.RequestInterval = 0
	return cfg
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

var london = Observer{Latitude: 51.5072, Longitude: -0.1276, Date: "2024-05-08"}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name: "application id and secret",
			mutate: func(c *Config) {
				c.AuthKey = ""
				c.ApplicationID = "app"
				c.ApplicationSecret = "secret"
			},
		},
		{
			name:        "missing auth",
			mutate:      func(c *Config) { c.AuthKey = "" },
			expectError: true,
			errorMsg:    "auth key or application id and secret are required",
		},
		{
			name:        "missing base url",
			mutate:      func(c *Config) { c.BaseURL = "" },
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name:        "zero timeout",
			mutate:      func(c *Config) { c.Timeout = 0 },
			expectError: true,
			errorMsg:    "timeout must be > 0",
		},
		{
			name:        "negative interval",
			mutate:      func(c *Config) { c.RequestInterval = -time.Second },
			expectError: true,
			errorMsg:    "request interval must be >= 0",
		},
		{
			name:        "zero burst",
			mutate:      func(c *Config) { c.Burst = 0 },
			expectError: true,
			errorMsg:    "burst must be >= 1",
		},
		{
			name:        "zero breaker threshold",
			mutate:      func(c *Config) { c.BreakerThreshold = 0 },
			expectError: true,
			errorMsg:    "breaker threshold must be >= 1",
		},
		{
			name: "cache without ttl",
			mutate: func(c *Config) {
				c.Cache = cache.NewManager(redis.NewClient(&redis.Options{Addr: "localhost:0"}))
				c.CacheTTL = 0
			},
			expectError: true,
			errorMsg:    "cache ttl must be > 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(DefaultBaseURL)
			tt.mutate(&cfg)

			c, err := New(cfg)
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c == nil {
				t.Fatal("Expected client, got nil")
			}
		})
	}
}

func TestBuildAuthHeader(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"raw key", Config{AuthKey: "abc123"}, "Basic abc123"},
		{"prefixed key", Config{AuthKey: "Basic abc123"}, "Basic abc123"},
		{"id and secret", Config{ApplicationID: "app", ApplicationSecret: "secret"}, "Basic YXBwOnNlY3JldA=="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildAuthHeader(tt.cfg)
			if err != nil {
				t.Fatalf("buildAuthHeader() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("buildAuthHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstellationChart_Success(t *testing.T) {
	mock := testutil.NewMockAstronomy()
	defer mock.Close()

	c := newTestClient(t, testConfig(mock.URL()))

	got, err := c.ConstellationChart(context.Background(), ConstellationChartRequest{Code: "ori", Observer: london})
	if err != nil {
		t.Fatalf("ConstellationChart() error = %v", err)
	}
	if want := testutil.ImageURL(testutil.ConstellationKey("ori")); got != want {
		t.Errorf("ConstellationChart() = %q, want %q", got, want)
	}
	if auth := mock.LastAuthorization(); auth != "Basic dGVzdDpzZWNyZXQ=" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestConstellationChart_EmptyCode(t *testing.T) {
	c := newTestClient(t, testConfig(DefaultBaseURL))

	if _, err := c.ConstellationChart(context.Background(), ConstellationChartRequest{Code: " "}); err == nil {
		t.Fatal("Expected error for empty code")
	}
}

func TestRequestBodies(t *testing.T) {
	var captured []map[string]any
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		captured = append(captured, body)
		paths = append(paths, r.URL.Path)
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		w.Write([]byte(`{"data":{"imageUrl":"https://img/x.png"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, testConfig(server.URL))
	ctx := context.Background()

	if _, err := c.ConstellationChart(ctx, ConstellationChartRequest{Code: "and", Observer: london}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AreaChart(ctx, london); err != nil {
		t.Fatal(err)
	}
	if _, err := c.MoonPhase(ctx, london); err != nil {
		t.Fatal(err)
	}

	if len(captured) != 3 {
		t.Fatalf("captured %d requests, want 3", len(captured))
	}

	// Constellation view
	if paths[0] != starChartPath {
		t.Errorf("path = %s, want %s", paths[0], starChartPath)
	}
	if captured[0]["style"] != "default" {
		t.Errorf("style = %v, want default", captured[0]["style"])
	}
	view := captured[0]["view"].(map[string]any)
	if view["type"] != "constellation" {
		t.Errorf("view.type = %v", view["type"])
	}
	if code := view["parameters"].(map[string]any)["constellation"]; code != "and" {
		t.Errorf("constellation = %v", code)
	}
	observer := captured[0]["observer"].(map[string]any)
	if observer["latitude"] != 51.5072 || observer["longitude"] != -0.1276 || observer["date"] != "2024-05-08" {
		t.Errorf("observer = %v", observer)
	}

	// Area view centred on the observer latitude
	view = captured[1]["view"].(map[string]any)
	if view["type"] != "area" {
		t.Errorf("view.type = %v", view["type"])
	}
	eq := view["parameters"].(map[string]any)["position"].(map[string]any)["equatorial"].(map[string]any)
	if eq["rightAscension"] != 0.0 || eq["declination"] != 51.5072 {
		t.Errorf("equatorial = %v", eq)
	}

	// Moon phase
	if paths[2] != moonPhasePath {
		t.Errorf("path = %s, want %s", paths[2], moonPhasePath)
	}
	if captured[2]["format"] != "png" {
		t.Errorf("format = %v", captured[2]["format"])
	}
	style := captured[2]["style"].(map[string]any)
	if style["moonStyle"] != "sketch" || style["backgroundStyle"] != "stars" {
		t.Errorf("style = %v", style)
	}
	view = captured[2]["view"].(map[string]any)
	if view["type"] != "portrait-simple" || view["orientation"] != "south-up" {
		t.Errorf("view = %v", view)
	}
}

func TestMissingImageURL(t *testing.T) {
	mock := testutil.NewMockAstronomy()
	defer mock.Close()
	mock.FailNext(testutil.ConstellationKey("ori"), 1, testutil.NewMissingDataResponse())

	c := newTestClient(t, testConfig(mock.URL()))
	req := ConstellationChartRequest{Code: "ori", Observer: london}

	_, err := c.ConstellationChart(context.Background(), req)
	if !errors.Is(err, ErrMissingImageURL) {
		t.Fatalf("Expected ErrMissingImageURL, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorClass != ErrorClassPayload {
		t.Errorf("Expected payload APIError, got %v", err)
	}

	// The next request succeeds.
	if _, err := c.ConstellationChart(context.Background(), req); err != nil {
		t.Errorf("second call error = %v", err)
	}
}

func TestHTTPErrorClasses(t *testing.T) {
	tests := []struct {
		name      string
		resp      testutil.MockResponse
		wantClass ErrorClass
	}{
		{"server error", testutil.NewServerErrorResponse(), ErrorClassServer},
		{"rate limit", testutil.NewRateLimitResponse(), ErrorClassRateLimit},
		{"bad request", testutil.MockResponse{StatusCode: http.StatusBadRequest, Body: `{"error":"bad"}`}, ErrorClassClient},
		{"invalid json", testutil.MockResponse{StatusCode: http.StatusOK, Body: `not json`}, ErrorClassPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAstronomy()
			defer mock.Close()
			mock.FailAlways(testutil.AreaKey(london.Latitude, london.Longitude), tt.resp)

			c := newTestClient(t, testConfig(mock.URL()))
			_, err := c.AreaChart(context.Background(), london)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %v", err)
			}
			if apiErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %s, want %s", apiErr.ErrorClass, tt.wantClass)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, testConfig(url))
	_, err := c.MoonPhase(context.Background(), london)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorClass != ErrorClassNetwork {
		t.Fatalf("Expected network APIError, got %v", err)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	mock := testutil.NewMockAstronomy()
	defer mock.Close()
	key := testutil.MoonPhaseKey(london.Latitude, london.Longitude)
	mock.FailAlways(key, testutil.NewServerErrorResponse())

	cfg := testConfig(mock.URL())
	cfg.BreakerThreshold = 2
	cfg.BreakerTimeout = time.Minute
	c := newTestClient(t, cfg)

	for i := 0; i < 2; i++ {
		_, err := c.MoonPhase(context.Background(), london)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("call %d: expected *APIError, got %v", i, err)
		}
	}

	_, err := c.MoonPhase(context.Background(), london)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen, got %v", err)
	}
	if got := mock.Count(key); got != 2 {
		t.Errorf("server saw %d requests, want 2", got)
	}
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	mock := testutil.NewMockAstronomy()
	defer mock.Close()

	cfg := testConfig(mock.URL())
	cfg.RequestInterval = time.Hour
	cfg.Burst = 1
	c := newTestClient(t, cfg)

	// The first request consumes the burst token.
	if _, err := c.AreaChart(context.Background(), london); err != nil {
		t.Fatalf("first call error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.AreaChart(ctx, london); err == nil {
		t.Fatal("Expected rate limiter error")
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestPacingDelay(t *testing.T) {
	tests := []struct {
		interval time.Duration
		burst    int
		n        int
		want     time.Duration
	}{
		{2 * time.Second, 11, 22, 4 * time.Second},
		{2 * time.Second, 1, 22, 44 * time.Second},
		{2 * time.Second, 11, 0, 0},
		{0, 11, 22, 0},
	}

	for _, tt := range tests {
		cfg := Config{RequestInterval: tt.interval, Burst: tt.burst}
		if got := cfg.PacingDelay(tt.n); got != tt.want {
			t.Errorf("PacingDelay(%d) with interval %s burst %d = %s, want %s",
				tt.n, tt.interval, tt.burst, got, tt.want)
		}
	}
}

// renderConcurrently issues n area chart requests at once and returns how
// long the slowest took.
func renderConcurrently(t *testing.T, c *Client, n int) time.Duration {
	t.Helper()

	start := time.Now()
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			obs := Observer{Latitude: 50 + float64(i)/10, Longitude: -1, Date: "2024-05-08"}
			_, err := c.AreaChart(context.Background(), obs)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("AreaChart() error = %v", err)
		}
	}
	return time.Since(start)
}

func TestPacing_DefaultGroupStartsTogether(t *testing.T) {
	mock := testutil.NewMockAstronomy()
	defer mock.Close()

	cfg := testConfig(mock.URL())
	cfg.RequestInterval = 500 * time.Millisecond
	c := newTestClient(t, cfg)

	if elapsed := renderConcurrently(t, c, DefaultBurst); elapsed >= cfg.RequestInterval {
		t.Errorf("%d requests took %s, want < one interval (%s)", DefaultBurst, elapsed, cfg.RequestInterval)
	}
	if got := mock.GetRequestCount(); got != DefaultBurst {
		t.Errorf("server saw %d requests, want %d", got, DefaultBurst)
	}
}

func TestPacing_SecondBurstWaitsOneInterval(t *testing.T) {
	mock := testutil.NewMockAstronomy()
	defer mock.Close()

	cfg := testConfig(mock.URL())
	cfg.RequestInterval = 300 * time.Millisecond
	c := newTestClient(t, cfg)

	elapsed := renderConcurrently(t, c, 2*DefaultBurst)
	if elapsed < 200*time.Millisecond {
		t.Errorf("%d requests took %s, want pacing of about one interval", 2*DefaultBurst, elapsed)
	}
	if elapsed > 3*cfg.RequestInterval {
		t.Errorf("%d requests took %s, want about one interval (%s)", 2*DefaultBurst, elapsed, cfg.RequestInterval)
	}
}

func TestPacing_DeadlineShorterThanDelay(t *testing.T) {
	mock := testutil.NewMockAstronomy()
	defer mock.Close()

	cfg := testConfig(mock.URL())
	cfg.RequestInterval = time.Hour
	cfg.Burst = 1
	c := newTestClient(t, cfg)

	if _, err := c.AreaChart(context.Background(), london); err != nil {
		t.Fatalf("first call error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	_, err := c.AreaChart(ctx, london)
	if err == nil || !strings.Contains(err.Error(), "exceeds fetch deadline") {
		t.Fatalf("Expected pacing deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("pacing error took %s, want immediate", elapsed)
	}
}

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestCache_ServesRepeatRequests(t *testing.T) {
	redisClient := setupTestRedis(t)

	mock := testutil.NewMockAstronomy()
	defer mock.Close()

	cfg := testConfig(mock.URL())
	cfg.Cache = cache.NewManager(redisClient)
	cfg.CacheTTL = time.Hour
	c := newTestClient(t, cfg)

	req := ConstellationChartRequest{Code: "cyg", Observer: london}
	first, err := c.ConstellationChart(context.Background(), req)
	if err != nil {
		t.Fatalf("first call error = %v", err)
	}
	second, err := c.ConstellationChart(context.Background(), req)
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}

	if first != second {
		t.Errorf("cached URL = %q, want %q", second, first)
	}
	if got := mock.Count(testutil.ConstellationKey("cyg")); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestCache_FailuresNotCached(t *testing.T) {
	redisClient := setupTestRedis(t)

	mock := testutil.NewMockAstronomy()
	defer mock.Close()
	mock.FailNext(testutil.ConstellationKey("lyr"), 1, testutil.NewMissingDataResponse())

	cfg := testConfig(mock.URL())
	cfg.Cache = cache.NewManager(redisClient)
	c := newTestClient(t, cfg)

	req := ConstellationChartRequest{Code: "lyr", Observer: london}
	if _, err := c.ConstellationChart(context.Background(), req); err == nil {
		t.Fatal("Expected first call to fail")
	}
	if _, err := c.ConstellationChart(context.Background(), req); err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if got := mock.Count(testutil.ConstellationKey("lyr")); got != 2 {
		t.Errorf("server saw %d requests, want 2", got)
	}
}
