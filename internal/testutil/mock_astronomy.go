// Package testutil provides testing utilities for starwatch: an httptest
// server that speaks the astronomyapi.com studio, open-meteo forecast,
// AuroraWatch UK status and NASA APOD APIs.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines a scripted response for a mock request.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

type script struct {
	remaining int // -1 means forever
	resp      MockResponse
}

// MockAstronomy is a configurable mock of the astronomy and open-meteo APIs.
// Every request is identified by a key (see ConstellationKey, AreaKey,
// MoonPhaseKey and SunKey); failures are scripted per key.
type MockAstronomy struct {
	server *httptest.Server

	mu        sync.Mutex
	scripts   map[string]*script
	counts    map[string]int
	total     int
	lastAuth  string
	utcOffset int

	auroraStatus  string
	auroraUpdated string
	pictures      map[string]Picture
}

// Picture is an APOD entry served by the mock.
type Picture struct {
	MediaType string `json:"media_type"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

// NewMockAstronomy creates and starts a new mock server.
func NewMockAstronomy() *MockAstronomy {
	mock := &MockAstronomy{
		scripts:       make(map[string]*script),
		counts:        make(map[string]int),
		auroraStatus:  "green",
		auroraUpdated: "2025-02-12T10:24:32+0000",
		pictures:      make(map[string]Picture),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/studio/star-chart", mock.handleStudio)
	mux.HandleFunc("/api/v2/studio/moon-phase", mock.handleStudio)
	mux.HandleFunc("/v1/forecast", mock.handleForecast)
	mux.HandleFunc("/0.2/status/current-status.xml", mock.handleAurora)
	mux.HandleFunc("/planetary/apod", mock.handleAPOD)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockAstronomy) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAstronomy) Close() {
	m.server.Close()
}

// FailNext makes the next n requests for key answer with resp.
func (m *MockAstronomy) FailNext(key string, n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[key] = &script{remaining: n, resp: resp}
}

// FailAlways makes every request for key answer with resp.
func (m *MockAstronomy) FailAlways(key string, resp MockResponse) {
	m.FailNext(key, -1, resp)
}

// SetUTCOffset sets the utc_offset_seconds reported by the forecast endpoint.
func (m *MockAstronomy) SetUTCOffset(seconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utcOffset = seconds
}

// SetAuroraStatus sets the status_id and update time of the AuroraWatch feed.
func (m *MockAstronomy) SetAuroraStatus(status, updated string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auroraStatus = status
	m.auroraUpdated = updated
}

// SetPicture overrides the APOD entry for date.
func (m *MockAstronomy) SetPicture(date string, p Picture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pictures[date] = p
}

// Count returns how many requests were received for key.
func (m *MockAstronomy) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

// GetRequestCount returns the total number of requests received.
func (m *MockAstronomy) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// LastAuthorization returns the Authorization header of the last request.
func (m *MockAstronomy) LastAuthorization() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAuth
}

// Reset clears counters and scripts.
func (m *MockAstronomy) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = make(map[string]*script)
	m.counts = make(map[string]int)
	m.total = 0
	m.lastAuth = ""
}

// record counts a request and returns its scripted response, if any.
func (m *MockAstronomy) record(key string, r *http.Request) (MockResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.counts[key]++
	m.lastAuth = r.Header.Get("Authorization")

	s, ok := m.scripts[key]
	if !ok || s.remaining == 0 {
		return MockResponse{}, false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	return s.resp, true
}

type studioBody struct {
	Observer struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Date      string  `json:"date"`
	} `json:"observer"`
	View struct {
		Type       string `json:"type"`
		Parameters struct {
			Constellation string `json:"constellation"`
		} `json:"parameters"`
	} `json:"view"`
}

func (m *MockAstronomy) handleStudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body studioBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResponse(w, MockResponse{StatusCode: http.StatusBadRequest, Body: `{"error":"bad json"}`})
		return
	}

	var key string
	switch {
	case r.URL.Path == "/api/v2/studio/moon-phase":
		key = MoonPhaseKey(body.Observer.Latitude, body.Observer.Longitude)
	case body.View.Type == "constellation":
		key = ConstellationKey(body.View.Parameters.Constellation)
	default:
		key = AreaKey(body.Observer.Latitude, body.Observer.Longitude)
	}

	if resp, scripted := m.record(key, r); scripted {
		writeResponse(w, resp)
		return
	}
	if r.Header.Get("Authorization") == "" {
		writeResponse(w, MockResponse{StatusCode: http.StatusUnauthorized, Body: `{"error":"unauthorized"}`})
		return
	}

	writeResponse(w, MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"data":{"imageUrl":%q}}`, ImageURL(key)),
	})
}

func (m *MockAstronomy) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, _ := strconv.ParseFloat(q.Get("latitude"), 64)
	lon, _ := strconv.ParseFloat(q.Get("longitude"), 64)
	date := q.Get("start_date")

	key := SunKey(lat, lon)
	if resp, scripted := m.record(key, r); scripted {
		writeResponse(w, resp)
		return
	}

	m.mu.Lock()
	offset := m.utcOffset
	m.mu.Unlock()

	writeResponse(w, MockResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`{"latitude":%g,"longitude":%g,"utc_offset_seconds":%d,`+
			`"daily":{"time":[%q],"sunrise":[%q],"sunset":[%q]}}`,
			lat, lon, offset, date, date+"T06:00", date+"T19:30"),
	})
}

const auroraXML = `<?xml version='1.0' encoding='UTF-8' standalone='yes'?>
<!DOCTYPE current_status PUBLIC "-//AuroraWatch-API//DTD REST 0.2.5//EN" "">
<current_status api_version="0.2.5"><updated><datetime>%s</datetime></updated><site_status project_id="" site_id="" site_url="" status_id="%s"/></current_status>
`

func (m *MockAstronomy) handleAurora(w http.ResponseWriter, r *http.Request) {
	if resp, scripted := m.record(AuroraKey, r); scripted {
		writeResponse(w, resp)
		return
	}

	m.mu.Lock()
	body := fmt.Sprintf(auroraXML, m.auroraUpdated, m.auroraStatus)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func (m *MockAstronomy) handleAPOD(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")

	if resp, scripted := m.record(PictureKey(date), r); scripted {
		writeResponse(w, resp)
		return
	}
	if q.Get("api_key") == "" {
		writeResponse(w, MockResponse{StatusCode: http.StatusForbidden, Body: `{"error":{"code":"API_KEY_MISSING"}}`})
		return
	}

	m.mu.Lock()
	p, ok := m.pictures[date]
	m.mu.Unlock()
	if !ok {
		p = Picture{
			MediaType: "image",
			Title:     "Picture of " + date,
			URL:       PictureURL(date),
		}
	}

	body, _ := json.Marshal(struct {
		Date string `json:"date"`
		Picture
	}{Date: date, Picture: p})
	writeResponse(w, MockResponse{StatusCode: http.StatusOK, Body: string(body)})
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// ConstellationKey identifies constellation chart requests.
func ConstellationKey(code string) string {
	return "constellation:" + code
}

// AreaKey identifies area chart requests.
func AreaKey(lat, lon float64) string {
	return fmt.Sprintf("area:%.4f,%.4f", lat, lon)
}

// MoonPhaseKey identifies moon phase requests.
func MoonPhaseKey(lat, lon float64) string {
	return fmt.Sprintf("moon-phase:%.4f,%.4f", lat, lon)
}

// SunKey identifies forecast requests.
func SunKey(lat, lon float64) string {
	return fmt.Sprintf("sun:%.4f,%.4f", lat, lon)
}

// AuroraKey identifies AuroraWatch status requests.
const AuroraKey = "aurora"

// PictureKey identifies APOD requests.
func PictureKey(date string) string {
	return "apod:" + date
}

// PictureURL is the default APOD image URL the mock returns for date.
func PictureURL(date string) string {
	return "https://apod.example.test/image/" + date + ".jpg"
}

// ImageURL is the image URL the mock returns for key.
func ImageURL(key string) string {
	return "https://images.example.test/" + url.PathEscape(key) + ".png"
}

// NewMissingDataResponse creates a 200 response without the data field,
// which the astronomy API returns intermittently.
func NewMissingDataResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"errors":[{"message":"chart generation pending"}]}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
	}
}
