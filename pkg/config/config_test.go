package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STARWATCH_ASTRONOMY_AUTH_KEY", "secret")

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, 11, s.Batch.GroupSize)
	assert.Equal(t, 60*time.Second, s.Batch.FetchTimeout)
	assert.Equal(t, 5, s.Batch.MaxAttempts)
	assert.Equal(t, 2*time.Second, s.Astronomy.RequestInterval)
	assert.Equal(t, 11, s.Astronomy.Burst)
	assert.Equal(t, uint32(5), s.Astronomy.BreakerThreshold)
	assert.Equal(t, 7, s.Job.HorizonDays)
	assert.InDelta(t, 51.5072, s.Job.ObserverLatitude, 1e-9)
	assert.InDelta(t, -0.1276, s.Job.ObserverLongitude, 1e-9)
	assert.Equal(t, "secret", s.Astronomy.AuthKey)
	assert.False(t, s.Notify.Enabled)
	assert.Equal(t, "https://aurorawatch-api.lancs.ac.uk", s.Aurora.BaseURL)
	assert.Equal(t, 10*time.Second, s.Aurora.Timeout)
	assert.Equal(t, "https://api.nasa.gov", s.APOD.BaseURL)
	assert.Empty(t, s.APOD.APIKey)
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("ASTRONOMY_BASIC_AUTH_KEY", "legacy-key")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USERNAME", "star")
	t.Setenv("DB_PASSWORD", "watch")
	t.Setenv("DB_NAME", "starwatch")

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "legacy-key", s.Astronomy.AuthKey)
	assert.Equal(t, "db.internal", s.Database.Host)
	assert.Equal(t, 6543, s.Database.Port)
	assert.Equal(t, "star", s.Database.User)
	assert.Equal(t, "watch", s.Database.Password)
	assert.Equal(t, "starwatch", s.Database.Name)
}

func TestLoad_NASAKeyFromLegacyEnv(t *testing.T) {
	t.Setenv("STARWATCH_ASTRONOMY_AUTH_KEY", "secret")
	t.Setenv("NASA_API_KEY", "nasa-key")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "nasa-key", s.APOD.APIKey)
	assert.Equal(t, "nasa-key", s.APODConfig().APIKey)
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("ASTRONOMY_BASIC_AUTH_KEY", "legacy-key")
	t.Setenv("STARWATCH_ASTRONOMY_AUTH_KEY", "new-key")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "new-key", s.Astronomy.AuthKey)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "starwatch.yaml", `
log:
  level: debug
batch:
  group_size: 5
  fetch_timeout: 15s
  max_attempts: 0
astronomy:
  auth_key: from-file
  request_interval: 500ms
redis:
  addr: localhost:6379
  db: 3
notify:
  enabled: true
  sender: starwatch@example.com
  recipients:
    - ops@example.com
`)
	t.Setenv("STARWATCH_BATCH_GROUP_SIZE", "7")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, 7, s.Batch.GroupSize, "environment must win over the file")
	assert.Equal(t, 15*time.Second, s.Batch.FetchTimeout)
	assert.Equal(t, 0, s.Batch.MaxAttempts)
	assert.Equal(t, "from-file", s.Astronomy.AuthKey)
	assert.Equal(t, 500*time.Millisecond, s.Astronomy.RequestInterval)
	assert.Equal(t, []string{"ops@example.com"}, s.Notify.Recipients)

	opts := s.RedisOptions()
	require.NotNil(t, opts)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
}

func TestLoad_TOMLFile(t *testing.T) {
	path := writeFile(t, "starwatch.toml", `
[astronomy]
application_id = "app"
application_secret = "secret"

[job]
horizon_days = 3
`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "app", s.Astronomy.ApplicationID)
	assert.Equal(t, 3, s.Job.HorizonDays)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("STARWATCH_ASTRONOMY_AUTH_KEY", "secret")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestLoad_RecipientsFromEnv(t *testing.T) {
	t.Setenv("STARWATCH_ASTRONOMY_AUTH_KEY", "secret")
	t.Setenv("STARWATCH_NOTIFY_ENABLED", "true")
	t.Setenv("STARWATCH_NOTIFY_SENDER", "starwatch@example.com")
	t.Setenv("STARWATCH_NOTIFY_RECIPIENTS", "a@example.com,b@example.com")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, s.Notify.Recipients)
}

func TestValidate(t *testing.T) {
	valid := func() Settings {
		return Settings{
			Batch:     BatchSettings{GroupSize: 11, FetchTimeout: time.Minute, MaxAttempts: 5, Jitter: 0.2},
			Job:       JobSettings{HorizonDays: 7},
			Astronomy: AstronomySettings{BaseURL: "https://api.astronomyapi.com", AuthKey: "k", RequestInterval: 2 * time.Second, Burst: 11},
			Aurora:    AuroraSettings{BaseURL: "https://aurorawatch-api.lancs.ac.uk", Timeout: 10 * time.Second},
			APOD:      APODSettings{BaseURL: "https://api.nasa.gov", Timeout: 10 * time.Second},
			Database:  DatabaseSettings{Host: "localhost", Name: "postgres"},
		}
	}

	tests := []struct {
		name     string
		mutate   func(*Settings)
		contains []string
	}{
		{name: "valid", mutate: func(*Settings) {}},
		{
			name:     "group size",
			mutate:   func(s *Settings) { s.Batch.GroupSize = 0 },
			contains: []string{"batch.group_size"},
		},
		{
			name:     "missing auth",
			mutate:   func(s *Settings) { s.Astronomy.AuthKey = "" },
			contains: []string{"astronomy.auth_key"},
		},
		{
			name:     "secret without id",
			mutate:   func(s *Settings) { s.Astronomy.AuthKey = ""; s.Astronomy.ApplicationSecret = "s" },
			contains: []string{"astronomy.auth_key"},
		},
		{
			name: "several problems reported together",
			mutate: func(s *Settings) {
				s.Batch.FetchTimeout = 0
				s.Batch.Jitter = 1
				s.Database = DatabaseSettings{}
			},
			contains: []string{"batch.fetch_timeout", "batch.jitter", "database.dsn"},
		},
		{
			name:     "zero burst",
			mutate:   func(s *Settings) { s.Astronomy.Burst = 0 },
			contains: []string{"astronomy.burst"},
		},
		{
			// 16 locations x 2 charts spaced 2s apart need 64s of pacing.
			name: "pacing exceeds fetch timeout",
			mutate: func(s *Settings) {
				s.Batch.GroupSize = 16
				s.Astronomy.Burst = 1
			},
			contains: []string{"astronomy pacing for a group of 16", "batch.fetch_timeout"},
		},
		{
			name: "pacing within fetch timeout",
			mutate: func(s *Settings) {
				s.Batch.GroupSize = 16
				s.Astronomy.Burst = 16
			},
		},
		{
			name:     "aurorawatch timeout",
			mutate:   func(s *Settings) { s.Aurora.Timeout = 0 },
			contains: []string{"aurorawatch.timeout"},
		},
		{
			name:     "apod base url",
			mutate:   func(s *Settings) { s.APOD.BaseURL = "" },
			contains: []string{"apod.base_url"},
		},
		{
			name:     "notify without recipients",
			mutate:   func(s *Settings) { s.Notify = NotifySettings{Enabled: true, Region: "eu-west-2", Sender: "a@b.c"} },
			contains: []string{"notify.recipients"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := s.Validate()
			if len(tt.contains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.contains {
				assert.ErrorContains(t, err, want)
			}
		})
	}
}

func TestBuilders(t *testing.T) {
	t.Setenv("STARWATCH_ASTRONOMY_AUTH_KEY", "secret")
	t.Setenv("STARWATCH_JOB_OBSERVER_LATITUDE", "48.8566")

	s, err := Load("")
	require.NoError(t, err)

	bc := s.BatchConfig("constellations")
	assert.Equal(t, "constellations", bc.Name)
	assert.Equal(t, 11, bc.GroupSize)
	assert.Equal(t, 5, bc.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, bc.Retry.MaxBackoff)

	jc := s.JobConfig("locations")
	assert.Equal(t, "locations", jc.Batch.Name)
	assert.Equal(t, 7, jc.HorizonDays)
	assert.InDelta(t, 48.8566, jc.Observer.Latitude, 1e-9)

	ac := s.AstronomyConfig(nil)
	assert.Equal(t, "secret", ac.AuthKey)
	assert.Nil(t, ac.Cache)
	assert.Equal(t, 24*time.Hour, ac.CacheTTL)

	assert.Equal(t, "https://api.open-meteo.com", s.OpenMeteoConfig().BaseURL)
	assert.Equal(t, "https://aurorawatch-api.lancs.ac.uk", s.AuroraWatchConfig().BaseURL)
	assert.Equal(t, 10*time.Second, s.AuroraWatchConfig().Timeout)
	assert.Equal(t, "https://api.nasa.gov", s.APODConfig().BaseURL)
	assert.Equal(t, "postgres", s.StoreConfig().Database)
	assert.Nil(t, s.RedisOptions())
	assert.Equal(t, "eu-west-2", s.SESConfig().Region)

	lc := s.LoggingConfig(os.Stderr)
	assert.Equal(t, "info", string(lc.Level))
	assert.Empty(t, lc.File.Path)
}
