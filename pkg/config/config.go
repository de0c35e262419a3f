// Package config loads starwatch settings from defaults, an optional config
// file and the environment, and converts them into per-package configs.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/starwatch/pkg/astronomy"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STARWATCH_BATCH_GROUP_SIZE.
const EnvPrefix = "STARWATCH"

// Settings is the full starwatch configuration.
type Settings struct {
	Log       LogSettings       `mapstructure:"log"`
	Batch     BatchSettings     `mapstructure:"batch"`
	Job       JobSettings       `mapstructure:"job"`
	Astronomy AstronomySettings `mapstructure:"astronomy"`
	OpenMeteo OpenMeteoSettings `mapstructure:"openmeteo"`
	Aurora    AuroraSettings    `mapstructure:"aurorawatch"`
	APOD      APODSettings      `mapstructure:"apod"`
	Database  DatabaseSettings  `mapstructure:"database"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Notify    NotifySettings    `mapstructure:"notify"`
	Metrics   MetricsSettings   `mapstructure:"metrics"`
}

type LogSettings struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type BatchSettings struct {
	GroupSize      int           `mapstructure:"group_size"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
	Jitter         float64       `mapstructure:"jitter"`
}

type JobSettings struct {
	HorizonDays       int     `mapstructure:"horizon_days"`
	ObserverLatitude  float64 `mapstructure:"observer_latitude"`
	ObserverLongitude float64 `mapstructure:"observer_longitude"`
}

type AstronomySettings struct {
	BaseURL           string        `mapstructure:"base_url"`
	AuthKey           string        `mapstructure:"auth_key"`
	ApplicationID     string        `mapstructure:"application_id"`
	ApplicationSecret string        `mapstructure:"application_secret"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestInterval   time.Duration `mapstructure:"request_interval"`
	Burst             int           `mapstructure:"burst"`
	BreakerThreshold  uint32        `mapstructure:"breaker_threshold"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

type OpenMeteoSettings struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuroraSettings struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// APODSettings configures the picture of the day job. APIKey is only
// required by that job.
type APODSettings struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseSettings struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NotifySettings struct {
	Enabled         bool     `mapstructure:"enabled"`
	Region          string   `mapstructure:"region"`
	Sender          string   `mapstructure:"sender"`
	Recipients      []string `mapstructure:"recipients"`
	AccessKeyID     string   `mapstructure:"access_key_id"`
	SecretAccessKey string   `mapstructure:"secret_access_key"`
}

type MetricsSettings struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
}

// legacyEnv maps keys to the environment names the pipeline used before
// the STARWATCH_ prefix existed.
var legacyEnv = map[string]string{
	"database.host":      "DB_HOST",
	"database.port":      "DB_PORT",
	"database.user":      "DB_USERNAME",
	"database.password":  "DB_PASSWORD",
	"database.name":      "DB_NAME",
	"astronomy.auth_key": "ASTRONOMY_BASIC_AUTH_KEY",
	"notify.sender":      "EMAIL",
	"apod.api_key":       "NASA_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("batch.group_size", 11)
	v.SetDefault("batch.fetch_timeout", 60*time.Second)
	v.SetDefault("batch.max_attempts", 5)
	v.SetDefault("batch.initial_backoff", 2*time.Second)
	v.SetDefault("batch.max_backoff", 30*time.Second)
	v.SetDefault("batch.multiplier", 2.0)
	v.SetDefault("batch.jitter", 0.2)

	v.SetDefault("job.horizon_days", 7)
	v.SetDefault("job.observer_latitude", 51.5072)
	v.SetDefault("job.observer_longitude", -0.1276)

	v.SetDefault("astronomy.base_url", "https://api.astronomyapi.com")
	v.SetDefault("astronomy.auth_key", "")
	v.SetDefault("astronomy.application_id", "")
	v.SetDefault("astronomy.application_secret", "")
	v.SetDefault("astronomy.user_agent", "starwatch/1.0")
	v.SetDefault("astronomy.timeout", 30*time.Second)
	v.SetDefault("astronomy.request_interval", 2*time.Second)
	v.SetDefault("astronomy.burst", astronomy.DefaultBurst)
	v.SetDefault("astronomy.breaker_threshold", 5)
	v.SetDefault("astronomy.breaker_timeout", 30*time.Second)
	v.SetDefault("astronomy.cache_ttl", 24*time.Hour)

	v.SetDefault("openmeteo.base_url", "https://api.open-meteo.com")
	v.SetDefault("openmeteo.timeout", 30*time.Second)

	v.SetDefault("aurorawatch.base_url", "https://aurorawatch-api.lancs.ac.uk")
	v.SetDefault("aurorawatch.timeout", 10*time.Second)

	v.SetDefault("apod.base_url", "https://api.nasa.gov")
	v.SetDefault("apod.api_key", "")
	v.SetDefault("apod.timeout", 10*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("database.max_conns", 4)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.region", "eu-west-2")
	v.SetDefault("notify.sender", "")
	v.SetDefault("notify.recipients", []string{})
	v.SetDefault("notify.access_key_id", "")
	v.SetDefault("notify.secret_access_key", "")

	v.SetDefault("metrics.pushgateway_url", "")
}

// Load reads settings from defaults, the optional file at path (YAML, TOML
// or JSON by extension) and the environment, then validates them.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// chartRequestsPerItem is the most astronomy requests one work item issues
// (a location needs an area chart and a moon phase).
const chartRequestsPerItem = 2

// Validate reports every invalid setting at once.
func (s *Settings) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(s.Batch.GroupSize > 0, "batch.group_size must be > 0 (got %d)", s.Batch.GroupSize)
	check(s.Batch.FetchTimeout > 0, "batch.fetch_timeout must be > 0 (got %s)", s.Batch.FetchTimeout)
	check(s.Batch.MaxAttempts >= 0, "batch.max_attempts must be >= 0 (got %d)", s.Batch.MaxAttempts)
	check(s.Batch.InitialBackoff >= 0, "batch.initial_backoff must be >= 0")
	check(s.Batch.Jitter >= 0 && s.Batch.Jitter < 1, "batch.jitter must be in [0,1) (got %g)", s.Batch.Jitter)
	check(s.Job.HorizonDays >= 0, "job.horizon_days must be >= 0 (got %d)", s.Job.HorizonDays)

	hasKey := s.Astronomy.AuthKey != ""
	hasApp := s.Astronomy.ApplicationID != "" && s.Astronomy.ApplicationSecret != ""
	check(hasKey || hasApp, "astronomy.auth_key or astronomy.application_id and application_secret are required")
	check(s.Astronomy.BaseURL != "", "astronomy.base_url is required")
	check(s.Astronomy.RequestInterval >= 0, "astronomy.request_interval must be >= 0 (got %s)", s.Astronomy.RequestInterval)
	check(s.Astronomy.Burst >= 1, "astronomy.burst must be >= 1 (got %d)", s.Astronomy.Burst)

	// Pacing waits count against the fetch deadline, so a full group must
	// clear the limiter well inside it.
	if s.Batch.GroupSize > 0 && s.Batch.FetchTimeout > 0 && s.Astronomy.Burst >= 1 {
		pacing := s.AstronomyConfig(nil).PacingDelay(s.Batch.GroupSize * chartRequestsPerItem)
		check(pacing < s.Batch.FetchTimeout,
			"astronomy pacing for a group of %d (%s) must be < batch.fetch_timeout (%s); raise astronomy.burst or lower astronomy.request_interval",
			s.Batch.GroupSize, pacing, s.Batch.FetchTimeout)
	}

	check(s.Aurora.BaseURL != "", "aurorawatch.base_url is required")
	check(s.Aurora.Timeout > 0, "aurorawatch.timeout must be > 0 (got %s)", s.Aurora.Timeout)
	check(s.APOD.BaseURL != "", "apod.base_url is required")
	check(s.APOD.Timeout > 0, "apod.timeout must be > 0 (got %s)", s.APOD.Timeout)

	check(s.Database.DSN != "" || (s.Database.Host != "" && s.Database.Name != ""),
		"database.dsn or database.host and database.name are required")

	if s.Notify.Enabled {
		check(s.Notify.Region != "", "notify.region is required when notify is enabled")
		check(s.Notify.Sender != "", "notify.sender is required when notify is enabled")
		check(len(s.Notify.Recipients) > 0, "notify.recipients is required when notify is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
