package config

import (
	"io"

	"github.com/Sternrassler/starwatch/pkg/apod"
	"github.com/Sternrassler/starwatch/pkg/astronomy"
	"github.com/Sternrassler/starwatch/pkg/aurorawatch"
	"github.com/Sternrassler/starwatch/pkg/batch"
	"github.com/Sternrassler/starwatch/pkg/cache"
	"github.com/Sternrassler/starwatch/pkg/etl"
	"github.com/Sternrassler/starwatch/pkg/logging"
	"github.com/Sternrassler/starwatch/pkg/notify"
	"github.com/Sternrassler/starwatch/pkg/openmeteo"
	"github.com/Sternrassler/starwatch/pkg/store"
	"github.com/redis/go-redis/v9"
)

// LoggingConfig returns the logger configuration writing to out.
func (s *Settings) LoggingConfig(out io.Writer) logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(s.Log.Level),
		Pretty: s.Log.Pretty,
		Output: out,
		File: logging.FileConfig{
			Path:       s.Log.File,
			MaxSizeMB:  s.Log.MaxSizeMB,
			MaxBackups: s.Log.MaxBackups,
			MaxAgeDays: s.Log.MaxAgeDays,
		},
	}
}

// BatchConfig returns the runner configuration for the named job.
func (s *Settings) BatchConfig(name string) batch.Config {
	return batch.Config{
		Name:         name,
		GroupSize:    s.Batch.GroupSize,
		FetchTimeout: s.Batch.FetchTimeout,
		Retry: batch.RetryPolicy{
			MaxAttempts:    s.Batch.MaxAttempts,
			InitialBackoff: s.Batch.InitialBackoff,
			MaxBackoff:     s.Batch.MaxBackoff,
			Multiplier:     s.Batch.Multiplier,
			Jitter:         s.Batch.Jitter,
		},
	}
}

// JobConfig returns the etl configuration for the named job.
func (s *Settings) JobConfig(name string) etl.Config {
	return etl.Config{
		Batch:       s.BatchConfig(name),
		HorizonDays: s.Job.HorizonDays,
		Observer: etl.Coordinates{
			Latitude:  s.Job.ObserverLatitude,
			Longitude: s.Job.ObserverLongitude,
		},
	}
}

// AstronomyConfig returns the astronomy client configuration. chartCache may
// be nil to disable caching.
func (s *Settings) AstronomyConfig(chartCache *cache.Manager) astronomy.Config {
	return astronomy.Config{
		BaseURL:           s.Astronomy.BaseURL,
		AuthKey:           s.Astronomy.AuthKey,
		ApplicationID:     s.Astronomy.ApplicationID,
		ApplicationSecret: s.Astronomy.ApplicationSecret,
		UserAgent:         s.Astronomy.UserAgent,
		Timeout:           s.Astronomy.Timeout,
		RequestInterval:   s.Astronomy.RequestInterval,
		Burst:             s.Astronomy.Burst,
		BreakerThreshold:  s.Astronomy.BreakerThreshold,
		BreakerTimeout:    s.Astronomy.BreakerTimeout,
		Cache:             chartCache,
		CacheTTL:          s.Astronomy.CacheTTL,
	}
}

// OpenMeteoConfig returns the forecast client configuration.
func (s *Settings) OpenMeteoConfig() openmeteo.Config {
	return openmeteo.Config{
		BaseURL:   s.OpenMeteo.BaseURL,
		UserAgent: s.Astronomy.UserAgent,
		Timeout:   s.OpenMeteo.Timeout,
	}
}

// AuroraWatchConfig returns the AuroraWatch client configuration.
func (s *Settings) AuroraWatchConfig() aurorawatch.Config {
	return aurorawatch.Config{
		BaseURL:   s.Aurora.BaseURL,
		UserAgent: s.Astronomy.UserAgent,
		Timeout:   s.Aurora.Timeout,
	}
}

// APODConfig returns the picture of the day client configuration.
func (s *Settings) APODConfig() apod.Config {
	return apod.Config{
		BaseURL:   s.APOD.BaseURL,
		APIKey:    s.APOD.APIKey,
		UserAgent: s.Astronomy.UserAgent,
		Timeout:   s.APOD.Timeout,
	}
}

// StoreConfig returns the database configuration.
func (s *Settings) StoreConfig() store.Config {
	return store.Config{
		DSN:      s.Database.DSN,
		Host:     s.Database.Host,
		Port:     s.Database.Port,
		User:     s.Database.User,
		Password: s.Database.Password,
		Database: s.Database.Name,
		SSLMode:  s.Database.SSLMode,
		MaxConns: s.Database.MaxConns,
	}
}

// RedisOptions returns the Redis options, or nil when no address is set.
func (s *Settings) RedisOptions() *redis.Options {
	if s.Redis.Addr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     s.Redis.Addr,
		Password: s.Redis.Password,
		DB:       s.Redis.DB,
	}
}

// SESConfig returns the SES notifier configuration.
func (s *Settings) SESConfig() notify.SESConfig {
	return notify.SESConfig{
		Region:          s.Notify.Region,
		Sender:          s.Notify.Sender,
		Recipients:      s.Notify.Recipients,
		AccessKeyID:     s.Notify.AccessKeyID,
		SecretAccessKey: s.Notify.SecretAccessKey,
	}
}
