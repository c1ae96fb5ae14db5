package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Leetcode LeetcodeConfig `koanf:"leetcode"`
	Study    StudyConfig    `koanf:"study"`
	Sync     SyncConfig     `koanf:"sync"`
	Ingest   IngestConfig   `koanf:"ingest"`
}

type ServerConfig struct {
	APIPort         string        `koanf:"api_port" validate:"required,numeric"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	AdminSecret     string        `koanf:"admin_secret"` // verifies ops API tokens; falls back to study.jwt_secret
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type DatabaseConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     string `koanf:"port" validate:"required,numeric"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password"`
	Name     string `koanf:"name" validate:"required"`
	SSLMode  string `koanf:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// ConnString builds a libpq style DSN understood by the pgx stdlib driver.
func (d DatabaseConfig) ConnString() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Addr     string `koanf:"addr" validate:"required,hostname_port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

type LeetcodeConfig struct {
	CatalogListURL string        `koanf:"catalog_list_url" validate:"required,url"`
	DetailURL      string        `koanf:"detail_url" validate:"required,url"`
	GraphQLURL     string        `koanf:"graphql_url" validate:"required,url"`
	UserAgent      string        `koanf:"user_agent"`
	Timeout        time.Duration `koanf:"timeout" validate:"gt=0"`
}

const (
	APIVersionUnified = "v2"
	APIVersionLegacy  = "v1"

	UserSourceService = "service"
	UserSourceStore   = "store"
)

type StudyConfig struct {
	BaseURL    string        `koanf:"base_url" validate:"required,url"`
	APIVersion string        `koanf:"api_version" validate:"oneof=v1 v2"`
	UserSource string        `koanf:"user_source" validate:"oneof=service store"`
	JWTSecret  string        `koanf:"jwt_secret"`
	TokenTTL   time.Duration `koanf:"token_ttl" validate:"gt=0"`
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`

	BreakerMaxRequests uint32        `koanf:"breaker_max_requests" validate:"gte=1"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	BreakerTripAfter   uint32        `koanf:"breaker_trip_after" validate:"gte=1"`
}

type SyncConfig struct {
	RemoteUsername string        `koanf:"remote_username"`
	LocalUsername  string        `koanf:"local_username"`
	FetchLimit     int           `koanf:"fetch_limit" validate:"gte=1,lte=100"`
	ItemDelay      time.Duration `koanf:"item_delay" validate:"gte=0"`
	Interval       time.Duration `koanf:"interval" validate:"gt=0"`
	LockTTL        time.Duration `koanf:"lock_ttl" validate:"gt=0"`
}

type IngestConfig struct {
	ItemDelay      time.Duration `koanf:"item_delay" validate:"gte=0"`
	MaxAttempts    int           `koanf:"max_attempts" validate:"gte=1"`
	InitialBackoff time.Duration `koanf:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `koanf:"max_backoff" validate:"gtefield=InitialBackoff"`
	Multiplier     float64       `koanf:"multiplier" validate:"gte=1"`
	Jitter         float64       `koanf:"jitter" validate:"gte=0,lte=1"`
	SkipPaidOnly   bool          `koanf:"skip_paid_only"`
	LockTTL        time.Duration `koanf:"lock_ttl" validate:"gt=0"`
}

// DetailEndpoint returns the detail URL for a slug.
func (l LeetcodeConfig) DetailEndpoint(slug string) string {
	u, err := url.Parse(l.DetailURL)
	if err != nil {
		return l.DetailURL + url.QueryEscape(slug)
	}
	q := u.Query()
	q.Set("titleSlug", slug)
	u.RawQuery = q.Encode()
	return u.String()
}

// RequireSyncUsers reports a configuration error when the submission job has no users to sync.
func (c *Config) RequireSyncUsers() error {
	if c.Sync.RemoteUsername == "" || c.Sync.LocalUsername == "" {
		return fmt.Errorf("sync.remote_username and sync.local_username must both be set")
	}
	return nil
}

// AdminKey returns the secret used to verify ops API tokens.
func (c *Config) AdminKey() string {
	if c.Server.AdminSecret != "" {
		return c.Server.AdminSecret
	}
	return c.Study.JWTSecret
}
