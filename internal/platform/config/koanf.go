package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var defaultConfigPaths = []string{"config.yaml", "config.yml"}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			APIPort:         "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Minute, // manual sync triggers hold the request open
			ShutdownTimeout: 15 * time.Second,
			RateLimitReqs:   5,
			RateLimitWindow: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "leetcode_app",
			Name:    "leetcode_app",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Leetcode: LeetcodeConfig{
			CatalogListURL: "https://leetcode.com/api/problems/algorithms/",
			DetailURL:      "http://localhost:3000/select",
			GraphQLURL:     "https://leetcode.com/graphql",
			UserAgent:      "study-sync/1.0",
			Timeout:        30 * time.Second,
		},
		Study: StudyConfig{
			BaseURL:            "http://localhost:8080",
			APIVersion:         APIVersionUnified,
			UserSource:         UserSourceService,
			TokenTTL:           time.Hour,
			Timeout:            15 * time.Second,
			BreakerMaxRequests: 1,
			BreakerInterval:    time.Minute,
			BreakerTimeout:     30 * time.Second,
			BreakerTripAfter:   5,
		},
		Sync: SyncConfig{
			FetchLimit: 2,
			ItemDelay:  500 * time.Millisecond,
			Interval:   15 * time.Minute,
			LockTTL:    5 * time.Minute,
		},
		Ingest: IngestConfig{
			ItemDelay:      10 * time.Second,
			MaxAttempts:    5,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     time.Minute,
			Multiplier:     2,
			Jitter:         0.5,
			LockTTL:        10 * time.Minute, // renewed while the run is alive
		},
	}
}

// Load builds the configuration once at process start. Precedence, lowest first:
// struct defaults, optional YAML file, environment (including a local .env file).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Short names kept from the old .env files.
var envAliases = map[string]string{
	"api_port":          "server.api_port",
	"jwt_secret":        "study.jwt_secret",
	"db_host":           "database.host",
	"db_port":           "database.port",
	"db_user":           "database.user",
	"db_password":       "database.password",
	"db_name":           "database.name",
	"db_sslmode":        "database.sslmode",
	"leetcode_username": "sync.remote_username",
	"app_username":      "sync.local_username",
	"base_url":          "study.base_url",
}

var envSections = []string{"server", "log", "database", "redis", "leetcode", "study", "sync", "ingest"}

// envTransformFunc maps SECTION_FIELD_NAME to section.field_name. Unknown
// variables map to "" and are skipped by the provider.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if alias, ok := envAliases[key]; ok {
		return alias
	}
	for _, section := range envSections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok && rest != "" {
			return section + "." + rest
		}
	}
	return ""
}
