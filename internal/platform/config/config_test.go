package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SYNC_REMOTE_USERNAME", "sync.remote_username"},
		{"INGEST_ITEM_DELAY", "ingest.item_delay"},
		{"LEETCODE_GRAPHQL_URL", "leetcode.graphql_url"},
		{"LEETCODE_USERNAME", "sync.remote_username"},
		{"DB_HOST", "database.host"},
		{"API_PORT", "server.api_port"},
		{"PATH", ""},
		{"SYNC_", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := envTransformFunc(tt.in); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.FetchLimit != 2 {
		t.Errorf("FetchLimit = %d, want 2", cfg.Sync.FetchLimit)
	}
	if cfg.Sync.ItemDelay != 500*time.Millisecond {
		t.Errorf("Sync.ItemDelay = %v, want 500ms", cfg.Sync.ItemDelay)
	}
	if cfg.Ingest.ItemDelay != 10*time.Second {
		t.Errorf("Ingest.ItemDelay = %v, want 10s", cfg.Ingest.ItemDelay)
	}
	if cfg.Study.APIVersion != APIVersionUnified {
		t.Errorf("APIVersion = %q, want %q", cfg.Study.APIVersion, APIVersionUnified)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte("sync:\n  fetch_limit: 10\n  item_delay: 2s\nstudy:\n  api_version: v1\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SYNC_FETCH_LIMIT", "20")
	t.Setenv("LEETCODE_USERNAME", "remote-user")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.FetchLimit != 20 {
		t.Errorf("FetchLimit = %d, want env value 20", cfg.Sync.FetchLimit)
	}
	if cfg.Sync.ItemDelay != 2*time.Second {
		t.Errorf("ItemDelay = %v, want file value 2s", cfg.Sync.ItemDelay)
	}
	if cfg.Study.APIVersion != APIVersionLegacy {
		t.Errorf("APIVersion = %q, want %q", cfg.Study.APIVersion, APIVersionLegacy)
	}
	if cfg.Sync.RemoteUsername != "remote-user" {
		t.Errorf("RemoteUsername = %q", cfg.Sync.RemoteUsername)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := defaultConfig()
	cfg.Study.APIVersion = "v3"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for api_version v3")
	}

	cfg = defaultConfig()
	cfg.Ingest.MaxBackoff = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for max_backoff < initial_backoff")
	}
}

func TestDetailEndpoint(t *testing.T) {
	l := LeetcodeConfig{DetailURL: "http://localhost:3000/select"}
	if got, want := l.DetailEndpoint("two-sum"), "http://localhost:3000/select?titleSlug=two-sum"; got != want {
		t.Errorf("DetailEndpoint = %q, want %q", got, want)
	}
}

func TestRequireSyncUsers(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.RequireSyncUsers(); err == nil {
		t.Error("expected error with empty usernames")
	}
	cfg.Sync.RemoteUsername, cfg.Sync.LocalUsername = "a", "b"
	if err := cfg.RequireSyncUsers(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
