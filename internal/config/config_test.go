package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"tokenPath: /tmp/feishu-token",
		"wikiSpaceId: \"7001\"",
		"auth:",
		"  clientId: cli_abc",
		"  clientSecret: shh",
		"sync:",
		"  folderPath: /tmp/wiki",
		"  pollIntervalSeconds: 300",
		"  initialSync: true",
	}, "\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.WikiSpaceID != "7001" {
		t.Fatalf("expected wikiSpaceId 7001, got %q", cfg.WikiSpaceID)
	}
	if cfg.Auth.ClientID != "cli_abc" {
		t.Fatalf("expected clientId cli_abc, got %q", cfg.Auth.ClientID)
	}
	if !cfg.Sync.InitialSync {
		t.Fatalf("expected initialSync true")
	}
	if cfg.Sync.PollIntervalSeconds.Duration() != 5*time.Minute {
		t.Fatalf("expected 5m poll interval, got %s", cfg.Sync.PollIntervalSeconds.Duration())
	}
	if !cfg.DeleteRemoteOnLocalDelete() {
		t.Fatalf("expected deleteRemoteOnLocalDelete default true")
	}
	if cfg.Sync.EventEndpoint != DefaultEventEndpoint {
		t.Fatalf("expected default event endpoint, got %q", cfg.Sync.EventEndpoint)
	}
}

func TestLoadRejectsMissingRequiredKeys(t *testing.T) {
	path := writeConfig(t, "wikiSpaceId: \"7001\"\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected schema validation failure for missing keys")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"tokenPath: /tmp/t",
		"wikiSpaceId: \"7001\"",
		"sync:",
		"  folderPath: /tmp/wiki",
		"  pollIntervalSecondz: 10",
	}, "\n"))
	if _, err := Load(path); err == nil {
		t.Fatalf("expected schema validation failure for unknown key")
	}
}

func TestPollIntervalFalseDisables(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"tokenPath: /tmp/t",
		"wikiSpaceId: \"7001\"",
		"sync:",
		"  folderPath: /tmp/wiki",
		"  pollIntervalSeconds: false",
	}, "\n"))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Sync.PollIntervalSeconds.Enabled() {
		t.Fatalf("expected poller disabled for false")
	}
	if cfg.Sync.PollIntervalSeconds.Duration() != 0 {
		t.Fatalf("expected zero duration")
	}
}

func TestEnvOverridesAuth(t *testing.T) {
	t.Setenv("FEISHU_APP_ID", "cli_env")
	t.Setenv("FEISHU_APP_SECRET", "env_secret")
	path := writeConfig(t, strings.Join([]string{
		"tokenPath: /tmp/t",
		"wikiSpaceId: \"7001\"",
		"auth:",
		"  clientId: cli_file",
		"  clientSecret: file_secret",
		"sync:",
		"  folderPath: /tmp/wiki",
	}, "\n"))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Auth.ClientID != "cli_env" || cfg.Auth.ClientSecret != "env_secret" {
		t.Fatalf("expected env override, got %+v", cfg.Auth)
	}
}

func TestFolderPathTildeExpansion(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"tokenPath: ~/token",
		"wikiSpaceId: \"7001\"",
		"sync:",
		"  folderPath: ~/wiki",
	}, "\n"))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if cfg.Sync.FolderPath != filepath.Join(home, "wiki") {
		t.Fatalf("expected ~ expanded, got %q", cfg.Sync.FolderPath)
	}
	if cfg.TokenPath != filepath.Join(home, "token") {
		t.Fatalf("expected token path expanded, got %q", cfg.TokenPath)
	}
}

func TestReadTokenRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token")
	if err := os.WriteFile(tokenPath, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("seed token failed: %v", err)
	}
	cfg := &Config{TokenPath: tokenPath}
	if _, err := cfg.ReadToken(); err == nil {
		t.Fatalf("expected empty token rejected")
	}

	if err := os.WriteFile(tokenPath, []byte("t-abc\n"), 0o600); err != nil {
		t.Fatalf("seed token failed: %v", err)
	}
	token, err := cfg.ReadToken()
	if err != nil {
		t.Fatalf("read token failed: %v", err)
	}
	if token != "t-abc" {
		t.Fatalf("expected trimmed token, got %q", token)
	}
}
