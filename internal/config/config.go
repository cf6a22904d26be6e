// Package config loads and validates the sync configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultEventEndpoint is the push-event stream dialed when the config does
// not name one.
const DefaultEventEndpoint = "wss://open.feishu.cn/callback/ws"

type Config struct {
	TokenPath   string     `yaml:"tokenPath"`
	WikiSpaceID string     `yaml:"wikiSpaceId"`
	Auth        AuthConfig `yaml:"auth"`
	Sync        SyncConfig `yaml:"sync"`
}

type AuthConfig struct {
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
}

type SyncConfig struct {
	FolderPath          string  `yaml:"folderPath"`
	PollIntervalSeconds Seconds `yaml:"pollIntervalSeconds"`
	InitialSync         bool    `yaml:"initialSync"`
	EventEndpoint       string  `yaml:"eventEndpoint"`

	// DeleteRemoteOnLocalDelete mirrors a local file deletion to the remote
	// side. Defaults to true; false re-downloads the document instead.
	DeleteRemoteOnLocalDelete *bool `yaml:"deleteRemoteOnLocalDelete"`
}

// Seconds accepts a number of seconds or `false` (which disables the
// feature, same as 0).
type Seconds struct {
	value float64
}

func (s *Seconds) UnmarshalYAML(unmarshal func(any) error) error {
	var number float64
	if err := unmarshal(&number); err == nil {
		if number < 0 {
			return fmt.Errorf("interval must not be negative, got %v", number)
		}
		s.value = number
		return nil
	}
	var flag bool
	if err := unmarshal(&flag); err == nil {
		if flag {
			return fmt.Errorf("interval must be a number of seconds or false")
		}
		s.value = 0
		return nil
	}
	return fmt.Errorf("interval must be a number of seconds or false")
}

func (s Seconds) Duration() time.Duration {
	return time.Duration(s.value * float64(time.Second))
}

func (s Seconds) Enabled() bool {
	return s.value > 0
}

// DefaultPath resolves the config location: $FEISHU_SYNC_CONFIG when set,
// otherwise ~/.config/feishu-sync/config.yaml.
func DefaultPath() string {
	if env := strings.TrimSpace(os.Getenv("FEISHU_SYNC_CONFIG")); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "feishu-sync", "config.yaml")
}

// Load reads, validates and normalizes the config at path. Environment
// variables FEISHU_APP_ID and FEISHU_APP_SECRET override the auth section.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if env := strings.TrimSpace(os.Getenv("FEISHU_APP_ID")); env != "" {
		cfg.Auth.ClientID = env
	}
	if env := strings.TrimSpace(os.Getenv("FEISHU_APP_SECRET")); env != "" {
		cfg.Auth.ClientSecret = env
	}

	cfg.TokenPath = expandHome(cfg.TokenPath)
	cfg.Sync.FolderPath = expandHome(cfg.Sync.FolderPath)
	if cfg.Sync.EventEndpoint == "" {
		cfg.Sync.EventEndpoint = DefaultEventEndpoint
	}
	return &cfg, nil
}

// DeleteRemoteOnLocalDelete resolves the tri-state config key to its
// default.
func (c *Config) DeleteRemoteOnLocalDelete() bool {
	if c.Sync.DeleteRemoteOnLocalDelete == nil {
		return true
	}
	return *c.Sync.DeleteRemoteOnLocalDelete
}

// ReadToken loads the bearer token the auth worker maintains at TokenPath.
func (c *Config) ReadToken() (string, error) {
	data, err := os.ReadFile(c.TokenPath)
	if err != nil {
		return "", fmt.Errorf("read token from %s: %w (run the auth worker first)", c.TokenPath, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty (run the auth worker first)", c.TokenPath)
	}
	return token, nil
}

func expandHome(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
