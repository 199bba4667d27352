// Package config loads the deployment configuration: file locations, the
// status server and notification providers. User mining preferences live
// in the settings file instead and change at runtime.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the config file is looked up when no path is given.
const DefaultPath = "config.yaml"

// Config is the full deployment configuration.
type Config struct {
	// DataDir anchors every relative data file below.
	DataDir string `yaml:"data_dir"`

	SettingsFile    string `yaml:"settings_file"`
	CookiesFile     string `yaml:"cookies_file"`
	LockFile        string `yaml:"lock_file"`
	HealthcheckFile string `yaml:"healthcheck_file"`
	OperationsFile  string `yaml:"operations_file"`
	LogDir          string `yaml:"log_dir"`

	Chat          ChatConfig          `yaml:"chat"`
	Server        ServerConfig        `yaml:"server"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// ChatConfig controls the IRC chat presence on the watched channel.
type ChatConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig controls the local status HTTP server.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads the config file and applies defaults and environment
// overrides. A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	anchor := func(p, fallback string) string {
		if p == "" {
			p = fallback
		}
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(cfg.DataDir, p)
	}
	cfg.SettingsFile = anchor(cfg.SettingsFile, "settings.json")
	cfg.CookiesFile = anchor(cfg.CookiesFile, "cookies.json")
	cfg.LockFile = anchor(cfg.LockFile, "miner.lock")
	cfg.HealthcheckFile = anchor(cfg.HealthcheckFile, "healthcheck")
	if cfg.OperationsFile != "" {
		cfg.OperationsFile = anchor(cfg.OperationsFile, "")
	}
	if cfg.LogDir != "" && !filepath.IsAbs(cfg.LogDir) {
		cfg.LogDir = filepath.Join(cfg.DataDir, cfg.LogDir)
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8090"
	}
}

// applyEnvOverrides overlays environment variables for secrets so they
// can stay out of the config file.
func applyEnvOverrides(cfg *Config) {
	if cfg.Notifications.Telegram != nil {
		if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
			cfg.Notifications.Telegram.Token = v
		}
		if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
			cfg.Notifications.Telegram.ChatID = v
		}
	}
	if cfg.Notifications.Discord != nil {
		if v := os.Getenv("DISCORD_WEBHOOK"); v != "" {
			cfg.Notifications.Discord.WebhookURL = v
		}
	}
	if cfg.Notifications.Webhook != nil {
		if v := os.Getenv("WEBHOOK_URL"); v != "" {
			cfg.Notifications.Webhook.Endpoint = v
		}
	}
	if cfg.Notifications.Matrix != nil {
		if v := os.Getenv("MATRIX_HOMESERVER"); v != "" {
			cfg.Notifications.Matrix.Homeserver = v
		}
		if v := os.Getenv("MATRIX_ROOM_ID"); v != "" {
			cfg.Notifications.Matrix.RoomID = v
		}
		if v := os.Getenv("MATRIX_ACCESS_TOKEN"); v != "" {
			cfg.Notifications.Matrix.AccessToken = v
		}
	}
	if cfg.Notifications.Pushover != nil {
		if v := os.Getenv("PUSHOVER_TOKEN"); v != "" {
			cfg.Notifications.Pushover.APIToken = v
		}
		if v := os.Getenv("PUSHOVER_USER_KEY"); v != "" {
			cfg.Notifications.Pushover.UserKey = v
		}
	}
	if cfg.Notifications.Gotify != nil {
		if v := os.Getenv("GOTIFY_URL"); v != "" {
			cfg.Notifications.Gotify.URL = v
		}
		if v := os.Getenv("GOTIFY_TOKEN"); v != "" {
			cfg.Notifications.Gotify.Token = v
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Notifications.Telegram != nil && cfg.Notifications.Telegram.Enabled {
		if cfg.Notifications.Telegram.Token == "" || cfg.Notifications.Telegram.ChatID == "" {
			return fmt.Errorf("telegram enabled but token or chat_id not set (env: TELEGRAM_TOKEN, TELEGRAM_CHAT_ID)")
		}
	}
	if cfg.Notifications.Discord != nil && cfg.Notifications.Discord.Enabled {
		if cfg.Notifications.Discord.WebhookURL == "" {
			return fmt.Errorf("discord enabled but webhook_url not set (env: DISCORD_WEBHOOK)")
		}
	}
	return nil
}
