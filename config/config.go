package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"chatrelay/bus"
)

const (
	// AppDirectoryName is the shared application data directory name. Every
	// instance on the same machine resolves the same directory, which is
	// what makes the storage domain shared.
	AppDirectoryName = "chatrelay"
	// AnonymousUsername is the default identity before a user signs in; the
	// delivery poller skips it.
	AnonymousUsername = bus.AnonymousIdentity
	// DefaultPollIntervalSeconds is the delivery polling period.
	DefaultPollIntervalSeconds = 1
	// DefaultReplyModel answers for simulated contacts.
	DefaultReplyModel = "gpt-4o-mini"
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// SessionConfig contains persistent local-session settings.
//
// The reply API key is deliberately not part of this file; it is read from
// the OPENAI_API_KEY environment variable at startup.
type SessionConfig struct {
	Username            string `json:"username"`
	DisplayName         string `json:"display_name"`
	Avatar              string `json:"avatar"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	LogEnv              string `json:"log_env"`
	LogLevel            string `json:"log_level"`
	ReplyBaseURL        string `json:"reply_base_url"`
	ReplyModel          string `json:"reply_model"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If CHATRELAY_DATA_DIR is set, its value is used as an explicit override.
// Pointing two instances at the same directory puts them in the same
// storage domain.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("CHATRELAY_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*SessionConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg SessionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *SessionConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures the data directory and config exist, then returns
// both. The CHATRELAY_USERNAME environment variable overrides the stored
// identity without being persisted, so several instances can share one
// data directory under different identities.
func LoadOrCreate() (*SessionConfig, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create data directory %q: %w", dataDir, err)
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = &SessionConfig{}
		normalizeDefaults(cfg)
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}

		applyEnvOverrides(cfg)
		return cfg, cfgPath, nil
	}

	if normalizeDefaults(cfg) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, cfgPath, nil
}

func applyEnvOverrides(cfg *SessionConfig) {
	if username := os.Getenv("CHATRELAY_USERNAME"); username != "" {
		cfg.Username = username
		cfg.DisplayName = username
	}
}

func normalizeDefaults(cfg *SessionConfig) bool {
	updated := false

	if cfg.Username == "" {
		cfg.Username = AnonymousUsername
		updated = true
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.Username
		updated = true
	}
	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = DefaultPollIntervalSeconds
		updated = true
	}
	if cfg.LogEnv == "" {
		cfg.LogEnv = "development"
		updated = true
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		updated = true
	}
	if cfg.ReplyModel == "" {
		cfg.ReplyModel = DefaultReplyModel
		updated = true
	}

	return updated
}
