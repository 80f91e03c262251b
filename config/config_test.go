package config

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreateCreatesAndReloadsConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("CHATRELAY_DATA_DIR", tempDir)
	t.Setenv("CHATRELAY_USERNAME", "")

	firstCfg, firstPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("first LoadOrCreate failed: %v", err)
	}
	if firstCfg.Username != AnonymousUsername {
		t.Fatalf("expected default username %q, got %q", AnonymousUsername, firstCfg.Username)
	}
	if firstCfg.PollIntervalSeconds != DefaultPollIntervalSeconds {
		t.Fatalf("expected default poll interval, got %d", firstCfg.PollIntervalSeconds)
	}
	if firstCfg.ReplyModel != DefaultReplyModel {
		t.Fatalf("expected default reply model, got %q", firstCfg.ReplyModel)
	}

	expectedConfigPath := filepath.Join(tempDir, "config.json")
	if firstPath != expectedConfigPath {
		t.Fatalf("expected config path %q, got %q", expectedConfigPath, firstPath)
	}

	secondCfg, secondPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if secondPath != firstPath {
		t.Fatalf("expected config path to be stable, got %q then %q", firstPath, secondPath)
	}
	if *secondCfg != *firstCfg {
		t.Fatalf("expected stable config, got %+v then %+v", firstCfg, secondCfg)
	}
}

func TestLoadOrCreateFillsMissingDefaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("CHATRELAY_DATA_DIR", tempDir)
	t.Setenv("CHATRELAY_USERNAME", "")

	partial := &SessionConfig{Username: "alice"}
	if err := Save(ConfigPath(tempDir), partial); err != nil {
		t.Fatalf("save partial config: %v", err)
	}

	cfg, _, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if cfg.Username != "alice" {
		t.Fatalf("expected stored username to be kept, got %q", cfg.Username)
	}
	if cfg.DisplayName != "alice" {
		t.Fatalf("expected display name to default to username, got %q", cfg.DisplayName)
	}
	if cfg.LogLevel == "" || cfg.LogEnv == "" {
		t.Fatalf("expected log defaults to be filled, got %+v", cfg)
	}
}

func TestUsernameEnvOverrideIsNotPersisted(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("CHATRELAY_DATA_DIR", tempDir)
	t.Setenv("CHATRELAY_USERNAME", "bob")

	cfg, cfgPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if cfg.Username != "bob" {
		t.Fatalf("expected env override to apply, got %q", cfg.Username)
	}

	stored, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load stored config: %v", err)
	}
	if stored.Username == "bob" {
		t.Fatalf("env override must not be written to disk")
	}
}
