package config

import (
	"os"
	"path/filepath"
	"testing"

	"hentai-fetcher/internal/models"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
DiscordToken = "token-123"
CommandPrefix = "!h"
DownloadPath = "/srv/galleries"
GalleryDLPath = "/usr/local/bin/gallery-dl"
Aria2cPath = "/usr/bin/aria2c"
SecondsPerPage = 2.5
ProgressIntervalSec = 5
LogApiRequests = true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.DiscordToken != "token-123" {
		t.Errorf("DiscordToken = %q", cfg.DiscordToken)
	}
	if cfg.CommandPrefix != "!h" {
		t.Errorf("CommandPrefix = %q", cfg.CommandPrefix)
	}
	if cfg.DownloadPath != "/srv/galleries" {
		t.Errorf("DownloadPath = %q", cfg.DownloadPath)
	}
	if cfg.Aria2cPath != "/usr/bin/aria2c" {
		t.Errorf("Aria2cPath = %q", cfg.Aria2cPath)
	}
	if cfg.SecondsPerPage != 2.5 {
		t.Errorf("SecondsPerPage = %v", cfg.SecondsPerPage)
	}
	if cfg.ProgressIntervalSec != 5 {
		t.Errorf("ProgressIntervalSec = %d", cfg.ProgressIntervalSec)
	}
	if !cfg.LogApiRequests {
		t.Error("LogApiRequests = false")
	}

	// Unset fields take defaults.
	if cfg.TempPath != "temp" {
		t.Errorf("TempPath default = %q", cfg.TempPath)
	}
	if cfg.ApiBaseUrl != "https://nhentai.net" {
		t.Errorf("ApiBaseUrl default = %q", cfg.ApiBaseUrl)
	}
	if cfg.DownloadTimeoutSec != 900 {
		t.Errorf("DownloadTimeoutSec default = %d", cfg.DownloadTimeoutSec)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("LoadConfig on a missing file should return an error")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg models.Config
	ApplyDefaults(&cfg)

	if cfg.CommandPrefix != "!dl" {
		t.Errorf("CommandPrefix = %q", cfg.CommandPrefix)
	}
	if cfg.GalleryDLPath != "gallery-dl" {
		t.Errorf("GalleryDLPath = %q", cfg.GalleryDLPath)
	}
	if cfg.SecondsPerPage != 3.6 {
		t.Errorf("SecondsPerPage = %v", cfg.SecondsPerPage)
	}
	if cfg.ProgressBarWidth != 15 {
		t.Errorf("ProgressBarWidth = %d", cfg.ProgressBarWidth)
	}
	if cfg.Aria2cPath != "" {
		t.Errorf("Aria2cPath should stay empty by default, got %q", cfg.Aria2cPath)
	}
}

func TestApplyDefaultsKeepsSetValues(t *testing.T) {
	cfg := models.Config{CommandPrefix: "!x", ProgressBarWidth: 30}
	ApplyDefaults(&cfg)

	if cfg.CommandPrefix != "!x" {
		t.Errorf("CommandPrefix overwritten: %q", cfg.CommandPrefix)
	}
	if cfg.ProgressBarWidth != 30 {
		t.Errorf("ProgressBarWidth overwritten: %d", cfg.ProgressBarWidth)
	}
}
