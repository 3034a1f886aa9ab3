package config

import (
	"fmt"

	"hentai-fetcher/internal/models"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// LoadConfig reads the configuration from the specified path (defaulting to
// "config.toml") and fills unset fields with working defaults.
func LoadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = "config.toml"
	}
	var cfg models.Config
	_, err := toml.DecodeFile(configFilePath, &cfg)
	if err != nil {
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}

	ApplyDefaults(&cfg)

	if cfg.DiscordToken == "" {
		log.Warn("Warning: DiscordToken is not set; the bot command will not be able to connect")
	}

	log.Infof("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

// ApplyDefaults fills zero-value fields with the defaults the rest of the
// program assumes. Safe to call on a partially loaded config.
func ApplyDefaults(cfg *models.Config) {
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!dl"
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "downloads"
	}
	if cfg.TempPath == "" {
		cfg.TempPath = "temp"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "history.db"
	}
	if cfg.BleveIndexPath == "" {
		cfg.BleveIndexPath = "library.bleve"
	}
	if cfg.GalleryDLPath == "" {
		cfg.GalleryDLPath = "gallery-dl"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0"
	}
	if cfg.ApiBaseUrl == "" {
		cfg.ApiBaseUrl = "https://nhentai.net"
	}
	if cfg.ApiClientTimeoutSec <= 0 {
		cfg.ApiClientTimeoutSec = 30
	}
	if cfg.MetadataTimeoutSec <= 0 {
		cfg.MetadataTimeoutSec = 120
	}
	if cfg.DownloadTimeoutSec <= 0 {
		cfg.DownloadTimeoutSec = 900
	}
	if cfg.ProgressIntervalSec <= 0 {
		cfg.ProgressIntervalSec = 3
	}
	if cfg.SecondsPerPage <= 0 {
		cfg.SecondsPerPage = 3.6
	}
	if cfg.ProgressBarWidth <= 0 {
		cfg.ProgressBarWidth = 15
	}
}
