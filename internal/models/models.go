package models

import "time"

type (
	Config struct {
		// Connection/Auth
		DiscordToken  string `toml:"DiscordToken"`
		CommandPrefix string `toml:"CommandPrefix"`

		// Paths
		DownloadPath   string `toml:"DownloadPath"`
		TempPath       string `toml:"TempPath"`
		DatabasePath   string `toml:"DatabasePath"`
		BleveIndexPath string `toml:"BleveIndexPath"`

		// External downloader
		GalleryDLPath string `toml:"GalleryDLPath"`
		Aria2cPath    string `toml:"Aria2cPath"` // optional; enables the piped two-process download
		UserAgent     string `toml:"UserAgent"`

		// Remote gallery API
		ApiBaseUrl          string `toml:"ApiBaseUrl"`
		ApiClientTimeoutSec int    `toml:"ApiClientTimeoutSec"`

		// Downloader behavior
		MetadataTimeoutSec int    `toml:"MetadataTimeoutSec"`
		DownloadTimeoutSec int    `toml:"DownloadTimeoutSec"`
		PdfWebBaseUrl      string `toml:"PdfWebBaseUrl"`

		// Progress reporting
		ProgressIntervalSec int     `toml:"ProgressIntervalSec"`
		SecondsPerPage      float64 `toml:"SecondsPerPage"` // estimated download time per page
		ProgressBarWidth    int     `toml:"ProgressBarWidth"`

		// Other
		LogApiRequests bool `toml:"LogApiRequests"`
	}

	// Job is one request to download a single gallery, as queued to the worker.
	Job struct {
		Target    string // resolved gallery URL
		ChannelID string // where progress and results are posted
		Force     bool   // skip the already-downloaded check upstream
		BatchID   string // empty for singleton submissions
	}

	// GalleryInfo is the remote API's pre-check response for one gallery.
	GalleryInfo struct {
		ID            string
		MediaID       string
		TitleEnglish  string
		TitleJapanese string
		TitlePretty   string
		Pages         int
		Favorites     int
	}

	// Comment is a single user comment from the remote API.
	Comment struct {
		Poster   string
		Body     string
		PostDate int64 // unix seconds
	}

	// Enrichment holds the best-effort supplementary fields fetched after a
	// download completes. Zero values are valid when the API is unreachable.
	Enrichment struct {
		Favorites int
		Comments  []Comment
	}

	// GalleryMetadata is the normalized form of the downloader's metadata dump.
	GalleryMetadata struct {
		Title         string
		TitleJapanese string
		TitlePretty   string
		GalleryID     string
		URL           string
		Pages         int
		Favorites     int
		Category      string
		Type          string
		Language      string
		Artists       []string
		Groups        []string
		Parodies      []string
		Characters    []string
		Tags          []string
	}

	// EagleMetadata is the sidecar record consumed by the Eagle library tool.
	// One JSON object per metadata.json, UTF-8.
	EagleMetadata struct {
		ID         string   `json:"id"`
		Name       string   `json:"name"`
		URL        string   `json:"url"`
		Tags       []string `json:"tags"`
		Annotation string   `json:"annotation"`
	}

	// DownloadRecord is the history entry persisted per completed gallery.
	DownloadRecord struct {
		GalleryID    string    `json:"galleryId"`
		Title        string    `json:"title"`
		OutputPath   string    `json:"outputPath"`
		PdfPath      string    `json:"pdfPath"`
		Pages        int       `json:"pages"`
		PdfBLAKE3    string    `json:"pdfBlake3,omitempty"`
		Status       string    `json:"status"`
		ErrorDetails string    `json:"errorDetails,omitempty"`
		DownloadedAt time.Time `json:"downloadedAt"`
	}
)

const (
	StatusDownloaded = "Downloaded"
	StatusError      = "Error"
)
