package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hentai-fetcher/index"
	"hentai-fetcher/internal/api"
	"hentai-fetcher/internal/bot"
	"hentai-fetcher/internal/coordinator"
	"hentai-fetcher/internal/database"
	"hentai-fetcher/internal/fetcher"
	"hentai-fetcher/internal/helpers"
	"hentai-fetcher/internal/models"
	"hentai-fetcher/internal/processor"
	"hentai-fetcher/internal/worker"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Discord download bot",
	Long: `Connects to Discord and serves download commands until interrupted.
Jobs are processed one at a time in submission order.`,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(botCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	bleveIndex, err := index.OpenOrCreateIndex(globalConfig.BleveIndexPath)
	if err != nil {
		return err
	}
	defer bleveIndex.Close()

	coord := coordinator.New()
	apiClient := api.NewClient(globalConfig, &http.Client{
		Transport: globalHttpTransport,
		Timeout:   time.Duration(globalConfig.ApiClientTimeoutSec) * time.Second,
	})
	dl := fetcher.New(globalConfig)

	discordBot, err := bot.New(globalConfig, coord, db)
	if err != nil {
		return err
	}

	w := worker.New(coord, discordBot, apiClient,
		newRunnerFactory(globalConfig, dl, apiClient),
		worker.Config{
			PollTimeout:      time.Second,
			ProgressInterval: time.Duration(globalConfig.ProgressIntervalSec) * time.Second,
			SecondsPerPage:   globalConfig.SecondsPerPage,
			BarWidth:         globalConfig.ProgressBarWidth,
		})
	w.OnComplete = completionHook(db, bleveIndex)

	if err := discordBot.Open(); err != nil {
		return err
	}
	defer discordBot.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.Run(ctx)
	return nil
}

// newRunnerFactory builds one pipeline per job, sharing the downloader and
// API client across jobs.
func newRunnerFactory(cfg models.Config, dl *fetcher.Fetcher, enrich processor.Enricher) func(opts processor.Options) worker.Runner {
	return func(opts processor.Options) worker.Runner {
		opts.TempRoot = cfg.TempPath
		opts.OutputRoot = cfg.DownloadPath
		opts.WebBaseURL = cfg.PdfWebBaseUrl
		opts.Fetch = dl
		opts.Enrich = enrich
		return processor.New(opts)
	}
}

// completionHook persists every terminal outcome and indexes successful
// downloads for search. Runs on the worker goroutine.
func completionHook(db *database.DB, bleveIndex bleve.Index) func(worker.Result) {
	return func(res worker.Result) {
		// Cancellations are not history, and a job that never resolved to a
		// gallery id has nothing to key a record on.
		if res.Cancelled || res.GalleryID == "" {
			return
		}

		rec := models.DownloadRecord{
			GalleryID:    res.GalleryID,
			Title:        res.Title,
			OutputPath:   res.OutputPath,
			PdfPath:      res.PdfPath,
			Pages:        res.Pages,
			Status:       models.StatusDownloaded,
			DownloadedAt: time.Now(),
		}
		if !res.Success {
			rec.Status = models.StatusError
			rec.ErrorDetails = helpers.Truncate(res.Message, 500)
		} else if res.PdfPath != "" {
			if hash, err := helpers.BLAKE3File(res.PdfPath); err != nil {
				log.WithError(err).Warnf("Failed to hash PDF for gallery %s", res.GalleryID)
			} else {
				rec.PdfBLAKE3 = hash
			}
		}

		if err := db.MarkDownloaded(rec); err != nil {
			log.WithError(err).Errorf("Failed to record history for gallery %s", res.GalleryID)
		}

		if !res.Success {
			return
		}

		tags, annotation := sidecarFields(res.OutputPath)
		if err := index.IndexItem(bleveIndex, index.FromRecord(rec, "", tags, annotation)); err != nil {
			log.WithError(err).Warnf("Failed to index gallery %s", res.GalleryID)
		}
	}
}

// sidecarFields reads the searchable fields back out of the sidecar the
// pipeline just wrote. Missing sidecars degrade to empty fields.
func sidecarFields(outputDir string) (tags []string, annotation string) {
	if outputDir == "" {
		return nil, ""
	}
	data, err := os.ReadFile(filepath.Join(outputDir, "metadata.json"))
	if err != nil {
		return nil, ""
	}
	var sidecar models.EagleMetadata
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return nil, ""
	}
	return sidecar.Tags, sidecar.Annotation
}
