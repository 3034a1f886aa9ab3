// Package processor runs the per-gallery download pipeline: metadata dump,
// image fetch, PDF conversion, cover extraction and sidecar generation. One
// Processor handles exactly one job and is discarded afterwards.
package processor

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"hentai-fetcher/internal/coordinator"
	"hentai-fetcher/internal/fetcher"
	"hentai-fetcher/internal/helpers"
	"hentai-fetcher/internal/metadata"
	"hentai-fetcher/internal/models"

	log "github.com/sirupsen/logrus"
)

const maxTitleFilenameLength = 120

// Acquirer runs the external downloader stages.
type Acquirer interface {
	DumpMetadata(ctx context.Context, target, destDir string) error
	FetchImages(ctx context.Context, target, destDir string) (*fetcher.RunResult, error)
}

// Enricher fetches the best-effort supplementary metadata after a download.
type Enricher interface {
	Extra(ctx context.Context, galleryID string) models.Enrichment
}

// Options configures one pipeline run.
type Options struct {
	Target     string
	GalleryID  string
	TotalPages int // authoritative page count from the pre-check; 0 = unknown
	Cancel     *coordinator.CancelFlag
	TempRoot   string
	OutputRoot string
	WebBaseURL string // optional; when set the success message links the PDF
	Fetch      Acquirer
	Enrich     Enricher // optional
}

// Processor executes the pipeline for a single gallery. The progress monitor
// polls its accessors from another goroutine; everything they touch is either
// immutable after construction or protected.
type Processor struct {
	opts     Options
	tempPath string

	converting     atomic.Bool
	convertPercent atomic.Int64

	mu         sync.Mutex
	title      string
	pages      int
	outputPath string
	pdfPath    string
}

// New prepares a Processor. The per-job temporary directory name is fixed at
// construction so the monitor can poll it before Run creates it.
func New(opts Options) *Processor {
	return &Processor{
		opts:     opts,
		tempPath: filepath.Join(opts.TempRoot, fmt.Sprintf("dl_%d", time.Now().UnixMilli())),
	}
}

// DownloadedCount reports the number of completed image files currently on
// disk in the job's temporary directory.
func (p *Processor) DownloadedCount() int {
	return len(helpers.FindImages(p.tempPath))
}

// FirstImagePath returns the natural-first downloaded image, or "" if none
// exist yet. Used for the early preview attachment.
func (p *Processor) FirstImagePath() string {
	images := helpers.FindImages(p.tempPath)
	if len(images) == 0 {
		return ""
	}
	return images[0]
}

// Converting reports whether the pipeline has entered the PDF stage.
func (p *Processor) Converting() bool { return p.converting.Load() }

// ConvertPercent reports PDF conversion progress as 0-100.
func (p *Processor) ConvertPercent() int { return int(p.convertPercent.Load()) }

func (p *Processor) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title
}

func (p *Processor) Pages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages
}

func (p *Processor) OutputPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outputPath
}

func (p *Processor) PDFPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pdfPath
}

func (p *Processor) cancelled() bool {
	return p.opts.Cancel.IsSet()
}

// Run executes the pipeline. It returns whether the gallery completed and the
// user-facing result message; a cancelled run returns (false, "") and leaves
// the cancellation messaging to the caller. The temporary directory is
// removed on every path.
func (p *Processor) Run(ctx context.Context) (bool, string) {
	start := time.Now()

	if !helpers.CheckAndMakeDir(p.tempPath) {
		return false, fmt.Sprintf("Failed to create temporary directory for %s", p.opts.Target)
	}
	defer func() {
		if err := os.RemoveAll(p.tempPath); err != nil {
			log.WithError(err).Warnf("Failed to remove temporary directory %s", p.tempPath)
		}
	}()

	if p.cancelled() {
		return false, ""
	}

	// Metadata dump failures degrade to a synthesized record later.
	if err := p.opts.Fetch.DumpMetadata(ctx, p.opts.Target, p.tempPath); err != nil {
		log.WithError(err).Warnf("Metadata dump failed for %s; continuing without it", p.opts.Target)
	}

	if p.cancelled() {
		return false, ""
	}

	result, fetchErr := p.opts.Fetch.FetchImages(ctx, p.opts.Target, p.tempPath)
	if p.cancelled() {
		return false, ""
	}

	if fetchErr != nil {
		log.WithError(fetchErr).Errorf("Image fetch failed for %s", p.opts.Target)
		msg := fmt.Sprintf("Download failed for %s", p.opts.Target)
		if result != nil {
			msg += "\n\n" + result.Diagnostics()
		}
		return false, msg
	}

	images := helpers.FindImages(p.tempPath)
	if len(images) == 0 {
		msg := fmt.Sprintf("Download failed: no images found for %s", p.opts.Target)
		if result != nil {
			msg += "\n\n" + result.Diagnostics()
		}
		return false, msg
	}

	meta := p.loadMetadata(len(images))
	title := metadata.DisplayTitle(meta, p.opts.GalleryID)

	pages := p.opts.TotalPages
	if pages <= 0 {
		pages = meta.Pages
	}
	if pages <= 0 {
		pages = len(images)
	}

	outputDir, err := p.makeOutputDir()
	if err != nil {
		log.WithError(err).Errorf("Failed to create output directory for gallery %s", p.opts.GalleryID)
		return false, fmt.Sprintf("Failed to create output directory for gallery %s", p.opts.GalleryID)
	}

	pdfName := helpers.SanitizeFilename(title, maxTitleFilenameLength) + ".pdf"
	pdfPath := filepath.Join(outputDir, pdfName)

	p.mu.Lock()
	p.title = title
	p.pages = pages
	p.outputPath = outputDir
	p.pdfPath = pdfPath
	p.mu.Unlock()

	p.converting.Store(true)
	err = ConvertToPDF(images, pdfPath, func(pct int) {
		p.convertPercent.Store(int64(pct))
	})
	if err != nil {
		log.WithError(err).Errorf("PDF conversion failed for gallery %s", p.opts.GalleryID)
		p.removeOutput(outputDir)
		return false, fmt.Sprintf("PDF conversion failed for **%s**: %v", title, err)
	}

	if p.cancelled() {
		p.removeOutput(outputDir)
		return false, ""
	}

	p.writeCover(images[0], outputDir)
	p.writeSidecar(ctx, meta, title, pages, outputDir)

	webLine := ""
	if p.opts.WebBaseURL != "" {
		webLine = fmt.Sprintf("%s/%s\n", p.opts.WebBaseURL, url.PathEscape(pdfName))
	}
	msg := fmt.Sprintf("Completed: **%s**\n%d pages in %s\n%s%s",
		title, len(images), helpers.FormatDuration(time.Since(start)), webLine, outputDir)
	if len(images) < pages {
		msg += fmt.Sprintf("\nWarning: only %d of %d pages were downloaded", len(images), pages)
	}

	log.Infof("Gallery %s completed: %d pages in %s", p.opts.GalleryID, len(images), helpers.FormatDuration(time.Since(start)))
	return true, msg
}

// loadMetadata parses whatever metadata made it to disk, synthesizing a
// minimal record when nothing usable exists.
func (p *Processor) loadMetadata(imageCount int) models.GalleryMetadata {
	infoPath, err := metadata.FindInfoFile(p.tempPath)
	if err == nil {
		meta, parseErr := metadata.ParseInfoFile(infoPath)
		if parseErr == nil {
			if meta.GalleryID == "" {
				meta.GalleryID = p.opts.GalleryID
			}
			return meta
		}
		log.WithError(parseErr).Warnf("Failed to parse metadata file %s", infoPath)
	}

	return models.GalleryMetadata{
		GalleryID: p.opts.GalleryID,
		URL:       p.opts.Target,
		Pages:     imageCount,
	}
}

// makeOutputDir creates the gallery's output directory, named by gallery id.
// An existing directory from a previous run gets a timestamp suffix rather
// than being overwritten.
func (p *Processor) makeOutputDir() (string, error) {
	name := p.opts.GalleryID
	if name == "" {
		name = fmt.Sprintf("download_%d", time.Now().Unix())
	}

	dir := filepath.Join(p.opts.OutputRoot, name)
	if _, err := os.Stat(dir); err == nil {
		dir = filepath.Join(p.opts.OutputRoot, fmt.Sprintf("%s_%d", name, time.Now().Unix()))
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

func (p *Processor) removeOutput(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.WithError(err).Warnf("Failed to remove incomplete output directory %s", dir)
	}
}

// writeCover copies the first page next to the PDF as the gallery cover.
// Failure is logged and ignored.
func (p *Processor) writeCover(firstImage, outputDir string) {
	dst := filepath.Join(outputDir, "cover"+filepath.Ext(firstImage))
	if err := helpers.CopyFile(firstImage, dst); err != nil {
		log.WithError(err).Warnf("Failed to copy cover image for gallery %s", p.opts.GalleryID)
	}
}

// writeSidecar fetches the enrichment fields and writes the Eagle sidecar.
// Both steps are best-effort.
func (p *Processor) writeSidecar(ctx context.Context, meta models.GalleryMetadata, title string, pages int, outputDir string) {
	var extra models.Enrichment
	if p.opts.Enrich != nil && p.opts.GalleryID != "" {
		extra = p.opts.Enrich.Extra(ctx, p.opts.GalleryID)
	}

	sidecar := metadata.BuildSidecar(meta, extra, title, pages)
	if err := metadata.WriteSidecar(outputDir, sidecar); err != nil {
		log.WithError(err).Warnf("Failed to write metadata sidecar for gallery %s", p.opts.GalleryID)
	}
}
