// Package worker runs the single download consumer: it drains the job queue,
// drives one processor pipeline at a time, and posts progress and results to
// the submitting channel.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"hentai-fetcher/internal/coordinator"
	"hentai-fetcher/internal/helpers"
	"hentai-fetcher/internal/models"
	"hentai-fetcher/internal/processor"

	log "github.com/sirupsen/logrus"
)

// Notifier posts and edits messages in the channel a job came from.
type Notifier interface {
	SendMessage(channelID, content string) (messageID string, err error)
	EditMessage(channelID, messageID, content string) error
	SendFile(channelID, path string) error
}

// GalleryAPI is the pre-check used to size the progress display before the
// download starts. Implementations are best-effort: zero pages means unknown.
type GalleryAPI interface {
	PageCount(galleryID string) (pages int, title string, mediaID string)
}

// Runner is one pipeline execution plus the accessors the monitor polls.
// Satisfied by *processor.Processor.
type Runner interface {
	Run(ctx context.Context) (bool, string)
	DownloadedCount() int
	FirstImagePath() string
	Converting() bool
	ConvertPercent() int
	Title() string
	Pages() int
	OutputPath() string
	PDFPath() string
}

// Config carries the worker's timing knobs.
type Config struct {
	PollTimeout      time.Duration
	ProgressInterval time.Duration
	SecondsPerPage   float64
	BarWidth         int
}

// DefaultConfig returns the worker timing used in production.
func DefaultConfig() Config {
	return Config{
		PollTimeout:      time.Second,
		ProgressInterval: 3 * time.Second,
		SecondsPerPage:   3.6,
		BarWidth:         15,
	}
}

// Result summarizes one finished job for the completion hook.
type Result struct {
	Job        models.Job
	GalleryID  string
	Success    bool
	Cancelled  bool
	Title      string
	Pages      int
	OutputPath string
	PdfPath    string
	Message    string
}

// Worker is the single queue consumer.
type Worker struct {
	coord     *coordinator.Coordinator
	notify    Notifier
	api       GalleryAPI
	newRunner func(opts processor.Options) Runner
	cfg       Config

	// OnComplete, when set, is called after every terminal outcome, on the
	// worker goroutine. Used to persist history and index completed galleries.
	OnComplete func(Result)
}

func New(coord *coordinator.Coordinator, notify Notifier, api GalleryAPI, newRunner func(opts processor.Options) Runner, cfg Config) *Worker {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 3 * time.Second
	}
	if cfg.BarWidth <= 0 {
		cfg.BarWidth = 15
	}
	return &Worker{
		coord:     coord,
		notify:    notify,
		api:       api,
		newRunner: newRunner,
		cfg:       cfg,
	}
}

// Run consumes jobs until ctx is cancelled. Jobs are processed strictly one
// at a time in submission order.
func (w *Worker) Run(ctx context.Context) {
	log.Info("Download worker started")
	for {
		if ctx.Err() != nil {
			log.Info("Download worker stopping")
			return
		}
		job, ok := w.coord.Queue.Dequeue(w.cfg.PollTimeout)
		if !ok {
			continue
		}
		w.safeHandle(ctx, job)
	}
}

// safeHandle isolates a panicking pipeline so one poisoned job cannot kill
// the worker loop. It is the single terminal exit: whether handle returns or
// panics, exactly one completion fires and the batch slot settles.
func (w *Worker) safeHandle(ctx context.Context, job models.Job) {
	handled := false
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic while processing %s: %v\n%s", job.Target, r, debug.Stack())
			msg := fmt.Sprintf("Internal error while processing %s", job.Target)
			w.send(job.ChannelID, msg)
			if !handled {
				id := helpers.GalleryIDFromTarget(job.Target)
				w.complete(Result{Job: job, GalleryID: id, Message: msg})
				w.finishBatch(job, false, id)
			}
		}
	}()
	res := w.handle(ctx, job)
	handled = true
	w.complete(res)
	w.finishBatch(job, res.Success, res.GalleryID)
}

func (w *Worker) complete(res Result) {
	if w.OnComplete != nil {
		w.OnComplete(res)
	}
}

// handle runs one job to its terminal outcome and reports it as a Result.
// It posts the job's own messages but leaves completion and batch
// bookkeeping to safeHandle.
func (w *Worker) handle(ctx context.Context, job models.Job) Result {
	galleryID := helpers.GalleryIDFromTarget(job.Target)
	if galleryID == "" {
		msg := fmt.Sprintf("Unrecognized download target: %s", job.Target)
		w.send(job.ChannelID, msg)
		return Result{Job: job, Message: msg}
	}

	flag := w.coord.Cancels.Register(galleryID)
	defer w.coord.Cancels.Unregister(galleryID)

	pages, title, _ := w.api.PageCount(galleryID)
	if title == "" {
		title = "#" + galleryID
	}

	messageID := w.sendStartMessage(job.ChannelID, galleryID, title, pages)

	// A cancel issued between submission and this point is still a terminal
	// outcome: the hook fires and the batch slot settles like any other.
	if flag.IsSet() {
		w.send(job.ChannelID, fmt.Sprintf("Download cancelled: #%s", galleryID))
		return Result{Job: job, GalleryID: galleryID, Cancelled: true}
	}

	runner := w.newRunner(processor.Options{
		Target:     job.Target,
		GalleryID:  galleryID,
		TotalPages: pages,
		Cancel:     flag,
	})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	if messageID != "" {
		mon := &monitor{
			src:          runner,
			notify:       w.notify,
			channelID:    job.ChannelID,
			messageID:    messageID,
			title:        title,
			totalPages:   pages,
			barWidth:     w.cfg.BarWidth,
			baseInterval: w.cfg.ProgressInterval,
			fastInterval: time.Second,
			previewDelay: time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			mon.run(stop)
		}()
	}

	ok, msg := runner.Run(ctx)
	cancelled := !ok && flag.IsSet()

	close(stop)
	wg.Wait()

	if cancelled {
		w.send(job.ChannelID, fmt.Sprintf("Download cancelled: #%s", galleryID))
	} else {
		if messageID != "" && pages > 0 {
			final := fmt.Sprintf("Downloading: **%s**\n%s (%d/%d)",
				title, helpers.ProgressBar(pages, pages, w.cfg.BarWidth), pages, pages)
			if err := w.notify.EditMessage(job.ChannelID, messageID, final); err != nil {
				log.WithError(err).Debug("Failed to finalize progress message")
			}
		}
		if msg != "" {
			w.send(job.ChannelID, msg)
		}
	}

	return Result{
		Job:        job,
		GalleryID:  galleryID,
		Success:    ok,
		Cancelled:  cancelled,
		Title:      runner.Title(),
		Pages:      runner.Pages(),
		OutputPath: runner.OutputPath(),
		PdfPath:    runner.PDFPath(),
		Message:    msg,
	}
}

// sendStartMessage posts the initial progress message and returns its id.
// An empty id means progress editing is unavailable for this job.
func (w *Worker) sendStartMessage(channelID, galleryID, title string, pages int) string {
	content := fmt.Sprintf("Starting download: **%s** (#%s)", title, galleryID)
	if pages > 0 {
		est := time.Duration(float64(pages)*w.cfg.SecondsPerPage) * time.Second
		content += fmt.Sprintf("\n%d pages, est. %s\n%s",
			pages, helpers.FormatDuration(est), helpers.ProgressBar(0, pages, w.cfg.BarWidth))
	}

	messageID, err := w.notify.SendMessage(channelID, content)
	if err != nil {
		log.WithError(err).Warnf("Failed to send start message for gallery %s", galleryID)
		return ""
	}
	return messageID
}

// finishBatch records one member outcome and posts the summary when the
// batch resolves. No-op for singleton jobs.
func (w *Worker) finishBatch(job models.Job, succeeded bool, galleryID string) {
	if job.BatchID == "" {
		return
	}
	snapshot := w.coord.Batches.RecordOutcome(job.BatchID, succeeded, galleryID)
	if snapshot == nil {
		return
	}
	w.send(snapshot.ChannelID, batchSummary(snapshot))
}

func batchSummary(b *coordinator.CompletedBatch) string {
	var header string
	switch {
	case b.Failed == 0:
		header = fmt.Sprintf("Batch complete: all %d downloads succeeded", b.Total)
	case b.Succeeded == 0:
		header = fmt.Sprintf("Batch complete: all %d downloads failed", b.Total)
	default:
		header = fmt.Sprintf("Batch complete: %d of %d downloads succeeded", b.Succeeded, b.Total)
	}

	if len(b.FailedIDs) == 0 {
		return header
	}

	failed := b.FailedIDs
	overflow := ""
	if len(failed) > 10 {
		overflow = fmt.Sprintf(" and %d more", len(failed)-10)
		failed = failed[:10]
	}
	return fmt.Sprintf("%s\nFailed: #%s%s", header, strings.Join(failed, ", #"), overflow)
}

func (w *Worker) send(channelID, content string) {
	if _, err := w.notify.SendMessage(channelID, content); err != nil {
		log.WithError(err).Warnf("Failed to send message to channel %s", channelID)
	}
}
