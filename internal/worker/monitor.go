package worker

import (
	"fmt"
	"os"
	"time"

	"hentai-fetcher/internal/helpers"

	log "github.com/sirupsen/logrus"
)

const previewThreshold = 3

// progressSource is the subset of the pipeline the monitor polls.
type progressSource interface {
	DownloadedCount() int
	FirstImagePath() string
	Converting() bool
	ConvertPercent() int
}

// monitor periodically edits the job's progress message while the pipeline
// runs. It polls rather than being pushed to, so a stalled pipeline still
// produces honest output.
type monitor struct {
	src       progressSource
	notify    Notifier
	channelID string
	messageID string

	title        string
	totalPages   int
	barWidth     int
	baseInterval time.Duration
	fastInterval time.Duration
	previewDelay time.Duration

	previewSent    bool
	lastContent    string
	started        time.Time
	convertStarted time.Time
}

// run polls until stop is closed. It never edits the message with identical
// content, and switches to the fast interval once PDF conversion begins or
// all pages are on disk.
func (m *monitor) run(stop <-chan struct{}) {
	m.started = time.Now()
	interval := m.baseInterval

	for {
		timer := time.NewTimer(interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		var content string
		if m.src.Converting() {
			interval = m.fastInterval
			if m.convertStarted.IsZero() {
				m.convertStarted = time.Now()
			}
			content = m.renderConverting()
		} else {
			count := m.src.DownloadedCount()
			if count >= m.totalPages && m.totalPages > 0 {
				interval = m.fastInterval
			}
			m.maybeSendPreview(count, stop)
			content = m.renderDownloading(count)
		}

		if content == "" || content == m.lastContent {
			continue
		}
		if err := m.notify.EditMessage(m.channelID, m.messageID, content); err != nil {
			log.WithError(err).Debug("Failed to edit progress message")
			continue
		}
		m.lastContent = content
	}
}

// maybeSendPreview posts the first page as an attachment once enough of the
// gallery has arrived to be confident the file is complete. The settle delay
// guards against attaching a page mid-write.
func (m *monitor) maybeSendPreview(count int, stop <-chan struct{}) {
	if m.previewSent || count < previewThreshold {
		return
	}

	timer := time.NewTimer(m.previewDelay)
	select {
	case <-stop:
		timer.Stop()
		return
	case <-timer.C:
	}

	path := m.src.FirstImagePath()
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return
	}

	if err := m.notify.SendFile(m.channelID, path); err != nil {
		log.WithError(err).Debug("Failed to send preview image")
		return
	}
	m.previewSent = true
}

func (m *monitor) renderDownloading(count int) string {
	// An unknown total means no bar; counting pages is the best we can do.
	if m.totalPages <= 0 {
		return fmt.Sprintf("Downloading: **%s**\n%d pages downloaded", m.title, count)
	}

	line := fmt.Sprintf("Downloading: **%s**\n%s (%d/%d)",
		m.title, helpers.ProgressBar(count, m.totalPages, m.barWidth), count, m.totalPages)
	if eta := m.downloadETA(count); eta > 0 {
		line += fmt.Sprintf("\nETA: %s", helpers.FormatDuration(eta))
	}
	return line
}

func (m *monitor) renderConverting() string {
	pct := m.src.ConvertPercent()
	content := fmt.Sprintf("Downloading: **%s**\n", m.title)
	if m.totalPages > 0 {
		content += fmt.Sprintf("%s (%d/%d)\n",
			helpers.ProgressBar(m.totalPages, m.totalPages, m.barWidth), m.totalPages, m.totalPages)
	}
	content += fmt.Sprintf("Converting to PDF\n%s", helpers.ProgressBar(pct, 100, m.barWidth))
	if eta := m.convertETA(pct); eta > 0 {
		content += fmt.Sprintf("\nETA: %s", helpers.FormatDuration(eta))
	}
	return content
}

// downloadETA projects the remaining time from the observed average pace.
func (m *monitor) downloadETA(count int) time.Duration {
	if count <= 0 || m.totalPages <= 0 || count >= m.totalPages {
		return 0
	}
	perPage := time.Since(m.started) / time.Duration(count)
	return perPage * time.Duration(m.totalPages-count)
}

func (m *monitor) convertETA(pct int) time.Duration {
	if pct <= 0 || pct >= 100 || m.convertStarted.IsZero() {
		return 0
	}
	elapsed := time.Since(m.convertStarted)
	return elapsed / time.Duration(pct) * time.Duration(100-pct)
}
