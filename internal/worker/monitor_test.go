package worker

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource is a scriptable progress source for monitor tests.
type fakeSource struct {
	count      atomic.Int64
	converting atomic.Bool
	percent    atomic.Int64
	firstImage atomic.Value // string
}

func (f *fakeSource) DownloadedCount() int { return int(f.count.Load()) }
func (f *fakeSource) Converting() bool     { return f.converting.Load() }
func (f *fakeSource) ConvertPercent() int  { return int(f.percent.Load()) }
func (f *fakeSource) FirstImagePath() string {
	if v := f.firstImage.Load(); v != nil {
		return v.(string)
	}
	return ""
}

func newTestMonitor(src progressSource, notify Notifier) *monitor {
	return &monitor{
		src:          src,
		notify:       notify,
		channelID:    "chan",
		messageID:    "msg-1",
		title:        "Test",
		totalPages:   10,
		barWidth:     15,
		baseInterval: 10 * time.Millisecond,
		fastInterval: 5 * time.Millisecond,
		previewDelay: time.Millisecond,
	}
}

func lastEdit(n *fakeNotifier) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.edits) == 0 {
		return ""
	}
	return n.edits[len(n.edits)-1]
}

func runMonitor(m *monitor, d time.Duration) {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.run(stop)
	}()
	time.Sleep(d)
	close(stop)
	wg.Wait()
}

func TestMonitorEditsOnProgress(t *testing.T) {
	src := &fakeSource{}
	src.count.Store(4)
	notify := &fakeNotifier{}

	runMonitor(newTestMonitor(src, notify), 60*time.Millisecond)

	edit := lastEdit(notify)
	if edit == "" {
		t.Fatal("monitor never edited the progress message")
	}
	if !strings.Contains(edit, "(4/10)") {
		t.Errorf("edit = %q, want download counter", edit)
	}
	if !strings.Contains(edit, "█") {
		t.Errorf("edit = %q, want a progress bar", edit)
	}
}

func TestMonitorSkipsIdenticalEdits(t *testing.T) {
	// With zero pages on disk there is no ETA line, so the rendered content
	// never changes and only the first tick may edit.
	src := &fakeSource{}
	notify := &fakeNotifier{}

	runMonitor(newTestMonitor(src, notify), 100*time.Millisecond)

	notify.mu.Lock()
	edits := len(notify.edits)
	notify.mu.Unlock()
	if edits > 1 {
		t.Errorf("monitor produced %d edits for unchanging progress, want at most 1", edits)
	}
}

func TestMonitorConvertingMode(t *testing.T) {
	src := &fakeSource{}
	src.converting.Store(true)
	src.percent.Store(40)
	notify := &fakeNotifier{}

	runMonitor(newTestMonitor(src, notify), 60*time.Millisecond)

	edit := lastEdit(notify)
	if !strings.Contains(edit, "Converting to PDF") {
		t.Errorf("edit = %q, want conversion banner", edit)
	}
	if !strings.Contains(edit, "(10/10)") {
		t.Errorf("edit = %q, want the download bar pinned at full", edit)
	}
	if !strings.Contains(edit, "40%") {
		t.Errorf("edit = %q, want conversion percentage", edit)
	}
}

func TestMonitorConvertingUnknownTotal(t *testing.T) {
	// With no page count there is nothing to pin a download bar to; only the
	// conversion bar renders.
	src := &fakeSource{}
	src.converting.Store(true)
	src.percent.Store(25)
	notify := &fakeNotifier{}

	m := newTestMonitor(src, notify)
	m.totalPages = 0
	runMonitor(m, 60*time.Millisecond)

	edit := lastEdit(notify)
	if !strings.Contains(edit, "Converting to PDF") {
		t.Fatalf("edit = %q, want conversion banner", edit)
	}
	if strings.Contains(edit, "(0/0)") {
		t.Errorf("edit = %q, download counter rendered without a page count", edit)
	}
	if got := strings.Count(edit, "%"); got != 1 {
		t.Errorf("edit = %q, want exactly one bar", edit)
	}
}

func TestMonitorSendsPreviewOnce(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "1.jpg")
	if err := os.WriteFile(imgPath, []byte("jpeg bytes"), 0600); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{}
	src.count.Store(3)
	src.firstImage.Store(imgPath)
	notify := &fakeNotifier{}

	runMonitor(newTestMonitor(src, notify), 100*time.Millisecond)

	notify.mu.Lock()
	files := len(notify.files)
	notify.mu.Unlock()
	if files != 1 {
		t.Errorf("preview sent %d times, want exactly once", files)
	}
}

func TestMonitorNoPreviewBelowThreshold(t *testing.T) {
	src := &fakeSource{}
	src.count.Store(2)
	src.firstImage.Store("/does/not/matter.jpg")
	notify := &fakeNotifier{}

	runMonitor(newTestMonitor(src, notify), 60*time.Millisecond)

	notify.mu.Lock()
	files := len(notify.files)
	notify.mu.Unlock()
	if files != 0 {
		t.Errorf("preview sent with only 2 images on disk")
	}
}

func TestMonitorNoPreviewForEmptyFile(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "1.jpg")
	if err := os.WriteFile(imgPath, nil, 0600); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{}
	src.count.Store(5)
	src.firstImage.Store(imgPath)
	notify := &fakeNotifier{}

	runMonitor(newTestMonitor(src, notify), 60*time.Millisecond)

	notify.mu.Lock()
	files := len(notify.files)
	notify.mu.Unlock()
	if files != 0 {
		t.Errorf("preview sent for a zero-byte file")
	}
}
