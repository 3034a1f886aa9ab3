// Package fetcher shells out to the external gallery downloader. The target
// locator is always passed as a discrete argv element; no part of it is ever
// interpolated into a shell-interpreted string.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"hentai-fetcher/internal/models"

	log "github.com/sirupsen/logrus"
)

// Custom Fetcher Errors
var (
	ErrDownloaderFailed = errors.New("external downloader failed")
	ErrEmptyMetadata    = errors.New("downloader produced no metadata")
)

// MetadataFilename is the sidecar the metadata dump is written to inside the
// job's temporary directory.
const MetadataFilename = "gallery_metadata.json"

const excerptLimit = 800

// RunResult captures the diagnostic context of one downloader invocation for
// user-facing failure messages. Stdout/Stderr hold truncated excerpts.
type RunResult struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Diagnostics renders the result as the debug block appended to failure
// messages. Never includes credentials; the downloader is invoked without any.
func (r *RunResult) Diagnostics() string {
	lines := []string{
		"Debug info",
		fmt.Sprintf("command: `%s`", r.Command),
		fmt.Sprintf("exit code: %d", r.ExitCode),
	}
	if r.Stderr != "" {
		lines = append(lines, fmt.Sprintf("\nstderr:\n```\n%s\n```", r.Stderr))
	}
	if r.Stdout != "" {
		lines = append(lines, fmt.Sprintf("\nstdout:\n```\n%s\n```", r.Stdout))
	}
	return strings.Join(lines, "\n")
}

// Fetcher invokes gallery-dl, optionally piping its URL listing into aria2c
// for multi-connection image fetches.
type Fetcher struct {
	GalleryDLPath   string
	Aria2cPath      string
	UserAgent       string
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
}

func New(cfg models.Config) *Fetcher {
	return &Fetcher{
		GalleryDLPath:   cfg.GalleryDLPath,
		Aria2cPath:      cfg.Aria2cPath,
		UserAgent:       cfg.UserAgent,
		MetadataTimeout: time.Duration(cfg.MetadataTimeoutSec) * time.Second,
		DownloadTimeout: time.Duration(cfg.DownloadTimeoutSec) * time.Second,
	}
}

// DumpMetadata runs the downloader in metadata-only mode and writes the
// gallery's metadata record to MetadataFilename inside destDir. The caller
// treats failure as non-fatal; the pipeline synthesizes a minimal record.
func (f *Fetcher) DumpMetadata(ctx context.Context, target, destDir string) error {
	ctx, cancel := context.WithTimeout(ctx, f.MetadataTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.GalleryDLPath, "--dump-json", "--user-agent", f.UserAgent, target)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugf("Running metadata dump: %s", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: metadata dump for %s: %v (stderr: %s)",
			ErrDownloaderFailed, target, err, excerpt(stderr.String()))
	}

	record, err := extractMetadataRecord(stdout.Bytes())
	if err != nil {
		return err
	}

	path := filepath.Join(destDir, MetadataFilename)
	if err := os.WriteFile(path, record, 0600); err != nil {
		return fmt.Errorf("writing metadata file %s: %w", path, err)
	}
	log.Debugf("Metadata dump saved to %s", path)
	return nil
}

// extractMetadataRecord pulls the gallery-level record out of the dump-json
// output. The tool emits a JSON array whose first element is either the
// metadata object itself or a [url, metadata] pair.
func extractMetadataRecord(raw []byte) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyMetadata
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("parsing metadata dump: %w", err)
	}
	if len(elements) == 0 {
		return nil, ErrEmptyMetadata
	}

	first := elements[0]
	var pair []json.RawMessage
	if err := json.Unmarshal(first, &pair); err == nil && len(pair) >= 2 {
		first = pair[1]
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, first, "", "  "); err != nil {
		return nil, fmt.Errorf("re-encoding metadata record: %w", err)
	}
	return indented.Bytes(), nil
}

// FetchImages downloads the gallery's images into destDir. With aria2c
// configured this runs gallery-dl -g piped into aria2c as two spawned
// processes connected by a pipe; otherwise gallery-dl downloads directly.
// The returned RunResult is always non-nil for diagnostics.
func (f *Fetcher) FetchImages(ctx context.Context, target, destDir string) (*RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.DownloadTimeout)
	defer cancel()

	if f.Aria2cPath != "" {
		return f.fetchPiped(ctx, target, destDir)
	}
	return f.fetchDirect(ctx, target, destDir)
}

func (f *Fetcher) fetchDirect(ctx context.Context, target, destDir string) (*RunResult, error) {
	cmd := exec.CommandContext(ctx, f.GalleryDLPath,
		"--user-agent", f.UserAgent,
		"--dest", destDir,
		"--write-metadata",
		target)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Infof("Running downloader: %s", strings.Join(cmd.Args, " "))
	err := cmd.Run()

	result := &RunResult{
		Command:  strings.Join(cmd.Args, " "),
		ExitCode: exitCode(cmd, err),
		Stdout:   excerpt(stdout.String()),
		Stderr:   excerpt(stderr.String()),
	}
	if err != nil {
		log.WithError(err).Errorf("Downloader failed for %s (exit %d)", target, result.ExitCode)
		return result, fmt.Errorf("%w: %v", ErrDownloaderFailed, err)
	}
	return result, nil
}

func (f *Fetcher) fetchPiped(ctx context.Context, target, destDir string) (*RunResult, error) {
	list := exec.CommandContext(ctx, f.GalleryDLPath, "--user-agent", f.UserAgent, "-g", target)
	fetch := exec.CommandContext(ctx, f.Aria2cPath,
		"-i", "-",
		"-x", "8",
		"-s", "8",
		"--user-agent="+f.UserAgent,
		"-d", destDir)

	pipe, err := list.StdoutPipe()
	if err != nil {
		return &RunResult{}, fmt.Errorf("creating downloader pipe: %w", err)
	}
	fetch.Stdin = pipe

	var listErrBuf, fetchOutBuf, fetchErrBuf bytes.Buffer
	list.Stderr = &listErrBuf
	fetch.Stdout = &fetchOutBuf
	fetch.Stderr = &fetchErrBuf

	commandLine := strings.Join(list.Args, " ") + " | " + strings.Join(fetch.Args, " ")
	log.Infof("Running piped downloader: %s", commandLine)

	if err := fetch.Start(); err != nil {
		return &RunResult{Command: commandLine}, fmt.Errorf("%w: starting aria2c: %v", ErrDownloaderFailed, err)
	}
	if err := list.Start(); err != nil {
		// aria2c sees EOF on stdin once the pipe is abandoned; reap it.
		_ = fetch.Wait()
		return &RunResult{Command: commandLine}, fmt.Errorf("%w: starting gallery-dl: %v", ErrDownloaderFailed, err)
	}

	listErr := list.Wait()
	fetchErr := fetch.Wait()

	result := &RunResult{
		Command:  commandLine,
		ExitCode: exitCode(fetch, fetchErr),
		Stdout:   excerpt(fetchOutBuf.String()),
		Stderr:   excerpt(listErrBuf.String() + fetchErrBuf.String()),
	}
	if listErr != nil {
		result.ExitCode = exitCode(list, listErr)
		log.WithError(listErr).Errorf("gallery-dl URL listing failed for %s", target)
		return result, fmt.Errorf("%w: gallery-dl: %v", ErrDownloaderFailed, listErr)
	}
	if fetchErr != nil {
		log.WithError(fetchErr).Errorf("aria2c download failed for %s", target)
		return result, fmt.Errorf("%w: aria2c: %v", ErrDownloaderFailed, fetchErr)
	}
	return result, nil
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > excerptLimit {
		return s[:excerptLimit]
	}
	return s
}
