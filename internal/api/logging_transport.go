package api

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoggingTransport wraps an http.RoundTripper to dump gallery API traffic to
// a log file. Enabled by the LogApiRequests config flag.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	mu        sync.Mutex
	writer    *bufio.Writer
}

// NewLoggingTransport opens logFilePath for appending and wraps transport.
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open API log file %s: %w", logFilePath, err)
	}

	if transport == nil {
		transport = http.DefaultTransport
	}

	return &LoggingTransport{
		Transport: transport,
		logFile:   f,
		writer:    bufio.NewWriter(f),
	}, nil
}

// RoundTrip executes a single HTTP transaction, logging request and response.
// JSON response bodies are logged and restored so the caller can still read
// them; other content types log headers only.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()

	if reqDump, err := httputil.DumpRequestOut(req, true); err != nil {
		log.WithError(err).Error("Failed to dump API request for logging")
	} else {
		t.writeLog(fmt.Sprintf("--- Request (%s) ---\n%s", start.Format(time.RFC3339), string(reqDump)))
	}

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.writeLog(fmt.Sprintf("--- Response Error (Duration: %v) ---\n%s", duration, err.Error()))
		t.writer.Flush()
		return resp, err
	}

	headerDump, dumpErr := httputil.DumpResponse(resp, false)
	if dumpErr != nil {
		t.writeLog(fmt.Sprintf("--- Response (Duration: %v) ---\nStatus: %s\n(failed to dump headers)", duration, resp.Status))
		t.writer.Flush()
		return resp, nil
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			log.WithError(readErr).Error("Failed to read response body for logging")
			t.writeLog(fmt.Sprintf("--- Response Headers (Duration: %v) ---\n%s\n(body read failed)", duration, string(headerDump)))
		} else {
			resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			t.writeLog(fmt.Sprintf("--- Response Headers (Duration: %v) ---\n%s\n--- Response Body ---\n%s", duration, string(headerDump), string(bodyBytes)))
		}
	} else {
		t.writeLog(fmt.Sprintf("--- Response Headers (Duration: %v) ---\n%s\n(body not logged)", duration, string(headerDump)))
	}

	t.writer.Flush()
	return resp, nil
}

func (t *LoggingTransport) writeLog(logString string) {
	if _, err := t.writer.WriteString(logString + "\n\n"); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to API log file: %v\n", err)
	}
}

// Close flushes and closes the underlying log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush API log buffer: %w", err)
	}
	return t.logFile.Close()
}
