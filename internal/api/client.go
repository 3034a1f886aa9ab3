// Package api implements the client for the remote gallery API. All calls are
// best-effort from the worker's point of view: callers that can proceed with
// defaults wrap the error-returning methods accordingly.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"hentai-fetcher/internal/models"

	log "github.com/sirupsen/logrus"
)

// Custom Error Types
var (
	ErrNotFound    = errors.New("gallery not found")
	ErrRateLimited = errors.New("API rate limit exceeded")
	ErrServerError = errors.New("API server error")
)

const maxRetries = 3

// retryDelayUnit scales the retry backoff. Shortened in tests.
var retryDelayUnit = time.Second

// Client talks to the gallery API over a shared http.Client.
type Client struct {
	BaseUrl    string
	UserAgent  string
	HttpClient *http.Client
}

// NewClient creates an API client. A nil httpClient gets a default with the
// configured timeout.
func NewClient(cfg models.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: time.Duration(cfg.ApiClientTimeoutSec) * time.Second,
		}
	}
	return &Client{
		BaseUrl:    cfg.ApiBaseUrl,
		UserAgent:  cfg.UserAgent,
		HttpClient: httpClient,
	}
}

// galleryResponse mirrors the fields of the gallery endpoint the worker needs.
type galleryResponse struct {
	ID      json.Number `json:"id"`
	MediaID json.Number `json:"media_id"`
	Title   struct {
		English  string `json:"english"`
		Japanese string `json:"japanese"`
		Pretty   string `json:"pretty"`
	} `json:"title"`
	NumPages     int `json:"num_pages"`
	NumFavorites int `json:"num_favorites"`
}

type commentResponse struct {
	Body     string `json:"body"`
	PostDate int64  `json:"post_date"`
	Poster   struct {
		Username string `json:"username"`
	} `json:"poster"`
}

// GetGallery fetches the page count, title variants and media id for a
// gallery. Retries rate limits and server errors with backoff.
func (c *Client) GetGallery(ctx context.Context, galleryID string) (models.GalleryInfo, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/api/gallery/%s", c.BaseUrl, galleryID))
	if err != nil {
		return models.GalleryInfo{}, err
	}

	var resp galleryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.WithError(err).Errorf("Error unmarshalling gallery response for id %s", galleryID)
		return models.GalleryInfo{}, fmt.Errorf("error unmarshalling gallery response: %w", err)
	}

	return models.GalleryInfo{
		ID:            galleryID,
		MediaID:       resp.MediaID.String(),
		TitleEnglish:  resp.Title.English,
		TitleJapanese: resp.Title.Japanese,
		TitlePretty:   resp.Title.Pretty,
		Pages:         resp.NumPages,
		Favorites:     resp.NumFavorites,
	}, nil
}

// GetComments fetches the user comments for a gallery.
func (c *Client) GetComments(ctx context.Context, galleryID string) ([]models.Comment, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/api/gallery/%s/comments", c.BaseUrl, galleryID))
	if err != nil {
		return nil, err
	}

	var raw []commentResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error unmarshalling comments response: %w", err)
	}

	comments := make([]models.Comment, 0, len(raw))
	for _, r := range raw {
		comments = append(comments, models.Comment{
			Poster:   r.Poster.Username,
			Body:     r.Body,
			PostDate: r.PostDate,
		})
	}
	return comments, nil
}

// PageCount is the best-effort pre-check used before a download starts.
// Returns 0 pages and empty strings when the API is unreachable; the worker
// treats that as "unknown total" and suppresses progress rendering.
func (c *Client) PageCount(galleryID string) (int, string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	info, err := c.GetGallery(ctx, galleryID)
	if err != nil {
		log.WithError(err).Warnf("Page count pre-check failed for gallery %s", galleryID)
		return 0, "", ""
	}

	title := info.TitleJapanese
	if title == "" {
		title = info.TitleEnglish
	}
	return info.Pages, truncateTitle(title, 40), info.MediaID
}

// Extra fetches the supplementary fields written into the metadata sidecar.
// Failures degrade to zero favorites and no comments.
func (c *Client) Extra(ctx context.Context, galleryID string) models.Enrichment {
	var extra models.Enrichment

	info, err := c.GetGallery(ctx, galleryID)
	if err != nil {
		log.WithError(err).Warnf("Failed to fetch favorite count for gallery %s", galleryID)
	} else {
		extra.Favorites = info.Favorites
	}

	comments, err := c.GetComments(ctx, galleryID)
	if err != nil {
		log.WithError(err).Warnf("Failed to fetch comments for gallery %s", galleryID)
	} else {
		extra.Comments = comments
	}

	return extra
}

// get performs a GET with retries on retryable statuses and returns the body.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("error creating request for %s: %w", reqURL, err)
		}
		req.Header.Set("User-Agent", c.UserAgent)

		resp, err := c.HttpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request failed (attempt %d/%d): %w", attempt+1, maxRetries, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			log.WithError(err).Warnf("Retrying (%d/%d)...", attempt+1, maxRetries)
			sleepWithContext(ctx, time.Duration(attempt+1)*2*retryDelayUnit)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Error closing API response body")
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				return nil, fmt.Errorf("error reading response body: %w", readErr)
			}
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			log.WithError(lastErr).Warnf("Rate limited. Retrying (%d/%d)...", attempt+1, maxRetries)
			sleepWithContext(ctx, time.Duration(attempt+1)*5*retryDelayUnit)
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w (status code %d)", ErrServerError, resp.StatusCode)
			log.WithError(lastErr).Warnf("Server error. Retrying (%d/%d)...", attempt+1, maxRetries)
			sleepWithContext(ctx, time.Duration(attempt+1)*3*retryDelayUnit)
		default:
			return nil, fmt.Errorf("API request failed with status %d", resp.StatusCode)
		}

		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func truncateTitle(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
