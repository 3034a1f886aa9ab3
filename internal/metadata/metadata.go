// Package metadata parses the downloader's metadata dumps and builds the
// Eagle-compatible sidecar written next to each finished gallery.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hentai-fetcher/internal/fetcher"
	"hentai-fetcher/internal/helpers"
	"hentai-fetcher/internal/models"

	log "github.com/sirupsen/logrus"
)

var ErrNoInfoFile = errors.New("no metadata file found")

const maxAnnotationComments = 5

// rawInfo tolerates the shape drift across downloader versions: scalar fields
// may arrive as strings or numbers, creator fields as strings or lists, and
// tags as plain strings, comma-joined strings, or {type, name} objects.
type rawInfo struct {
	Title         json.RawMessage `json:"title"`
	TitleJapanese json.RawMessage `json:"title_japanese"`
	GalleryID     json.RawMessage `json:"gallery_id"`
	ID            json.RawMessage `json:"id"`
	URL           string          `json:"gallery_url"`
	Count         int             `json:"count"`
	NumPages      int             `json:"num_pages"`
	Favorites     int             `json:"num_favorites"`
	Category      string          `json:"category"`
	Type          string          `json:"type"`
	Language      json.RawMessage `json:"language"`
	Artist        json.RawMessage `json:"artist"`
	Group         json.RawMessage `json:"group"`
	Parody        json.RawMessage `json:"parody"`
	Characters    json.RawMessage `json:"characters"`
	Tags          json.RawMessage `json:"tags"`
}

// FindInfoFile locates the metadata JSON inside a download directory. The
// dump written by the metadata stage wins; otherwise the per-file sidecars
// the downloader writes with --write-metadata are considered.
func FindInfoFile(dir string) (string, error) {
	preferred := filepath.Join(dir, fetcher.MetadataFilename)
	if _, err := os.Stat(preferred); err == nil {
		return preferred, nil
	}

	var infoMatch, anyMatch string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		if !strings.HasSuffix(name, ".json") {
			return nil
		}
		if strings.Contains(name, "info") && infoMatch == "" {
			infoMatch = path
		}
		if anyMatch == "" {
			anyMatch = path
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning %s for metadata: %w", dir, err)
	}

	if infoMatch != "" {
		return infoMatch, nil
	}
	if anyMatch != "" {
		return anyMatch, nil
	}
	return "", ErrNoInfoFile
}

// ParseInfoFile reads a metadata JSON file and normalizes it into a
// GalleryMetadata. Missing fields degrade to zero values rather than errors.
func ParseInfoFile(path string) (models.GalleryMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.GalleryMetadata{}, fmt.Errorf("reading metadata file %s: %w", path, err)
	}
	return ParseInfo(data)
}

// ParseInfo normalizes raw metadata JSON into a GalleryMetadata.
func ParseInfo(data []byte) (models.GalleryMetadata, error) {
	var raw rawInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.GalleryMetadata{}, fmt.Errorf("parsing metadata JSON: %w", err)
	}

	meta := models.GalleryMetadata{
		TitleJapanese: asString(raw.TitleJapanese),
		GalleryID:     asString(raw.GalleryID),
		URL:           raw.URL,
		Favorites:     raw.Favorites,
		Category:      raw.Category,
		Type:          raw.Type,
		Artists:       asStringList(raw.Artist),
		Groups:        asStringList(raw.Group),
		Parodies:      asStringList(raw.Parody),
		Characters:    asStringList(raw.Characters),
	}

	meta.Title, meta.TitlePretty = parseTitle(raw.Title)
	if meta.GalleryID == "" {
		meta.GalleryID = asString(raw.ID)
	}
	if meta.URL == "" && meta.GalleryID != "" {
		meta.URL = fmt.Sprintf("%s/g/%s/", helpers.GalleryBaseUrl, meta.GalleryID)
	}

	meta.Pages = raw.Count
	if meta.Pages == 0 {
		meta.Pages = raw.NumPages
	}

	langs := asStringList(raw.Language)
	if len(langs) > 0 {
		meta.Language = langs[0]
	}

	meta.Tags = asStringList(raw.Tags)
	return meta, nil
}

// parseTitle accepts either a plain string or a {english, japanese, pretty}
// object and returns the display title plus the pretty variant.
func parseTitle(raw json.RawMessage) (title, pretty string) {
	if len(raw) == 0 {
		return "", ""
	}
	if s := asString(raw); s != "" {
		return s, ""
	}
	var obj struct {
		English  string `json:"english"`
		Japanese string `json:"japanese"`
		Pretty   string `json:"pretty"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", ""
	}
	// Japanese titles are preferred for naming; English is kept for the
	// annotation block.
	if obj.Japanese != "" {
		return obj.Japanese, obj.Pretty
	}
	if obj.English != "" {
		return obj.English, obj.Pretty
	}
	return obj.Pretty, obj.Pretty
}

// asString coerces a raw JSON value that may be a string or a number.
func asString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// asStringList coerces the list-ish shapes metadata fields arrive in: a
// single string (possibly comma-joined), a list of strings, or a list of
// {type, name} tag objects.
func asStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		var out []string
		for _, part := range strings.Split(single, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		var out []string
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	var objects []struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &objects); err == nil {
		var out []string
		for _, o := range objects {
			if name := strings.TrimSpace(o.Name); name != "" {
				out = append(out, name)
			}
		}
		return out
	}

	log.Debugf("Unrecognized metadata list shape: %s", helpers.Truncate(string(raw), 80))
	return nil
}

// DisplayTitle picks the best available title for a gallery, falling back to
// a placeholder built from the gallery id.
func DisplayTitle(meta models.GalleryMetadata, galleryID string) string {
	switch {
	case meta.TitleJapanese != "":
		return meta.TitleJapanese
	case meta.Title != "":
		return meta.Title
	default:
		return "Gallery_" + galleryID
	}
}

// BuildTags assembles the prefixed tag list written to the sidecar. Creator
// and classification fields get namespace prefixes; duplicates are dropped
// while preserving first-seen order.
func BuildTags(meta models.GalleryMetadata) []string {
	var tags []string
	seen := map[string]bool{}
	add := func(prefix string, values ...string) {
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			tag := prefix + v
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}

	add("artist:", meta.Artists...)
	add("group:", meta.Groups...)
	add("parody:", meta.Parodies...)
	add("character:", meta.Characters...)
	add("language:", meta.Language)
	if meta.Type != "" {
		add("type:", meta.Type)
	} else {
		add("type:", meta.Category)
	}
	add("", meta.Tags...)

	return tags
}

// BuildSidecar assembles the Eagle metadata record for a finished gallery.
// pages is the authoritative page count from the pre-check when available.
func BuildSidecar(meta models.GalleryMetadata, extra models.Enrichment, title string, pages int) models.EagleMetadata {
	if pages <= 0 {
		pages = meta.Pages
	}
	favorites := extra.Favorites
	if favorites == 0 {
		favorites = meta.Favorites
	}

	var lines []string
	appendLine := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}

	if meta.TitleJapanese != "" && meta.Title != "" && meta.Title != meta.TitleJapanese {
		appendLine("English title", meta.Title)
	}
	if pages > 0 {
		appendLine("Pages", fmt.Sprintf("%d", pages))
	}
	if favorites > 0 {
		appendLine("Favorites", fmt.Sprintf("%d", favorites))
	}
	typ := meta.Type
	if typ == "" {
		typ = meta.Category
	}
	appendLine("Type", typ)
	appendLine("Language", meta.Language)
	appendLine("Artists", strings.Join(meta.Artists, ", "))
	appendLine("Groups", strings.Join(meta.Groups, ", "))
	appendLine("Parodies", strings.Join(meta.Parodies, ", "))
	appendLine("Characters", strings.Join(meta.Characters, ", "))
	appendLine("Gallery ID", meta.GalleryID)

	if block := formatComments(extra.Comments); block != "" {
		lines = append(lines, "", block)
	}

	lines = append(lines, "",
		"Downloaded: "+time.Now().Format("2006-01-02 15:04:05"),
		"Downloaded via hentai-fetcher")

	return models.EagleMetadata{
		ID:         helpers.NewEagleID(),
		Name:       title,
		URL:        meta.URL,
		Tags:       BuildTags(meta),
		Annotation: strings.Join(lines, "\n"),
	}
}

// formatComments renders up to maxAnnotationComments comments for the
// annotation block.
func formatComments(comments []models.Comment) string {
	if len(comments) == 0 {
		return ""
	}

	now := time.Now()
	lines := []string{fmt.Sprintf("Comments (%d):", len(comments))}
	for i, c := range comments {
		if i >= maxAnnotationComments {
			lines = append(lines, fmt.Sprintf("... and %d more", len(comments)-maxAnnotationComments))
			break
		}
		when := helpers.RelativeTime(time.Unix(c.PostDate, 0), now)
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", c.Poster, when, helpers.Truncate(c.Body, 200)))
	}
	return strings.Join(lines, "\n")
}

// WriteSidecar serializes the sidecar as metadata.json inside dir.
func WriteSidecar(dir string, sidecar models.EagleMetadata) error {
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata sidecar: %w", err)
	}
	path := filepath.Join(dir, "metadata.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing metadata sidecar %s: %w", path, err)
	}
	return nil
}
