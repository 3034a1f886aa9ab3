package helpers

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"lukechampine.com/blake3"
)

const GalleryBaseUrl = "https://nhentai.net"

var (
	galleryIDPattern = regexp.MustCompile(`/g/(\d+)`)
	digitRunPattern  = regexp.MustCompile(`\d+`)
	invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
)

// imageExtensions lists the raster formats the downloader may produce.
// Partial downloads carry a .part suffix and are never matched.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// GalleryIDFromTarget extracts the numeric gallery id from a gallery URL.
// Returns an empty string if the target does not carry one.
func GalleryIDFromTarget(target string) string {
	m := galleryIDPattern.FindStringSubmatch(target)
	if m == nil {
		return ""
	}
	return m[1]
}

// ResolveTargets parses user input into canonical gallery URLs. Accepted forms
// are full URLs, bare numeric ids, and any mix of those separated by
// whitespace, commas or semicolons.
func ResolveTargets(input string) []string {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")

	var urls []string
	for _, part := range regexp.MustCompile(`[\s,;]+`).Split(input, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch {
		case strings.HasPrefix(part, "http://") || strings.HasPrefix(part, "https://"):
			urls = append(urls, strings.TrimRight(part, ".,;"))
		case isDigits(part):
			urls = append(urls, fmt.Sprintf("%s/g/%s/", GalleryBaseUrl, part))
		default:
			log.Debugf("Ignoring unrecognized download target %q", part)
		}
	}
	return urls
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SanitizeFilename strips characters that are invalid in file names and
// truncates overly long titles. An empty result falls back to a timestamped
// placeholder.
func SanitizeFilename(name string, maxLength int) string {
	sanitized := invalidNameChars.ReplaceAllString(name, "_")
	sanitized = strings.Trim(sanitized, " .")

	if maxLength > 0 && len(sanitized) > maxLength {
		sanitized = strings.Trim(sanitized[:maxLength], " .")
	}

	if sanitized == "" {
		sanitized = fmt.Sprintf("download_%d", time.Now().Unix())
	}
	return sanitized
}

// naturalKey extracts the digit runs embedded in a file name so 2.jpg sorts
// before 10.jpg.
func naturalKey(name string) []int {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	runs := digitRunPattern.FindAllString(stem, -1)
	key := make([]int, 0, len(runs))
	for _, run := range runs {
		// Digit runs longer than an int are clamped; they do not occur in
		// practice for page numbering.
		n, err := strconv.Atoi(run)
		if err != nil {
			n = int(^uint(0) >> 1)
		}
		key = append(key, n)
	}
	return key
}

// NaturalLess compares two file names treating embedded digit runs as numbers.
func NaturalLess(a, b string) bool {
	ka, kb := naturalKey(a), naturalKey(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	if len(ka) != len(kb) {
		return len(ka) < len(kb)
	}
	return a < b
}

// SortNatural sorts paths by the natural order of their base names.
func SortNatural(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		return NaturalLess(filepath.Base(paths[i]), filepath.Base(paths[j]))
	})
}

// FindImages walks dir recursively and returns all image files in natural
// order. Incomplete download artifacts (.part) are excluded.
func FindImages(dir string) []string {
	var images []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The downloader may still be creating entries; skip what we
			// cannot stat and keep counting the rest.
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".part") {
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(name))] {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Debugf("Error walking image directory %s", dir)
	}
	SortNatural(images)
	return images
}

// ProgressBar renders a fixed-width block-glyph bar, e.g. "███░░░░ 42%".
// A non-positive total means the total is unknown and renders as empty.
func ProgressBar(current, total, width int) string {
	if width <= 0 {
		width = 15
	}
	if total <= 0 {
		return strings.Repeat("░", width) + " 0%"
	}
	ratio := float64(current) / float64(total)
	if ratio > 1.0 {
		ratio = 1.0
	}
	filled := int(ratio * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %d%%", bar, int(ratio*100))
}

// FormatDuration renders an elapsed or estimated duration the way progress
// messages display it: "1m32s" above a minute, "12.3s" below.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := d.Seconds()
	if secs >= 60 {
		return fmt.Sprintf("%dm%ds", int(secs)/60, int(secs)%60)
	}
	return fmt.Sprintf("%.1fs", secs)
}

// RelativeTime renders how long ago t was, relative to now.
func RelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	days := int(diff.Hours() / 24)
	switch {
	case days > 30:
		months := days / 30
		weeks := (days % 30) / 7
		if weeks > 0 {
			return fmt.Sprintf("%d months, %d weeks ago", months, weeks)
		}
		return fmt.Sprintf("%d months ago", months)
	case days > 7:
		return fmt.Sprintf("%d weeks ago", days/7)
	case days > 0:
		return fmt.Sprintf("%d days ago", days)
	case diff >= time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	}
}

// NewEagleID generates an Eagle-compatible unique id from the current time.
func NewEagleID() string {
	return fmt.Sprintf("L%d", time.Now().UnixMilli())
}

// NewBatchID generates an id grouping jobs submitted in one user action.
func NewBatchID() string {
	return fmt.Sprintf("B%d", time.Now().UnixMilli())
}

// CheckAndMakeDir ensures a directory exists, creating it if necessary.
func CheckAndMakeDir(dir string) bool {
	if err := os.MkdirAll(dir, 0700); err != nil {
		log.WithError(err).Errorf("Error creating directory %s", dir)
		return false
	}
	return true
}

// CopyFile copies src to dst, truncating dst if it exists.
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// BLAKE3File hashes a file and returns the uppercase hex digest. Used to
// fingerprint generated PDFs in the history store.
func BLAKE3File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s for hashing: %w", path, err)
	}
	sum := blake3.Sum256(data)
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
