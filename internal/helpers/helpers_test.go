package helpers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGalleryIDFromTarget(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"Full URL", "https://nhentai.net/g/177013/", "177013"},
		{"URL without trailing slash", "https://nhentai.net/g/410", "410"},
		{"URL with page fragment", "https://nhentai.net/g/52110/3/", "52110"},
		{"Bare id", "177013", ""},
		{"No gallery path", "https://nhentai.net/tag/glasses/", ""},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GalleryIDFromTarget(tt.target)
			if got != tt.want {
				t.Errorf("GalleryIDFromTarget(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

func TestResolveTargets(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"Single URL", "https://nhentai.net/g/177013/", []string{"https://nhentai.net/g/177013/"}},
		{"Bare id", "177013", []string{"https://nhentai.net/g/177013/"}},
		{"Mixed separators", "1 2,3;4", []string{
			"https://nhentai.net/g/1/",
			"https://nhentai.net/g/2/",
			"https://nhentai.net/g/3/",
			"https://nhentai.net/g/4/",
		}},
		{"URL and id mixed", "https://nhentai.net/g/410/ 177013", []string{
			"https://nhentai.net/g/410/",
			"https://nhentai.net/g/177013/",
		}},
		{"Garbage ignored", "not-a-url abc 55", []string{"https://nhentai.net/g/55/"}},
		{"Trailing punctuation stripped from URL", "https://nhentai.net/g/410/,", []string{"https://nhentai.net/g/410/"}},
		{"Empty input", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTargets(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ResolveTargets(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ResolveTargets(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{"Clean name", "My Gallery", 100, "My Gallery"},
		{"Path separators", "a/b\\c", 100, "a_b_c"},
		{"Windows-invalid chars", `t<i>t:l"e|?*`, 100, "t_i_t_l_e___"},
		{"Trailing dots trimmed", "title...", 100, "title"},
		{"Truncation", strings.Repeat("a", 50), 10, strings.Repeat("a", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.input, tt.maxLength)
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q, %d) = %q, want %q", tt.input, tt.maxLength, got, tt.want)
			}
		})
	}

	t.Run("Empty result gets placeholder", func(t *testing.T) {
		got := SanitizeFilename(" ... ", 100)
		if !strings.HasPrefix(got, "download_") {
			t.Errorf("SanitizeFilename(%q) = %q, want download_ placeholder", " ... ", got)
		}
	})
}

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"2 before 10", "2.jpg", "10.jpg", true},
		{"10 not before 2", "10.jpg", "2.jpg", false},
		{"Equal numeric falls back to lexical", "a1.jpg", "b1.jpg", true},
		{"Padded equals natural order", "page_002.png", "page_010.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NaturalLess(tt.a, tt.b); got != tt.want {
				t.Errorf("NaturalLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFindImages(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(name string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	mustWrite("10.jpg")
	mustWrite("2.png")
	mustWrite("1.webp")
	mustWrite("3.jpg.part") // incomplete download, must be excluded
	mustWrite("info.json")  // not an image

	got := FindImages(dir)
	wantOrder := []string{"1.webp", "2.png", "10.jpg"}
	if len(got) != len(wantOrder) {
		t.Fatalf("FindImages returned %d files, want %d: %v", len(got), len(wantOrder), got)
	}
	for i, want := range wantOrder {
		if filepath.Base(got[i]) != want {
			t.Errorf("FindImages[%d] = %s, want %s", i, filepath.Base(got[i]), want)
		}
	}
}

func TestFindImagesMissingDir(t *testing.T) {
	got := FindImages(filepath.Join(t.TempDir(), "does-not-exist"))
	if len(got) != 0 {
		t.Errorf("FindImages on a missing directory returned %v, want empty", got)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name            string
		current, total  int
		width           int
		wantPct         string
		wantFilledRunes int
	}{
		{"Zero progress", 0, 10, 10, "0%", 0},
		{"Half", 5, 10, 10, "50%", 5},
		{"Complete", 10, 10, 10, "100%", 10},
		{"Overshoot clamps", 15, 10, 10, "100%", 10},
		{"Unknown total", 3, 0, 10, "0%", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProgressBar(tt.current, tt.total, tt.width)
			if !strings.HasSuffix(got, tt.wantPct) {
				t.Errorf("ProgressBar = %q, want suffix %q", got, tt.wantPct)
			}
			filled := strings.Count(got, "█")
			if filled != tt.wantFilledRunes {
				t.Errorf("ProgressBar = %q, filled %d, want %d", got, filled, tt.wantFilledRunes)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"Under a minute", 12300 * time.Millisecond, "12.3s"},
		{"Over a minute", 92 * time.Second, "1m32s"},
		{"Exactly a minute", 60 * time.Second, "1m0s"},
		{"Negative clamps to zero", -5 * time.Second, "0.0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"Minutes", now.Add(-30 * time.Minute), "30 minutes ago"},
		{"Hours", now.Add(-5 * time.Hour), "5 hours ago"},
		{"Days", now.AddDate(0, 0, -3), "3 days ago"},
		{"Weeks", now.AddDate(0, 0, -15), "2 weeks ago"},
		{"Months", now.AddDate(0, 0, -65), "2 months ago"},
		{"Months and weeks", now.AddDate(0, 0, -70), "2 months, 1 weeks ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeTime(tt.t, now); got != tt.want {
				t.Errorf("RelativeTime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("Truncate long = %q", got)
	}
	// Multi-byte titles must not be split mid-rune.
	if got := Truncate("日本語のタイトル", 3); got != "日本語..." {
		t.Errorf("Truncate multibyte = %q", got)
	}
}

func TestNewEagleID(t *testing.T) {
	id := NewEagleID()
	if !strings.HasPrefix(id, "L") || len(id) < 10 {
		t.Errorf("NewEagleID() = %q, want L-prefixed millisecond id", id)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("payload"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile returned error: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("copied content = %q", string(data))
	}

	if err := CopyFile(filepath.Join(dir, "missing"), dst); err == nil {
		t.Error("CopyFile with missing source should return an error")
	}
}

func TestBLAKE3File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.pdf")
	if err := os.WriteFile(path, []byte("pdf bytes"), 0600); err != nil {
		t.Fatal(err)
	}

	h1, err := BLAKE3File(path)
	if err != nil {
		t.Fatalf("BLAKE3File returned error: %v", err)
	}
	if len(h1) != 64 || strings.ToUpper(h1) != h1 {
		t.Errorf("BLAKE3File = %q, want 64 uppercase hex chars", h1)
	}

	h2, err := BLAKE3File(path)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hash not deterministic: %q vs %q", h1, h2)
	}

	if _, err := BLAKE3File(filepath.Join(dir, "missing")); err == nil {
		t.Error("BLAKE3File on a missing file should return an error")
	}
}
