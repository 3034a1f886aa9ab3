package fetcher

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestExtractMetadataRecordObjectFirst(t *testing.T) {
	raw := []byte(`[{"title": "Some Gallery", "count": 12}]`)

	record, err := extractMetadataRecord(raw)
	if err != nil {
		t.Fatalf("extractMetadataRecord returned error: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(record, &parsed); err != nil {
		t.Fatalf("extracted record is not valid JSON: %v", err)
	}
	if parsed["title"] != "Some Gallery" {
		t.Errorf("title = %v", parsed["title"])
	}
}

func TestExtractMetadataRecordURLPair(t *testing.T) {
	raw := []byte(`[["https://example.test/1.jpg", {"title": "Paired", "count": 3}]]`)

	record, err := extractMetadataRecord(raw)
	if err != nil {
		t.Fatalf("extractMetadataRecord returned error: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(record, &parsed); err != nil {
		t.Fatalf("extracted record is not valid JSON: %v", err)
	}
	if parsed["title"] != "Paired" {
		t.Errorf("title = %v, want the metadata half of the pair", parsed["title"])
	}
}

func TestExtractMetadataRecordEmpty(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("  \n"), []byte("[]")} {
		if _, err := extractMetadataRecord(raw); !errors.Is(err, ErrEmptyMetadata) {
			t.Errorf("extractMetadataRecord(%q) = %v, want ErrEmptyMetadata", raw, err)
		}
	}
}

func TestExtractMetadataRecordInvalid(t *testing.T) {
	if _, err := extractMetadataRecord([]byte("not json")); err == nil {
		t.Error("extractMetadataRecord accepted invalid JSON")
	}
}

func TestRunResultDiagnostics(t *testing.T) {
	r := &RunResult{
		Command:  "gallery-dl --dest temp https://example.test/g/1/",
		ExitCode: 4,
		Stderr:   "HTTP 503",
	}

	d := r.Diagnostics()
	for _, want := range []string{"gallery-dl --dest temp", "exit code: 4", "HTTP 503"} {
		if !strings.Contains(d, want) {
			t.Errorf("Diagnostics missing %q:\n%s", want, d)
		}
	}
	if strings.Contains(d, "stdout") {
		t.Error("Diagnostics should omit the stdout block when empty")
	}
}

func TestExcerptTruncates(t *testing.T) {
	long := strings.Repeat("x", excerptLimit+100)
	if got := excerpt(long); len(got) != excerptLimit {
		t.Errorf("excerpt length = %d, want %d", len(got), excerptLimit)
	}
	if got := excerpt("  short  "); got != "short" {
		t.Errorf("excerpt = %q, want trimmed", got)
	}
}
