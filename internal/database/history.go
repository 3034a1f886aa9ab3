package database

import (
	"encoding/json"
	"fmt"

	"hentai-fetcher/internal/models"
)

const recordKeyPrefix = "gallery_"

func recordKey(galleryID string) []byte {
	return []byte(recordKeyPrefix + galleryID)
}

// MarkDownloaded stores or replaces the history record for a gallery.
func (d *DB) MarkDownloaded(rec models.DownloadRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error marshalling history record for gallery %s: %w", rec.GalleryID, err)
	}
	return d.Put(recordKey(rec.GalleryID), data)
}

// GetRecord retrieves the history record for a gallery id. Returns
// ErrNotFound when the gallery has never been recorded.
func (d *DB) GetRecord(galleryID string) (models.DownloadRecord, error) {
	data, err := d.Get(recordKey(galleryID))
	if err != nil {
		return models.DownloadRecord{}, err
	}

	var rec models.DownloadRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.DownloadRecord{}, fmt.Errorf("error unmarshalling history record for gallery %s: %w", galleryID, err)
	}
	return rec, nil
}

// IsDownloaded reports whether a gallery has a successful download on record.
func (d *DB) IsDownloaded(galleryID string) bool {
	rec, err := d.GetRecord(galleryID)
	if err != nil {
		return false
	}
	return rec.Status == models.StatusDownloaded
}

// DeleteRecord removes a gallery's history record. Missing records are not an
// error.
func (d *DB) DeleteRecord(galleryID string) error {
	err := d.Delete(recordKey(galleryID))
	if err == ErrNotFound {
		return nil
	}
	return err
}

// ForEachRecord calls fn for every history record in the store. Entries under
// other key prefixes are skipped.
func (d *DB) ForEachRecord(fn func(rec models.DownloadRecord) error) error {
	return d.Fold(func(key, value []byte) error {
		if len(key) < len(recordKeyPrefix) || string(key[:len(recordKeyPrefix)]) != recordKeyPrefix {
			return nil
		}
		var rec models.DownloadRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			// Corrupt entries should not abort history listing.
			return nil
		}
		return fn(rec)
	})
}
