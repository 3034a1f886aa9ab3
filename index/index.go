package index

import (
	"log"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"

	"hentai-fetcher/internal/models"
)

const defaultIndexPath = "library.bleve"

// Item represents one downloaded gallery in the search index. All fields are
// indexed and searchable under their lowercase JSON tag names (e.g. query
// '+tags:glasses' or '+galleryId:177013').
type Item struct {
	ID            string    `json:"id"`
	GalleryID     string    `json:"galleryId"`
	Title         string    `json:"title"`
	TitleJapanese string    `json:"titleJapanese,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Annotation    string    `json:"annotation,omitempty"`
	Path          string    `json:"path"`
	PdfPath       string    `json:"pdfPath,omitempty"`
	Pages         float64   `json:"pages,omitempty"`
	DownloadedAt  time.Time `json:"downloadedAt,omitempty"`
}

// FromRecord builds an index item from a history record plus the sidecar
// fields worth searching on.
func FromRecord(rec models.DownloadRecord, titleJapanese string, tags []string, annotation string) Item {
	return Item{
		ID:            "g_" + rec.GalleryID,
		GalleryID:     rec.GalleryID,
		Title:         rec.Title,
		TitleJapanese: titleJapanese,
		Tags:          tags,
		Annotation:    annotation,
		Path:          rec.OutputPath,
		PdfPath:       rec.PdfPath,
		Pages:         float64(rec.Pages),
		DownloadedAt:  rec.DownloadedAt,
	}
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one if it
// doesn't exist.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.Printf("Creating new index at: %s", indexPath)
		mapping := bleve.NewIndexMapping()
		index, err = bleve.New(indexPath, mapping)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return index, nil
}

// IndexItem adds or updates an item in the Bleve index.
func IndexItem(index bleve.Index, item Item) error {
	return index.Index(item.ID, item)
}

// DeleteItem removes a gallery from the index by gallery id.
func DeleteItem(index bleve.Index, galleryID string) error {
	return index.Delete("g_" + galleryID)
}

// SearchIndex performs a search query against the index.
func SearchIndex(index bleve.Index, query string) (*bleve.SearchResult, error) {
	searchQuery := bleve.NewQueryStringQuery(query)
	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Fields = []string{"*"}
	return index.Search(searchRequest)
}

// DeleteIndex removes the index directory. Use with caution!
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	return os.RemoveAll(indexPath)
}
