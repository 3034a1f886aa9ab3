package processor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"

	// Galleries frequently ship webp pages; register the decoder.
	_ "golang.org/x/image/webp"
)

var ErrNoImages = errors.New("no images to convert")

const jpegQuality = 90

// Conversion progress is split into three phases so the progress monitor can
// show meaningful percentages: decoding 0-20, width normalization 20-70,
// PDF composition 70-100.
const (
	phaseDecodeEnd  = 20
	phaseResizeEnd  = 70
	phaseComposeEnd = 100
)

// ConvertToPDF renders the ordered page images into a single PDF at pdfPath.
// Pages are normalized to a common width (the widest page) with Lanczos
// resampling so mixed-resolution galleries read cleanly. report is called
// with a 0-100 percentage as work proceeds; it must be non-nil.
func ConvertToPDF(imagePaths []string, pdfPath string, report func(pct int)) error {
	if len(imagePaths) == 0 {
		return ErrNoImages
	}

	pages := make([]image.Image, 0, len(imagePaths))
	maxWidth := 0
	for i, path := range imagePaths {
		img, err := loadAndNormalize(path)
		if err != nil {
			// A single corrupt page should not sink the whole gallery.
			log.WithError(err).Warnf("Skipping unreadable page %s", path)
			continue
		}
		if w := img.Bounds().Dx(); w > maxWidth {
			maxWidth = w
		}
		pages = append(pages, img)
		report(phaseDecodeEnd * (i + 1) / len(imagePaths))
	}
	if len(pages) == 0 {
		return ErrNoImages
	}

	for i, img := range pages {
		if img.Bounds().Dx() != maxWidth {
			pages[i] = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
		}
		report(phaseDecodeEnd + (phaseResizeEnd-phaseDecodeEnd)*(i+1)/len(pages))
	}

	if err := composePDF(pages, pdfPath, func(done, total int) {
		report(phaseResizeEnd + (phaseComposeEnd-phaseResizeEnd)*done/total)
	}); err != nil {
		return err
	}

	info, err := os.Stat(pdfPath)
	if err != nil {
		return fmt.Errorf("stat on generated PDF %s: %w", pdfPath, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("generated PDF %s is empty", pdfPath)
	}

	report(phaseComposeEnd)
	return nil
}

// loadAndNormalize decodes an image and flattens any transparency onto a
// white background, since PDF pages have no alpha channel.
func loadAndNormalize(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if isOpaque(img) {
		return img, nil
	}
	background := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0), nil
}

func isOpaque(img image.Image) bool {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok {
		return o.Opaque()
	}
	return false
}
