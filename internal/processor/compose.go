package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/jung-kurt/gofpdf"
)

// composePDF writes the page images into a PDF where each page exactly fits
// its image at one point per pixel. progress receives (done, total) after
// each page.
func composePDF(pages []image.Image, pdfPath string, progress func(done, total int)) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt"})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	var buf bytes.Buffer
	for i, img := range pages {
		w := float64(img.Bounds().Dx())
		h := float64(img.Bounds().Dy())
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})

		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return fmt.Errorf("encoding page %d: %w", i+1, err)
		}

		name := fmt.Sprintf("page-%d", i+1)
		pdf.RegisterImageOptionsReader(name, opts, &buf)
		pdf.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
		if pdf.Err() {
			return fmt.Errorf("composing page %d: %v", i+1, pdf.Error())
		}
		progress(i+1, len(pages))
	}

	if err := pdf.OutputFileAndClose(pdfPath); err != nil {
		return fmt.Errorf("writing PDF %s: %w", pdfPath, err)
	}
	return nil
}
