// Package render rasterises PDF pages with MuPDF (go-fitz).
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"pdfdesk/internal/pdf"
	"pdfdesk/internal/task"
)

const (
	baseDPI     = 72.0
	jpegQuality = 90
	previewDPI  = 72.0
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrPageRange         = errors.New("invalid page range")
)

// Scale returns the zoom factor for a quality level.
func Scale(q task.ImageQuality) float64 {
	switch q {
	case task.QualityHigh:
		return 2.0
	case task.QualityUltra:
		return 3.0
	default:
		return 1.5
	}
}

// DPI returns the render resolution for a quality level.
func DPI(q task.ImageQuality) float64 { return baseDPI * Scale(q) }

// PageName is the name of a standalone page image.
func PageName(stem string, page int, format task.ImageFormat) string {
	return fmt.Sprintf("%s_page_%03d.%s", stem, page, format)
}

// BundledPageName is the name of a page image inside a bundle folder.
func BundledPageName(page int, format task.ImageFormat) string {
	return fmt.Sprintf("page_%03d.%s", page, format)
}

// FolderName is the bundle folder (and zip stem) for a source file.
func FolderName(stem string) string { return stem + "_img" }

// Renderer converts PDF pages into images.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// Render rasterises pages StartPage..EndPage of data. EndPage <= 0 means
// the last page; the range is clamped to the document. Progress is reported
// per page. With CreateFolder the outputs are named for placement inside
// FolderName(stem).
func (r *Renderer) Render(ctx context.Context, taskID, name string, data []byte, cfg task.PdfToImageConfig, listener task.UnitListener) ([]pdf.Output, error) {
	if err := checkFormat(cfg.Format); err != nil {
		return nil, err
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &pdf.LoadError{File: name, Err: err}
	}
	defer doc.Close()

	first, last, err := pageRange(cfg.StartPage, cfg.EndPage, doc.NumPage())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	dpi := DPI(cfg.Quality)
	stem := pdf.Stem(name)
	total := last - first + 1

	outputs := make([]pdf.Output, 0, total)
	for page := first; page <= last; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(page-1, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d of %s: %w", page, name, err)
		}
		encoded, err := Encode(img, cfg.Format)
		if err != nil {
			return nil, fmt.Errorf("encode page %d of %s: %w", page, name, err)
		}
		outName := PageName(stem, page, cfg.Format)
		if cfg.CreateFolder {
			outName = BundledPageName(page, cfg.Format)
		}
		outputs = append(outputs, pdf.Output{Name: outName, Data: encoded})

		log.Debug().
			Str("task_id", taskID).
			Int("page", page).
			Int("width", img.Bounds().Dx()).
			Int("height", img.Bounds().Dy()).
			Msg("rendered page")
		done := page - first + 1
		if listener != nil {
			listener.OnUnit(task.UnitEvent{
				TaskID:  taskID,
				Done:    done,
				Total:   total,
				Step:    fmt.Sprintf("page %d", page),
				Message: fmt.Sprintf("%d/%d pages converted", done, total),
			})
		}
	}
	return outputs, nil
}

// Preview renders one page as PNG, scaled so that it is width pixels wide.
func (r *Renderer) Preview(data []byte, page, width int) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageRange, page, doc.NumPage())
	}
	dpi := previewDPI
	if width > 0 {
		bounds, err := doc.Bound(page - 1)
		if err != nil {
			return nil, err
		}
		if w := bounds.Dx(); w > 0 {
			dpi = previewDPI * float64(width) / float64(w)
		}
	}
	img, err := doc.ImageDPI(page-1, dpi)
	if err != nil {
		return nil, err
	}
	return Encode(img, task.FormatPNG)
}

// Encode writes img in the given format.
func Encode(img image.Image, format task.ImageFormat) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case task.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case task.FormatJPG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return buf.Bytes(), nil
}

func checkFormat(f task.ImageFormat) error {
	if f != task.FormatPNG && f != task.FormatJPG {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	return nil
}

func pageRange(start, end, numPages int) (int, int, error) {
	if numPages < 1 {
		return 0, 0, fmt.Errorf("%w: document has no pages", ErrPageRange)
	}
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > numPages {
		end = numPages
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: %d-%d of %d", ErrPageRange, start, end, numPages)
	}
	return start, end, nil
}
