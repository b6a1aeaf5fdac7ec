package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfdesk/internal/pdf/pdftest"
	"pdfdesk/internal/task"
)

type unitCounter struct{ done []int }

func (u *unitCounter) OnUnit(e task.UnitEvent) { u.done = append(u.done, e.Done) }

func TestScaleAndDPI(t *testing.T) {
	assert.Equal(t, 1.5, Scale(task.QualityMedium))
	assert.Equal(t, 2.0, Scale(task.QualityHigh))
	assert.Equal(t, 3.0, Scale(task.QualityUltra))
	assert.Equal(t, 1.5, Scale(""), "unknown quality falls back to medium")
	assert.Equal(t, 108.0, DPI(task.QualityMedium))
	assert.Equal(t, 216.0, DPI(task.QualityUltra))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "report_page_007.png", PageName("report", 7, task.FormatPNG))
	assert.Equal(t, "page_012.jpg", BundledPageName(12, task.FormatJPG))
	assert.Equal(t, "report_img", FolderName("report"))
}

func TestPageRange(t *testing.T) {
	first, last, err := pageRange(0, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5}, []int{first, last})

	first, last, err = pageRange(2, 9, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, []int{first, last})

	_, _, err = pageRange(6, 0, 5)
	assert.ErrorIs(t, err, ErrPageRange)
}

func TestEncode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	data, err := Encode(img, task.FormatPNG)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	data, err = Encode(img, task.FormatJPG)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data[:2])

	_, err = Encode(img, task.FormatWEBP)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRenderRejectsUnsupportedFormatBeforeOpening(t *testing.T) {
	_, err := NewRenderer().Render(context.Background(), "t1", "a.pdf", nil, task.PdfToImageConfig{Format: task.FormatWEBP}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRenderPages(t *testing.T) {
	data := pdftest.Doc(200, 3)
	counter := &unitCounter{}

	outputs, err := NewRenderer().Render(context.Background(), "t1", "scan.pdf", data, task.PdfToImageConfig{
		StartPage: 2,
		Quality:   task.QualityMedium,
		Format:    task.FormatPNG,
	}, counter)
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	assert.Equal(t, "scan_page_002.png", outputs[0].Name)
	assert.Equal(t, "scan_page_003.png", outputs[1].Name)
	assert.Equal(t, []int{1, 2}, counter.done)

	img, err := png.Decode(bytes.NewReader(outputs[0].Data))
	require.NoError(t, err)
	// page 2 is 202pt wide; at 108 DPI that is 303px.
	assert.InDelta(t, 303, img.Bounds().Dx(), 2)
}

func TestRenderBundledNames(t *testing.T) {
	outputs, err := NewRenderer().Render(context.Background(), "t1", "scan.pdf", pdftest.Doc(0, 1), task.PdfToImageConfig{
		Format:       task.FormatJPG,
		CreateFolder: true,
	}, nil)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "page_001.jpg", outputs[0].Name)
}

func TestPreview(t *testing.T) {
	data, err := NewRenderer().Preview(pdftest.Doc(200, 2), 1, 300)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.InDelta(t, 300, img.Bounds().Dx(), 2)

	_, err = NewRenderer().Preview(pdftest.Doc(200, 2), 3, 300)
	assert.ErrorIs(t, err, ErrPageRange)
}
