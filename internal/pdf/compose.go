package pdf

import (
	"bytes"
	"errors"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Output is one produced document.
type Output struct {
	Name string
	Data []byte
}

// Composer copies pages between documents.
type Composer interface {
	// Extract returns a new document holding the given 1-indexed pages of doc, in order.
	Extract(doc *Document, pages []int) ([]byte, error)
	// Concat joins serialised documents into one, preserving page order.
	Concat(parts [][]byte) ([]byte, error)
}

// PDFCPU is the Composer backed by pdfcpu.
type PDFCPU struct {
	conf *model.Configuration
}

func NewPDFCPU() *PDFCPU {
	return &PDFCPU{conf: newConfiguration()}
}

func (c *PDFCPU) Extract(doc *Document, pages []int) ([]byte, error) {
	if doc == nil || doc.ctx == nil {
		return nil, ErrNotLoaded
	}
	for _, p := range pages {
		if p < 1 || p > doc.PageCount {
			return nil, errors.New("page out of range")
		}
	}
	out, err := pdfcpu.ExtractPages(doc.ctx, pages, false)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := api.WriteContext(out, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *PDFCPU) Concat(parts [][]byte) ([]byte, error) {
	switch len(parts) {
	case 0:
		return nil, ErrNoDocuments
	case 1:
		return parts[0], nil
	}
	readers := make([]io.ReadSeeker, len(parts))
	for i, p := range parts {
		readers[i] = bytes.NewReader(p)
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, c.conf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
