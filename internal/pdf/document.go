// Package pdf loads PDF documents and composes new ones from their pages.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
)

const mimePDF = "application/pdf"

// Document is a parsed, page-addressable PDF held in memory.
type Document struct {
	Name      string
	Data      []byte
	PageCount int

	ctx *model.Context
}

// Source is a named byte buffer handed in by the caller. Err marks an
// upload that could not be read; it still holds its position in the list.
type Source struct {
	Name string
	Data []byte
	Err  error
}

// MergeablePdf is a document staged for merging.
type MergeablePdf struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TotalPages int       `json:"total_pages"`
	Doc        *Document `json:"-"`
	Loaded     bool      `json:"loaded"`
}

// Loader turns raw bytes into Documents.
type Loader struct {
	conf *model.Configuration
}

func NewLoader() *Loader {
	return &Loader{conf: newConfiguration()}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Load sniffs data, parses and validates it. Non-PDF content yields a
// *LoadError wrapping ErrNotPDF.
func (l *Loader) Load(ctx context.Context, name string, data []byte) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &LoadError{File: name, Err: ErrNotPDF}
	}
	if mt := mimetype.Detect(data); !mt.Is(mimePDF) {
		log.Debug().Str("file", name).Str("mime", mt.String()).Msg("rejected non-pdf upload")
		return nil, &LoadError{File: name, Err: fmt.Errorf("%w: detected %s", ErrNotPDF, mt.String())}
	}

	pctx, err := api.ReadContext(bytes.NewReader(data), l.conf)
	if err != nil {
		return nil, &LoadError{File: name, Err: fmt.Errorf("read: %w", err)}
	}
	if err := api.ValidateContext(pctx); err != nil {
		return nil, &LoadError{File: name, Err: fmt.Errorf("validate: %w", err)}
	}
	if pctx.PageCount < 1 {
		return nil, &LoadError{File: name, Err: ErrEmpty}
	}
	return &Document{Name: name, Data: data, PageCount: pctx.PageCount, ctx: pctx}, nil
}

// LoadAll loads every source. A failing file is reported in errs and left
// out of the result; the others still load.
func (l *Loader) LoadAll(ctx context.Context, sources []Source) ([]*MergeablePdf, []error) {
	docs := make([]*MergeablePdf, 0, len(sources))
	var errs []error
	for _, src := range sources {
		doc, err := l.loadSource(ctx, src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, NewMergeable(doc))
	}
	return docs, errs
}

func (l *Loader) loadSource(ctx context.Context, src Source) (*Document, error) {
	if src.Err != nil {
		return nil, src.Err
	}
	doc, err := l.Load(ctx, src.Name, src.Data)
	if err != nil {
		log.Warn().Str("file", src.Name).Err(err).Msg("pdf load failed")
		return nil, err
	}
	return doc, nil
}

// NewMergeable wraps a loaded document with a unique staging id.
func NewMergeable(doc *Document) *MergeablePdf {
	return &MergeablePdf{
		ID:         fmt.Sprintf("%s_%s", strings.TrimSuffix(doc.Name, ".pdf"), uuid.NewString()),
		Name:       doc.Name,
		TotalPages: doc.PageCount,
		Doc:        doc,
		Loaded:     true,
	}
}

// PageCount loads data just far enough to count its pages.
func PageCount(ctx context.Context, data []byte) (int, error) {
	doc, err := NewLoader().Load(ctx, "document.pdf", data)
	if err != nil {
		return 0, err
	}
	return doc.PageCount, nil
}
