package pdf

import (
	"errors"
	"fmt"

	"pdfdesk/internal/partition"
)

var (
	ErrNotPDF      = errors.New("not a pdf document")
	ErrNotLoaded   = errors.New("document not loaded")
	ErrNoDocuments = errors.New("no documents to process")
	ErrEmpty       = errors.New("document has no pages")
)

// LoadError reports a source file that could not be opened.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PageError reports a page copy the PDF library rejected. It aborts the whole run.
type PageError struct {
	File  string
	Pages partition.PageRange
	Err   error
}

func (e *PageError) Error() string {
	if e.Pages.Start == e.Pages.End {
		return fmt.Sprintf("copy page %d of %s: %v", e.Pages.Start, e.File, e.Err)
	}
	return fmt.Sprintf("copy pages %s of %s: %v", e.Pages, e.File, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
