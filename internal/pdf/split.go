package pdf

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"pdfdesk/internal/partition"
	"pdfdesk/internal/task"
)

// Splitter cuts one document into page ranges.
type Splitter struct {
	composer Composer
}

func NewSplitter(c Composer) *Splitter {
	if c == nil {
		c = NewPDFCPU()
	}
	return &Splitter{composer: c}
}

// Split produces one output per range computed from the split points, named
// {base}_part{N}.pdf. Progress is reported per range.
func (s *Splitter) Split(ctx context.Context, taskID string, doc *Document, cfg task.SplitConfig, listener task.UnitListener) ([]Output, error) {
	if doc == nil {
		return nil, ErrNotLoaded
	}
	base := cfg.BaseFileName
	if base == "" {
		base = Stem(doc.Name)
	}

	ranges := partition.SplitRanges(doc.PageCount, cfg.SplitPoints)
	outputs := make([]Output, 0, len(ranges))
	for i, r := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.composer.Extract(doc, r.Pages())
		if err != nil {
			return nil, &PageError{File: doc.Name, Pages: r, Err: err}
		}
		outputs = append(outputs, Output{Name: fmt.Sprintf("%s_part%d.pdf", base, i+1), Data: data})
		emit(listener, task.UnitEvent{
			TaskID:  taskID,
			Done:    i + 1,
			Total:   len(ranges),
			Step:    "pages " + r.String(),
			Message: fmt.Sprintf("%d/%d files done", i+1, len(ranges)),
		})
	}
	return outputs, nil
}

// Stem returns the file name without directory and extension.
func Stem(name string) string {
	base := filepath.Base(name)
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" && stem != "." {
		return stem
	}
	return "document"
}
