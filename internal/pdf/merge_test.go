package pdf

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfdesk/internal/pdf/pdftest"
	"pdfdesk/internal/task"
)

type recorder struct {
	mu     sync.Mutex
	events []task.UnitEvent
}

func (r *recorder) OnUnit(e task.UnitEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) done() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.events))
	for i, e := range r.events {
		out[i] = e.Done
	}
	return out
}

// failingComposer rejects pages of one document.
type failingComposer struct {
	Composer
	file string
}

func (f failingComposer) Extract(doc *Document, pages []int) ([]byte, error) {
	if doc.Name == f.file {
		return nil, errors.New("invalid page object")
	}
	return f.Composer.Extract(doc, pages)
}

func mergeable(t *testing.T, name string, data []byte) *MergeablePdf {
	t.Helper()
	return NewMergeable(loadDoc(t, name, data))
}

func threeSinglePageDocs(t *testing.T) []*MergeablePdf {
	return []*MergeablePdf{
		mergeable(t, "one.pdf", pdftest.Doc(100, 1)),
		mergeable(t, "two.pdf", pdftest.Doc(200, 1)),
		mergeable(t, "three.pdf", pdftest.Doc(300, 1)),
	}
}

func TestMergeSeparateFilesByGroup(t *testing.T) {
	docs := threeSinglePageDocs(t)
	rec := &recorder{}

	outputs, err := NewMerger(nil).Merge(context.Background(), "t1", docs, task.MergeConfig{
		OutputFileName:      "report",
		CreateSeparateFiles: true,
		SeparatorIndices:    []int{0},
	}, rec)
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	assert.Equal(t, "report_group1.pdf", outputs[0].Name)
	assert.Equal(t, "report_group2.pdf", outputs[1].Name)
	assert.Equal(t, []float64{101}, pdftest.Widths(t, outputs[0].Data))
	assert.Equal(t, []float64{201, 301}, pdftest.Widths(t, outputs[1].Data))
	assert.Equal(t, []int{1, 2}, rec.done(), "one event per group")
}

func TestMergeSingleFileKeepsOrder(t *testing.T) {
	docs := []*MergeablePdf{
		mergeable(t, "a.pdf", pdftest.Doc(100, 2)),
		mergeable(t, "b.pdf", pdftest.Doc(200, 3)),
	}
	rec := &recorder{}

	outputs, err := NewMerger(nil).Merge(context.Background(), "t1", docs, task.MergeConfig{OutputFileName: "all"}, rec)
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	assert.Equal(t, "all.pdf", outputs[0].Name)
	assert.Equal(t, append(pdftest.Range(100, 1, 2), pdftest.Range(200, 1, 3)...), pdftest.Widths(t, outputs[0].Data))
	assert.Equal(t, []int{2, 5}, rec.done(), "page-level progress")
	for _, e := range rec.events {
		assert.Equal(t, 5, e.Total)
		assert.Equal(t, "t1", e.TaskID)
	}
}

func TestMergeIgnoresSeparatorsWithoutSeparateFiles(t *testing.T) {
	outputs, err := NewMerger(nil).Merge(context.Background(), "t1", threeSinglePageDocs(t), task.MergeConfig{
		OutputFileName:   "x",
		SeparatorIndices: []int{0, 1},
	}, nil)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, []float64{101, 201, 301}, pdftest.Widths(t, outputs[0].Data))
}

func TestMergeDefaultsOutputName(t *testing.T) {
	outputs, err := NewMerger(nil).Merge(context.Background(), "t1", threeSinglePageDocs(t)[:1], task.MergeConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMergeName+".pdf", outputs[0].Name)
}

func TestMergeRejectsEmptyAndUnloaded(t *testing.T) {
	_, err := NewMerger(nil).Merge(context.Background(), "t1", nil, task.MergeConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = NewMerger(nil).Merge(context.Background(), "t1", []*MergeablePdf{{ID: "x", Name: "x.pdf"}}, task.MergeConfig{}, nil)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestMergeAbortsOnPageError(t *testing.T) {
	merger := NewMerger(failingComposer{Composer: NewPDFCPU(), file: "two.pdf"})

	outputs, err := merger.Merge(context.Background(), "t1", threeSinglePageDocs(t), task.MergeConfig{
		CreateSeparateFiles: true,
		SeparatorIndices:    []int{0},
	}, nil)
	require.Error(t, err)
	assert.Nil(t, outputs, "partial output must not be returned")

	var pageErr *PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, "two.pdf", pageErr.File)
	assert.Contains(t, err.Error(), "two.pdf")
}

func TestMergeStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMerger(nil).Merge(ctx, "t1", threeSinglePageDocs(t), task.MergeConfig{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
