package pdf

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"pdfdesk/internal/partition"
	"pdfdesk/internal/task"
)

const DefaultMergeName = "merged-document"

// Merger concatenates documents into one or more outputs.
type Merger struct {
	composer Composer
}

func NewMerger(c Composer) *Merger {
	if c == nil {
		c = NewPDFCPU()
	}
	return &Merger{composer: c}
}

// Merge copies every page of docs, in order, into new documents. Without
// separate files (or without an effective separator) a single output named
// {name}.pdf is produced and progress is reported per page. Otherwise one
// output per group is produced, named {name}_group{N}.pdf, with progress
// reported per group.
func (m *Merger) Merge(ctx context.Context, taskID string, docs []*MergeablePdf, cfg task.MergeConfig, listener task.UnitListener) ([]Output, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	for _, d := range docs {
		if !d.Loaded || d.Doc == nil {
			return nil, fmt.Errorf("%s: %w", d.Name, ErrNotLoaded)
		}
	}
	name := cfg.OutputFileName
	if name == "" {
		name = DefaultMergeName
	}

	groups := partition.GroupItems(docs, cfg.SeparatorIndices)
	if !cfg.CreateSeparateFiles || len(groups) < 2 {
		data, err := m.single(ctx, taskID, docs, listener)
		if err != nil {
			return nil, err
		}
		return []Output{{Name: name + ".pdf", Data: data}}, nil
	}

	outputs := make([]Output, 0, len(groups))
	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := m.combine(group)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, Output{Name: fmt.Sprintf("%s_group%d.pdf", name, i+1), Data: data})
		emit(listener, task.UnitEvent{
			TaskID:  taskID,
			Done:    i + 1,
			Total:   len(groups),
			Step:    fmt.Sprintf("group %d", i+1),
			Message: fmt.Sprintf("%d/%d groups done", i+1, len(groups)),
		})
	}
	log.Debug().Str("task_id", taskID).Int("groups", len(groups)).Msg("merge finished")
	return outputs, nil
}

func (m *Merger) single(ctx context.Context, taskID string, docs []*MergeablePdf, listener task.UnitListener) ([]byte, error) {
	total := 0
	for _, d := range docs {
		total += d.TotalPages
	}
	parts := make([][]byte, 0, len(docs))
	copied := 0
	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := m.copyAll(d)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
		copied += d.TotalPages
		emit(listener, task.UnitEvent{
			TaskID:  taskID,
			Done:    copied,
			Total:   total,
			Step:    d.Name,
			Message: fmt.Sprintf("%d/%d documents done", i+1, len(docs)),
		})
	}
	return m.concat(parts)
}

func (m *Merger) combine(group []*MergeablePdf) ([]byte, error) {
	parts := make([][]byte, 0, len(group))
	for _, d := range group {
		part, err := m.copyAll(d)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return m.concat(parts)
}

func (m *Merger) copyAll(d *MergeablePdf) ([]byte, error) {
	r := partition.PageRange{Start: 1, End: d.TotalPages}
	data, err := m.composer.Extract(d.Doc, r.Pages())
	if err != nil {
		return nil, &PageError{File: d.Name, Pages: r, Err: err}
	}
	return data, nil
}

func (m *Merger) concat(parts [][]byte) ([]byte, error) {
	data, err := m.composer.Concat(parts)
	if err != nil {
		return nil, fmt.Errorf("join documents: %w", err)
	}
	return data, nil
}

func emit(listener task.UnitListener, e task.UnitEvent) {
	if listener != nil {
		listener.OnUnit(e)
	}
}
