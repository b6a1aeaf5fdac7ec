package pdf

import (
	"context"
	"fmt"
	"sync"

	"pdfdesk/internal/partition"
	"pdfdesk/internal/task"
)

// MergeSession is an ordered staging list of documents with separators
// between them. Reordering and removal keep separators attached to the
// document they follow.
type MergeSession struct {
	mu         sync.Mutex
	items      []*MergeablePdf
	separators []int
}

func NewMergeSession(items ...*MergeablePdf) *MergeSession {
	return &MergeSession{items: append([]*MergeablePdf(nil), items...)}
}

// Stage loads sources into a session in their given order. Separators
// index into sources: a source that fails to load is dropped the same way
// Remove drops a document, so later separators keep following the document
// they were placed after. Separators left outside [0, n-2] are ignored.
func (l *Loader) Stage(ctx context.Context, sources []Source, separators []int) (*MergeSession, []error) {
	seps := partition.Normalize(separators)
	items := make([]*MergeablePdf, 0, len(sources))
	var errs []error
	for _, src := range sources {
		doc, err := l.loadSource(ctx, src)
		if err != nil {
			errs = append(errs, err)
			seps = partition.RemoveAt(seps, len(items))
			continue
		}
		items = append(items, NewMergeable(doc))
	}

	s := NewMergeSession(items...)
	for _, sep := range seps {
		if s.checkSeparator(sep) == nil {
			s.separators = append(s.separators, sep)
		}
	}
	return s, errs
}

func (s *MergeSession) Add(items ...*MergeablePdf) {
	s.mu.Lock()
	s.items = append(s.items, items...)
	s.mu.Unlock()
}

// Remove drops the document with the given id. It reports whether it was present.
func (s *MergeSession) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.separators = partition.RemoveAt(s.separators, i)
			return true
		}
	}
	return false
}

// Move relocates the document at index from to index to.
func (s *MergeSession) Move(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d -> %d: index out of range [0,%d)", from, to, n)
	}
	if from == to {
		return nil
	}
	it := s.items[from]
	s.items = append(s.items[:from], s.items[from+1:]...)
	s.items = append(s.items[:to], append([]*MergeablePdf{it}, s.items[to:]...)...)
	s.separators = partition.Move(s.separators, from, to)
	return nil
}

// ToggleSeparator adds or removes the boundary after document i. Only
// indices in [0, n-2] can carry a separator.
func (s *MergeSession) ToggleSeparator(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSeparator(i); err != nil {
		return err
	}
	s.separators = partition.Toggle(s.separators, i)
	return nil
}

func (s *MergeSession) AddSeparator(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSeparator(i); err != nil {
		return err
	}
	s.separators = partition.Add(s.separators, i)
	return nil
}

func (s *MergeSession) RemoveSeparator(i int) {
	s.mu.Lock()
	s.separators = partition.Remove(s.separators, i)
	s.mu.Unlock()
}

func (s *MergeSession) checkSeparator(i int) error {
	if i < 0 || i > len(s.items)-2 {
		return fmt.Errorf("separator %d: must be between 0 and %d", i, len(s.items)-2)
	}
	return nil
}

func (s *MergeSession) Items() []*MergeablePdf {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*MergeablePdf(nil), s.items...)
}

func (s *MergeSession) Separators() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.separators...)
}

func (s *MergeSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// TotalPages sums the pages of every staged document.
func (s *MergeSession) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, it := range s.items {
		total += it.TotalPages
	}
	return total
}

// Groups previews how the staged documents would be grouped.
func (s *MergeSession) Groups() [][]*MergeablePdf {
	s.mu.Lock()
	defer s.mu.Unlock()
	return partition.GroupItems(s.items, s.separators)
}

// Config builds the run configuration from the current state. Separate
// files are requested whenever at least one separator is set.
func (s *MergeSession) Config(outputName string) task.MergeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return task.MergeConfig{
		OutputFileName:      outputName,
		CreateSeparateFiles: len(s.separators) > 0,
		SeparatorIndices:    append([]int(nil), s.separators...),
	}
}
