// Package partition turns boundary markers into contiguous groups.
//
// Two conventions live side by side and are deliberately not unified:
//
//   - merge: a separator i over an ordered list of N items means "items
//     0..i close a group, i+1 opens the next" (0-indexed, inclusive end).
//   - split: a split point p over pages 1..N means "page p opens a new
//     range" (1-indexed, inclusive ranges).
package partition

import (
	"fmt"
	"sort"
)

// Span is a half-open interval [Start, End) of item indices.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

// PageRange is an inclusive, 1-indexed range of pages.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r PageRange) Len() int { return r.End - r.Start + 1 }

func (r PageRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Pages lists the page numbers of the range in order.
func (r PageRange) Pages() []int {
	pages := make([]int, 0, r.Len())
	for p := r.Start; p <= r.End; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Normalize returns a sorted copy of points without duplicates.
func Normalize(points []int) []int {
	out := make([]int, 0, len(points))
	seen := make(map[int]struct{}, len(points))
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// Groups partitions n items by separator indices. Separators outside
// [0, n-1] are ignored and empty groups are never returned. With no
// effective separator the result is a single group covering everything.
func Groups(n int, separators []int) []Span {
	if n <= 0 {
		return nil
	}
	groups := make([]Span, 0, len(separators)+1)
	start := 0
	for _, sep := range Normalize(separators) {
		if sep < 0 || sep >= n {
			continue
		}
		if start <= sep {
			groups = append(groups, Span{Start: start, End: sep + 1})
			start = sep + 1
		}
	}
	if start < n {
		groups = append(groups, Span{Start: start, End: n})
	}
	mustCover(n, groups)
	return groups
}

// GroupItems applies Groups to items and returns the groups as sub-slices.
func GroupItems[T any](items []T, separators []int) [][]T {
	spans := Groups(len(items), separators)
	out := make([][]T, 0, len(spans))
	for _, s := range spans {
		out = append(out, items[s.Start:s.End])
	}
	return out
}

// SplitRanges partitions pages 1..totalPages at the given split points.
// Points below 1 are ignored; points beyond totalPages have no effect.
func SplitRanges(totalPages int, points []int) []PageRange {
	if totalPages < 1 {
		return nil
	}
	sorted := make([]int, 0, len(points))
	for _, p := range Normalize(points) {
		if p >= 1 {
			sorted = append(sorted, p)
		}
	}
	if len(sorted) == 0 {
		return []PageRange{{Start: 1, End: totalPages}}
	}

	ranges := make([]PageRange, 0, len(sorted)+1)
	if sorted[0] > 1 {
		ranges = append(ranges, PageRange{Start: 1, End: min(sorted[0]-1, totalPages)})
	}
	for i, start := range sorted {
		end := totalPages
		if i < len(sorted)-1 {
			end = sorted[i+1] - 1
		}
		end = min(end, totalPages)
		if start > end || start > totalPages {
			continue
		}
		ranges = append(ranges, PageRange{Start: start, End: end})
	}
	mustCoverPages(totalPages, ranges)
	return ranges
}

// mustCover panics if groups are not a contiguous, gap-free cover of [0, n).
func mustCover(n int, groups []Span) {
	next := 0
	for _, g := range groups {
		if g.Start != next || g.Len() <= 0 {
			panic(fmt.Sprintf("partition: invalid group %+v at offset %d of %d", g, next, n))
		}
		next = g.End
	}
	if next != n {
		panic(fmt.Sprintf("partition: groups cover %d of %d items", next, n))
	}
}

func mustCoverPages(totalPages int, ranges []PageRange) {
	next := 1
	for _, r := range ranges {
		if r.Start != next || r.Len() <= 0 {
			panic(fmt.Sprintf("partition: invalid range %+v at page %d of %d", r, next, totalPages))
		}
		next = r.End + 1
	}
	if next != totalPages+1 {
		panic(fmt.Sprintf("partition: ranges cover %d of %d pages", next-1, totalPages))
	}
}
