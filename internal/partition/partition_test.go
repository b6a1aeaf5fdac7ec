package partition

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, []int{1, 3, 7}, Normalize([]int{7, 3, 3, 1, 7}))
	assert.Empty(t, Normalize(nil))

	in := []int{2, 1}
	_ = Normalize(in)
	assert.Equal(t, []int{2, 1}, in, "input must not be mutated")
}

func TestGroups(t *testing.T) {
	cases := []struct {
		name string
		n    int
		seps []int
		want []Span
	}{
		{"no separators", 3, nil, []Span{{0, 3}}},
		{"after first", 3, []int{0}, []Span{{0, 1}, {1, 3}}},
		{"after each", 3, []int{0, 1}, []Span{{0, 1}, {1, 2}, {2, 3}}},
		{"last index drops empty tail", 3, []int{2}, []Span{{0, 3}}},
		{"out of range filtered", 3, []int{-1, 5, 1}, []Span{{0, 2}, {2, 3}}},
		{"duplicates", 4, []int{1, 1, 1}, []Span{{0, 2}, {2, 4}}},
		{"single item", 1, []int{0}, []Span{{0, 1}}},
		{"empty", 0, []int{0}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Groups(tc.n, tc.seps))
		})
	}
}

func TestGroupItemsCoversInputInOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(12)
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}
		var seps []int
		for i := 0; i <= n-2; i++ {
			if rng.Intn(2) == 0 {
				seps = append(seps, i)
			}
		}

		groups := GroupItems(items, seps)
		var flat []int
		for _, g := range groups {
			require.NotEmpty(t, g)
			flat = append(flat, g...)
		}
		require.Equal(t, items, flat)
		require.Len(t, groups, len(Normalize(seps))+1)
	}
}

func TestSplitRanges(t *testing.T) {
	cases := []struct {
		name   string
		total  int
		points []int
		want   []PageRange
	}{
		{"no points", 5, nil, []PageRange{{1, 5}}},
		{"two points", 10, []int{4, 7}, []PageRange{{1, 3}, {4, 6}, {7, 10}}},
		{"point at one", 5, []int{1}, []PageRange{{1, 5}}},
		{"point at one and three", 5, []int{1, 3}, []PageRange{{1, 2}, {3, 5}}},
		{"last page", 5, []int{5}, []PageRange{{1, 4}, {5, 5}}},
		{"beyond total inert", 5, []int{3, 9}, []PageRange{{1, 2}, {3, 5}}},
		{"only beyond total", 5, []int{9}, []PageRange{{1, 5}}},
		{"zero and negative ignored", 5, []int{0, -2, 2}, []PageRange{{1, 1}, {2, 5}}},
		{"single page", 1, []int{1}, []PageRange{{1, 1}}},
		{"empty document", 0, []int{1}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitRanges(tc.total, tc.points))
		})
	}
}

func TestSplitRangesCoverAllPages(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for iter := 0; iter < 500; iter++ {
		total := 1 + rng.Intn(30)
		points := make([]int, rng.Intn(6))
		for i := range points {
			points[i] = rng.Intn(total+5) - 2
		}

		next := 1
		for _, r := range SplitRanges(total, points) {
			require.Equal(t, next, r.Start, "ranges must be contiguous for %v over %d", points, total)
			require.LessOrEqual(t, r.Start, r.End)
			next = r.End + 1
		}
		require.Equal(t, total+1, next)
	}
}

func TestOrderAndDuplicatesDoNotMatter(t *testing.T) {
	assert.Equal(t, SplitRanges(10, []int{4}), SplitRanges(10, []int{4, 4}))
	assert.Equal(t, SplitRanges(10, []int{4, 7}), SplitRanges(10, []int{7, 4, 7}))
	assert.Equal(t, Groups(6, []int{1, 3}), Groups(6, []int{3, 1, 3, 1}))
}

func TestPageRange(t *testing.T) {
	r := PageRange{Start: 4, End: 6}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{4, 5, 6}, r.Pages())
	assert.Equal(t, "4-6", r.String())
	assert.Equal(t, "2", PageRange{Start: 2, End: 2}.String())
}
