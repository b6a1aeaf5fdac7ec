package partition

// RemoveAt remaps separators after the item at index i is removed from the
// list. A separator attached to the removed item disappears; separators
// after it shift down by one.
func RemoveAt(separators []int, i int) []int {
	out := make([]int, 0, len(separators))
	for _, sep := range separators {
		switch {
		case sep == i:
			continue
		case sep > i:
			out = append(out, sep-1)
		default:
			out = append(out, sep)
		}
	}
	return Normalize(out)
}

// Move remaps separators after the item at index from is moved to index to.
// The separator attached to the moved item follows it; separators of the
// items in between shift by one towards the vacated slot.
func Move(separators []int, from, to int) []int {
	out := make([]int, 0, len(separators))
	for _, sep := range separators {
		switch {
		case sep == from:
			out = append(out, to)
		case from < to && sep > from && sep <= to:
			out = append(out, sep-1)
		case from > to && sep >= to && sep < from:
			out = append(out, sep+1)
		default:
			out = append(out, sep)
		}
	}
	return Normalize(out)
}

// Toggle adds separator i if absent and removes it otherwise.
func Toggle(separators []int, i int) []int {
	for _, sep := range separators {
		if sep == i {
			return Remove(separators, i)
		}
	}
	return Add(separators, i)
}

func Add(separators []int, i int) []int {
	return Normalize(append(append([]int(nil), separators...), i))
}

func Remove(separators []int, i int) []int {
	out := make([]int, 0, len(separators))
	for _, sep := range separators {
		if sep != i {
			out = append(out, sep)
		}
	}
	return Normalize(out)
}
