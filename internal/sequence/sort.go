// Package sequence provides deterministic ordering and search over record
// snapshots.
package sequence

// Compare returns a negative number when a sorts before b, zero when they are
// equal, and a positive number otherwise.
type Compare[T any] func(a, b T) int

// StableSort returns a sorted copy of items using a top-down merge sort.
// Elements that compare equal keep their input order.
func StableSort[T any](items []T, cmp Compare[T]) []T {
	out := make([]T, len(items))
	copy(out, items)
	if len(out) < 2 {
		return out
	}
	buf := make([]T, len(out))
	mergeSort(out, buf, cmp)
	return out
}

func mergeSort[T any](items, buf []T, cmp Compare[T]) {
	if len(items) < 2 {
		return
	}
	mid := len(items) / 2
	mergeSort(items[:mid], buf[:mid], cmp)
	mergeSort(items[mid:], buf[mid:], cmp)

	// Already ordered halves need no merge.
	if cmp(items[mid-1], items[mid]) <= 0 {
		return
	}

	copy(buf, items)
	i, j, k := 0, mid, 0
	for i < mid && j < len(items) {
		// <= takes from the left run on ties, which is what keeps the sort stable.
		if cmp(buf[i], buf[j]) <= 0 {
			items[k] = buf[i]
			i++
		} else {
			items[k] = buf[j]
			j++
		}
		k++
	}
	for i < mid {
		items[k] = buf[i]
		i++
		k++
	}
	for j < len(items) {
		items[k] = buf[j]
		j++
		k++
	}
}

// Reverse wraps cmp so that it orders descending.
func Reverse[T any](cmp Compare[T]) Compare[T] {
	return func(a, b T) int { return cmp(b, a) }
}

// Then chains comparators; later ones only break ties left by earlier ones.
func Then[T any](cmps ...Compare[T]) Compare[T] {
	return func(a, b T) int {
		for _, c := range cmps {
			if r := c(a, b); r != 0 {
				return r
			}
		}
		return 0
	}
}
