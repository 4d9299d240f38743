package sequence

// The search functions require items to be sorted by the same comparator.
// Results on unsorted input are meaningless.

// InsertionPoint returns the smallest index at which target could be inserted
// while keeping items sorted.
func InsertionPoint[T any](items []T, target T, cmp Compare[T]) int {
	lo, hi := 0, len(items)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if cmp(items[mid], target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the smallest index whose element sorts after target.
func upperBound[T any](items []T, target T, cmp Compare[T]) int {
	lo, hi := 0, len(items)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if cmp(items[mid], target) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// BinarySearch returns the index of some element equal to target, or -1.
func BinarySearch[T any](items []T, target T, cmp Compare[T]) int {
	lo, hi := 0, len(items)-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		switch r := cmp(items[mid], target); {
		case r == 0:
			return mid
		case r < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}

// FirstOccurrence returns the lowest index of an element equal to target, or -1.
func FirstOccurrence[T any](items []T, target T, cmp Compare[T]) int {
	i := InsertionPoint(items, target, cmp)
	if i < len(items) && cmp(items[i], target) == 0 {
		return i
	}
	return -1
}

// LastOccurrence returns the highest index of an element equal to target, or -1.
func LastOccurrence[T any](items []T, target T, cmp Compare[T]) int {
	i := upperBound(items, target, cmp) - 1
	if i >= 0 && cmp(items[i], target) == 0 {
		return i
	}
	return -1
}

// Contains reports whether an element equal to target is present.
func Contains[T any](items []T, target T, cmp Compare[T]) bool {
	return BinarySearch(items, target, cmp) >= 0
}
