// Package collections holds the in-memory structures a scanning session
// keeps for the lifetime of one roster snapshot.
package collections

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultIndexCapacity = 16
	maxLoadFactor        = 0.75
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Entry is a key/value pair returned by KeyedIndex.Entries.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// KeyedIndex is a bucketed hash map with separate chaining. It doubles its
// bucket count once the population passes 75% of capacity.
//
// A KeyedIndex is not safe for concurrent mutation; callers publish a fully
// built index and treat it as read-only afterwards.
type KeyedIndex[K comparable, V any] struct {
	buckets [][]entry[K, V]
	size    int
}

// NewKeyedIndex creates an index with at least the given number of buckets.
func NewKeyedIndex[K comparable, V any](capacity int) *KeyedIndex[K, V] {
	if capacity <= 0 {
		capacity = defaultIndexCapacity
	}
	return &KeyedIndex[K, V]{buckets: make([][]entry[K, V], capacity)}
}

// Set inserts or overwrites the value stored under key.
func (ix *KeyedIndex[K, V]) Set(key K, value V) {
	b := ix.bucketFor(key, len(ix.buckets))
	for i := range ix.buckets[b] {
		if ix.buckets[b][i].key == key {
			ix.buckets[b][i].value = value
			return
		}
	}
	ix.buckets[b] = append(ix.buckets[b], entry[K, V]{key: key, value: value})
	ix.size++

	if float64(ix.size) > float64(len(ix.buckets))*maxLoadFactor {
		ix.grow()
	}
}

// Get returns the value for key and whether it was present.
func (ix *KeyedIndex[K, V]) Get(key K) (V, bool) {
	b := ix.bucketFor(key, len(ix.buckets))
	for _, e := range ix.buckets[b] {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// Has reports whether key is present.
func (ix *KeyedIndex[K, V]) Has(key K) bool {
	_, ok := ix.Get(key)
	return ok
}

// Delete removes key and reports whether anything was removed.
func (ix *KeyedIndex[K, V]) Delete(key K) bool {
	b := ix.bucketFor(key, len(ix.buckets))
	bucket := ix.buckets[b]
	for i, e := range bucket {
		if e.key == key {
			last := len(bucket) - 1
			bucket[i] = bucket[last]
			bucket[last] = entry[K, V]{}
			ix.buckets[b] = bucket[:last]
			ix.size--
			return true
		}
	}
	return false
}

// Len returns the number of stored entries.
func (ix *KeyedIndex[K, V]) Len() int { return ix.size }

// Capacity returns the current bucket count.
func (ix *KeyedIndex[K, V]) Capacity() int { return len(ix.buckets) }

// Values returns a snapshot of all values in no particular order.
func (ix *KeyedIndex[K, V]) Values() []V {
	out := make([]V, 0, ix.size)
	for _, bucket := range ix.buckets {
		for _, e := range bucket {
			out = append(out, e.value)
		}
	}
	return out
}

// Entries returns a snapshot of all pairs in no particular order.
func (ix *KeyedIndex[K, V]) Entries() []Entry[K, V] {
	out := make([]Entry[K, V], 0, ix.size)
	for _, bucket := range ix.buckets {
		for _, e := range bucket {
			out = append(out, Entry[K, V]{Key: e.key, Value: e.value})
		}
	}
	return out
}

func (ix *KeyedIndex[K, V]) grow() {
	next := make([][]entry[K, V], len(ix.buckets)*2)
	for _, bucket := range ix.buckets {
		for _, e := range bucket {
			b := ix.bucketFor(e.key, len(next))
			next[b] = append(next[b], e)
		}
	}
	ix.buckets = next
}

func (ix *KeyedIndex[K, V]) bucketFor(key K, n int) int {
	return int(xxhash.Sum64String(keyString(key)) % uint64(n))
}

func keyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case int64:
		return strconv.FormatInt(k, 10)
	case int:
		return strconv.Itoa(k)
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprintf("%v", k)
	}
}
