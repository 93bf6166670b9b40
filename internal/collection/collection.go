// Package collection holds the list utilities the mapping engine diffs and
// groups records with.
//
// Comparisons use ir.KeyOf over a column subset, so keys compare loosely
// (Int(7) matches String("7")) the same way everywhere.
package collection

import (
	"fmt"

	"github.com/roach88/nestmap/internal/ir"
)

// First returns the first element for which match returns true.
func First[T any](items []T, match func(T) bool) (T, bool) {
	for _, item := range items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Groups is an insertion-ordered set of buckets.
type Groups[T any] struct {
	order   []string
	buckets map[string][]T
}

// Keys returns bucket keys in order of first appearance.
func (g *Groups[T]) Keys() []string {
	return g.order
}

// Get returns the bucket for key (nil when absent).
func (g *Groups[T]) Get(key string) []T {
	return g.buckets[key]
}

// Len returns the number of buckets.
func (g *Groups[T]) Len() int {
	return len(g.order)
}

// Group splits items into buckets keyed by keyFn, preserving both bucket
// order and element order.
func Group[T any](items []T, keyFn func(T) (string, error)) (*Groups[T], error) {
	g := &Groups[T]{buckets: make(map[string][]T)}
	for i, item := range items {
		key, err := keyFn(item)
		if err != nil {
			return nil, fmt.Errorf("group item %d: %w", i, err)
		}
		if _, ok := g.buckets[key]; !ok {
			g.order = append(g.order, key)
		}
		g.buckets[key] = append(g.buckets[key], item)
	}
	return g, nil
}

// GroupByColumns groups records by the composite key of columns.
func GroupByColumns(records []*ir.Record, columns ...string) (*Groups[*ir.Record], error) {
	return Group(records, func(r *ir.Record) (string, error) {
		return ir.KeyOf(r, columns)
	})
}

// DiffByKeys returns the records of a for which no record of b shares the
// same values for keys. Order of a is preserved.
func DiffByKeys(a, b []*ir.Record, keys []string) ([]*ir.Record, error) {
	index, err := keySet(b, keys)
	if err != nil {
		return nil, err
	}
	var out []*ir.Record
	for _, rec := range a {
		k, err := ir.KeyOf(rec, keys)
		if err != nil {
			return nil, err
		}
		if !index[k] {
			out = append(out, rec)
		}
	}
	return out, nil
}

// IntersectByKeys returns the records of a for which some record of b
// shares the same values for keys. Order of a is preserved and
// duplicates in a are kept.
func IntersectByKeys(a, b []*ir.Record, keys []string) ([]*ir.Record, error) {
	index, err := keySet(b, keys)
	if err != nil {
		return nil, err
	}
	var out []*ir.Record
	for _, rec := range a {
		k, err := ir.KeyOf(rec, keys)
		if err != nil {
			return nil, err
		}
		if index[k] {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Match pairs a new record with the original sharing its key.
type Match struct {
	New      *ir.Record
	Original *ir.Record
}

// MatchByKeys pairs records of next with the first record of original
// sharing their key. When next holds several records with the same key
// only the last one is paired; pairs are ordered by the position of that
// surviving record.
func MatchByKeys(next, original []*ir.Record, keys []string) ([]Match, error) {
	originals := make(map[string]*ir.Record, len(original))
	for _, rec := range original {
		k, err := ir.KeyOf(rec, keys)
		if err != nil {
			return nil, err
		}
		if _, ok := originals[k]; !ok {
			originals[k] = rec
		}
	}

	nextKeys := make([]string, len(next))
	last := make(map[string]int, len(next))
	for i, rec := range next {
		k, err := ir.KeyOf(rec, keys)
		if err != nil {
			return nil, err
		}
		nextKeys[i] = k
		last[k] = i
	}

	var out []Match
	for i, rec := range next {
		k := nextKeys[i]
		orig, ok := originals[k]
		if !ok || last[k] != i {
			continue
		}
		out = append(out, Match{New: rec, Original: orig})
	}
	return out, nil
}

// Partition splits records into those present only in next (insert),
// those present only in original (delete) and matched pairs (update),
// all compared by keys.
func Partition(next, original []*ir.Record, keys []string) (insert, remove []*ir.Record, update []Match, err error) {
	if insert, err = DiffByKeys(next, original, keys); err != nil {
		return nil, nil, nil, err
	}
	if remove, err = DiffByKeys(original, next, keys); err != nil {
		return nil, nil, nil, err
	}
	if update, err = MatchByKeys(next, original, keys); err != nil {
		return nil, nil, nil, err
	}
	return insert, remove, update, nil
}

func keySet(records []*ir.Record, keys []string) (map[string]bool, error) {
	set := make(map[string]bool, len(records))
	for _, rec := range records {
		k, err := ir.KeyOf(rec, keys)
		if err != nil {
			return nil, err
		}
		set[k] = true
	}
	return set, nil
}
