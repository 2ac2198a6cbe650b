package deduplication

import (
	"fmt"
	"sort"
)

// Duplicates maps a duplicate article id to the id of its canonical article
type Duplicates map[int64]int64

// Keys returns the duplicate ids in ascending order
func (d Duplicates) Keys() []int64 {
	keys := make([]int64, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Has reports whether id is already recorded as a duplicate
func (d Duplicates) Has(id int64) bool {
	_, ok := d[id]
	return ok
}

// Flatten rewrites every entry so it points at the end of its chain: A→B, B→C becomes A→C, B→C.
func (d Duplicates) Flatten() error {
	resolved := make(map[int64]int64, len(d))
	for dup, canonical := range d {
		seen := map[int64]bool{dup: true}
		for {
			next, ok := d[canonical]
			if !ok {
				break
			}
			if seen[canonical] {
				return fmt.Errorf("%w: cycle through article %d", ErrDanglingCanonical, canonical)
			}
			seen[canonical] = true
			canonical = next
		}
		resolved[dup] = canonical
	}
	for dup, canonical := range resolved {
		d[dup] = canonical
	}
	return nil
}

// Validate checks that no canonical id is itself a duplicate and that ids are persisted ones
func (d Duplicates) Validate() error {
	for _, dup := range d.Keys() {
		canonical := d[dup]
		if dup <= 0 || canonical <= 0 {
			return fmt.Errorf("%w: mapping %d -> %d uses an unpersisted id", ErrInvalidInput, dup, canonical)
		}
		if dup == canonical {
			return fmt.Errorf("%w: article %d points at itself", ErrDanglingCanonical, dup)
		}
		if d.Has(canonical) {
			return fmt.Errorf("%w: article %d points at %d which is a duplicate of %d",
				ErrDanglingCanonical, dup, canonical, d[canonical])
		}
	}
	return nil
}
