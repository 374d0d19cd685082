// Package shard partitions an ordered list into a bounded number of
// contiguous, size-balanced groups.
package shard

import (
	"fmt"

	"github.com/hpungsan/chatsplit/internal/errors"
)

// Sizes returns the partition sizes Split would produce for n items.
// Sizes differ by at most one and larger partitions come first.
func Sizes(n, maxParts int) ([]int, error) {
	if maxParts < 1 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("max_parts must be at least 1, got %d", maxParts))
	}
	if n <= 0 {
		return nil, nil
	}

	k := min(maxParts, n)
	base, extra := n/k, n%k

	sizes := make([]int, k)
	for i := range sizes {
		sizes[i] = base
		if i < extra {
			sizes[i]++
		}
	}
	return sizes, nil
}

// Split divides items into min(maxParts, len(items)) non-empty contiguous
// partitions in original order. No item is split or reordered. An empty
// input yields no partitions.
//
// Partitions share the backing array of items but are capacity-clipped, so
// appending to one never overwrites the next.
func Split[T any](items []T, maxParts int) ([][]T, error) {
	sizes, err := Sizes(len(items), maxParts)
	if err != nil {
		return nil, err
	}
	if len(sizes) == 0 {
		return nil, nil
	}

	parts := make([][]T, 0, len(sizes))
	start := 0
	for _, size := range sizes {
		end := start + size
		parts = append(parts, items[start:end:end])
		start = end
	}
	return parts, nil
}
