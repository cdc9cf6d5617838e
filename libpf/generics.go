// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/request-profiler/libpf"

import (
	"cmp"
	"slices"
)

// Set is a convenience alias for a map with a `Void` key.
type Set[T comparable] map[T]Void

// Has reports whether item is part of the set. A nil set contains nothing.
func (s Set[T]) Has(item T) bool {
	_, ok := s[item]
	return ok
}

// SliceToSet creates a set from a slice, deduplicating it.
func SliceToSet[T comparable](s []T) Set[T] {
	set := make(Set[T], len(s))
	for _, item := range s {
		set[item] = Void{}
	}
	return set
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
