// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import "iter"

// Slice is the borrowed strategy over an existing Go slice. Converting
// a slice to Slice does not copy; the caller keeps ownership of the
// backing array and must not mutate it while the view is in use.
type Slice[T any] []T

// Len returns the number of elements.
func (s Slice[T]) Len() int { return len(s) }

// At returns the element at index i. Out-of-range indexing panics with
// the runtime's index error.
func (s Slice[T]) At(i int) T { return s[i] }

// All iterates over (index, element) pairs.
func (s Slice[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, item := range s {
			if !yield(i, item) {
				return
			}
		}
	}
}
