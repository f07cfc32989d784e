// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"iter"
	"slices"
)

// Vec is the owned, growable strategy. The zero value is an empty Vec
// ready for use. Vec must be used through a pointer so that appends are
// visible to every holder of the container.
type Vec[T any] struct {
	items []T
}

// NewVec returns a Vec holding a copy of items.
func NewVec[T any](items ...T) *Vec[T] {
	return &Vec[T]{items: slices.Clone(items)}
}

// Len returns the number of elements.
func (v *Vec[T]) Len() int { return len(v.items) }

// Get returns the element at index i, or an [*OutOfRangeError].
func (v *Vec[T]) Get(i int) (T, error) {
	if i < 0 || i >= len(v.items) {
		var zero T
		return zero, &OutOfRangeError{Index: i, Length: len(v.items)}
	}
	return v.items[i], nil
}

// At returns the element at index i. It panics with an
// [*OutOfRangeError] when i is out of range.
func (v *Vec[T]) At(i int) T {
	item, err := v.Get(i)
	if err != nil {
		panic(err)
	}
	return item
}

// Set replaces the element at index i.
func (v *Vec[T]) Set(i int, item T) error {
	if i < 0 || i >= len(v.items) {
		return &OutOfRangeError{Index: i, Length: len(v.items)}
	}
	v.items[i] = item
	return nil
}

// Append adds items at the end.
func (v *Vec[T]) Append(items ...T) {
	v.items = append(v.items, items...)
}

// Insert adds items before index i. i == Len appends.
func (v *Vec[T]) Insert(i int, items ...T) error {
	if i < 0 || i > len(v.items) {
		return &OutOfRangeError{Index: i, Length: len(v.items)}
	}
	v.items = slices.Insert(v.items, i, items...)
	return nil
}

// All iterates over (index, element) pairs. Elements appended during
// iteration are not visited.
func (v *Vec[T]) All() iter.Seq2[int, T] {
	items := v.items
	return func(yield func(int, T) bool) {
		for i, item := range items {
			if !yield(i, item) {
				return
			}
		}
	}
}

// View returns a borrowed view of the current contents. The view shares
// the backing array; later appends to v may or may not be visible in it.
func (v *Vec[T]) View() Slice[T] {
	return Slice[T](v.items)
}
