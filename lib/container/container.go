// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"
	"iter"
)

// Container is an ordered, indexable, read-only sequence.
type Container[T any] interface {
	// Len returns the number of elements.
	Len() int

	// At returns the element at index i. Indexing out of range panics;
	// callers that cannot guarantee the bound should check Len first
	// or use [Vec.Get] on owned containers.
	At(i int) T

	// All iterates over (index, element) pairs in order. The sequence
	// is finite and may be ranged over any number of times.
	All() iter.Seq2[int, T]
}

// Growable is the narrower interface implemented only by the owned
// strategy.
type Growable[T any] interface {
	Container[T]

	// Append adds items at the end.
	Append(items ...T)

	// Insert adds items before index i. An index equal to Len appends.
	Insert(i int, items ...T) error
}

// OutOfRangeError reports an index outside [0, Len).
type OutOfRangeError struct {
	Index  int
	Length int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Length)
}

// Len returns c.Len(), treating a nil container as empty.
func Len[T any](c Container[T]) int {
	if c == nil {
		return 0
	}
	return c.Len()
}

// Items iterates over the elements of c without indices. A nil
// container yields nothing.
func Items[T any](c Container[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		if c == nil {
			return
		}
		for _, item := range c.All() {
			if !yield(item) {
				return
			}
		}
	}
}

// Entries iterates over (index, element) pairs of c. A nil container
// yields nothing.
func Entries[T any](c Container[T]) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		if c == nil {
			return
		}
		for i, item := range c.All() {
			if !yield(i, item) {
				return
			}
		}
	}
}

// Collect copies the elements of c into a new slice. A nil or empty
// container yields a nil slice.
func Collect[T any](c Container[T]) []T {
	length := Len(c)
	if length == 0 {
		return nil
	}
	out := make([]T, 0, length)
	for item := range Items(c) {
		out = append(out, item)
	}
	return out
}

// Empty returns an empty borrowed container.
func Empty[T any]() Container[T] {
	return Slice[T](nil)
}
