// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"
	"iter"

	"github.com/bureau-foundation/capdl/lib/container"
)

// view is the borrowed container strategy over a table of fixed-size
// records in an image. Records are decoded on access.
type view[T any] struct {
	r      reader
	offset uint64
	count  int
	stride uint64
	decode func(r reader, offset uint64) (T, error)
}

func newView[T any](r reader, offset uint64, count int, recordWords uint64, decode func(reader, uint64) (T, error)) view[T] {
	return view[T]{r: r, offset: offset, count: count, stride: recordWords * wordSize, decode: decode}
}

func (v view[T]) Len() int { return v.count }

func (v view[T]) decodeAt(i int) (T, error) {
	return v.decode(v.r, v.offset+uint64(i)*v.stride)
}

// At decodes record i. The index is a precondition; a decode failure
// means the image changed after Open verified it.
func (v view[T]) At(i int) T {
	if i < 0 || i >= v.count {
		panic(&container.OutOfRangeError{Index: i, Length: v.count})
	}
	item, err := v.decodeAt(i)
	if err != nil {
		panic(fmt.Sprintf("image: verified record %d no longer decodes: %v", i, err))
	}
	return item
}

func (v view[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := range v.count {
			if !yield(i, v.At(i)) {
				return
			}
		}
	}
}

// verify decodes every record once.
func (v view[T]) verify() error {
	for i := range v.count {
		if _, err := v.decodeAt(i); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
