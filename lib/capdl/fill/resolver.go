// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fill

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/klauspost/compress/flate"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/container"
	"github.com/bureau-foundation/capdl/lib/contentstore"
)

var (
	// ErrContentNotFound is returned when a digest is missing from the
	// content store. It is the store's own not-found sentinel, so
	// errors from either layer match.
	ErrContentNotFound = contentstore.ErrNotFound

	// ErrBootInfoUnavailable is wrapped by [*BootInfoError].
	ErrBootInfoUnavailable = errors.New("boot info not provided by kernel")

	// ErrUnresolvedFile is returned for file references, which must be
	// replaced before a spec leaves the build host.
	ErrUnresolvedFile = errors.New("file content not resolved at build time")

	// ErrNoStore is returned for digest content when the resolver has
	// no content store.
	ErrNoStore = errors.New("no content store configured")
)

// LengthMismatchError reports content whose size differs from the fill
// entry's declared length.
type LengthMismatchError struct {
	Source   capdl.ContentKind
	Declared uint64
	Actual   uint64

	// Exceeded is set when the source produced more than Declared
	// bytes; Actual is then a lower bound.
	Exceeded bool
}

func (e *LengthMismatchError) Error() string {
	if e.Exceeded {
		return fmt.Sprintf("%s content longer than declared length %d", e.Source, e.Declared)
	}
	return fmt.Sprintf("%s content is %d bytes, declared length %d", e.Source, e.Actual, e.Declared)
}

// BootInfoError reports a boot-information block the kernel did not
// provide.
type BootInfoError struct {
	ID capdl.BootInfoID
}

func (e *BootInfoError) Error() string {
	return fmt.Sprintf("boot info %s: %s", e.ID, ErrBootInfoUnavailable)
}

func (e *BootInfoError) Unwrap() error {
	return ErrBootInfoUnavailable
}

// Resolver produces fill bytes. The zero value resolves inline and
// deflated content only.
type Resolver struct {
	// Store resolves digest content.
	Store contentstore.Store

	// BootInfo holds the boot-information blocks the kernel provided,
	// keyed by identifier.
	BootInfo map[capdl.BootInfoID][]byte
}

// Resolve returns exactly entry.Length bytes for entry.
func (r *Resolver) Resolve(entry capdl.FillEntry) ([]byte, error) {
	switch content := entry.Content.(type) {
	case capdl.BytesContent:
		if err := checkLength(capdl.ContentBytes, entry.Length, uint64(len(content.Data))); err != nil {
			return nil, err
		}
		return content.Data, nil

	case capdl.DigestContent:
		if r.Store == nil {
			return nil, fmt.Errorf("digest %s: %w", content.Digest, ErrNoStore)
		}
		data, err := r.Store.Lookup(content.Digest)
		if err != nil {
			return nil, fmt.Errorf("digest %s: %w", content.Digest, err)
		}
		if err := checkLength(capdl.ContentDigest, entry.Length, uint64(len(data))); err != nil {
			return nil, err
		}
		return data, nil

	case capdl.DeflatedContent:
		return Inflate(content.Data, entry.Length)

	case capdl.BootInfoContent:
		block, ok := r.BootInfo[content.ID]
		if !ok {
			return nil, &BootInfoError{ID: content.ID}
		}
		available := uint64(0)
		if content.Offset <= uint64(len(block)) {
			available = uint64(len(block)) - content.Offset
		}
		if available < entry.Length {
			return nil, &LengthMismatchError{Source: capdl.ContentBootInfo, Declared: entry.Length, Actual: available}
		}
		return block[content.Offset : content.Offset+entry.Length], nil

	case capdl.FileContent:
		return nil, fmt.Errorf("%s: %w", content.Path, ErrUnresolvedFile)

	case nil:
		return nil, errors.New("fill entry has no content")
	}
	return nil, fmt.Errorf("unsupported content kind %s", entry.Content.ContentKind())
}

func checkLength(source capdl.ContentKind, declared, actual uint64) error {
	if declared != actual {
		return &LengthMismatchError{Source: source, Declared: declared, Actual: actual}
	}
	return nil
}

// Inflate decompresses a raw DEFLATE stream that must produce exactly
// length bytes.
func Inflate(compressed []byte, length uint64) ([]byte, error) {
	reader := flate.NewReader(bytes.NewReader(compressed))
	defer reader.Close()

	// Read one byte past the declared length to detect overlong
	// streams without inflating them completely.
	data, err := io.ReadAll(io.LimitReader(reader, int64(length)+1))
	if err != nil {
		return nil, fmt.Errorf("inflating fill content: %w", err)
	}
	if uint64(len(data)) > length {
		return nil, &LengthMismatchError{Source: capdl.ContentDeflated, Declared: length, Actual: uint64(len(data)), Exceeded: true}
	}
	if err := checkLength(capdl.ContentDeflated, length, uint64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

// Deflate compresses data as a raw DEFLATE stream at the best
// compression level.
func Deflate(data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	writer, err := flate.NewWriter(&buffer, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating deflate writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("deflating fill content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("deflating fill content: %w", err)
	}
	return buffer.Bytes(), nil
}

// WriteTo resolves entry and copies the result into frame at the
// entry's offset. frame is the object's whole backing memory.
func (r *Resolver) WriteTo(entry capdl.FillEntry, frame []byte) error {
	end, ok := entry.End()
	if !ok || end > uint64(len(frame)) {
		return fmt.Errorf("fill [%#x, +%#x) outside %#x-byte frame", entry.Offset, entry.Length, len(frame))
	}
	data, err := r.Resolve(entry)
	if err != nil {
		return err
	}
	copy(frame[entry.Offset:end], data)
	return nil
}

// Resolved pairs a fill entry with its bytes.
type Resolved struct {
	Entry capdl.FillEntry
	Data  []byte
}

// ResolveObject resolves the fill entries of named in order. Iteration
// stops after the first error, which is yielded with the entry that
// caused it.
func (r *Resolver) ResolveObject(named capdl.NamedObject) iter.Seq2[Resolved, error] {
	return func(yield func(Resolved, error) bool) {
		for entry := range container.Items(named.Fill) {
			data, err := r.Resolve(entry)
			if err != nil {
				yield(Resolved{Entry: entry}, fmt.Errorf("fill at %#x: %w", entry.Offset, err))
				return
			}
			if !yield(Resolved{Entry: entry, Data: data}, nil) {
				return
			}
		}
	}
}

// FillFrame writes every fill entry of named into frame. Bytes not
// covered by a fill entry are left untouched.
func (r *Resolver) FillFrame(named capdl.NamedObject, frame []byte) error {
	for entry := range container.Items(named.Fill) {
		if err := r.WriteTo(entry, frame); err != nil {
			return fmt.Errorf("fill at %#x: %w", entry.Offset, err)
		}
	}
	return nil
}
