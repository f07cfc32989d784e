// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/capdl/lib/capdl"
)

// Mapped is an image file opened in place. The spec borrows the file's
// pages, so it must not be used after Close.
type Mapped struct {
	Spec   *capdl.Spec
	Header Header

	// Packed is set when the file was a compressed envelope.
	Packed bool

	// mapping is the memory map, nil when the file was a packed
	// envelope and the image was unpacked onto the heap.
	mapping []byte
}

// MapFile memory-maps the image at path read-only and opens it.
// Packed envelopes are unpacked into memory instead.
func MapFile(path string) (*Mapped, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}
	defer unix.Close(fd)

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, fmt.Errorf("stating image %s: %w", path, err)
	}
	if stat.Size == 0 {
		return nil, fmt.Errorf("image %s: %w: empty file", path, ErrBadMagic)
	}

	// The mapping outlives the descriptor.
	data, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("memory-mapping image %s: %w", path, err)
	}

	if IsPacked(data) {
		// Unpack copies out of the mapping, so it can go at once.
		unpacked, err := Unpack(data)
		unix.Munmap(data)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", path, err)
		}
		mapped := &Mapped{Packed: true}
		if err := mapped.open(unpacked); err != nil {
			return nil, fmt.Errorf("image %s: %w", path, err)
		}
		return mapped, nil
	}

	mapped := &Mapped{mapping: data}
	if err := mapped.open(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("image %s: %w", path, err)
	}
	return mapped, nil
}

func (m *Mapped) open(data []byte) error {
	spec, err := Open(data)
	if err != nil {
		return err
	}
	// Open has verified the header.
	m.Header, _ = ReadHeader(data)
	m.Spec = spec
	return nil
}

// Close unmaps the file.
func (m *Mapped) Close() error {
	if m.mapping == nil {
		return nil
	}
	err := unix.Munmap(m.mapping)
	m.mapping = nil
	m.Spec = nil
	if err != nil {
		return fmt.Errorf("unmapping image: %w", err)
	}
	return nil
}
