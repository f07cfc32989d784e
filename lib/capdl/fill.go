// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import (
	"fmt"

	"github.com/bureau-foundation/capdl/lib/contentstore"
)

// FillEntry populates [Offset, Offset+Length) of an object's backing
// memory from Content.
type FillEntry struct {
	Offset  uint64
	Length  uint64
	Content FillContent
}

// End returns Offset+Length and whether the sum did not overflow.
func (e FillEntry) End() (uint64, bool) {
	end := e.Offset + e.Length
	return end, end >= e.Offset
}

// ContentKind identifies a [FillContent] variant. Values are part of
// the binary image format.
type ContentKind uint8

const (
	ContentBytes    ContentKind = 1
	ContentDigest   ContentKind = 2
	ContentFile     ContentKind = 3
	ContentDeflated ContentKind = 4
	ContentBootInfo ContentKind = 5
)

// String returns the wire name of the content kind.
func (k ContentKind) String() string {
	switch k {
	case ContentBytes:
		return "bytes"
	case ContentDigest:
		return "digest"
	case ContentFile:
		return "file"
	case ContentDeflated:
		return "deflated"
	case ContentBootInfo:
		return "boot_info"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// FillContent is the tagged variant over content sources.
type FillContent interface {
	ContentKind() ContentKind
	isFillContent()
}

// BytesContent is copied verbatim. len(Data) equals the entry length.
type BytesContent struct {
	Data []byte
}

// DigestContent is looked up in a content store by digest when the
// spec is realized.
type DigestContent struct {
	Digest contentstore.Digest
}

// FileContent names a file on the build host. It only exists while a
// spec is being authored: the build tool replaces it with bytes,
// deflated bytes, or a digest before embedding.
type FileContent struct {
	Path       string
	FileOffset uint64
}

// DeflatedContent is a raw DEFLATE stream that decompresses to exactly
// the entry length.
type DeflatedContent struct {
	Data []byte
}

// BootInfoContent copies bytes from a boot-information block the
// kernel supplies at boot, starting at Offset within that block.
type BootInfoContent struct {
	ID     BootInfoID
	Offset uint64
}

func (BytesContent) ContentKind() ContentKind    { return ContentBytes }
func (DigestContent) ContentKind() ContentKind   { return ContentDigest }
func (FileContent) ContentKind() ContentKind     { return ContentFile }
func (DeflatedContent) ContentKind() ContentKind { return ContentDeflated }
func (BootInfoContent) ContentKind() ContentKind { return ContentBootInfo }

func (BytesContent) isFillContent()    {}
func (DigestContent) isFillContent()   {}
func (FileContent) isFillContent()     {}
func (DeflatedContent) isFillContent() {}
func (BootInfoContent) isFillContent() {}

// BootInfoID identifies a kernel-provided boot-information block. The
// set is closed: supporting a new block means adding a constant here
// and its kernel identifier in lib/capdl/kernel.
type BootInfoID uint8

const (
	// BootInfoFDT is the flattened device tree the kernel passes to
	// the root task.
	BootInfoFDT BootInfoID = 1
)

// String returns the wire name of the identifier.
func (id BootInfoID) String() string {
	switch id {
	case BootInfoFDT:
		return "fdt"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(id))
	}
}

// Valid reports whether id is a member of the closed enumeration.
func (id BootInfoID) Valid() bool {
	return id == BootInfoFDT
}

// ParseBootInfoID is the inverse of [BootInfoID.String].
func ParseBootInfoID(name string) (BootInfoID, error) {
	switch name {
	case "fdt":
		return BootInfoFDT, nil
	default:
		return 0, fmt.Errorf("unknown boot info id %q", name)
	}
}
