// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package image serializes a spec into the fixed binary layout embedded
// in a boot image, and views such an image as a spec without a parsing
// pass.
//
// The layout is a sequence of little-endian 64-bit words:
//
//	header      magic, version, flags, section table
//	objects     9 words per object
//	irqs        2 words per entry
//	asid slots  1 word per entry
//	covers      3 words per entry
//	caps        5 words per capability, grouped by holder
//	fill        5 words per fill entry, grouped by holder
//	params      per-kind object parameters
//	heap        names, inline and deflated bytes, digests, registers
//	trailer     32-byte BLAKE3 checksum of everything before it
//
// Object records refer to their capabilities, fill entries, parameters,
// and heap data by absolute byte offset. [Open] checks the checksum and
// every offset and count once; afterwards the returned spec's containers
// decode records on access and cannot fail.
//
// [Pack] and [Unpack] wrap an image in a compressed envelope for
// storage and transport.
package image
