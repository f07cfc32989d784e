// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package contentstore defines the digest key used by digest-addressed
// fill content and the lookup contract a content store must satisfy.
//
// A digest is a 32-byte BLAKE3 keyed hash in the "capdl.fill.content"
// domain, computed over the exact bytes that will be written into an
// object's backing memory. Keys compare byte-for-byte. A store that
// returns different bytes for the same digest (a collision or on-disk
// corruption) is violating its own contract; [DirStore] detects this
// on read and reports [ErrCorrupt] rather than handing bad bytes to the
// loader.
//
// Two stores are provided: [MemoryStore] for tests and in-process
// builds, and [DirStore], a filesystem store with a two-character
// fan-out layout (ab/cdef...) and atomic temp-file-and-rename writes.
package contentstore
