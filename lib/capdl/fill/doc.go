// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fill resolves fill entries to the bytes written into an
// object's backing memory.
//
// A [Resolver] handles every content source except build-host files:
// inline bytes are copied, digests are looked up in a content store,
// deflate streams are inflated to exactly the declared length, and
// boot-information content is sliced out of the blocks the kernel hands
// the root task. Resolution has no side effects other than writing into
// the caller's frame, so retrying an entry writes the same bytes.
package fill
