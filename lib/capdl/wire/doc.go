// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire is the interchange schema for specs: JSON (authored as
// JSONC, with comments and trailing commas) for people and generators,
// and deterministic CBOR (via lib/codec) between tools.
//
// A [Document] mirrors a spec with flat, kind-tagged records. Object
// references are indices into the document's object list, exactly as
// [capdl.ObjectID] values are. Decoding checks that each record is
// well-formed for its kind; the structural invariants of the resulting
// spec are still checked by [capdl.Validate].
package wire
