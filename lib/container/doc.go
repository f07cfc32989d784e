// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package container provides the ordered-sequence abstraction that the
// capDL specification model is built on.
//
// Every place the model needs "zero or more T in order" (capability
// tables, fill entries, the object collection, TCB register lists) holds
// a [Container]. Two storage strategies implement it:
//
//   - Borrowed: a fixed-length view over memory that already exists.
//     [Slice] wraps an existing Go slice; the image views in
//     lib/capdl/image decode records on demand from an embedded boot
//     image. Borrowed containers never grow and never allocate backing
//     storage. Indexing out of range is a precondition violation and
//     panics: the consumer (a loader) has no recovery path and is
//     expected to have validated the specification before walking it.
//
//   - Owned: [Vec], a growable sequence used while a specification is
//     constructed from scratch. It additionally satisfies [Growable]
//     and reports out-of-range access through [Vec.Get] as an
//     [*OutOfRangeError].
//
// Model types hold the [Container] interface, so one set of type
// definitions serves both the allocation-free consumer and the
// allocation-rich producer. Code that needs to append asserts
// [Growable], which only the owned strategy implements.
package container
