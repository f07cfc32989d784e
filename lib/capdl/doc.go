// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capdl is the capability-distribution specification model: a
// static description of every kernel object a capability-based
// microkernel system image needs at boot, the capability tables that
// link them, and the content written into their backing memory.
//
// A [Spec] is a graph whose nodes are [NamedObject] values and whose
// edges are [ObjectID] indices, never pointers. Indices keep ownership
// acyclic and stay valid over a borrowed view of an embedded image, so
// the same types serve the build tool (which constructs a spec with the
// owned container strategy via [Builder]) and the loader (which views
// an embedded image through lib/capdl/image without a parsing pass).
//
// The lifecycle is validate-then-use. [Validate] checks every
// structural invariant once: no dangling object IDs, unique and
// in-range table slots, capabilities that target objects of the right
// kind, non-overlapping in-bounds fill entries, and an acyclic untyped
// cover relation. Traversal ([CreationOrder], [CapInstallations]) and
// the kernel mapping in lib/capdl/kernel assume a validated spec and
// treat violations as corruption.
//
// A Spec is immutable while it is being realized. Realization only
// computes kernel parameters and fill bytes; lib/capdl/plan drives an
// external realizer that issues the actual kernel calls.
package capdl
