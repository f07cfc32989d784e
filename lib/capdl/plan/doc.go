// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package plan turns a validated spec into the ordered sequence of
// kernel operations that realizes it on a target, and drives a
// [Realizer] through that sequence.
//
// [Build] makes no kernel calls: it validates the spec structurally
// and against the target, maps each object to its kernel blueprint,
// and derives the rights, badge, and mapping attributes of every
// capability. [Execute] issues the steps in order against a Realizer,
// which owns the kernel boundary. The first failure stops execution
// and is returned as a [*StepError] naming the object or capability
// involved. Steps are never retried: a failed kernel call leaves the
// system in a state only the caller can judge.
//
// Steps run in eight phases: object creation in creation order, IRQ
// binding, ASID pool assignment, frame fill, capability installation
// in holder creation order, scheduling context configuration, thread
// configuration, and finally resumption of the threads marked to run.
package plan
