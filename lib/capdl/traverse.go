// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import (
	"fmt"
	"iter"

	"github.com/bureau-foundation/capdl/lib/container"
)

// CreationOrder yields every object ID such that each object appears
// after the untyped it is carved from. Objects unrelated by an untyped
// cover appear in ascending ID order, and the children of one untyped
// appear in ascending order, which is the order the kernel consumes
// untyped memory in.
//
// The sequence is lazy and restartable; each iteration recomputes the
// parent table from spec. spec must have passed [Validate]: a cover
// cycle is corruption and panics.
func CreationOrder(spec *Spec) iter.Seq[ObjectID] {
	return func(yield func(ObjectID) bool) {
		count := spec.NumObjects()
		parents := coverParents(spec, count)
		emitted := make([]bool, count)

		var chain []int
		for id := range count {
			if emitted[id] {
				continue
			}
			// Collect the unemitted ancestors of id, nearest first.
			chain = chain[:0]
			for node := id; node >= 0 && !emitted[node]; node = parents[node] {
				if len(chain) > count {
					panic(fmt.Sprintf("capdl: untyped cover cycle through object %d in unvalidated spec", id))
				}
				chain = append(chain, node)
			}
			for i := len(chain) - 1; i >= 0; i-- {
				emitted[chain[i]] = true
				if !yield(ObjectID(chain[i])) {
					return
				}
			}
		}
	}
}

// coverParents returns, for each object, the untyped it is carved from
// or -1.
func coverParents(spec *Spec, count int) []int {
	parents := make([]int, count)
	for i := range parents {
		parents[i] = -1
	}
	for cover := range container.Items(spec.UntypedCovers) {
		for child := cover.Start; child < cover.End && int(child) < count; child++ {
			parents[child] = int(cover.Parent)
		}
	}
	return parents
}

// CapInstallations yields every (holder, entry) pair in creation order
// of the holders and table order within a holder. A realizer installs
// capabilities only after every object has been created, since a
// capability may target any object in the spec.
func CapInstallations(spec *Spec) iter.Seq2[ObjectID, CapTableEntry] {
	return func(yield func(ObjectID, CapTableEntry) bool) {
		for id := range CreationOrder(spec) {
			for entry := range container.Items(spec.Object(id).Slots) {
				if !yield(id, entry) {
					return
				}
			}
		}
	}
}

// ObjectsOfKind yields the IDs of objects of the given kind in
// ascending order.
func ObjectsOfKind(spec *Spec, kind ObjectKind) iter.Seq[ObjectID] {
	return func(yield func(ObjectID) bool) {
		for id, named := range container.Entries(spec.Objects) {
			if named.Object != nil && named.Object.Kind() == kind {
				if !yield(ObjectID(id)) {
					return
				}
			}
		}
	}
}
