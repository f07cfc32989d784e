// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import "fmt"

// Word is a machine word of the target. Every supported target is
// 64-bit.
type Word = uint64

// Badge is the word attached to an endpoint or notification capability
// and delivered with messages sent through it.
type Badge = Word

// CPtr is a capability address in a thread's capability space.
type CPtr = Word

// Slot indexes a capability table. For page-table objects the slot is
// derived from a virtual address (see lib/capdl/kernel.SlotForAddress).
type Slot = Word

// ObjectID indexes the object collection of a [Spec]. It is the only
// way one part of the graph refers to another object.
type ObjectID uint32

// String formats the ID as it appears in diagnostics.
func (id ObjectID) String() string {
	return fmt.Sprintf("#%d", uint32(id))
}
