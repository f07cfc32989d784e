// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import "github.com/bureau-foundation/capdl/lib/container"

// NamedObject bundles an object with its capability table and fill
// entries. Name is empty when the storage strategy carries no names
// (for example an image embedded without its name table).
type NamedObject struct {
	Name   string
	Object Object
	Slots  container.Container[CapTableEntry]
	Fill   container.Container[FillEntry]
}

// IRQEntry binds interrupt number IRQ to the IRQ object Handler.
type IRQEntry struct {
	IRQ     Word
	Handler ObjectID
}

// ASIDSlotEntry assigns the next ASID pool slot to Pool. The position
// of the entry in [Spec.ASIDSlots] is the slot number.
type ASIDSlotEntry struct {
	Pool ObjectID
}

// UntypedCover records that objects [Start, End) are carved from the
// untyped Parent. It is the dependency edge traversal orders on.
type UntypedCover struct {
	Parent ObjectID
	Start  ObjectID
	End    ObjectID
}

// Contains reports whether id falls inside the covered range.
func (c UntypedCover) Contains(id ObjectID) bool {
	return id >= c.Start && id < c.End
}

// Spec is the complete specification. ObjectIDs are positions in
// Objects.
type Spec struct {
	Objects       container.Container[NamedObject]
	IRQs          container.Container[IRQEntry]
	ASIDSlots     container.Container[ASIDSlotEntry]
	UntypedCovers container.Container[UntypedCover]
}

// NumObjects returns the number of objects.
func (s *Spec) NumObjects() int {
	return container.Len(s.Objects)
}

// Object returns the object with the given ID. The ID must be in
// range; validated specs guarantee this for every ID they contain.
func (s *Spec) Object(id ObjectID) NamedObject {
	return s.Objects.At(int(id))
}

// Name returns a display name for id: the object's name when present,
// otherwise the ID itself.
func (s *Spec) Name(id ObjectID) string {
	if int(id) < s.NumObjects() {
		if name := s.Object(id).Name; name != "" {
			return name
		}
	}
	return id.String()
}
