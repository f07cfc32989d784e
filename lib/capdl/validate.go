// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bureau-foundation/capdl/lib/container"
)

// Validate checks every structural invariant of spec and returns all
// violations joined with errors.Join, or nil. Each violation is a
// [*ValidationError] wrapping one of the Err* sentinels.
//
// A spec must pass Validate before it is traversed, mapped, or
// realized. Validate never mutates the spec.
func Validate(spec *Spec) error {
	v := validator{spec: spec, count: spec.NumObjects()}
	for id, obj := range container.Entries(spec.Objects) {
		v.object(ObjectID(id), obj)
	}
	v.irqs()
	v.asidSlots()
	v.covers()
	return errors.Join(v.errs...)
}

type validator struct {
	spec  *Spec
	count int
	errs  []error
}

func (v *validator) objectError(id ObjectID, name string, sentinel error, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{
		Object: id,
		Name:   name,
		Detail: fmt.Sprintf(format, args...),
		Err:    sentinel,
	})
}

func (v *validator) tableError(table string, index int, sentinel error, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{
		Table:  table,
		Index:  index,
		Detail: fmt.Sprintf(format, args...),
		Err:    sentinel,
	})
}

// kindOf returns the kind of the object at id, or false if id dangles.
func (v *validator) kindOf(id ObjectID) (ObjectKind, bool) {
	if int(id) >= v.count {
		return 0, false
	}
	obj := v.spec.Object(id).Object
	if obj == nil {
		return 0, false
	}
	return obj.Kind(), true
}

func (v *validator) object(id ObjectID, named NamedObject) {
	if named.Object == nil || !named.Object.Kind().Valid() {
		v.objectError(id, named.Name, ErrInvalidObject, "missing or unknown object variant")
		return
	}
	if pageTable, ok := named.Object.(PageTableObject); ok && pageTable.IsRoot && pageTable.Level != nil && *pageTable.Level != 0 {
		v.objectError(id, named.Name, ErrInvalidObject, "root page table at level %d", *pageTable.Level)
	}
	v.slots(id, named)
	v.fill(id, named)
}

func (v *validator) slots(id ObjectID, named NamedObject) {
	kind := named.Object.Kind()
	if container.Len(named.Slots) > 0 && !kind.HoldsCaps() {
		v.objectError(id, named.Name, ErrSlotsUnsupported, "%s with %d capabilities", kind, named.Slots.Len())
		return
	}

	var slotLimit uint64
	limited := false
	if cnode, ok := named.Object.(CNodeObject); ok && cnode.SizeBits < 64 {
		slotLimit = uint64(1) << cnode.SizeBits
		limited = true
	}

	seen := make(map[Slot]struct{}, container.Len(named.Slots))
	for entry := range container.Items(named.Slots) {
		if _, duplicate := seen[entry.Slot]; duplicate {
			v.objectError(id, named.Name, ErrDuplicateSlot, "slot %d", entry.Slot)
		}
		seen[entry.Slot] = struct{}{}

		if limited && entry.Slot >= slotLimit {
			v.objectError(id, named.Name, ErrSlotOutOfRange, "slot %d in a %d-slot cnode", entry.Slot, slotLimit)
		}

		if entry.Cap == nil {
			v.objectError(id, named.Name, ErrInvalidObject, "slot %d: missing capability", entry.Slot)
			continue
		}
		target := entry.Cap.Target()
		targetKind, ok := v.kindOf(target)
		if !ok {
			v.objectError(id, named.Name, ErrDanglingObjectID, "slot %d: target %s (object count %d)", entry.Slot, target, v.count)
			continue
		}
		if targetKind != entry.Cap.TargetKind() {
			v.objectError(id, named.Name, ErrCapKindMismatch, "slot %d: %s capability targets %s %s",
				entry.Slot, entry.Cap.TargetKind(), targetKind, target)
		}
	}
}

func (v *validator) fill(id ObjectID, named NamedObject) {
	if container.Len(named.Fill) == 0 {
		return
	}
	size, ok := BackingSize(named.Object)
	if !ok {
		v.objectError(id, named.Name, ErrFillUnsupported, "%s with %d fill entries", named.Object.Kind(), named.Fill.Len())
		return
	}

	entries := container.Collect(named.Fill)
	for _, entry := range entries {
		end, ok := entry.End()
		if !ok || end > size {
			v.objectError(id, named.Name, ErrFillOutOfBounds, "fill [%#x, +%#x) in %#x-byte object", entry.Offset, entry.Length, size)
		}
		v.fillContent(id, named.Name, entry)
	}

	// Empty entries cover no bytes and overlap nothing.
	entries = slices.DeleteFunc(entries, func(entry FillEntry) bool { return entry.Length == 0 })
	slices.SortFunc(entries, func(a, b FillEntry) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		}
		return 0
	})
	// Track the entry reaching furthest so far so that an entry nested
	// after a long one is still caught.
	furthest := 0
	for i := 1; i < len(entries); i++ {
		previous, current := entries[furthest], entries[i]
		previousEnd, ok := previous.End()
		if ok && previousEnd <= current.Offset {
			furthest = i
			continue
		}
		v.objectError(id, named.Name, ErrFillOverlap, "fill [%#x, +%#x) overlaps [%#x, +%#x)",
			current.Offset, current.Length, previous.Offset, previous.Length)
		if currentEnd, ok := current.End(); !ok || currentEnd > previousEnd {
			furthest = i
		}
	}
}

func (v *validator) fillContent(id ObjectID, name string, entry FillEntry) {
	switch content := entry.Content.(type) {
	case BytesContent:
		if uint64(len(content.Data)) != entry.Length {
			v.objectError(id, name, ErrFillContent, "fill at %#x: %d inline bytes for length %#x", entry.Offset, len(content.Data), entry.Length)
		}
	case DigestContent:
		if content.Digest.IsZero() {
			v.objectError(id, name, ErrFillContent, "fill at %#x: zero digest", entry.Offset)
		}
	case FileContent:
		if content.Path == "" {
			v.objectError(id, name, ErrFillContent, "fill at %#x: empty file path", entry.Offset)
		}
	case DeflatedContent:
		if len(content.Data) == 0 && entry.Length > 0 {
			v.objectError(id, name, ErrFillContent, "fill at %#x: empty deflate stream", entry.Offset)
		}
	case BootInfoContent:
		if !content.ID.Valid() {
			v.objectError(id, name, ErrFillContent, "fill at %#x: boot info id %s", entry.Offset, content.ID)
		}
	default:
		v.objectError(id, name, ErrFillContent, "fill at %#x: missing content", entry.Offset)
	}
}

func (v *validator) irqs() {
	seen := make(map[Word]struct{})
	for index, entry := range container.Entries(v.spec.IRQs) {
		if _, duplicate := seen[entry.IRQ]; duplicate {
			v.tableError("irq", index, ErrDuplicateIRQ, "irq %d", entry.IRQ)
		}
		seen[entry.IRQ] = struct{}{}

		kind, ok := v.kindOf(entry.Handler)
		if !ok {
			v.tableError("irq", index, ErrDanglingObjectID, "irq %d handler %s", entry.IRQ, entry.Handler)
			continue
		}
		if kind != KindIRQ && kind != KindARMIRQ {
			v.tableError("irq", index, ErrTableKindMismatch, "irq %d handler %s is a %s", entry.IRQ, entry.Handler, kind)
		}
	}
}

func (v *validator) asidSlots() {
	for index, entry := range container.Entries(v.spec.ASIDSlots) {
		kind, ok := v.kindOf(entry.Pool)
		if !ok {
			v.tableError("asid", index, ErrDanglingObjectID, "pool %s", entry.Pool)
			continue
		}
		if kind != KindASIDPool {
			v.tableError("asid", index, ErrTableKindMismatch, "pool %s is a %s", entry.Pool, kind)
		}
	}
}

func (v *validator) covers() {
	parents := make([]int, v.count)
	for i := range parents {
		parents[i] = -1
	}

	for index, cover := range container.Entries(v.spec.UntypedCovers) {
		kind, ok := v.kindOf(cover.Parent)
		if !ok {
			v.tableError("cover", index, ErrDanglingObjectID, "parent %s", cover.Parent)
			continue
		}
		if kind != KindUntyped {
			v.tableError("cover", index, ErrTableKindMismatch, "parent %s is a %s", cover.Parent, kind)
			continue
		}
		if cover.Start > cover.End || int(cover.End) > v.count {
			v.tableError("cover", index, ErrInvalidCoverBounds, "range [%s, %s) with %d objects", cover.Start, cover.End, v.count)
			continue
		}
		for child := cover.Start; child < cover.End; child++ {
			if parents[child] >= 0 {
				v.tableError("cover", index, ErrCoverConflict, "%s already carved from %s", child, ObjectID(parents[child]))
				continue
			}
			parents[child] = int(cover.Parent)
		}
	}

	// Each object has at most one parent, so the relation is a forest
	// unless some ancestor chain returns to its start.
	state := make([]uint8, v.count) // 0 unvisited, 1 on current chain, 2 done
	for start := range parents {
		var chain []int
		node := start
		for node >= 0 && state[node] == 0 {
			state[node] = 1
			chain = append(chain, node)
			node = parents[node]
		}
		if node >= 0 && state[node] == 1 {
			v.errs = append(v.errs, &ValidationError{
				Object: ObjectID(node),
				Name:   v.spec.Object(ObjectID(node)).Name,
				Detail: "object is its own ancestor",
				Err:    ErrCoverCycle,
			})
		}
		for _, visited := range chain {
			state[visited] = 2
		}
	}
}
