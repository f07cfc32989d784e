// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/container"
)

// Every paging structure on the supported targets is one 4 KiB page of
// 8-byte entries.
const tableIndexBits = 9

// Geometry describes the virtual-address bits one paging structure
// translates.
type Geometry struct {
	// IndexBits is log2 of the number of entries.
	IndexBits uint8

	// Shift is the position of the lowest address bit the table
	// indexes on. It is meaningful only when Leveled is true.
	Shift uint8

	Leveled bool
}

// Entries returns the number of slots in the table.
func (g Geometry) Entries() uint64 {
	return uint64(1) << g.IndexBits
}

// Span returns the number of bytes of virtual address space one entry
// covers.
func (g Geometry) Span() (uint64, error) {
	if !g.Leveled {
		return 0, ErrNoAddressGeometry
	}
	return uint64(1) << g.Shift, nil
}

// TableGeometry returns the geometry of a page-table object on t. The
// object must already map cleanly with [BlueprintFor].
func TableGeometry(t Target, table capdl.PageTableObject) (Geometry, error) {
	if _, _, err := pageTableBlueprint(t, table); err != nil {
		return Geometry{}, err
	}
	if table.Level == nil {
		return Geometry{IndexBits: tableIndexBits}, nil
	}
	// Four levels of 9 index bits above a 12-bit page offset.
	shift := 12 + tableIndexBits*(len(pagingLevels)-1-int(*table.Level))
	return Geometry{IndexBits: tableIndexBits, Shift: uint8(shift), Leveled: true}, nil
}

// SlotForAddress returns the slot of the entry that translates vaddr.
func SlotForAddress(g Geometry, vaddr capdl.Word) (capdl.Slot, error) {
	if !g.Leveled {
		return 0, ErrNoAddressGeometry
	}
	return (vaddr >> g.Shift) & (g.Entries() - 1), nil
}

// CheckSlot verifies that slot is addressable in a table of geometry g.
func CheckSlot(g Geometry, slot capdl.Slot) error {
	if slot >= g.Entries() {
		return &SlotRangeError{Slot: slot, Entries: g.Entries()}
	}
	return nil
}

// ValidateSpec checks that every object and capability of a
// structurally valid spec can be realized on t: each object maps to a
// blueprint, each page-table entry is within its table's range, and
// each badge can be encoded. All failures are returned joined, each an
// [*ObjectError].
func ValidateSpec(t Target, spec *capdl.Spec) error {
	if err := t.Validate(); err != nil {
		return &ConfigMismatchError{Target: t, Detail: err.Error()}
	}

	var errs []error
	for index, named := range container.Entries(spec.Objects) {
		id := capdl.ObjectID(index)
		objectError := func(err error) *ObjectError {
			return &ObjectError{Object: id, Name: named.Name, Err: err}
		}

		if _, _, err := BlueprintFor(t, named.Object); err != nil {
			errs = append(errs, objectError(err))
			continue
		}

		var geometry Geometry
		table, isTable := named.Object.(capdl.PageTableObject)
		if isTable {
			var err error
			if geometry, err = TableGeometry(t, table); err != nil {
				errs = append(errs, objectError(err))
				continue
			}
		}

		for entry := range container.Items(named.Slots) {
			slotError := func(err error) *ObjectError {
				failure := objectError(err)
				failure.Slot, failure.HasSlot = entry.Slot, true
				return failure
			}
			if isTable {
				if err := CheckSlot(geometry, entry.Slot); err != nil {
					errs = append(errs, slotError(err))
				}
			}
			if _, _, err := BadgeFor(entry.Cap); err != nil {
				errs = append(errs, slotError(err))
			}
		}

		for entry := range container.Items(named.Fill) {
			if content, ok := entry.Content.(capdl.BootInfoContent); ok {
				if _, err := BootInfoExtraID(content.ID); err != nil {
					errs = append(errs, objectError(fmt.Errorf("fill at %#x: %w", entry.Offset, err)))
				}
			}
		}
	}
	return errors.Join(errs...)
}
