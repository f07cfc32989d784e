// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import "github.com/bureau-foundation/capdl/lib/container"

// CapTableEntry places a capability in a table slot. Slots within one
// table are unique but need not be contiguous.
type CapTableEntry struct {
	Slot Slot
	Cap  Cap
}

// PDEntry is a capability table entry of a page-table object. Its slot
// is the table index selected by a virtual address rather than a freely
// chosen position, and must fall inside the table's addressable range.
type PDEntry = CapTableEntry

// LookupSlot returns the capability installed at slot, if any.
func LookupSlot(table container.Container[CapTableEntry], slot Slot) (Cap, bool) {
	for entry := range container.Items(table) {
		if entry.Slot == slot {
			return entry.Cap, true
		}
	}
	return nil, false
}

// Fixed slots of a TCB's capability table.
const (
	TCBSlotCSpace            Slot = 0
	TCBSlotVSpace            Slot = 1
	TCBSlotReply             Slot = 2
	TCBSlotCaller            Slot = 3
	TCBSlotIPCBuffer         Slot = 4
	TCBSlotFaultEP           Slot = 5
	TCBSlotSchedContext      Slot = 6
	TCBSlotTempFaultEP       Slot = 7
	TCBSlotBoundNotification Slot = 8
	TCBSlotVCPU              Slot = 9
)

// SlotTarget returns the object referenced from slot, if a capability
// is installed there.
func SlotTarget(table container.Container[CapTableEntry], slot Slot) (ObjectID, bool) {
	cap, ok := LookupSlot(table, slot)
	if !ok {
		return 0, false
	}
	return cap.Target(), true
}
