// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"fmt"

	"github.com/bureau-foundation/capdl/lib/capdl"
)

// ASIDPoolBits is the size of an ASID pool. ASID pools are created by
// retyping an untyped of this size with ASIDPool_Assign, so their
// blueprint is an untyped.
const ASIDPoolBits = 12

// Blueprint is the creation request for one kernel object.
type Blueprint struct {
	Kind BlueprintKind

	// SizeBits is the caller-chosen size of variable-sized objects
	// (untyped, cnode, sched context) and zero otherwise.
	SizeBits uint8
}

func (b Blueprint) String() string {
	if b.SizeBits != 0 {
		return fmt.Sprintf("%s(%d)", b.Kind, b.SizeBits)
	}
	return b.Kind.String()
}

// Type returns the kernel object type number on t.
func (b Blueprint) Type(t Target) (ObjectType, error) {
	return ObjectTypeFor(t, b.Kind)
}

// APISizeBits is the size argument passed to Untyped_Retype: the
// object's size for untyped and sched contexts, the slot count in bits
// for cnodes, and zero for fixed-size objects.
func (b Blueprint) APISizeBits() capdl.Word {
	switch b.Kind {
	case BlueprintUntyped, BlueprintCNode, BlueprintSchedContext:
		return capdl.Word(b.SizeBits)
	}
	return 0
}

// Fixed object sizes shared by every 64-bit target.
const (
	endpointBits     = 4
	notificationBits = 5
	replyBits        = 5
	slotBits         = 5
	pageTableBits    = 12
	vcpuBits         = 12
)

// PhysicalSizeBits is the log2 of the memory the object consumes from
// its parent untyped.
func (b Blueprint) PhysicalSizeBits(t Target) uint8 {
	switch b.Kind {
	case BlueprintUntyped, BlueprintSchedContext:
		return b.SizeBits
	case BlueprintCNode:
		return b.SizeBits + slotBits
	case BlueprintTCB:
		if t.Arch == RISCV64 {
			return 10
		}
		return 11
	case BlueprintEndpoint:
		return endpointBits
	case BlueprintNotification:
		return notificationBits
	case BlueprintReply:
		return replyBits
	case BlueprintVCPU:
		return vcpuBits
	case BlueprintSmallPage:
		return 12
	case BlueprintLargePage:
		return 21
	case BlueprintHugePage:
		return 30
	case BlueprintPageTable, BlueprintPageDirectory, BlueprintPageUpperDirectory, BlueprintPageGlobalDirectory:
		return pageTableBits
	}
	return 0
}

// Retype size limits, in bits. The largest untyped is bounded by the
// kernel's physical address width on each architecture.
const (
	minUntypedBits      = 4
	minCNodeBits        = 1
	minSchedContextBits = 7
)

var maxUntypedBits = map[Arch]uint8{
	AArch64: 47,
	RISCV64: 38,
	X86_64:  47,
}

// sizedBlueprint checks a caller-chosen size against the retype limits.
// physicalExtra is what the object's physical size adds to sizeBits.
func sizedBlueprint(t Target, kind capdl.ObjectKind, blueprint BlueprintKind, sizeBits, minimum, physicalExtra uint8) (Blueprint, bool, error) {
	limit, ok := maxUntypedBits[t.Arch]
	if !ok {
		return Blueprint{}, false, &ConfigMismatchError{Target: t, Kind: kind, Detail: "unknown architecture"}
	}
	if sizeBits < minimum || sizeBits > limit-physicalExtra {
		return Blueprint{}, false, &ConfigMismatchError{
			Target: t,
			Kind:   kind,
			Detail: fmt.Sprintf("size_bits %d outside [%d, %d]", sizeBits, minimum, limit-physicalExtra),
		}
	}
	return Blueprint{Kind: blueprint, SizeBits: sizeBits}, true, nil
}

// frameSizes lists the frame sizes each architecture can create, in
// bits.
var frameSizes = map[Arch][]uint8{
	AArch64: {12, 21},
	RISCV64: {12, 21, 30},
	X86_64:  {12, 21},
}

var frameBlueprints = map[uint8]BlueprintKind{
	12: BlueprintSmallPage,
	21: BlueprintLargePage,
	30: BlueprintHugePage,
}

// pagingLevels maps a page-table level to its blueprint on the
// four-level architectures. Level 0 is the root.
var pagingLevels = [...]BlueprintKind{
	BlueprintPageGlobalDirectory,
	BlueprintPageUpperDirectory,
	BlueprintPageDirectory,
	BlueprintPageTable,
}

// BlueprintFor maps obj to its creation request on t. It returns false
// with a nil error for objects that describe configuration but are not
// created (IRQ placeholders); every other legal object yields exactly
// one blueprint. Variants illegal on t fail with a
// [*ConfigMismatchError], [*UnsupportedFrameSizeError], or
// [*RootLevelError].
func BlueprintFor(t Target, obj capdl.Object) (Blueprint, bool, error) {
	switch o := obj.(type) {
	case capdl.UntypedObject:
		return sizedBlueprint(t, capdl.KindUntyped, BlueprintUntyped, o.SizeBits, minUntypedBits, 0)
	case capdl.EndpointObject:
		return Blueprint{Kind: BlueprintEndpoint}, true, nil
	case capdl.NotificationObject:
		return Blueprint{Kind: BlueprintNotification}, true, nil
	case capdl.CNodeObject:
		return sizedBlueprint(t, capdl.KindCNode, BlueprintCNode, o.SizeBits, minCNodeBits, slotBits)
	case capdl.TCBObject:
		return Blueprint{Kind: BlueprintTCB}, true, nil
	case capdl.IRQObject:
		return Blueprint{}, false, nil
	case capdl.ARMIRQObject:
		if t.Arch != AArch64 {
			return Blueprint{}, false, &ConfigMismatchError{Target: t, Kind: capdl.KindARMIRQ, Detail: "GIC interrupts exist only on aarch64"}
		}
		return Blueprint{}, false, nil
	case capdl.VCPUObject:
		if t.Arch != AArch64 || !t.Features.ARMHypervisor {
			return Blueprint{}, false, &ConfigMismatchError{Target: t, Kind: capdl.KindVCPU, Detail: "requires aarch64 with hypervisor support"}
		}
		return Blueprint{Kind: BlueprintVCPU}, true, nil
	case capdl.FrameObject:
		return frameBlueprint(t, o)
	case capdl.PageTableObject:
		return pageTableBlueprint(t, o)
	case capdl.ASIDPoolObject:
		return Blueprint{Kind: BlueprintUntyped, SizeBits: ASIDPoolBits}, true, nil
	case capdl.SchedContextObject:
		if !t.Features.MCS {
			return Blueprint{}, false, &ConfigMismatchError{Target: t, Kind: capdl.KindSchedContext, Detail: "requires an MCS kernel"}
		}
		return sizedBlueprint(t, capdl.KindSchedContext, BlueprintSchedContext, o.SizeBits, minSchedContextBits, 0)
	case capdl.ReplyObject:
		if !t.Features.MCS {
			return Blueprint{}, false, &ConfigMismatchError{Target: t, Kind: capdl.KindReply, Detail: "requires an MCS kernel"}
		}
		return Blueprint{Kind: BlueprintReply}, true, nil
	case nil:
		return Blueprint{}, false, &ConfigMismatchError{Target: t, Detail: "missing object"}
	}
	return Blueprint{}, false, &ConfigMismatchError{Target: t, Kind: obj.Kind()}
}

func frameBlueprint(t Target, frame capdl.FrameObject) (Blueprint, bool, error) {
	for _, size := range frameSizes[t.Arch] {
		if size == frame.SizeBits {
			return Blueprint{Kind: frameBlueprints[size]}, true, nil
		}
	}
	return Blueprint{}, false, &UnsupportedFrameSizeError{Arch: t.Arch, SizeBits: frame.SizeBits}
}

func pageTableBlueprint(t Target, table capdl.PageTableObject) (Blueprint, bool, error) {
	rootLevelError := &RootLevelError{Arch: t.Arch, IsRoot: table.IsRoot, Level: table.Level}
	switch t.Arch {
	case RISCV64:
		if table.Level != nil {
			return Blueprint{}, false, rootLevelError
		}
		return Blueprint{Kind: BlueprintPageTable}, true, nil
	case AArch64, X86_64:
		if table.Level == nil || int(*table.Level) >= len(pagingLevels) {
			return Blueprint{}, false, rootLevelError
		}
		if table.IsRoot != (*table.Level == 0) {
			return Blueprint{}, false, rootLevelError
		}
		return Blueprint{Kind: pagingLevels[*table.Level]}, true, nil
	}
	return Blueprint{}, false, &ConfigMismatchError{Target: t, Kind: capdl.KindPageTable}
}
