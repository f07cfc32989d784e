// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import (
	"fmt"

	"github.com/bureau-foundation/capdl/lib/container"
)

// ObjectKind identifies an [Object] variant. The numeric values are
// part of the binary image format and must not be renumbered.
type ObjectKind uint8

const (
	KindUntyped      ObjectKind = 1
	KindEndpoint     ObjectKind = 2
	KindNotification ObjectKind = 3
	KindCNode        ObjectKind = 4
	KindTCB          ObjectKind = 5
	KindIRQ          ObjectKind = 6
	KindARMIRQ       ObjectKind = 7
	KindVCPU         ObjectKind = 8
	KindFrame        ObjectKind = 9
	KindPageTable    ObjectKind = 10
	KindASIDPool     ObjectKind = 11
	KindSchedContext ObjectKind = 12
	KindReply        ObjectKind = 13
)

var objectKindNames = map[ObjectKind]string{
	KindUntyped:      "untyped",
	KindEndpoint:     "endpoint",
	KindNotification: "notification",
	KindCNode:        "cnode",
	KindTCB:          "tcb",
	KindIRQ:          "irq",
	KindARMIRQ:       "arm_irq",
	KindVCPU:         "vcpu",
	KindFrame:        "frame",
	KindPageTable:    "page_table",
	KindASIDPool:     "asid_pool",
	KindSchedContext: "sched_context",
	KindReply:        "reply",
}

// String returns the wire name of the kind.
func (k ObjectKind) String() string {
	if name, ok := objectKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Valid reports whether k names a known variant.
func (k ObjectKind) Valid() bool {
	_, ok := objectKindNames[k]
	return ok
}

// ParseObjectKind is the inverse of [ObjectKind.String].
func ParseObjectKind(name string) (ObjectKind, error) {
	for kind, kindName := range objectKindNames {
		if kindName == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown object kind %q", name)
}

// HoldsCaps reports whether objects of kind k carry a capability table.
func (k ObjectKind) HoldsCaps() bool {
	switch k {
	case KindCNode, KindTCB, KindIRQ, KindARMIRQ, KindPageTable:
		return true
	}
	return false
}

// Object is the tagged variant over kernel object kinds. The set of
// implementations is closed.
type Object interface {
	Kind() ObjectKind
	isObject()
}

// UntypedObject is kernel memory not yet carved into typed objects.
// PAddr pins the untyped to a physical address (device memory); nil
// means any untyped of the right size will do.
type UntypedObject struct {
	SizeBits uint8
	PAddr    *Word
}

type EndpointObject struct{}

type NotificationObject struct{}

// CNodeObject is a capability table with 2^SizeBits slots.
type CNodeObject struct {
	SizeBits uint8
}

// TCBObject is a thread control block. Its capability table uses the
// fixed layout named by the TCBSlot constants.
type TCBObject struct {
	Extra TCBExtra
}

// TCBExtra carries the thread configuration applied after the TCB's
// capabilities are installed.
type TCBExtra struct {
	IPCBufferAddr Word
	Affinity      Word
	Prio          uint8
	MaxPrio       uint8
	Resume        bool
	IP            Word
	SP            Word
	SPSR          Word
	GPRs          container.Container[Word]

	// MasterFaultEP is the fault endpoint CPtr in the thread's own
	// CSpace. Nil leaves the fault endpoint unset.
	MasterFaultEP *CPtr
}

// IRQObject is a descriptive placeholder for an interrupt line. Its
// slot 0 holds the notification the interrupt is delivered to. It has
// no creatable kernel object; the IRQ table binds it to a number.
type IRQObject struct{}

// ARMIRQObject is an IRQ with ARM GIC trigger and target-core settings.
type ARMIRQObject struct {
	Trigger Word
	Target  Word
}

type VCPUObject struct{}

// FrameObject is a page of 2^SizeBits bytes. PAddr pins the frame to a
// physical address.
type FrameObject struct {
	SizeBits uint8
	PAddr    *Word
}

// PageTableObject is one level of a paging structure. Level 0 is the
// root; architectures with a single flat table kind carry no level.
type PageTableObject struct {
	IsRoot bool
	Level  *uint8
}

// ASIDPoolObject is a pool of address-space IDs; High selects which
// slice of the ASID space the pool serves.
type ASIDPoolObject struct {
	High Word
}

// SchedContextObject is a scheduling context (MCS kernels only).
type SchedContextObject struct {
	SizeBits uint8
	Period   uint64
	Budget   uint64
	Badge    Badge
}

// ReplyObject is a reply object (MCS kernels only).
type ReplyObject struct{}

func (UntypedObject) Kind() ObjectKind      { return KindUntyped }
func (EndpointObject) Kind() ObjectKind     { return KindEndpoint }
func (NotificationObject) Kind() ObjectKind { return KindNotification }
func (CNodeObject) Kind() ObjectKind        { return KindCNode }
func (TCBObject) Kind() ObjectKind          { return KindTCB }
func (IRQObject) Kind() ObjectKind          { return KindIRQ }
func (ARMIRQObject) Kind() ObjectKind       { return KindARMIRQ }
func (VCPUObject) Kind() ObjectKind         { return KindVCPU }
func (FrameObject) Kind() ObjectKind        { return KindFrame }
func (PageTableObject) Kind() ObjectKind    { return KindPageTable }
func (ASIDPoolObject) Kind() ObjectKind     { return KindASIDPool }
func (SchedContextObject) Kind() ObjectKind { return KindSchedContext }
func (ReplyObject) Kind() ObjectKind        { return KindReply }

func (UntypedObject) isObject()      {}
func (EndpointObject) isObject()     {}
func (NotificationObject) isObject() {}
func (CNodeObject) isObject()        {}
func (TCBObject) isObject()          {}
func (IRQObject) isObject()          {}
func (ARMIRQObject) isObject()       {}
func (VCPUObject) isObject()         {}
func (FrameObject) isObject()        {}
func (PageTableObject) isObject()    {}
func (ASIDPoolObject) isObject()     {}
func (SchedContextObject) isObject() {}
func (ReplyObject) isObject()        {}

// SizeBits returns the size-in-bits parameter of variable-sized
// objects.
func SizeBits(obj Object) (uint8, bool) {
	switch o := obj.(type) {
	case UntypedObject:
		return o.SizeBits, true
	case CNodeObject:
		return o.SizeBits, true
	case FrameObject:
		return o.SizeBits, true
	case SchedContextObject:
		return o.SizeBits, true
	}
	return 0, false
}

// BackingSize returns the number of bytes of memory fill entries may
// write into. Only frames have fillable backing memory.
func BackingSize(obj Object) (uint64, bool) {
	frame, ok := obj.(FrameObject)
	if !ok || frame.SizeBits >= 64 {
		return 0, false
	}
	return uint64(1) << frame.SizeBits, true
}

// PhysicalAddress returns the pinned physical address of an untyped or
// frame, if any.
func PhysicalAddress(obj Object) (Word, bool) {
	switch o := obj.(type) {
	case UntypedObject:
		if o.PAddr != nil {
			return *o.PAddr, true
		}
	case FrameObject:
		if o.PAddr != nil {
			return *o.PAddr, true
		}
	}
	return 0, false
}
