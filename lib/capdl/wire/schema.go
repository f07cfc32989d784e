// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "github.com/bureau-foundation/capdl/lib/contentstore"

// Document is the serialized form of a spec.
type Document struct {
	Objects       []Object `json:"objects"`
	IRQs          []IRQ    `json:"irqs,omitempty"`
	ASIDSlots     []uint32 `json:"asid_slots,omitempty"`
	UntypedCovers []Cover  `json:"untyped_covers,omitempty"`
}

// Object is one named object. Kind selects which of the optional
// parameter fields are meaningful.
type Object struct {
	Name string `json:"name,omitempty"`
	Kind string `json:"kind"`

	// untyped, cnode, frame, sched_context
	SizeBits *uint8 `json:"size_bits,omitempty"`

	// untyped, frame
	PAddr *uint64 `json:"paddr,omitempty"`

	TCB *TCB `json:"tcb,omitempty"`

	// arm_irq
	Trigger uint64 `json:"trigger,omitempty"`
	Target  uint64 `json:"target,omitempty"`

	// page_table
	IsRoot bool   `json:"is_root,omitempty"`
	Level  *uint8 `json:"level,omitempty"`

	// asid_pool
	High uint64 `json:"high,omitempty"`

	// sched_context
	Period uint64 `json:"period,omitempty"`
	Budget uint64 `json:"budget,omitempty"`
	Badge  uint64 `json:"badge,omitempty"`

	Slots []Slot `json:"slots,omitempty"`
	Fill  []Fill `json:"fill,omitempty"`
}

// TCB carries thread configuration.
type TCB struct {
	IPCBufferAddr uint64   `json:"ipc_buffer_addr"`
	Affinity      uint64   `json:"affinity,omitempty"`
	Prio          uint8    `json:"prio"`
	MaxPrio       uint8    `json:"max_prio"`
	Resume        bool     `json:"resume,omitempty"`
	IP            uint64   `json:"ip"`
	SP            uint64   `json:"sp"`
	SPSR          uint64   `json:"spsr,omitempty"`
	GPRs          []uint64 `json:"gprs,omitempty"`
	MasterFaultEP *uint64  `json:"master_fault_ep,omitempty"`
}

// Slot is one capability table entry. Kind is the target object kind.
type Slot struct {
	Slot   uint64 `json:"slot"`
	Kind   string `json:"kind"`
	Object uint32 `json:"object"`

	// endpoint, notification
	Badge uint64 `json:"badge,omitempty"`

	// endpoint, notification, frame: letters from "RWGP" (P is
	// grant-reply), or "-" for none.
	Rights string `json:"rights,omitempty"`

	// cnode
	Guard     uint64 `json:"guard,omitempty"`
	GuardSize uint64 `json:"guard_size,omitempty"`

	// frame; absent means cached.
	Cached *bool `json:"cached,omitempty"`
}

// Fill is one fill entry. Source selects the content fields.
type Fill struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
	Source string `json:"source"`

	// bytes, deflated
	Data []byte `json:"data,omitempty"`

	// digest
	Digest *contentstore.Digest `json:"digest,omitempty"`

	// file
	Path       string `json:"path,omitempty"`
	FileOffset uint64 `json:"file_offset,omitempty"`

	// boot_info
	BootInfo       string `json:"boot_info,omitempty"`
	BootInfoOffset uint64 `json:"boot_info_offset,omitempty"`
}

// IRQ binds an interrupt number to an IRQ object.
type IRQ struct {
	IRQ     uint64 `json:"irq"`
	Handler uint32 `json:"handler"`
}

// Cover records the objects carved from an untyped.
type Cover struct {
	Parent uint32 `json:"parent"`
	Start  uint32 `json:"start"`
	End    uint32 `json:"end"`
}
