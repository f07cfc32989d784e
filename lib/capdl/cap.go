// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import "strings"

// Rights are the access rights carried by endpoint, notification, and
// frame capabilities.
type Rights struct {
	Read       bool
	Write      bool
	Grant      bool
	GrantReply bool
}

// Common rights combinations.
var (
	AllRights = Rights{Read: true, Write: true, Grant: true, GrantReply: true}
	ReadWrite = Rights{Read: true, Write: true}
	ReadOnly  = Rights{Read: true}
)

// String renders rights as a compact flag string such as "RWGP" (P for
// grant-reply), with "-" for no rights.
func (r Rights) String() string {
	var builder strings.Builder
	if r.Read {
		builder.WriteByte('R')
	}
	if r.Write {
		builder.WriteByte('W')
	}
	if r.Grant {
		builder.WriteByte('G')
	}
	if r.GrantReply {
		builder.WriteByte('P')
	}
	if builder.Len() == 0 {
		return "-"
	}
	return builder.String()
}

// Cap is the tagged variant over capability kinds. Every variant
// targets one object, and each variant is compatible with exactly one
// object kind (reported by TargetKind).
type Cap interface {
	// Target is the object the capability refers to.
	Target() ObjectID

	// TargetKind is the only object kind this capability may target.
	TargetKind() ObjectKind

	isCap()
}

type UntypedCap struct {
	Object ObjectID
}

type EndpointCap struct {
	Object ObjectID
	Badge  Badge
	Rights Rights
}

type NotificationCap struct {
	Object ObjectID
	Badge  Badge
	Rights Rights
}

// CNodeCap carries the guard used for path compression when the CNode
// is traversed: GuardSize bits of the address must equal Guard.
type CNodeCap struct {
	Object    ObjectID
	Guard     Word
	GuardSize Word
}

type TCBCap struct {
	Object ObjectID
}

type IRQHandlerCap struct {
	Object ObjectID
}

type ARMIRQHandlerCap struct {
	Object ObjectID
}

type VCPUCap struct {
	Object ObjectID
}

// FrameCap maps a frame. Cached selects normal cached memory
// attributes; false selects the architecture's uncached attributes.
type FrameCap struct {
	Object ObjectID
	Rights Rights
	Cached bool
}

type PageTableCap struct {
	Object ObjectID
}

type ASIDPoolCap struct {
	Object ObjectID
}

type SchedContextCap struct {
	Object ObjectID
}

type ReplyCap struct {
	Object ObjectID
}

func (c UntypedCap) Target() ObjectID       { return c.Object }
func (c EndpointCap) Target() ObjectID      { return c.Object }
func (c NotificationCap) Target() ObjectID  { return c.Object }
func (c CNodeCap) Target() ObjectID         { return c.Object }
func (c TCBCap) Target() ObjectID           { return c.Object }
func (c IRQHandlerCap) Target() ObjectID    { return c.Object }
func (c ARMIRQHandlerCap) Target() ObjectID { return c.Object }
func (c VCPUCap) Target() ObjectID          { return c.Object }
func (c FrameCap) Target() ObjectID         { return c.Object }
func (c PageTableCap) Target() ObjectID     { return c.Object }
func (c ASIDPoolCap) Target() ObjectID      { return c.Object }
func (c SchedContextCap) Target() ObjectID  { return c.Object }
func (c ReplyCap) Target() ObjectID         { return c.Object }

func (UntypedCap) TargetKind() ObjectKind       { return KindUntyped }
func (EndpointCap) TargetKind() ObjectKind      { return KindEndpoint }
func (NotificationCap) TargetKind() ObjectKind  { return KindNotification }
func (CNodeCap) TargetKind() ObjectKind         { return KindCNode }
func (TCBCap) TargetKind() ObjectKind           { return KindTCB }
func (IRQHandlerCap) TargetKind() ObjectKind    { return KindIRQ }
func (ARMIRQHandlerCap) TargetKind() ObjectKind { return KindARMIRQ }
func (VCPUCap) TargetKind() ObjectKind          { return KindVCPU }
func (FrameCap) TargetKind() ObjectKind         { return KindFrame }
func (PageTableCap) TargetKind() ObjectKind     { return KindPageTable }
func (ASIDPoolCap) TargetKind() ObjectKind      { return KindASIDPool }
func (SchedContextCap) TargetKind() ObjectKind  { return KindSchedContext }
func (ReplyCap) TargetKind() ObjectKind         { return KindReply }

func (UntypedCap) isCap()       {}
func (EndpointCap) isCap()      {}
func (NotificationCap) isCap()  {}
func (CNodeCap) isCap()         {}
func (TCBCap) isCap()           {}
func (IRQHandlerCap) isCap()    {}
func (ARMIRQHandlerCap) isCap() {}
func (VCPUCap) isCap()          {}
func (FrameCap) isCap()         {}
func (PageTableCap) isCap()     {}
func (ASIDPoolCap) isCap()      {}
func (SchedContextCap) isCap()  {}
func (ReplyCap) isCap()         {}

// NewCap constructs the capability variant for kind targeting object
// with default parameters (no badge, no rights, cached). It is the
// inverse of TargetKind and is used by decoders.
func NewCap(kind ObjectKind, object ObjectID) (Cap, bool) {
	switch kind {
	case KindUntyped:
		return UntypedCap{Object: object}, true
	case KindEndpoint:
		return EndpointCap{Object: object}, true
	case KindNotification:
		return NotificationCap{Object: object}, true
	case KindCNode:
		return CNodeCap{Object: object}, true
	case KindTCB:
		return TCBCap{Object: object}, true
	case KindIRQ:
		return IRQHandlerCap{Object: object}, true
	case KindARMIRQ:
		return ARMIRQHandlerCap{Object: object}, true
	case KindVCPU:
		return VCPUCap{Object: object}, true
	case KindFrame:
		return FrameCap{Object: object, Cached: true}, true
	case KindPageTable:
		return PageTableCap{Object: object}, true
	case KindASIDPool:
		return ASIDPoolCap{Object: object}, true
	case KindSchedContext:
		return SchedContextCap{Object: object}, true
	case KindReply:
		return ReplyCap{Object: object}, true
	}
	return nil, false
}

// CapRights returns the rights of capability kinds that carry them.
func CapRights(cap Cap) (Rights, bool) {
	switch c := cap.(type) {
	case EndpointCap:
		return c.Rights, true
	case NotificationCap:
		return c.Rights, true
	case FrameCap:
		return c.Rights, true
	}
	return Rights{}, false
}
