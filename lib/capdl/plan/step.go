// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/capdl/kernel"
)

// Phase groups steps of one kind. Phases run in declaration order.
type Phase uint8

const (
	PhaseCreate Phase = iota + 1
	PhaseBindIRQ
	PhaseAssignASID
	PhaseFill
	PhaseInstallCap
	PhaseConfigureSchedContext
	PhaseConfigureTCB
	PhaseResume
)

func (p Phase) String() string {
	switch p {
	case PhaseCreate:
		return "create"
	case PhaseBindIRQ:
		return "bind_irq"
	case PhaseAssignASID:
		return "assign_asid"
	case PhaseFill:
		return "fill"
	case PhaseInstallCap:
		return "install_cap"
	case PhaseConfigureSchedContext:
		return "configure_sched_context"
	case PhaseConfigureTCB:
		return "configure_tcb"
	case PhaseResume:
		return "resume"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// Step is one planned kernel operation. The set of implementations is
// closed.
type Step interface {
	Phase() Phase

	// String describes the step with all of its parameters.
	String() string

	// identity names the object or capability the step acts on.
	identity() string

	apply(ctx context.Context, run *execution) error
}

func objectLabel(id capdl.ObjectID, name string) string {
	if name == "" {
		return id.String()
	}
	return fmt.Sprintf("%s %s", id, name)
}

// CreateStep retypes one kernel object.
type CreateStep struct {
	Object    capdl.ObjectID
	Name      string
	Blueprint kernel.Blueprint
	Type      kernel.ObjectType

	// APISizeBits is the size argument to the retype call and
	// PhysicalSizeBits the log2 of the memory consumed.
	APISizeBits      capdl.Word
	PhysicalSizeBits uint8

	// Parent is the untyped the object is carved from, when the spec
	// records one.
	Parent    capdl.ObjectID
	HasParent bool

	// PAddr pins the object to a physical address.
	PAddr    capdl.Word
	HasPAddr bool
}

func (CreateStep) Phase() Phase { return PhaseCreate }

func (s CreateStep) identity() string {
	return "create " + objectLabel(s.Object, s.Name)
}

func (s CreateStep) String() string {
	description := fmt.Sprintf("%s as %s type=%d size=2^%d", s.identity(), s.Blueprint, s.Type, s.PhysicalSizeBits)
	if s.HasParent {
		description += fmt.Sprintf(" from %s", s.Parent)
	}
	if s.HasPAddr {
		description += fmt.Sprintf(" at %#x", s.PAddr)
	}
	return description
}

func (s CreateStep) apply(ctx context.Context, run *execution) error {
	return run.realizer.CreateObject(ctx, s)
}

// IRQStep binds an interrupt number to its handler object.
type IRQStep struct {
	IRQ     capdl.Word
	Handler capdl.ObjectID
	Name    string

	// ARM GIC settings, present for arm_irq handlers.
	ARM     bool
	Trigger capdl.Word
	Target  capdl.Word

	// Notification is the object interrupts are delivered to, from
	// the handler's slot 0.
	Notification    capdl.ObjectID
	HasNotification bool
}

func (IRQStep) Phase() Phase { return PhaseBindIRQ }

func (s IRQStep) identity() string {
	return fmt.Sprintf("bind irq %d to %s", s.IRQ, objectLabel(s.Handler, s.Name))
}

func (s IRQStep) String() string {
	description := s.identity()
	if s.ARM {
		description += fmt.Sprintf(" trigger=%d target=%d", s.Trigger, s.Target)
	}
	if s.HasNotification {
		description += fmt.Sprintf(" notify %s", s.Notification)
	}
	return description
}

func (s IRQStep) apply(ctx context.Context, run *execution) error {
	return run.realizer.BindIRQ(ctx, s)
}

// ASIDStep makes Pool the ASID pool serving Slot.
type ASIDStep struct {
	Slot int
	Pool capdl.ObjectID
	Name string
}

func (ASIDStep) Phase() Phase { return PhaseAssignASID }

func (s ASIDStep) identity() string {
	return fmt.Sprintf("assign asid slot %d to %s", s.Slot, objectLabel(s.Pool, s.Name))
}

func (s ASIDStep) String() string { return s.identity() }

func (s ASIDStep) apply(ctx context.Context, run *execution) error {
	return run.realizer.AssignASID(ctx, s)
}

// FillStep writes one fill entry into a frame. The content is resolved
// when the step executes.
type FillStep struct {
	Object capdl.ObjectID
	Name   string
	Entry  capdl.FillEntry
}

func (FillStep) Phase() Phase { return PhaseFill }

func (s FillStep) identity() string {
	return fmt.Sprintf("fill %s at %#x", objectLabel(s.Object, s.Name), s.Entry.Offset)
}

func (s FillStep) String() string {
	end, _ := s.Entry.End()
	return fmt.Sprintf("fill %s [%#x, %#x) from %s", objectLabel(s.Object, s.Name), s.Entry.Offset, end, capdl.DescribeContent(s.Entry.Content))
}

func (s FillStep) apply(ctx context.Context, run *execution) error {
	data, err := run.resolver.Resolve(s.Entry)
	if err != nil {
		return fmt.Errorf("resolving content: %w", err)
	}
	return run.realizer.WriteFill(ctx, s.Object, s.Entry.Offset, data)
}

// CapStep installs one capability. For page-table holders the step is
// a mapping and Slot is the table index.
type CapStep struct {
	Holder     capdl.ObjectID
	HolderName string
	Slot       capdl.Slot
	Cap        capdl.Cap

	Rights capdl.Word

	// Badge is the minted badge word (the packed guard for CNode
	// capabilities).
	Badge    capdl.Word
	HasBadge bool

	// Mapping is set when Holder is a page table. VMAttributes is then
	// the mapping attribute word.
	Mapping      bool
	VMAttributes capdl.Word
}

func (CapStep) Phase() Phase { return PhaseInstallCap }

func (s CapStep) identity() string {
	return fmt.Sprintf("install %s slot %d", objectLabel(s.Holder, s.HolderName), s.Slot)
}

func (s CapStep) String() string {
	description := fmt.Sprintf("%s <- %s %s rights=%#x", s.identity(), s.Cap.TargetKind(), s.Cap.Target(), s.Rights)
	if s.HasBadge {
		description += fmt.Sprintf(" badge=%#x", s.Badge)
	}
	if s.Mapping {
		description += fmt.Sprintf(" attrs=%#x", s.VMAttributes)
	}
	return description
}

func (s CapStep) apply(ctx context.Context, run *execution) error {
	return run.realizer.InstallCap(ctx, s)
}

// SchedContextStep sets the budget of a scheduling context.
type SchedContextStep struct {
	Object capdl.ObjectID
	Name   string
	Period uint64
	Budget uint64
	Badge  capdl.Badge
}

func (SchedContextStep) Phase() Phase { return PhaseConfigureSchedContext }

func (s SchedContextStep) identity() string {
	return "configure " + objectLabel(s.Object, s.Name)
}

func (s SchedContextStep) String() string {
	return fmt.Sprintf("%s period=%d budget=%d badge=%#x", s.identity(), s.Period, s.Budget, s.Badge)
}

func (s SchedContextStep) apply(ctx context.Context, run *execution) error {
	return run.realizer.ConfigureSchedContext(ctx, s)
}

// TCBStep configures a thread from its TCB extra and the objects in its
// fixed slots. It runs after every capability is installed, so the
// thread's CSpace can already resolve FaultEP.
type TCBStep struct {
	Object capdl.ObjectID
	Name   string

	CSpace    capdl.ObjectID
	HasCSpace bool
	VSpace    capdl.ObjectID
	HasVSpace bool

	// IPCBuffer is the frame backing the buffer at IPCBufferAddr.
	IPCBuffer     capdl.ObjectID
	HasIPCBuffer  bool
	IPCBufferAddr capdl.Word

	SchedContext    capdl.ObjectID
	HasSchedContext bool

	BoundNotification    capdl.ObjectID
	HasBoundNotification bool

	// FaultEP is a CPtr in the thread's own CSpace.
	FaultEP    capdl.CPtr
	HasFaultEP bool

	Affinity capdl.Word
	Prio     uint8
	MaxPrio  uint8

	IP   capdl.Word
	SP   capdl.Word
	SPSR capdl.Word
	GPRs []capdl.Word
}

func (TCBStep) Phase() Phase { return PhaseConfigureTCB }

func (s TCBStep) identity() string {
	return "configure " + objectLabel(s.Object, s.Name)
}

func (s TCBStep) String() string {
	description := fmt.Sprintf("%s prio=%d max_prio=%d affinity=%d ip=%#x sp=%#x", s.identity(), s.Prio, s.MaxPrio, s.Affinity, s.IP, s.SP)
	if s.HasCSpace {
		description += fmt.Sprintf(" cspace=%s", s.CSpace)
	}
	if s.HasVSpace {
		description += fmt.Sprintf(" vspace=%s", s.VSpace)
	}
	if s.HasIPCBuffer {
		description += fmt.Sprintf(" ipc_buffer=%s@%#x", s.IPCBuffer, s.IPCBufferAddr)
	}
	if s.HasSchedContext {
		description += fmt.Sprintf(" sc=%s", s.SchedContext)
	}
	if s.HasBoundNotification {
		description += fmt.Sprintf(" bound=%s", s.BoundNotification)
	}
	if s.HasFaultEP {
		description += fmt.Sprintf(" fault_ep=%#x", s.FaultEP)
	}
	if len(s.GPRs) > 0 {
		description += fmt.Sprintf(" gprs=%d", len(s.GPRs))
	}
	return description
}

func (s TCBStep) apply(ctx context.Context, run *execution) error {
	return run.realizer.ConfigureTCB(ctx, s)
}

// ResumeStep starts a configured thread.
type ResumeStep struct {
	Object capdl.ObjectID
	Name   string
}

func (ResumeStep) Phase() Phase { return PhaseResume }

func (s ResumeStep) identity() string {
	return "resume " + objectLabel(s.Object, s.Name)
}

func (s ResumeStep) String() string { return s.identity() }

func (s ResumeStep) apply(ctx context.Context, run *execution) error {
	return run.realizer.ResumeThread(ctx, s)
}
