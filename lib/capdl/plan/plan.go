// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/capdl/kernel"
	"github.com/bureau-foundation/capdl/lib/container"
)

// Plan is the ordered realization of a spec on one target.
type Plan struct {
	Target kernel.Target
	Spec   *capdl.Spec
	steps  []Step
}

// Steps yields the steps in execution order.
func (p *Plan) Steps() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		for _, step := range p.steps {
			if !yield(step) {
				return
			}
		}
	}
}

// Len returns the number of steps.
func (p *Plan) Len() int { return len(p.steps) }

// Count returns the number of steps in phase.
func (p *Plan) Count(phase Phase) int {
	count := 0
	for _, step := range p.steps {
		if step.Phase() == phase {
			count++
		}
	}
	return count
}

// Build validates spec and plans its realization on target. Validation
// failures are returned unchanged: the joined [*capdl.ValidationError]
// values from [capdl.Validate], or the kernel errors from
// [kernel.ValidateSpec]. A nil logger discards output.
func Build(spec *capdl.Spec, target kernel.Target, logger *slog.Logger) (*Plan, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := capdl.Validate(spec); err != nil {
		return nil, err
	}
	if err := kernel.ValidateSpec(target, spec); err != nil {
		return nil, err
	}

	planner := &planner{
		spec:    spec,
		target:  target,
		parents: coverParents(spec),
		plan:    &Plan{Target: target, Spec: spec},
	}
	if err := planner.build(); err != nil {
		return nil, err
	}

	logger.Debug("realization planned",
		"target", target.String(),
		"objects", spec.NumObjects(),
		"creates", planner.plan.Count(PhaseCreate),
		"fills", planner.plan.Count(PhaseFill),
		"caps", planner.plan.Count(PhaseInstallCap),
		"irqs", planner.plan.Count(PhaseBindIRQ),
		"asid_slots", planner.plan.Count(PhaseAssignASID),
		"threads", planner.plan.Count(PhaseConfigureTCB),
		"resumes", planner.plan.Count(PhaseResume),
	)
	return planner.plan, nil
}

type planner struct {
	spec    *capdl.Spec
	target  kernel.Target
	parents map[capdl.ObjectID]capdl.ObjectID
	plan    *Plan

	// created lists the objects given a create step, in creation
	// order.
	created []capdl.ObjectID
}

func coverParents(spec *capdl.Spec) map[capdl.ObjectID]capdl.ObjectID {
	parents := make(map[capdl.ObjectID]capdl.ObjectID)
	for cover := range container.Items(spec.UntypedCovers) {
		for child := cover.Start; child < cover.End; child++ {
			parents[child] = cover.Parent
		}
	}
	return parents
}

func (p *planner) add(step Step) {
	p.plan.steps = append(p.plan.steps, step)
}

func (p *planner) build() error {
	for id := range capdl.CreationOrder(p.spec) {
		if err := p.create(id); err != nil {
			return err
		}
	}
	for entry := range container.Items(p.spec.IRQs) {
		p.bindIRQ(entry)
	}
	for slot, entry := range container.Entries(p.spec.ASIDSlots) {
		p.add(ASIDStep{Slot: slot, Pool: entry.Pool, Name: p.spec.Object(entry.Pool).Name})
	}
	for id := range capdl.CreationOrder(p.spec) {
		named := p.spec.Object(id)
		for entry := range container.Items(named.Fill) {
			p.add(FillStep{Object: id, Name: named.Name, Entry: entry})
		}
	}
	for holder, entry := range capdl.CapInstallations(p.spec) {
		if err := p.installCap(holder, entry); err != nil {
			return err
		}
	}

	// Threads are configured only once every capability they name is
	// in place, and resumed only once every thread is configured.
	for _, id := range p.created {
		named := p.spec.Object(id)
		if sc, ok := named.Object.(capdl.SchedContextObject); ok {
			p.add(SchedContextStep{Object: id, Name: named.Name, Period: sc.Period, Budget: sc.Budget, Badge: sc.Badge})
		}
	}
	var resumes []Step
	for _, id := range p.created {
		named := p.spec.Object(id)
		tcb, ok := named.Object.(capdl.TCBObject)
		if !ok {
			continue
		}
		p.add(configureTCB(id, named, tcb.Extra))
		if tcb.Extra.Resume {
			resumes = append(resumes, ResumeStep{Object: id, Name: named.Name})
		}
	}
	for _, step := range resumes {
		p.add(step)
	}
	return nil
}

func configureTCB(id capdl.ObjectID, named capdl.NamedObject, extra capdl.TCBExtra) TCBStep {
	step := TCBStep{
		Object:        id,
		Name:          named.Name,
		IPCBufferAddr: extra.IPCBufferAddr,
		Affinity:      extra.Affinity,
		Prio:          extra.Prio,
		MaxPrio:       extra.MaxPrio,
		IP:            extra.IP,
		SP:            extra.SP,
		SPSR:          extra.SPSR,
		GPRs:          container.Collect(extra.GPRs),
	}
	step.CSpace, step.HasCSpace = capdl.SlotTarget(named.Slots, capdl.TCBSlotCSpace)
	step.VSpace, step.HasVSpace = capdl.SlotTarget(named.Slots, capdl.TCBSlotVSpace)
	step.IPCBuffer, step.HasIPCBuffer = capdl.SlotTarget(named.Slots, capdl.TCBSlotIPCBuffer)
	step.SchedContext, step.HasSchedContext = capdl.SlotTarget(named.Slots, capdl.TCBSlotSchedContext)
	step.BoundNotification, step.HasBoundNotification = capdl.SlotTarget(named.Slots, capdl.TCBSlotBoundNotification)
	if extra.MasterFaultEP != nil {
		step.FaultEP, step.HasFaultEP = *extra.MasterFaultEP, true
	}
	return step
}

func (p *planner) create(id capdl.ObjectID) error {
	named := p.spec.Object(id)
	blueprint, creatable, err := kernel.BlueprintFor(p.target, named.Object)
	if err != nil {
		return &kernel.ObjectError{Object: id, Name: named.Name, Err: err}
	}
	if !creatable {
		return nil
	}
	objectType, err := blueprint.Type(p.target)
	if err != nil {
		return &kernel.ObjectError{Object: id, Name: named.Name, Err: err}
	}

	step := CreateStep{
		Object:           id,
		Name:             named.Name,
		Blueprint:        blueprint,
		Type:             objectType,
		APISizeBits:      blueprint.APISizeBits(),
		PhysicalSizeBits: blueprint.PhysicalSizeBits(p.target),
	}
	step.Parent, step.HasParent = p.parents[id]
	step.PAddr, step.HasPAddr = capdl.PhysicalAddress(named.Object)
	p.add(step)
	p.created = append(p.created, id)
	return nil
}

func (p *planner) bindIRQ(entry capdl.IRQEntry) {
	handler := p.spec.Object(entry.Handler)
	step := IRQStep{IRQ: entry.IRQ, Handler: entry.Handler, Name: handler.Name}
	if arm, ok := handler.Object.(capdl.ARMIRQObject); ok {
		step.ARM, step.Trigger, step.Target = true, arm.Trigger, arm.Target
	}
	if cap, ok := capdl.LookupSlot(handler.Slots, 0); ok {
		if notification, ok := cap.(capdl.NotificationCap); ok {
			step.Notification, step.HasNotification = notification.Object, true
		}
	}
	p.add(step)
}

func (p *planner) installCap(holder capdl.ObjectID, entry capdl.CapTableEntry) error {
	named := p.spec.Object(holder)
	rights, _ := kernel.RightsFor(entry.Cap)
	badge, hasBadge, err := kernel.BadgeFor(entry.Cap)
	if err != nil {
		return &kernel.ObjectError{Object: holder, Name: named.Name, Slot: entry.Slot, HasSlot: true, Err: err}
	}

	step := CapStep{
		Holder:     holder,
		HolderName: named.Name,
		Slot:       entry.Slot,
		Cap:        entry.Cap,
		Rights:     rights,
		Badge:      badge,
		HasBadge:   hasBadge,
	}
	if _, isTable := named.Object.(capdl.PageTableObject); isTable {
		step.Mapping = true
		switch c := entry.Cap.(type) {
		case capdl.FrameCap:
			step.VMAttributes = kernel.VMAttributes(p.target, c.Cached)
		case capdl.PageTableCap:
			step.VMAttributes = kernel.PageTableVMAttributes(p.target)
		default:
			return &kernel.ObjectError{
				Object: holder, Name: named.Name, Slot: entry.Slot, HasSlot: true,
				Err: fmt.Errorf("%s capability cannot be mapped into a page table", entry.Cap.TargetKind()),
			}
		}
	}
	p.add(step)
	return nil
}
