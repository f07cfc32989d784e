// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/capdl/kernel"
	"github.com/bureau-foundation/capdl/lib/capdl/plan"
)

// simulator is an in-memory realizer. It checks the ordering and
// memory accounting a kernel would enforce without touching one.
type simulator struct {
	logger  *slog.Logger
	mcs     bool
	objects map[capdl.ObjectID]*simulatedObject
	irqs    map[capdl.Word]capdl.ObjectID
	handler map[capdl.ObjectID]bool
	asids   int

	filled    uint64
	installed int

	// threads records each configured TCB and whether it has been
	// resumed.
	threads map[capdl.ObjectID]*simulatedThread
}

type simulatedThread struct {
	scheduled bool
	running   bool
}

type simulatedObject struct {
	sizeBits uint8
	kind     kernel.BlueprintKind

	// used is the bytes of an untyped already carved into children.
	used uint64

	// configured is set once a scheduling context has its budget.
	configured bool
}

func newSimulator(target kernel.Target, logger *slog.Logger) *simulator {
	return &simulator{
		logger:  logger,
		mcs:     target.Features.MCS,
		objects: make(map[capdl.ObjectID]*simulatedObject),
		irqs:    make(map[capdl.Word]capdl.ObjectID),
		handler: make(map[capdl.ObjectID]bool),
		threads: make(map[capdl.ObjectID]*simulatedThread),
	}
}

func (s *simulator) CreateObject(_ context.Context, step plan.CreateStep) error {
	if _, exists := s.objects[step.Object]; exists {
		return fmt.Errorf("%s already created", step.Object)
	}
	if step.HasParent {
		parent, ok := s.objects[step.Parent]
		if !ok {
			return fmt.Errorf("parent untyped %s not created", step.Parent)
		}
		if parent.kind != kernel.BlueprintUntyped {
			return fmt.Errorf("parent %s is a %s, not an untyped", step.Parent, parent.kind)
		}
		size := uint64(1) << step.PhysicalSizeBits
		start := (parent.used + size - 1) &^ (size - 1)
		if step.PhysicalSizeBits > parent.sizeBits || start+size > uint64(1)<<parent.sizeBits {
			return fmt.Errorf("untyped %s exhausted: %d of %d bytes used, need 2^%d",
				step.Parent, parent.used, uint64(1)<<parent.sizeBits, step.PhysicalSizeBits)
		}
		parent.used = start + size
	}
	s.objects[step.Object] = &simulatedObject{
		sizeBits: step.PhysicalSizeBits,
		kind:     step.Blueprint.Kind,
	}
	return nil
}

func (s *simulator) BindIRQ(_ context.Context, step plan.IRQStep) error {
	if holder, bound := s.irqs[step.IRQ]; bound {
		return fmt.Errorf("irq %d already bound to %s", step.IRQ, holder)
	}
	if step.HasNotification {
		if _, ok := s.objects[step.Notification]; !ok {
			return fmt.Errorf("notification %s not created", step.Notification)
		}
	}
	s.irqs[step.IRQ] = step.Handler
	s.handler[step.Handler] = true
	return nil
}

func (s *simulator) AssignASID(_ context.Context, step plan.ASIDStep) error {
	if _, ok := s.objects[step.Pool]; !ok {
		return fmt.Errorf("asid pool %s not created", step.Pool)
	}
	if step.Slot != s.asids {
		return fmt.Errorf("asid slot %d assigned out of order, expected %d", step.Slot, s.asids)
	}
	s.asids++
	return nil
}

func (s *simulator) WriteFill(_ context.Context, object capdl.ObjectID, offset uint64, data []byte) error {
	target, ok := s.objects[object]
	if !ok {
		return fmt.Errorf("fill target %s not created", object)
	}
	size := uint64(1) << target.sizeBits
	if offset > size || uint64(len(data)) > size-offset {
		return fmt.Errorf("fill [%#x, %#x) outside %s of %d bytes", offset, offset+uint64(len(data)), object, size)
	}
	s.filled += uint64(len(data))
	return nil
}

func (s *simulator) InstallCap(_ context.Context, step plan.CapStep) error {
	if !s.exists(step.Holder) {
		return fmt.Errorf("holder %s not created", step.Holder)
	}
	if !s.exists(step.Cap.Target()) {
		return fmt.Errorf("target %s not created", step.Cap.Target())
	}
	s.installed++
	return nil
}

func (s *simulator) ConfigureSchedContext(_ context.Context, step plan.SchedContextStep) error {
	if err := s.expectKind(step.Object, kernel.BlueprintSchedContext); err != nil {
		return err
	}
	if step.Budget > step.Period {
		return fmt.Errorf("budget %d exceeds period %d", step.Budget, step.Period)
	}
	s.objects[step.Object].configured = true
	return nil
}

func (s *simulator) ConfigureTCB(_ context.Context, step plan.TCBStep) error {
	if err := s.expectKind(step.Object, kernel.BlueprintTCB); err != nil {
		return err
	}
	if _, configured := s.threads[step.Object]; configured {
		return fmt.Errorf("%s already configured", step.Object)
	}
	bindings := []struct {
		role    string
		object  capdl.ObjectID
		present bool
	}{
		{"cspace", step.CSpace, step.HasCSpace},
		{"vspace", step.VSpace, step.HasVSpace},
		{"ipc buffer", step.IPCBuffer, step.HasIPCBuffer},
		{"bound notification", step.BoundNotification, step.HasBoundNotification},
	}
	for _, binding := range bindings {
		if binding.present && !s.exists(binding.object) {
			return fmt.Errorf("%s %s not created", binding.role, binding.object)
		}
	}
	if step.HasSchedContext {
		sc, ok := s.objects[step.SchedContext]
		if !ok || !sc.configured {
			return fmt.Errorf("scheduling context %s not configured", step.SchedContext)
		}
	}
	if step.HasFaultEP && !step.HasCSpace {
		return fmt.Errorf("fault endpoint %#x given without a cspace", step.FaultEP)
	}
	s.threads[step.Object] = &simulatedThread{scheduled: step.HasSchedContext}
	return nil
}

func (s *simulator) ResumeThread(_ context.Context, step plan.ResumeStep) error {
	thread, ok := s.threads[step.Object]
	if !ok {
		return fmt.Errorf("%s resumed before it was configured", step.Object)
	}
	if thread.running {
		return fmt.Errorf("%s already resumed", step.Object)
	}
	if s.mcs && !thread.scheduled {
		return fmt.Errorf("%s has no scheduling context", step.Object)
	}
	thread.running = true
	return nil
}

func (s *simulator) expectKind(id capdl.ObjectID, kind kernel.BlueprintKind) error {
	object, ok := s.objects[id]
	if !ok {
		return fmt.Errorf("%s not created", id)
	}
	if object.kind != kind {
		return fmt.Errorf("%s is a %s, not a %s", id, object.kind, kind)
	}
	return nil
}

func (s *simulator) exists(id capdl.ObjectID) bool {
	_, created := s.objects[id]
	return created || s.handler[id]
}

func (s *simulator) report() {
	s.logger.Info("simulation complete",
		"objects", len(s.objects),
		"irqs", len(s.irqs),
		"asid_slots", s.asids,
		"fill_bytes", s.filled,
		"caps", s.installed,
		"threads", len(s.threads),
	)
}
