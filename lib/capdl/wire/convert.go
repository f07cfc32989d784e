// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/container"
)

// FromSpec converts a spec held in any container strategy into its
// document form. FileContent fills are carried as "file" sources.
func FromSpec(spec *capdl.Spec) (*Document, error) {
	document := &Document{
		Objects: make([]Object, 0, spec.NumObjects()),
	}
	for id, named := range container.Entries(spec.Objects) {
		object, err := fromObject(named)
		if err != nil {
			return nil, fmt.Errorf("object %d (%s): %w", id, named.Name, err)
		}
		document.Objects = append(document.Objects, object)
	}
	for entry := range container.Items(spec.IRQs) {
		document.IRQs = append(document.IRQs, IRQ{IRQ: entry.IRQ, Handler: uint32(entry.Handler)})
	}
	for entry := range container.Items(spec.ASIDSlots) {
		document.ASIDSlots = append(document.ASIDSlots, uint32(entry.Pool))
	}
	for cover := range container.Items(spec.UntypedCovers) {
		document.UntypedCovers = append(document.UntypedCovers, Cover{
			Parent: uint32(cover.Parent),
			Start:  uint32(cover.Start),
			End:    uint32(cover.End),
		})
	}
	return document, nil
}

func fromObject(named capdl.NamedObject) (Object, error) {
	if named.Object == nil {
		return Object{}, errors.New("missing object")
	}
	object := Object{
		Name: named.Name,
		Kind: named.Object.Kind().String(),
	}

	switch o := named.Object.(type) {
	case capdl.UntypedObject:
		object.SizeBits = &o.SizeBits
		object.PAddr = o.PAddr
	case capdl.CNodeObject:
		object.SizeBits = &o.SizeBits
	case capdl.FrameObject:
		object.SizeBits = &o.SizeBits
		object.PAddr = o.PAddr
	case capdl.TCBObject:
		extra := o.Extra
		object.TCB = &TCB{
			IPCBufferAddr: extra.IPCBufferAddr,
			Affinity:      extra.Affinity,
			Prio:          extra.Prio,
			MaxPrio:       extra.MaxPrio,
			Resume:        extra.Resume,
			IP:            extra.IP,
			SP:            extra.SP,
			SPSR:          extra.SPSR,
			MasterFaultEP: extra.MasterFaultEP,
		}
		if container.Len(extra.GPRs) > 0 {
			object.TCB.GPRs = container.Collect(extra.GPRs)
		}
	case capdl.ARMIRQObject:
		object.Trigger = o.Trigger
		object.Target = o.Target
	case capdl.PageTableObject:
		object.IsRoot = o.IsRoot
		object.Level = o.Level
	case capdl.ASIDPoolObject:
		object.High = o.High
	case capdl.SchedContextObject:
		object.SizeBits = &o.SizeBits
		object.Period = o.Period
		object.Budget = o.Budget
		object.Badge = o.Badge
	}

	for entry := range container.Items(named.Slots) {
		slot, err := fromSlot(entry)
		if err != nil {
			return Object{}, err
		}
		object.Slots = append(object.Slots, slot)
	}
	for entry := range container.Items(named.Fill) {
		fill, err := fromFill(entry)
		if err != nil {
			return Object{}, err
		}
		object.Fill = append(object.Fill, fill)
	}
	return object, nil
}

func fromSlot(entry capdl.CapTableEntry) (Slot, error) {
	if entry.Cap == nil {
		return Slot{}, fmt.Errorf("slot %d: missing capability", entry.Slot)
	}
	slot := Slot{
		Slot:   entry.Slot,
		Kind:   entry.Cap.TargetKind().String(),
		Object: uint32(entry.Cap.Target()),
	}
	switch c := entry.Cap.(type) {
	case capdl.EndpointCap:
		slot.Badge = c.Badge
	case capdl.NotificationCap:
		slot.Badge = c.Badge
	case capdl.CNodeCap:
		slot.Guard = c.Guard
		slot.GuardSize = c.GuardSize
	case capdl.FrameCap:
		if !c.Cached {
			cached := false
			slot.Cached = &cached
		}
	}
	if rights, ok := capdl.CapRights(entry.Cap); ok {
		slot.Rights = rights.String()
	}
	return slot, nil
}

func fromFill(entry capdl.FillEntry) (Fill, error) {
	fill := Fill{Offset: entry.Offset, Length: entry.Length}
	if entry.Content == nil {
		return Fill{}, fmt.Errorf("fill at %#x: missing content", entry.Offset)
	}
	fill.Source = entry.Content.ContentKind().String()
	switch content := entry.Content.(type) {
	case capdl.BytesContent:
		fill.Data = content.Data
	case capdl.DigestContent:
		digest := content.Digest
		fill.Digest = &digest
	case capdl.FileContent:
		fill.Path = content.Path
		fill.FileOffset = content.FileOffset
	case capdl.DeflatedContent:
		fill.Data = content.Data
	case capdl.BootInfoContent:
		fill.BootInfo = content.ID.String()
		fill.BootInfoOffset = content.Offset
	}
	return fill, nil
}

// ToSpec converts a document into an owned spec. Every malformed record
// is reported, joined into one error; the spec is not validated.
func ToSpec(document *Document) (*capdl.Spec, error) {
	builder := capdl.NewBuilder()
	var errs []error
	for index, object := range document.Objects {
		named, err := toObject(object)
		if err != nil {
			errs = append(errs, fmt.Errorf("objects[%d] (%s): %w", index, object.Name, err))
			continue
		}
		id := builder.AddObject(object.Name, named)
		for slotIndex, slot := range object.Slots {
			cap, err := toCap(slot)
			if err != nil {
				errs = append(errs, fmt.Errorf("objects[%d].slots[%d]: %w", index, slotIndex, err))
				continue
			}
			if err := builder.AddCap(id, slot.Slot, cap); err != nil {
				errs = append(errs, err)
			}
		}
		for fillIndex, fill := range object.Fill {
			entry, err := toFill(fill)
			if err != nil {
				errs = append(errs, fmt.Errorf("objects[%d].fill[%d]: %w", index, fillIndex, err))
				continue
			}
			if err := builder.AddFill(id, entry); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, irq := range document.IRQs {
		builder.AddIRQ(irq.IRQ, capdl.ObjectID(irq.Handler))
	}
	for _, pool := range document.ASIDSlots {
		builder.AddASIDSlot(capdl.ObjectID(pool))
	}
	for _, cover := range document.UntypedCovers {
		builder.AddUntypedCover(capdl.ObjectID(cover.Parent), capdl.ObjectID(cover.Start), capdl.ObjectID(cover.End))
	}
	return builder.Spec(), nil
}

// kindFields lists which optional object fields each kind accepts.
var kindFields = map[capdl.ObjectKind]struct {
	sizeBits, paddr bool
}{
	capdl.KindUntyped:      {sizeBits: true, paddr: true},
	capdl.KindCNode:        {sizeBits: true},
	capdl.KindFrame:        {sizeBits: true, paddr: true},
	capdl.KindSchedContext: {sizeBits: true},
}

func toObject(object Object) (capdl.Object, error) {
	kind, err := capdl.ParseObjectKind(object.Kind)
	if err != nil {
		return nil, err
	}

	fields := kindFields[kind]
	switch {
	case fields.sizeBits && object.SizeBits == nil:
		return nil, fmt.Errorf("%s requires size_bits", kind)
	case !fields.sizeBits && object.SizeBits != nil:
		return nil, fmt.Errorf("%s does not take size_bits", kind)
	case !fields.paddr && object.PAddr != nil:
		return nil, fmt.Errorf("%s does not take paddr", kind)
	case kind != capdl.KindTCB && object.TCB != nil:
		return nil, fmt.Errorf("%s does not take tcb", kind)
	case kind != capdl.KindPageTable && (object.Level != nil || object.IsRoot):
		return nil, fmt.Errorf("%s does not take level or is_root", kind)
	}

	switch kind {
	case capdl.KindUntyped:
		return capdl.UntypedObject{SizeBits: *object.SizeBits, PAddr: object.PAddr}, nil
	case capdl.KindEndpoint:
		return capdl.EndpointObject{}, nil
	case capdl.KindNotification:
		return capdl.NotificationObject{}, nil
	case capdl.KindCNode:
		return capdl.CNodeObject{SizeBits: *object.SizeBits}, nil
	case capdl.KindTCB:
		if object.TCB == nil {
			return nil, errors.New("tcb requires tcb parameters")
		}
		return capdl.TCBObject{Extra: toTCBExtra(object.TCB)}, nil
	case capdl.KindIRQ:
		return capdl.IRQObject{}, nil
	case capdl.KindARMIRQ:
		return capdl.ARMIRQObject{Trigger: object.Trigger, Target: object.Target}, nil
	case capdl.KindVCPU:
		return capdl.VCPUObject{}, nil
	case capdl.KindFrame:
		return capdl.FrameObject{SizeBits: *object.SizeBits, PAddr: object.PAddr}, nil
	case capdl.KindPageTable:
		return capdl.PageTableObject{IsRoot: object.IsRoot, Level: object.Level}, nil
	case capdl.KindASIDPool:
		return capdl.ASIDPoolObject{High: object.High}, nil
	case capdl.KindSchedContext:
		return capdl.SchedContextObject{
			SizeBits: *object.SizeBits,
			Period:   object.Period,
			Budget:   object.Budget,
			Badge:    object.Badge,
		}, nil
	case capdl.KindReply:
		return capdl.ReplyObject{}, nil
	}
	return nil, fmt.Errorf("unhandled object kind %s", kind)
}

func toTCBExtra(tcb *TCB) capdl.TCBExtra {
	extra := capdl.TCBExtra{
		IPCBufferAddr: tcb.IPCBufferAddr,
		Affinity:      tcb.Affinity,
		Prio:          tcb.Prio,
		MaxPrio:       tcb.MaxPrio,
		Resume:        tcb.Resume,
		IP:            tcb.IP,
		SP:            tcb.SP,
		SPSR:          tcb.SPSR,
		GPRs:          container.Slice[capdl.Word](tcb.GPRs),
		MasterFaultEP: tcb.MasterFaultEP,
	}
	return extra
}

func toCap(slot Slot) (capdl.Cap, error) {
	kind, err := capdl.ParseObjectKind(slot.Kind)
	if err != nil {
		return nil, err
	}
	cap, ok := capdl.NewCap(kind, capdl.ObjectID(slot.Object))
	if !ok {
		return nil, fmt.Errorf("no capability for kind %s", kind)
	}

	hasRights := false
	switch kind {
	case capdl.KindEndpoint, capdl.KindNotification, capdl.KindFrame:
		hasRights = true
	}
	switch {
	case slot.Badge != 0 && kind != capdl.KindEndpoint && kind != capdl.KindNotification:
		return nil, fmt.Errorf("%s capability does not take a badge", kind)
	case slot.Rights != "" && !hasRights:
		return nil, fmt.Errorf("%s capability does not take rights", kind)
	case (slot.Guard != 0 || slot.GuardSize != 0) && kind != capdl.KindCNode:
		return nil, fmt.Errorf("%s capability does not take a guard", kind)
	case slot.Cached != nil && kind != capdl.KindFrame:
		return nil, fmt.Errorf("%s capability does not take cached", kind)
	}

	var rights capdl.Rights
	if hasRights {
		rights, err = ParseRights(slot.Rights)
		if err != nil {
			return nil, err
		}
	}

	switch c := cap.(type) {
	case capdl.EndpointCap:
		c.Badge, c.Rights = slot.Badge, rights
		return c, nil
	case capdl.NotificationCap:
		c.Badge, c.Rights = slot.Badge, rights
		return c, nil
	case capdl.CNodeCap:
		c.Guard, c.GuardSize = slot.Guard, slot.GuardSize
		return c, nil
	case capdl.FrameCap:
		c.Rights = rights
		if slot.Cached != nil {
			c.Cached = *slot.Cached
		}
		return c, nil
	}
	return cap, nil
}

// ParseRights parses the flag string produced by [capdl.Rights.String].
// The empty string and "-" both mean no rights.
func ParseRights(flags string) (capdl.Rights, error) {
	var rights capdl.Rights
	if flags == "-" {
		return rights, nil
	}
	for _, flag := range strings.ToUpper(flags) {
		var bit *bool
		switch flag {
		case 'R':
			bit = &rights.Read
		case 'W':
			bit = &rights.Write
		case 'G':
			bit = &rights.Grant
		case 'P':
			bit = &rights.GrantReply
		default:
			return capdl.Rights{}, fmt.Errorf("unknown right %q in %q", flag, flags)
		}
		if *bit {
			return capdl.Rights{}, fmt.Errorf("right %q repeated in %q", flag, flags)
		}
		*bit = true
	}
	return rights, nil
}

func toFill(fill Fill) (capdl.FillEntry, error) {
	entry := capdl.FillEntry{Offset: fill.Offset, Length: fill.Length}
	switch fill.Source {
	case "bytes":
		entry.Content = capdl.BytesContent{Data: fill.Data}
	case "digest":
		if fill.Digest == nil {
			return capdl.FillEntry{}, errors.New("digest source without digest")
		}
		entry.Content = capdl.DigestContent{Digest: *fill.Digest}
	case "file":
		if fill.Path == "" {
			return capdl.FillEntry{}, errors.New("file source without path")
		}
		entry.Content = capdl.FileContent{Path: fill.Path, FileOffset: fill.FileOffset}
	case "deflated":
		entry.Content = capdl.DeflatedContent{Data: fill.Data}
	case "boot_info":
		id, err := capdl.ParseBootInfoID(fill.BootInfo)
		if err != nil {
			return capdl.FillEntry{}, err
		}
		entry.Content = capdl.BootInfoContent{ID: id, Offset: fill.BootInfoOffset}
	default:
		return capdl.FillEntry{}, fmt.Errorf("unknown fill source %q", fill.Source)
	}
	return entry, nil
}
