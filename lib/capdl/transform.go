// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import (
	"fmt"

	"github.com/bureau-foundation/capdl/lib/container"
)

// FillFunc rewrites one fill entry of object id.
type FillFunc func(id ObjectID, named NamedObject, entry FillEntry) (FillEntry, error)

// TransformFill returns an owned copy of spec in which every fill entry
// has been passed through fn. The build tool uses it to replace file
// references with inline, deflated, or digest-addressed content before
// embedding. spec itself is not modified.
func TransformFill(spec *Spec, fn FillFunc) (*Spec, error) {
	builder := NewBuilder()
	for id, named := range container.Entries(spec.Objects) {
		newID := builder.AddObject(named.Name, cloneObject(named.Object))
		for entry := range container.Items(named.Slots) {
			if err := builder.AddCap(newID, entry.Slot, entry.Cap); err != nil {
				return nil, err
			}
		}
		for entry := range container.Items(named.Fill) {
			rewritten, err := fn(ObjectID(id), named, entry)
			if err != nil {
				return nil, fmt.Errorf("object %s fill at %#x: %w", spec.Name(ObjectID(id)), entry.Offset, err)
			}
			if err := builder.AddFill(newID, rewritten); err != nil {
				return nil, err
			}
		}
	}
	for entry := range container.Items(spec.IRQs) {
		builder.AddIRQ(entry.IRQ, entry.Handler)
	}
	for entry := range container.Items(spec.ASIDSlots) {
		builder.AddASIDSlot(entry.Pool)
	}
	for cover := range container.Items(spec.UntypedCovers) {
		builder.AddUntypedCover(cover.Parent, cover.Start, cover.End)
	}
	return builder.Spec(), nil
}

// Clone returns an owned deep copy of spec. Cloning a spec viewed over
// an image detaches it from the image bytes.
func Clone(spec *Spec) *Spec {
	cloned, err := TransformFill(spec, func(_ ObjectID, _ NamedObject, entry FillEntry) (FillEntry, error) {
		entry.Content = cloneContent(entry.Content)
		return entry, nil
	})
	if err != nil {
		// The identity transform never fails.
		panic(err)
	}
	return cloned
}

func cloneObject(obj Object) Object {
	switch o := obj.(type) {
	case TCBObject:
		o.Extra.GPRs = container.NewVec(container.Collect(o.Extra.GPRs)...)
		if o.Extra.MasterFaultEP != nil {
			faultEP := *o.Extra.MasterFaultEP
			o.Extra.MasterFaultEP = &faultEP
		}
		return o
	case UntypedObject:
		o.PAddr = clonePointer(o.PAddr)
		return o
	case FrameObject:
		o.PAddr = clonePointer(o.PAddr)
		return o
	case PageTableObject:
		o.Level = clonePointer(o.Level)
		return o
	}
	return obj
}

func clonePointer[T any](p *T) *T {
	if p == nil {
		return nil
	}
	value := *p
	return &value
}

func cloneContent(content FillContent) FillContent {
	switch c := content.(type) {
	case BytesContent:
		return BytesContent{Data: append([]byte(nil), c.Data...)}
	case DeflatedContent:
		return DeflatedContent{Data: append([]byte(nil), c.Data...)}
	}
	return content
}
