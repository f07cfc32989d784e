// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import (
	"fmt"

	"github.com/bureau-foundation/capdl/lib/container"
)

// Builder constructs a [Spec] with the owned container strategy. The
// builder does not validate; call [Validate] on the result.
type Builder struct {
	objects *container.Vec[NamedObject]
	irqs    *container.Vec[IRQEntry]
	asids   *container.Vec[ASIDSlotEntry]
	covers  *container.Vec[UntypedCover]
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		objects: &container.Vec[NamedObject]{},
		irqs:    &container.Vec[IRQEntry]{},
		asids:   &container.Vec[ASIDSlotEntry]{},
		covers:  &container.Vec[UntypedCover]{},
	}
}

// AddObject appends an object and returns its ID.
func (b *Builder) AddObject(name string, obj Object) ObjectID {
	id := ObjectID(b.objects.Len())
	b.objects.Append(NamedObject{
		Name:   name,
		Object: obj,
		Slots:  &container.Vec[CapTableEntry]{},
		Fill:   &container.Vec[FillEntry]{},
	})
	return id
}

func (b *Builder) object(id ObjectID) (NamedObject, error) {
	obj, err := b.objects.Get(int(id))
	if err != nil {
		return NamedObject{}, fmt.Errorf("object %s: %w", id, err)
	}
	return obj, nil
}

// AddCap installs cap at slot in holder's capability table.
func (b *Builder) AddCap(holder ObjectID, slot Slot, cap Cap) error {
	obj, err := b.object(holder)
	if err != nil {
		return fmt.Errorf("adding cap: %w", err)
	}
	obj.Slots.(container.Growable[CapTableEntry]).Append(CapTableEntry{Slot: slot, Cap: cap})
	return nil
}

// AddFill appends a fill entry to holder.
func (b *Builder) AddFill(holder ObjectID, entry FillEntry) error {
	obj, err := b.object(holder)
	if err != nil {
		return fmt.Errorf("adding fill: %w", err)
	}
	obj.Fill.(container.Growable[FillEntry]).Append(entry)
	return nil
}

// AddIRQ binds an interrupt number to an IRQ object.
func (b *Builder) AddIRQ(irq Word, handler ObjectID) {
	b.irqs.Append(IRQEntry{IRQ: irq, Handler: handler})
}

// AddASIDSlot assigns the next ASID slot to pool.
func (b *Builder) AddASIDSlot(pool ObjectID) {
	b.asids.Append(ASIDSlotEntry{Pool: pool})
}

// AddUntypedCover records that [start, end) are carved from parent.
func (b *Builder) AddUntypedCover(parent, start, end ObjectID) {
	b.covers.Append(UntypedCover{Parent: parent, Start: start, End: end})
}

// Spec returns the specification. The builder and the returned spec
// share storage; stop using the builder once the spec is handed off.
func (b *Builder) Spec() *Spec {
	return &Spec{
		Objects:       b.objects,
		IRQs:          b.irqs,
		ASIDSlots:     b.asids,
		UntypedCovers: b.covers,
	}
}
