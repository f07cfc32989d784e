// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capdl

import (
	"fmt"
	"io"
	"strings"

	"github.com/bureau-foundation/capdl/lib/container"
)

// Dump writes a human-readable listing of spec to w: every object with
// its parameters, capability table, and fill entries, followed by the
// IRQ, ASID, and untyped cover tables.
func Dump(w io.Writer, spec *Spec) error {
	dumper := &dumper{w: w, spec: spec}
	dumper.printf("objects (%d):\n", spec.NumObjects())
	for id, named := range container.Entries(spec.Objects) {
		dumper.printf("  %d %s\n", id, describeNamed(named))
		for entry := range container.Items(named.Slots) {
			dumper.printf("      slot %d: %s\n", entry.Slot, dumper.describeCap(entry.Cap))
		}
		for entry := range container.Items(named.Fill) {
			dumper.printf("      fill [%#x, %#x) %s\n", entry.Offset, entry.Offset+entry.Length, DescribeContent(entry.Content))
		}
	}
	if n := container.Len(spec.IRQs); n > 0 {
		dumper.printf("irqs (%d):\n", n)
		for entry := range container.Items(spec.IRQs) {
			dumper.printf("  %d -> %s\n", entry.IRQ, dumper.objectRef(entry.Handler))
		}
	}
	if n := container.Len(spec.ASIDSlots); n > 0 {
		dumper.printf("asid slots (%d):\n", n)
		for slot, entry := range container.Entries(spec.ASIDSlots) {
			dumper.printf("  %d -> %s\n", slot, dumper.objectRef(entry.Pool))
		}
	}
	if n := container.Len(spec.UntypedCovers); n > 0 {
		dumper.printf("untyped covers (%d):\n", n)
		for cover := range container.Items(spec.UntypedCovers) {
			dumper.printf("  %s -> [%d, %d)\n", dumper.objectRef(cover.Parent), uint32(cover.Start), uint32(cover.End))
		}
	}
	return dumper.err
}

type dumper struct {
	w    io.Writer
	spec *Spec
	err  error
}

func (d *dumper) printf(format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, format, args...)
}

func (d *dumper) objectRef(id ObjectID) string {
	if int(id) < d.spec.NumObjects() {
		if name := d.spec.Object(id).Name; name != "" {
			return fmt.Sprintf("%d (%s)", uint32(id), name)
		}
	}
	return fmt.Sprintf("%d", uint32(id))
}

func (d *dumper) describeCap(cap Cap) string {
	if cap == nil {
		return "<nil>"
	}
	description := fmt.Sprintf("%s -> %s", cap.TargetKind(), d.objectRef(cap.Target()))
	switch c := cap.(type) {
	case EndpointCap:
		description += fmt.Sprintf(" badge=%#x rights=%s", c.Badge, c.Rights)
	case NotificationCap:
		description += fmt.Sprintf(" badge=%#x rights=%s", c.Badge, c.Rights)
	case CNodeCap:
		description += fmt.Sprintf(" guard=%#x guard_size=%d", c.Guard, c.GuardSize)
	case FrameCap:
		description += fmt.Sprintf(" rights=%s cached=%t", c.Rights, c.Cached)
	}
	return description
}

func describeNamed(named NamedObject) string {
	description := DescribeObject(named.Object)
	if named.Name != "" {
		description = fmt.Sprintf("%q %s", named.Name, description)
	}
	return description
}

// DescribeObject renders an object variant and its parameters on one
// line, for example "frame size_bits=12 paddr=0x9000000".
func DescribeObject(obj Object) string {
	if obj == nil {
		return "<nil>"
	}
	var parts []string
	parts = append(parts, obj.Kind().String())
	switch o := obj.(type) {
	case UntypedObject:
		parts = append(parts, fmt.Sprintf("size_bits=%d", o.SizeBits))
		if o.PAddr != nil {
			parts = append(parts, fmt.Sprintf("paddr=%#x", *o.PAddr))
		}
	case CNodeObject:
		parts = append(parts, fmt.Sprintf("size_bits=%d", o.SizeBits))
	case TCBObject:
		parts = append(parts,
			fmt.Sprintf("prio=%d max_prio=%d", o.Extra.Prio, o.Extra.MaxPrio),
			fmt.Sprintf("ip=%#x sp=%#x ipc_buffer=%#x", o.Extra.IP, o.Extra.SP, o.Extra.IPCBufferAddr),
			fmt.Sprintf("affinity=%d resume=%t gprs=%d", o.Extra.Affinity, o.Extra.Resume, container.Len(o.Extra.GPRs)))
		if o.Extra.MasterFaultEP != nil {
			parts = append(parts, fmt.Sprintf("fault_ep=%#x", *o.Extra.MasterFaultEP))
		}
	case ARMIRQObject:
		parts = append(parts, fmt.Sprintf("trigger=%d target=%d", o.Trigger, o.Target))
	case FrameObject:
		parts = append(parts, fmt.Sprintf("size_bits=%d", o.SizeBits))
		if o.PAddr != nil {
			parts = append(parts, fmt.Sprintf("paddr=%#x", *o.PAddr))
		}
	case PageTableObject:
		if o.IsRoot {
			parts = append(parts, "root")
		}
		if o.Level != nil {
			parts = append(parts, fmt.Sprintf("level=%d", *o.Level))
		}
	case ASIDPoolObject:
		parts = append(parts, fmt.Sprintf("high=%#x", o.High))
	case SchedContextObject:
		parts = append(parts, fmt.Sprintf("size_bits=%d period=%d budget=%d badge=%#x", o.SizeBits, o.Period, o.Budget, o.Badge))
	}
	return strings.Join(parts, " ")
}

// DescribeContent renders a fill content source on one line.
func DescribeContent(content FillContent) string {
	switch c := content.(type) {
	case BytesContent:
		return fmt.Sprintf("bytes(%d)", len(c.Data))
	case DigestContent:
		return fmt.Sprintf("digest(%s)", c.Digest)
	case FileContent:
		return fmt.Sprintf("file(%s+%#x)", c.Path, c.FileOffset)
	case DeflatedContent:
		return fmt.Sprintf("deflated(%d)", len(c.Data))
	case BootInfoContent:
		return fmt.Sprintf("boot_info(%s+%#x)", c.ID, c.Offset)
	case nil:
		return "<nil>"
	}
	return content.ContentKind().String()
}
