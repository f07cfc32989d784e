// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/container"
)

func level(l uint8) *uint8 { return &l }

var (
	aarch64    = Target{Arch: AArch64}
	aarch64Hyp = Target{Arch: AArch64, Features: Features{ARMHypervisor: true}}
	riscv64    = Target{Arch: RISCV64}
	x86_64     = Target{Arch: X86_64}
	x86_64MCS  = Target{Arch: X86_64, Features: Features{MCS: true, X86HugePages: true}}
)

// legalObjects returns one instance of every object variant legal on
// t, paired with the blueprint it must map to.
func legalObjects(t Target) map[string]struct {
	obj  capdl.Object
	want Blueprint
} {
	type pair = struct {
		obj  capdl.Object
		want Blueprint
	}
	objects := map[string]pair{
		"untyped":      {capdl.UntypedObject{SizeBits: 20}, Blueprint{Kind: BlueprintUntyped, SizeBits: 20}},
		"endpoint":     {capdl.EndpointObject{}, Blueprint{Kind: BlueprintEndpoint}},
		"notification": {capdl.NotificationObject{}, Blueprint{Kind: BlueprintNotification}},
		"cnode":        {capdl.CNodeObject{SizeBits: 8}, Blueprint{Kind: BlueprintCNode, SizeBits: 8}},
		"tcb":          {capdl.TCBObject{}, Blueprint{Kind: BlueprintTCB}},
		"asid_pool":    {capdl.ASIDPoolObject{}, Blueprint{Kind: BlueprintUntyped, SizeBits: ASIDPoolBits}},
		"small frame":  {capdl.FrameObject{SizeBits: 12}, Blueprint{Kind: BlueprintSmallPage}},
		"large frame":  {capdl.FrameObject{SizeBits: 21}, Blueprint{Kind: BlueprintLargePage}},
	}
	if t.Features.MCS {
		objects["sched_context"] = pair{capdl.SchedContextObject{SizeBits: 8}, Blueprint{Kind: BlueprintSchedContext, SizeBits: 8}}
		objects["reply"] = pair{capdl.ReplyObject{}, Blueprint{Kind: BlueprintReply}}
	}
	switch t.Arch {
	case RISCV64:
		objects["huge frame"] = pair{capdl.FrameObject{SizeBits: 30}, Blueprint{Kind: BlueprintHugePage}}
		objects["page table"] = pair{capdl.PageTableObject{}, Blueprint{Kind: BlueprintPageTable}}
	case AArch64, X86_64:
		objects["root"] = pair{capdl.PageTableObject{IsRoot: true, Level: level(0)}, Blueprint{Kind: BlueprintPageGlobalDirectory}}
		objects["level 1"] = pair{capdl.PageTableObject{Level: level(1)}, Blueprint{Kind: BlueprintPageUpperDirectory}}
		objects["level 2"] = pair{capdl.PageTableObject{Level: level(2)}, Blueprint{Kind: BlueprintPageDirectory}}
		objects["level 3"] = pair{capdl.PageTableObject{Level: level(3)}, Blueprint{Kind: BlueprintPageTable}}
	}
	if t.Features.ARMHypervisor {
		objects["vcpu"] = pair{capdl.VCPUObject{}, Blueprint{Kind: BlueprintVCPU}}
	}
	return objects
}

func TestBlueprintForTotal(t *testing.T) {
	for _, target := range []Target{aarch64, aarch64Hyp, riscv64, x86_64, x86_64MCS} {
		types := make(map[ObjectType]BlueprintKind)
		for name, test := range legalObjects(target) {
			blueprint, ok, err := BlueprintFor(target, test.obj)
			if err != nil || !ok {
				t.Errorf("%s %s: BlueprintFor = %v, %t, %v", target, name, blueprint, ok, err)
				continue
			}
			if blueprint != test.want {
				t.Errorf("%s %s: blueprint = %v, want %v", target, name, blueprint, test.want)
			}
			objectType, err := blueprint.Type(target)
			if err != nil {
				t.Errorf("%s %s: Type: %v", target, name, err)
				continue
			}
			if other, seen := types[objectType]; seen && other != blueprint.Kind {
				t.Errorf("%s: type %d used by both %s and %s", target, objectType, other, blueprint.Kind)
			}
			types[objectType] = blueprint.Kind
		}
	}
}

func TestBlueprintForIRQPlaceholders(t *testing.T) {
	for _, obj := range []capdl.Object{capdl.IRQObject{}, capdl.ARMIRQObject{Trigger: 1}} {
		_, ok, err := BlueprintFor(aarch64, obj)
		if ok || err != nil {
			t.Errorf("BlueprintFor(%s) = %t, %v; want not creatable", obj.Kind(), ok, err)
		}
	}
	_, _, err := BlueprintFor(x86_64, capdl.ARMIRQObject{})
	var mismatch *ConfigMismatchError
	if !errors.As(err, &mismatch) || mismatch.Kind != capdl.KindARMIRQ {
		t.Errorf("BlueprintFor(x86_64, arm_irq) = %v, want ConfigMismatchError", err)
	}
}

func TestBlueprintForIllegalVariants(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		obj    capdl.Object
		kind   capdl.ObjectKind
	}{
		{"vcpu without hypervisor", aarch64, capdl.VCPUObject{}, capdl.KindVCPU},
		{"vcpu on x86", x86_64, capdl.VCPUObject{}, capdl.KindVCPU},
		{"sched context without mcs", riscv64, capdl.SchedContextObject{SizeBits: 8}, capdl.KindSchedContext},
		{"reply without mcs", aarch64, capdl.ReplyObject{}, capdl.KindReply},
		{"untyped below minimum", aarch64, capdl.UntypedObject{SizeBits: 3}, capdl.KindUntyped},
		{"untyped above maximum", aarch64, capdl.UntypedObject{SizeBits: 48}, capdl.KindUntyped},
		{"untyped above riscv maximum", riscv64, capdl.UntypedObject{SizeBits: 39}, capdl.KindUntyped},
		{"untyped far above maximum", x86_64, capdl.UntypedObject{SizeBits: 200}, capdl.KindUntyped},
		{"empty cnode", aarch64, capdl.CNodeObject{SizeBits: 0}, capdl.KindCNode},
		{"cnode larger than any untyped", aarch64, capdl.CNodeObject{SizeBits: 43}, capdl.KindCNode},
		{"cnode size wrapping", aarch64, capdl.CNodeObject{SizeBits: 252}, capdl.KindCNode},
		{"sched context below minimum", x86_64MCS, capdl.SchedContextObject{SizeBits: 6}, capdl.KindSchedContext},
		{"sched context above maximum", x86_64MCS, capdl.SchedContextObject{SizeBits: 48}, capdl.KindSchedContext},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, ok, err := BlueprintFor(test.target, test.obj)
			var mismatch *ConfigMismatchError
			if ok || !errors.As(err, &mismatch) {
				t.Fatalf("BlueprintFor = %t, %v; want ConfigMismatchError", ok, err)
			}
			if mismatch.Kind != test.kind {
				t.Errorf("mismatch kind = %s, want %s", mismatch.Kind, test.kind)
			}
		})
	}
}

func TestBlueprintForSizeLimits(t *testing.T) {
	tests := []struct {
		target Target
		obj    capdl.Object
		bits   uint8
	}{
		{aarch64, capdl.UntypedObject{SizeBits: 4}, 4},
		{aarch64, capdl.UntypedObject{SizeBits: 47}, 47},
		{riscv64, capdl.UntypedObject{SizeBits: 38}, 38},
		{aarch64, capdl.CNodeObject{SizeBits: 1}, 6},
		{aarch64, capdl.CNodeObject{SizeBits: 42}, 47},
		{x86_64MCS, capdl.SchedContextObject{SizeBits: 7}, 7},
	}
	for _, test := range tests {
		blueprint, ok, err := BlueprintFor(test.target, test.obj)
		if err != nil || !ok {
			t.Errorf("%s %s: BlueprintFor = %t, %v", test.target, capdl.DescribeObject(test.obj), ok, err)
			continue
		}
		if got := blueprint.PhysicalSizeBits(test.target); got != test.bits {
			t.Errorf("%s %s: PhysicalSizeBits = %d, want %d", test.target, capdl.DescribeObject(test.obj), got, test.bits)
		}
	}
}

func TestBlueprintForUnsupportedFrameSize(t *testing.T) {
	tests := []struct {
		target   Target
		sizeBits uint8
	}{
		{aarch64, 30},
		{aarch64, 16},
		{x86_64, 30},
		{riscv64, 13},
	}
	for _, test := range tests {
		_, ok, err := BlueprintFor(test.target, capdl.FrameObject{SizeBits: test.sizeBits})
		var unsupported *UnsupportedFrameSizeError
		if ok || !errors.As(err, &unsupported) {
			t.Errorf("%s frame 2^%d: BlueprintFor = %t, %v; want UnsupportedFrameSizeError", test.target, test.sizeBits, ok, err)
			continue
		}
		if unsupported.SizeBits != test.sizeBits || unsupported.Arch != test.target.Arch {
			t.Errorf("error = %+v", unsupported)
		}
	}
}

func TestBlueprintForRootLevel(t *testing.T) {
	// A root table at level 0 maps to the top-level table kind.
	for _, target := range []Target{aarch64, x86_64} {
		blueprint, ok, err := BlueprintFor(target, capdl.PageTableObject{IsRoot: true, Level: level(0)})
		if err != nil || !ok || blueprint.Kind != BlueprintPageGlobalDirectory {
			t.Errorf("%s root: BlueprintFor = %v, %t, %v", target, blueprint, ok, err)
		}
	}

	tests := []struct {
		name   string
		target Target
		table  capdl.PageTableObject
	}{
		{"root at level 1", aarch64, capdl.PageTableObject{IsRoot: true, Level: level(1)}},
		{"non-root at level 0", x86_64, capdl.PageTableObject{Level: level(0)}},
		{"level out of range", aarch64, capdl.PageTableObject{Level: level(4)}},
		{"missing level", x86_64, capdl.PageTableObject{IsRoot: true}},
		{"level on flat architecture", riscv64, capdl.PageTableObject{Level: level(0), IsRoot: true}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, ok, err := BlueprintFor(test.target, test.table)
			var rootLevel *RootLevelError
			if ok || !errors.As(err, &rootLevel) {
				t.Fatalf("BlueprintFor = %t, %v; want RootLevelError", ok, err)
			}
		})
	}
}

func TestObjectTypeNumbering(t *testing.T) {
	tests := []struct {
		target Target
		kind   BlueprintKind
		want   ObjectType
	}{
		{aarch64, BlueprintCNode, 4},
		{aarch64, BlueprintHugePage, 5},
		{aarch64, BlueprintPageGlobalDirectory, 7},
		{aarch64, BlueprintSmallPage, 8},
		{aarch64, BlueprintPageDirectory, 11},
		{aarch64Hyp, BlueprintVCPU, 12},
		{Target{Arch: AArch64, Features: Features{MCS: true}}, BlueprintSmallPage, 10},
		{riscv64, BlueprintHugePage, 5},
		{riscv64, BlueprintSmallPage, 6},
		{riscv64, BlueprintPageTable, 8},
		{x86_64, BlueprintPageUpperDirectory, 5},
		{x86_64, BlueprintPageGlobalDirectory, 6},
		{x86_64, BlueprintSmallPage, 7},
		{x86_64MCS, BlueprintSchedContext, 5},
		{x86_64MCS, BlueprintReply, 6},
		{x86_64MCS, BlueprintHugePage, 9},
		{x86_64MCS, BlueprintSmallPage, 10},
	}
	for _, test := range tests {
		got, err := ObjectTypeFor(test.target, test.kind)
		if err != nil || got != test.want {
			t.Errorf("ObjectTypeFor(%s, %s) = %d, %v; want %d", test.target, test.kind, got, err, test.want)
		}
	}

	for _, missing := range []struct {
		target Target
		kind   BlueprintKind
	}{
		{aarch64, BlueprintVCPU},
		{aarch64, BlueprintReply},
		{x86_64, BlueprintHugePage},
		{riscv64, BlueprintPageDirectory},
	} {
		if _, err := ObjectTypeFor(missing.target, missing.kind); err == nil {
			t.Errorf("ObjectTypeFor(%s, %s) succeeded", missing.target, missing.kind)
		}
	}
}

func TestPhysicalSizeBits(t *testing.T) {
	tests := []struct {
		target    Target
		blueprint Blueprint
		want      uint8
	}{
		{aarch64, Blueprint{Kind: BlueprintTCB}, 11},
		{riscv64, Blueprint{Kind: BlueprintTCB}, 10},
		{x86_64, Blueprint{Kind: BlueprintCNode, SizeBits: 4}, 9},
		{x86_64, Blueprint{Kind: BlueprintEndpoint}, 4},
		{x86_64, Blueprint{Kind: BlueprintLargePage}, 21},
		{riscv64, Blueprint{Kind: BlueprintUntyped, SizeBits: 24}, 24},
	}
	for _, test := range tests {
		if got := test.blueprint.PhysicalSizeBits(test.target); got != test.want {
			t.Errorf("%s %s: PhysicalSizeBits = %d, want %d", test.target, test.blueprint, got, test.want)
		}
	}
	if got := (Blueprint{Kind: BlueprintCNode, SizeBits: 4}).APISizeBits(); got != 4 {
		t.Errorf("cnode APISizeBits = %d, want 4", got)
	}
	if got := (Blueprint{Kind: BlueprintTCB}).APISizeBits(); got != 0 {
		t.Errorf("tcb APISizeBits = %d, want 0", got)
	}
}

func TestTargetValidate(t *testing.T) {
	if err := x86_64MCS.Validate(); err != nil {
		t.Errorf("Validate(%s): %v", x86_64MCS, err)
	}
	for _, bad := range []Target{
		{},
		{Arch: RISCV64, Features: Features{ARMHypervisor: true}},
		{Arch: AArch64, Features: Features{X86HugePages: true}},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("Validate(%s) succeeded", bad)
		}
	}

	arch, err := ParseArch("arm64")
	if err != nil || arch != AArch64 {
		t.Errorf("ParseArch(arm64) = %s, %v", arch, err)
	}
	if _, err := ParseArch("mips"); err == nil {
		t.Error("ParseArch(mips) succeeded")
	}
}

func TestValidateSpec(t *testing.T) {
	builder := capdl.NewBuilder()
	root := builder.AddObject("vspace", capdl.PageTableObject{IsRoot: true, Level: level(0)})
	pud := builder.AddObject("pud", capdl.PageTableObject{Level: level(1)})
	cnode := builder.AddObject("cnode", capdl.CNodeObject{SizeBits: 2})
	builder.AddObject("sc", capdl.SchedContextObject{SizeBits: 8})
	if err := builder.AddCap(root, 511, capdl.PageTableCap{Object: pud}); err != nil {
		t.Fatal(err)
	}
	if err := builder.AddCap(root, 512, capdl.PageTableCap{Object: pud}); err != nil {
		t.Fatal(err)
	}
	if err := builder.AddCap(cnode, 0, capdl.CNodeCap{Object: cnode, GuardSize: 64}); err != nil {
		t.Fatal(err)
	}
	spec := builder.Spec()

	err := ValidateSpec(aarch64, spec)
	var slotRange *SlotRangeError
	if !errors.As(err, &slotRange) || slotRange.Slot != 512 {
		t.Errorf("ValidateSpec = %v, want SlotRangeError for slot 512", err)
	}
	var guard *GuardEncodingError
	if !errors.As(err, &guard) {
		t.Errorf("ValidateSpec = %v, want GuardEncodingError", err)
	}
	var mismatch *ConfigMismatchError
	if !errors.As(err, &mismatch) || mismatch.Kind != capdl.KindSchedContext {
		t.Errorf("ValidateSpec = %v, want ConfigMismatchError for sched context", err)
	}
	var objectErr *ObjectError
	if !errors.As(err, &objectErr) || objectErr.Name == "" {
		t.Errorf("ValidateSpec errors are not located: %v", err)
	}
	if got := len(err.(interface{ Unwrap() []error }).Unwrap()); got != 3 {
		t.Errorf("ValidateSpec returned %d errors, want 3: %v", got, err)
	}

	if err := ValidateSpec(Target{Arch: AArch64, Features: Features{MCS: true}}, spec); err == nil {
		t.Error("ValidateSpec on MCS accepted out-of-range slot and bad guard")
	}
	if container.Len(spec.Objects) != 4 {
		t.Error("ValidateSpec modified the spec")
	}
}
