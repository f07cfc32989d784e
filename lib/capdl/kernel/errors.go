// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/capdl/lib/capdl"
)

// ConfigMismatchError reports an object or capability variant that has
// no kernel counterpart on the target.
type ConfigMismatchError struct {
	Target Target

	// Kind is the offending object kind, or zero when the mismatch is
	// not tied to one object kind.
	Kind   capdl.ObjectKind
	Detail string
}

func (e *ConfigMismatchError) Error() string {
	if e.Kind == 0 {
		return fmt.Sprintf("target %s: %s", e.Target, e.Detail)
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s objects are not supported on %s", e.Kind, e.Target)
	}
	return fmt.Sprintf("%s objects are not supported on %s: %s", e.Kind, e.Target, e.Detail)
}

// UnsupportedFrameSizeError reports a frame whose size is not one of
// the architecture's page sizes.
type UnsupportedFrameSizeError struct {
	Arch     Arch
	SizeBits uint8
}

func (e *UnsupportedFrameSizeError) Error() string {
	return fmt.Sprintf("unsupported frame size 2^%d on %s (supported: %v)", e.SizeBits, e.Arch, frameSizes[e.Arch])
}

// RootLevelError reports a page table whose root flag and level
// disagree, or whose level does not exist on the architecture.
type RootLevelError struct {
	Arch   Arch
	IsRoot bool

	// Level is nil when the object carries no level.
	Level *uint8
}

func (e *RootLevelError) Error() string {
	level := "none"
	if e.Level != nil {
		level = fmt.Sprintf("%d", *e.Level)
	}
	return fmt.Sprintf("page table on %s with is_root=%t and level=%s", e.Arch, e.IsRoot, level)
}

// GuardEncodingError reports a CNode guard that does not fit the
// capability data word.
type GuardEncodingError struct {
	Guard     capdl.Word
	GuardSize capdl.Word
}

func (e *GuardEncodingError) Error() string {
	return fmt.Sprintf("cnode guard %#x with guard size %d does not fit in %d guard bits and %d size bits",
		e.Guard, e.GuardSize, guardBits, guardSizeBits)
}

// SlotRangeError reports an address-indexed table entry outside the
// table's addressable range.
type SlotRangeError struct {
	Slot    capdl.Slot
	Entries uint64
}

func (e *SlotRangeError) Error() string {
	return fmt.Sprintf("page table slot %d outside [0, %d)", e.Slot, e.Entries)
}

// ErrNoAddressGeometry is returned by [SlotForAddress] for paging
// structures that carry no level, so the address bits they translate
// are unknown.
var ErrNoAddressGeometry = errors.New("page table has no address geometry")

// ObjectError locates a mapping failure at a spec object, and when
// the failure is in the object's capability table, at a slot.
type ObjectError struct {
	Object  capdl.ObjectID
	Name    string
	Slot    capdl.Slot
	HasSlot bool
	Err     error
}

func (e *ObjectError) Error() string {
	location := fmt.Sprintf("object %s", e.Object)
	if e.Name != "" {
		location += fmt.Sprintf(" (%q)", e.Name)
	}
	if e.HasSlot {
		location += fmt.Sprintf(" slot %d", e.Slot)
	}
	return location + ": " + e.Err.Error()
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}
