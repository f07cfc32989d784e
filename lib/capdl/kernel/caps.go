// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"fmt"

	"github.com/bureau-foundation/capdl/lib/capdl"
)

// Rights word bit positions.
const (
	rightWrite      = 1 << 0
	rightRead       = 1 << 1
	rightGrant      = 1 << 2
	rightGrantReply = 1 << 3
)

// RightsWord packs rights into the kernel's CapRights word.
func RightsWord(rights capdl.Rights) capdl.Word {
	var word capdl.Word
	if rights.Write {
		word |= rightWrite
	}
	if rights.Read {
		word |= rightRead
	}
	if rights.Grant {
		word |= rightGrant
	}
	if rights.GrantReply {
		word |= rightGrantReply
	}
	return word
}

// RightsFor returns the rights word to mint cap with. Capability kinds
// that carry no rights are installed with all rights and report false.
func RightsFor(cap capdl.Cap) (capdl.Word, bool) {
	rights, ok := capdl.CapRights(cap)
	if !ok {
		return RightsWord(capdl.AllRights), false
	}
	return RightsWord(rights), true
}

// CNode capability data layout: the guard size occupies the low six
// bits and the guard the remaining 58.
const (
	guardSizeBits = 6
	guardBits     = 64 - guardSizeBits
)

// CNodeCapData packs a CNode guard and guard size into the capability
// data word. Values that do not fit are an error rather than being
// truncated.
func CNodeCapData(guard, guardSize capdl.Word) (capdl.Word, error) {
	if guardSize >= 1<<guardSizeBits || guard >= 1<<guardBits {
		return 0, &GuardEncodingError{Guard: guard, GuardSize: guardSize}
	}
	return guard<<guardSizeBits | guardSize, nil
}

// BadgeFor returns the badge word cap is minted with: the stored badge
// for endpoint and notification capabilities, and the packed guard for
// CNode capabilities. Other kinds carry no badge and report false.
func BadgeFor(cap capdl.Cap) (capdl.Word, bool, error) {
	switch c := cap.(type) {
	case capdl.EndpointCap:
		return c.Badge, true, nil
	case capdl.NotificationCap:
		return c.Badge, true, nil
	case capdl.CNodeCap:
		word, err := CNodeCapData(c.Guard, c.GuardSize)
		if err != nil {
			return 0, false, err
		}
		return word, true, nil
	}
	return 0, false, nil
}

// VM attribute values.
const (
	armPageCacheable capdl.Word = 1
	armParityEnabled capdl.Word = 2
	armDefault                  = armPageCacheable | armParityEnabled
	x86CacheDisabled capdl.Word = 2
	riscvDefault     capdl.Word = 0
	x86Default       capdl.Word = 0
)

// VMAttributes returns the mapping attributes for a frame capability
// with the given cached flag.
func VMAttributes(t Target, cached bool) capdl.Word {
	switch t.Arch {
	case AArch64:
		// Uncached frames take the kernel default attributes.
		if cached {
			return armPageCacheable
		}
		return armDefault
	case X86_64:
		if cached {
			return x86Default
		}
		return x86CacheDisabled
	}
	return riscvDefault
}

// PageTableVMAttributes returns the attributes used when mapping a
// paging structure into its parent.
func PageTableVMAttributes(t Target) capdl.Word {
	switch t.Arch {
	case AArch64:
		return armDefault
	case X86_64:
		return x86Default
	}
	return riscvDefault
}

// Boot information header identifiers.
const bootInfoHeaderFDT capdl.Word = 6

// BootInfoExtraID returns the kernel's identifier for a boot
// information block.
func BootInfoExtraID(id capdl.BootInfoID) (capdl.Word, error) {
	switch id {
	case capdl.BootInfoFDT:
		return bootInfoHeaderFDT, nil
	}
	return 0, fmt.Errorf("no kernel boot info header for %s", id)
}
