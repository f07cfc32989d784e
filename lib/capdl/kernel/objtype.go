// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import "fmt"

// BlueprintKind is an architecture-neutral name for a creatable kernel
// object type. Each architecture names its paging structures
// differently; the kind records the role and [Blueprint.Type] resolves
// the kernel's own enumeration value.
type BlueprintKind uint8

const (
	BlueprintUntyped BlueprintKind = iota + 1
	BlueprintTCB
	BlueprintEndpoint
	BlueprintNotification
	BlueprintCNode
	BlueprintSchedContext
	BlueprintReply
	BlueprintVCPU

	// Frames: 4 KiB, 2 MiB, and 1 GiB pages.
	BlueprintSmallPage
	BlueprintLargePage
	BlueprintHugePage

	// Paging structures, leaf first. aarch64 calls the upper two
	// levels PUD and PGD; x86_64 calls them PDPT and PML4. riscv64 has
	// a single PageTable type used at every level.
	BlueprintPageTable
	BlueprintPageDirectory
	BlueprintPageUpperDirectory
	BlueprintPageGlobalDirectory
)

var blueprintKindNames = map[BlueprintKind]string{
	BlueprintUntyped:             "untyped",
	BlueprintTCB:                 "tcb",
	BlueprintEndpoint:            "endpoint",
	BlueprintNotification:        "notification",
	BlueprintCNode:               "cnode",
	BlueprintSchedContext:        "sched_context",
	BlueprintReply:               "reply",
	BlueprintVCPU:                "vcpu",
	BlueprintSmallPage:           "small_page",
	BlueprintLargePage:           "large_page",
	BlueprintHugePage:            "huge_page",
	BlueprintPageTable:           "page_table",
	BlueprintPageDirectory:       "page_directory",
	BlueprintPageUpperDirectory:  "page_upper_directory",
	BlueprintPageGlobalDirectory: "page_global_directory",
}

func (k BlueprintKind) String() string {
	if name, ok := blueprintKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// ObjectType is the kernel's numeric object type, the value passed to
// Untyped_Retype.
type ObjectType uint64

// Object type numbering. The generic types come first; MCS inserts
// SchedContext and Reply after CNode, which shifts every
// architecture-specific value up by two. Architecture types follow in
// two groups: the mode (64-bit) types, then the arch types.
const (
	typeUntyped      ObjectType = 0
	typeTCB          ObjectType = 1
	typeEndpoint     ObjectType = 2
	typeNotification ObjectType = 3
	typeCNode        ObjectType = 4
	typeSchedContext ObjectType = 5
	typeReply        ObjectType = 6

	nonArchTypeCount    = 5
	nonArchTypeCountMCS = 7
)

// objectTypeTable returns the numbering of every blueprint kind that
// exists on t.
func objectTypeTable(t Target) map[BlueprintKind]ObjectType {
	table := map[BlueprintKind]ObjectType{
		BlueprintUntyped:      typeUntyped,
		BlueprintTCB:          typeTCB,
		BlueprintEndpoint:     typeEndpoint,
		BlueprintNotification: typeNotification,
		BlueprintCNode:        typeCNode,
	}
	next := ObjectType(nonArchTypeCount)
	if t.Features.MCS {
		table[BlueprintSchedContext] = typeSchedContext
		table[BlueprintReply] = typeReply
		next = nonArchTypeCountMCS
	}
	assign := func(kinds ...BlueprintKind) {
		for _, kind := range kinds {
			table[kind] = next
			next++
		}
	}

	switch t.Arch {
	case AArch64:
		assign(BlueprintHugePage, BlueprintPageUpperDirectory, BlueprintPageGlobalDirectory)
		assign(BlueprintSmallPage, BlueprintLargePage, BlueprintPageTable, BlueprintPageDirectory)
		if t.Features.ARMHypervisor {
			assign(BlueprintVCPU)
		}
	case RISCV64:
		assign(BlueprintHugePage)
		assign(BlueprintSmallPage, BlueprintLargePage, BlueprintPageTable)
	case X86_64:
		assign(BlueprintPageUpperDirectory, BlueprintPageGlobalDirectory)
		if t.Features.X86HugePages {
			assign(BlueprintHugePage)
		}
		assign(BlueprintSmallPage, BlueprintLargePage, BlueprintPageTable, BlueprintPageDirectory)
	}
	return table
}

// ObjectTypeFor returns the kernel type number of kind on t.
func ObjectTypeFor(t Target, kind BlueprintKind) (ObjectType, error) {
	objectType, ok := objectTypeTable(t)[kind]
	if !ok {
		return 0, &ConfigMismatchError{Target: t, Detail: fmt.Sprintf("no %s object type", kind)}
	}
	return objectType, nil
}
