// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"github.com/bureau-foundation/capdl/lib/capdl"
)

// Magic identifies a spec image.
var Magic = [8]byte{'C', 'A', 'P', 'D', 'L', 'I', 'M', 'G'}

// Version is the layout version written by [Encode] and the only one
// [Open] accepts.
const Version = 1

// Header flags.
const (
	// FlagNames is set when object records carry names.
	FlagNames = 1 << 0
)

const (
	wordSize = 8

	// Header word indices.
	headerMagic        = 0
	headerVersion      = 1
	headerFlags        = 2
	headerObjects      = 3
	headerObjectCount  = 4
	headerIRQs         = 5
	headerIRQCount     = 6
	headerASIDs        = 7
	headerASIDCount    = 8
	headerCovers       = 9
	headerCoverCount   = 10
	headerHeap         = 11
	headerHeapLength   = 12
	headerWords        = 13
	headerSize         = headerWords * wordSize
	trailerSize        = 32
	minimumImageLength = headerSize + trailerSize

	// Record sizes in words.
	objectWords = 9
	capWords    = 5
	fillWords   = 5
	irqWords    = 2
	asidWords   = 1
	coverWords  = 3
)

// Object record word indices.
const (
	objectKind = iota
	objectNameOffset
	objectNameLength
	objectCapsOffset
	objectCapsCount
	objectFillOffset
	objectFillCount
	objectParamsOffset
	objectParamsCount
)

// Capability and fill record word indices.
const (
	capSlot = iota
	capKind
	capObject
	capParam1
	capParam2
)

const (
	fillOffset = iota
	fillLength
	fillKind
	fillParam1
	fillParam2
)

// TCB parameter word indices.
const (
	tcbIPCBuffer = iota
	tcbAffinity
	tcbPrio
	tcbMaxPrio
	tcbResume
	tcbIP
	tcbSP
	tcbSPSR
	tcbHasFaultEP
	tcbFaultEP
	tcbGPRsOffset
	tcbGPRsCount
	tcbParams
)

// paramCounts is the number of parameter words each object kind
// carries.
var paramCounts = map[capdl.ObjectKind]int{
	capdl.KindUntyped:      3, // size bits, has paddr, paddr
	capdl.KindEndpoint:     0,
	capdl.KindNotification: 0,
	capdl.KindCNode:        1, // size bits
	capdl.KindTCB:          tcbParams,
	capdl.KindIRQ:          0,
	capdl.KindARMIRQ:       2, // trigger, target
	capdl.KindVCPU:         0,
	capdl.KindFrame:        3, // size bits, has paddr, paddr
	capdl.KindPageTable:    3, // is root, has level, level
	capdl.KindASIDPool:     1, // high
	capdl.KindSchedContext: 4, // size bits, period, budget, badge
	capdl.KindReply:        0,
}

// Rights bits within a capability parameter word.
const (
	rightRead = 1 << iota
	rightWrite
	rightGrant
	rightGrantReply
)

func encodeRights(rights capdl.Rights) uint64 {
	var word uint64
	if rights.Read {
		word |= rightRead
	}
	if rights.Write {
		word |= rightWrite
	}
	if rights.Grant {
		word |= rightGrant
	}
	if rights.GrantReply {
		word |= rightGrantReply
	}
	return word
}

func decodeRights(word uint64) capdl.Rights {
	return capdl.Rights{
		Read:       word&rightRead != 0,
		Write:      word&rightWrite != 0,
		Grant:      word&rightGrant != 0,
		GrantReply: word&rightGrantReply != 0,
	}
}

func boolWord(value bool) uint64 {
	if value {
		return 1
	}
	return 0
}
