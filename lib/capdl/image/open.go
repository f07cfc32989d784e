// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/contentstore"
)

var (
	ErrBadMagic           = errors.New("not a capdl image")
	ErrUnsupportedVersion = errors.New("unsupported image version")
	ErrChecksum           = errors.New("image checksum mismatch")
	ErrCorrupt            = errors.New("corrupt image")
)

// CorruptError locates a structural defect in an image.
type CorruptError struct {
	Offset uint64
	Detail string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt image at byte %d: %s", e.Offset, e.Detail)
}

func (e *CorruptError) Unwrap() error {
	return ErrCorrupt
}

func corrupt(offset uint64, format string, args ...any) error {
	return &CorruptError{Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

var checksumDomainKey = [32]byte{
	'c', 'a', 'p', 'd', 'l', '.', 'i', 'm', 'a', 'g', 'e', '.', 't', 'r', 'a', 'i',
	'l', 'e', 'r', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Checksum computes the trailer checksum of an image body.
func Checksum(body []byte) [32]byte {
	hasher, err := blake3.NewKeyed(checksumDomainKey[:])
	if err != nil {
		panic("image: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(body)
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum
}

// Header summarizes an image without decoding its records.
type Header struct {
	Version  uint64
	Flags    uint64
	Objects  int
	IRQs     int
	ASIDs    int
	Covers   int
	HeapSize uint64
	Checksum [32]byte
}

// HasNames reports whether object records carry names.
func (h Header) HasNames() bool {
	return h.Flags&FlagNames != 0
}

// ReadHeader checks the magic, version, and checksum of data and
// returns its header.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < minimumImageLength {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the minimum %d", ErrBadMagic, len(data), minimumImageLength)
	}
	if !bytes.Equal(data[:len(Magic)], Magic[:]) {
		return Header{}, ErrBadMagic
	}
	body := data[:len(data)-trailerSize]
	word := func(index int) uint64 {
		return binary.LittleEndian.Uint64(body[index*wordSize:])
	}
	if version := word(headerVersion); version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	var trailer [32]byte
	copy(trailer[:], data[len(body):])
	if Checksum(body) != trailer {
		return Header{}, ErrChecksum
	}

	r := reader{body: body}
	header := Header{
		Version:  Version,
		Flags:    word(headerFlags),
		HeapSize: word(headerHeapLength),
		Checksum: trailer,
	}
	sections := []struct {
		index  int
		words  uint64
		target *int
	}{
		{headerObjects, objectWords, &header.Objects},
		{headerIRQs, irqWords, &header.IRQs},
		{headerASIDs, asidWords, &header.ASIDs},
		{headerCovers, coverWords, &header.Covers},
	}
	for _, section := range sections {
		offset, count := word(section.index), word(section.index+1)
		if err := r.table(offset, count, section.words); err != nil {
			return Header{}, err
		}
		*section.target = int(count)
	}
	if _, err := r.span(word(headerHeap), header.HeapSize); err != nil {
		return Header{}, err
	}
	return header, nil
}

// Open verifies data and returns a spec whose containers are views
// over it. data must not be modified while the spec is in use.
//
// Open checks that every record can be decoded; it does not check the
// structural invariants of the spec, which is still subject to
// [capdl.Validate].
func Open(data []byte) (*capdl.Spec, error) {
	header, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	body := data[:len(data)-trailerSize]
	r := reader{body: body, names: header.HasNames()}
	word := func(index int) uint64 {
		return binary.LittleEndian.Uint64(body[index*wordSize:])
	}

	objects := newView(r, word(headerObjects), header.Objects, objectWords, decodeObject)
	irqs := newView(r, word(headerIRQs), header.IRQs, irqWords, decodeIRQ)
	asids := newView(r, word(headerASIDs), header.ASIDs, asidWords, decodeASIDSlot)
	covers := newView(r, word(headerCovers), header.Covers, coverWords, decodeCover)

	for i := range header.Objects {
		named, err := objects.decodeAt(i)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		if err := named.Slots.(view[capdl.CapTableEntry]).verify(); err != nil {
			return nil, fmt.Errorf("object %d capabilities: %w", i, err)
		}
		if err := named.Fill.(view[capdl.FillEntry]).verify(); err != nil {
			return nil, fmt.Errorf("object %d fill: %w", i, err)
		}
	}
	for _, verify := range []func() error{irqs.verify, asids.verify, covers.verify} {
		if err := verify(); err != nil {
			return nil, err
		}
	}

	return &capdl.Spec{
		Objects:       objects,
		IRQs:          irqs,
		ASIDSlots:     asids,
		UntypedCovers: covers,
	}, nil
}

// reader performs bounds-checked reads from an image body.
type reader struct {
	body  []byte
	names bool
}

func (r reader) word(offset uint64) (uint64, error) {
	if offset > uint64(len(r.body)) || uint64(len(r.body))-offset < wordSize {
		return 0, corrupt(offset, "word past end of image")
	}
	return binary.LittleEndian.Uint64(r.body[offset:]), nil
}

// words reads n consecutive words starting at offset.
func (r reader) words(offset uint64, n int) ([]uint64, error) {
	if err := r.table(offset, uint64(n), 1); err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(r.body[offset+uint64(i)*wordSize:])
	}
	return out, nil
}

func (r reader) span(offset, length uint64) ([]byte, error) {
	size := uint64(len(r.body))
	if offset > size || size-offset < length {
		return nil, corrupt(offset, "%d-byte range past end of image", length)
	}
	return r.body[offset : offset+length], nil
}

// table checks that count records of the given word size fit at
// offset.
func (r reader) table(offset, count, recordWords uint64) error {
	size := uint64(len(r.body))
	if offset > size {
		return corrupt(offset, "table starts past end of image")
	}
	if count > (size-offset)/(recordWords*wordSize) {
		return corrupt(offset, "%d records of %d words overrun image", count, recordWords)
	}
	return nil
}

func (r reader) objectID(offset uint64) (capdl.ObjectID, error) {
	value, err := r.word(offset)
	if err != nil {
		return 0, err
	}
	if value > math.MaxUint32 {
		return 0, corrupt(offset, "object id %d out of range", value)
	}
	return capdl.ObjectID(value), nil
}

func (r reader) smallWord(offset uint64) (uint8, error) {
	value, err := r.word(offset)
	if err != nil {
		return 0, err
	}
	if value > math.MaxUint8 {
		return 0, corrupt(offset, "value %d does not fit in a byte", value)
	}
	return uint8(value), nil
}

func decodeIRQ(r reader, offset uint64) (capdl.IRQEntry, error) {
	irq, err := r.word(offset)
	if err != nil {
		return capdl.IRQEntry{}, err
	}
	handler, err := r.objectID(offset + wordSize)
	if err != nil {
		return capdl.IRQEntry{}, err
	}
	return capdl.IRQEntry{IRQ: irq, Handler: handler}, nil
}

func decodeASIDSlot(r reader, offset uint64) (capdl.ASIDSlotEntry, error) {
	pool, err := r.objectID(offset)
	if err != nil {
		return capdl.ASIDSlotEntry{}, err
	}
	return capdl.ASIDSlotEntry{Pool: pool}, nil
}

func decodeCover(r reader, offset uint64) (capdl.UntypedCover, error) {
	var ids [coverWords]capdl.ObjectID
	for i := range ids {
		id, err := r.objectID(offset + uint64(i)*wordSize)
		if err != nil {
			return capdl.UntypedCover{}, err
		}
		ids[i] = id
	}
	return capdl.UntypedCover{Parent: ids[0], Start: ids[1], End: ids[2]}, nil
}

func decodeCap(r reader, offset uint64) (capdl.CapTableEntry, error) {
	fields, err := r.words(offset, capWords)
	if err != nil {
		return capdl.CapTableEntry{}, err
	}
	target, err := r.objectID(offset + capObject*wordSize)
	if err != nil {
		return capdl.CapTableEntry{}, err
	}
	kind := capdl.ObjectKind(fields[capKind])
	if fields[capKind] > math.MaxUint8 || !kind.Valid() {
		return capdl.CapTableEntry{}, corrupt(offset, "unknown capability kind %d", fields[capKind])
	}
	cap, _ := capdl.NewCap(kind, target)
	param1, param2 := fields[capParam1], fields[capParam2]
	switch c := cap.(type) {
	case capdl.EndpointCap:
		c.Badge, c.Rights = param1, decodeRights(param2)
		cap = c
	case capdl.NotificationCap:
		c.Badge, c.Rights = param1, decodeRights(param2)
		cap = c
	case capdl.CNodeCap:
		c.Guard, c.GuardSize = param1, param2
		cap = c
	case capdl.FrameCap:
		c.Rights, c.Cached = decodeRights(param1), param2 != 0
		cap = c
	}
	return capdl.CapTableEntry{Slot: fields[capSlot], Cap: cap}, nil
}

func decodeFill(r reader, offset uint64) (capdl.FillEntry, error) {
	fields, err := r.words(offset, fillWords)
	if err != nil {
		return capdl.FillEntry{}, err
	}
	entry := capdl.FillEntry{Offset: fields[fillOffset], Length: fields[fillLength]}
	param1, param2 := fields[fillParam1], fields[fillParam2]
	switch capdl.ContentKind(fields[fillKind]) {
	case capdl.ContentBytes:
		data, err := r.span(param1, param2)
		if err != nil {
			return capdl.FillEntry{}, err
		}
		entry.Content = capdl.BytesContent{Data: data}
	case capdl.ContentDeflated:
		data, err := r.span(param1, param2)
		if err != nil {
			return capdl.FillEntry{}, err
		}
		entry.Content = capdl.DeflatedContent{Data: data}
	case capdl.ContentDigest:
		var digest contentstore.Digest
		if param2 != uint64(len(digest)) {
			return capdl.FillEntry{}, corrupt(offset, "digest of %d bytes", param2)
		}
		data, err := r.span(param1, param2)
		if err != nil {
			return capdl.FillEntry{}, err
		}
		copy(digest[:], data)
		entry.Content = capdl.DigestContent{Digest: digest}
	case capdl.ContentBootInfo:
		id, err := r.smallWord(offset + fillParam1*wordSize)
		if err != nil {
			return capdl.FillEntry{}, err
		}
		entry.Content = capdl.BootInfoContent{ID: capdl.BootInfoID(id), Offset: param2}
	default:
		return capdl.FillEntry{}, corrupt(offset, "unknown fill content kind %d", fields[fillKind])
	}
	return entry, nil
}

func decodeObject(r reader, offset uint64) (capdl.NamedObject, error) {
	fields, err := r.words(offset, objectWords)
	if err != nil {
		return capdl.NamedObject{}, err
	}
	kind := capdl.ObjectKind(fields[objectKind])
	expectedParams, ok := paramCounts[kind]
	if fields[objectKind] > math.MaxUint8 || !ok {
		return capdl.NamedObject{}, corrupt(offset, "unknown object kind %d", fields[objectKind])
	}
	if fields[objectParamsCount] != uint64(expectedParams) {
		return capdl.NamedObject{}, corrupt(offset, "%s with %d parameter words, want %d", kind, fields[objectParamsCount], expectedParams)
	}

	var named capdl.NamedObject
	if r.names {
		name, err := r.span(fields[objectNameOffset], fields[objectNameLength])
		if err != nil {
			return capdl.NamedObject{}, err
		}
		named.Name = string(name)
	}

	capsCount, fillCount := fields[objectCapsCount], fields[objectFillCount]
	if err := r.table(fields[objectCapsOffset], capsCount, capWords); err != nil {
		return capdl.NamedObject{}, err
	}
	if err := r.table(fields[objectFillOffset], fillCount, fillWords); err != nil {
		return capdl.NamedObject{}, err
	}
	named.Slots = newView(r, fields[objectCapsOffset], int(capsCount), capWords, decodeCap)
	named.Fill = newView(r, fields[objectFillOffset], int(fillCount), fillWords, decodeFill)

	params, err := r.words(fields[objectParamsOffset], expectedParams)
	if err != nil {
		return capdl.NamedObject{}, err
	}
	named.Object, err = decodeParams(r, kind, params, fields[objectParamsOffset])
	if err != nil {
		return capdl.NamedObject{}, err
	}
	return named, nil
}

func decodeParams(r reader, kind capdl.ObjectKind, params []uint64, offset uint64) (capdl.Object, error) {
	byteParam := func(index int) (uint8, error) {
		return r.smallWord(offset + uint64(index)*wordSize)
	}
	switch kind {
	case capdl.KindUntyped, capdl.KindFrame:
		sizeBits, err := byteParam(0)
		if err != nil {
			return nil, err
		}
		var paddr *capdl.Word
		if params[1] != 0 {
			value := params[2]
			paddr = &value
		}
		if kind == capdl.KindUntyped {
			return capdl.UntypedObject{SizeBits: sizeBits, PAddr: paddr}, nil
		}
		return capdl.FrameObject{SizeBits: sizeBits, PAddr: paddr}, nil
	case capdl.KindEndpoint:
		return capdl.EndpointObject{}, nil
	case capdl.KindNotification:
		return capdl.NotificationObject{}, nil
	case capdl.KindCNode:
		sizeBits, err := byteParam(0)
		if err != nil {
			return nil, err
		}
		return capdl.CNodeObject{SizeBits: sizeBits}, nil
	case capdl.KindTCB:
		return decodeTCB(r, params, offset)
	case capdl.KindIRQ:
		return capdl.IRQObject{}, nil
	case capdl.KindARMIRQ:
		return capdl.ARMIRQObject{Trigger: params[0], Target: params[1]}, nil
	case capdl.KindVCPU:
		return capdl.VCPUObject{}, nil
	case capdl.KindPageTable:
		table := capdl.PageTableObject{IsRoot: params[0] != 0}
		if params[1] != 0 {
			level, err := byteParam(2)
			if err != nil {
				return nil, err
			}
			table.Level = &level
		}
		return table, nil
	case capdl.KindASIDPool:
		return capdl.ASIDPoolObject{High: params[0]}, nil
	case capdl.KindSchedContext:
		sizeBits, err := byteParam(0)
		if err != nil {
			return nil, err
		}
		return capdl.SchedContextObject{SizeBits: sizeBits, Period: params[1], Budget: params[2], Badge: params[3]}, nil
	case capdl.KindReply:
		return capdl.ReplyObject{}, nil
	}
	return nil, corrupt(offset, "no parameter decoding for %s", kind)
}

func decodeTCB(r reader, params []uint64, offset uint64) (capdl.Object, error) {
	prio, err := r.smallWord(offset + tcbPrio*wordSize)
	if err != nil {
		return nil, err
	}
	maxPrio, err := r.smallWord(offset + tcbMaxPrio*wordSize)
	if err != nil {
		return nil, err
	}
	gprsOffset, gprsCount := params[tcbGPRsOffset], params[tcbGPRsCount]
	if err := r.table(gprsOffset, gprsCount, 1); err != nil {
		return nil, err
	}
	extra := capdl.TCBExtra{
		IPCBufferAddr: params[tcbIPCBuffer],
		Affinity:      params[tcbAffinity],
		Prio:          prio,
		MaxPrio:       maxPrio,
		Resume:        params[tcbResume] != 0,
		IP:            params[tcbIP],
		SP:            params[tcbSP],
		SPSR:          params[tcbSPSR],
		GPRs:          newView(r, gprsOffset, int(gprsCount), 1, decodeWord),
	}
	if params[tcbHasFaultEP] != 0 {
		faultEP := params[tcbFaultEP]
		extra.MasterFaultEP = &faultEP
	}
	return capdl.TCBObject{Extra: extra}, nil
}

func decodeWord(r reader, offset uint64) (capdl.Word, error) {
	return r.word(offset)
}
