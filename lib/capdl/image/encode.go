// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/container"
)

// ErrFileContent is returned by [Encode] for fill entries that still
// reference build-host files.
var ErrFileContent = errors.New("file content cannot be embedded")

// Options control encoding.
type Options struct {
	// OmitNames drops object names from the image.
	OmitNames bool
}

// Encode serializes spec. spec should have passed [capdl.Validate];
// Encode itself only rejects what the layout cannot represent.
func Encode(spec *capdl.Spec, options Options) ([]byte, error) {
	objectCount := spec.NumObjects()
	var capCount, fillCount, paramWords int
	for named := range container.Items(spec.Objects) {
		if named.Object == nil {
			return nil, fmt.Errorf("encoding spec: %w: object without variant", capdl.ErrInvalidObject)
		}
		count, ok := paramCounts[named.Object.Kind()]
		if !ok {
			return nil, fmt.Errorf("encoding spec: %w: kind %s", capdl.ErrInvalidObject, named.Object.Kind())
		}
		capCount += container.Len(named.Slots)
		fillCount += container.Len(named.Fill)
		paramWords += count
	}
	irqCount := container.Len(spec.IRQs)
	asidCount := container.Len(spec.ASIDSlots)
	coverCount := container.Len(spec.UntypedCovers)

	e := &encoder{}
	e.reserve(headerSize)
	objectsBase := e.reserve(objectCount * objectWords * wordSize)
	irqsBase := e.reserve(irqCount * irqWords * wordSize)
	asidsBase := e.reserve(asidCount * asidWords * wordSize)
	coversBase := e.reserve(coverCount * coverWords * wordSize)
	e.capCursor = e.reserve(capCount * capWords * wordSize)
	e.fillCursor = e.reserve(fillCount * fillWords * wordSize)
	e.paramCursor = e.reserve(paramWords * wordSize)
	e.heapBase = uint64(e.size)
	e.fixed = make([]byte, e.size)

	var flags uint64
	if !options.OmitNames {
		flags |= FlagNames
	}
	copy(e.fixed, Magic[:])
	e.putWord(headerVersion*wordSize, Version)
	e.putWord(headerFlags*wordSize, flags)
	e.putSection(headerObjects, objectsBase, objectCount)
	e.putSection(headerIRQs, irqsBase, irqCount)
	e.putSection(headerASIDs, asidsBase, asidCount)
	e.putSection(headerCovers, coversBase, coverCount)

	for id, named := range container.Entries(spec.Objects) {
		record := objectsBase + id*objectWords*wordSize
		if err := e.object(record, named, options); err != nil {
			return nil, fmt.Errorf("encoding object %s: %w", spec.Name(capdl.ObjectID(id)), err)
		}
	}
	for index, entry := range container.Entries(spec.IRQs) {
		record := irqsBase + index*irqWords*wordSize
		e.putWords(record, entry.IRQ, uint64(entry.Handler))
	}
	for index, entry := range container.Entries(spec.ASIDSlots) {
		e.putWord(asidsBase+index*asidWords*wordSize, uint64(entry.Pool))
	}
	for index, cover := range container.Entries(spec.UntypedCovers) {
		record := coversBase + index*coverWords*wordSize
		e.putWords(record, uint64(cover.Parent), uint64(cover.Start), uint64(cover.End))
	}

	e.putWords(headerHeap*wordSize, e.heapBase, uint64(len(e.heap)))

	image := make([]byte, 0, len(e.fixed)+len(e.heap)+trailerSize)
	image = append(image, e.fixed...)
	image = append(image, e.heap...)
	checksum := Checksum(image)
	return append(image, checksum[:]...), nil
}

type encoder struct {
	size  int
	fixed []byte
	heap  []byte

	heapBase    uint64
	capCursor   int
	fillCursor  int
	paramCursor int
}

// reserve returns the offset of a new region of n bytes.
func (e *encoder) reserve(n int) int {
	offset := e.size
	e.size += n
	return offset
}

func (e *encoder) putWord(offset int, value uint64) {
	binary.LittleEndian.PutUint64(e.fixed[offset:], value)
}

func (e *encoder) putWords(offset int, values ...uint64) {
	for i, value := range values {
		e.putWord(offset+i*wordSize, value)
	}
}

func (e *encoder) putSection(headerIndex int, offset, count int) {
	e.putWords(headerIndex*wordSize, uint64(offset), uint64(count))
}

// heapBytes appends data to the heap and returns its absolute offset.
func (e *encoder) heapBytes(data []byte) uint64 {
	offset := e.heapBase + uint64(len(e.heap))
	e.heap = append(e.heap, data...)
	return offset
}

func (e *encoder) heapWords(words []uint64) uint64 {
	offset := e.heapBase + uint64(len(e.heap))
	for _, word := range words {
		e.heap = binary.LittleEndian.AppendUint64(e.heap, word)
	}
	return offset
}

func (e *encoder) object(record int, named capdl.NamedObject, options Options) error {
	kind := named.Object.Kind()
	var nameOffset, nameLength uint64
	if !options.OmitNames && named.Name != "" {
		nameOffset = e.heapBytes([]byte(named.Name))
		nameLength = uint64(len(named.Name))
	}

	capsOffset, capsCount := e.capCursor, container.Len(named.Slots)
	for entry := range container.Items(named.Slots) {
		if err := e.capability(entry); err != nil {
			return err
		}
	}

	fillOffsetBytes, fillCount := e.fillCursor, container.Len(named.Fill)
	for entry := range container.Items(named.Fill) {
		if err := e.fillEntry(entry); err != nil {
			return err
		}
	}

	params := e.params(named.Object)
	paramsOffset := e.paramCursor
	e.putWords(paramsOffset, params...)
	e.paramCursor += len(params) * wordSize

	e.putWords(record,
		uint64(kind),
		nameOffset, nameLength,
		uint64(capsOffset), uint64(capsCount),
		uint64(fillOffsetBytes), uint64(fillCount),
		uint64(paramsOffset), uint64(len(params)),
	)
	return nil
}

func (e *encoder) capability(entry capdl.CapTableEntry) error {
	if entry.Cap == nil {
		return fmt.Errorf("slot %d: %w: missing capability", entry.Slot, capdl.ErrInvalidObject)
	}
	var param1, param2 uint64
	switch c := entry.Cap.(type) {
	case capdl.EndpointCap:
		param1, param2 = c.Badge, encodeRights(c.Rights)
	case capdl.NotificationCap:
		param1, param2 = c.Badge, encodeRights(c.Rights)
	case capdl.CNodeCap:
		param1, param2 = c.Guard, c.GuardSize
	case capdl.FrameCap:
		param1, param2 = encodeRights(c.Rights), boolWord(c.Cached)
	}
	e.putWords(e.capCursor, entry.Slot, uint64(entry.Cap.TargetKind()), uint64(entry.Cap.Target()), param1, param2)
	e.capCursor += capWords * wordSize
	return nil
}

func (e *encoder) fillEntry(entry capdl.FillEntry) error {
	var param1, param2 uint64
	switch content := entry.Content.(type) {
	case capdl.BytesContent:
		param1, param2 = e.heapBytes(content.Data), uint64(len(content.Data))
	case capdl.DigestContent:
		param1, param2 = e.heapBytes(content.Digest[:]), uint64(len(content.Digest))
	case capdl.DeflatedContent:
		param1, param2 = e.heapBytes(content.Data), uint64(len(content.Data))
	case capdl.BootInfoContent:
		param1, param2 = uint64(content.ID), content.Offset
	case capdl.FileContent:
		return fmt.Errorf("fill at %#x (%s): %w", entry.Offset, content.Path, ErrFileContent)
	default:
		return fmt.Errorf("fill at %#x: %w", entry.Offset, capdl.ErrFillContent)
	}
	e.putWords(e.fillCursor, entry.Offset, entry.Length, uint64(entry.Content.ContentKind()), param1, param2)
	e.fillCursor += fillWords * wordSize
	return nil
}

func (e *encoder) params(obj capdl.Object) []uint64 {
	switch o := obj.(type) {
	case capdl.UntypedObject:
		return addressParams(o.SizeBits, o.PAddr)
	case capdl.CNodeObject:
		return []uint64{uint64(o.SizeBits)}
	case capdl.TCBObject:
		extra := o.Extra
		gprs := container.Collect(extra.GPRs)
		var faultEP uint64
		if extra.MasterFaultEP != nil {
			faultEP = *extra.MasterFaultEP
		}
		params := make([]uint64, tcbParams)
		params[tcbIPCBuffer] = extra.IPCBufferAddr
		params[tcbAffinity] = extra.Affinity
		params[tcbPrio] = uint64(extra.Prio)
		params[tcbMaxPrio] = uint64(extra.MaxPrio)
		params[tcbResume] = boolWord(extra.Resume)
		params[tcbIP] = extra.IP
		params[tcbSP] = extra.SP
		params[tcbSPSR] = extra.SPSR
		params[tcbHasFaultEP] = boolWord(extra.MasterFaultEP != nil)
		params[tcbFaultEP] = faultEP
		params[tcbGPRsOffset] = e.heapWords(gprs)
		params[tcbGPRsCount] = uint64(len(gprs))
		return params
	case capdl.ARMIRQObject:
		return []uint64{o.Trigger, o.Target}
	case capdl.FrameObject:
		return addressParams(o.SizeBits, o.PAddr)
	case capdl.PageTableObject:
		var level uint64
		if o.Level != nil {
			level = uint64(*o.Level)
		}
		return []uint64{boolWord(o.IsRoot), boolWord(o.Level != nil), level}
	case capdl.ASIDPoolObject:
		return []uint64{o.High}
	case capdl.SchedContextObject:
		return []uint64{uint64(o.SizeBits), o.Period, o.Budget, o.Badge}
	}
	return nil
}

func addressParams(sizeBits uint8, paddr *capdl.Word) []uint64 {
	if paddr == nil {
		return []uint64{uint64(sizeBits), 0, 0}
	}
	return []uint64{uint64(sizeBits), 1, *paddr}
}
