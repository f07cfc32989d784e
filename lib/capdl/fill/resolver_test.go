// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fill

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/container"
	"github.com/bureau-foundation/capdl/lib/contentstore"
)

func mustDeflate(t *testing.T, data []byte) []byte {
	t.Helper()
	compressed, err := Deflate(data)
	if err != nil {
		t.Fatalf("Deflate: %v", err)
	}
	return compressed
}

func TestResolveSources(t *testing.T) {
	store := contentstore.NewMemoryStore()
	stored := []byte("content addressed")
	digest := store.Put(stored)
	fdt := []byte("\xd0\x0d\xfe\xed device tree blob")
	payload := bytes.Repeat([]byte("kernel image "), 64)

	resolver := &Resolver{
		Store:    store,
		BootInfo: map[capdl.BootInfoID][]byte{capdl.BootInfoFDT: fdt},
	}

	tests := []struct {
		name  string
		entry capdl.FillEntry
		want  []byte
	}{
		{
			name:  "bytes",
			entry: capdl.FillEntry{Length: 3, Content: capdl.BytesContent{Data: []byte("abc")}},
			want:  []byte("abc"),
		},
		{
			name:  "digest",
			entry: capdl.FillEntry{Length: uint64(len(stored)), Content: capdl.DigestContent{Digest: digest}},
			want:  stored,
		},
		{
			name:  "deflated",
			entry: capdl.FillEntry{Length: uint64(len(payload)), Content: capdl.DeflatedContent{Data: mustDeflate(t, payload)}},
			want:  payload,
		},
		{
			name:  "boot info",
			entry: capdl.FillEntry{Length: 6, Content: capdl.BootInfoContent{ID: capdl.BootInfoFDT, Offset: 5}},
			want:  []byte("device"),
		},
		{
			name:  "empty boot info at end",
			entry: capdl.FillEntry{Length: 0, Content: capdl.BootInfoContent{ID: capdl.BootInfoFDT, Offset: uint64(len(fdt))}},
			want:  []byte{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			first, err := resolver.Resolve(test.entry)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if !bytes.Equal(first, test.want) {
				t.Fatalf("Resolve = %q, want %q", first, test.want)
			}
			second, err := resolver.Resolve(test.entry)
			if err != nil || !bytes.Equal(first, second) {
				t.Fatalf("second Resolve = %q, %v; not identical to first", second, err)
			}
		})
	}
}

func TestResolveDeflateLengthMismatch(t *testing.T) {
	compressed := mustDeflate(t, []byte("0123456789"))
	var resolver Resolver

	for _, declared := range []uint64{4, 16} {
		_, err := resolver.Resolve(capdl.FillEntry{Length: declared, Content: capdl.DeflatedContent{Data: compressed}})
		var mismatch *LengthMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("declared %d: Resolve = %v, want LengthMismatchError", declared, err)
		}
		if mismatch.Declared != declared || mismatch.Source != capdl.ContentDeflated {
			t.Errorf("declared %d: error = %+v", declared, mismatch)
		}
		if mismatch.Exceeded != (declared < 10) {
			t.Errorf("declared %d: Exceeded = %t", declared, mismatch.Exceeded)
		}
	}

	_, err := resolver.Resolve(capdl.FillEntry{Length: 10, Content: capdl.DeflatedContent{Data: compressed[:len(compressed)/2]}})
	if err == nil {
		t.Error("Resolve accepted a truncated deflate stream")
	}
}

func TestResolveErrors(t *testing.T) {
	resolver := &Resolver{Store: contentstore.NewMemoryStore()}

	_, err := resolver.Resolve(capdl.FillEntry{Length: 1, Content: capdl.DigestContent{Digest: contentstore.HashContent([]byte("missing"))}})
	if !errors.Is(err, ErrContentNotFound) {
		t.Errorf("missing digest: %v, want ErrContentNotFound", err)
	}

	_, err = resolver.Resolve(capdl.FillEntry{Length: 1, Content: capdl.BootInfoContent{ID: capdl.BootInfoFDT}})
	var bootInfoErr *BootInfoError
	if !errors.Is(err, ErrBootInfoUnavailable) || !errors.As(err, &bootInfoErr) || bootInfoErr.ID != capdl.BootInfoFDT {
		t.Errorf("missing boot info: %v, want BootInfoError(fdt)", err)
	}

	_, err = resolver.Resolve(capdl.FillEntry{Length: 1, Content: capdl.FileContent{Path: "app.elf"}})
	if !errors.Is(err, ErrUnresolvedFile) {
		t.Errorf("file content: %v, want ErrUnresolvedFile", err)
	}

	_, err = resolver.Resolve(capdl.FillEntry{Length: 2, Content: capdl.BytesContent{Data: []byte{1}}})
	var mismatch *LengthMismatchError
	if !errors.As(err, &mismatch) || mismatch.Actual != 1 {
		t.Errorf("short inline bytes: %v, want LengthMismatchError", err)
	}

	var bare Resolver
	_, err = bare.Resolve(capdl.FillEntry{Length: 1, Content: capdl.DigestContent{Digest: contentstore.HashContent([]byte("x"))}})
	if !errors.Is(err, ErrNoStore) {
		t.Errorf("digest without store: %v, want ErrNoStore", err)
	}

	short := &Resolver{BootInfo: map[capdl.BootInfoID][]byte{capdl.BootInfoFDT: []byte("abc")}}
	_, err = short.Resolve(capdl.FillEntry{Length: 4, Content: capdl.BootInfoContent{ID: capdl.BootInfoFDT, Offset: 1}})
	if !errors.As(err, &mismatch) || mismatch.Actual != 2 {
		t.Errorf("short boot info: %v, want LengthMismatchError with 2 available", err)
	}
}

func TestFillFrameIsIdempotent(t *testing.T) {
	named := capdl.NamedObject{
		Object: capdl.FrameObject{SizeBits: 12},
		Fill: container.Slice[capdl.FillEntry]{
			{Offset: 0, Length: 4, Content: capdl.BytesContent{Data: []byte("head")}},
			{Offset: 4000, Length: 5, Content: capdl.DeflatedContent{Data: mustDeflate(t, []byte("tail!"))}},
		},
	}
	var resolver Resolver

	frame := make([]byte, 4096)
	if err := resolver.FillFrame(named, frame); err != nil {
		t.Fatalf("FillFrame: %v", err)
	}
	snapshot := bytes.Clone(frame)
	if err := resolver.FillFrame(named, frame); err != nil {
		t.Fatalf("second FillFrame: %v", err)
	}
	if !bytes.Equal(frame, snapshot) {
		t.Fatal("second FillFrame changed the frame")
	}
	if string(frame[:4]) != "head" || string(frame[4000:4005]) != "tail!" || frame[4] != 0 {
		t.Errorf("frame contents wrong: %q ... %q", frame[:8], frame[4000:4005])
	}

	if err := resolver.WriteTo(named.Fill.At(1), make([]byte, 100)); err == nil {
		t.Error("WriteTo accepted a frame smaller than the entry")
	}
}

func TestResolveObjectStopsAtError(t *testing.T) {
	named := capdl.NamedObject{
		Object: capdl.FrameObject{SizeBits: 12},
		Fill: container.Slice[capdl.FillEntry]{
			{Offset: 0, Length: 1, Content: capdl.BytesContent{Data: []byte{1}}},
			{Offset: 8, Length: 1, Content: capdl.FileContent{Path: "x"}},
			{Offset: 16, Length: 1, Content: capdl.BytesContent{Data: []byte{2}}},
		},
	}
	var resolver Resolver
	var offsets []uint64
	var lastErr error
	for resolved, err := range resolver.ResolveObject(named) {
		offsets = append(offsets, resolved.Entry.Offset)
		lastErr = err
	}
	if len(offsets) != 2 || offsets[1] != 8 {
		t.Fatalf("visited offsets %v, want [0 8]", offsets)
	}
	if !errors.Is(lastErr, ErrUnresolvedFile) {
		t.Fatalf("last error = %v, want ErrUnresolvedFile", lastErr)
	}
}
