// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contentstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

var (
	// ErrNotFound is returned by [Store.Lookup] when no content is
	// stored under the digest.
	ErrNotFound = errors.New("content not found")

	// ErrCorrupt is returned when stored bytes do not hash to the
	// digest they are stored under.
	ErrCorrupt = errors.New("stored content does not match its digest")
)

// Store resolves digests to content. Lookup must return exactly the
// bytes that hash to digest, or an error wrapping [ErrNotFound].
type Store interface {
	Lookup(digest Digest) ([]byte, error)
}

// MemoryStore is an in-memory Store. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[Digest][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[Digest][]byte)}
}

// Put stores a copy of data and returns its digest.
func (s *MemoryStore) Put(data []byte) Digest {
	digest := HashContent(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[digest]; !exists {
		s.blobs[digest] = slices.Clone(data)
	}
	return digest
}

// Lookup returns a copy of the content stored under digest.
func (s *MemoryStore) Lookup(digest Digest) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[digest]
	if !ok {
		return nil, fmt.Errorf("digest %s: %w", digest, ErrNotFound)
	}
	return slices.Clone(data), nil
}

// DirStore is a Store backed by a directory with a two-character
// fan-out layout: root/ab/cdef0123...
type DirStore struct {
	root string
}

// NewDirStore returns a DirStore rooted at root. Directories are
// created lazily on first write.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

func (s *DirStore) path(digest Digest) string {
	name := FormatDigest(digest)
	return filepath.Join(s.root, name[:2], name[2:])
}

// Has reports whether content for digest is present.
func (s *DirStore) Has(digest Digest) bool {
	_, err := os.Stat(s.path(digest))
	return err == nil
}

// Put writes data and returns its digest. Writes are atomic: content
// goes to a temp file in the fan-out directory and is renamed into
// place. Content that already exists is not rewritten.
func (s *DirStore) Put(data []byte) (Digest, error) {
	digest := HashContent(data)
	if s.Has(digest) {
		return digest, nil
	}

	dir := filepath.Dir(s.path(digest))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Digest{}, fmt.Errorf("content put mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return Digest{}, fmt.Errorf("content put tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Digest{}, fmt.Errorf("content put write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Digest{}, fmt.Errorf("content put close: %w", err)
	}
	if err := os.Rename(tmpName, s.path(digest)); err != nil {
		os.Remove(tmpName)
		return Digest{}, fmt.Errorf("content put rename: %w", err)
	}
	return digest, nil
}

// Lookup reads the content for digest and verifies it.
func (s *DirStore) Lookup(digest Digest) ([]byte, error) {
	data, err := os.ReadFile(s.path(digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("digest %s: %w", digest, ErrNotFound)
		}
		return nil, fmt.Errorf("content lookup %s: %w", digest, err)
	}
	if actual := HashContent(data); actual != digest {
		return nil, fmt.Errorf("digest %s (content hashes to %s): %w", digest, actual, ErrCorrupt)
	}
	return data, nil
}
