// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fill

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/contentstore"
)

// ErrShortFile is returned when a file fill reaches past the end of its
// file.
var ErrShortFile = errors.New("file shorter than fill range")

// ContentWriter stores content and returns its digest.
// *contentstore.DirStore implements it.
type ContentWriter interface {
	Put(data []byte) (contentstore.Digest, error)
}

// EmbedOptions controls how [EmbedFiles] represents file content.
type EmbedOptions struct {
	// FileRoot is the directory relative paths resolve against.
	FileRoot string

	// Content of at most InlineLimit bytes is embedded as bytes.
	InlineLimit uint64

	// Store receives larger content, which the spec then references by
	// digest. When nil, larger content is embedded.
	Store ContentWriter

	// Deflate compresses larger embedded content when that makes it
	// smaller.
	Deflate bool
}

// EmbedFiles returns an owned copy of spec with every file reference
// replaced by bytes, deflated bytes, or a digest, so the spec can leave
// the build host. Other content is carried over unchanged.
func EmbedFiles(spec *capdl.Spec, options EmbedOptions) (*capdl.Spec, error) {
	files := make(map[string][]byte)
	return capdl.TransformFill(spec, func(_ capdl.ObjectID, _ capdl.NamedObject, entry capdl.FillEntry) (capdl.FillEntry, error) {
		file, ok := entry.Content.(capdl.FileContent)
		if !ok {
			return entry, nil
		}
		data, err := readSegment(files, options.FileRoot, file, entry.Length)
		if err != nil {
			return capdl.FillEntry{}, err
		}
		content, err := options.represent(data)
		if err != nil {
			return capdl.FillEntry{}, err
		}
		entry.Content = content
		return entry, nil
	})
}

func (o EmbedOptions) represent(data []byte) (capdl.FillContent, error) {
	if uint64(len(data)) <= o.InlineLimit {
		return capdl.BytesContent{Data: data}, nil
	}
	if o.Store != nil {
		digest, err := o.Store.Put(data)
		if err != nil {
			return nil, fmt.Errorf("storing content: %w", err)
		}
		return capdl.DigestContent{Digest: digest}, nil
	}
	if o.Deflate {
		compressed, err := Deflate(data)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(data) {
			return capdl.DeflatedContent{Data: compressed}, nil
		}
	}
	return capdl.BytesContent{Data: data}, nil
}

// readSegment returns length bytes of the file at its offset. Whole
// files are cached by resolved path since one file usually backs many
// fill entries.
func readSegment(files map[string][]byte, root string, file capdl.FileContent, length uint64) ([]byte, error) {
	path := file.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	data, cached := files[path]
	if !cached {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading fill file: %w", err)
		}
		files[path] = data
	}

	end := file.FileOffset + length
	if end < file.FileOffset || end > uint64(len(data)) {
		return nil, fmt.Errorf("%s [%#x, +%#x) of %#x bytes: %w", file.Path, file.FileOffset, length, len(data), ErrShortFile)
	}
	return data[file.FileOffset:end], nil
}
