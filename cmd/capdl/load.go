// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/capdl/image"
	"github.com/bureau-foundation/capdl/lib/capdl/wire"
)

// loaded is a spec read from disk. Close releases an image mapping.
type loaded struct {
	spec   *capdl.Spec
	format wire.Format
	mapped *image.Mapped
}

func (l *loaded) Close() error {
	if l.mapped == nil {
		return nil
	}
	return l.mapped.Close()
}

// loadSpec reads the spec at path. Images are memory-mapped; every
// other format is decoded through the wire schema.
func loadSpec(path string) (*loaded, error) {
	magic, err := readMagic(path)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(magic, image.Magic[:]) || bytes.Equal(magic, image.EnvelopeMagic[:]) {
		mapped, err := image.MapFile(path)
		if err != nil {
			return nil, err
		}
		format := wire.FormatImage
		if mapped.Packed {
			format = wire.FormatPacked
		}
		return &loaded{spec: mapped.Spec, format: format, mapped: mapped}, nil
	}

	spec, format, err := wire.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &loaded{spec: spec, format: format}, nil
}

func readMagic(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec: %w", err)
	}
	defer file.Close()

	magic := make([]byte, len(image.Magic))
	count, err := io.ReadFull(file, magic)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading spec %s: %w", path, err)
	}
	return magic[:count], nil
}

// writeOutput writes data to path, or to stdout for "-". Binary output
// is refused on a terminal.
func writeOutput(s *session, path string, data []byte, binary bool) error {
	if path == "-" {
		if binary && isTerminal(s.stdout) {
			return usagef("refusing to write binary output to a terminal; use -o FILE")
		}
		_, err := s.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
