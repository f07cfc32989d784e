// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/capdl/lib/capdl"
	"github.com/bureau-foundation/capdl/lib/capdl/image"
	"github.com/bureau-foundation/capdl/lib/codec"
)

// DecodeJSON parses a JSONC document. Comments and trailing commas are
// stripped before strict decoding; unknown fields are errors.
func DecodeJSON(data []byte) (*Document, error) {
	stripped := jsonc.ToJSON(data)
	decoder := json.NewDecoder(bytes.NewReader(stripped))
	decoder.DisallowUnknownFields()

	var document Document
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("parsing spec JSON: %w", err)
	}
	if decoder.More() {
		return nil, errors.New("parsing spec JSON: trailing data after document")
	}
	return &document, nil
}

// EncodeJSON renders a document as indented JSON with a trailing
// newline.
func EncodeJSON(document *Document) ([]byte, error) {
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding spec JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// EncodeCBOR renders a document as deterministic CBOR.
func EncodeCBOR(document *Document) ([]byte, error) {
	data, err := codec.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encoding spec CBOR: %w", err)
	}
	return data, nil
}

// DecodeCBOR parses a CBOR document, rejecting unknown fields.
func DecodeCBOR(data []byte) (*Document, error) {
	var document Document
	if err := codec.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("parsing spec CBOR: %w", err)
	}
	return &document, nil
}

// Format names a serialized spec representation.
type Format string

const (
	FormatJSON   Format = "json"
	FormatCBOR   Format = "cbor"
	FormatImage  Format = "image"
	FormatPacked Format = "packed"
)

// DetectFormat identifies the representation of data. Images and
// packed images are recognized by their magic; otherwise the file
// extension selects CBOR, and anything else is treated as JSON.
func DetectFormat(path string, data []byte) Format {
	switch {
	case image.IsPacked(data):
		return FormatPacked
	case bytes.HasPrefix(data, image.Magic[:]):
		return FormatImage
	case filepath.Ext(path) == ".cbor":
		return FormatCBOR
	}
	return FormatJSON
}

// Decode converts data of any supported representation into a spec.
// Images decode to borrowed specs that reference data.
func Decode(path string, data []byte) (*capdl.Spec, Format, error) {
	format := DetectFormat(path, data)
	var document *Document
	var err error
	switch format {
	case FormatPacked:
		unpacked, err := image.Unpack(data)
		if err != nil {
			return nil, format, err
		}
		spec, err := image.Open(unpacked)
		return spec, format, err
	case FormatImage:
		spec, err := image.Open(data)
		return spec, format, err
	case FormatCBOR:
		document, err = DecodeCBOR(data)
	default:
		document, err = DecodeJSON(data)
	}
	if err != nil {
		return nil, format, err
	}
	spec, err := ToSpec(document)
	return spec, format, err
}

// ReadFile reads and decodes the spec at path.
func ReadFile(path string) (*capdl.Spec, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading spec: %w", err)
	}
	spec, format, err := Decode(path, data)
	if err != nil {
		return nil, format, fmt.Errorf("%s: %w", path, err)
	}
	return spec, format, nil
}
