// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the standard CBOR encoding configuration for
// spec interchange between build tools.
//
// Two serialization formats are used with a clear boundary:
//
//   - JSON (authored as JSONC) for hand-written and generated specs
//     and for CLI output.
//   - CBOR for machine-to-machine interchange: a build tool hands a
//     spec to the embedder, or a spec is stored content-addressed.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// decoder is strict: unknown fields and duplicate keys are errors.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// # Struct Tag Rules
//
// Wire types carry `json` tags only. fxamacker/cbor v2 reads `json`
// tags when `cbor` tags are absent, so one tag controls field naming
// and omitempty for both formats.
package codec
