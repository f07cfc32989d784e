// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm of a packed image. Values are
// stored in the envelope header.
type Compression uint8

const (
	CompressionNone Compression = 0

	// CompressionLZ4 is LZ4 block compression: fast to decode, suited
	// to loaders with little time budget.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level: smaller, slower.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression is the inverse of [Compression.String].
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// EnvelopeMagic identifies a packed image.
var EnvelopeMagic = [8]byte{'C', 'A', 'P', 'D', 'L', 'P', 'A', 'K'}

// Envelope header: magic, compression tag and 7 reserved bytes, then
// the uncompressed size.
const envelopeHeaderSize = 24

// ErrNotPacked is returned by [Unpack] for data without the envelope
// magic.
var ErrNotPacked = errors.New("not a packed capdl image")

// envelopeCodec packs and unpacks one compression's payload. shrink
// returns nil when the result would not be smaller than data. expand
// always returns memory independent of payload.
type envelopeCodec struct {
	shrink func(data []byte) ([]byte, error)
	expand func(payload []byte, size int) ([]byte, error)
}

var envelopeCodecs = map[Compression]envelopeCodec{
	CompressionNone: {
		shrink: func([]byte) ([]byte, error) { return nil, nil },
		expand: func(payload []byte, _ int) ([]byte, error) { return bytes.Clone(payload), nil },
	},
	CompressionLZ4:  {shrink: shrinkLZ4, expand: expandLZ4},
	CompressionZstd: {shrink: shrinkZstd, expand: expandZstd},
}

// Pack wraps data in an envelope compressed with the requested
// algorithm. Data that does not shrink is stored uncompressed; the
// envelope records what was actually used.
func Pack(data []byte, compression Compression) ([]byte, error) {
	codec, ok := envelopeCodecs[compression]
	if !ok {
		return nil, fmt.Errorf("unsupported compression %s", compression)
	}
	payload, used := data, CompressionNone
	smaller, err := codec.shrink(data)
	if err != nil {
		return nil, fmt.Errorf("%s compress: %w", compression, err)
	}
	if smaller != nil {
		payload, used = smaller, compression
	}

	envelope := make([]byte, envelopeHeaderSize, envelopeHeaderSize+len(payload))
	copy(envelope, EnvelopeMagic[:])
	envelope[len(EnvelopeMagic)] = byte(used)
	binary.LittleEndian.PutUint64(envelope[16:], uint64(len(data)))
	return append(envelope, payload...), nil
}

// IsPacked reports whether data starts with the envelope magic.
func IsPacked(data []byte) bool {
	return len(data) >= envelopeHeaderSize && bytes.Equal(data[:len(EnvelopeMagic)], EnvelopeMagic[:])
}

// Unpack returns the image inside an envelope. The result never
// shares memory with envelope, so it stays valid after envelope is
// released (an unmapped file, a reused buffer).
func Unpack(envelope []byte) ([]byte, error) {
	if !IsPacked(envelope) {
		return nil, ErrNotPacked
	}
	compression := Compression(envelope[len(EnvelopeMagic)])
	codec, ok := envelopeCodecs[compression]
	if !ok {
		return nil, fmt.Errorf("unsupported compression tag %d", uint8(compression))
	}
	size := binary.LittleEndian.Uint64(envelope[16:])
	if size > math.MaxInt32 {
		return nil, fmt.Errorf("packed image claims %d bytes", size)
	}

	image, err := codec.expand(envelope[envelopeHeaderSize:], int(size))
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w", compression, err)
	}
	if uint64(len(image)) != size {
		return nil, fmt.Errorf("%s payload holds %d bytes, envelope declares %d", compression, len(image), size)
	}
	return image, nil
}

func shrinkLZ4(data []byte) ([]byte, error) {
	block := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, block, nil)
	if err != nil || written == 0 || written >= len(data) {
		return nil, err
	}
	return block[:written], nil
}

func expandLZ4(payload []byte, size int) ([]byte, error) {
	image := make([]byte, size)
	read, err := lz4.UncompressBlock(payload, image)
	if err != nil {
		return nil, err
	}
	return image[:read], nil
}

// The zstd coders are built on first use; loaders that only see lz4
// or uncompressed envelopes never pay for them.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

func shrinkZstd(data []byte) ([]byte, error) {
	encoder, err := zstdEncoder()
	if err != nil {
		return nil, err
	}
	compressed := encoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, nil
	}
	return compressed, nil
}

func expandZstd(payload []byte, size int) ([]byte, error) {
	decoder, err := zstdDecoder()
	if err != nil {
		return nil, err
	}
	return decoder.DecodeAll(payload, make([]byte, 0, size))
}
