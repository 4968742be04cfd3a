// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package pngchunk implements encoding and decoding of PNG chunks.
//
// Chunk layout (big-endian):
//
//	length  4 bytes, payload size
//	type    4 bytes, ASCII letters
//	payload length bytes
//	crc     4 bytes, CRC-32 (IEEE) over type and payload
package pngchunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"slices"
	"strconv"
	"unicode/utf8"
)

// Chunk layout sizes.
const (
	LengthSize = 4
	TypeSize   = 4
	CRCSize    = 4

	// MetadataSize is the size of everything in a chunk but the payload.
	MetadataSize = LengthSize + TypeSize + CRCSize

	// MaxLength is the largest payload length allowed by PNG (2^31-1).
	MaxLength = 1<<31 - 1
)

// Chunk is a single PNG chunk: a type and a payload.
//
// The CRC is not stored, it is computed from the type and payload when needed.
type Chunk struct {
	data []byte
	typ  ChunkType
}

// NewChunk creates a new Chunk.
//
// NewChunk doesn't validate the type, and copies data.
func NewChunk(t ChunkType, data []byte) Chunk {
	return Chunk{
		typ:  t,
		data: slices.Clone(data),
	}
}

// ParseChunk decodes a chunk from the beginning of b.
//
// Bytes beyond the end of the chunk (see Size) are ignored.
func ParseChunk(b []byte) (Chunk, error) {
	if len(b) < MetadataSize {
		return Chunk{}, fmt.Errorf("%w: %d bytes, at least %d expected", ErrTooSmall, len(b), MetadataSize)
	}

	length := binary.BigEndian.Uint32(b[:LengthSize])
	rest := b[LengthSize:]

	t := ChunkTypeFromBytes([TypeSize]byte(rest[:TypeSize]))
	rest = rest[TypeSize:]

	// the type is checked before the payload and CRC are looked at
	if !t.IsValid() {
		return Chunk{}, fmt.Errorf("%w: %s", ErrInvalidChunkType, t)
	}

	if uint64(length)+CRCSize > uint64(len(rest)) {
		return Chunk{}, fmt.Errorf("%w: declared length %d, %d bytes available", ErrTruncated, length, max(len(rest)-CRCSize, 0))
	}

	c := Chunk{
		typ:  t,
		data: slices.Clone(rest[:length]),
	}

	expected := binary.BigEndian.Uint32(rest[length : length+CRCSize])

	if actual := c.CRC(); actual != expected {
		return Chunk{}, &ChecksumError{
			Expected: expected,
			Actual:   actual,
		}
	}

	return c, nil
}

// Type returns the chunk type.
func (c Chunk) Type() ChunkType {
	return c.typ
}

// Length returns the payload length.
func (c Chunk) Length() int {
	return len(c.data)
}

// Size returns the encoded size of the chunk.
func (c Chunk) Size() int {
	return MetadataSize + len(c.data)
}

// Data returns a copy of the payload.
func (c Chunk) Data() []byte {
	return slices.Clone(c.data)
}

// CRC computes the chunk checksum over the type and the payload.
func (c Chunk) CRC() uint32 {
	crc := crc32.Update(0, crc32.IEEETable, c.typ[:])

	return crc32.Update(crc, crc32.IEEETable, c.data)
}

// AppendBytes appends the encoded chunk to dst and returns the result.
func (c Chunk) AppendBytes(dst []byte) []byte {
	dst = slices.Grow(dst, c.Size())

	dst = binary.BigEndian.AppendUint32(dst, uint32(len(c.data)))
	dst = append(dst, c.typ[:]...)
	dst = append(dst, c.data...)

	return binary.BigEndian.AppendUint32(dst, c.CRC())
}

// Bytes returns the encoded chunk.
func (c Chunk) Bytes() []byte {
	return c.AppendBytes(nil)
}

// WriteTo implements io.WriterTo.
func (c Chunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Bytes())

	return int64(n), err
}

// Text returns the payload as a string.
func (c Chunk) Text() (string, error) {
	if !utf8.Valid(c.data) {
		return "", fmt.Errorf("chunk %s data: %w", c.typ, ErrInvalidUTF8)
	}

	return string(c.data), nil
}

// String implements fmt.Stringer.
func (c Chunk) String() string {
	s, err := c.Text()
	if err != nil {
		return "<invalid chunk data: " + err.Error() + ">"
	}

	return strconv.Quote(s)
}

// Equal reports whether both chunks have the same type and payload.
func (c Chunk) Equal(other Chunk) bool {
	return c.typ == other.typ && bytes.Equal(c.data, other.data)
}
