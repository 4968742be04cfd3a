// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pngchunk

import "fmt"

// Compressor implements an optional interface for chunk payload compression.
//
// Compress and Decompress append to the dest slice and return the result.
//
// Compressor should be safe for concurrent use by multiple goroutines.
type Compressor interface {
	Compress(src, dest []byte) ([]byte, error)
	Decompress(src, dest []byte) ([]byte, error)
	DecompressedSize(src []byte) (int64, error)
}

// NewCompressedChunk creates a chunk with the compressed data as payload.
func NewCompressedChunk(t ChunkType, data []byte, c Compressor) (Chunk, error) {
	compressed, err := c.Compress(data, nil)
	if err != nil {
		return Chunk{}, fmt.Errorf("failed to compress chunk %s: %w", t, err)
	}

	// compressed is freshly allocated, no need to copy
	return Chunk{
		typ:  t,
		data: compressed,
	}, nil
}

// Decompress returns the decompressed payload.
//
// If the decompressed size is above limit (or doesn't fit int64), ErrTooLarge is
// returned without decompressing.
func (c Chunk) Decompress(comp Compressor, limit int64) ([]byte, error) {
	size, err := comp.DecompressedSize(c.data)
	if err != nil {
		return nil, fmt.Errorf("failed to get decompressed size of chunk %s: %w", c.typ, err)
	}

	if size < 0 || size > limit {
		return nil, fmt.Errorf("%w: chunk %s decompresses to %d bytes, limit %d", ErrTooLarge, c.typ, size, limit)
	}

	data, err := comp.Decompress(c.data, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress chunk %s: %w", c.typ, err)
	}

	return data, nil
}
