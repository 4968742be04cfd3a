// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package zstd implements chunk payload compression with zstd.
package zstd

import (
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

var (
	// ErrNoContentSize is returned for frames which don't declare their decompressed size.
	ErrNoContentSize = errors.New("frame content size is not set")

	// ErrContentSizeOverflow is returned for frames declaring a size beyond int64.
	ErrContentSizeOverflow = errors.New("frame content size overflows int64")
)

// Compressor implements pngchunk.Compressor using zstd compression.
//
// Payloads are stored as a single zstd frame with the content size and a checksum,
// so the decompressed size can be checked before decompressing.
type Compressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCompressor creates new Compressor.
func NewCompressor(opts ...zstd.EOption) (*Compressor, error) {
	enc, err := zstd.NewWriter(nil, append([]zstd.EOption{zstd.WithEncoderCRC(true)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Compressor{
		enc: enc,
		dec: dec,
	}, nil
}

// Compress appends the zstd frame of src to dest.
func (c *Compressor) Compress(src, dest []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, dest), nil
}

// Decompress appends the decompressed frame src to dest.
func (c *Compressor) Decompress(src, dest []byte) ([]byte, error) {
	return c.dec.DecodeAll(src, dest)
}

// DecompressedSize reads the content size from the frame header of src.
//
// Empty src is an empty payload.
func (c *Compressor) DecompressedSize(src []byte) (int64, error) {
	if len(src) == 0 {
		return 0, nil
	}

	var header zstd.Header

	if err := header.Decode(src); err != nil {
		return 0, err
	}

	switch {
	case header.Skippable:
		return 0, fmt.Errorf("skippable frame: %w", ErrNoContentSize)
	case !header.HasFCS:
		return 0, ErrNoContentSize
	case header.FrameContentSize > math.MaxInt64:
		return 0, fmt.Errorf("%w: %d", ErrContentSizeOverflow, header.FrameContentSize)
	}

	return int64(header.FrameContentSize), nil
}

// Close releases decoder resources.
func (c *Compressor) Close() {
	c.dec.Close()
}
