// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pngchunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/siderolabs/gen/xslices"
	"go.uber.org/zap"
)

const (
	headerSize = LengthSize + TypeSize

	// payload is read in steps of at most readStep bytes, so that memory
	// follows the bytes actually present rather than the declared length
	readStep = 64 * 1024
)

// Decoder reads consecutive chunks from a stream.
//
// Decoder doesn't handle the PNG signature, the stream should be positioned at the first chunk.
// Decoder is not safe for concurrent use.
type Decoder struct {
	r io.Reader

	// re-used across chunks, holds the whole encoded chunk
	buf []byte

	opt Options

	// number of bytes consumed from r
	off int64

	// offset of the last decoded chunk
	last int64
}

// NewDecoder creates new Decoder with specified options.
func NewDecoder(r io.Reader, opts ...OptionFunc) (*Decoder, error) {
	opt, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Decoder{
		r:   r,
		opt: opt,
		buf: make([]byte, headerSize),
	}, nil
}

// Offset returns the number of bytes consumed from the stream.
func (d *Decoder) Offset() int64 {
	return d.off
}

// LastOffset returns the stream offset of the chunk returned by the last successful Decode.
//
// With skipped corrupt chunks, this differs from Offset before the call.
func (d *Decoder) LastOffset() int64 {
	return d.last
}

// Decode reads the next chunk.
//
// Decode returns io.EOF if the stream ends on a chunk boundary.
func (d *Decoder) Decode() (Chunk, error) {
	for {
		start := d.off

		c, err := d.decode()
		if err == nil {
			d.last = start

			d.opt.Logger.Debug("decoded chunk", zap.Stringer("type", c.Type()), zap.Int("length", c.Length()), zap.Int64("offset", start))

			return c, nil
		}

		if d.opt.SkipCorrupt && errors.Is(err, ErrChecksum) {
			d.opt.Logger.Warn("skipping corrupt chunk", zap.Int64("offset", start), zap.Error(err))

			continue
		}

		return Chunk{}, err
	}
}

// DecodeAll reads chunks until the end of the stream.
//
// On error, chunks decoded so far are returned along with the error.
func (d *Decoder) DecodeAll() ([]Chunk, error) {
	var chunks []Chunk

	for {
		c, err := d.Decode()
		if err == io.EOF { //nolint:errorlint
			d.opt.Logger.Debug("decoded chunk stream",
				zap.Int("num_chunks", len(chunks)),
				zap.Int64("bytes", d.off),
				zap.Strings("types", xslices.Map(chunks, func(c Chunk) string {
					return c.Type().String()
				})),
			)

			return chunks, nil
		}

		if err != nil {
			return chunks, err
		}

		chunks = append(chunks, c)
	}
}

func (d *Decoder) decode() (Chunk, error) {
	start := d.off

	n, err := io.ReadFull(d.r, d.buf[:headerSize])
	d.off += int64(n)

	switch {
	case err == io.EOF: //nolint:errorlint
		return Chunk{}, io.EOF
	case err == io.ErrUnexpectedEOF: //nolint:errorlint
		return Chunk{}, fmt.Errorf("%w: %d bytes at offset %d, at least %d expected", ErrTooSmall, n, start, MetadataSize)
	case err != nil:
		return Chunk{}, err
	}

	length := binary.BigEndian.Uint32(d.buf[:LengthSize])

	// reject garbage before reading (and allocating for) the payload
	if t := ChunkTypeFromBytes([TypeSize]byte(d.buf[LengthSize:headerSize])); !t.IsValid() {
		return Chunk{}, fmt.Errorf("%w: %s at offset %d", ErrInvalidChunkType, t, start)
	}

	if length > d.opt.MaxLength {
		return Chunk{}, fmt.Errorf("%w: length %d at offset %d, limit %d", ErrTooLarge, length, start, d.opt.MaxLength)
	}

	d.buf = d.buf[:headerSize]

	for remaining := int(length) + CRCSize; remaining > 0; {
		step := min(remaining, readStep)
		l := len(d.buf)

		d.buf = slices.Grow(d.buf, step)

		n, err = io.ReadFull(d.r, d.buf[l:l+step])
		d.buf = d.buf[:l+n]
		d.off += int64(n)
		remaining -= n

		switch {
		case err == io.EOF || err == io.ErrUnexpectedEOF: //nolint:errorlint
			read := len(d.buf) - headerSize

			if len(d.buf) < MetadataSize {
				return Chunk{}, fmt.Errorf("%w: %d bytes at offset %d, at least %d expected", ErrTooSmall, len(d.buf), start, MetadataSize)
			}

			return Chunk{}, fmt.Errorf("%w: declared length %d at offset %d, %d bytes available", ErrTruncated, length, start, max(read-CRCSize, 0))
		case err != nil:
			return Chunk{}, err
		}
	}

	c, err := ParseChunk(d.buf)
	if err != nil {
		return Chunk{}, fmt.Errorf("chunk at offset %d: %w", start, err)
	}

	return c, nil
}
