// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pngchunk

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Encoder writes consecutive chunks to a stream.
//
// Encoder is not safe for concurrent use.
type Encoder struct {
	w io.Writer

	buf []byte

	opt Options

	off int64
}

// NewEncoder creates new Encoder with specified options.
func NewEncoder(w io.Writer, opts ...OptionFunc) (*Encoder, error) {
	opt, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Encoder{
		w:   w,
		opt: opt,
	}, nil
}

// Offset returns the number of bytes written to the stream.
func (e *Encoder) Offset() int64 {
	return e.off
}

// Encode writes the chunk to the stream.
//
// Unlike NewChunk, Encode validates the chunk type, so that everything written
// can be read back by Decoder.
func (e *Encoder) Encode(c Chunk) error {
	if !c.Type().IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidChunkType, c.Type())
	}

	if uint64(c.Length()) > uint64(e.opt.MaxLength) {
		return fmt.Errorf("%w: length %d, limit %d", ErrTooLarge, c.Length(), e.opt.MaxLength)
	}

	e.buf = c.AppendBytes(e.buf[:0])

	n, err := e.w.Write(e.buf)
	e.off += int64(n)

	if err != nil {
		return fmt.Errorf("failed to write chunk %s: %w", c.Type(), err)
	}

	e.opt.Logger.Debug("encoded chunk", zap.Stringer("type", c.Type()), zap.Int("length", c.Length()), zap.Int64("offset", e.off-int64(n)))

	return nil
}
