// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pngchunk_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"runtime"
	"testing"

	"github.com/siderolabs/gen/xtesting/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/siderolabs/go-pngchunk"
)

func testStream(t *testing.T) ([]pngchunk.Chunk, []byte) {
	chunks := []pngchunk.Chunk{
		pngchunk.NewChunk(must.Value(pngchunk.ParseChunkType("IHDR"))(t), make([]byte, 13)),
		pngchunk.NewChunk(must.Value(pngchunk.ParseChunkType("tEXt"))(t), []byte("Comment\x00hello")),
		testChunk(t),
		pngchunk.NewChunk(must.Value(pngchunk.ParseChunkType("IDAT"))(t), must.Value(io.ReadAll(io.LimitReader(rand.Reader, 10_000)))(t)),
		pngchunk.NewChunk(must.Value(pngchunk.ParseChunkType("IEND"))(t), nil),
	}

	var stream []byte

	for _, c := range chunks {
		stream = c.AppendBytes(stream)
	}

	return chunks, stream
}

func assertChunksEqual(t *testing.T, expected, actual []pngchunk.Chunk) {
	t.Helper()

	require.Len(t, actual, len(expected))

	for i := range expected {
		assert.True(t, expected[i].Equal(actual[i]), "chunk %d: expected %s, got %s", i, expected[i].Type(), actual[i].Type())
	}
}

func TestDecoder(t *testing.T) {
	t.Parallel()

	chunks, stream := testStream(t)

	dec, err := pngchunk.NewDecoder(bytes.NewReader(stream), pngchunk.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	var offset int64

	for _, expected := range chunks {
		c, err := dec.Decode()
		require.NoError(t, err)

		assert.True(t, expected.Equal(c))

		offset += int64(c.Size())
		assert.Equal(t, offset, dec.Offset())
	}

	_, err = dec.Decode()
	require.ErrorIs(t, err, io.EOF)

	_, err = dec.Decode()
	require.ErrorIs(t, err, io.EOF)
}

func TestDecoderDecodeAll(t *testing.T) {
	t.Parallel()

	chunks, stream := testStream(t)

	dec, err := pngchunk.NewDecoder(bytes.NewReader(stream), pngchunk.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	decoded, err := dec.DecodeAll()
	require.NoError(t, err)

	assertChunksEqual(t, chunks, decoded)
	assert.EqualValues(t, len(stream), dec.Offset())

	dec, err = pngchunk.NewDecoder(bytes.NewReader(nil))
	require.NoError(t, err)

	decoded, err = dec.DecodeAll()
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecoderErrors(t *testing.T) {
	t.Parallel()

	_, stream := testStream(t)

	valid := testChunk(t).Bytes()

	invalidType := bytes.Clone(valid)
	invalidType[6] = 's'

	for _, test := range []struct {
		name string

		input []byte
		opts  []pngchunk.OptionFunc

		expectedErr    error
		expectedChunks int
	}{
		{
			name:        "partial header",
			input:       valid[:5],
			expectedErr: pngchunk.ErrTooSmall,
		},
		{
			name:        "too small",
			input:       valid[:10],
			expectedErr: pngchunk.ErrTooSmall,
		},
		{
			name:        "invalid type",
			input:       invalidType,
			expectedErr: pngchunk.ErrInvalidChunkType,
		},
		{
			name: "invalid type before payload",
			// nothing but the header is available
			input:       invalidType[:8],
			expectedErr: pngchunk.ErrInvalidChunkType,
		},
		{
			name:        "truncated",
			input:       valid[:len(valid)-2],
			expectedErr: pngchunk.ErrTruncated,
		},
		{
			name: "truncated stream",
			// cut into the IDAT checksum, IEND is dropped completely
			input:          stream[:len(stream)-12-2],
			expectedErr:    pngchunk.ErrTruncated,
			expectedChunks: 3,
		},
		{
			name:        "too large",
			input:       valid,
			opts:        []pngchunk.OptionFunc{pngchunk.WithMaxLength(41)},
			expectedErr: pngchunk.ErrTooLarge,
		},
		{
			name:           "checksum in stream",
			input:          append(bytes.Clone(stream[:len(stream)-12]), encode(0, "IEND", nil, 0)...),
			expectedErr:    pngchunk.ErrChecksum,
			expectedChunks: 4,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			dec, err := pngchunk.NewDecoder(bytes.NewReader(test.input), append(test.opts, pngchunk.WithLogger(zaptest.NewLogger(t)))...)
			require.NoError(t, err)

			chunks, err := dec.DecodeAll()
			require.ErrorIs(t, err, test.expectedErr)
			assert.Len(t, chunks, test.expectedChunks)
		})
	}
}

func TestDecoderSkipCorrupt(t *testing.T) {
	t.Parallel()

	chunks, _ := testStream(t)

	var stream []byte

	for i, c := range chunks {
		encoded := c.Bytes()

		if i == 1 || i == 3 {
			encoded[len(encoded)-1] ^= 0x01
		}

		stream = append(stream, encoded...)
	}

	dec, err := pngchunk.NewDecoder(bytes.NewReader(stream), pngchunk.WithSkipCorrupt(true), pngchunk.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	decoded, err := dec.DecodeAll()
	require.NoError(t, err)

	assertChunksEqual(t, []pngchunk.Chunk{chunks[0], chunks[2], chunks[4]}, decoded)
	assert.EqualValues(t, len(stream), dec.Offset())

	// offsets of the chunks returned, with the corrupt ones skipped
	dec, err = pngchunk.NewDecoder(bytes.NewReader(stream), pngchunk.WithSkipCorrupt(true), pngchunk.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	var expectedOffsets, offsets []int64

	var off int64

	for i, c := range chunks {
		if i%2 == 0 {
			expectedOffsets = append(expectedOffsets, off)
		}

		off += int64(c.Size())
	}

	for range 3 {
		_, err = dec.Decode()
		require.NoError(t, err)

		offsets = append(offsets, dec.LastOffset())
	}

	assert.Equal(t, expectedOffsets, offsets)

	// other errors are not skipped
	stream[len(stream)-6] = 'n'

	dec, err = pngchunk.NewDecoder(bytes.NewReader(stream), pngchunk.WithSkipCorrupt(true), pngchunk.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	decoded, err = dec.DecodeAll()
	require.ErrorIs(t, err, pngchunk.ErrInvalidChunkType)
	assert.Len(t, decoded, 2)
}

func TestDecoderLastOffset(t *testing.T) {
	t.Parallel()

	chunks, stream := testStream(t)

	dec, err := pngchunk.NewDecoder(bytes.NewReader(stream))
	require.NoError(t, err)

	var off int64

	for _, c := range chunks {
		_, err = dec.Decode()
		require.NoError(t, err)

		assert.Equal(t, off, dec.LastOffset())

		off += int64(c.Size())
	}
}

// TestDecoderTruncatedHugeLength is not parallel, as it measures allocations.
func TestDecoderTruncatedHugeLength(t *testing.T) {
	input := []byte{0x7f, 0xff, 0xff, 0xff, 'I', 'D', 'A', 'T', 0, 0, 0, 0}

	var before, after runtime.MemStats

	runtime.GC()
	runtime.ReadMemStats(&before)

	dec, err := pngchunk.NewDecoder(bytes.NewReader(input))
	require.NoError(t, err)

	_, err = dec.Decode()
	require.ErrorIs(t, err, pngchunk.ErrTruncated)

	runtime.ReadMemStats(&after)

	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20))
	assert.EqualValues(t, len(input), dec.Offset())
}

func TestDecoderLargeChunk(t *testing.T) {
	t.Parallel()

	// spans many read steps
	c := pngchunk.NewChunk(must.Value(pngchunk.ParseChunkType("IDAT"))(t), must.Value(io.ReadAll(io.LimitReader(rand.Reader, 1<<20+17)))(t))

	dec, err := pngchunk.NewDecoder(bytes.NewReader(c.Bytes()))
	require.NoError(t, err)

	decoded, err := dec.Decode()
	require.NoError(t, err)

	assert.True(t, c.Equal(decoded))
}

func TestDecoderReadError(t *testing.T) {
	t.Parallel()

	readErr := errors.New("read failed")

	dec, err := pngchunk.NewDecoder(io.MultiReader(bytes.NewReader(testChunk(t).Bytes()[:20]), &failingReader{err: readErr}))
	require.NoError(t, err)

	_, err = dec.Decode()
	require.ErrorIs(t, err, readErr)
}

// TestDecoderSlowStream feeds the decoder from a rate-limited writer, so that
// chunks arrive split over many short reads.
func TestDecoderSlowStream(t *testing.T) {
	t.Parallel()

	chunks, stream := testStream(t)

	pr, pw := io.Pipe()

	go func() {
		r := rate.NewLimiter(300_000, 100)

		p := stream

		for len(p) > 0 {
			l := min(37, len(p))

			r.WaitN(context.Background(), l) //nolint:errcheck

			if _, err := pw.Write(p[:l]); err != nil {
				pw.CloseWithError(err) //nolint:errcheck

				return
			}

			p = p[l:]
		}

		pw.Close() //nolint:errcheck
	}()

	dec, err := pngchunk.NewDecoder(pr, pngchunk.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	decoded, err := dec.DecodeAll()
	require.NoError(t, err)

	assertChunksEqual(t, chunks, decoded)
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}
