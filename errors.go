// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pngchunk

import (
	"errors"
	"fmt"
)

var (
	// ErrTooSmall is returned when the input is shorter than the fixed chunk metadata.
	ErrTooSmall = errors.New("chunk is too small")

	// ErrTruncated is returned when the declared payload length exceeds the available input.
	ErrTruncated = errors.New("chunk is truncated")

	// ErrInvalidChunkType is returned when a chunk carries a type which fails validation.
	ErrInvalidChunkType = errors.New("invalid chunk type")

	// ErrTypeLength is matched by *TypeLengthError.
	ErrTypeLength = errors.New("invalid chunk type length")

	// ErrInvalidCharacter is returned when a chunk type contains non-alphabetic characters.
	ErrInvalidCharacter = errors.New("chunk type contains invalid characters")

	// ErrChecksum is matched by *ChecksumError.
	ErrChecksum = errors.New("chunk checksum mismatch")

	// ErrInvalidUTF8 is returned when bytes rendered as text are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8")

	// ErrTooLarge is returned when a chunk payload exceeds the configured limit.
	ErrTooLarge = errors.New("chunk is too large")
)

// TypeLengthError is returned when a chunk type is constructed from text of the wrong length.
type TypeLengthError struct {
	Length int
}

// Error implements error.
func (e *TypeLengthError) Error() string {
	return fmt.Sprintf("expected %d bytes but received %d when creating chunk type", TypeSize, e.Length)
}

// Is makes errors.Is(err, ErrTypeLength) work.
func (e *TypeLengthError) Is(target error) bool {
	return target == ErrTypeLength
}

// ChecksumError is returned when the CRC stored in a chunk doesn't match the computed one.
type ChecksumError struct {
	// Expected is the CRC read from the input.
	Expected uint32
	// Actual is the CRC computed over the chunk type and payload.
	Actual uint32
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("chunk checksum should be 0x%08x but found 0x%08x instead", e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrChecksum) work.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}
