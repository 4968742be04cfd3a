// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pngchunk

import (
	"fmt"
	"unicode/utf8"
)

// ChunkType is a 4-byte PNG chunk type.
//
// The case of each byte encodes a property bit: uppercase means the bit is set.
// A ChunkType built from raw bytes is not validated, use IsValid before trusting it.
type ChunkType [TypeSize]byte

// ChunkTypeFromBytes creates a ChunkType from raw bytes without any validation.
func ChunkTypeFromBytes(b [TypeSize]byte) ChunkType {
	return ChunkType(b)
}

// ParseChunkType creates a ChunkType from a 4-character ASCII alphabetic string.
//
// ParseChunkType doesn't check the reserved bit, so "Rust" is accepted, but IsValid reports false.
func ParseChunkType(s string) (ChunkType, error) {
	if len(s) != TypeSize {
		return ChunkType{}, &TypeLengthError{Length: len(s)}
	}

	var t ChunkType

	for i := range TypeSize {
		if !isASCIILetter(s[i]) {
			return ChunkType{}, fmt.Errorf("%w: %q", ErrInvalidCharacter, s)
		}

		t[i] = s[i]
	}

	return t, nil
}

// Bytes returns the raw chunk type bytes.
func (t ChunkType) Bytes() [TypeSize]byte {
	return t
}

// IsCritical reports whether the ancillary bit (byte 0) is not set.
func (t ChunkType) IsCritical() bool {
	return isASCIIUpper(t[0])
}

// IsPublic reports whether the private bit (byte 1) is not set.
func (t ChunkType) IsPublic() bool {
	return isASCIIUpper(t[1])
}

// IsReservedBitValid reports whether byte 2 is an uppercase letter.
func (t ChunkType) IsReservedBitValid() bool {
	return isASCIIUpper(t[2])
}

// IsSafeToCopy reports whether byte 3 is a lowercase letter.
func (t ChunkType) IsSafeToCopy() bool {
	return isASCIILower(t[3])
}

// IsValid reports whether all bytes are ASCII letters and the reserved bit is valid.
func (t ChunkType) IsValid() bool {
	for _, b := range t {
		if !isASCIILetter(b) {
			return false
		}
	}

	return t.IsReservedBitValid()
}

// Text renders the chunk type as a string.
func (t ChunkType) Text() (string, error) {
	if !utf8.Valid(t[:]) {
		return "", fmt.Errorf("chunk type %x: %w", t[:], ErrInvalidUTF8)
	}

	return string(t[:]), nil
}

// String implements fmt.Stringer.
//
// Types which can't be rendered as text are printed in hex.
func (t ChunkType) String() string {
	s, err := t.Text()
	if err != nil {
		return fmt.Sprintf("%x", t[:])
	}

	return s
}

func isASCIIUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func isASCIILower(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func isASCIILetter(b byte) bool {
	return isASCIIUpper(b) || isASCIILower(b)
}
