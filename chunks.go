// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pngchunk

import (
	"github.com/siderolabs/gen/optional"
	"github.com/siderolabs/gen/xslices"
)

// Find returns the first chunk of the given type.
func Find(chunks []Chunk, t ChunkType) optional.Optional[Chunk] {
	for _, c := range chunks {
		if c.Type() == t {
			return optional.Some(c)
		}
	}

	return optional.None[Chunk]()
}

// Types returns chunk types in order.
func Types(chunks []Chunk) []ChunkType {
	return xslices.Map(chunks, Chunk.Type)
}
