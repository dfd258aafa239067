// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package varint implements the unsigned LEB128-style variable length
// integer encoding used throughout the on-disk index format: low 7 bits
// of value per byte, continuation signaled by the high bit.
package varint

import "errors"

// ErrCorrupt is returned by Decode when the input does not hold a valid
// varint: more than 5 bytes were consumed without a terminating byte, or
// the 5th byte carries bits above bit 32 of the decoded value.
var ErrCorrupt = errors.New("varint: corrupt encoding")

// MaxLen is the maximum number of bytes Encode ever appends for a uint32.
const MaxLen = 5

// Encode appends the varint encoding of x to dst and returns the result.
func Encode(dst []byte, x uint32) []byte {
	for x >= 0x80 {
		dst = append(dst, byte(x)|0x80)
		x >>= 7
	}
	return append(dst, byte(x))
}

// Decode reads a varint from the front of b, returning the decoded value
// and the number of bytes consumed. It fails with ErrCorrupt if the
// varint does not terminate within 5 bytes, or if the 5th byte would
// overflow 32 bits.
func Decode(b []byte) (value uint32, n int, err error) {
	var shift uint
	for i := 0; i < len(b) && i < MaxLen; i++ {
		c := b[i]
		if i == MaxLen-1 && c&0x80 == 0 && c > 0x0f {
			return 0, 0, ErrCorrupt
		}
		value |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrCorrupt
}
