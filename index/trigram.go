// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import "io"

// A trigramStream turns a byte stream into a sequence of 24-bit trigrams,
// gating out content that looks binary, looks like non-UTF-8 text, or
// contains absurdly long lines. It is the streaming counterpart to the
// inline byte-at-a-time loop the original indexer used; pulling it out
// into its own cursor makes the three gating rules independently testable.
type trigramStream struct {
	r       io.Reader
	buf     []byte // read-ahead buffer
	i       int    // next unread byte in buf
	cur     uint32 // rolling 24-bit window of the last 3 bytes read
	numRead int64  // total bytes read so far

	invalidCount     int
	maxInvalidRatio  float64 // invalidCount/numRead beyond this trips ErrHighInvalidUTF8
	invalidMinSample int64   // don't judge the ratio until this many bytes are in

	lineLen    int
	maxLineLen int

	emittedShort bool // set once the short-file fallback trigram has fired
	done         bool
	err          error
}

// trigramReadAhead is the read-ahead buffer size, matching spec §4.2.
const trigramReadAhead = 16 << 10

// invalidUTF8MinSample is the number of bytes read before the invalid-UTF-8
// ratio gate starts rejecting files; below this, a single bad byte pair in a
// short file would otherwise trip a 100% ratio.
const invalidUTF8MinSample = 256

func newTrigramStream(r io.Reader, maxLineLen int, maxInvalidRatio float64) *trigramStream {
	return &trigramStream{
		r:               r,
		buf:             make([]byte, 0, trigramReadAhead),
		maxLineLen:      maxLineLen,
		maxInvalidRatio: maxInvalidRatio,
		invalidMinSample: invalidUTF8MinSample,
	}
}

// next returns the next trigram in the stream. ok is false once the stream
// is exhausted or a gating error has been returned; once err is non-nil,
// every subsequent call returns the same error.
func (s *trigramStream) next() (trigram uint32, ok bool, err error) {
	if s.done {
		return 0, false, s.err
	}
	for {
		if s.i >= len(s.buf) {
			n, rerr := s.r.Read(s.buf[:cap(s.buf)])
			if n == 0 {
				if rerr != nil && rerr != io.EOF {
					s.done, s.err = true, rerr
					return 0, false, rerr
				}
				// End of input. Emit the short-file fallback trigram once
				// if fewer than 3 bytes were ever read.
				if s.numRead > 0 && s.numRead < 3 && !s.emittedShort {
					s.emittedShort = true
					s.done = true
					return s.cur, true, nil
				}
				s.done = true
				return 0, false, nil
			}
			s.buf = s.buf[:n]
			s.i = 0
		}
		c := s.buf[s.i]
		s.i++
		s.cur = ((s.cur << 8) | uint32(c)) & (1<<24 - 1)
		s.numRead++

		if s.numRead < 3 {
			continue
		}

		b1 := byte(s.cur >> 8)
		b2 := byte(s.cur)
		if b1 == 0 || b2 == 0 {
			s.done, s.err = true, ErrBinaryData
			return 0, false, s.err
		}

		if !validUTF8(uint32(b1), uint32(b2)) {
			s.invalidCount++
			if s.numRead >= s.invalidMinSample &&
				float64(s.invalidCount)/float64(s.numRead) > s.maxInvalidRatio {
				s.done, s.err = true, ErrHighInvalidUTF8
				return 0, false, s.err
			}
			continue
		}

		if c == '\n' {
			s.lineLen = 0
		} else {
			s.lineLen++
			if s.lineLen > s.maxLineLen {
				s.done, s.err = true, ErrLineTooLong
				return 0, false, ErrLineTooLong
			}
		}

		return s.cur, true, nil
	}
}

// validUTF8 reports whether the byte pair can appear in a
// valid sequence of UTF-8-encoded code points.
func validUTF8(c1, c2 uint32) bool {
	switch {
	case c1 < 0x80:
		// 1-byte, must be followed by 1-byte or first of multi-byte
		return c2 < 0x80 || 0xc0 <= c2 && c2 < 0xf8
	case c1 < 0xc0:
		// continuation byte, can be followed by nearly anything
		return c2 < 0xf8
	case c1 < 0xf8:
		// first of multi-byte, must be followed by continuation byte
		return 0x80 <= c2 && c2 < 0xc0
	}
	return false
}
