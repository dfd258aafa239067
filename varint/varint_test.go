// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package varint

import "testing"

func TestEncodeDecode(t *testing.T) {
	cases := []uint32{0, 1, 127, 128, 300, 1 << 14, 1<<21 - 1, 1 << 28, ^uint32(0)}
	for _, x := range cases {
		var buf []byte
		buf = Encode(buf, x)
		if len(buf) > MaxLen {
			t.Errorf("Encode(%d) used %d bytes, want <= %d", x, len(buf), MaxLen)
		}
		got, n, err := Decode(buf)
		if err != nil {
			t.Fatalf("Decode(%v): %v", buf, err)
		}
		if n != len(buf) {
			t.Errorf("Decode(%v) consumed %d bytes, want %d", buf, n, len(buf))
		}
		if got != x {
			t.Errorf("Decode(Encode(%d)) = %d", x, got)
		}
	}
}

func TestDecodeCorrupt(t *testing.T) {
	// Five continuation bytes with no terminator.
	_, _, err := Decode([]byte{0x80, 0x80, 0x80, 0x80, 0x80})
	if err != ErrCorrupt {
		t.Fatalf("Decode(unterminated) = %v, want ErrCorrupt", err)
	}

	// Fifth byte carries bits above bit 32.
	_, _, err = Decode([]byte{0xff, 0xff, 0xff, 0xff, 0x1f})
	if err != ErrCorrupt {
		t.Fatalf("Decode(overflow) = %v, want ErrCorrupt", err)
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	buf := Encode(nil, 128)
	buf = append(buf, 0xAA)
	got, n, err := Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != 128 || n != 2 {
		t.Fatalf("Decode = %d, %d, want 128, 2", got, n)
	}
}
