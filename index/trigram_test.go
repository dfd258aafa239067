// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"errors"
	"strings"
	"testing"
)

func drainTrigrams(t *testing.T, ts *trigramStream) ([]uint32, error) {
	t.Helper()
	var got []uint32
	for {
		tr, ok, err := ts.next()
		if err != nil {
			return got, err
		}
		if !ok {
			return got, nil
		}
		got = append(got, tr)
	}
}

func TestTrigramStreamBasic(t *testing.T) {
	ts := newTrigramStream(strings.NewReader("abcd"), 2000, 0.10)
	got, err := drainTrigrams(t, ts)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint32{tri('a', 'b', 'c'), tri('b', 'c', 'd')}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTrigramStreamShortFile(t *testing.T) {
	ts := newTrigramStream(strings.NewReader("x"), 2000, 0.10)
	got, err := drainTrigrams(t, ts)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("short file produced %d trigrams, want 1", len(got))
	}
}

func TestTrigramStreamEmptyFile(t *testing.T) {
	ts := newTrigramStream(strings.NewReader(""), 2000, 0.10)
	got, err := drainTrigrams(t, ts)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("empty file produced %d trigrams, want 0", len(got))
	}
}

func TestTrigramStreamBinaryData(t *testing.T) {
	ts := newTrigramStream(strings.NewReader("abc\x00def"), 2000, 0.10)
	_, err := drainTrigrams(t, ts)
	if !errors.Is(err, ErrBinaryData) {
		t.Fatalf("err = %v, want ErrBinaryData", err)
	}
}

func TestTrigramStreamLineTooLong(t *testing.T) {
	ts := newTrigramStream(strings.NewReader(strings.Repeat("a", 100)), 10, 0.10)
	_, err := drainTrigrams(t, ts)
	if !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("err = %v, want ErrLineTooLong", err)
	}
}

func TestTrigramStreamHighInvalidUTF8(t *testing.T) {
	// A long run of 0xFE/0xFF bytes, which never appear in UTF-8, fails the
	// byte-pair check at every position.
	bad := strings.Repeat("\xfe\xff", 200)
	ts := newTrigramStream(strings.NewReader(bad), 2000, 0.10)
	_, err := drainTrigrams(t, ts)
	if !errors.Is(err, ErrHighInvalidUTF8) {
		t.Fatalf("err = %v, want ErrHighInvalidUTF8", err)
	}
}

func TestTrigramStreamSmallSampleTolerated(t *testing.T) {
	// A handful of bad bytes in a file under the minimum sample size
	// should not trip the ratio gate, even though the local ratio is high.
	ts := newTrigramStream(strings.NewReader("ab\x80cd"), 2000, 0.10)
	_, err := drainTrigrams(t, ts)
	if err != nil {
		t.Fatalf("err = %v, want nil (sample too small to judge)", err)
	}
}
