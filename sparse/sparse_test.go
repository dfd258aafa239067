// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import "testing"

func TestSetBasic(t *testing.T) {
	s := NewSet(100)
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
	for _, x := range []uint32{5, 10, 5, 99, 0} {
		s.Add(x)
	}
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	for _, x := range []uint32{5, 10, 99, 0} {
		if !s.Has(x) {
			t.Errorf("Has(%d) = false, want true", x)
		}
	}
	for _, x := range []uint32{1, 2, 50, 98} {
		if s.Has(x) {
			t.Errorf("Has(%d) = true, want false", x)
		}
	}
}

func TestSetReset(t *testing.T) {
	s := NewSet(10)
	s.Add(3)
	s.Add(7)
	s.Reset()
	if s.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", s.Len())
	}
	if s.Has(3) || s.Has(7) {
		t.Fatalf("stale membership survived Reset")
	}
	s.Add(7)
	if !s.Has(7) || s.Len() != 1 {
		t.Fatalf("re-adding after Reset failed")
	}
}

func TestSetDenseOrder(t *testing.T) {
	s := NewSet(20)
	order := []uint32{9, 1, 5, 9, 2}
	for _, x := range order {
		s.Add(x)
	}
	want := []uint32{9, 1, 5, 2}
	got := s.Dense()
	if len(got) != len(want) {
		t.Fatalf("Dense() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Dense() = %v, want %v", got, want)
		}
	}
}
