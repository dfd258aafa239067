// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sparse implements a sparse set of uint32 values drawn from a
// bounded universe, with O(1) insert, membership test, and clear. It backs
// both the indexer's per-file trigram set (a 2²⁴ universe) and, in the
// original project, the regexp DFA's NFA-state queue; it is its own package
// for that reason rather than living inside index.
package sparse

// A Set is a sparse set of uint32s in the range [0, max), as described in
//
//	Preston Briggs and Linda Torczon, "An Efficient Representation for
//	Sparse Sets," ACM Letters on Programming Languages and Systems,
//	Volume 2, Issue 1-4 (March-Dec. 1993), pp. 59-69.
//
// The zero Set is not usable; call NewSet or Init first.
type Set struct {
	dense  []uint32
	sparse []uint32
}

// NewSet returns a new Set with the given universe size.
func NewSet(max uint32) *Set {
	s := &Set{}
	s.Init(max)
	return s
}

// Init initializes s to hold values in the range [0, max).
func (s *Set) Init(max uint32) {
	s.sparse = make([]uint32, max)
	s.dense = make([]uint32, 0, max)
}

// Len returns the number of distinct values currently in the set.
func (s *Set) Len() int {
	return len(s.dense)
}

// Dense returns the values in the set, in the order they were added.
// The caller must not modify the returned slice.
func (s *Set) Dense() []uint32 {
	return s.dense
}

// Has reports whether x is in the set.
func (s *Set) Has(x uint32) bool {
	v := s.sparse[x]
	return v < uint32(len(s.dense)) && s.dense[v] == x
}

// Add inserts x into the set. It is a no-op if x is already present.
func (s *Set) Add(x uint32) {
	v := s.sparse[x]
	if v < uint32(len(s.dense)) && s.dense[v] == x {
		return
	}
	s.sparse[x] = uint32(len(s.dense))
	s.dense = append(s.dense, x)
}

// Reset empties the set. It runs in O(1): the sparse array is left as-is
// and stale entries are rejected by Has's self-validating bounds check the
// next time they're consulted.
func (s *Set) Reset() {
	s.dense = s.dense[:0]
}
