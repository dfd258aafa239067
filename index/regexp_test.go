// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"regexp/syntax"
	"testing"
)

func mustParse(t *testing.T, s string) *syntax.Regexp {
	t.Helper()
	re, err := syntax.Parse(s, syntax.Perl)
	if err != nil {
		t.Fatalf("syntax.Parse(%q): %v", s, err)
	}
	return re
}

func TestRegexpQueryLiteral(t *testing.T) {
	q := RegexpQuery(mustParse(t, "Abcdef"))
	// A 6-byte literal factors into the AND of its 4 overlapping trigrams.
	want := "(\"Abc\" \"bcd\" \"cde\" \"def\")"
	if q.String() != want {
		t.Fatalf("RegexpQuery(Abcdef) = %s, want %s", q, want)
	}
}

func TestRegexpQueryShortLiteral(t *testing.T) {
	q := RegexpQuery(mustParse(t, "ab"))
	if q.Op != QAll {
		t.Fatalf("RegexpQuery(ab) = %s, want *", q)
	}
}

func TestRegexpQueryAlternate(t *testing.T) {
	q := RegexpQuery(mustParse(t, "abc|abd"))
	if q.Op != QOr && q.Op != QAnd {
		t.Fatalf("RegexpQuery(abc|abd) = %s, want a query with a structure", q)
	}
	// Both alternatives share trigram "abc"'s prefix only as substrings of
	// length 3; since both are exact 3-byte literals, the result must be
	// able to tell them apart (not ALL).
	if q.Op == QAll {
		t.Fatalf("RegexpQuery(abc|abd) = *, want a real constraint")
	}
}

func TestRegexpQueryUnanchoredRepeat(t *testing.T) {
	q := RegexpQuery(mustParse(t, `\d+`))
	if q.Op != QAll {
		t.Fatalf(`RegexpQuery(\d+) = %s, want * (no usable trigram constraint)`, q)
	}
}

func TestRegexpQueryCharClass(t *testing.T) {
	q := RegexpQuery(mustParse(t, "ab[cde]f"))
	if q.Op == QNone {
		t.Fatalf("RegexpQuery(ab[cde]f) = -, want a real constraint")
	}
}
