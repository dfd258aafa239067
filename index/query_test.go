// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import "testing"

func triQ(s string) *Query {
	return &Query{Op: QAnd, Trigram: []string{s}}
}

func TestQueryAndIdentity(t *testing.T) {
	q := and_(All(), triQ("abc"))
	if !containsTrigramDeep(q, "abc") || q.Op != QAnd {
		t.Fatalf("and_(All, abc) = %s, want an AND over abc", q)
	}
}

func TestQueryOrIdentity(t *testing.T) {
	q := or_(None(), triQ("abc"))
	if !containsTrigramDeep(q, "abc") {
		t.Fatalf("or_(None, abc) = %s, want a query over abc", q)
	}
}

func TestQuerySelfAndCollapses(t *testing.T) {
	q := and_(triQ("abc"), triQ("abc"))
	if q.Op != QAnd || len(q.Trigram) != 1 || q.Trigram[0] != "abc" {
		t.Fatalf("and_(abc, abc) = %s, want a single abc trigram, not duplicated", q)
	}
}

func containsTrigramDeep(q *Query, t string) bool {
	if containsTrigram(q.Trigram, t) {
		return true
	}
	for _, sub := range q.Sub {
		if containsTrigramDeep(sub, t) {
			return true
		}
	}
	return false
}

func TestQueryCommonFactorOut(t *testing.T) {
	// (abc AND xyz) OR (abc AND pqr) factors the common "abc" trigram out
	// into an outer AND, rather than appearing twice.
	left := and_(triQ("abc"), triQ("xyz"))
	right := and_(triQ("abc"), triQ("pqr"))
	q := or_(left, right)
	if q.Op != QAnd {
		t.Fatalf("factored query op = %v, want QAnd (common trigram hoisted out), got %s", q.Op, q)
	}
	if !containsTrigramDeep(q, "abc") {
		t.Fatalf("factored query %s does not contain hoisted trigram abc", q)
	}
}

func TestQueryNoneAnd(t *testing.T) {
	q := and_(None(), triQ("abc"))
	if q.Op != QNone {
		t.Fatalf("and_(None, abc) = %s, want -", q)
	}
}

func TestQueryAllOr(t *testing.T) {
	q := or_(All(), triQ("abc"))
	if q.Op != QAll {
		t.Fatalf("or_(All, abc) = %s, want *", q)
	}
}
