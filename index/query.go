// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"fmt"
	"sort"
	"strings"
)

// A QueryOp is a type of query operation.
type QueryOp int

const (
	QNone QueryOp = iota
	QAll
	QAnd
	QOr
)

var opString = map[QueryOp]string{
	QNone: "-",
	QAll:  "*",
	QAnd:  "and",
	QOr:   "or",
}

// A Query is a matching predicate over the trigrams an indexed file
// contains. None and All are the identities: None matches nothing, All
// matches everything (the executor never needs to consult the index for
// either). And and Or combine Trigram literals and Sub subqueries; the
// two lists are logically ANDed/ORed together, not nested further, to
// keep the tree shallow and the algebra in and_/or_ simple.
type Query struct {
	Op      QueryOp
	Trigram []string
	Sub     []*Query
}

// None returns a Query that matches no files.
func None() *Query { return &Query{Op: QNone} }

// All returns a Query that matches all files.
func All() *Query { return &Query{Op: QAll} }

func (q *Query) String() string {
	return q.str()
}

func (q *Query) str() string {
	switch q.Op {
	case QNone, QAll:
		return opString[q.Op]
	case QAnd:
		return "(" + strings.Join(q.andOrTerms(), " ") + ")"
	case QOr:
		return "(" + strings.Join(q.andOrTerms(), "|") + ")"
	}
	return "?"
}

func (q *Query) andOrTerms() []string {
	var terms []string
	for _, t := range q.Trigram {
		terms = append(terms, fmt.Sprintf("%q", t))
	}
	for _, s := range q.Sub {
		terms = append(terms, s.str())
	}
	return terms
}

// maybeSimplify collapses a Query with exactly one child and no
// trigrams of its own down to that child, the way a single-element
// parenthesized group collapses to its contents.
func (q *Query) maybeSimplify() *Query {
	if (q.Op == QAnd || q.Op == QOr) && len(q.Trigram) == 0 && len(q.Sub) == 1 {
		return q.Sub[0]
	}
	return q
}

// implies reports whether q matching a file implies r also matches it.
// It is a conservative, syntactic approximation used by and_/or_ to drop
// redundant subtrees, not a full semantic implication check.
func (q *Query) implies(r *Query) bool {
	if q.Op == QNone || r.Op == QAll {
		return true
	}
	if q.Op == QAll {
		return r.Op == QAll
	}
	if r.Op == QNone {
		return q.Op == QNone
	}

	if q.Op == QAnd {
		for _, sub := range q.Sub {
			if sub.implies(r) {
				return true
			}
		}
		if r.Op == QAnd {
			for _, rtri := range r.Trigram {
				if !containsTrigram(q.Trigram, rtri) {
					return false
				}
			}
			for _, rsub := range r.Sub {
				if !q.implies(rsub) {
					return false
				}
			}
			return true
		}
		if r.Op == QOr && len(r.Trigram) >= 1 {
			for _, t := range q.Trigram {
				if containsTrigram(r.Trigram, t) {
					return true
				}
			}
		}
		return false
	}

	if r.Op == QOr {
		for _, t := range q.Trigram {
			if !containsTrigram(r.Trigram, t) {
				return false
			}
		}
		for _, sub := range q.Sub {
			if !sub.implies(r) {
				return false
			}
		}
		return len(r.Sub) == 0 || len(q.Sub) > 0
	}

	return false
}

func containsTrigram(list []string, t string) bool {
	for _, s := range list {
		if s == t {
			return true
		}
	}
	return false
}

// and_ returns the query q AND r, simplified.
func and_(q, r *Query) *Query {
	return andOr(q, r, QAnd)
}

// or_ returns the query q OR r, simplified.
func or_(q, r *Query) *Query {
	return andOr(q, r, QOr)
}

// andOr implements the factoring algebra of spec §4.9 for both AND and OR:
// collapse trivial subtrees, short-circuit on implication, merge same-op
// operands, and otherwise factor out trigrams common to both sides so that
// (abc|abc) simplifies to abc and (ab|ab)c simplifies to abc.
func andOr(q, r *Query, op QueryOp) *Query {
	q = q.maybeSimplify()
	r = r.maybeSimplify()

	if op == QAnd {
		if q.implies(r) {
			return q
		}
		if r.implies(q) {
			return r
		}
	} else {
		if q.implies(r) {
			return r
		}
		if r.implies(q) {
			return q
		}
	}

	atom := func(x *Query) bool { return len(x.Trigram) == 1 && len(x.Sub) == 0 }
	if (q.Op == op || atom(q)) && (r.Op == op || atom(r)) {
		return &Query{
			Op:      op,
			Trigram: unionTrigram(q.Trigram, r.Trigram),
			Sub:     append(append([]*Query{}, q.Sub...), r.Sub...),
		}
	}

	dual := QOr
	if op == QOr {
		dual = QAnd
	}

	common := intersectTrigram(q.allTrigrams(), r.allTrigrams())
	if len(common) > 0 {
		qr := subtractTrigram(q, common)
		rr := subtractTrigram(r, common)
		inner := andOr(qr, rr, op)
		return andOr(trigramQuery(common, dual), inner, dual)
	}

	return &Query{Op: op, Sub: []*Query{q, r}}
}

// allTrigrams returns the trigrams directly on q, ignoring its subs; this
// is what andOr factors across AND/OR boundaries.
func (q *Query) allTrigrams() []string {
	return q.Trigram
}

func subtractTrigram(q *Query, common []string) *Query {
	if len(q.Trigram) == 0 {
		return q
	}
	var rest []string
	for _, t := range q.Trigram {
		if !containsTrigram(common, t) {
			rest = append(rest, t)
		}
	}
	if len(rest) == 0 && len(q.Sub) == 0 {
		return &Query{Op: QAll}
	}
	return &Query{Op: q.Op, Trigram: rest, Sub: q.Sub}
}

func trigramQuery(t []string, op QueryOp) *Query {
	return &Query{Op: op, Trigram: t}
}

func unionTrigram(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, t := range a {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range b {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func intersectTrigram(a, b []string) []string {
	bset := make(map[string]bool, len(b))
	for _, t := range b {
		bset[t] = true
	}
	var out []string
	for _, t := range a {
		if bset[t] {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
