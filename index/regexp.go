// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"regexp/syntax"
	"sort"
	"unicode"
	"unicode/utf8"
)

// A RegexInfo summarizes what can be known about the strings a regex
// subtree can match, well enough to build a sound (no false negatives)
// trigram Query: every string the regex matches is guaranteed to satisfy
// Query, though Query may also accept strings the regex would reject.
//
// Exact, when non-nil, is the complete, exact set of strings the subtree
// can match. Once a subtree's possibilities grow too large to enumerate,
// Exact is dropped (set to nil) in favor of Prefix/Suffix, which record
// only the known leading/trailing bytes of whatever the subtree matches.
type RegexInfo struct {
	CanEmpty bool
	Exact    []string
	Prefix   []string
	Suffix   []string
	Query    *Query
}

func emptyStringInfo() *RegexInfo {
	return &RegexInfo{CanEmpty: true, Exact: []string{""}, Query: All()}
}

func anyCharInfo() *RegexInfo {
	return &RegexInfo{Prefix: []string{""}, Suffix: []string{""}, Query: All()}
}

func anyMatchInfo() *RegexInfo {
	return &RegexInfo{CanEmpty: true, Query: All()}
}

func noMatchInfo() *RegexInfo {
	return &RegexInfo{Query: None()}
}

func literalInfo(s string) *RegexInfo {
	return &RegexInfo{CanEmpty: s == "", Exact: []string{s}, Query: All()}
}

// addExact commits info's exact string set into its Query as the AND of
// each string's trigram factors, per spec §4.8.
func (info *RegexInfo) addExact() {
	info.Query = and_(info.Query, trigramFactors(info.Exact))
}

// simplify bounds the size of info's Exact/Prefix/Suffix sets, committing
// Exact into Query and converting it to Prefix/Suffix once it is judged
// "large" (heuristic from spec §4.8), and compressing Prefix/Suffix
// separately when Exact is unset.
func (info *RegexInfo) simplify(force bool) *RegexInfo {
	if info.Exact != nil {
		ml := minLen(info.Exact)
		large := len(info.Exact) > 7 || ml >= 4 || (force && ml >= 3)
		if large {
			info.addExact()
			prefix := make([]string, len(info.Exact))
			suffix := make([]string, len(info.Exact))
			for i, s := range info.Exact {
				if len(s) < 3 {
					prefix[i] = s
					suffix[i] = s
				} else {
					prefix[i] = s[:2]
					suffix[i] = s[len(s)-2:]
				}
			}
			info.Prefix = dedupeStrings(prefix)
			info.Suffix = dedupeStrings(suffix)
			info.Exact = nil
		}
	}
	if info.Exact == nil {
		info.Prefix = compressSet(info.Prefix, false)
		info.Suffix = compressSet(info.Suffix, true)
	}
	return info
}

// compressSet truncates every string in set to a common length, shrinking
// that length from 3 down to 1 until the deduplicated result has at most
// 20 elements, matching spec §4.8's prefix/suffix compression rule.
// fromEnd keeps the last n bytes of each string (for suffix sets) instead
// of the first n.
func compressSet(set []string, fromEnd bool) []string {
	if len(set) == 0 {
		return set
	}
	for n := 3; n >= 1; n-- {
		out := make([]string, len(set))
		for i, s := range set {
			if len(s) <= n {
				out[i] = s
			} else if fromEnd {
				out[i] = s[len(s)-n:]
			} else {
				out[i] = s[:n]
			}
		}
		out = dedupeStrings(out)
		if len(out) <= 20 || n == 1 {
			return out
		}
	}
	return set
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func minLen(strs []string) int {
	if len(strs) == 0 {
		return 0
	}
	m := len(strs[0])
	for _, s := range strs[1:] {
		if len(s) < m {
			m = len(s)
		}
	}
	return m
}

func unionStrings(a, b []string) []string {
	return dedupeStrings(append(append([]string{}, a...), b...))
}

func crossProduct(a, b []string) []string {
	if len(a) == 0 {
		return append([]string{}, b...)
	}
	if len(b) == 0 {
		return append([]string{}, a...)
	}
	out := make([]string, 0, len(a)*len(b))
	for _, x := range a {
		for _, y := range b {
			out = append(out, x+y)
		}
	}
	return dedupeStrings(out)
}

// trigramFactors returns a Query that is implied by every string in strs:
// if any string is shorter than 3 bytes it contributes no constraint, so
// the whole result is ALL; otherwise it is the OR, over each string, of
// the AND of that string's overlapping 3-byte trigrams.
func trigramFactors(strs []string) *Query {
	if len(strs) == 0 || minLen(strs) < 3 {
		return All()
	}
	var result *Query
	for _, s := range strs {
		var and *Query
		for i := 0; i+3 <= len(s); i++ {
			t := &Query{Op: QAnd, Trigram: []string{s[i : i+3]}}
			if and == nil {
				and = t
			} else {
				and = and_(and, t)
			}
		}
		if and == nil {
			and = All()
		}
		if result == nil {
			result = and
		} else {
			result = or_(result, and)
		}
	}
	return result
}

// concat returns the RegexInfo for the concatenation of x then y, per
// spec §4.8.
func concat(x, y *RegexInfo) *RegexInfo {
	info := &RegexInfo{CanEmpty: x.CanEmpty && y.CanEmpty}
	if x.Exact != nil && y.Exact != nil {
		info.Exact = crossProduct(x.Exact, y.Exact)
	} else {
		if x.Exact != nil {
			info.Prefix = crossProduct(x.Exact, y.Prefix)
		} else if x.CanEmpty {
			info.Prefix = unionStrings(x.Prefix, y.Prefix)
		} else {
			info.Prefix = x.Prefix
		}
		if y.Exact != nil {
			info.Suffix = crossProduct(x.Suffix, y.Exact)
		} else if y.CanEmpty {
			info.Suffix = unionStrings(x.Suffix, y.Suffix)
		} else {
			info.Suffix = y.Suffix
		}
	}

	info.Query = and_(x.Query, y.Query)
	if x.Exact == nil && y.Exact == nil {
		cross := crossProduct(x.Suffix, y.Prefix)
		if len(x.Suffix) > 0 && len(y.Prefix) > 0 &&
			len(x.Suffix) <= 20 && len(y.Prefix) <= 20 &&
			minLen(cross) >= 3 {
			info.Query = and_(info.Query, trigramFactors(cross))
		}
	}
	return info.simplify(false)
}

// alternate returns the RegexInfo for x|y, per spec §4.8.
func alternate(x, y *RegexInfo) *RegexInfo {
	info := &RegexInfo{CanEmpty: x.CanEmpty || y.CanEmpty}
	switch {
	case x.Exact != nil && y.Exact != nil:
		info.Exact = unionStrings(x.Exact, y.Exact)
	case x.Exact != nil:
		info.Prefix = unionStrings(x.Exact, y.Prefix)
		info.Suffix = unionStrings(x.Exact, y.Suffix)
		x.addExact()
	case y.Exact != nil:
		info.Prefix = unionStrings(x.Prefix, y.Exact)
		info.Suffix = unionStrings(x.Suffix, y.Exact)
		y.addExact()
	default:
		info.Prefix = unionStrings(x.Prefix, y.Prefix)
		info.Suffix = unionStrings(x.Suffix, y.Suffix)
	}
	info.Query = or_(x.Query, y.Query)
	return info.simplify(false)
}

// RegexpQuery analyzes a parsed regex and returns a Query that every
// string the regex matches is guaranteed to satisfy. Passing the
// resulting Query's matches through the real regex remains necessary;
// the Query only narrows the set of files worth checking.
func RegexpQuery(re *syntax.Regexp) *Query {
	info := analyzeRegexp(re)
	info = info.simplify(true)
	if info.Exact != nil {
		info.addExact()
	}
	return info.Query
}

func analyzeRegexp(re *syntax.Regexp) *RegexInfo {
	switch re.Op {
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText, syntax.OpWordBoundary,
		syntax.OpNoWordBoundary:
		return emptyStringInfo()

	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return anyCharInfo()

	case syntax.OpNoMatch:
		return noMatchInfo()

	case syntax.OpLiteral:
		if len(re.Rune) == 0 {
			return emptyStringInfo()
		}
		if re.Flags&syntax.FoldCase != 0 {
			return analyzeFoldedLiteral(re.Rune)
		}
		buf := make([]byte, 0, len(re.Rune)*utf8.UTFMax)
		for _, r := range re.Rune {
			buf = utf8.AppendRune(buf, r)
		}
		return literalInfo(string(buf))

	case syntax.OpCharClass:
		return analyzeCharClass(re)

	case syntax.OpCapture:
		return analyzeRegexp(re.Sub[0])

	case syntax.OpConcat:
		info := emptyStringInfo()
		for _, sub := range re.Sub {
			info = concat(info, analyzeRegexp(sub))
		}
		return info

	case syntax.OpAlternate:
		if len(re.Sub) == 0 {
			return noMatchInfo()
		}
		info := analyzeRegexp(re.Sub[0])
		for _, sub := range re.Sub[1:] {
			info = alternate(info, analyzeRegexp(sub))
		}
		return info

	case syntax.OpQuest:
		return alternate(analyzeRegexp(re.Sub[0]), emptyStringInfo())

	case syntax.OpStar, syntax.OpRepeat:
		return anyMatchInfo()

	case syntax.OpPlus:
		sub := analyzeRegexp(re.Sub[0])
		if sub.Exact != nil {
			sub.addExact()
			sub.Prefix = append([]string{}, sub.Exact...)
			sub.Suffix = append([]string{}, sub.Exact...)
			sub.Exact = nil
		}
		return sub.simplify(true)

	default:
		return anyMatchInfo()
	}
}

// charClassMaxEnum bounds how many code points a character class may
// cover before analyzeCharClass gives up on exact enumeration and falls
// back to anyCharInfo, per spec §4.8.
const charClassMaxEnum = 100

func analyzeCharClass(re *syntax.Regexp) *RegexInfo {
	runes := re.Rune
	if len(runes) == 0 {
		return noMatchInfo()
	}
	total := 0
	for i := 0; i < len(runes); i += 2 {
		total += int(runes[i+1]-runes[i]) + 1
	}
	if total > charClassMaxEnum {
		return anyCharInfo()
	}
	var exact []string
	for i := 0; i < len(runes); i += 2 {
		for r := runes[i]; r <= runes[i+1]; r++ {
			exact = append(exact, string(r))
		}
	}
	return (&RegexInfo{Exact: exact, Query: All()}).simplify(false)
}

func analyzeFoldedLiteral(runes []rune) *RegexInfo {
	info := emptyStringInfo()
	for _, r := range runes {
		info = concat(info, foldedRuneInfo(r))
	}
	return info
}

func foldedRuneInfo(r rune) *RegexInfo {
	lo, up := unicode.ToLower(r), unicode.ToUpper(r)
	if lo == up {
		return literalInfo(string(r))
	}
	return alternate(literalInfo(string(lo)), literalInfo(string(up)))
}
