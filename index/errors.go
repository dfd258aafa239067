// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"errors"
	"fmt"
)

// Skip-class errors: the reasons a file is omitted from the index. None of
// these are fatal to the Writer, and Add/AddFile do not return them: Add
// skips the file, logs the reason when LogSkip is set, and returns nil.
// The trigram stream reports the first three; Add checks the trigram count
// and file length itself and does not report them through these values.
var (
	ErrBinaryData      = errors.New("index: file contains binary data")
	ErrHighInvalidUTF8 = errors.New("index: too high a ratio of invalid UTF-8")
	ErrLineTooLong     = errors.New("index: line too long")
	ErrTooManyTrigrams = errors.New("index: too many trigrams, probably not text")
	ErrFileTooLong     = errors.New("index: file too long")
)

// CorruptIndexError reports that an on-disk index failed a structural
// check: a bad trailer, out-of-range offset, disordered posting list, or
// truncated varint. The index named by Path should be removed and rebuilt.
type CorruptIndexError struct {
	Path string
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("corrupt index: remove %s", e.Path)
}

func corruptIndexError(path string) error {
	return &CorruptIndexError{Path: path}
}
