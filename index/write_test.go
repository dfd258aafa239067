// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"os"
	"sort"
	"strings"
	"testing"
)

// buildIndex writes a fresh index at out containing paths and the given
// in-memory files, in deterministic (sorted) order so callers can assert
// on resulting file IDs.
func buildIndex(t *testing.T, out string, paths []string, fileData map[string]string) {
	t.Helper()
	ix, err := Create(out)
	if err != nil {
		t.Fatal(err)
	}
	ix.AddPaths(paths)

	var names []string
	for name := range fileData {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ix.Add(name, strings.NewReader(fileData[name])); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}
	if err := ix.Flush(); err != nil {
		t.Fatal(err)
	}
}

func TestWriteSkipsBinary(t *testing.T) {
	f, err := os.CreateTemp("", "index-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())

	buildIndex(t, f.Name(), nil, map[string]string{
		"text.go":   "package main\n",
		"binary.so": "\x7fELF\x00\x00\x00binary junk",
	})

	ix, err := Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	names, err := ix.Names()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "text.go" {
		t.Fatalf("Names() = %v, want [text.go]", names)
	}
}

func TestWriteShortFile(t *testing.T) {
	f, err := os.CreateTemp("", "index-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())

	buildIndex(t, f.Name(), nil, map[string]string{
		"a": "x",
		"b": "",
	})

	ix, err := Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Check(); err != nil {
		t.Fatalf("Check(): %v", err)
	}
}
