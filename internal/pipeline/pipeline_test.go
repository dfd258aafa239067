// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRunAddsEveryFileExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.txt": "hello",
		"b.txt": "world",
		"c.txt": "",
	}
	var paths []string
	for name, content := range files {
		paths = append(paths, writeTemp(t, dir, name, content))
	}

	names := make(chan string, len(paths))
	for _, p := range paths {
		names <- p
	}
	close(names)

	var mu sync.Mutex
	got := make(map[string]string)
	add := func(name string, f io.Reader) error {
		data, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		mu.Lock()
		got[filepath.Base(name)] = string(data)
		mu.Unlock()
		return nil
	}

	err := Run(context.Background(), 4, names, add)
	require.NoError(t, err)
	require.Equal(t, files, got)
}

func TestRunPropagatesAddError(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "x.txt", "data")

	names := make(chan string, 1)
	names <- p
	close(names)

	wantErr := errors.New("boom")
	add := func(name string, f io.Reader) error {
		return wantErr
	}

	err := Run(context.Background(), 2, names, add)
	require.ErrorIs(t, err, wantErr)
}

func TestRunPropagatesReadError(t *testing.T) {
	names := make(chan string, 1)
	names <- filepath.Join(t.TempDir(), "does-not-exist.txt")
	close(names)

	add := func(name string, f io.Reader) error {
		t.Fatalf("add should not be called when the read failed")
		return nil
	}

	err := Run(context.Background(), 2, names, add)
	require.Error(t, err)
}

func TestRunSingleWorker(t *testing.T) {
	dir := t.TempDir()
	p1 := writeTemp(t, dir, "one.txt", "1")
	p2 := writeTemp(t, dir, "two.txt", "2")

	names := make(chan string, 2)
	names <- p1
	names <- p2
	close(names)

	count := 0
	add := func(name string, f io.Reader) error {
		count++
		_, err := io.ReadAll(f)
		return err
	}

	require.NoError(t, Run(context.Background(), 0, names, add))
	require.Equal(t, 2, count)
}
