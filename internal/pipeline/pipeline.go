// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline runs a bounded producer/consumer pipeline for adding
// files to an index: one goroutine walks the file tree and feeds paths
// over a channel, a pool of worker goroutines reads each file's contents,
// and the index writer itself is fed results from a single goroutine,
// which extracts the trigrams, so that Writer.Add, which is not safe
// for concurrent use, only ever runs on one goroutine at a time.
package pipeline

import (
	"context"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
)

// AddFunc indexes one file under the given name. Implementations are
// expected to wrap (*index.Writer).Add; it is never called concurrently.
type AddFunc func(name string, f io.Reader) error

// Run reads paths from names, opens and reads each concurrently across
// workers goroutines, and calls add for each file's contents serially in
// the order results complete (not necessarily the order names were
// produced). It returns the first error from opening/reading a file or
// from add; a failing add aborts remaining work via ctx.
func Run(ctx context.Context, workers int, names <-chan string, add AddFunc) error {
	if workers < 1 {
		workers = 1
	}

	type result struct {
		name string
		data []byte
		err  error
	}

	results := make(chan result, workers)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(results)
		in := make(chan string)
		var wg errgroup.Group
		for i := 0; i < workers; i++ {
			wg.Go(func() error {
				for {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case name, ok := <-in:
						if !ok {
							return nil
						}
						data, err := os.ReadFile(name)
						select {
						case results <- result{name, data, err}:
						case <-ctx.Done():
							return ctx.Err()
						}
					}
				}
			})
		}
		go func() {
			defer close(in)
			for name := range names {
				select {
				case in <- name:
				case <-ctx.Done():
					return
				}
			}
		}()
		return wg.Wait()
	})

	g.Go(func() error {
		for r := range results {
			if r.err != nil {
				return r.err
			}
			if err := add(r.name, newByteReader(r.data)); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

type byteReader struct {
	b []byte
	i int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}
