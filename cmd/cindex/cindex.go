// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/csearch-go/csearch/index"
	"github.com/csearch-go/csearch/internal/config"
	"github.com/csearch-go/csearch/internal/pipeline"
	"github.com/csearch-go/csearch/walk"
)

var usageMessage = `usage: cindex [-list] [-reset] [-index path] [-config file] [-exclude glob] [-watch] [-check] [-stats] [path...]

cindex prepares the trigram index for use by csearch. The index is the
file named by the -index flag or $CSEARCHINDEX variable. If both are
empty, the current working directory and its parents are searched for a
.csearchindex file; if none is found, the index path is ~/.csearchindex.

The simplest invocation is

	cindex path...

which adds the file or directory tree named by each path to the index.
For example:

	cindex ~/src /usr/include

or, equivalently:

	cindex ~/src
	cindex /usr/include

If cindex is invoked with no paths, it reindexes the paths that have
already been added, in case the files have changed. Thus, 'cindex' by
itself is a useful command to run in a nightly cron job.

The -list flag causes cindex to list the paths it has indexed and exit.

By default cindex adds the named paths to the index but preserves
information about other paths that might already be indexed
(the ones printed by cindex -list). The -reset flag causes cindex to
delete the existing index before indexing the new paths.
With no path arguments, cindex -reset removes the index.

The -config flag names a TOML file overriding the writer's text-detection
limits, exclude globs, and watch debounce. The -exclude flag adds one
doublestar glob pattern (repeatable) matched against each file's absolute
path, joined with slashes and without its leading separator, not against
a path relative to the root; it composes with gitignore-based skipping,
not in place of it.

The -watch flag keeps cindex running after the initial index build,
reindexing the given paths whenever fsnotify reports a change underneath
them, instead of requiring a fresh cron-driven run.

The -check flag opens the existing index, walks its full on-disk
structure, and reports any inconsistency instead of indexing anything.
The -stats flag prints a short summary of the existing index's size
instead of indexing anything.
`

func usage() {
	fmt.Fprintf(os.Stderr, usageMessage)
	os.Exit(2)
}

var (
	listFlag    = flag.Bool("list", false, "list indexed paths and exit")
	resetFlag   = flag.Bool("reset", false, "discard existing index")
	indexFlag   = flag.String("index", "", "path to the index")
	logSkipFlag = flag.Bool("logskip", false, "log skipped files")
	verboseFlag = flag.Bool("verbose", false, "print extra information")
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to this file")
	configFlag  = flag.String("config", "", "TOML config file overriding writer limits and exclude globs")
	watchFlag   = flag.Bool("watch", false, "after indexing, keep running and reindex on file system changes")
	checkFlag   = flag.Bool("check", false, "validate the existing index's on-disk structure and exit")
	statsFlag   = flag.Bool("stats", false, "print a summary of the existing index and exit")
)

type excludeFlags []string

func (e *excludeFlags) String() string { return strings.Join(*e, ",") }
func (e *excludeFlags) Set(s string) error {
	*e = append(*e, s)
	return nil
}

var excludeFlag excludeFlags

func init() {
	flag.Var(&excludeFlag, "exclude", "doublestar glob to exclude from indexing (repeatable)")
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()

	cfg := config.Default()
	if *configFlag != "" {
		var err error
		cfg, err = config.Load(*configFlag)
		if err != nil {
			log.Fatal(err)
		}
	}
	cfg.Exclude = append(cfg.Exclude, excludeFlag...)

	if *listFlag {
		ix, err := index.Open(indexPath())
		if err != nil {
			log.Fatal(err)
		}
		paths, err := ix.Paths()
		if err != nil {
			log.Fatal(err)
		}
		for _, arg := range paths {
			fmt.Printf("%s\n", arg)
		}
		return
	}

	if *checkFlag {
		ix, err := index.Open(indexPath())
		if err != nil {
			log.Fatal(err)
		}
		if err := ix.Check(); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("ok (checksum %x)\n", ix.Checksum())
		return
	}

	if *statsFlag {
		ix, err := index.Open(indexPath())
		if err != nil {
			log.Fatal(err)
		}
		paths, err := ix.Paths()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%d paths, %d files, checksum %x\n", len(paths), ix.NumNames(), ix.Checksum())
		return
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if *resetFlag && len(args) == 0 {
		os.Remove(indexPath())
		return
	}
	if len(args) == 0 {
		ix, err := index.Open(indexPath())
		if err != nil {
			log.Fatal(err)
		}
		paths, err := ix.Paths()
		if err != nil {
			log.Fatal(err)
		}
		args = append(args, paths...)
	}

	// Translate paths to absolute paths so that we can
	// generate the file list in sorted order.
	for i, arg := range args {
		a, err := filepath.Abs(arg)
		if err != nil {
			log.Printf("%s: %s", arg, err)
			a = ""
		}
		args[i] = a
	}
	sort.Strings(args)

	for len(args) > 0 && args[0] == "" {
		args = args[1:]
	}

	buildIndex(args, cfg)

	if *watchFlag {
		watchAndReindex(args, cfg)
	}
}

func indexPath() string {
	if *indexFlag != "" {
		return *indexFlag
	}
	return index.File()
}

// buildIndex runs one full indexing pass over args, merging into the
// existing index unless -reset was given.
func buildIndex(args []string, cfg config.Config) {
	var primary string
	if *indexFlag != "" {
		primary = *indexFlag
		if fi, err := os.Stat(primary); err == nil && fi.IsDir() {
			primary = filepath.Join(primary, ".csearchindex")
		}
	} else {
		primary = index.File()
	}
	reset := *resetFlag
	if fi, err := os.Stat(primary); err != nil {
		// Does not exist.
		reset = true
	} else if fi.IsDir() {
		log.Fatalf("index %s: path is a directory", primary)
	}
	file := primary
	if !reset {
		file += "~"
	}

	ix, err := index.Create(file)
	if err != nil {
		log.Fatal(err)
	}
	ix.LogSkip = *logSkipFlag || *verboseFlag
	ix.Verbose = *verboseFlag
	ix.Limits = cfg.Limits
	ix.AddPaths(args)
	w, err := walk.NewGitignoreWalker(cfg.Exclude...)
	if err != nil {
		log.Fatal(err)
	}

	// Walking happens on its own goroutine, feeding candidate file paths
	// to a pool of readers; ix.Add itself only ever runs on pipeline's
	// single consumer goroutine, since Writer isn't safe for concurrent use.
	names := make(chan string, 64)
	var walkErr error
	go func() {
		defer close(names)
		for _, arg := range args {
			log.Printf("index %s", arg)
			err := w.Walk(arg, func(path string, info fs.DirEntry, err error) error {
				if defaultSkip(path) {
					if info.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if err != nil {
					log.Printf("%s: %s", path, err)
					return nil
				}
				// Avoid symlinks.
				if info == nil || !info.Type().IsRegular() {
					return nil
				}
				names <- path
				return nil
			})
			if err != nil {
				walkErr = err
				return
			}
		}
	}()

	add := func(name string, f io.Reader) error {
		err := ix.Add(name, f)
		if errors.Is(err, fs.ErrPermission) {
			log.Printf("%s: %s", name, err)
			return nil
		}
		return err
	}
	if err := pipeline.Run(context.Background(), runtime.NumCPU(), names, add); err != nil {
		log.Fatal(err)
	}
	if walkErr != nil {
		log.Fatal(walkErr)
	}

	log.Printf("flush index")
	if err := ix.Flush(); err != nil {
		log.Fatal(err)
	}

	if !reset {
		log.Printf("merge %s %s", primary, file)
		if err := index.Merge(file+"~", primary, file); err != nil {
			log.Fatal(err)
		}
		os.Remove(file)
		os.Rename(file+"~", primary)
	}
	log.Printf("done")
}

// watchAndReindex rebuilds the index whenever fsnotify reports a change
// under one of args, coalescing bursts of events with cfg.Watch.DebounceMS
// so a multi-file save triggers one rebuild, not one per file.
func watchAndReindex(args []string, cfg config.Config) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal(err)
	}
	defer watcher.Close()

	for _, arg := range args {
		if err := addRecursive(watcher, arg); err != nil {
			log.Printf("watch %s: %s", arg, err)
		}
	}

	debounce := time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	var timer *time.Timer
	log.Printf("watching %d path(s) for changes", len(args))
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					log.Printf("change detected, reindexing")
					buildIndex(args, cfg)
					timer = nil
				})
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch error: %s", err)
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if defaultSkip(path) && path != root {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

func defaultSkip(path string) bool {
	if base := filepath.Base(path); base != "" {
		// Skip various temporary or "hidden" files or directories.
		return base[0] == '.' || base[0] == '#' || base[0] == '~' || base[len(base)-1] == '~'
	}
	return false
}
