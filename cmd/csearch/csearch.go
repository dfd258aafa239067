// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"regexp/syntax"
	"runtime/pprof"

	"github.com/csearch-go/csearch/index"
)

var usageMessage = `usage: csearch [-c] [-f fileregexp] [-i] [-l] [-n] [-m maxcount] [-index path] regexp

csearch behaves like grep over all indexed files, searching for regexp,
an RE2 (nearly PCRE) regular expression.

The -c, -i, -l, and -n flags are as in grep, although note that as per
Go's flag parsing convention, they cannot be combined: the option pair
-i -n cannot be abbreviated to -in.

The -f flag restricts the search to files whose names match the RE2
regular expression fileregexp. The -m flag stops printing matches for a
file once maxcount lines have matched.

csearch relies on the existence of an up-to-date index created ahead of
time. To build or rebuild the index that csearch uses, run:

	cindex path...

where path... is a list of directories or individual files to be
included in the index. If no index exists, this command creates one.
If an index already exists, cindex adds the paths to it, replacing what
it held for those paths. Run cindex -help for more.

The path to the index is named by the -index flag or $CSEARCHINDEX
variable. If both are empty, the current working directory and parents
are recursively searched for a .csearchindex file. If none is found,
~/.csearchindex is used.
`

func usage() {
	fmt.Fprintf(os.Stderr, usageMessage)
	os.Exit(2)
}

var (
	fFlag       = flag.String("f", "", "search only files with names matching this regexp")
	iFlag       = flag.Bool("i", false, "case-insensitive search")
	cFlag       = flag.Bool("c", false, "print only a count of matching lines per file")
	lFlag       = flag.Bool("l", false, "print only the names of files containing matches")
	nFlag       = flag.Bool("n", false, "print line numbers")
	mFlag       = flag.Int("m", 0, "stop after this many matches per file (0 = unlimited)")
	indexFlag   = flag.String("index", "", "path to the index")
	verboseFlag = flag.Bool("verbose", false, "print extra information")
	bruteFlag   = flag.Bool("brute", false, "brute force - search all files in index")
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to this file")
)

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()

	if len(args) != 1 {
		usage()
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

	reFlags := syntax.Perl
	if *iFlag {
		reFlags |= syntax.FoldCase
	}
	synRe, err := syntax.Parse(args[0], reFlags)
	if err != nil {
		log.Fatal(err)
	}
	re, err := regexp.Compile(synRe.String())
	if err != nil {
		log.Fatal(err)
	}

	var fre *regexp.Regexp
	if *fFlag != "" {
		fre, err = regexp.Compile(*fFlag)
		if err != nil {
			log.Fatal(err)
		}
	}

	q := index.RegexpQuery(synRe)
	if *verboseFlag {
		log.Printf("query: %s\n", q)
	}
	if *bruteFlag {
		q = index.All()
	}

	indexPath := *indexFlag
	if indexPath == "" {
		indexPath = index.File()
	}
	ix, err := index.Open(indexPath)
	if err != nil {
		log.Fatal(err)
	}
	ix.Verbose = *verboseFlag
	post, err := ix.PostingQuery(q)
	if err != nil {
		log.Fatal(err)
	}
	if *verboseFlag {
		log.Printf("post query identified %d possible files\n", len(post))
	}

	if fre != nil {
		filenames := make([]uint32, 0, len(post))
		for _, fileID := range post {
			name, err := ix.Name(fileID)
			if err != nil {
				log.Fatal(err)
			}
			if fre.MatchString(name) {
				filenames = append(filenames, fileID)
			}
		}
		if *verboseFlag {
			log.Printf("filename regexp matched %d files\n", len(filenames))
		}
		post = filenames
	}

	matched := false
	for _, fileID := range post {
		name, err := ix.Name(fileID)
		if err != nil {
			log.Fatal(err)
		}
		if grepFile(re, name) {
			matched = true
		}
	}

	if !matched {
		os.Exit(1)
	}
}

// grepFile applies re to each line of the named file the way the index's
// trigram query already guarantees it is worth checking, reporting
// according to the -c/-l/-n/-m flags. It returns whether any line
// matched.
func grepFile(re *regexp.Regexp, name string) bool {
	f, err := os.Open(name)
	if err != nil {
		log.Printf("%s: %s", name, err)
		return false
	}
	defer f.Close()

	matched := false
	count := 0
	lineNum := 0
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 1<<20)
	for s.Scan() {
		lineNum++
		if !re.MatchString(s.Text()) {
			continue
		}
		matched = true
		count++
		if *lFlag {
			break
		}
		if !*cFlag {
			if *nFlag {
				fmt.Printf("%s:%d:%s\n", name, lineNum, s.Text())
			} else {
				fmt.Printf("%s:%s\n", name, s.Text())
			}
		}
		if *mFlag > 0 && count >= *mFlag {
			break
		}
	}
	if matched {
		switch {
		case *lFlag:
			fmt.Printf("%s\n", name)
		case *cFlag:
			fmt.Printf("%s:%d\n", name, count)
		}
	}
	return matched
}
