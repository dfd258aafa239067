// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

// Check walks the on-disk structure of the index and reports the first
// structural inconsistency it finds, wrapped as a CorruptIndexError. It is
// more thorough, and much slower, than the bounds checks Open and the
// posting readers already do on every access: Check reads every posting
// list end to end and verifies the post index is sorted and terminated by
// the sentinel entry, rather than trusting individual lookups.
//
// Callers that just want a cheap pre-flight smoke test before mmap'ing a
// large index should compare Checksum against a digest recorded at build
// time instead of calling Check.
func (ix *Index) Check() error {
	if _, err := ix.Paths(); err != nil {
		return err
	}
	if _, err := ix.Names(); err != nil {
		return err
	}

	d, err := ix.slice(ix.postIndex, postEntrySize*ix.numPost)
	if err != nil {
		return err
	}

	var prevTrigram uint32
	havePrev := false
	for i := 0; i < ix.numPost; i++ {
		j := i * postEntrySize
		trigram := uint32(d[j])<<16 | uint32(d[j+1])<<8 | uint32(d[j+2])
		if havePrev && trigram <= prevTrigram {
			return ix.corrupt()
		}
		prevTrigram = trigram
		havePrev = true

		_, count, offset, err := ix.listAt(uint32(j))
		if err != nil {
			return err
		}
		if _, err := ix.checkPostingList(trigram, int(count), offset); err != nil {
			return err
		}
	}
	if !havePrev || prevTrigram != 1<<24-1 {
		return ix.corrupt()
	}
	return nil
}

// checkPostingList reads a single posting list end to end, verifying that
// it yields exactly count strictly increasing file IDs and terminates with
// a zero delta, and returns those file IDs.
func (ix *Index) checkPostingList(trigram uint32, count int, offset uint32) ([]uint32, error) {
	var r postReader
	if err := r.init(ix, trigram, nil); err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, count)
	for {
		ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if len(ids) > 0 && r.fileID <= ids[len(ids)-1] {
			return nil, ix.corrupt()
		}
		ids = append(ids, r.fileID)
	}
	if len(ids) != count {
		return nil, ix.corrupt()
	}
	return ids, nil
}
