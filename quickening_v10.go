// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import "sort"

// v10CodeOffsetEntry is one (codeOffset, dataOffset) pair from a per-DEX
// offset table, packed as two unaligned 32-bit little-endian words.
type v10CodeOffsetEntry struct {
	codeOffset uint32
	dataOffset uint32
}

// v10QuickeningIndex is the random-access reader over the v10 layout: a
// trailer of numberOfDexFiles per-DEX start offsets, each pointing at a
// table of (codeOffset, dataOffset) pairs sorted by codeOffset, with the
// actual blobs stored as ULEB128-length-prefixed data at dataOffset.
type v10QuickeningIndex struct {
	data        []byte
	dexTables   [][]v10CodeOffsetEntry
}

func newV10QuickeningIndex(section []byte, numDexFiles uint32) (QuickeningIndex, error) {
	q := &v10QuickeningIndex{data: section}

	if numDexFiles == 0 {
		return q, nil
	}

	trailerSize := 4 * numDexFiles
	if uint32(len(section)) < trailerSize {
		return nil, ErrTruncatedQuickeningData
	}
	trailerOff := uint32(len(section)) - trailerSize

	starts := make([]uint32, numDexFiles)
	for i := uint32(0); i < numDexFiles; i++ {
		v, err := ReadUint32(section, trailerOff+4*i)
		if err != nil {
			return nil, ErrTruncatedQuickeningData
		}
		starts[i] = v
	}

	q.dexTables = make([][]v10CodeOffsetEntry, numDexFiles)
	for i, start := range starts {
		// Each per-DEX offset table runs from its own start up to the
		// next DEX's start (or the trailer, for the last one); entries
		// are 8 bytes each, sorted ascending by codeOffset.
		end := trailerOff
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if end < start || end > trailerOff {
			return nil, ErrTruncatedQuickeningData
		}

		var entries []v10CodeOffsetEntry
		for off := start; off+8 <= end; off += 8 {
			codeOff, err1 := ReadUint32(section, off)
			dataOff, err2 := ReadUint32(section, off+4)
			if err1 != nil || err2 != nil {
				return nil, ErrTruncatedQuickeningData
			}
			entries = append(entries, v10CodeOffsetEntry{codeOffset: codeOff, dataOffset: dataOff})
		}
		q.dexTables[i] = entries
	}
	return q, nil
}

// Blob binary-searches dexIdx's offset table for codeItemOffset and, if
// found, decodes the ULEB128-length-prefixed blob at its dataOffset.
func (q *v10QuickeningIndex) Blob(dexIdx int, codeItemOffset uint32) ([]byte, bool, error) {
	if dexIdx < 0 || dexIdx >= len(q.dexTables) {
		return nil, false, ErrOutsideBoundary
	}
	table := q.dexTables[dexIdx]

	i := sort.Search(len(table), func(i int) bool {
		return table[i].codeOffset >= codeItemOffset
	})
	if i >= len(table) || table[i].codeOffset != codeItemOffset {
		return nil, false, nil
	}

	length, dataStart, err := ReadULEB128(q.data, table[i].dataOffset)
	if err != nil {
		return nil, false, ErrTruncatedQuickeningData
	}
	blob, err := ReadBytesAtOffset(q.data, dataStart, length)
	if err != nil {
		return nil, false, ErrTruncatedQuickeningData
	}
	return blob, true, nil
}
