// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

// v6QuickeningIndex is a cursor-consuming reader over the v6 layout:
// a concatenation of (u4 length, u1 data[length]) blobs, one per code
// item that has quickening, in canonical traversal order across every
// DEX in the file. There is no index to look anything up by; callers
// must request blobs in the same order the unquickener walks methods.
type v6QuickeningIndex struct {
	data   []byte
	cursor uint32
}

func newV6QuickeningIndex(section []byte, numDexFiles uint32) (QuickeningIndex, error) {
	return &v6QuickeningIndex{data: section}, nil
}

// Blob ignores dexIdx and codeItemOffset: the v6 format carries no
// addressing information, only sequence. ok is always true here; the
// caller (unquicken.go) only invokes Blob for methods it has already
// determined carry quickening, per spec.md §4.3's positional mapping.
func (q *v6QuickeningIndex) Blob(dexIdx int, codeItemOffset uint32) ([]byte, bool, error) {
	if q.cursor >= uint32(len(q.data)) {
		return nil, false, ErrTruncatedQuickeningData
	}

	length, err := ReadUint32(q.data, q.cursor)
	if err != nil {
		return nil, false, ErrTruncatedQuickeningData
	}
	start := q.cursor + 4
	blob, err := ReadBytesAtOffset(q.data, start, length)
	if err != nil {
		return nil, false, ErrTruncatedQuickeningData
	}
	q.cursor = start + length
	return blob, true, nil
}
