// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import "testing"

// TestV10QuickeningIndexLookup builds a single-DEX section with one
// offset-table entry and verifies both the found and not-found paths.
func TestV10QuickeningIndexLookup(t *testing.T) {
	// Layout: [blob data][offset table][trailer].
	var section []byte

	var blob []byte
	blob = appendULEB128(blob, 2)
	blob = append(blob, 0x2a, 0x00)
	blobOff := uint32(len(section))
	section = append(section, blob...)

	tableOff := uint32(len(section))
	section = appendU32(section, 0x100) // codeOffset
	section = appendU32(section, blobOff)

	trailerOff := uint32(len(section))
	_ = trailerOff
	section = appendU32(section, tableOff) // one DEX, one start offset

	idx, err := newV10QuickeningIndex(section, 1)
	if err != nil {
		t.Fatalf("newV10QuickeningIndex: %v", err)
	}

	got, ok, err := idx.Blob(0, 0x100)
	if err != nil {
		t.Fatalf("Blob: %v", err)
	}
	if !ok {
		t.Fatal("expected entry to be found")
	}
	if string(got) != "\x2a\x00" {
		t.Errorf("blob = %x, want 2a00", got)
	}

	_, ok, err = idx.Blob(0, 0x200)
	if err != nil {
		t.Fatalf("Blob (miss): %v", err)
	}
	if ok {
		t.Errorf("expected no entry at an absent codeOffset")
	}
}
