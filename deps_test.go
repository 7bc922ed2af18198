// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import (
	"encoding/binary"
	"strings"
	"testing"
)

// buildDexWithOneType assembles a minimal DEX whose string pool has a
// single entry and whose type table has typeCount entries all pointing
// at it, for exercising symbol resolution without a full compiled DEX.
func buildDexWithOneType(str string, typeCount int) []byte {
	const headerSize = 0x70

	var stringData []byte
	stringData = appendULEB128(stringData, uint32(len(str)))
	stringData = append(stringData, []byte(str)...)
	stringData = append(stringData, 0)

	stringDataOff := uint32(headerSize)
	stringIdsOff := stringDataOff + uint32(len(stringData))
	typeIdsOff := stringIdsOff + 4 // one string_id_item

	total := typeIdsOff + uint32(typeCount)*4
	buf := make([]byte, total)
	copy(buf, []byte{'d', 'e', 'x', '\n', '0', '3', '5', 0})
	copy(buf[stringDataOff:], stringData)
	binary.LittleEndian.PutUint32(buf[stringIdsOff:], stringDataOff)
	for i := 0; i < typeCount; i++ {
		binary.LittleEndian.PutUint32(buf[typeIdsOff+uint32(i)*4:], 0)
	}

	putU32 := func(off, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }
	putU32(dexOffFileSize, total)
	putU32(dexOffHeaderSize, headerSize)
	putU32(dexOffStringIdsSize, 1)
	putU32(dexOffStringIdsOff, stringIdsOff)
	putU32(dexOffTypeIdsSize, uint32(typeCount))
	putU32(dexOffTypeIdsOff, typeIdsOff)
	return buf
}

// TestDecodeVerifierDepsS5 covers S5: a deps record with one unverified
// class at typeIdx=5, whose name resolves via the DEX's own type table.
func TestDecodeVerifierDepsS5(t *testing.T) {
	dexData := buildDexWithOneType("Lfoo/Bar;", 6)
	resolver, err := NewResolver(dexData)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	var section []byte
	section = appendULEB128(section, 1) // numberOfExtraStrings
	section = appendULEB128(section, uint32(len("Lfoo/Bar;")))
	section = append(section, []byte("Lfoo/Bar;")...)
	section = appendULEB128(section, 0) // assignable count
	section = appendULEB128(section, 0) // unassignable count
	section = appendULEB128(section, 0) // class resolutions count
	section = appendULEB128(section, 0) // field resolutions count
	section = appendULEB128(section, 0) // method resolutions count
	section = appendULEB128(section, 1) // unverified classes count
	section = appendU16(section, 5)     // typeIdx

	deps, err := DecodeVerifierDeps(section, 1, []*Resolver{resolver})
	if err != nil {
		t.Fatalf("DecodeVerifierDeps: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("got %d dex records, want 1", len(deps))
	}

	report := deps[0].Report()
	count := strings.Count(report, "Lfoo/Bar; (type-idx 5)")
	if count != 1 {
		t.Errorf("expected exactly one unverified-class line naming Lfoo/Bar;, got %d in:\n%s", count, report)
	}
}

// TestFieldResolutionUnresolvedSentinel covers §4.5's "unresolved"
// printing for the (u4)-1 declaringClassIdx sentinel.
func TestFieldResolutionUnresolvedSentinel(t *testing.T) {
	dexData := buildDexWithOneType("Lfoo/Bar;", 1)
	resolver, err := NewResolver(dexData)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	var section []byte
	section = appendULEB128(section, 0) // no extra strings
	section = appendULEB128(section, 0) // assignable
	section = appendULEB128(section, 0) // unassignable
	section = appendULEB128(section, 0) // class resolutions
	section = appendULEB128(section, 1) // field resolutions count
	section = appendU32(section, 0)     // fieldIdx
	section = appendU16(section, 0)     // access_flags
	section = appendU32(section, unresolvedIdx)
	section = appendULEB128(section, 0) // method resolutions
	section = appendULEB128(section, 0) // unverified classes

	deps, err := DecodeVerifierDeps(section, 1, []*Resolver{resolver})
	if err != nil {
		t.Fatalf("DecodeVerifierDeps: %v", err)
	}
	if deps[0].FieldResolutions[0].DeclaringClass != "unresolved" {
		t.Errorf("got %q, want %q", deps[0].FieldResolutions[0].DeclaringClass, "unresolved")
	}
}
