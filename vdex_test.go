// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import (
	"errors"
	"testing"
)

// buildVdex assembles a minimal valid VDEX container wrapping a single
// DEX with empty verifier-deps and quickening-info sections.
func buildVdex(version string, dex []byte) []byte {
	checksums := make([]byte, 4)
	var buf []byte
	buf = append(buf, 'v', 'd', 'e', 'x')
	buf = append(buf, []byte(version)...)
	buf = appendU32(buf, 1)              // numberOfDexFiles
	buf = appendU32(buf, uint32(len(dex))) // dexSize
	buf = appendU32(buf, 0)              // verifierDepsSize
	buf = appendU32(buf, 0)              // quickeningInfoSize
	buf = append(buf, checksums...)
	buf = append(buf, dex...)
	return buf
}

// TestValidateS1NoQuickening covers S1: a v6 VDEX with one DEX and no
// quickening info validates successfully and its DEX is extracted
// byte-for-byte.
func TestValidateS1NoQuickening(t *testing.T) {
	dex := minimalDexBuilder{insns: []byte{opNop, 0x00}}.build()
	raw := buildVdex("006\x00", dex)

	f := OpenBytes(raw, &Options{Unquicken: true})
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if f.backend == nil || f.backend.version != BackendV6 {
		t.Fatalf("expected v6 backend bound")
	}

	it := f.DexIter()
	slice, err := it.Next()
	if err != nil {
		t.Fatalf("DexIter.Next: %v", err)
	}
	if slice == nil {
		t.Fatal("expected one DEX slice")
	}
	if string(slice.Data) != string(dex) {
		t.Errorf("extracted DEX does not match embedded DEX byte-for-byte")
	}

	next, err := it.Next()
	if err != nil || next != nil {
		t.Errorf("expected iterator to be exhausted after one DEX")
	}
}

// TestValidateS6TruncatedContainer covers S6: a header claiming two DEX
// files while dexSize only covers one yields ErrTruncatedContainer.
func TestValidateS6TruncatedContainer(t *testing.T) {
	dex := minimalDexBuilder{insns: []byte{opNop, 0x00}}.build()

	var buf []byte
	buf = append(buf, 'v', 'd', 'e', 'x')
	buf = append(buf, []byte("010\x00")...)
	buf = appendU32(buf, 2) // claims two DEX files
	buf = appendU32(buf, uint32(len(dex)))
	buf = appendU32(buf, 0)
	buf = appendU32(buf, 0)
	buf = append(buf, make([]byte, 8)...) // checksums for 2 files
	buf = append(buf, dex...)

	f := OpenBytes(buf, &Options{})
	err := f.Validate()
	if !errors.Is(err, ErrTruncatedContainer) {
		t.Fatalf("got %v, want ErrTruncatedContainer", err)
	}
}

func TestValidateBadMagic(t *testing.T) {
	dex := minimalDexBuilder{insns: []byte{opNop, 0x00}}.build()
	raw := buildVdex("006\x00", dex)
	raw[0] = 'x'

	f := OpenBytes(raw, &Options{})
	if err := f.Validate(); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("got %v, want ErrBadMagic", err)
	}
}

func TestValidateBadVersion(t *testing.T) {
	dex := minimalDexBuilder{insns: []byte{opNop, 0x00}}.build()
	raw := buildVdex("999\x00", dex)

	f := OpenBytes(raw, &Options{})
	if err := f.Validate(); !errors.Is(err, ErrBadVersion) {
		t.Fatalf("got %v, want ErrBadVersion", err)
	}
}

func TestValidateTooSmall(t *testing.T) {
	f := OpenBytes([]byte{'v', 'd', 'e', 'x'}, &Options{})
	if err := f.Validate(); !errors.Is(err, ErrInvalidVdexSize) {
		t.Fatalf("got %v, want ErrInvalidVdexSize", err)
	}
}
