// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import "testing"

func TestResolverTypeNameAndInvalidIdx(t *testing.T) {
	dexData := buildDexWithOneType("Lfoo/Bar;", 2)
	r, err := NewResolver(dexData)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	if got := r.TypeName(0); got != "Lfoo/Bar;" {
		t.Errorf("TypeName(0) = %q, want Lfoo/Bar;", got)
	}
	if got := r.TypeName(50); got != "<invalid-idx-50>" {
		t.Errorf("TypeName(50) = %q, want <invalid-idx-50>", got)
	}
	if got := r.String(50); got != "<invalid-idx-50>" {
		t.Errorf("String(50) = %q, want <invalid-idx-50>", got)
	}
}

func TestNewResolverRejectsBadMagic(t *testing.T) {
	if _, err := NewResolver([]byte("not a dex file at all, way too short")); err == nil {
		t.Errorf("expected ErrMalformedDex for non-DEX input")
	}
}
