// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

// QuickeningIndex resolves the quickening operand blob for one method's
// code item. The v6 backend ignores both arguments and hands back the
// next blob in traversal order; the v10 backend uses dexIdx to pick the
// right per-DEX offset table and codeItemOffset to binary-search it.
// ok is false when the code item carries no quickening data at all.
type QuickeningIndex interface {
	Blob(dexIdx int, codeItemOffset uint32) (data []byte, ok bool, err error)
}

// versionBackend is the capability set the version dispatcher (§4.2)
// binds once per file: everything downstream that differs between VDEX
// format revisions goes through it rather than branching on version
// throughout the package.
type versionBackend struct {
	version int

	// newQuickeningIndex builds the §4.3 reader over the file's
	// quickening-info section.
	newQuickeningIndex func(section []byte, numDexFiles uint32) (QuickeningIndex, error)

	// revertsLeadingNopCount reports whether this backend's quickening
	// blob for a method starts with a ULEB128 count of NOPs to revert
	// (v10) or whether every NOP encountered is reverted unconditionally
	// whenever the method has a blob at all (v6).
	revertsLeadingNopCount bool
}

// bindBackend resolves a recognized version token to its capability set.
func bindBackend(version int) (*versionBackend, error) {
	switch version {
	case BackendV6:
		return &versionBackend{
			version:                BackendV6,
			newQuickeningIndex:     newV6QuickeningIndex,
			revertsLeadingNopCount: false,
		}, nil
	case BackendV10:
		return &versionBackend{
			version:                BackendV10,
			newQuickeningIndex:     newV10QuickeningIndex,
			revertsLeadingNopCount: true,
		}, nil
	default:
		return nil, ErrUnsupportedBackend
	}
}
