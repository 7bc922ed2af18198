// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import "errors"

// Errors returned while validating and walking a VDEX container.
var (
	// ErrInvalidVdexSize is returned when the file is smaller than a
	// VDEX header plus at least one DEX header.
	ErrInvalidVdexSize = errors.New("not a vdex file, smaller than header+dex size")

	// ErrBadMagic is returned when the 4-byte "vdex" magic is absent.
	ErrBadMagic = errors.New("vdex magic not found")

	// ErrBadVersion is returned when the version field is not a
	// recognized ASCII-decimal VDEX format revision.
	ErrBadVersion = errors.New("unrecognized vdex version")

	// ErrTruncatedContainer is returned when a declared section would
	// overrun the mapped file.
	ErrTruncatedContainer = errors.New("vdex container truncated")

	// ErrMalformedDex is returned when a DEX header, class-data item or
	// code item is internally inconsistent.
	ErrMalformedDex = errors.New("malformed dex")

	// ErrTruncatedQuickeningData is returned when the quickening
	// operand stream is exhausted before the instructions that need it.
	ErrTruncatedQuickeningData = errors.New("truncated quickening data")

	// ErrChecksumCountMismatch is returned when the sidecar checksum
	// file's line count disagrees with the header's numberOfDexFiles.
	ErrChecksumCountMismatch = errors.New("checksum count mismatch")

	// ErrInvalidLogLevel is returned for an out-of-range --log-level value.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrOutsideBoundary is returned when attempting to read data beyond
	// the mapped file's limits.
	ErrOutsideBoundary = errors.New("reading data outside boundary")

	// ErrUnsupportedBackend is returned for a structurally valid but
	// unimplemented version token.
	ErrUnsupportedBackend = errors.New("unsupported vdex backend version")
)
