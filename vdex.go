// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package vdex recovers the pre-quickening form of DEX bytecode embedded
// inside Android VDEX containers. It parses the VDEX header and sections,
// reverts the location-checksum-stable but symbol-losing quickening
// rewrite that dex2oat applies to virtual-method calls, instance-field
// accesses and check-casts, and can decode the verifier-dependencies
// section that goes alongside it.
package vdex

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/go-kratos/kratos/v2/log"
)

// VdexHeaderSize is the fixed size, in bytes, of the VDEX header prefix.
const VdexHeaderSize = 24

// Recognized VDEX format revisions.
const (
	BackendV6 = 6
	BackendV10 = 10
)

// vdexMagic is the literal 4-byte magic every VDEX file begins with.
var vdexMagic = [4]byte{'v', 'd', 'e', 'x'}

// recognizedVersions lists the ASCII, NUL-terminated version strings this
// package knows how to dispatch.
var recognizedVersions = map[string]int{
	"006\x00": BackendV6,
	"010\x00": BackendV10,
}

// VdexHeader is the fixed 24-byte prefix of every VDEX container.
type VdexHeader struct {
	Magic              [4]byte
	Version            [4]byte
	NumberOfDexFiles   uint32
	DexSize            uint32
	VerifierDepsSize   uint32
	QuickeningInfoSize uint32
}

// Options configures how a VDEX file is opened and processed.
type Options struct {
	// Unquicken is stored with the File but not read by Process;
	// ProcessConfig.Unquicken decides whether quickened instructions are
	// reverted or DEX slices are emitted verbatim.
	Unquicken bool

	// DisableChecksumValidation skips nothing today, it exists for
	// symmetry with callers that may want to add section checks without
	// changing this struct's shape again.
	DisableChecksumValidation bool

	// A custom logger. Defaults to a kratos stdout logger filtered at
	// LevelError.
	Logger log.Logger
}

// File represents an open VDEX container, either a read-only memory
// mapping or a caller-supplied byte buffer.
type File struct {
	Header VdexHeader

	data   []byte
	mapped mmap.MMap
	f      *os.File
	opts   *Options
	logger *log.Helper

	backend *versionBackend
}

func newFile(data []byte, opts *Options) *File {
	file := &File{data: data}
	if opts != nil {
		file.opts = opts
	} else {
		file.opts = &Options{Unquicken: true}
	}

	if file.opts.Logger == nil {
		logger := log.NewStdLogger(os.Stdout)
		file.logger = log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelError)))
	} else {
		file.logger = log.NewHelper(file.opts.Logger)
	}
	return file
}

// Open memory maps name read-only and wraps it as a File. The caller must
// call Close when done.
func Open(name string, opts *Options) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	file := newFile(data, opts)
	file.f = f
	file.mapped = data
	return file, nil
}

// OpenWritable memory maps name read-write, for the checksum-rewrite path.
func OpenWritable(name string, opts *Options) (*File, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	file := newFile(data, opts)
	file.f = f
	file.mapped = data
	return file, nil
}

// OpenBytes wraps an in-memory buffer as a File without mapping anything.
func OpenBytes(data []byte, opts *Options) *File {
	return newFile(data, opts)
}

// Close releases the underlying mapping, if any.
func (v *File) Close() error {
	if v.mapped != nil {
		_ = v.mapped.Unmap()
		v.mapped = nil
	}
	if v.f != nil {
		return v.f.Close()
	}
	return nil
}

// Bytes returns the raw backing buffer. The unquickening path must never
// mutate it directly; DEX slices handed to the rewriter are private copies.
func (v *File) Bytes() []byte {
	return v.data
}

// Validate checks the magic and version fields, the declared section
// sizes and the number of embedded DEX files and, on success, binds the
// version-specific backend (§4.2 of the design: the version dispatcher).
func (v *File) Validate() error {
	if len(v.data) < VdexHeaderSize+dexHeaderSize {
		return ErrInvalidVdexSize
	}

	var hdr VdexHeader
	copy(hdr.Magic[:], v.data[0:4])
	copy(hdr.Version[:], v.data[4:8])
	var err error
	if hdr.NumberOfDexFiles, err = ReadUint32(v.data, 8); err != nil {
		return err
	}
	if hdr.DexSize, err = ReadUint32(v.data, 12); err != nil {
		return err
	}
	if hdr.VerifierDepsSize, err = ReadUint32(v.data, 16); err != nil {
		return err
	}
	if hdr.QuickeningInfoSize, err = ReadUint32(v.data, 20); err != nil {
		return err
	}
	v.Header = hdr

	if hdr.Magic != vdexMagic {
		return ErrBadMagic
	}

	backendVer, ok := recognizedVersions[string(hdr.Version[:])]
	if !ok {
		return ErrBadVersion
	}

	expected := uint64(VdexHeaderSize) + uint64(4)*uint64(hdr.NumberOfDexFiles) +
		uint64(hdr.DexSize) + uint64(hdr.VerifierDepsSize) + uint64(hdr.QuickeningInfoSize)
	if expected > uint64(len(v.data)) {
		return ErrTruncatedContainer
	}

	// The DEX section must hold exactly numberOfDexFiles DEX files, each
	// delimited by its own header's fileSize.
	it := v.DexIter()
	var dexCount uint32
	for {
		slice, err := it.Next()
		if err != nil {
			return err
		}
		if slice == nil {
			break
		}
		dexCount++
	}
	if dexCount != hdr.NumberOfDexFiles {
		return ErrTruncatedContainer
	}

	backend, err := bindBackend(backendVer)
	if err != nil {
		return err
	}
	v.backend = backend
	return nil
}
