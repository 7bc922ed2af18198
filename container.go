// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

// Section identifies one of the VDEX container's top-level byte ranges.
type Section int

// The four sections a VDEX container is carved into, after its header.
const (
	SectionChecksums Section = iota
	SectionDexFiles
	SectionVerifierDeps
	SectionQuickeningInfo
)

// ChecksumsSize returns the byte length of the per-DEX checksum table.
func (v *File) ChecksumsSize() uint32 {
	return 4 * v.Header.NumberOfDexFiles
}

// Section returns the (offset, length) of the requested section within
// the mapped buffer.
func (v *File) Section(which Section) (offset, length uint32) {
	checksumsOff := uint32(VdexHeaderSize)
	checksumsLen := v.ChecksumsSize()
	dexOff := checksumsOff + checksumsLen
	dexLen := v.Header.DexSize
	depsOff := dexOff + dexLen
	depsLen := v.Header.VerifierDepsSize
	qOff := depsOff + depsLen
	qLen := v.Header.QuickeningInfoSize

	switch which {
	case SectionChecksums:
		return checksumsOff, checksumsLen
	case SectionDexFiles:
		return dexOff, dexLen
	case SectionVerifierDeps:
		return depsOff, depsLen
	case SectionQuickeningInfo:
		return qOff, qLen
	}
	return 0, 0
}

// GetChecksum returns the location checksum for the i-th embedded DEX.
func (v *File) GetChecksum(i uint32) (uint32, error) {
	if i >= v.Header.NumberOfDexFiles {
		return 0, ErrOutsideBoundary
	}
	return ReadUint32(v.data, uint32(VdexHeaderSize)+4*i)
}

// SetChecksum overwrites the location checksum for the i-th embedded DEX.
// The caller must have opened the file with OpenWritable.
func (v *File) SetChecksum(i uint32, value uint32) error {
	if i >= v.Header.NumberOfDexFiles {
		return ErrOutsideBoundary
	}
	offset := uint32(VdexHeaderSize) + 4*i
	v.data[offset] = byte(value)
	v.data[offset+1] = byte(value >> 8)
	v.data[offset+2] = byte(value >> 16)
	v.data[offset+3] = byte(value >> 24)
	return nil
}

// DexSlice is a contiguous byte range within the VDEX buffer whose first
// bytes form a DEX header, along with its ordinal position.
type DexSlice struct {
	Index  int
	Offset uint32
	Data   []byte
}

// dexIterator walks the concatenated-DEXes section one DEX at a time,
// advancing by each DEX header's own declared fileSize (§4.1).
type dexIterator struct {
	v      *File
	cursor uint32
	end    uint32
	index  int
}

// DexIter returns a stateful, finite iterator over the embedded DEX files.
func (v *File) DexIter() *dexIterator {
	off, length := v.Section(SectionDexFiles)
	return &dexIterator{v: v, cursor: off, end: off + length}
}

// Next returns the next DEX slice, or (nil, nil) once exhausted. A DEX
// whose declared fileSize would overrun the dex-section boundary yields
// ErrTruncatedContainer.
func (it *dexIterator) Next() (*DexSlice, error) {
	if it.cursor >= it.end {
		return nil, nil
	}

	fileSize, err := ReadUint32(it.v.data, it.cursor+dexFileSizeOffset)
	if err != nil {
		return nil, ErrTruncatedContainer
	}
	if fileSize < dexHeaderSize || it.cursor+fileSize > it.end || it.cursor+fileSize < it.cursor {
		return nil, ErrTruncatedContainer
	}

	slice := &DexSlice{
		Index:  it.index,
		Offset: it.cursor,
		Data:   it.v.data[it.cursor : it.cursor+fileSize],
	}
	it.cursor += fileSize
	it.index++
	return slice, nil
}
