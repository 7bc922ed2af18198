// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import "encoding/binary"

// ReadUint64 reads a little-endian uint64 at offset from buf.
func ReadUint64(buf []byte, offset uint32) (uint64, error) {
	size := uint32(len(buf))
	if offset+8 > size || offset+8 < offset {
		return 0, ErrOutsideBoundary
	}
	return binary.LittleEndian.Uint64(buf[offset:]), nil
}

// ReadUint32 reads a little-endian uint32 at offset from buf.
func ReadUint32(buf []byte, offset uint32) (uint32, error) {
	size := uint32(len(buf))
	if offset+4 > size || offset+4 < offset {
		return 0, ErrOutsideBoundary
	}
	return binary.LittleEndian.Uint32(buf[offset:]), nil
}

// ReadUint16 reads a little-endian uint16 at offset from buf.
func ReadUint16(buf []byte, offset uint32) (uint16, error) {
	size := uint32(len(buf))
	if offset+2 > size || offset+2 < offset {
		return 0, ErrOutsideBoundary
	}
	return binary.LittleEndian.Uint16(buf[offset:]), nil
}

// ReadUint8 reads a single byte at offset from buf.
func ReadUint8(buf []byte, offset uint32) (uint8, error) {
	if offset+1 > uint32(len(buf)) {
		return 0, ErrOutsideBoundary
	}
	return buf[offset], nil
}

// ReadBytesAtOffset returns a size-length slice of buf starting at offset.
func ReadBytesAtOffset(buf []byte, offset, size uint32) ([]byte, error) {
	total := offset + size
	// Integer overflow.
	if (total > offset) != (size > 0) {
		return nil, ErrOutsideBoundary
	}
	if offset > uint32(len(buf)) || total > uint32(len(buf)) {
		return nil, ErrOutsideBoundary
	}
	return buf[offset:total], nil
}

// ReadULEB128 decodes an unsigned LEB128 value starting at offset,
// returning the value and the offset of the first byte past it.
func ReadULEB128(buf []byte, offset uint32) (uint32, uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := ReadUint8(buf, offset)
		if err != nil {
			return 0, offset, ErrOutsideBoundary
		}
		offset++
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 32 {
			return 0, offset, ErrMalformedDex
		}
	}
	return result, offset, nil
}

// ReadSLEB128 decodes a signed LEB128 value starting at offset, returning
// the value and the offset of the first byte past it.
func ReadSLEB128(buf []byte, offset uint32) (int32, uint32, error) {
	var result int32
	var shift uint
	var b uint8
	var err error
	for {
		b, err = ReadUint8(buf, offset)
		if err != nil {
			return 0, offset, ErrOutsideBoundary
		}
		offset++
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 32 {
			return 0, offset, ErrMalformedDex
		}
	}
	if shift < 32 && (b&0x40) != 0 {
		result |= -1 << shift
	}
	return result, offset, nil
}
