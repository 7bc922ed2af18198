// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import "encoding/binary"

// appendULEB128 appends v's unsigned LEB128 encoding to buf.
func appendULEB128(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

func appendU16(buf []byte, v uint16) []byte {
	tmp := make([]byte, 2)
	binary.LittleEndian.PutUint16(tmp, v)
	return append(buf, tmp...)
}

func appendU32(buf []byte, v uint32) []byte {
	tmp := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp, v)
	return append(buf, tmp...)
}

// minimalDexBuilder assembles a synthetic, minimal DEX byte buffer with
// exactly one class containing one direct method, for exercising the
// class-data/code-item walkers without a real compiled DEX fixture.
type minimalDexBuilder struct {
	insns []byte // raw instruction bytes for the one method's code item
}

// build lays out: [header 0x70][class_def_item 32][class_data][code_item].
// Only the fields unquicken.go/dex.go actually read are populated with
// meaningful values; string/type/field/method/proto tables are left
// empty (size 0) since these tests don't exercise symbol resolution.
func (b minimalDexBuilder) build() []byte {
	const headerSize = 0x70
	const classDefItemSize = 32

	classDefOff := uint32(headerSize)
	classDataOff := classDefOff + classDefItemSize

	var classData []byte
	classData = appendULEB128(classData, 0) // static_fields_size
	classData = appendULEB128(classData, 0) // instance_fields_size
	classData = appendULEB128(classData, 1) // direct_methods_size
	classData = appendULEB128(classData, 0) // virtual_methods_size

	// code_off's own ULEB128 encoding length depends on its value, which
	// depends on where it's placed; a couple of fixed-point iterations
	// converge since nearby guesses encode to the same byte length.
	codeItemOff := classDataOff + uint32(len(classData)) + 3
	var encodedMethod []byte
	for i := 0; i < 4; i++ {
		encodedMethod = encodedMethod[:0]
		encodedMethod = appendULEB128(encodedMethod, 5) // method_idx_diff
		encodedMethod = appendULEB128(encodedMethod, 0) // access_flags
		encodedMethod = appendULEB128(encodedMethod, codeItemOff)
		next := classDataOff + uint32(len(classData)) + uint32(len(encodedMethod))
		if next == codeItemOff {
			break
		}
		codeItemOff = next
	}

	classData = append(classData, encodedMethod...)

	var codeItem []byte
	codeItem = appendU16(codeItem, 2)                        // registers_size
	codeItem = appendU16(codeItem, 0)                        // ins_size
	codeItem = appendU16(codeItem, 0)                        // outs_size
	codeItem = appendU16(codeItem, 0)                        // tries_size
	codeItem = appendU32(codeItem, 0)                        // debug_info_off
	codeItem = appendU32(codeItem, uint32(len(b.insns)/2))   // insns_size (code units)
	codeItem = append(codeItem, b.insns...)

	total := codeItemOff + uint32(len(codeItem))
	buf := make([]byte, total)
	copy(buf, []byte{'d', 'e', 'x', '\n', '0', '3', '5', 0})

	// class_def_item: class_idx, access_flags, superclass_idx,
	// interfaces_off, source_file_idx, annotations_off, class_data_off,
	// static_values_off.
	putU32 := func(off, v uint32) {
		binary.LittleEndian.PutUint32(buf[off:], v)
	}
	putU32(classDefOff+0, 0)
	putU32(classDefOff+4, 0)
	putU32(classDefOff+8, 0xffffffff)
	putU32(classDefOff+12, 0)
	putU32(classDefOff+16, 0xffffffff)
	putU32(classDefOff+20, 0)
	putU32(classDefOff+24, classDataOff)
	putU32(classDefOff+28, 0)

	copy(buf[classDataOff:], classData)
	copy(buf[codeItemOff:], codeItem)

	// Header fields this package reads.
	putU32(dexOffFileSize, total)
	putU32(dexOffHeaderSize, headerSize)
	putU32(dexOffClassDefsSize, 1)
	putU32(dexOffClassDefsOff, classDefOff)

	return buf
}
