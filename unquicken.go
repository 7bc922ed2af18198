// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

// codeItemHeaderSize is the fixed 16-byte prefix of a code_item, before
// its instruction stream: registers_size, ins_size, outs_size,
// tries_size (all u2), debug_info_off, insns_size (u4).
const codeItemHeaderSize = 16

// payload pseudo-opcode identifiers, reached only via a NOP (0x00)
// opcode byte followed by one of these 16-bit idents.
const (
	identPackedSwitch  = 0x0100
	identSparseSwitch  = 0x0200
	identFillArrayData = 0x0300
)

// payloadWidth returns the width, in 16-bit code units, of the payload
// pseudo-instruction beginning at insns[pos:], given its ident has
// already been read. Returns 0 if insns is too short to hold it.
func payloadWidth(insns []byte, pos int, ident uint16) uint16 {
	switch ident {
	case identPackedSwitch:
		if pos+4 > len(insns) {
			return 0
		}
		size := uint16(insns[pos+2]) | uint16(insns[pos+3])<<8
		return 4 + size*2
	case identSparseSwitch:
		if pos+4 > len(insns) {
			return 0
		}
		size := uint16(insns[pos+2]) | uint16(insns[pos+3])<<8
		return 2 + size*4
	case identFillArrayData:
		if pos+8 > len(insns) {
			return 0
		}
		elemWidth := uint32(insns[pos+2]) | uint32(insns[pos+3])<<8
		size := uint32(insns[pos+4]) | uint32(insns[pos+5])<<8 |
			uint32(insns[pos+6])<<16 | uint32(insns[pos+7])<<24
		return uint16(4 + (elemWidth*size+1)/2)
	default:
		return 0
	}
}

// payloadIdentAt returns the payload ident at insns[pos+2:pos+4] when op
// is a NOP immediately followed by one, and ok=false otherwise.
func payloadIdentAt(insns []byte, pos int) (ident uint16, ok bool) {
	if pos+4 > len(insns) {
		return 0, false
	}
	ident = uint16(insns[pos+2]) | uint16(insns[pos+3])<<8
	switch ident {
	case identPackedSwitch, identSparseSwitch, identFillArrayData:
		return ident, true
	default:
		return 0, false
	}
}

// containsQuickenedOpcode performs a width-respecting forward walk over
// insns purely to detect whether any opcode this package knows how to
// revert is present, without mutating anything. Used only for the v6
// backend, which has no offset table to consult: it decides whether the
// method is allowed to consume the next sequential quickening-info blob
// at all (§4.3's positional mapping: code items without quickening
// consume no blob, and v6's cursor would desync if a method took one it
// didn't own).
func containsQuickenedOpcode(insns []byte) (bool, error) {
	pos := 0
	for pos < len(insns) {
		op := insns[pos]
		if op == opNop {
			if ident, ok := payloadIdentAt(insns, pos); ok {
				w := payloadWidth(insns, pos, ident)
				if w == 0 {
					return false, ErrMalformedDex
				}
				pos += int(w) * 2
				continue
			}
			pos += 2
			continue
		}
		if isQuickened(op) {
			return true, nil
		}
		pos += int(widthOf(op)) * 2
	}
	if pos != len(insns) {
		return false, ErrMalformedDex
	}
	return false, nil
}

// unquickenMethod reverts one method's code item in place within dexCopy,
// a private mutable copy of the DEX bytes. codeItemOff is the absolute
// offset of the code_item within dexCopy.
//
// Whether this method has anything to revert is decided differently per
// backend: v10's offset table is authoritative (a lookup miss means no
// quickening, full stop), while v6 has no such table and so falls back to
// scanning for a known revertible opcode before it may consume a blob.
//
// A reverted CHECK_CAST is twice as wide (format 21c, 2 code units) as
// the NOP it replaces (format 10x, 1 code unit): dex2oat leaves the
// original instruction's second code unit in place as a dead, still-zero
// unit rather than shrinking the stream, so reverting a NOP consumes two
// code units from the instruction cursor, not one.
func unquickenMethod(dexCopy []byte, codeItemOff uint32, dexIdx int, backend *versionBackend, qidx QuickeningIndex) error {
	if codeItemOff+codeItemHeaderSize > uint32(len(dexCopy)) {
		return ErrMalformedDex
	}
	insnsSize, err := ReadUint32(dexCopy, codeItemOff+12)
	if err != nil {
		return ErrMalformedDex
	}
	insnsOff := codeItemOff + codeItemHeaderSize
	insnsLen := insnsSize * 2
	insns, err := ReadBytesAtOffset(dexCopy, insnsOff, insnsLen)
	if err != nil {
		return ErrMalformedDex
	}

	var blob []byte
	var ok bool

	if backend.revertsLeadingNopCount {
		// v10 carries an explicit code-offset -> blob mapping; its
		// presence in the offset table, not opcode sniffing, is what
		// decides whether this code item has quickening to revert.
		blob, ok, err = qidx.Blob(dexIdx, codeItemOff)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	} else {
		// v6 has no offset table: its blobs are consumed sequentially
		// in instruction order, so a method must be known to contain a
		// revertible opcode before it is allowed to consume one.
		needsBlob, err := containsQuickenedOpcode(insns)
		if err != nil {
			return err
		}
		if !needsBlob {
			return nil
		}
		blob, ok, err = qidx.Blob(dexIdx, codeItemOff)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	var cursor uint32
	nopBudget := -1 // unbounded: v6 reverts every plain NOP encountered
	if backend.revertsLeadingNopCount {
		n, next, err := ReadULEB128(blob, 0)
		if err != nil {
			return ErrTruncatedQuickeningData
		}
		nopBudget = int(n)
		cursor = next
	}

	nopsSeen := 0
	pos := 0
	for pos < len(insns) {
		op := insns[pos]

		if op == opNop {
			if ident, ok := payloadIdentAt(insns, pos); ok {
				w := payloadWidth(insns, pos, ident)
				pos += int(w) * 2
				continue
			}

			if nopBudget < 0 || nopsSeen < nopBudget {
				operand, next, err := readOperand16(blob, cursor)
				if err != nil {
					return ErrTruncatedQuickeningData
				}
				cursor = next
				writeInstruction(insns, pos, opCheckCast, operand)
				nopsSeen++
				pos += 4
				continue
			}
			nopsSeen++
			pos += 2
			continue
		}

		if isQuickened(op) {
			operand, next, err := readOperand16(blob, cursor)
			if err != nil {
				return ErrTruncatedQuickeningData
			}
			cursor = next

			reverted, ok := fieldQuickToField[op]
			if !ok {
				reverted, ok = invokeQuickToInvoke[op]
			}
			if !ok {
				return ErrMalformedDex
			}
			writeInstruction(insns, pos, reverted, operand)
			pos += int(widthOf(op)) * 2
			continue
		}

		pos += int(widthOf(op)) * 2
	}
	if pos != len(insns) {
		return ErrMalformedDex
	}
	return nil
}

// readOperand16 reads the next 16-bit little-endian operand from blob at
// offset and returns the offset past it.
func readOperand16(blob []byte, offset uint32) (uint16, uint32, error) {
	v, err := ReadUint16(blob, offset)
	if err != nil {
		return 0, offset, ErrTruncatedQuickeningData
	}
	return v, offset + 2, nil
}

// writeInstruction overwrites the opcode byte and the 16-bit operand
// field (code units [pos+2, pos+4)) of the instruction at pos.
func writeInstruction(insns []byte, pos int, opcode byte, operand uint16) {
	insns[pos] = opcode
	insns[pos+2] = byte(operand)
	insns[pos+3] = byte(operand >> 8)
}

// classDataCursor walks the ULEB128-encoded class_data_item format:
// counts, then encoded_field*, encoded_method* groups.
type classDataCursor struct {
	data   []byte
	offset uint32
}

func (c *classDataCursor) uleb() (uint32, error) {
	v, next, err := ReadULEB128(c.data, c.offset)
	if err != nil {
		return 0, ErrMalformedDex
	}
	c.offset = next
	return v, nil
}

// skipEncodedField consumes one encoded_field's field_idx_diff and
// access_flags.
func (c *classDataCursor) skipEncodedField() error {
	if _, err := c.uleb(); err != nil {
		return err
	}
	if _, err := c.uleb(); err != nil {
		return err
	}
	return nil
}

// readEncodedMethodCodeOffset consumes one encoded_method's
// method_idx_diff, access_flags and code_off, returning code_off (0 when
// the method has no code, e.g. abstract or native).
func (c *classDataCursor) readEncodedMethodCodeOffset() (uint32, error) {
	if _, err := c.uleb(); err != nil {
		return 0, err
	}
	if _, err := c.uleb(); err != nil {
		return 0, err
	}
	return c.uleb()
}

// UnquickenDex reverts every quickened instruction across every class and
// method in a single DEX slice, mutating a private copy and returning it.
// dex.Index identifies this DEX's ordinal position for the v10 backend.
func UnquickenDex(dex *DexSlice, backend *versionBackend, qidx QuickeningIndex) ([]byte, error) {
	dexCopy := make([]byte, len(dex.Data))
	copy(dexCopy, dex.Data)

	classDefsSize, err := ReadUint32(dexCopy, dexOffClassDefsSize)
	if err != nil {
		return nil, ErrMalformedDex
	}
	classDefsOff, err := ReadUint32(dexCopy, dexOffClassDefsOff)
	if err != nil {
		return nil, ErrMalformedDex
	}

	const classDefItemSize = 32
	const classDataOffField = 24

	for i := uint32(0); i < classDefsSize; i++ {
		base := classDefsOff + i*classDefItemSize
		classDataOff, err := ReadUint32(dexCopy, base+classDataOffField)
		if err != nil {
			return nil, ErrMalformedDex
		}
		if classDataOff == 0 {
			continue
		}

		cur := &classDataCursor{data: dexCopy, offset: classDataOff}
		staticFieldsSize, err := cur.uleb()
		if err != nil {
			return nil, err
		}
		instanceFieldsSize, err := cur.uleb()
		if err != nil {
			return nil, err
		}
		directMethodsSize, err := cur.uleb()
		if err != nil {
			return nil, err
		}
		virtualMethodsSize, err := cur.uleb()
		if err != nil {
			return nil, err
		}

		for j := uint32(0); j < staticFieldsSize; j++ {
			if err := cur.skipEncodedField(); err != nil {
				return nil, err
			}
		}
		for j := uint32(0); j < instanceFieldsSize; j++ {
			if err := cur.skipEncodedField(); err != nil {
				return nil, err
			}
		}

		methodGroups := []uint32{directMethodsSize, virtualMethodsSize}
		for _, size := range methodGroups {
			for j := uint32(0); j < size; j++ {
				codeOff, err := cur.readEncodedMethodCodeOffset()
				if err != nil {
					return nil, err
				}
				if codeOff == 0 {
					continue
				}
				if err := unquickenMethod(dexCopy, codeOff, dex.Index, backend, qidx); err != nil {
					return nil, err
				}
			}
		}
	}

	return dexCopy, nil
}
