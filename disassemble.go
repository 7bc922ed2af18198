// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import (
	"fmt"
	"strings"
)

// mnemonics names the opcodes this package cares about; anything else
// disassembles as a bare "op-0xXX" token, which is enough to eyeball a
// method's quickened/reverted shape without a full Dalvik disassembler.
var mnemonics = map[byte]string{
	opNop:                     "nop",
	opCheckCast:               "check-cast",
	opIGet:                    "iget",
	opIGetWide:                "iget-wide",
	opIGetObject:              "iget-object",
	opIGetBoolean:             "iget-boolean",
	opIGetByte:                "iget-byte",
	opIGetChar:                "iget-char",
	opIGetShort:               "iget-short",
	opIPut:                    "iput",
	opIPutWide:                "iput-wide",
	opIPutObject:              "iput-object",
	opIPutBoolean:             "iput-boolean",
	opIPutByte:                "iput-byte",
	opIPutChar:                "iput-char",
	opIPutShort:               "iput-short",
	opInvokeVirtual:           "invoke-virtual",
	opInvokeVirtualRange:      "invoke-virtual/range",
	opIGetQuick:               "iget-quick",
	opIGetWideQuick:           "iget-wide-quick",
	opIGetObjectQuick:         "iget-object-quick",
	opIGetBooleanQuick:        "iget-boolean-quick",
	opIGetByteQuick:           "iget-byte-quick",
	opIGetCharQuick:           "iget-char-quick",
	opIGetShortQuick:          "iget-short-quick",
	opIPutQuick:               "iput-quick",
	opIPutWideQuick:           "iput-wide-quick",
	opIPutObjectQuick:         "iput-object-quick",
	opIPutBooleanQuick:        "iput-boolean-quick",
	opIPutByteQuick:           "iput-byte-quick",
	opIPutCharQuick:           "iput-char-quick",
	opIPutShortQuick:          "iput-short-quick",
	opInvokeVirtualQuick:      "invoke-virtual-quick",
	opInvokeVirtualRangeQuick: "invoke-virtual-quick/range",
}

func mnemonicFor(op byte) string {
	if m, ok := mnemonics[op]; ok {
		return m
	}
	return fmt.Sprintf("op-0x%02x", op)
}

// DisassembleCodeItem renders a code item's instruction stream as one
// line per instruction: offset, mnemonic, and for field/method-bearing
// instructions the resolved symbol via resolver. Payload pseudo-
// instructions are rendered as a single summary line.
func DisassembleCodeItem(dexData []byte, codeItemOff uint32, resolver *Resolver) (string, error) {
	if codeItemOff+codeItemHeaderSize > uint32(len(dexData)) {
		return "", ErrMalformedDex
	}
	insnsSize, err := ReadUint32(dexData, codeItemOff+12)
	if err != nil {
		return "", ErrMalformedDex
	}
	insnsOff := codeItemOff + codeItemHeaderSize
	insns, err := ReadBytesAtOffset(dexData, insnsOff, insnsSize*2)
	if err != nil {
		return "", ErrMalformedDex
	}

	var b strings.Builder
	pos := 0
	for pos < len(insns) {
		op := insns[pos]

		if op == opNop {
			if ident, ok := payloadIdentAt(insns, pos); ok {
				w := payloadWidth(insns, pos, ident)
				fmt.Fprintf(&b, "%04x: <payload ident=0x%04x units=%d>\n", pos/2, ident, w)
				pos += int(w) * 2
				continue
			}
		}

		line := fmt.Sprintf("%04x: %s", pos/2, mnemonicFor(op))
		if resolver != nil && pos+4 <= len(insns) {
			idx := uint32(insns[pos+2]) | uint32(insns[pos+3])<<8
			switch op {
			case opIGet, opIGetWide, opIGetObject, opIGetBoolean, opIGetByte, opIGetChar, opIGetShort,
				opIPut, opIPutWide, opIPutObject, opIPutBoolean, opIPutByte, opIPutChar, opIPutShort:
				line += " " + resolver.FieldSignature(idx)
			case opInvokeVirtual, opInvokeVirtualRange:
				line += " " + resolver.MethodSignature(idx)
			case opCheckCast:
				line += " " + resolver.TypeName(idx)
			}
		}
		b.WriteString(line)
		b.WriteByte('\n')
		pos += int(widthOf(op)) * 2
	}
	return b.String(), nil
}
