// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import (
	"bytes"
	"fmt"
)

// dexFileSizeOffset is the byte offset of the fileSize field within a DEX
// header; the container parser uses it to find each embedded DEX's length
// without fully parsing the header.
const dexFileSizeOffset = 32

// dexHeaderSize is the fixed size, in bytes, of the standard DEX header.
const dexHeaderSize = 0x70

// DEX header field offsets (little-endian throughout).
const (
	dexOffChecksum        = 8
	dexOffSignature       = 12
	dexOffFileSize        = 32
	dexOffHeaderSize      = 36
	dexOffEndianTag       = 40
	dexOffLinkSize        = 44
	dexOffLinkOff         = 48
	dexOffMapOff          = 52
	dexOffStringIdsSize   = 56
	dexOffStringIdsOff    = 60
	dexOffTypeIdsSize     = 64
	dexOffTypeIdsOff      = 68
	dexOffProtoIdsSize    = 72
	dexOffProtoIdsOff     = 76
	dexOffFieldIdsSize    = 80
	dexOffFieldIdsOff     = 84
	dexOffMethodIdsSize   = 88
	dexOffMethodIdsOff    = 92
	dexOffClassDefsSize   = 96
	dexOffClassDefsOff    = 100
	dexOffDataSize        = 104
	dexOffDataOff         = 108
)

// dexMagicPrefix is the first 4 bytes ("dex\n") of the 8-byte magic every
// standalone DEX file begins with ("dex\n035\0" and friends); embedded DEX
// headers carry the same prefix even though VDEX's own header has already
// validated the container, so this is used only for sanity-checking DEX
// slices.
var dexMagicPrefix = []byte{'d', 'e', 'x', '\n'}

// DexHeader is a read-only view of a DEX header's table offsets/sizes,
// read from a DexSlice's bytes when NewResolver is called.
type DexHeader struct {
	FileSize      uint32
	HeaderSize    uint32
	StringIDsSize uint32
	StringIDsOff  uint32
	TypeIDsSize   uint32
	TypeIDsOff    uint32
	ProtoIDsSize  uint32
	ProtoIDsOff   uint32
	FieldIDsSize  uint32
	FieldIDsOff   uint32
	MethodIDsSize uint32
	MethodIDsOff  uint32
	ClassDefsSize uint32
	ClassDefsOff  uint32
	DataSize      uint32
	DataOff       uint32
}

// Resolver provides read-only, bounds-checked navigation over one DEX's
// string/type/field/method/proto tables for pretty-printing indices.
type Resolver struct {
	data   []byte
	Header DexHeader
}

// NewResolver parses a DEX slice's header and returns a Resolver over it.
func NewResolver(data []byte) (*Resolver, error) {
	if len(data) < dexHeaderSize || !bytes.HasPrefix(data, dexMagicPrefix) {
		return nil, ErrMalformedDex
	}

	r := &Resolver{data: data}
	var err error
	fields := []struct {
		off uint32
		dst *uint32
	}{
		{dexOffFileSize, &r.Header.FileSize},
		{dexOffHeaderSize, &r.Header.HeaderSize},
		{dexOffStringIdsSize, &r.Header.StringIDsSize},
		{dexOffStringIdsOff, &r.Header.StringIDsOff},
		{dexOffTypeIdsSize, &r.Header.TypeIDsSize},
		{dexOffTypeIdsOff, &r.Header.TypeIDsOff},
		{dexOffProtoIdsSize, &r.Header.ProtoIDsSize},
		{dexOffProtoIdsOff, &r.Header.ProtoIDsOff},
		{dexOffFieldIdsSize, &r.Header.FieldIDsSize},
		{dexOffFieldIdsOff, &r.Header.FieldIDsOff},
		{dexOffMethodIdsSize, &r.Header.MethodIDsSize},
		{dexOffMethodIdsOff, &r.Header.MethodIDsOff},
		{dexOffClassDefsSize, &r.Header.ClassDefsSize},
		{dexOffClassDefsOff, &r.Header.ClassDefsOff},
		{dexOffDataSize, &r.Header.DataSize},
		{dexOffDataOff, &r.Header.DataOff},
	}
	for _, f := range fields {
		*f.dst, err = ReadUint32(data, f.off)
		if err != nil {
			return nil, ErrMalformedDex
		}
	}
	return r, nil
}

// readMUTF8String decodes the string at the data_item pointed to by the
// string_id_item offset stringDataOff: a ULEB128 UTF-16 length followed
// by MUTF-8 bytes terminated by a NUL. We don't need the decoded Unicode
// length for pretty-printing, only the bytes, which are valid UTF-8 for
// every character DEX string pools actually use in practice here.
func readMUTF8String(data []byte, stringDataOff uint32) (string, error) {
	_, dataOff, err := ReadULEB128(data, stringDataOff)
	if err != nil {
		return "", ErrMalformedDex
	}
	end := dataOff
	for {
		b, err := ReadUint8(data, end)
		if err != nil {
			return "", ErrMalformedDex
		}
		if b == 0 {
			break
		}
		end++
	}
	return string(data[dataOff:end]), nil
}

// String returns the DEX's string-pool entry at idx, or a synthetic
// <invalid-idx-N> token if idx is out of range.
func (r *Resolver) String(idx uint32) string {
	if idx >= r.Header.StringIDsSize {
		return invalidIdx(idx)
	}
	off, err := ReadUint32(r.data, r.Header.StringIDsOff+4*idx)
	if err != nil {
		return invalidIdx(idx)
	}
	s, err := readMUTF8String(r.data, off)
	if err != nil {
		return invalidIdx(idx)
	}
	return s
}

// TypeName returns the Java-style type descriptor (e.g. "Lpkg/Name;") for
// type-pool index idx.
func (r *Resolver) TypeName(idx uint32) string {
	if idx >= r.Header.TypeIDsSize {
		return invalidIdx(idx)
	}
	descIdx, err := ReadUint32(r.data, r.Header.TypeIDsOff+4*idx)
	if err != nil {
		return invalidIdx(idx)
	}
	return r.String(descIdx)
}

// FieldSignature returns "declaring.name:type" for field-pool index idx.
func (r *Resolver) FieldSignature(idx uint32) string {
	if idx >= r.Header.FieldIDsSize {
		return invalidIdx(idx)
	}
	base := r.Header.FieldIDsOff + 8*idx
	classIdx, err1 := ReadUint16(r.data, base)
	typeIdx, err2 := ReadUint16(r.data, base+2)
	nameIdx, err3 := ReadUint32(r.data, base+4)
	if err1 != nil || err2 != nil || err3 != nil {
		return invalidIdx(idx)
	}
	return fmt.Sprintf("%s.%s:%s", r.TypeName(uint32(classIdx)), r.String(nameIdx), r.TypeName(uint32(typeIdx)))
}

// MethodSignature returns "declaring.name(params)return" for method-pool
// index idx.
func (r *Resolver) MethodSignature(idx uint32) string {
	if idx >= r.Header.MethodIDsSize {
		return invalidIdx(idx)
	}
	base := r.Header.MethodIDsOff + 8*idx
	classIdx, err1 := ReadUint16(r.data, base)
	protoIdx, err2 := ReadUint16(r.data, base+2)
	nameIdx, err3 := ReadUint32(r.data, base+4)
	if err1 != nil || err2 != nil || err3 != nil {
		return invalidIdx(idx)
	}
	return fmt.Sprintf("%s.%s%s", r.TypeName(uint32(classIdx)), r.String(nameIdx), r.protoSignature(uint32(protoIdx)))
}

// protoSignature resolves a proto_id_item's parameter list (a side-table
// type_list) and return type into "(params)return".
func (r *Resolver) protoSignature(idx uint32) string {
	if idx >= r.Header.ProtoIDsSize {
		return invalidIdx(idx)
	}
	base := r.Header.ProtoIDsOff + 12*idx
	_, err1 := ReadUint32(r.data, base) // shortyIdx, unused for pretty-printing
	returnTypeIdx, err2 := ReadUint32(r.data, base+4)
	paramsOff, err3 := ReadUint32(r.data, base+8)
	if err1 != nil || err2 != nil || err3 != nil {
		return invalidIdx(idx)
	}

	params := "()"
	if paramsOff != 0 {
		size, err := ReadUint32(r.data, paramsOff)
		if err == nil {
			var b bytes.Buffer
			b.WriteByte('(')
			for i := uint32(0); i < size; i++ {
				tIdx, err := ReadUint16(r.data, paramsOff+4+2*i)
				if err != nil {
					b.WriteString(invalidIdx(uint32(i)))
					continue
				}
				b.WriteString(r.TypeName(uint32(tIdx)))
			}
			b.WriteByte(')')
			params = b.String()
		}
	}
	return params + r.TypeName(returnTypeIdx)
}

func invalidIdx(idx uint32) string {
	return fmt.Sprintf("<invalid-idx-%d>", idx)
}
