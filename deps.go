// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import (
	"fmt"
	"strings"
)

// unresolvedIdx is the sentinel declaringClassIdx value meaning "this
// field/method reference never resolved against a concrete class".
const unresolvedIdx = 0xffffffff

// TypeAssignability is one {dst, src} pair from an assignable or
// unassignable type set.
type TypeAssignability struct {
	Destination string
	Source      string
}

// ClassResolution is one class_def resolution record.
type ClassResolution struct {
	TypeIdx     uint16
	AccessFlags uint16
	Type        string
}

// FieldResolution is one field resolution record. DeclaringClass is
// "unresolved" when the record's declaringClassIdx sentinel is set.
type FieldResolution struct {
	FieldIdx       uint32
	AccessFlags    uint16
	DeclaringClass string
	Signature      string
}

// MethodResolution is one method resolution record, mirroring
// FieldResolution.
type MethodResolution struct {
	MethodIdx      uint32
	AccessFlags    uint16
	DeclaringClass string
	Signature      string
}

// DexDeps is one DEX's decoded verifier-dependencies record (§4.5 / §3).
type DexDeps struct {
	ExtraStrings         []string
	AssignableTypes      []TypeAssignability
	UnassignableTypes    []TypeAssignability
	ClassResolutions     []ClassResolution
	FieldResolutions     []FieldResolution
	MethodResolutions    []MethodResolution
	UnverifiedClasses    []uint16
	UnverifiedClassNames []string
}

// depsCursor walks one DEX's verifier-dependencies record.
type depsCursor struct {
	data   []byte
	offset uint32
}

func (c *depsCursor) uleb() (uint32, error) {
	v, next, err := ReadULEB128(c.data, c.offset)
	if err != nil {
		return 0, err
	}
	c.offset = next
	return v, nil
}

func (c *depsCursor) u16() (uint16, error) {
	v, err := ReadUint16(c.data, c.offset)
	if err != nil {
		return 0, err
	}
	c.offset += 2
	return v, nil
}

func (c *depsCursor) u32() (uint32, error) {
	v, err := ReadUint32(c.data, c.offset)
	if err != nil {
		return 0, err
	}
	c.offset += 4
	return v, nil
}

func (c *depsCursor) rawString(length uint32) (string, error) {
	b, err := ReadBytesAtOffset(c.data, c.offset, length)
	if err != nil {
		return "", err
	}
	c.offset += length
	return string(b), nil
}

// decodeOneDexDeps decodes a single DEX's six sub-streams starting at
// cursor's current offset, stopping once all six have been read.
func decodeOneDexDeps(cur *depsCursor, resolver *Resolver) (*DexDeps, error) {
	d := &DexDeps{}

	numExtraStrings, err := cur.uleb()
	if err != nil {
		return nil, ErrMalformedDex
	}
	for i := uint32(0); i < numExtraStrings; i++ {
		length, err := cur.uleb()
		if err != nil {
			return nil, ErrMalformedDex
		}
		s, err := cur.rawString(length)
		if err != nil {
			return nil, ErrMalformedDex
		}
		d.ExtraStrings = append(d.ExtraStrings, s)
	}

	lookupString := func(idx uint32) string {
		if resolver != nil && idx < resolver.Header.StringIDsSize {
			return resolver.String(idx)
		}
		extraIdx := idx
		if resolver != nil {
			extraIdx = idx - resolver.Header.StringIDsSize
		}
		if int(extraIdx) < len(d.ExtraStrings) {
			return d.ExtraStrings[extraIdx]
		}
		return invalidIdx(idx)
	}

	readTypeSet := func() ([]TypeAssignability, error) {
		count, err := cur.uleb()
		if err != nil {
			return nil, ErrMalformedDex
		}
		out := make([]TypeAssignability, 0, count)
		for i := uint32(0); i < count; i++ {
			dst, err := cur.u32()
			if err != nil {
				return nil, ErrMalformedDex
			}
			src, err := cur.u32()
			if err != nil {
				return nil, ErrMalformedDex
			}
			out = append(out, TypeAssignability{
				Destination: lookupString(dst),
				Source:      lookupString(src),
			})
		}
		return out, nil
	}

	d.AssignableTypes, err = readTypeSet()
	if err != nil {
		return nil, err
	}
	d.UnassignableTypes, err = readTypeSet()
	if err != nil {
		return nil, err
	}

	classCount, err := cur.uleb()
	if err != nil {
		return nil, ErrMalformedDex
	}
	for i := uint32(0); i < classCount; i++ {
		typeIdx, err := cur.u16()
		if err != nil {
			return nil, ErrMalformedDex
		}
		flags, err := cur.u16()
		if err != nil {
			return nil, ErrMalformedDex
		}
		cr := ClassResolution{TypeIdx: typeIdx, AccessFlags: flags}
		if resolver != nil {
			cr.Type = resolver.TypeName(uint32(typeIdx))
		}
		d.ClassResolutions = append(d.ClassResolutions, cr)
	}

	fieldCount, err := cur.uleb()
	if err != nil {
		return nil, ErrMalformedDex
	}
	for i := uint32(0); i < fieldCount; i++ {
		fieldIdx, err := cur.u32()
		if err != nil {
			return nil, ErrMalformedDex
		}
		flags, err := cur.u16()
		if err != nil {
			return nil, ErrMalformedDex
		}
		declClassIdx, err := cur.u32()
		if err != nil {
			return nil, ErrMalformedDex
		}
		fr := FieldResolution{FieldIdx: fieldIdx, AccessFlags: flags}
		if declClassIdx == unresolvedIdx {
			fr.DeclaringClass = "unresolved"
		} else if resolver != nil {
			fr.DeclaringClass = resolver.TypeName(declClassIdx)
		}
		if resolver != nil {
			fr.Signature = resolver.FieldSignature(fieldIdx)
		}
		d.FieldResolutions = append(d.FieldResolutions, fr)
	}

	methodCount, err := cur.uleb()
	if err != nil {
		return nil, ErrMalformedDex
	}
	for i := uint32(0); i < methodCount; i++ {
		methodIdx, err := cur.u32()
		if err != nil {
			return nil, ErrMalformedDex
		}
		flags, err := cur.u16()
		if err != nil {
			return nil, ErrMalformedDex
		}
		declClassIdx, err := cur.u32()
		if err != nil {
			return nil, ErrMalformedDex
		}
		mr := MethodResolution{MethodIdx: methodIdx, AccessFlags: flags}
		if declClassIdx == unresolvedIdx {
			mr.DeclaringClass = "unresolved"
		} else if resolver != nil {
			mr.DeclaringClass = resolver.TypeName(declClassIdx)
		}
		if resolver != nil {
			mr.Signature = resolver.MethodSignature(methodIdx)
		}
		d.MethodResolutions = append(d.MethodResolutions, mr)
	}

	unverifiedCount, err := cur.uleb()
	if err != nil {
		return nil, ErrMalformedDex
	}
	for i := uint32(0); i < unverifiedCount; i++ {
		typeIdx, err := cur.u16()
		if err != nil {
			return nil, ErrMalformedDex
		}
		d.UnverifiedClasses = append(d.UnverifiedClasses, typeIdx)
		name := invalidIdx(uint32(typeIdx))
		if resolver != nil {
			name = resolver.TypeName(uint32(typeIdx))
		}
		d.UnverifiedClassNames = append(d.UnverifiedClassNames, name)
	}

	return d, nil
}

// DecodeVerifierDeps decodes the verifier-dependencies section into one
// DexDeps record per embedded DEX, in order. resolvers, when non-nil,
// must have one entry per DEX for signature stringification; pass nil
// entries to fall back to raw indices.
func DecodeVerifierDeps(section []byte, numberOfDexFiles uint32, resolvers []*Resolver) ([]*DexDeps, error) {
	cur := &depsCursor{data: section}
	out := make([]*DexDeps, 0, numberOfDexFiles)
	for i := uint32(0); i < numberOfDexFiles; i++ {
		var resolver *Resolver
		if int(i) < len(resolvers) {
			resolver = resolvers[i]
		}
		d, err := decodeOneDexDeps(cur, resolver)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Report renders a DexDeps record as a human-readable tree, resolving
// unresolved sentinels to the literal "unresolved".
func (d *DexDeps) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "extra strings: %d\n", len(d.ExtraStrings))
	for i, s := range d.ExtraStrings {
		fmt.Fprintf(&b, "  [%d] %q\n", i, s)
	}
	fmt.Fprintf(&b, "assignable: %d\n", len(d.AssignableTypes))
	for _, t := range d.AssignableTypes {
		fmt.Fprintf(&b, "  %s <- %s\n", t.Destination, t.Source)
	}
	fmt.Fprintf(&b, "unassignable: %d\n", len(d.UnassignableTypes))
	for _, t := range d.UnassignableTypes {
		fmt.Fprintf(&b, "  %s </- %s\n", t.Destination, t.Source)
	}
	fmt.Fprintf(&b, "class resolutions: %d\n", len(d.ClassResolutions))
	for _, c := range d.ClassResolutions {
		fmt.Fprintf(&b, "  %s access=0x%x\n", c.Type, c.AccessFlags)
	}
	fmt.Fprintf(&b, "field resolutions: %d\n", len(d.FieldResolutions))
	for _, f := range d.FieldResolutions {
		fmt.Fprintf(&b, "  %s declared-by=%s access=0x%x\n", f.Signature, f.DeclaringClass, f.AccessFlags)
	}
	fmt.Fprintf(&b, "method resolutions: %d\n", len(d.MethodResolutions))
	for _, m := range d.MethodResolutions {
		fmt.Fprintf(&b, "  %s declared-by=%s access=0x%x\n", m.Signature, m.DeclaringClass, m.AccessFlags)
	}
	fmt.Fprintf(&b, "unverified classes: %d\n", len(d.UnverifiedClasses))
	for i, idx := range d.UnverifiedClasses {
		name := invalidIdx(uint32(idx))
		if i < len(d.UnverifiedClassNames) {
			name = d.UnverifiedClassNames[i]
		}
		fmt.Fprintf(&b, "  %s (type-idx %d)\n", name, idx)
	}
	return b.String()
}
