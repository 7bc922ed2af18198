// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import "fmt"

// ProcessConfig controls what a single Process call does with one
// opened VDEX file. It mirrors the caller-facing configuration
// enumerated for cmd/vdexctl: unquicken DEX output, dump verifier
// dependencies, emit disassembly text, or rewrite checksums from a
// sidecar.
type ProcessConfig struct {
	Unquicken        bool
	DumpDeps         bool
	Disassemble      bool
	NewChecksums     []uint32 // non-nil triggers the checksum-rewrite path
}

// DexResult is what Process produces for one embedded DEX.
type DexResult struct {
	Index         int
	Bytes         []byte // unquickened (or verbatim) DEX bytes
	Deps          *DexDeps
	Disassembly   string
}

// Result aggregates everything Process extracted from one VDEX file.
type Result struct {
	Dexes []DexResult
}

// Process runs the configured pipeline over an already-Validated File:
// unquickening, deps decoding and disassembly are all independent,
// read-mostly operations over the DEX slices the container parser
// yields (§2's data-flow summary).
func (v *File) Process(cfg ProcessConfig) (*Result, error) {
	result := &Result{}

	// A checksum rewrite is a standalone operation (§6): when nothing
	// else was requested, skip DEX extraction, deps decoding and
	// disassembly entirely rather than building resolvers and per-DEX
	// copies no caller asked for.
	wantsDexWork := cfg.Unquicken || cfg.DumpDeps || cfg.Disassemble
	if cfg.NewChecksums != nil && !wantsDexWork {
		if err := v.RewriteChecksums(cfg.NewChecksums); err != nil {
			return nil, err
		}
		return result, nil
	}

	var resolvers []*Resolver
	var slices []*DexSlice

	it := v.DexIter()
	for {
		slice, err := it.Next()
		if err != nil {
			return nil, err
		}
		if slice == nil {
			break
		}
		slices = append(slices, slice)

		r, err := NewResolver(slice.Data)
		if err != nil {
			return nil, err
		}
		resolvers = append(resolvers, r)
	}

	var qidx QuickeningIndex
	if cfg.Unquicken {
		if v.backend == nil {
			return nil, ErrUnsupportedBackend
		}
		off, length := v.Section(SectionQuickeningInfo)
		section, err := ReadBytesAtOffset(v.data, off, length)
		if err != nil {
			return nil, ErrTruncatedContainer
		}
		qidx, err = v.backend.newQuickeningIndex(section, v.Header.NumberOfDexFiles)
		if err != nil {
			return nil, err
		}
	}

	var deps []*DexDeps
	if cfg.DumpDeps {
		off, length := v.Section(SectionVerifierDeps)
		section, err := ReadBytesAtOffset(v.data, off, length)
		if err != nil {
			return nil, ErrTruncatedContainer
		}
		deps, err = DecodeVerifierDeps(section, v.Header.NumberOfDexFiles, resolvers)
		if err != nil {
			return nil, err
		}
	}

	for i, slice := range slices {
		dr := DexResult{Index: slice.Index}

		if cfg.Unquicken {
			out, err := UnquickenDex(slice, v.backend, qidx)
			if err != nil {
				v.logger.Warnf("dex %d: %v", slice.Index, err)
				dr.Bytes = append([]byte(nil), slice.Data...)
			} else {
				dr.Bytes = out
			}
		} else {
			dr.Bytes = append([]byte(nil), slice.Data...)
		}

		if cfg.DumpDeps && i < len(deps) {
			dr.Deps = deps[i]
		}

		if cfg.Disassemble {
			text, err := disassembleDex(dr.Bytes, resolvers[i])
			if err != nil {
				v.logger.Warnf("dex %d: disassembly failed: %v", slice.Index, err)
			} else {
				dr.Disassembly = text
			}
		}

		result.Dexes = append(result.Dexes, dr)
	}

	if cfg.NewChecksums != nil {
		if err := v.RewriteChecksums(cfg.NewChecksums); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// disassembleDex renders every method's code item across every class in
// dexData, concatenated with a per-method header line.
func disassembleDex(dexData []byte, resolver *Resolver) (string, error) {
	classDefsSize, err := ReadUint32(dexData, dexOffClassDefsSize)
	if err != nil {
		return "", ErrMalformedDex
	}
	classDefsOff, err := ReadUint32(dexData, dexOffClassDefsOff)
	if err != nil {
		return "", ErrMalformedDex
	}

	const classDefItemSize = 32
	const classDataOffField = 24

	out := ""
	for i := uint32(0); i < classDefsSize; i++ {
		base := classDefsOff + i*classDefItemSize
		classDataOff, err := ReadUint32(dexData, base+classDataOffField)
		if err != nil {
			return "", ErrMalformedDex
		}
		if classDataOff == 0 {
			continue
		}

		cur := &classDataCursor{data: dexData, offset: classDataOff}
		staticFieldsSize, err := cur.uleb()
		if err != nil {
			return "", err
		}
		instanceFieldsSize, err := cur.uleb()
		if err != nil {
			return "", err
		}
		directMethodsSize, err := cur.uleb()
		if err != nil {
			return "", err
		}
		virtualMethodsSize, err := cur.uleb()
		if err != nil {
			return "", err
		}
		for j := uint32(0); j < staticFieldsSize; j++ {
			if err := cur.skipEncodedField(); err != nil {
				return "", err
			}
		}
		for j := uint32(0); j < instanceFieldsSize; j++ {
			if err := cur.skipEncodedField(); err != nil {
				return "", err
			}
		}

		for _, size := range []uint32{directMethodsSize, virtualMethodsSize} {
			methodIdx := uint32(0)
			for j := uint32(0); j < size; j++ {
				diff, err := cur.uleb()
				if err != nil {
					return "", err
				}
				methodIdx += diff
				if _, err := cur.uleb(); err != nil { // access_flags
					return "", err
				}
				codeOff, err := cur.uleb()
				if err != nil {
					return "", err
				}
				if codeOff == 0 {
					continue
				}

				out += fmt.Sprintf("method %s:\n", resolverMethodSig(resolver, methodIdx))
				text, err := DisassembleCodeItem(dexData, codeOff, resolver)
				if err != nil {
					return "", err
				}
				out += text
			}
		}
	}
	return out, nil
}

func resolverMethodSig(resolver *Resolver, methodIdx uint32) string {
	if resolver == nil {
		return invalidIdx(methodIdx)
	}
	return resolver.MethodSignature(methodIdx)
}
