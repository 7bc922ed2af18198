// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vdex

import "testing"

func TestReadUint32(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	v, err := ReadUint32(buf, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x04030201 {
		t.Errorf("got 0x%x, want 0x04030201", v)
	}

	if _, err := ReadUint32(buf, 2); err == nil {
		t.Errorf("expected out-of-bounds error, got nil")
	}
}

func TestReadUint16(t *testing.T) {
	buf := []byte{0xef, 0xbe}
	v, err := ReadUint16(buf, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0xbeef {
		t.Errorf("got 0x%x, want 0xbeef", v)
	}
}

func TestReadBytesAtOffsetOverflow(t *testing.T) {
	buf := make([]byte, 16)
	if _, err := ReadBytesAtOffset(buf, 0xfffffff0, 0x20); err == nil {
		t.Errorf("expected overflow to be rejected")
	}
}

func TestReadULEB128(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want uint32
		next uint32
	}{
		{"single byte", []byte{0x00}, 0, 1},
		{"single byte max", []byte{0x7f}, 0x7f, 1},
		{"two bytes", []byte{0x80, 0x01}, 0x80, 2},
		{"three bytes", []byte{0xe5, 0x8e, 0x26}, 624485, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, next, err := ReadULEB128(tt.buf, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want || next != tt.next {
				t.Errorf("got (%d, %d), want (%d, %d)", got, next, tt.want, tt.next)
			}
		})
	}
}

func TestReadSLEB128Negative(t *testing.T) {
	// -2 encodes as 0x7e in SLEB128.
	v, next, err := ReadSLEB128([]byte{0x7e}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != -2 || next != 1 {
		t.Errorf("got (%d, %d), want (-2, 1)", v, next)
	}
}
