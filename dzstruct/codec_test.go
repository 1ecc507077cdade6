// Copyright (c) 2026 The godz Authors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of godz.
//
// godz is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// godz is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with godz.  If not, see <https://www.gnu.org/licenses/>.

package dzstruct

import (
	"errors"
	"testing"
)

var testSchema = Schema{
	Name: "test",
	Size: 16,
	Fields: []Field{
		{Name: "header", Width: 4, Kind: KindBytes, Collapsible: false},
		{Name: "name", Width: 6, Kind: KindString, Collapsible: true},
		{Name: "count", Width: 2, Kind: KindU16},
		{Name: "size", Width: 4, Kind: KindU32},
	},
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	magic := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	values := map[string]any{
		"header": magic,
		"name":   "hi",
		"count":  uint16(7),
		"size":   uint32(1024),
	}

	buf, err := Encode(testSchema, values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(buf) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(buf))
	}

	out, err := Decode(testSchema, buf, magic)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["name"].(string) != "hi" {
		t.Errorf("name = %q, want %q", out["name"], "hi")
	}
	if out["count"].(uint16) != 7 {
		t.Errorf("count = %v, want 7", out["count"])
	}
	if out["size"].(uint32) != 1024 {
		t.Errorf("size = %v, want 1024", out["size"])
	}
}

func TestDecodeMagicMismatch(t *testing.T) {
	values := map[string]any{
		"header": []byte{1, 2, 3, 4},
		"name":   "x",
		"count":  uint16(1),
		"size":   uint32(1),
	}
	buf, err := Encode(testSchema, values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, err = Decode(testSchema, buf, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	if !errors.Is(err, ErrMagicMismatch) {
		t.Fatalf("expected ErrMagicMismatch, got %v", err)
	}
}

func TestEncodeMissingNumericField(t *testing.T) {
	values := map[string]any{
		"header": []byte{1, 2, 3, 4},
		"name":   "x",
		"size":   uint32(1),
	}
	_, err := Encode(testSchema, values)
	if !errors.Is(err, ErrFieldMissing) {
		t.Fatalf("expected ErrFieldMissing, got %v", err)
	}
}

func TestEncodeMissingStringDefaultsZero(t *testing.T) {
	values := map[string]any{
		"header": []byte{1, 2, 3, 4},
		"count":  uint16(1),
		"size":   uint32(1),
	}
	buf, err := Encode(testSchema, values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(testSchema, buf, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["name"].(string) != "" {
		t.Errorf("expected empty name, got %q", out["name"])
	}
}

func TestValidateSchemaSizeMismatch(t *testing.T) {
	bad := Schema{
		Name: "bad",
		Size: 10,
		Fields: []Field{
			{Name: "a", Width: 4, Kind: KindBytes},
		},
	}
	if err := Validate(bad); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestCollapsibleExtraneousData(t *testing.T) {
	// Manually construct a buffer where the collapsible field has a NUL
	// followed by non-NUL bytes -- this must be rejected.
	buf := make([]byte, 16)
	copy(buf[0:4], []byte{1, 2, 3, 4})
	copy(buf[4:10], []byte{'h', 'i', 0, 'X', 0, 0})

	_, err := Decode(testSchema, buf, []byte{1, 2, 3, 4})
	if !errors.Is(err, ErrCollapsedData) {
		t.Fatalf("expected ErrCollapsedData, got %v", err)
	}
}
