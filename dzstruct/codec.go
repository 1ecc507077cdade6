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

// Package dzstruct implements a reusable fixed-layout, little-endian record
// codec ("StructCodec"). A schema is an ordered list of fields, each with a
// declared byte width; encode/decode walk the schema in order, and
// "collapsible" bytes/string fields have trailing NULs trimmed on decode and
// NUL-padded back out on encode.
package dzstruct

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMagicMismatch is returned by Decode when the schema's designated magic
// field does not match its expected value. Callers may treat this as
// non-fatal (e.g. "not a DZ sub-record") rather than a hard parse error.
var ErrMagicMismatch = errors.New("dzstruct: magic mismatch")

// ErrFieldMissing is returned by Encode when a required numeric field is
// absent from the input map.
var ErrFieldMissing = errors.New("dzstruct: required field missing")

// ErrCollapsedData is returned by Decode when a collapsible field contains a
// non-NUL byte after the first NUL (meaning the field does not round-trip).
var ErrCollapsedData = errors.New("dzstruct: NUL found before extraneous data in collapsible field")

// FieldKind identifies how a field's bytes are interpreted.
type FieldKind int

// Field kinds supported by the codec.
const (
	KindU16 FieldKind = iota
	KindU32
	KindBytes
	KindString
)

// Field describes one record member: its name, on-wire width, and kind.
// Collapsible only applies to KindBytes/KindString fields: on Decode,
// trailing NULs are stripped; on Encode, the value is right-padded with NUL
// back out to Width.
type Field struct {
	Name        string
	Width       int
	Kind        FieldKind
	Collapsible bool
}

// Schema is an ordered sequence of fields making up one fixed-length record.
// Size is the schema's declared total width in bytes (typically 512 for DZ
// records); Validate checks the fields actually sum to it.
type Schema struct {
	Name   string
	Size   int
	Fields []Field
}

// MagicField returns the schema's designated magic field -- by convention,
// the first field -- or ok=false if the schema has no fields.
func (s Schema) MagicField() (Field, bool) {
	if len(s.Fields) == 0 {
		return Field{}, false
	}
	return s.Fields[0], true
}

// Validate checks that the schema's field widths sum to its declared Size.
func Validate(schema Schema) error {
	sum := 0
	for _, f := range schema.Fields {
		sum += f.Width
	}
	if sum != schema.Size {
		return fmt.Errorf("dzstruct: schema %q: field widths sum to %d, declared size is %d",
			schema.Name, sum, schema.Size)
	}
	return nil
}

// Encode packs values (keyed by field name) into a schema.Size-byte buffer,
// fields in declared order, little-endian. Missing bytes/string fields
// default to a zero-filled field; missing numeric fields are an error.
// The magic field is encoded like any other bytes field: its value must be
// supplied in values, or it is written as zeros.
func Encode(schema Schema, values map[string]any) ([]byte, error) {
	if err := Validate(schema); err != nil {
		return nil, err
	}

	buf := make([]byte, schema.Size)
	off := 0
	for _, f := range schema.Fields {
		v, ok := values[f.Name]
		switch f.Kind {
		case KindU16:
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrFieldMissing, f.Name)
			}
			binary.LittleEndian.PutUint16(buf[off:off+f.Width], toUint16(v))
		case KindU32:
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrFieldMissing, f.Name)
			}
			binary.LittleEndian.PutUint32(buf[off:off+f.Width], toUint32(v))
		case KindBytes, KindString:
			b := valueBytes(v)
			if len(b) > f.Width {
				return nil, fmt.Errorf("dzstruct: field %q: value length %d exceeds width %d", f.Name, len(b), f.Width)
			}
			copy(buf[off:off+f.Width], b)
			// Remaining bytes are already zero from make([]byte, ...).
		}
		off += f.Width
	}

	return buf, nil
}

// Decode unpacks a schema.Size-byte buffer into a values map keyed by field
// name. Collapsible bytes/string fields have trailing NULs stripped; if a
// non-NUL byte follows the first NUL within such a field, ErrCollapsedData
// is returned. If the schema has a magic field and it does not match the
// expected bytes supplied via want, ErrMagicMismatch is returned (the rest
// of the map is still populated, since callers sometimes want it for
// diagnostics).
func Decode(schema Schema, buf []byte, want []byte) (map[string]any, error) {
	if err := Validate(schema); err != nil {
		return nil, err
	}
	if len(buf) != schema.Size {
		return nil, fmt.Errorf("dzstruct: schema %q: buffer length %d != declared size %d", schema.Name, len(buf), schema.Size)
	}

	values := make(map[string]any, len(schema.Fields))
	off := 0
	var magicMismatch bool
	for i, f := range schema.Fields {
		raw := buf[off : off+f.Width]
		switch f.Kind {
		case KindU16:
			values[f.Name] = binary.LittleEndian.Uint16(raw)
		case KindU32:
			values[f.Name] = binary.LittleEndian.Uint32(raw)
		case KindBytes, KindString:
			v := make([]byte, len(raw))
			copy(v, raw)
			if f.Collapsible {
				v = collapse(v)
				if err := checkNoExtraneous(v, raw); err != nil {
					return nil, fmt.Errorf("dzstruct: field %q: %w", f.Name, err)
				}
			}
			if f.Kind == KindString {
				values[f.Name] = string(v)
			} else {
				values[f.Name] = v
			}
			if i == 0 && want != nil {
				if !bytesEqual(raw, want) {
					magicMismatch = true
				}
			}
		}
		off += f.Width
	}

	if magicMismatch {
		return values, ErrMagicMismatch
	}
	return values, nil
}

// collapse returns b truncated at the first NUL byte.
func collapse(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

// checkNoExtraneous verifies that, after the first NUL in raw, every
// remaining byte is also NUL -- i.e. the field padding is well-formed.
func checkNoExtraneous(collapsed, raw []byte) error {
	for _, c := range raw[len(collapsed):] {
		if c != 0 {
			return ErrCollapsedData
		}
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func valueBytes(v any) []byte {
	switch x := v.(type) {
	case []byte:
		return x
	case string:
		return []byte(x)
	case nil:
		return nil
	default:
		return nil
	}
}

func toUint16(v any) uint16 {
	switch x := v.(type) {
	case uint16:
		return x
	case uint32:
		return uint16(x)
	case int:
		return uint16(x)
	default:
		return 0
	}
}

func toUint32(v any) uint32 {
	switch x := v.(type) {
	case uint32:
		return x
	case uint16:
		return uint32(x)
	case int:
		return uint32(x)
	case int64:
		return uint32(x)
	default:
		return 0
	}
}
