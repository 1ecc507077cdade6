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

package dzformat

import "github.com/dzkit/godz/dzstruct"

// FileMagic is the 4-byte magic that opens every DZ container.
var FileMagic = []byte{0x32, 0x96, 0x18, 0x74}

// ChunkMagic is the 4-byte magic that opens every chunk header record.
var ChunkMagic = []byte{0x30, 0x12, 0x95, 0x78}

// FileHeaderSchema describes the 512-byte record at offset 0 of a DZ
// container. Field widths and order are load-bearing: they mirror
// libexec/dz.py's DZFile._dz_format_dict exactly.
var FileHeaderSchema = dzstruct.Schema{
	Name: "FileHeader",
	Size: 512,
	Fields: []dzstruct.Field{
		{Name: "header", Width: 4, Kind: dzstruct.KindBytes},
		{Name: "formatMajor", Width: 4, Kind: dzstruct.KindU32},
		{Name: "formatMinor", Width: 4, Kind: dzstruct.KindU32},
		{Name: "reserved0", Width: 4, Kind: dzstruct.KindU32},
		{Name: "device", Width: 32, Kind: dzstruct.KindString, Collapsible: true},
		{Name: "version", Width: 144, Kind: dzstruct.KindString, Collapsible: true},
		{Name: "chunkCount", Width: 4, Kind: dzstruct.KindU32},
		{Name: "md5", Width: 16, Kind: dzstruct.KindBytes},
		{Name: "unknown0", Width: 4, Kind: dzstruct.KindU32},
		{Name: "reserved1", Width: 4, Kind: dzstruct.KindU32},
		{Name: "unknown1", Width: 20, Kind: dzstruct.KindBytes},
		{Name: "unknown2", Width: 48, Kind: dzstruct.KindBytes},
		{Name: "buildType", Width: 20, Kind: dzstruct.KindString, Collapsible: true},
		{Name: "unknown3", Width: 8, Kind: dzstruct.KindBytes},
		{Name: "reserved2", Width: 4, Kind: dzstruct.KindU32},
		{Name: "reserved3", Width: 2, Kind: dzstruct.KindU16},
		{Name: "oldDateCode", Width: 10, Kind: dzstruct.KindString, Collapsible: true},
		{Name: "pad", Width: 180, Kind: dzstruct.KindBytes, Collapsible: true},
	},
}

// ChunkSchemaReserved is the original chunk header layout, where the
// field following WipeCount is an unused reserved u32. Older DZ images use
// this variant.
var ChunkSchemaReserved = dzstruct.Schema{
	Name: "ChunkHeader(reserved)",
	Size: 512,
	Fields: []dzstruct.Field{
		{Name: "header", Width: 4, Kind: dzstruct.KindBytes},
		{Name: "sliceName", Width: 32, Kind: dzstruct.KindString, Collapsible: true},
		{Name: "chunkName", Width: 64, Kind: dzstruct.KindString, Collapsible: true},
		{Name: "targetSize", Width: 4, Kind: dzstruct.KindU32},
		{Name: "dataSize", Width: 4, Kind: dzstruct.KindU32},
		{Name: "md5", Width: 16, Kind: dzstruct.KindBytes},
		{Name: "targetAddr", Width: 4, Kind: dzstruct.KindU32},
		{Name: "wipeCount", Width: 4, Kind: dzstruct.KindU32},
		{Name: "reserved", Width: 4, Kind: dzstruct.KindU32},
		{Name: "crc32", Width: 4, Kind: dzstruct.KindU32},
		{Name: "pad", Width: 372, Kind: dzstruct.KindBytes, Collapsible: true},
	},
}

// ChunkSchemaDev is the later chunk header layout, where the field
// following WipeCount instead carries a u32 device index ("dev"). This
// variant is what lets the Encoder order and overlap-check chunks per dev,
// and the Decoder group chunks into slices by (sliceName, dev) rather than
// by sliceName alone.
var ChunkSchemaDev = dzstruct.Schema{
	Name: "ChunkHeader(dev)",
	Size: 512,
	Fields: []dzstruct.Field{
		{Name: "header", Width: 4, Kind: dzstruct.KindBytes},
		{Name: "sliceName", Width: 32, Kind: dzstruct.KindString, Collapsible: true},
		{Name: "chunkName", Width: 64, Kind: dzstruct.KindString, Collapsible: true},
		{Name: "targetSize", Width: 4, Kind: dzstruct.KindU32},
		{Name: "dataSize", Width: 4, Kind: dzstruct.KindU32},
		{Name: "md5", Width: 16, Kind: dzstruct.KindBytes},
		{Name: "targetAddr", Width: 4, Kind: dzstruct.KindU32},
		{Name: "wipeCount", Width: 4, Kind: dzstruct.KindU32},
		{Name: "dev", Width: 4, Kind: dzstruct.KindU32},
		{Name: "crc32", Width: 4, Kind: dzstruct.KindU32},
		{Name: "pad", Width: 372, Kind: dzstruct.KindBytes, Collapsible: true},
	},
}

// ChunkVariant identifies which of the two ChunkHeader schema variants a
// container uses. The variant is fixed for the whole container: the caller
// supplies it once (a CLI flag or the "variant" params key) and it is
// applied uniformly to every chunk header; it is not detected from the data.
type ChunkVariant int

const (
	// VariantReserved is the original chunk header layout (reserved u32).
	VariantReserved ChunkVariant = iota
	// VariantDev is the later chunk header layout (dev index u32).
	VariantDev
)

// SchemaFor returns the ChunkHeader schema for the given variant.
func (v ChunkVariant) SchemaFor() dzstruct.Schema {
	if v == VariantDev {
		return ChunkSchemaDev
	}
	return ChunkSchemaReserved
}

// FileHeader is the decoded form of the container's lead record.
type FileHeader struct {
	FormatMajor uint32
	FormatMinor uint32
	Device      string
	Version     string
	ChunkCount  uint32
	MD5         [16]byte
	Unknown0    uint32
	Unknown1    []byte // 20 bytes, opaque, preserved verbatim
	Unknown2    []byte // 48 bytes, opaque, preserved verbatim
	BuildType   string
	Unknown3    []byte // 8 bytes, opaque, preserved verbatim
	OldDateCode string
}

// Schema returns FileHeaderSchema -- a method so callers working generically
// across record types don't need a type switch.
func (h FileHeader) Schema() dzstruct.Schema { return FileHeaderSchema }

// ToMap renders h into the field-name-keyed map FileHeaderSchema.Encode
// expects. Reserved fields are always written as zero.
func (h FileHeader) ToMap() map[string]any {
	md5 := make([]byte, 16)
	copy(md5, h.MD5[:])
	return map[string]any{
		"header":      FileMagic,
		"formatMajor": h.FormatMajor,
		"formatMinor": h.FormatMinor,
		"reserved0":   uint32(0),
		"device":      h.Device,
		"version":     h.Version,
		"chunkCount":  h.ChunkCount,
		"md5":         md5,
		"unknown0":    h.Unknown0,
		"reserved1":   uint32(0),
		"unknown1":    orZero(h.Unknown1, 20),
		"unknown2":    orZero(h.Unknown2, 48),
		"buildType":   h.BuildType,
		"unknown3":    orZero(h.Unknown3, 8),
		"reserved2":   uint32(0),
		"reserved3":   uint16(0),
		"oldDateCode": h.OldDateCode,
		"pad":         make([]byte, 180),
	}
}

// FileHeaderFromMap builds a FileHeader from a map decoded via
// FileHeaderSchema. It does not validate the magic field -- callers are
// expected to have already checked dzstruct.Decode's returned error.
func FileHeaderFromMap(m map[string]any) FileHeader {
	h := FileHeader{
		FormatMajor: m["formatMajor"].(uint32),
		FormatMinor: m["formatMinor"].(uint32),
		Device:      m["device"].(string),
		Version:     m["version"].(string),
		ChunkCount:  m["chunkCount"].(uint32),
		Unknown0:    m["unknown0"].(uint32),
		Unknown1:    m["unknown1"].([]byte),
		Unknown2:    m["unknown2"].([]byte),
		BuildType:   m["buildType"].(string),
		Unknown3:    m["unknown3"].([]byte),
		OldDateCode: m["oldDateCode"].(string),
	}
	copy(h.MD5[:], m["md5"].([]byte))
	return h
}

// ChunkHeader is the decoded form of one chunk's 512-byte header record.
// Dev holds the dev field in the dev variant and is zero after decoding a
// reserved-variant header; the reserved field itself is not kept and is
// always encoded as zero.
type ChunkHeader struct {
	Variant    ChunkVariant
	SliceName  string
	ChunkName  string
	TargetSize uint32
	DataSize   uint32
	MD5        [16]byte
	TargetAddr uint32
	WipeCount  uint32
	Dev        uint32 // meaningful only when Variant == VariantDev
	CRC32      uint32
}

// Schema returns the ChunkHeader schema matching c.Variant.
func (c ChunkHeader) Schema() dzstruct.Schema { return c.Variant.SchemaFor() }

// ToMap renders c into the field-name-keyed map the chunk header schema
// expects.
func (c ChunkHeader) ToMap() map[string]any {
	md5 := make([]byte, 16)
	copy(md5, c.MD5[:])
	m := map[string]any{
		"header":     ChunkMagic,
		"sliceName":  c.SliceName,
		"chunkName":  c.ChunkName,
		"targetSize": c.TargetSize,
		"dataSize":   c.DataSize,
		"md5":        md5,
		"targetAddr": c.TargetAddr,
		"wipeCount":  c.WipeCount,
		"crc32":      c.CRC32,
		"pad":        make([]byte, 372),
	}
	if c.Variant == VariantDev {
		m["dev"] = c.Dev
	} else {
		m["reserved"] = uint32(0)
	}
	return m
}

// ChunkHeaderFromMap builds a ChunkHeader from a map decoded via the schema
// for the given variant.
func ChunkHeaderFromMap(variant ChunkVariant, m map[string]any) ChunkHeader {
	c := ChunkHeader{
		Variant:    variant,
		SliceName:  m["sliceName"].(string),
		ChunkName:  m["chunkName"].(string),
		TargetSize: m["targetSize"].(uint32),
		DataSize:   m["dataSize"].(uint32),
		TargetAddr: m["targetAddr"].(uint32),
		WipeCount:  m["wipeCount"].(uint32),
		CRC32:      m["crc32"].(uint32),
	}
	copy(c.MD5[:], m["md5"].([]byte))
	if variant == VariantDev {
		c.Dev = m["dev"].(uint32)
	}
	return c
}

func orZero(b []byte, n int) []byte {
	if b == nil {
		return make([]byte, n)
	}
	return b
}
