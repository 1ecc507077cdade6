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

// Package encoder reassembles a DZ container from a directory of ".chunk"
// files and a saved ".dz.params" file, the inverse of what decoder.Decoder
// took apart.
package encoder

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/dzkit/godz/dzformat"
	"github.com/dzkit/godz/dzstruct"
)

// loadRawParams reads a "key=value" params file into a map of int64 or
// string values (integers are parsed when they fully parse, else the
// trimmed string is kept), then applies the field-name transformations the
// reference tool performs before matching keys against the schema:
// snake_case keys become camelCase, and two legacy key names are aliased.
func loadRawParams(fs afero.Fs, path string) (map[string]any, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("encoder: open %s: %w", path, err)
	}
	defer f.Close()

	raw := make(map[string]any)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("encoder: %s: malformed line %q", path, line)
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			raw[k] = n
		} else {
			raw[k] = v
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("encoder: read %s: %w", path, err)
	}

	for _, alias := range [...][2]string{
		{"android_version", "androidVer"},
		{"factoryversion", "version"},
	} {
		if v, ok := raw[alias[0]]; ok {
			raw[alias[1]] = v
			delete(raw, alias[0])
		}
	}

	return camelCaseKeys(raw), nil
}

// camelCaseKeys converts every snake_case key to camelCase (e.g.
// "build_type" -> "buildType"), matching the DZRecord schema's field names.
func camelCaseKeys(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[toCamelCase(k)] = v
	}
	return out
}

func toCamelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}

// LoadContainerParams reads a ".dz.params" file into a dzformat.FileHeader.
// ChunkCount and MD5 are left zero: those are derived from the chunk set
// once it's loaded and sorted, not carried in the params file. The
// returned blockShift and variant are not FileHeader fields but govern how
// the chunk set is interpreted (target-size/wipe-count checks, and which
// ChunkHeader schema the ".chunk" files use).
func LoadContainerParams(fs afero.Fs, path string) (dzformat.FileHeader, uint8, dzformat.ChunkVariant, error) {
	raw, err := loadRawParams(fs, path)
	if err != nil {
		return dzformat.FileHeader{}, 0, dzformat.VariantReserved, err
	}

	for _, field := range dzformat.FileHeaderSchema.Fields {
		if skipParamField(field.Name) {
			continue
		}
		if _, ok := raw[field.Name]; !ok {
			return dzformat.FileHeader{}, 0, dzformat.VariantReserved, fmt.Errorf("encoder: %s: missing required parameter %q", path, field.Name)
		}
	}
	blockShiftRaw, ok := raw["blockShift"]
	if !ok {
		return dzformat.FileHeader{}, 0, dzformat.VariantReserved, fmt.Errorf("encoder: %s: missing required parameter %q", path, "blockShift")
	}
	blockShift, err := toUint(blockShiftRaw)
	if err != nil {
		return dzformat.FileHeader{}, 0, dzformat.VariantReserved, fmt.Errorf("encoder: %s: blockShift: %w", path, err)
	}

	variant := dzformat.VariantReserved
	if v, ok := raw["variant"]; ok && fmt.Sprint(v) == "dev" {
		variant = dzformat.VariantDev
	}

	m := map[string]any{"chunkCount": uint32(0), "md5": make([]byte, 16)}
	for _, field := range dzformat.FileHeaderSchema.Fields {
		if skipParamField(field.Name) {
			continue
		}
		v := raw[field.Name]
		switch field.Kind {
		case dzstruct.KindU32:
			n, err := toUint(v)
			if err != nil {
				return dzformat.FileHeader{}, 0, dzformat.VariantReserved, fmt.Errorf("encoder: %s: %s: %w", path, field.Name, err)
			}
			m[field.Name] = uint32(n)
		case dzstruct.KindU16:
			n, err := toUint(v)
			if err != nil {
				return dzformat.FileHeader{}, 0, dzformat.VariantReserved, fmt.Errorf("encoder: %s: %s: %w", path, field.Name, err)
			}
			m[field.Name] = uint16(n)
		case dzstruct.KindString:
			m[field.Name] = fmt.Sprint(v)
		case dzstruct.KindBytes:
			b, err := toBytesField(field.Name, v)
			if err != nil {
				return dzformat.FileHeader{}, 0, dzformat.VariantReserved, fmt.Errorf("encoder: %s: %s: %w", path, field.Name, err)
			}
			m[field.Name] = b
		}
	}

	return dzformat.FileHeaderFromMap(m), uint8(blockShift), variant, nil
}

func skipParamField(name string) bool {
	switch name {
	case "header", "pad", "chunkCount", "md5":
		return true
	}
	return strings.HasPrefix(name, "reserved")
}

func toUint(v any) (uint64, error) {
	switch n := v.(type) {
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	case string:
		return strconv.ParseUint(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
}

// toBytesField renders a raw param value as the opaque byte field the
// schema expects: unknown1 and unknown3 are hex-encoded text in the params
// file (the reference tool's convention for genuinely binary fields), every
// other byte field (unknown2) is plain text, UTF-8 encoded verbatim.
func toBytesField(name string, v any) ([]byte, error) {
	s := fmt.Sprint(v)
	if name == "unknown1" || name == "unknown3" {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("decoding hex: %w", err)
		}
		return b, nil
	}
	return []byte(s), nil
}
