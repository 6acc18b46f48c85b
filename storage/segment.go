// Copyright (C) 2024 VertexDB, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/s2"
	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/wire"
)

// SegmentRecord is one encoded entity written to a persisted segment
// file under path/segments/* (spec.md §6).
type SegmentRecord struct {
	NodeID   uint64 // 0 if this record is an edge
	EdgeID   uint64
	Labels   []string
	EdgeType string
	Src, Dst uint64
	Props    map[string]engine.Value
}

// WriteSegment serializes records into a single compressed segment
// file named with a fresh uuid under dir, returning the file's path.
// Compression uses klauspost/compress's s2 codec, the same library the
// teacher's compr package wraps for its blob/segment writers.
func WriteSegment(dir string, st *wire.Symtab, records []SegmentRecord) (string, error) {
	var buf wire.Buffer
	buf.BeginList(len(records))
	for _, r := range records {
		encodeRecord(&buf, st, r)
	}
	buf.EndList()

	compressed := s2.Encode(nil, buf.Bytes())

	name := uuid.NewString() + ".seg"
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: creating segment dir: %w", err)
	}
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return "", fmt.Errorf("storage: writing segment %s: %w", path, err)
	}
	return path, nil
}

func encodeRecord(buf *wire.Buffer, st *wire.Symtab, r SegmentRecord) {
	buf.BeginStruct(-1)
	if r.NodeID != 0 {
		buf.BeginField(st.Intern("node_id"))
		buf.WriteUint(r.NodeID)
		buf.BeginField(st.Intern("labels"))
		buf.BeginList(len(r.Labels))
		for _, l := range r.Labels {
			buf.WriteString(l)
		}
		buf.EndList()
	} else {
		buf.BeginField(st.Intern("edge_id"))
		buf.WriteUint(r.EdgeID)
		buf.BeginField(st.Intern("edge_type"))
		buf.WriteString(r.EdgeType)
		buf.BeginField(st.Intern("src"))
		buf.WriteUint(r.Src)
		buf.BeginField(st.Intern("dst"))
		buf.WriteUint(r.Dst)
	}
	buf.BeginField(st.Intern("props"))
	buf.BeginStruct(len(r.Props))
	for k, v := range r.Props {
		buf.BeginField(st.Intern(k))
		encodeValue(buf, v)
	}
	buf.EndStruct()
	buf.EndStruct()
}

func encodeValue(buf *wire.Buffer, v engine.Value) {
	switch v.Kind() {
	case engine.KNull:
		buf.WriteNull()
	case engine.KBool:
		b, _ := v.AsBool()
		buf.WriteBool(b)
	case engine.KInt64:
		i, _ := v.AsInt64()
		buf.WriteInt(i)
	case engine.KFloat64:
		f, _ := v.AsFloat64()
		buf.WriteFloat64(f)
	case engine.KString:
		s, _ := v.AsString()
		buf.WriteString(s)
	case engine.KBytes:
		b, _ := v.AsBytes()
		buf.WriteBlob(b)
	default:
		// Lists/maps inside a property value are rare in practice;
		// fall back to their string form rather than failing the
		// whole segment write.
		buf.WriteString(v.String_())
	}
}

// ReadSegment decompresses and decodes a segment file written by
// WriteSegment.
func ReadSegment(path string, st *wire.Symtab) ([]SegmentRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: reading segment %s: %w", path, err)
	}
	decoded, err := s2.Decode(nil, raw)
	if err != nil {
		return nil, fmt.Errorf("storage: decompressing segment %s: %w", path, err)
	}
	d, err := wire.Decode(decoded, st)
	if err != nil {
		return nil, fmt.Errorf("storage: decoding segment %s: %w", path, err)
	}
	items, _ := d.Items()
	out := make([]SegmentRecord, 0, len(items))
	for _, item := range items {
		r, err := decodeRecord(item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeRecord(d wire.Datum) (SegmentRecord, error) {
	var r SegmentRecord
	r.Props = make(map[string]engine.Value)
	err := d.UnpackStruct(func(f wire.Field) error {
		switch f.Label {
		case "node_id":
			v, _ := f.Datum.Int()
			r.NodeID = uint64(v)
		case "edge_id":
			v, _ := f.Datum.Int()
			r.EdgeID = uint64(v)
		case "edge_type":
			r.EdgeType, _ = f.Datum.String()
		case "src":
			v, _ := f.Datum.Int()
			r.Src = uint64(v)
		case "dst":
			v, _ := f.Datum.Int()
			r.Dst = uint64(v)
		case "labels":
			items, _ := f.Datum.Items()
			for _, it := range items {
				s, _ := it.String()
				r.Labels = append(r.Labels, s)
			}
		case "props":
			return f.Datum.UnpackStruct(func(pf wire.Field) error {
				r.Props[pf.Label] = decodeValue(pf.Datum)
				return nil
			})
		}
		return nil
	})
	return r, err
}

func decodeValue(d wire.Datum) engine.Value {
	switch d.Kind() {
	case wire.KNull:
		return engine.Null()
	case wire.KBool:
		b, _ := d.Bool()
		return engine.Bool(b)
	case wire.KInt:
		i, _ := d.Int()
		return engine.Int64(i)
	case wire.KFloat:
		f, _ := d.Float()
		return engine.Float64(f)
	case wire.KString:
		s, _ := d.String()
		return engine.String(s)
	case wire.KBytes:
		b, _ := d.Bytes()
		return engine.Bytes(b)
	default:
		return engine.Null()
	}
}
