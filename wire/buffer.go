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

// Package wire is the tagged, self-describing binary encoding used to
// persist a LogicalPlan (spec.md §4.7) and to frame WAL records
// (spec.md §6). Its Buffer/Symtab/Datum split mirrors the teacher's
// ion package (ion.Buffer for writing, ion.Symtab for string
// interning, ion.Datum for a self-contained decoded value with
// v.UnpackStruct(func(ion.Field) error) iteration) without
// implementing the Ion binary spec itself: the plan IR and WAL only
// need a compact tagged tree, not interop with the wider Ion
// ecosystem.
package wire

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/vertexdb/lpg/engine"
)

type tag byte

const (
	tagNull tag = iota
	tagBool
	tagInt
	tagFloat
	tagString
	tagBytes
	tagStructBegin
	tagStructEnd
	tagListBegin
	tagListEnd
	tagField
)

// Symtab interns field/string labels the same way engine.Dict interns
// property keys: Buffer.BeginField writes a symbol id, and the
// Symtab is shipped alongside the encoded bytes so a reader can
// resolve ids back to strings, exactly as ion.Symtab accompanies an
// ion.Buffer's payload.
type Symtab = engine.Dict

// Buffer accumulates an encoded byte stream, mirroring ion.Buffer's
// Begin/End-paired method set.
type Buffer struct {
	buf []byte
}

// Bytes returns the buffer's contents so far.
func (b *Buffer) Bytes() []byte { return b.buf }

// Reset empties the buffer for reuse.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }

// WriteTo writes the buffer's contents to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.buf)
	return int64(n), err
}

func (b *Buffer) putTag(t tag) { b.buf = append(b.buf, byte(t)) }

func (b *Buffer) putUvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	b.buf = append(b.buf, tmp[:n]...)
}

// BeginStruct opens a struct; hint is ignored (kept for API parity
// with ion.Buffer.BeginStruct, which uses it to presize).
func (b *Buffer) BeginStruct(hint int) { b.putTag(tagStructBegin) }

// EndStruct closes the innermost open struct.
func (b *Buffer) EndStruct() { b.putTag(tagStructEnd) }

// BeginList opens a list.
func (b *Buffer) BeginList(hint int) { b.putTag(tagListBegin) }

// EndList closes the innermost open list.
func (b *Buffer) EndList() { b.putTag(tagListEnd) }

// BeginField writes a struct field's interned label; the value write
// (WriteString, BeginStruct, ...) follows immediately.
func (b *Buffer) BeginField(sym engine.Symbol) {
	b.putTag(tagField)
	b.putUvarint(uint64(sym))
}

func (b *Buffer) WriteNull() { b.putTag(tagNull) }

func (b *Buffer) WriteBool(v bool) {
	b.putTag(tagBool)
	if v {
		b.buf = append(b.buf, 1)
	} else {
		b.buf = append(b.buf, 0)
	}
}

func (b *Buffer) WriteInt(i int64) {
	b.putTag(tagInt)
	b.putUvarint(zigzag(i))
}

func (b *Buffer) WriteUint(u uint64) {
	b.putTag(tagInt)
	b.putUvarint(zigzag(int64(u)))
}

func (b *Buffer) WriteFloat64(f float64) {
	b.putTag(tagFloat)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(f))
	b.buf = append(b.buf, tmp[:]...)
}

func (b *Buffer) WriteString(s string) {
	b.putTag(tagString)
	b.putUvarint(uint64(len(s)))
	b.buf = append(b.buf, s...)
}

func (b *Buffer) WriteBlob(p []byte) {
	b.putTag(tagBytes)
	b.putUvarint(uint64(len(p)))
	b.buf = append(b.buf, p...)
}

func zigzag(i int64) uint64 {
	return uint64((i << 1) ^ (i >> 63))
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
