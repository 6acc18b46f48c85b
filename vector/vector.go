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

// Package vector implements the columnar batch types of spec.md §4.5
// (C8): a ValueVector is a typed column of fixed capacity with a
// parallel validity bitmap, and a DataChunk bundles N ValueVectors
// with one SelectionVector encoding the logically active rows.
package vector

import "github.com/vertexdb/lpg/engine"

// ValueVector is a typed column of capacity slots. Exactly one of the
// typed backing slices is populated, chosen by Kind; validity[i]==false
// means the slot is null regardless of what garbage sits in the typed
// slice at i.
type ValueVector struct {
	kind     engine.Kind
	capacity int
	valid    []bool
	ints     []int64
	floats   []float64
	bools    []bool
	strs     []string
	bytes    [][]byte
	lists    []engine.Value // KList/KMap store the whole Value per slot
}

// NewValueVector allocates a vector of the given kind and capacity,
// with every slot initially null.
func NewValueVector(kind engine.Kind, capacity int) *ValueVector {
	v := &ValueVector{kind: kind, capacity: capacity, valid: make([]bool, capacity)}
	switch kind {
	case engine.KInt64:
		v.ints = make([]int64, capacity)
	case engine.KFloat64:
		v.floats = make([]float64, capacity)
	case engine.KBool:
		v.bools = make([]bool, capacity)
	case engine.KString:
		v.strs = make([]string, capacity)
	case engine.KBytes:
		v.bytes = make([][]byte, capacity)
	default:
		v.lists = make([]engine.Value, capacity)
	}
	return v
}

func (v *ValueVector) Kind() engine.Kind { return v.kind }
func (v *ValueVector) Capacity() int     { return v.capacity }
func (v *ValueVector) Valid(i int) bool  { return v.valid[i] }

// Set stores val at slot i, updating validity. A Null val clears
// validity without touching the typed slice's stale contents (readers
// must always check Valid before trusting a typed slot).
func (v *ValueVector) Set(i int, val engine.Value) {
	if val.IsNull() {
		v.valid[i] = false
		return
	}
	v.valid[i] = true
	switch v.kind {
	case engine.KInt64:
		n, _ := val.AsInt64()
		v.ints[i] = n
	case engine.KFloat64:
		f, _ := val.AsFloat64()
		v.floats[i] = f
	case engine.KBool:
		b, _ := val.AsBool()
		v.bools[i] = b
	case engine.KString:
		s, _ := val.AsString()
		v.strs[i] = s
	case engine.KBytes:
		b, _ := val.AsBytes()
		v.bytes[i] = b
	default:
		v.lists[i] = val
	}
}

// Get reconstructs the Value at slot i, or Null if the slot is
// invalid.
func (v *ValueVector) Get(i int) engine.Value {
	if !v.valid[i] {
		return engine.Null()
	}
	switch v.kind {
	case engine.KInt64:
		return engine.Int64(v.ints[i])
	case engine.KFloat64:
		return engine.Float64(v.floats[i])
	case engine.KBool:
		return engine.Bool(v.bools[i])
	case engine.KString:
		return engine.String(v.strs[i])
	case engine.KBytes:
		return engine.Bytes(v.bytes[i])
	default:
		return v.lists[i]
	}
}

// Slice selects to a freshly allocated vector containing only the
// rows named by idx, used by Project when it must materialize rather
// than alias (spec.md §4.5).
func (v *ValueVector) Slice(idx []int32) *ValueVector {
	out := NewValueVector(v.kind, len(idx))
	for dst, src := range idx {
		out.Set(dst, v.Get(int(src)))
	}
	return out
}
