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

// Package engine defines the scalar value model, entity identifiers,
// and interned dictionary keys shared by every other package in the
// property-graph core.
package engine

import (
	"fmt"
	"math"
)

// Kind tags the dynamic type carried by a Value.
type Kind uint8

const (
	KNull Kind = iota
	KBool
	KInt64
	KFloat64
	KString
	KBytes
	KList
	KMap
)

func (k Kind) String() string {
	switch k {
	case KNull:
		return "null"
	case KBool:
		return "bool"
	case KInt64:
		return "int64"
	case KFloat64:
		return "float64"
	case KString:
		return "string"
	case KBytes:
		return "bytes"
	case KList:
		return "list"
	case KMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a tagged scalar as described in spec.md §3. The zero Value
// is Null. Values are immutable once constructed; List and Map share
// their backing slice/map and must be cloned before in-place mutation.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	by    []byte
	list  []Value
	mkeys []string
	mvals []Value
}

func Null() Value               { return Value{kind: KNull} }
func Bool(b bool) Value         { return Value{kind: KBool, b: b} }
func Int64(i int64) Value       { return Value{kind: KInt64, i: i} }
func Float64(f float64) Value   { return Value{kind: KFloat64, f: f} }
func String(s string) Value     { return Value{kind: KString, s: s} }
func Bytes(b []byte) Value      { return Value{kind: KBytes, by: b} }
func List(vs []Value) Value     { return Value{kind: KList, list: vs} }

// Map builds a Value from parallel key/value slices. The slices are
// retained, not copied.
func Map(keys []string, vals []Value) Value {
	return Value{kind: KMap, mkeys: keys, mvals: vals}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KBool }
func (v Value) AsInt64() (int64, bool)     { return v.i, v.kind == KInt64 }
func (v Value) AsFloat64() (float64, bool) { return v.f, v.kind == KFloat64 }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KString }
func (v Value) AsBytes() ([]byte, bool)    { return v.by, v.kind == KBytes }
func (v Value) AsList() ([]Value, bool)    { return v.list, v.kind == KList }

// AsMap returns the parallel key/value slices backing a KMap value.
func (v Value) AsMap() ([]string, []Value, bool) {
	return v.mkeys, v.mvals, v.kind == KMap
}

// Float widens Int64 and Float64 to a float64, the only implicit
// numeric widening the data model allows (spec.md §3, §4.6).
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KInt64:
		return float64(v.i), true
	case KFloat64:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) String_() string {
	switch v.kind {
	case KNull:
		return "null"
	case KBool:
		return fmt.Sprintf("%v", v.b)
	case KInt64:
		return fmt.Sprintf("%d", v.i)
	case KFloat64:
		return fmt.Sprintf("%g", v.f)
	case KString:
		return v.s
	case KBytes:
		return fmt.Sprintf("%x", v.by)
	case KList:
		return fmt.Sprintf("%v", v.list)
	case KMap:
		return fmt.Sprintf("%v=%v", v.mkeys, v.mvals)
	default:
		return "?"
	}
}

// Ordering is the result of comparing two Values.
type Ordering int

const (
	Less Ordering = -1 - iota
	Equal
	Greater
	Incomparable
)

// Compare implements the partial order from spec.md §3: same-kind
// values compare natively, Int64<->Float64 widen to float64, and any
// other cross-kind pairing is Incomparable. Null never participates
// in an ordering comparison: comparing anything against Null, or Null
// against itself, is Incomparable (three-valued logic surfaces this
// to operators as "unknown", not "equal").
func Compare(a, b Value) Ordering {
	if a.kind == KNull || b.kind == KNull {
		return Incomparable
	}
	if (a.kind == KInt64 || a.kind == KFloat64) && (b.kind == KInt64 || b.kind == KFloat64) {
		af, _ := a.Float()
		bf, _ := b.Float()
		return compareFloat(af, bf)
	}
	if a.kind != b.kind {
		return Incomparable
	}
	switch a.kind {
	case KBool:
		if a.b == b.b {
			return Equal
		} else if !a.b {
			return Less
		}
		return Greater
	case KString:
		switch {
		case a.s < b.s:
			return Less
		case a.s > b.s:
			return Greater
		default:
			return Equal
		}
	case KBytes:
		n := len(a.by)
		if len(b.by) < n {
			n = len(b.by)
		}
		for i := 0; i < n; i++ {
			if a.by[i] != b.by[i] {
				if a.by[i] < b.by[i] {
					return Less
				}
				return Greater
			}
		}
		switch {
		case len(a.by) < len(b.by):
			return Less
		case len(a.by) > len(b.by):
			return Greater
		default:
			return Equal
		}
	default:
		return Incomparable
	}
}

func compareFloat(a, b float64) Ordering {
	if math.IsNaN(a) || math.IsNaN(b) {
		return Incomparable
	}
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

// Equals reports whether a and b compare Equal. Null is never equal
// to anything, including another Null, matching SQL-style
// three-valued comparison semantics (spec.md §3).
func Equals(a, b Value) bool {
	return Compare(a, b) == Equal
}
