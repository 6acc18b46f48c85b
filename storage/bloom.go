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
	"encoding/binary"
	"math"

	"github.com/dchest/siphash"
	"github.com/vertexdb/lpg/engine"
)

// BloomFilter is the advisory companion to a ZoneMapEntry described in
// spec.md §4.4: where min..max doesn't prune well (high-cardinality
// columns), it accelerates might_contain_equal. A false positive
// forces the scan to proceed; a false negative is forbidden.
type BloomFilter struct {
	bits []uint64
	k    int
	seed uint64
}

const bloomKey0 = 0x1234567890abcdef
const bloomKey1 = 0xfedcba0987654321

// NewBloomFilter sizes a filter for roughly n expected elements at a
// ~1% false-positive rate, using siphash (the same keyed hash the
// teacher's vm.bchashvaluego bytecode op uses for partitioning) as the
// underlying hash primitive, with k derived hashes from one siphash
// invocation via double hashing (Kirsch-Mitzenmacher).
func NewBloomFilter(n int) *BloomFilter {
	if n < 64 {
		n = 64
	}
	bits := nextPow2(uint64(n) * 10)
	words := bits / 64
	if words == 0 {
		words = 1
	}
	return &BloomFilter{bits: make([]uint64, words), k: 7}
}

func nextPow2(v uint64) uint64 {
	p := uint64(64)
	for p < v {
		p <<= 1
	}
	return p
}

func (f *BloomFilter) hashes(v engine.Value) (uint64, uint64) {
	var buf [16]byte
	n := encodeForHash(v, buf[:0])
	h0, h1 := siphash.Hash128(bloomKey0, bloomKey1, n)
	return h0, h1
}

// encodeForHash produces a byte encoding stable across equal Values,
// sufficient for hashing purposes (not a full serialization format).
func encodeForHash(v engine.Value, dst []byte) []byte {
	switch v.Kind() {
	case engine.KInt64:
		i, _ := v.AsInt64()
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(i))
		return append(dst, b[:]...)
	case engine.KFloat64:
		f, _ := v.AsFloat64()
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
		return append(dst, b[:]...)
	case engine.KString:
		s, _ := v.AsString()
		return append(dst, s...)
	case engine.KBytes:
		b, _ := v.AsBytes()
		return append(dst, b...)
	case engine.KBool:
		b, _ := v.AsBool()
		if b {
			return append(dst, 1)
		}
		return append(dst, 0)
	default:
		return append(dst, v.String_()...)
	}
}

// Add inserts v into the filter.
func (f *BloomFilter) Add(v engine.Value) {
	h0, h1 := f.hashes(v)
	nbits := uint64(len(f.bits)) * 64
	for i := 0; i < f.k; i++ {
		bit := (h0 + uint64(i)*h1) % nbits
		f.bits[bit/64] |= 1 << (bit % 64)
	}
}

// MightContain reports whether v may have been added; false is a
// definite answer, true may be a false positive.
func (f *BloomFilter) MightContain(v engine.Value) bool {
	h0, h1 := f.hashes(v)
	nbits := uint64(len(f.bits)) * 64
	for i := 0; i < f.k; i++ {
		bit := (h0 + uint64(i)*h1) % nbits
		if f.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}
