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

// Package index implements the three secondary index kinds of
// spec.md §4.3: a hash index for point lookup, a B-tree for range
// scans, and a trie for worst-case-optimal multiway joins.
package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/dchest/siphash"
	"github.com/vertexdb/lpg/engine"
)

// ErrConflict is returned by a unique Hash/BTree index when an insert
// would create a duplicate key (spec.md §4.3).
type ErrConflict struct {
	Key engine.Value
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("index: unique constraint violated for key %s", e.Key.String_())
}

// Hash is a point-lookup index: key -> set<Id>, amortized O(1)
// (spec.md §4.3).
type Hash[Id comparable] struct {
	mu     sync.RWMutex
	unique bool
	// keys are hashed into a bucket id with siphash, the same keyed
	// hash the teacher's vm bytecode uses for partitioning, so that
	// key ordering never leaks through bucket layout.
	buckets map[uint64]map[valueKey]map[Id]struct{}
}

// NewHash returns an empty Hash index. unique indexes reject inserts
// that would create a second id for an existing key.
func NewHash[Id comparable](unique bool) *Hash[Id] {
	return &Hash[Id]{unique: unique, buckets: make(map[uint64]map[valueKey]map[Id]struct{})}
}

type valueKey struct {
	kind byte
	s    string
}

func keyOf(v engine.Value) valueKey {
	return valueKey{kind: byte(v.Kind()), s: v.String_()}
}

func bucketHash(v engine.Value) uint64 {
	var b [16]byte
	n := appendHashBytes(v, b[:0])
	h, _ := siphash.Hash128(0, 0, n)
	return h
}

func appendHashBytes(v engine.Value, dst []byte) []byte {
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
	default:
		return append(dst, v.String_()...)
	}
}

// Insert adds id under key. If the index is unique and key already
// maps to a different id, ErrConflict is returned and no change is
// made.
func (h *Hash[Id]) Insert(key engine.Value, id Id) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	bh := bucketHash(key)
	bucket, ok := h.buckets[bh]
	if !ok {
		bucket = make(map[valueKey]map[Id]struct{})
		h.buckets[bh] = bucket
	}
	kk := keyOf(key)
	ids, ok := bucket[kk]
	if !ok {
		ids = make(map[Id]struct{})
		bucket[kk] = ids
	}
	if h.unique && len(ids) > 0 {
		if _, already := ids[id]; !already {
			return &ErrConflict{Key: key}
		}
	}
	ids[id] = struct{}{}
	return nil
}

// Remove deletes id from key's entry.
func (h *Hash[Id]) Remove(key engine.Value, id Id) {
	h.mu.Lock()
	defer h.mu.Unlock()
	bh := bucketHash(key)
	bucket, ok := h.buckets[bh]
	if !ok {
		return
	}
	kk := keyOf(key)
	ids, ok := bucket[kk]
	if !ok {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(bucket, kk)
	}
}

// Lookup returns the set of ids stored under key.
func (h *Hash[Id]) Lookup(key engine.Value) []Id {
	h.mu.RLock()
	defer h.mu.RUnlock()
	bucket, ok := h.buckets[bucketHash(key)]
	if !ok {
		return nil
	}
	ids, ok := bucket[keyOf(key)]
	if !ok {
		return nil
	}
	out := make([]Id, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out
}
