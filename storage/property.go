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

// Package storage implements the columnar property storage and zone
// maps of spec.md §4.1 (C4): a per-key column of entity-id -> Value
// with an incrementally maintained min/max/null-count summary that
// lets scans skip an entire column when a predicate provably cannot
// match.
package storage

import (
	"sync"

	"github.com/vertexdb/lpg/engine"
)

// CompareOp is the predicate operator might_match reasons about
// (spec.md §4.1).
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// EntityId is the constraint satisfied by NodeId and EdgeId, the two
// key domains PropertyStorage is generic over (spec.md §3).
type EntityId interface {
	~uint64
}

// ZoneMapEntry aggregates (min, max, null_count, row_count) for one
// column, per spec.md §3/§4.4. min/max exclude nulls.
type ZoneMapEntry struct {
	RowCount  int64
	NullCount int64
	Min       *engine.Value
	Max       *engine.Value
	Dirty     bool
}

func newZoneMapEntry() ZoneMapEntry { return ZoneMapEntry{} }

func (z *ZoneMapEntry) observeInsert(v engine.Value) {
	z.RowCount++
	if v.IsNull() {
		z.NullCount++
		return
	}
	if z.Min == nil || engine.Compare(v, *z.Min) == engine.Less {
		vv := v
		z.Min = &vv
	}
	if z.Max == nil || engine.Compare(v, *z.Max) == engine.Greater {
		vv := v
		z.Max = &vv
	}
}

// mightMatch implements the decision table in spec.md §4.1: "false
// only when provably no value satisfies"; always true while dirty.
func (z *ZoneMapEntry) mightMatch(op CompareOp, v engine.Value) bool {
	if z.Dirty || z.Min == nil || z.Max == nil {
		return true
	}
	switch op {
	case OpEq:
		return engine.Compare(*z.Min, v) != engine.Greater && engine.Compare(v, *z.Max) != engine.Greater
	case OpNe:
		return !(engine.Compare(*z.Min, v) == engine.Equal && engine.Compare(*z.Max, v) == engine.Equal)
	case OpLt:
		return engine.Compare(*z.Min, v) == engine.Less
	case OpLe:
		return engine.Compare(*z.Min, v) != engine.Greater
	case OpGt:
		return engine.Compare(*z.Max, v) == engine.Greater
	case OpGe:
		return engine.Compare(*z.Max, v) != engine.Less
	default:
		return true
	}
}

// PropertyColumn maps an entity id to a Value plus its ZoneMapEntry
// (spec.md §3).
type PropertyColumn[Id EntityId] struct {
	mu     sync.RWMutex
	values map[Id]engine.Value
	zone   ZoneMapEntry
	bloom  *BloomFilter
}

func newPropertyColumn[Id EntityId]() *PropertyColumn[Id] {
	return &PropertyColumn[Id]{
		values: make(map[Id]engine.Value),
		zone:   newZoneMapEntry(),
		bloom:  NewBloomFilter(1024),
	}
}

// Set upserts a value and updates the zone map incrementally
// (spec.md §4.1). Overwriting an existing id is treated as inserting
// the new value on top of the old count bookkeeping: the zone map is
// a summary, not an exact structure, so an overwrite that lowers the
// true min/max is only corrected by RebuildZoneMap -- the same
// conservative trade-off the column already makes for Remove.
func (c *PropertyColumn[Id]) Set(id Id, v engine.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[id] = v
	c.zone.observeInsert(v)
	if !v.IsNull() {
		c.bloom.Add(v)
	}
}

// Get returns the value stored for id, if any.
func (c *PropertyColumn[Id]) Get(id Id) (engine.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[id]
	return v, ok
}

// Remove deletes id's value, marking the zone map dirty if a removal
// actually occurred (spec.md §4.1).
func (c *PropertyColumn[Id]) Remove(id Id) (engine.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[id]
	if ok {
		delete(c.values, id)
		c.zone.Dirty = true
	}
	return v, ok
}

// MightMatch reports whether this column might contain a value
// satisfying (value op v); a high-cardinality Eq predicate is first
// checked against the bloom filter, which can reject values the
// min/max range alone cannot (spec.md §4.4).
func (c *PropertyColumn[Id]) MightMatch(op CompareOp, v engine.Value) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if op == OpEq && !c.zone.Dirty && !c.bloom.MightContain(v) {
		return false
	}
	return c.zone.mightMatch(op, v)
}

// ZoneMap returns a copy of the column's current zone map.
func (c *PropertyColumn[Id]) ZoneMap() ZoneMapEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.zone
}

// RebuildZoneMap recomputes the column's zone map from scratch and
// clears Dirty (spec.md §4.1).
func (c *PropertyColumn[Id]) RebuildZoneMap() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fresh := newZoneMapEntry()
	bloom := NewBloomFilter(len(c.values))
	for _, v := range c.values {
		fresh.observeInsert(v)
		if !v.IsNull() {
			bloom.Add(v)
		}
	}
	c.zone = fresh
	c.bloom = bloom
}

// Len reports the number of live (id, value) pairs in the column.
func (c *PropertyColumn[Id]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// PropertyStorage is a mapping from property key to PropertyColumn,
// created lazily on first Set (spec.md §3/§4.1).
type PropertyStorage[Id EntityId] struct {
	mu      sync.RWMutex
	columns map[engine.PropertyKey]*PropertyColumn[Id]
}

// NewPropertyStorage returns an empty PropertyStorage.
func NewPropertyStorage[Id EntityId]() *PropertyStorage[Id] {
	return &PropertyStorage[Id]{columns: make(map[engine.PropertyKey]*PropertyColumn[Id])}
}

func (s *PropertyStorage[Id]) columnFor(key engine.PropertyKey, create bool) *PropertyColumn[Id] {
	s.mu.RLock()
	col, ok := s.columns[key]
	s.mu.RUnlock()
	if ok || !create {
		return col
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok = s.columns[key]; ok {
		return col
	}
	col = newPropertyColumn[Id]()
	s.columns[key] = col
	return col
}

// Set upserts id's value for key, creating the column if needed.
func (s *PropertyStorage[Id]) Set(id Id, key engine.PropertyKey, v engine.Value) {
	s.columnFor(key, true).Set(id, v)
}

// Get returns id's value for key, if the column exists and holds one.
func (s *PropertyStorage[Id]) Get(id Id, key engine.PropertyKey) (engine.Value, bool) {
	col := s.columnFor(key, false)
	if col == nil {
		return engine.Value{}, false
	}
	return col.Get(id)
}

// Remove deletes id's value for key.
func (s *PropertyStorage[Id]) Remove(id Id, key engine.PropertyKey) (engine.Value, bool) {
	col := s.columnFor(key, false)
	if col == nil {
		return engine.Value{}, false
	}
	return col.Remove(id)
}

// RemoveAll deletes id's value across every column (spec.md §4.1).
func (s *PropertyStorage[Id]) RemoveAll(id Id) {
	s.mu.RLock()
	cols := make([]*PropertyColumn[Id], 0, len(s.columns))
	for _, c := range s.columns {
		cols = append(cols, c)
	}
	s.mu.RUnlock()
	for _, c := range cols {
		c.Remove(id)
	}
}

// MightMatch reports whether key's column might satisfy (value op v);
// a key with no column at all is conservatively "might match"
// (spec.md §4.1: "false only when provably no value satisfies").
func (s *PropertyStorage[Id]) MightMatch(key engine.PropertyKey, op CompareOp, v engine.Value) bool {
	col := s.columnFor(key, false)
	if col == nil {
		return true
	}
	return col.MightMatch(op, v)
}

// RebuildZoneMaps recomputes every column's zone map and clears Dirty
// (spec.md §4.1).
func (s *PropertyStorage[Id]) RebuildZoneMaps() {
	s.mu.RLock()
	cols := make([]*PropertyColumn[Id], 0, len(s.columns))
	for _, c := range s.columns {
		cols = append(cols, c)
	}
	s.mu.RUnlock()
	for _, c := range cols {
		c.RebuildZoneMap()
	}
}

// AllProperties returns the union of every column that contains id,
// i.e. the entity's complete property set (spec.md §3).
func (s *PropertyStorage[Id]) AllProperties(id Id) map[engine.PropertyKey]engine.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[engine.PropertyKey]engine.Value)
	for key, col := range s.columns {
		if v, ok := col.Get(id); ok {
			out[key] = v
		}
	}
	return out
}

// Keys returns the set of property keys with a column.
func (s *PropertyStorage[Id]) Keys() []engine.PropertyKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]engine.PropertyKey, 0, len(s.columns))
	for k := range s.columns {
		keys = append(keys, k)
	}
	return keys
}
