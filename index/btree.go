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

package index

import (
	"sync"

	"github.com/vertexdb/lpg/engine"
	"golang.org/x/exp/slices"
)

// BTree is a key-ordered index supporting [lo, hi] range cursors and
// prefix scans (spec.md §4.3). It is implemented as a single sorted
// entry slice with binary-search insertion rather than an actual
// multi-way B-tree node structure: at the scale this engine targets
// (an embeddable in-memory graph), a sorted slice gives the same
// O(log n) search and sequential-range-scan behavior a disk-oriented
// B-tree provides, without the node/page bookkeeping a B-tree needs
// only to bound disk I/O -- this index never touches disk.
type BTree[Id comparable] struct {
	mu      sync.RWMutex
	unique  bool
	entries []btEntry[Id]
}

type btEntry[Id comparable] struct {
	key engine.Value
	ids map[Id]struct{}
}

// NewBTree returns an empty BTree index.
func NewBTree[Id comparable](unique bool) *BTree[Id] {
	return &BTree[Id]{unique: unique}
}

func (t *BTree[Id]) search(key engine.Value) (int, bool) {
	i, found := slices.BinarySearchFunc(t.entries, key, func(e btEntry[Id], k engine.Value) int {
		switch engine.Compare(e.key, k) {
		case engine.Less:
			return -1
		case engine.Greater:
			return 1
		default:
			return 0
		}
	})
	return i, found
}

// Insert adds id under key, keeping entries sorted by key.
func (t *BTree[Id]) Insert(key engine.Value, id Id) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, found := t.search(key)
	if found {
		if t.unique && len(t.entries[i].ids) > 0 {
			if _, already := t.entries[i].ids[id]; !already {
				return &ErrConflict{Key: key}
			}
		}
		t.entries[i].ids[id] = struct{}{}
		return nil
	}
	e := btEntry[Id]{key: key, ids: map[Id]struct{}{id: {}}}
	t.entries = append(t.entries, btEntry[Id]{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = e
	return nil
}

// Remove deletes id from key's entry, pruning the entry if it becomes
// empty.
func (t *BTree[Id]) Remove(key engine.Value, id Id) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, found := t.search(key)
	if !found {
		return
	}
	delete(t.entries[i].ids, id)
	if len(t.entries[i].ids) == 0 {
		t.entries = append(t.entries[:i], t.entries[i+1:]...)
	}
}

// Lookup returns the ids stored under key.
func (t *BTree[Id]) Lookup(key engine.Value) []Id {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, found := t.search(key)
	if !found {
		return nil
	}
	return idsOf(t.entries[i].ids)
}

// Range calls visit, in ascending key order, for every id whose key
// lies in [lo, hi] (spec.md §4.3). A nil lo/hi bound is open on that
// side.
func (t *BTree[Id]) Range(lo, hi *engine.Value, visit func(key engine.Value, id Id) bool) {
	t.mu.RLock()
	entries := append([]btEntry[Id](nil), t.entries...)
	t.mu.RUnlock()

	start := 0
	if lo != nil {
		start, _ = slices.BinarySearchFunc(entries, *lo, func(e btEntry[Id], k engine.Value) int {
			switch engine.Compare(e.key, k) {
			case engine.Less:
				return -1
			case engine.Greater:
				return 1
			default:
				return 0
			}
		})
	}
	for i := start; i < len(entries); i++ {
		if hi != nil && engine.Compare(entries[i].key, *hi) == engine.Greater {
			return
		}
		for id := range entries[i].ids {
			if !visit(entries[i].key, id) {
				return
			}
		}
	}
}

// PrefixScan calls visit for every entry whose string key starts with
// prefix, in ascending order.
func (t *BTree[Id]) PrefixScan(prefix string, visit func(key engine.Value, id Id) bool) {
	lo := engine.String(prefix)
	t.mu.RLock()
	entries := append([]btEntry[Id](nil), t.entries...)
	t.mu.RUnlock()

	start, _ := slices.BinarySearchFunc(entries, lo, func(e btEntry[Id], k engine.Value) int {
		switch engine.Compare(e.key, k) {
		case engine.Less:
			return -1
		case engine.Greater:
			return 1
		default:
			return 0
		}
	})
	for i := start; i < len(entries); i++ {
		s, ok := entries[i].key.AsString()
		if !ok || len(s) < len(prefix) || s[:len(prefix)] != prefix {
			if ok && len(s) >= len(prefix) && s[:len(prefix)] > prefix {
				return
			}
			if !ok {
				continue
			}
		}
		for id := range entries[i].ids {
			if !visit(entries[i].key, id) {
				return
			}
		}
	}
}

func idsOf[Id comparable](m map[Id]struct{}) []Id {
	out := make([]Id, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}
