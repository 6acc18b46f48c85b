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

package graph

import (
	"fmt"
	"sync"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/index"
	"github.com/vertexdb/lpg/storage"
)

// Indexes is the Store's secondary-index registry (spec.md §4.3):
// each registered IndexDef gets a concrete Hash, BTree, or Trie
// instance, rebuildable from the Store on demand.
type Indexes struct {
	store *Store

	mu    sync.RWMutex
	hash  map[string]*index.Hash[engine.NodeId]
	btree map[string]*index.BTree[engine.NodeId]
	trie  map[string]*index.Trie[engine.NodeId]
}

func newIndexes(s *Store) *Indexes {
	return &Indexes{
		store: s,
		hash:  make(map[string]*index.Hash[engine.NodeId]),
		btree: make(map[string]*index.BTree[engine.NodeId]),
		trie:  make(map[string]*index.Trie[engine.NodeId]),
	}
}

func indexName(def storage.IndexDef) string {
	return fmt.Sprintf("%d:%s:%v", def.EntityKind, def.LabelOrType, def.PropertyKeys)
}

// Create registers def with the catalog and builds its backing
// structure by scanning the store (spec.md §4.3: "rebuilt
// deterministically from the LPG Store on startup if missing or
// corrupt").
func (ix *Indexes) Create(def storage.IndexDef) error {
	ix.store.catalog.AddIndex(def)
	return ix.Rebuild(def)
}

// Rebuild (re)populates def's backing structure from current store
// state, discarding whatever was there before.
func (ix *Indexes) Rebuild(def storage.IndexDef) error {
	name := indexName(def)
	if len(def.PropertyKeys) == 0 {
		return fmt.Errorf("index: definition for %q has no property keys", def.LabelOrType)
	}
	key := def.PropertyKeys[0]

	switch def.Kind {
	case storage.IndexHash:
		h := index.NewHash[engine.NodeId](def.Unique)
		var rebuildErr error
		for _, id := range ix.store.NodeIds(def.LabelOrType) {
			if v, ok := ix.store.NodeProperty(id, key); ok {
				if err := h.Insert(v, id); err != nil {
					rebuildErr = err
				}
			}
		}
		ix.mu.Lock()
		ix.hash[name] = h
		ix.mu.Unlock()
		return rebuildErr
	case storage.IndexBTree:
		b := index.NewBTree[engine.NodeId](def.Unique)
		var rebuildErr error
		for _, id := range ix.store.NodeIds(def.LabelOrType) {
			if v, ok := ix.store.NodeProperty(id, key); ok {
				if err := b.Insert(v, id); err != nil {
					rebuildErr = err
				}
			}
		}
		ix.mu.Lock()
		ix.btree[name] = b
		ix.mu.Unlock()
		return rebuildErr
	case storage.IndexTrie:
		t := index.NewTrie[engine.NodeId]()
		for _, id := range ix.store.NodeIds(def.LabelOrType) {
			levels := make([]engine.Value, 0, len(def.PropertyKeys))
			ok := true
			for _, k := range def.PropertyKeys {
				v, has := ix.store.NodeProperty(id, k)
				if !has {
					ok = false
					break
				}
				levels = append(levels, v)
			}
			if ok {
				t.Insert(levels, id)
			}
		}
		ix.mu.Lock()
		ix.trie[name] = t
		ix.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("index: unknown kind %d", def.Kind)
	}
}

// Hash returns the Hash index registered for (label, key), if any.
func (ix *Indexes) Hash(label, key string) (*index.Hash[engine.NodeId], bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	h, ok := ix.hash[indexName(storage.IndexDef{EntityKind: storage.EntityNode, LabelOrType: label, PropertyKeys: []string{key}})]
	return h, ok
}

// BTree returns the BTree index registered for (label, key), if any.
func (ix *Indexes) BTree(label, key string) (*index.BTree[engine.NodeId], bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	b, ok := ix.btree[indexName(storage.IndexDef{EntityKind: storage.EntityNode, LabelOrType: label, PropertyKeys: []string{key}})]
	return b, ok
}
