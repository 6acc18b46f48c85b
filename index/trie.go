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
	"sort"
	"sync"

	"github.com/vertexdb/lpg/engine"
)

// Trie supports worst-case-optimal multiway joins (spec.md §4.3): a
// cursor iterates the shared key prefix of several Tries in lockstep,
// descending level by level, so an N-way join of high-selectivity
// predicates never materializes the full cross product of any two
// inputs before intersecting with the third.
//
// Keys are sequences of engine.Values (one per join-variable level);
// each level's children are kept sorted so Next() can advance by
// binary search and two cursors can be intersected by a standard
// merge (the WCOJ "leapfrog" step).
type Trie[Id comparable] struct {
	mu   sync.RWMutex
	root *trieNode[Id]
}

type trieNode[Id comparable] struct {
	children map[valueKey]*trieChild[Id]
	order    []engine.Value // children's keys in sorted order
	ids      map[Id]struct{}
}

type trieChild[Id comparable] struct {
	key  engine.Value
	node *trieNode[Id]
}

func newTrieNode[Id comparable]() *trieNode[Id] {
	return &trieNode[Id]{children: make(map[valueKey]*trieChild[Id])}
}

// NewTrie returns an empty Trie index.
func NewTrie[Id comparable]() *Trie[Id] {
	return &Trie[Id]{root: newTrieNode[Id]()}
}

// Insert adds id under the key path formed by levels (one Value per
// join variable, in a fixed, caller-chosen order).
func (t *Trie[Id]) Insert(levels []engine.Value, id Id) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.root
	for _, lvl := range levels {
		kk := keyOf(lvl)
		c, ok := n.children[kk]
		if !ok {
			c = &trieChild[Id]{key: lvl, node: newTrieNode[Id]()}
			n.children[kk] = c
			n.order = insertSortedValue(n.order, lvl)
		}
		n = c.node
	}
	if n.ids == nil {
		n.ids = make(map[Id]struct{})
	}
	n.ids[id] = struct{}{}
}

func insertSortedValue(order []engine.Value, v engine.Value) []engine.Value {
	i := sort.Search(len(order), func(i int) bool {
		return engine.Compare(order[i], v) != engine.Less
	})
	order = append(order, engine.Value{})
	copy(order[i+1:], order[i:])
	order[i] = v
	return order
}

// Cursor walks one Trie's shared-prefix levels. A multiway join
// driver holds one Cursor per input trie and advances them in
// lockstep on whichever level they currently share.
type Cursor[Id comparable] struct {
	trie *Trie[Id]
	path []*trieNode[Id]
	pos  []int
}

// OpenAt returns a Cursor positioned at the node reached by following
// prefix from the root (spec.md §4.3's open_at(prefix)).
func (t *Trie[Id]) OpenAt(prefix []engine.Value) (*Cursor[Id], bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.root
	for _, lvl := range prefix {
		c, ok := n.children[keyOf(lvl)]
		if !ok {
			return nil, false
		}
		n = c.node
	}
	return &Cursor[Id]{trie: t, path: []*trieNode[Id]{n}, pos: []int{0}}, true
}

// Next returns the next key at the cursor's current level, in sorted
// order, advancing the cursor, or ok=false when the level is
// exhausted (spec.md §4.3's next() -> Option<key>).
func (c *Cursor[Id]) Next() (engine.Value, bool) {
	n := c.path[len(c.path)-1]
	i := c.pos[len(c.pos)-1]
	if i >= len(n.order) {
		return engine.Value{}, false
	}
	v := n.order[i]
	c.pos[len(c.pos)-1] = i + 1
	return v, true
}

// Seek advances the cursor's current level forward to the first key
// >= target without materializing intervening keys, the leapfrog
// primitive a WCOJ driver uses to skip a cursor past values its peers
// have already ruled out.
func (c *Cursor[Id]) Seek(target engine.Value) (engine.Value, bool) {
	n := c.path[len(c.path)-1]
	i := sort.Search(len(n.order), func(i int) bool {
		return engine.Compare(n.order[i], target) != engine.Less
	})
	c.pos[len(c.pos)-1] = i
	return c.Next()
}

// Descend pushes the cursor one level deeper, into the child reached
// by key (spec.md §4.3's descend()). The caller must have just read
// key via Next/Seek at the current level.
func (c *Cursor[Id]) Descend(key engine.Value) bool {
	n := c.path[len(c.path)-1]
	child, ok := n.children[keyOf(key)]
	if !ok {
		return false
	}
	c.path = append(c.path, child.node)
	c.pos = append(c.pos, 0)
	return true
}

// Ascend pops the cursor back up one level, the inverse of Descend,
// used when a multiway join backtracks after exhausting a subtree.
func (c *Cursor[Id]) Ascend() bool {
	if len(c.path) <= 1 {
		return false
	}
	c.path = c.path[:len(c.path)-1]
	c.pos = c.pos[:len(c.pos)-1]
	return true
}

// Ids returns the ids stored at the cursor's current (leaf) position,
// reached once Descend has been called once per join-variable level.
func (c *Cursor[Id]) Ids() []Id {
	n := c.path[len(c.path)-1]
	return idsOf(n.ids)
}
