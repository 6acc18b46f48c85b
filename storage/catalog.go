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
	"sync"

	"github.com/vertexdb/lpg/engine"
	"golang.org/x/crypto/blake2b"
)

// IndexKind enumerates the secondary index kinds spec.md §4.3 defines.
type IndexKind int

const (
	IndexHash IndexKind = iota
	IndexBTree
	IndexTrie
)

// IndexEntityKind distinguishes a node-scoped index from an
// edge-scoped one (spec.md §4.3).
type IndexEntityKind int

const (
	EntityNode IndexEntityKind = iota
	EntityEdge
)

// IndexDef is an index's definition as described in spec.md §4.3.
type IndexDef struct {
	Kind          IndexKind
	EntityKind    IndexEntityKind
	LabelOrType   string
	PropertyKeys  []string
	Unique        bool
}

// Snapshot is an immutable, copy-on-write view of the catalog (labels,
// edge types, index definitions) handed to readers so that concurrent
// schema changes never tear a reader's view (spec.md §5: "Catalog ...
// copy-on-write; readers get an immutable snapshot handle").
type Snapshot struct {
	Labels    []string
	EdgeTypes []string
	Indexes   []IndexDef
	// Fingerprint is a content hash of this snapshot, used to detect
	// whether an on-disk catalog file (path/catalog, spec.md §6)
	// matches the in-memory catalog without a full structural diff.
	Fingerprint [32]byte
}

// Catalog tracks labels, edge types, and index definitions, handing
// out copy-on-write Snapshots to readers (spec.md §5).
type Catalog struct {
	mu       sync.Mutex
	labels   *engine.Dict
	edges    *engine.Dict
	indexes  []IndexDef
	snapshot *Snapshot
}

// NewCatalog returns an empty, ready-to-use Catalog.
func NewCatalog() *Catalog {
	c := &Catalog{labels: engine.NewDict(), edges: engine.NewDict()}
	c.rebuildSnapshotLocked()
	return c
}

// Labels returns the label dictionary (interning is append-only and
// safe without a catalog-wide lock; see engine.Dict).
func (c *Catalog) Labels() *engine.Dict { return c.labels }

// EdgeTypes returns the edge-type dictionary.
func (c *Catalog) EdgeTypes() *engine.Dict { return c.edges }

// AddIndex registers a new index definition and publishes a fresh
// Snapshot.
func (c *Catalog) AddIndex(def IndexDef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes = append(c.indexes, def)
	c.rebuildSnapshotLocked()
}

// Snapshot returns the catalog's current immutable snapshot. The
// returned pointer is safe to retain across concurrent schema
// changes: a change publishes a new *Snapshot rather than mutating
// the one already handed out.
func (c *Catalog) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

func (c *Catalog) rebuildSnapshotLocked() {
	snap := &Snapshot{
		Indexes: append([]IndexDef(nil), c.indexes...),
	}
	n := c.labels.Len()
	for i := 0; i < n; i++ {
		if s, ok := c.labels.Lookup(engine.Symbol(i)); ok {
			snap.Labels = append(snap.Labels, s)
		}
	}
	n = c.edges.Len()
	for i := 0; i < n; i++ {
		if s, ok := c.edges.Lookup(engine.Symbol(i)); ok {
			snap.EdgeTypes = append(snap.EdgeTypes, s)
		}
	}
	snap.Fingerprint = fingerprint(snap)
	c.snapshot = snap
}

func fingerprint(s *Snapshot) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, l := range s.Labels {
		h.Write([]byte(l))
		h.Write([]byte{0})
	}
	for _, e := range s.EdgeTypes {
		h.Write([]byte(e))
		h.Write([]byte{0})
	}
	for _, idx := range s.Indexes {
		h.Write([]byte(idx.LabelOrType))
		for _, k := range idx.PropertyKeys {
			h.Write([]byte(k))
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
