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

// Package graph implements the LPG Store of spec.md §4 (C7): it
// composes columnar property storage (storage), chunked adjacency
// (adjacency), and secondary indexes (index) into a single read/write
// entity store fronted by a label/edge-type dictionary. The
// transaction manager and MVCC visibility oracle are external
// collaborators (spec.md §1); this package only consumes the
// Snapshot interface they would implement.
package graph

import (
	"sync"

	"github.com/vertexdb/lpg/adjacency"
	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/storage"
)

// Snapshot is the opaque visibility oracle spec.md §1/§3 describes:
// "operators borrow read-only snapshots via the visibility oracle."
// The core treats it as a black box; a real transaction manager
// would implement Visible to hide writes from transactions that
// started before they committed. AlwaysVisible is the degenerate
// single-writer implementation used when no transaction manager is
// wired in (e.g. in tests and in the reference session package).
type Snapshot interface {
	Visible(engine.NodeId) bool
	VisibleEdge(engine.EdgeId) bool
}

// AlwaysVisible is a Snapshot that hides nothing.
type AlwaysVisible struct{}

func (AlwaysVisible) Visible(engine.NodeId) bool     { return true }
func (AlwaysVisible) VisibleEdge(engine.EdgeId) bool { return true }

// Store is the LPG Store: the sole owner of all entity state
// (spec.md §3 "Lifecycle & ownership"). Operators never mutate a
// Store directly except through its write methods, which route all
// mutation through here so adjacency, property storage, and indexes
// stay consistent with each other.
type Store struct {
	mu sync.RWMutex

	nodeIds *engine.IdAllocator
	edgeIds *engine.IdAllocator

	catalog *storage.Catalog

	nodeLabels map[engine.NodeId]map[engine.Label]struct{}
	nodeProps  *storage.PropertyStorage[engine.NodeId]
	edgeProps  *storage.PropertyStorage[engine.EdgeId]
	edges      map[engine.EdgeId]edgeRecord

	forward  *adjacency.Adjacency
	backward *adjacency.Adjacency // nil unless backward_edges is enabled

	indexes *Indexes
}

type edgeRecord struct {
	typ      engine.EdgeType
	src, dst engine.NodeId
}

// Config controls store-level options that spec.md §6 assigns to the
// embedding Config (only the subset relevant to the store itself).
type Config struct {
	BackwardEdges bool
}

// NewStore returns an empty Store.
func NewStore(cfg Config) *Store {
	s := &Store{
		nodeIds:    engine.NewIdAllocator(1),
		edgeIds:    engine.NewIdAllocator(1),
		catalog:    storage.NewCatalog(),
		nodeLabels: make(map[engine.NodeId]map[engine.Label]struct{}),
		nodeProps:  storage.NewPropertyStorage[engine.NodeId](),
		edgeProps:  storage.NewPropertyStorage[engine.EdgeId](),
		edges:      make(map[engine.EdgeId]edgeRecord),
		forward:    adjacency.NewAdjacency(),
	}
	if cfg.BackwardEdges {
		s.backward = adjacency.NewAdjacency()
	}
	s.indexes = newIndexes(s)
	return s
}

// Catalog returns the store's label/edge-type/index dictionary.
func (s *Store) Catalog() *storage.Catalog { return s.catalog }

// Indexes returns the store's secondary-index registry.
func (s *Store) Indexes() *Indexes { return s.indexes }

// NodeProps and EdgeProps expose the underlying columnar property
// storage directly, for operators (Scan, Filter) that need
// zone-map-aware predicate pushdown (spec.md §4.1).
func (s *Store) NodeProps() *storage.PropertyStorage[engine.NodeId] { return s.nodeProps }
func (s *Store) EdgeProps() *storage.PropertyStorage[engine.EdgeId] { return s.edgeProps }

// Forward and Backward expose the adjacency indexes. Backward is nil
// when backward_edges is disabled (spec.md §6, §9 open question).
func (s *Store) Forward() *adjacency.Adjacency  { return s.forward }
func (s *Store) Backward() *adjacency.Adjacency { return s.backward }

// CreateNode allocates a new node with the given labels and initial
// properties, returning its id.
func (s *Store) CreateNode(labels []string, props map[string]engine.Value) engine.NodeId {
	id := engine.NodeId(s.nodeIds.Next())
	s.mu.Lock()
	labelSet := make(map[engine.Label]struct{}, len(labels))
	for _, l := range labels {
		sym := s.catalog.Labels().Intern(l)
		labelSet[engine.Label(sym)] = struct{}{}
	}
	s.nodeLabels[id] = labelSet
	s.mu.Unlock()
	for k, v := range props {
		s.nodeProps.Set(id, engine.PropertyKey(s.catalog.Labels().Intern(propKeyNamespace(k))), v)
	}
	return id
}

// propKeyNamespace keeps property keys out of the label dictionary's
// id space collision-free by prefixing them; property keys and labels
// are both "interned strings" per spec.md §3 but must never compare
// equal to each other through a shared Dict.
func propKeyNamespace(k string) string { return "p:" + k }

// Labels returns id's current label set as strings.
func (s *Store) Labels(id engine.NodeId) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.nodeLabels[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for l := range set {
		if str, ok := s.catalog.Labels().Lookup(engine.Symbol(l)); ok {
			out = append(out, str)
		}
	}
	return out
}

// HasLabel reports whether id carries label.
func (s *Store) HasLabel(id engine.NodeId, label string) bool {
	sym, ok := s.catalog.Labels().Symbolize(label)
	if !ok {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, has := s.nodeLabels[id][engine.Label(sym)]
	return has
}

// NodeProperty returns id's value for key.
func (s *Store) NodeProperty(id engine.NodeId, key string) (engine.Value, bool) {
	sym, ok := s.catalog.Labels().Symbolize(propKeyNamespace(key))
	if !ok {
		return engine.Value{}, false
	}
	return s.nodeProps.Get(id, engine.PropertyKey(sym))
}

// SetNodeProperty sets id's value for key.
func (s *Store) SetNodeProperty(id engine.NodeId, key string, v engine.Value) {
	sym := s.catalog.Labels().Intern(propKeyNamespace(key))
	s.nodeProps.Set(id, engine.PropertyKey(sym), v)
}

// EdgeProperty returns id's value for key.
func (s *Store) EdgeProperty(id engine.EdgeId, key string) (engine.Value, bool) {
	sym, ok := s.catalog.Labels().Symbolize(propKeyNamespace(key))
	if !ok {
		return engine.Value{}, false
	}
	return s.edgeProps.Get(id, engine.PropertyKey(sym))
}

// SetEdgeProperty sets id's value for key.
func (s *Store) SetEdgeProperty(id engine.EdgeId, key string, v engine.Value) {
	sym := s.catalog.Labels().Intern(propKeyNamespace(key))
	s.edgeProps.Set(id, engine.PropertyKey(sym), v)
}

// CreateEdge allocates a new directed edge and records it in forward
// (and, if enabled, backward) adjacency.
func (s *Store) CreateEdge(typ string, src, dst engine.NodeId, props map[string]engine.Value) engine.EdgeId {
	id := engine.EdgeId(s.edgeIds.Next())
	tsym := s.catalog.EdgeTypes().Intern(typ)
	s.mu.Lock()
	s.edges[id] = edgeRecord{typ: engine.EdgeType(tsym), src: src, dst: dst}
	s.mu.Unlock()

	s.forward.Add(src, adjacency.Triple{Type: engine.EdgeType(tsym), Dst: dst, Edge: id})
	if s.backward != nil {
		s.backward.Add(dst, adjacency.Triple{Type: engine.EdgeType(tsym), Dst: src, Edge: id})
	}
	for k, v := range props {
		s.edgeProps.Set(id, engine.PropertyKey(s.catalog.Labels().Intern(propKeyNamespace(k))), v)
	}
	return id
}

// Edge returns the (type, src, dst) triple for id.
func (s *Store) Edge(id engine.EdgeId) (typ string, src, dst engine.NodeId, ok bool) {
	s.mu.RLock()
	rec, ok := s.edges[id]
	s.mu.RUnlock()
	if !ok {
		return "", 0, 0, false
	}
	t, _ := s.catalog.EdgeTypes().Lookup(engine.Symbol(rec.typ))
	return t, rec.src, rec.dst, true
}

// DeleteNode removes a node, all incident edges, and all property
// entries keyed by its id (spec.md §3: "Removing a node also removes
// all incident edges and all property-column entries keyed by its
// id").
func (s *Store) DeleteNode(id engine.NodeId) {
	var incident []engine.EdgeId
	s.forward.Scan(id, adjacency.Predicate{}, func(t adjacency.Triple) bool {
		incident = append(incident, t.Edge)
		return true
	})
	if s.backward != nil {
		s.backward.Scan(id, adjacency.Predicate{}, func(t adjacency.Triple) bool {
			incident = append(incident, t.Edge)
			return true
		})
	}
	for _, e := range incident {
		s.DeleteEdge(e)
	}
	s.mu.Lock()
	delete(s.nodeLabels, id)
	s.mu.Unlock()
	s.nodeProps.RemoveAll(id)
}

// DeleteEdge removes a single edge from both adjacency directions and
// its property entries.
func (s *Store) DeleteEdge(id engine.EdgeId) {
	s.mu.Lock()
	rec, ok := s.edges[id]
	if ok {
		delete(s.edges, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.forward.Remove(rec.src, id)
	if s.backward != nil {
		s.backward.Remove(rec.dst, id)
	}
	s.edgeProps.RemoveAll(id)
}

// Exists reports whether id currently names a live node.
func (s *Store) Exists(id engine.NodeId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodeLabels[id]
	return ok
}

// NodeIds returns every live node id, optionally filtered by label.
// Used by NodeScan (spec.md §4.6).
func (s *Store) NodeIds(label string) []engine.NodeId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sym engine.Label
	var filter bool
	if label != "" {
		if id, ok := s.catalog.Labels().Symbolize(label); ok {
			sym, filter = engine.Label(id), true
		} else {
			return nil
		}
	}
	out := make([]engine.NodeId, 0, len(s.nodeLabels))
	for id, labels := range s.nodeLabels {
		if filter {
			if _, ok := labels[sym]; !ok {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}
