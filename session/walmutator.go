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

package session

import (
	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/graph"
	"github.com/vertexdb/lpg/walio"
)

// walMutator is the exec.Mutator a Session hands to plan.CompileWithMutator
// while a write-ahead log is enabled: every call both performs the real
// mutation against store and appends the matching walio.Record to wal
// under txn, so the two can never drift out of sync the way replaying
// from a query's final output rows could (a Return/Project upstream of
// a write operator is free to drop the very columns a generic replay
// would have needed).
type walMutator struct {
	store *graph.Store
	wal   *walio.WAL
	txn   uint64
}

func (m *walMutator) CreateNode(labels []string, props map[string]engine.Value) engine.NodeId {
	id := m.store.CreateNode(labels, props)
	if err := m.wal.CreateNode(m.txn, id, labels, propsToWAL(props)); err != nil {
		m.store.DeleteNode(id)
		panic(walError{err})
	}
	return id
}

func (m *walMutator) CreateEdge(typ string, src, dst engine.NodeId, props map[string]engine.Value) engine.EdgeId {
	id := m.store.CreateEdge(typ, src, dst, props)
	if err := m.wal.CreateEdge(m.txn, id, typ, src, dst, propsToWAL(props)); err != nil {
		m.store.DeleteEdge(id)
		panic(walError{err})
	}
	return id
}

func (m *walMutator) SetNodeProperty(id engine.NodeId, key string, v engine.Value) {
	m.store.SetNodeProperty(id, key, v)
	if err := m.wal.SetProperty(m.txn, walio.NodeEntity, uint64(id), key, v); err != nil {
		panic(walError{err})
	}
}

func (m *walMutator) SetEdgeProperty(id engine.EdgeId, key string, v engine.Value) {
	m.store.SetEdgeProperty(id, key, v)
	if err := m.wal.SetProperty(m.txn, walio.EdgeEntity, uint64(id), key, v); err != nil {
		panic(walError{err})
	}
}

func (m *walMutator) DeleteNode(id engine.NodeId) {
	m.store.DeleteNode(id)
	if err := m.wal.Delete(m.txn, walio.NodeEntity, uint64(id)); err != nil {
		panic(walError{err})
	}
}

func (m *walMutator) DeleteEdge(id engine.EdgeId) {
	m.store.DeleteEdge(id)
	if err := m.wal.Delete(m.txn, walio.EdgeEntity, uint64(id)); err != nil {
		panic(walError{err})
	}
}

func propsToWAL(props map[string]engine.Value) []walio.Prop {
	if len(props) == 0 {
		return nil
	}
	out := make([]walio.Prop, 0, len(props))
	for k, v := range props {
		out = append(out, walio.Prop{Key: k, Value: v})
	}
	return out
}

// walError lets a Mutator method report a WAL append failure through
// Execute's ordinary error return despite exec.Mutator's methods
// having no error result: Execute recovers it at the Pipeline.Run call
// site and turns it back into a plain error (see runPipeline in
// session.go). The underlying store mutation is already irreversible
// by the time the append fails, so the entity above is removed (for a
// create) to keep the in-memory Store and the durable log from
// silently disagreeing about its existence.
type walError struct{ err error }
