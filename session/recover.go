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

// applyRecord replays one committed walio.Record against store during
// Open's recovery pass. It re-derives each entity's id the same way
// walMutator's forward path produced it, so a mismatch between the
// replayed id and the one the record names means the Store's id
// allocator diverged from what originally wrote the log -- a conflict
// between two WAL directories pointed at the same store, or a corrupt
// record that otherwise decoded cleanly.
func applyRecord(store *graph.Store, r walio.Record) error {
	switch r.Kind {
	case walio.CreateNode:
		got := store.CreateNode(r.Labels, propsFromWAL(r.Props))
		if got != r.NodeID {
			return engine.Errorf(engine.KindInternal, "wal replay: node id %d does not match allocated id %d", r.NodeID, got)
		}
	case walio.CreateEdge:
		got := store.CreateEdge(r.EdgeType, r.Src, r.Dst, propsFromWAL(r.Props))
		if got != r.EdgeID {
			return engine.Errorf(engine.KindInternal, "wal replay: edge id %d does not match allocated id %d", r.EdgeID, got)
		}
	case walio.SetProp:
		switch r.Entity {
		case walio.NodeEntity:
			store.SetNodeProperty(engine.NodeId(r.EntityID), r.Key, r.Value)
		case walio.EdgeEntity:
			store.SetEdgeProperty(engine.EdgeId(r.EntityID), r.Key, r.Value)
		}
	case walio.Delete:
		switch r.Entity {
		case walio.NodeEntity:
			store.DeleteNode(engine.NodeId(r.EntityID))
		case walio.EdgeEntity:
			store.DeleteEdge(engine.EdgeId(r.EntityID))
		}
	}
	return nil
}

func propsFromWAL(props []walio.Prop) map[string]engine.Value {
	if len(props) == 0 {
		return nil
	}
	m := make(map[string]engine.Value, len(props))
	for _, p := range props {
		m[p.Key] = p.Value
	}
	return m
}
