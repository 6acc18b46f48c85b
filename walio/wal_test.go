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

package walio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vertexdb/lpg/engine"
)

func TestWALRecoverReplaysCommittedTransaction(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	txn, err := w.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := w.CreateNode(txn, engine.NodeId(1), []string{"Person"}, []Prop{
		{Key: "name", Value: engine.String("Alice")},
		{Key: "age", Value: engine.Int64(30)},
	}); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := w.CreateEdge(txn, engine.EdgeId(1), "knows", engine.NodeId(1), engine.NodeId(2), nil); err != nil {
		t.Fatalf("CreateEdge: %v", err)
	}
	if err := w.SetProperty(txn, NodeEntity, 1, "age", engine.Int64(31)); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	if err := w.Commit(txn); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var replayed []Record
	if err := Recover(dir, func(r Record) error {
		replayed = append(replayed, r)
		return nil
	}); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if len(replayed) != 3 {
		t.Fatalf("got %d replayed records, want 3 (create-node, create-edge, set-prop)", len(replayed))
	}
	if replayed[0].Kind != CreateNode || replayed[0].NodeID != 1 {
		t.Fatalf("record 0 = %+v, want a CreateNode for node 1", replayed[0])
	}
	if len(replayed[0].Props) != 2 || replayed[0].Props[0].Key != "name" {
		t.Fatalf("record 0 props = %+v, want name then age", replayed[0].Props)
	}
	if replayed[1].Kind != CreateEdge || replayed[1].EdgeType != "knows" {
		t.Fatalf("record 1 = %+v, want a CreateEdge of type knows", replayed[1])
	}
	if replayed[2].Kind != SetProp || replayed[2].Key != "age" {
		t.Fatalf("record 2 = %+v, want a SetProp on age", replayed[2])
	}
	if n, ok := replayed[2].Value.AsInt64(); !ok || n != 31 {
		t.Fatalf("record 2 value = %v, want 31", replayed[2].Value)
	}
}

func TestWALRecoverSkipsUncommittedTransaction(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	committed, err := w.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := w.CreateNode(committed, engine.NodeId(1), []string{"Person"}, nil); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := w.Commit(committed); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	pending, err := w.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := w.CreateNode(pending, engine.NodeId(2), []string{"Person"}, nil); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	// no Commit for pending: the process "crashes" here.
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var nodeIDs []engine.NodeId
	if err := Recover(dir, func(r Record) error {
		if r.Kind == CreateNode {
			nodeIDs = append(nodeIDs, r.NodeID)
		}
		return nil
	}); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if len(nodeIDs) != 1 || nodeIDs[0] != 1 {
		t.Fatalf("got replayed node ids %v, want only [1]", nodeIDs)
	}
}

func TestWALRecoverAcrossRotatedSegments(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	txn1, _ := w.Begin()
	if err := w.CreateNode(txn1, engine.NodeId(1), nil, nil); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := w.Commit(txn1); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := w.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	txn2, _ := w.Begin()
	if err := w.CreateNode(txn2, engine.NodeId(2), nil, nil); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := w.Commit(txn2); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	segs, err := listSegments(dir)
	if err != nil {
		t.Fatalf("listSegments: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2 after Rotate", len(segs))
	}

	var ids []engine.NodeId
	if err := Recover(dir, func(r Record) error {
		if r.Kind == CreateNode {
			ids = append(ids, r.NodeID)
		}
		return nil
	}); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("got ids %v, want [1 2] in segment order", ids)
	}
}

func TestWALRecoverRejectsCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	txn, _ := w.Begin()
	if err := w.CreateNode(txn, engine.NodeId(1), nil, nil); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := w.Commit(txn); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	segs, err := listSegments(dir)
	if err != nil || len(segs) != 1 {
		t.Fatalf("listSegments: %v, %d", err, len(segs))
	}
	flipLastByte(t, segs[0])

	err = Recover(dir, func(Record) error { return nil })
	if err == nil {
		t.Fatal("expected Recover to report a checksum mismatch")
	}
}

func flipLastByte(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("empty wal segment")
	}
	b[len(b)-1] ^= 0xFF
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestWALOpenContinuesSequenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	w1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	w2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	segs, err := listSegments(dir)
	if err != nil {
		t.Fatalf("listSegments: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2 (one per Open)", len(segs))
	}
	if filepath.Base(segs[0]) == filepath.Base(segs[1]) {
		t.Fatal("reopened WAL reused the same segment name")
	}
}
