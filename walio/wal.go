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
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/wire"
)

// WAL is the append-only transaction log for one store directory's
// path/wal subtree (spec.md §6). It owns one open segment at a time;
// Rotate starts a fresh one, letting an external checkpoint/trim
// policy (outside this package's scope) reclaim old segments once
// their records are no longer needed for recovery.
type WAL struct {
	dir string
	st  *wire.Symtab

	mu  sync.Mutex
	seq uint64
	cur *segmentWriter

	nextTxn uint64
}

// Open opens (or creates) the WAL directory dir, appending to a fresh
// segment numbered after whatever segments already exist so sequence
// numbers never repeat across process restarts.
func Open(dir string) (*WAL, error) {
	segs, err := listSegments(dir)
	if err != nil {
		return nil, err
	}
	seq := uint64(0)
	for _, path := range segs {
		if s, ok := parseSeq(filepath.Base(path)); ok && s >= seq {
			seq = s + 1
		}
	}
	w, _, err := createSegment(dir, seq)
	if err != nil {
		return nil, err
	}
	return &WAL{dir: dir, st: newSymtab(), seq: seq, cur: w}, nil
}

func parseSeq(name string) (uint64, bool) {
	i := strings.IndexByte(name, '-')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(name[:i], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Begin allocates a new transaction id and logs its Begin record.
func (w *WAL) Begin() (uint64, error) {
	txn := atomic.AddUint64(&w.nextTxn, 1)
	return txn, w.append(Record{Kind: Begin, Txn: txn})
}

// CreateNode logs a node creation belonging to txn.
func (w *WAL) CreateNode(txn uint64, id engine.NodeId, labels []string, props []Prop) error {
	return w.append(Record{Kind: CreateNode, Txn: txn, NodeID: id, Labels: labels, Props: props})
}

// CreateEdge logs an edge creation belonging to txn.
func (w *WAL) CreateEdge(txn uint64, id engine.EdgeId, edgeType string, src, dst engine.NodeId, props []Prop) error {
	return w.append(Record{Kind: CreateEdge, Txn: txn, EdgeID: id, EdgeType: edgeType, Src: src, Dst: dst, Props: props})
}

// SetProperty logs a property write on an existing node or edge.
func (w *WAL) SetProperty(txn uint64, entity EntityKind, id uint64, key string, v engine.Value) error {
	return w.append(Record{Kind: SetProp, Txn: txn, Entity: entity, EntityID: id, Key: key, Value: v})
}

// Delete logs a node or edge deletion.
func (w *WAL) Delete(txn uint64, entity EntityKind, id uint64) error {
	return w.append(Record{Kind: Delete, Txn: txn, Entity: entity, EntityID: id})
}

// Commit logs txn's commit boundary and durably syncs it: the
// transaction manager must not report txn as committed to a caller
// until this returns nil (spec.md §6's wal_flush_interval_ms governs
// whether that sync happens per Commit or is batched by a group
// commit policy layered on top of WAL.Sync by the caller instead).
func (w *WAL) Commit(txn uint64) error {
	if err := w.append(Record{Kind: Commit, Txn: txn}); err != nil {
		return err
	}
	return w.Sync()
}

func (w *WAL) append(r Record) error {
	payload := encodeRecord(w.st, r)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur.appendFrame(payload)
}

// Sync forces every buffered record to stable storage.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur.sync()
}

// Rotate closes the current segment and opens a new one, for a
// checkpoint policy that wants to bound how much of the log a future
// recovery must scan.
func (w *WAL) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.cur.close(); err != nil {
		return err
	}
	w.seq++
	next, _, err := createSegment(w.dir, w.seq)
	if err != nil {
		return err
	}
	w.cur = next
	return nil
}

// Close syncs and closes the current segment.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.cur.sync(); err != nil {
		w.cur.close()
		return err
	}
	return w.cur.close()
}

// Recover replays every *.log segment in dir and calls apply once
// per record belonging to a transaction that reached a Commit record
// (spec.md §6: "on recovery, records replay in order up to the last
// committed transaction id"), in the order the records were
// originally appended. Begin and Commit records are boundary markers
// only and are not passed to apply. A segment's final frame may be
// truncated (the tail of a write in progress when the process died);
// that frame and everything after it in that segment is treated as
// not-yet-durable and silently dropped rather than an error -- only a
// failed checksum on a complete frame is reported as corruption.
func Recover(dir string, apply func(Record) error) error {
	segs, err := listSegments(dir)
	if err != nil {
		return err
	}
	st := newSymtab()

	var ordered []Record
	committed := make(map[uint64]bool)

	for _, path := range segs {
		r, err := openSegment(path)
		if err != nil {
			return fmt.Errorf("walio: opening %s: %w", path, err)
		}
		for {
			payload, err := r.nextFrame()
			if err == io.EOF || err == errTruncated {
				break
			}
			if err != nil {
				r.close()
				return fmt.Errorf("walio: reading %s: %w", path, err)
			}
			d, err := wire.Decode(payload, st)
			if err != nil {
				r.close()
				return fmt.Errorf("walio: decoding record in %s: %w", path, err)
			}
			rec, err := decodeRecord(d)
			if err != nil {
				r.close()
				return fmt.Errorf("walio: decoding record in %s: %w", path, err)
			}
			ordered = append(ordered, rec)
			if rec.Kind == Commit {
				committed[rec.Txn] = true
			}
		}
		r.close()
	}

	for _, rec := range ordered {
		if rec.Kind == Begin || rec.Kind == Commit {
			continue
		}
		if !committed[rec.Txn] {
			continue
		}
		if err := apply(rec); err != nil {
			return err
		}
	}
	return nil
}
