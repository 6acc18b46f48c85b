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

// Package adjacency implements the chunked adjacency index of
// spec.md §4.2 (C5): per-source-node, append-friendly chunks of
// (EdgeType, dst, EdgeId) triples sorted within a chunk, fronted by a
// per-source delta buffer that absorbs recent writes before they are
// merged into sorted chunks.
package adjacency

import (
	"sort"
	"sync"

	"github.com/vertexdb/lpg/engine"
	"golang.org/x/exp/slices"
)

// Triple is one outgoing (or incoming, when maintained) adjacency
// entry (spec.md §3).
type Triple struct {
	Type engine.EdgeType
	Dst  engine.NodeId
	Edge engine.EdgeId
}

func less(a, b Triple) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.Dst < b.Dst
}

// ChunkZoneMap is the per-chunk summary spec.md §4.2 describes:
// (min EdgeType, max EdgeType, min dst, max dst, count).
type ChunkZoneMap struct {
	MinType, MaxType engine.EdgeType
	MinDst, MaxDst   engine.NodeId
	Count            int
}

func zoneMapOf(triples []Triple) ChunkZoneMap {
	z := ChunkZoneMap{}
	if len(triples) == 0 {
		return z
	}
	z.MinType, z.MaxType = triples[0].Type, triples[0].Type
	z.MinDst, z.MaxDst = triples[0].Dst, triples[0].Dst
	for _, t := range triples {
		if t.Type < z.MinType {
			z.MinType = t.Type
		}
		if t.Type > z.MaxType {
			z.MaxType = t.Type
		}
		if t.Dst < z.MinDst {
			z.MinDst = t.Dst
		}
		if t.Dst > z.MaxDst {
			z.MaxDst = t.Dst
		}
	}
	z.Count = len(triples)
	return z
}

// Predicate narrows a chunk scan. A zero value matches everything.
type Predicate struct {
	Type    *engine.EdgeType
	DstLo   *engine.NodeId
	DstHi   *engine.NodeId
}

// skip reports whether the chunk's zone map proves the predicate
// cannot match anything inside it (spec.md §4.2's "permits skipping
// when ... falls outside [min, max]").
func (p Predicate) skip(z ChunkZoneMap) bool {
	if p.Type != nil && (*p.Type < z.MinType || *p.Type > z.MaxType) {
		return true
	}
	if p.DstLo != nil && *p.DstLo > z.MaxDst {
		return true
	}
	if p.DstHi != nil && *p.DstHi < z.MinDst {
		return true
	}
	return false
}

func (p Predicate) matches(t Triple) bool {
	if p.Type != nil && t.Type != *p.Type {
		return false
	}
	if p.DstLo != nil && t.Dst < *p.DstLo {
		return false
	}
	if p.DstHi != nil && t.Dst > *p.DstHi {
		return false
	}
	return true
}

const defaultChunkCapacity = 1024
const defaultDeltaFlushThreshold = 256

type chunk struct {
	triples   []Triple
	tombstone map[engine.EdgeId]bool
	zone      ChunkZoneMap
}

func newChunk(triples []Triple) *chunk {
	c := &chunk{triples: triples}
	c.zone = zoneMapOf(triples)
	return c
}

func (c *chunk) isTombstoned(id engine.EdgeId) bool {
	return c.tombstone != nil && c.tombstone[id]
}

// perSource holds one node's adjacency state: its sorted chunks plus
// its delta buffer of unflushed writes (spec.md §4.2).
type perSource struct {
	mu         sync.Mutex
	chunks     []*chunk
	delta      []Triple
	deltaTomb  map[engine.EdgeId]bool
}

// Adjacency is a ChunkedAdjacency index for one direction (forward or
// backward). A Store composes two Adjacency instances when
// backward_edges is enabled (spec.md §4.2, §6).
type Adjacency struct {
	mu              sync.RWMutex
	bySource        map[engine.NodeId]*perSource
	chunkCapacity   int
	deltaThreshold  int
}

// NewAdjacency returns an empty Adjacency index with default chunk
// sizing.
func NewAdjacency() *Adjacency {
	return &Adjacency{
		bySource:       make(map[engine.NodeId]*perSource),
		chunkCapacity:  defaultChunkCapacity,
		deltaThreshold: defaultDeltaFlushThreshold,
	}
}

func (a *Adjacency) sourceFor(src engine.NodeId, create bool) *perSource {
	a.mu.RLock()
	ps, ok := a.bySource[src]
	a.mu.RUnlock()
	if ok || !create {
		return ps
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if ps, ok = a.bySource[src]; ok {
		return ps
	}
	ps = &perSource{}
	a.bySource[src] = ps
	return ps
}

// Add records a new outgoing triple for src. The write lands in src's
// delta buffer and is immediately visible to reads (spec.md §4.2); the
// delta is flushed into sorted chunks once it crosses
// delta_flush_threshold entries.
func (a *Adjacency) Add(src engine.NodeId, t Triple) {
	ps := a.sourceFor(src, true)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.delta = append(ps.delta, t)
	if len(ps.delta) >= a.deltaThreshold {
		a.flushLocked(ps)
	}
}

// Remove tombstones an edge until the next rewrite of the chunk (or
// delta entry) that contains it (spec.md §4.2).
func (a *Adjacency) Remove(src engine.NodeId, edge engine.EdgeId) bool {
	ps := a.sourceFor(src, false)
	if ps == nil {
		return false
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for i, t := range ps.delta {
		if t.Edge == edge {
			if ps.deltaTomb == nil {
				ps.deltaTomb = make(map[engine.EdgeId]bool)
			}
			ps.deltaTomb[edge] = true
			_ = i
			return true
		}
	}
	for _, c := range ps.chunks {
		if c.zone.Count == 0 {
			continue
		}
		for _, t := range c.triples {
			if t.Edge == edge {
				if c.tombstone == nil {
					c.tombstone = make(map[engine.EdgeId]bool)
				}
				c.tombstone[edge] = true
				return true
			}
		}
	}
	return false
}

// flushLocked merges the delta buffer into sorted, fixed-capacity
// chunks. Must be called with ps.mu held.
func (a *Adjacency) flushLocked(ps *perSource) {
	if len(ps.delta) == 0 {
		return
	}
	live := ps.delta[:0:0]
	for _, t := range ps.delta {
		if ps.deltaTomb != nil && ps.deltaTomb[t.Edge] {
			continue
		}
		live = append(live, t)
	}
	sort.Slice(live, func(i, j int) bool { return less(live[i], live[j]) })

	for len(live) > 0 {
		n := a.chunkCapacity
		if n > len(live) {
			n = len(live)
		}
		a.appendChunkLocked(ps, live[:n])
		live = live[n:]
	}
	ps.delta = nil
	ps.deltaTomb = nil
}

func (a *Adjacency) appendChunkLocked(ps *perSource, triples []Triple) {
	cp := append([]Triple(nil), triples...)
	if last := len(ps.chunks) - 1; last >= 0 && ps.chunks[last].zone.Count < a.chunkCapacity {
		// top up a partially-filled tail chunk instead of growing the
		// chunk count unboundedly under a steady trickle of writes
		merged := append(append([]Triple(nil), ps.chunks[last].triples...), cp...)
		sort.Slice(merged, func(i, j int) bool { return less(merged[i], merged[j]) })
		if len(merged) <= a.chunkCapacity {
			ps.chunks[last] = newChunk(merged)
			return
		}
	}
	ps.chunks = append(ps.chunks, newChunk(cp))
}

// Flush forces src's delta buffer to merge into chunks now, regardless
// of the flush threshold; used by background rebuild tasks and by
// tests asserting chunked-scan behavior deterministically.
func (a *Adjacency) Flush(src engine.NodeId) {
	ps := a.sourceFor(src, false)
	if ps == nil {
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	a.flushLocked(ps)
}

// Scan iterates src's visible adjacency -- (chunks \ tombstones) ∪
// delta, per spec.md invariant (a) -- calling visit for each matching
// triple. Chunks whose zone map proves the predicate cannot match are
// skipped entirely without touching their triples (spec.md §4.2).
func (a *Adjacency) Scan(src engine.NodeId, pred Predicate, visit func(Triple) bool) {
	ps := a.sourceFor(src, false)
	if ps == nil {
		return
	}
	ps.mu.Lock()
	chunks := append([]*chunk(nil), ps.chunks...)
	delta := append([]Triple(nil), ps.delta...)
	deltaTomb := ps.deltaTomb
	ps.mu.Unlock()

	for _, c := range chunks {
		if pred.skip(c.zone) {
			continue
		}
		for _, t := range c.triples {
			if c.isTombstoned(t.Edge) {
				continue
			}
			if !pred.matches(t) {
				continue
			}
			if !visit(t) {
				return
			}
		}
	}
	for _, t := range delta {
		if deltaTomb != nil && deltaTomb[t.Edge] {
			continue
		}
		if !pred.matches(t) {
			continue
		}
		if !visit(t) {
			return
		}
	}
}

// Degree reports the number of live outgoing triples for src.
func (a *Adjacency) Degree(src engine.NodeId) int {
	n := 0
	a.Scan(src, Predicate{}, func(Triple) bool { n++; return true })
	return n
}

// sortedIndexOf is exposed for tests asserting chunk ordering
// (spec.md invariant (b): "scan ordering is stable within a single
// transaction snapshot").
func sortedIndexOf(triples []Triple, t Triple) int {
	return slices.IndexFunc(triples, func(o Triple) bool { return o == t })
}
