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

package exec

import (
	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/index"
	"github.com/vertexdb/lpg/vector"
)

type joinRow struct {
	cols []string
	vals []engine.Value
}

func materializeRows(chunk *vector.DataChunk) []joinRow {
	mat := chunk.Materialize()
	cols := mat.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	n := mat.Len()
	rows := make([]joinRow, n)
	for i := 0; i < n; i++ {
		vals := make([]engine.Value, len(cols))
		for j, c := range cols {
			vals[j] = c.Vec.Get(i)
		}
		rows[i] = joinRow{cols: names, vals: vals}
	}
	return rows
}

// HashJoin implements spec.md §4.6's equi-join: a build phase hashes
// the build side (whichever side the caller feeds to Build) on one
// column, a probe phase (the PushOperator
// half) streams the other side and emits one output row per matching
// pair, concatenating both sides' bound columns. Build must run to
// completion before the first Push; a translator sequences this by
// driving the build-side pipeline to exhaustion first, the way the
// teacher's plan package always finishes a hash table's build input
// before its probe input starts reading.
type HashJoin struct {
	leftKey, rightKey string

	table map[string][]joinRow

	pending []*vector.DataChunk
}

// NewHashJoin returns a HashJoin matching leftKey (build side) against
// rightKey (probe side).
func NewHashJoin(leftKey, rightKey string) *HashJoin {
	return &HashJoin{leftKey: leftKey, rightKey: rightKey, table: make(map[string][]joinRow)}
}

// Build consumes one chunk of the build side, indexing every row by
// its leftKey value.
func (j *HashJoin) Build(chunk *vector.DataChunk) {
	if j.table == nil {
		j.table = make(map[string][]joinRow)
	}
	for _, row := range materializeRows(chunk) {
		key := groupKeyFromValues([]engine.Value{lookupCol(row, j.leftKey)})
		j.table[key] = append(j.table[key], row)
	}
}

func lookupCol(row joinRow, name string) engine.Value {
	for i, c := range row.cols {
		if c == name {
			return row.vals[i]
		}
	}
	return engine.Null()
}

// Push implements PushOperator as the probe side: every selected row
// of chunk is looked up in the build table by rightKey, and every
// match is buffered as one combined output row, to be drained on
// Flush (the same buffering shape Expand uses, since a join's output
// cardinality per input row isn't known until the lookup runs).
func (j *HashJoin) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	probeRows := materializeRows(chunk)
	var combined []joinRow
	for _, p := range probeRows {
		key := groupKeyFromValues([]engine.Value{lookupCol(p, j.rightKey)})
		for _, b := range j.table[key] {
			combined = append(combined, combineRows(p, b))
		}
	}
	if len(combined) == 0 {
		return nil, NeedInput, nil
	}
	j.pending = append(j.pending, buildRowChunk(combined))
	return nil, NeedInput, nil
}

// combineRows concatenates two rows' columns, keeping the probe side's
// value when both sides happen to bind the same name (the translator
// is expected to avoid that collision by construction, but silently
// preferring one side is safer than panicking mid-query).
func combineRows(probe, build joinRow) joinRow {
	out := joinRow{cols: append([]string{}, probe.cols...), vals: append([]engine.Value{}, probe.vals...)}
	for i, c := range build.cols {
		found := false
		for _, pc := range probe.cols {
			if pc == c {
				found = true
				break
			}
		}
		if !found {
			out.cols = append(out.cols, c)
			out.vals = append(out.vals, build.vals[i])
		}
	}
	return out
}

func buildRowChunk(rows []joinRow) *vector.DataChunk {
	n := len(rows)
	names := rows[0].cols
	chunk := vector.NewDataChunk(n)
	for j, name := range names {
		kind := engine.KNull
		for _, r := range rows {
			if k := r.vals[j].Kind(); k != engine.KNull {
				kind = k
				break
			}
		}
		if kind == engine.KNull {
			kind = engine.KString
		}
		vec := vector.NewValueVector(kind, n)
		for i, r := range rows {
			vec.Set(i, r.vals[j])
		}
		chunk.AddColumn(name, vec)
	}
	chunk.SetCount(n)
	return chunk
}

// Flush drains HashJoin's buffered output chunks one at a time.
func (j *HashJoin) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	if len(j.pending) == 0 {
		return nil, false, nil
	}
	next := j.pending[0]
	j.pending = j.pending[1:]
	return next, true, nil
}

// TrieJoin implements spec.md §4.3's worst-case-optimal multiway join:
// every relation's Trie is keyed by the same ordered list of shared
// join variables, and TrieJoin drives one index.Cursor per relation in
// lockstep using the classic leapfrog-triejoin algorithm (seek every
// cursor to the maximum current value until all agree, descend a
// level, recurse, backtrack) rather than materializing any pairwise
// intermediate result -- the property that makes WCOJ immune to the
// "cyclic query" blowup a sequence of binary hash joins can hit.
type TrieJoin struct {
	tries []*index.Trie[engine.NodeId]
	vars  []string
}

// NewTrieJoin returns a TrieJoin over tries, one per relation, all
// sharing the variable order named by vars.
func NewTrieJoin(tries []*index.Trie[engine.NodeId], vars []string) *TrieJoin {
	return &TrieJoin{tries: tries, vars: vars}
}

// Run drives the join to completion, calling emit once per matching
// binding tuple (one engine.Value per entry in vars, same order).
// emit returning an error aborts the join early.
func (j *TrieJoin) Run(emit func(bindings []engine.Value) error) error {
	cursors := make([]*index.Cursor[engine.NodeId], len(j.tries))
	for i, tr := range j.tries {
		c, ok := tr.OpenAt(nil)
		if !ok {
			return nil
		}
		cursors[i] = c
	}
	return j.level(cursors, 0, nil, emit)
}

func (j *TrieJoin) level(cursors []*index.Cursor[engine.NodeId], lvl int, bindings []engine.Value, emit func([]engine.Value) error) error {
	if lvl == len(j.vars) {
		return emit(bindings)
	}
	vals := make([]engine.Value, len(cursors))
	for i, c := range cursors {
		v, ok := c.Next()
		if !ok {
			return nil
		}
		vals[i] = v
	}
	for {
		max := vals[0]
		for _, v := range vals[1:] {
			if engine.Compare(v, max) == engine.Greater {
				max = v
			}
		}
		allEqual := true
		for i, v := range vals {
			if engine.Compare(v, max) != engine.Equal {
				nv, ok := cursors[i].Seek(max)
				if !ok {
					return nil
				}
				vals[i] = nv
				allEqual = false
			}
		}
		if allEqual {
			for _, c := range cursors {
				c.Descend(max)
			}
			nb := make([]engine.Value, len(bindings)+1)
			copy(nb, bindings)
			nb[len(bindings)] = max
			if err := j.level(cursors, lvl+1, nb, emit); err != nil {
				return err
			}
			for _, c := range cursors {
				c.Ascend()
			}
			for i, c := range cursors {
				nv, ok := c.Next()
				if !ok {
					return nil
				}
				vals[i] = nv
			}
		}
	}
}
