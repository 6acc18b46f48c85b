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

import "github.com/vertexdb/lpg/vector"

// Distinct drops any row whose named-column signature has already
// been seen (spec.md §4.6: "a hash set over the output row
// signature"). Unlike Aggregate's group table, Distinct's seen set
// never spills: the spec scopes spilling to the Aggregate and Sort
// operators, and a row signature set only grows as large as the
// number of distinct output rows, which is typically small relative
// to input cardinality.
type Distinct struct {
	cols []string
	seen map[string]struct{}
}

// NewDistinct returns a Distinct operator keyed on cols.
func NewDistinct(cols []string) *Distinct {
	return &Distinct{cols: cols, seen: make(map[string]struct{})}
}

// Push implements PushOperator by narrowing the chunk's selection to
// rows whose signature hasn't been seen by this operator before.
func (d *Distinct) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	narrowed := chunk.Selection().Filter(func(row int32) bool {
		key := groupKey(Row{Chunk: chunk, Index: int(row)}, d.cols)
		if _, ok := d.seen[key]; ok {
			return false
		}
		d.seen[key] = struct{}{}
		return true
	})
	chunk.SetSelection(narrowed)
	if narrowed.Len() == 0 {
		return nil, NeedInput, nil
	}
	return chunk, Continue, nil
}

// Flush implements PushOperator; Distinct holds no rows to emit on its
// own, only the seen-signature set used to filter future chunks.
func (d *Distinct) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	return nil, false, nil
}
