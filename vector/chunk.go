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

package vector

import (
	"fmt"

	"github.com/vertexdb/lpg/engine"
)

// DefaultCapacity is the row budget a fresh DataChunk is given absent
// any other sizing hint; operators are free to allocate smaller
// chunks (e.g. the final partial morsel of a scan).
const DefaultCapacity = 2048

// Column names a vector within a DataChunk by its projected alias,
// not its underlying property key -- the same PropertyColumn can
// surface under different aliases across branches of a plan.
type Column struct {
	Name string
	Vec  *ValueVector
}

// DataChunk is a batch of columns sharing one capacity and one
// SelectionVector, the vectorized execution engine's unit of work
// (spec.md §4.5, component C8). All vectors in a chunk share the same
// capacity, and every index the chunk's SelectionVector names must be
// less than that capacity: the "width invariant".
type DataChunk struct {
	capacity int
	columns  []Column
	sel      SelectionVector
}

// NewDataChunk allocates an empty chunk (no columns yet) of the given
// capacity with an identity selection.
func NewDataChunk(capacity int) *DataChunk {
	return &DataChunk{capacity: capacity, sel: Flat(0)}
}

// AddColumn appends vec under name, panicking if vec's capacity
// doesn't match the chunk's -- a violation of the width invariant is
// a programmer error in the operator that built the chunk, not a
// recoverable runtime condition.
func (c *DataChunk) AddColumn(name string, vec *ValueVector) {
	if vec.Capacity() != c.capacity {
		panic(fmt.Sprintf("vector: column %q capacity %d does not match chunk capacity %d", name, vec.Capacity(), c.capacity))
	}
	c.columns = append(c.columns, Column{Name: name, Vec: vec})
}

func (c *DataChunk) Capacity() int            { return c.capacity }
func (c *DataChunk) Selection() SelectionVector { return c.sel }
func (c *DataChunk) SetSelection(sel SelectionVector) {
	if sel.n > 0 && !sel.flat {
		for _, idx := range sel.indexed {
			if int(idx) >= c.capacity {
				panic(fmt.Sprintf("vector: selection index %d out of range for chunk capacity %d", idx, c.capacity))
			}
		}
	}
	c.sel = sel
}

// SetCount resets the selection to a flat identity over the first n
// rows, the common case after a Source operator finishes filling a
// fresh chunk.
func (c *DataChunk) SetCount(n int) { c.sel = Flat(n) }

// Len returns the number of logically selected rows.
func (c *DataChunk) Len() int { return c.sel.Len() }

// Column looks up a column by its projected name.
func (c *DataChunk) Column(name string) (*ValueVector, bool) {
	for _, col := range c.columns {
		if col.Name == name {
			return col.Vec, true
		}
	}
	return nil, false
}

// Columns returns the chunk's columns in projection order.
func (c *DataChunk) Columns() []Column { return c.columns }

// Project builds a new chunk containing only the named columns, in
// the given order, aliased to newNames. Columns are aliased, not
// copied: the same *ValueVector is shared between the input and
// output chunk, so Project never materializes data it doesn't have
// to (spec.md §4.5 "projection aliasing vs. new allocation"). The
// selection vector is shared unchanged.
func (c *DataChunk) Project(names []string, newNames []string) (*DataChunk, error) {
	out := &DataChunk{capacity: c.capacity, sel: c.sel}
	for i, name := range names {
		vec, ok := c.Column(name)
		if !ok {
			return nil, fmt.Errorf("vector: no such column %q", name)
		}
		alias := name
		if i < len(newNames) && newNames[i] != "" {
			alias = newNames[i]
		}
		out.columns = append(out.columns, Column{Name: alias, Vec: vec})
	}
	return out, nil
}

// Materialize returns a new chunk holding only the currently selected
// rows, with a flat selection over the reduced capacity. Filter uses
// this only when a downstream consumer (e.g. a sink crossing a
// pipeline boundary) needs a compact chunk rather than a narrowed
// selection over a still-full-width one.
func (c *DataChunk) Materialize() *DataChunk {
	idx := c.sel.Rows()
	out := &DataChunk{capacity: len(idx), sel: Flat(len(idx))}
	for _, col := range c.columns {
		out.columns = append(out.columns, Column{Name: col.Name, Vec: col.Vec.Slice(idx)})
	}
	return out
}

// Get returns the value of column name at the i'th selected row.
func (c *DataChunk) Get(name string, i int) (engine.Value, bool) {
	vec, ok := c.Column(name)
	if !ok {
		return engine.Value{}, false
	}
	row := c.sel.At(i)
	return vec.Get(int(row)), true
}
