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

// SelectionVector names which rows of a DataChunk's vectors are
// logically present. A Flat selection is the identity [0, n) and
// costs nothing to construct; an Indexed selection is an explicit
// sorted-or-unsorted list of row indices, built once a Filter
// operator narrows the chunk. Every index named by an Indexed
// selection must be < the chunk's capacity (spec.md §4.5's width
// invariant).
type SelectionVector struct {
	flat    bool
	n       int     // count, valid in both modes
	indexed []int32 // nil when flat
}

// Flat returns the identity selection over the first n rows.
func Flat(n int) SelectionVector {
	return SelectionVector{flat: true, n: n}
}

// Indexed returns a selection naming exactly idx, in the order given.
func Indexed(idx []int32) SelectionVector {
	return SelectionVector{n: len(idx), indexed: idx}
}

// Len returns the number of selected rows.
func (s SelectionVector) Len() int { return s.n }

// IsFlat reports whether the selection is the untouched identity
// range, letting operators skip a materialization step.
func (s SelectionVector) IsFlat() bool { return s.flat }

// At returns the underlying row index for the i'th selected row.
func (s SelectionVector) At(i int) int32 {
	if s.flat {
		return int32(i)
	}
	return s.indexed[i]
}

// Filter narrows the selection to only the rows for which keep
// returns true, without copying or mutating any ValueVector --
// narrowing a selection is always cheaper than rewriting the columns
// it points into (spec.md §4.5).
func (s SelectionVector) Filter(keep func(row int32) bool) SelectionVector {
	out := make([]int32, 0, s.n)
	for i := 0; i < s.n; i++ {
		row := s.At(i)
		if keep(row) {
			out = append(out, row)
		}
	}
	return Indexed(out)
}

// Rows materializes the selection as a plain slice of row indices.
func (s SelectionVector) Rows() []int32 {
	if !s.flat {
		return s.indexed
	}
	out := make([]int32, s.n)
	for i := range out {
		out[i] = int32(i)
	}
	return out
}
