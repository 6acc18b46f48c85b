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
	"io"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/heap"
	"github.com/vertexdb/lpg/vector"
	"github.com/vertexdb/lpg/wire"
	"golang.org/x/exp/slices"
)

// SortKey names one ORDER BY term (spec.md §4.6's Sort operator).
type SortKey struct {
	Column     string
	Desc       bool
	NullsFirst bool
}

// sortRow is one buffered input row: its sort-key values plus every
// other bound column, captured by name so Sort can re-emit the full
// row regardless of which columns the keys reference.
type sortRow struct {
	keys []engine.Value
	cols []string
	vals []engine.Value
}

// Sort implements spec.md §4.6's external merge sort: rows are
// buffered and sorted in memory until a memory grant is denied, at
// which point the buffered rows are sorted and spilled as one run;
// Flush performs a k-way merge of every spilled run plus whatever
// remains buffered, using the teacher's generic binary heap
// (github.com/vertexdb/lpg/heap) ordered by the same comparator used
// for the in-memory sort, which is what keeps the merge stable: ties
// break by input arrival order, never by run origin.
type Sort struct {
	keys  []SortKey
	mem   *MemoryContext
	spill *SpillManager

	cols []string
	buf  []sortRow
	seq  int64 // input arrival counter, breaks ties for stability

	runs   []SpillID
	symtab *wire.Symtab

	merge *sortMerge
}

// NewSort returns a Sort operator ordering by keys. mem/spill may be
// nil, in which case Sort never spills (bounded result sets, tests).
func NewSort(keys []SortKey, mem *MemoryContext, spill *SpillManager) *Sort {
	return &Sort{keys: keys, mem: mem, spill: spill}
}

type seqRow struct {
	sortRow
	seq int64
}

func (s *Sort) less(a, b seqRow) bool {
	for i, k := range s.keys {
		av, bv := a.keys[i], b.keys[i]
		if av.IsNull() || bv.IsNull() {
			if av.IsNull() && bv.IsNull() {
				continue
			}
			if av.IsNull() {
				return k.NullsFirst
			}
			return !k.NullsFirst
		}
		ord := engine.Compare(av, bv)
		if ord == engine.Equal || ord == engine.Incomparable {
			continue
		}
		if k.Desc {
			return ord == engine.Greater
		}
		return ord == engine.Less
	}
	return a.seq < b.seq
}

// Push implements PushOperator.
func (s *Sort) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	if s.cols == nil {
		for _, c := range chunk.Columns() {
			s.cols = append(s.cols, c.Name)
		}
	}
	sel := chunk.Selection()
	for i := 0; i < sel.Len(); i++ {
		row := Row{Chunk: chunk, Index: int(sel.At(i))}
		keys := make([]engine.Value, len(s.keys))
		for j, k := range s.keys {
			keys[j], _ = row.Get(k.Column)
		}
		vals := make([]engine.Value, len(s.cols))
		for j, c := range s.cols {
			vals[j], _ = row.Get(c)
		}
		s.buf = append(s.buf, sortRow{keys: keys, cols: s.cols, vals: vals})
		s.seq++
	}
	if s.mem != nil && len(s.buf) > 0 {
		estimate := int64(len(s.buf)) * int64(len(s.cols)+len(s.keys)) * 64
		if _, err := s.mem.Reserve(estimate); err == ErrDenied {
			if err2 := s.spillRun(); err2 != nil {
				return nil, Continue, err2
			}
			return nil, Spill, nil
		}
	}
	return nil, NeedInput, nil
}

// spillRun sorts the current buffer and writes it as one run to disk,
// then clears the buffer (spec.md §4.9 Denied -> Spilled).
func (s *Sort) spillRun() error {
	if s.spill == nil || len(s.buf) == 0 {
		return nil
	}
	seqd := make([]seqRow, len(s.buf))
	base := s.seq - int64(len(s.buf))
	for i, r := range s.buf {
		seqd[i] = seqRow{sortRow: r, seq: base + int64(i)}
	}
	slices.SortFunc(seqd, func(a, b seqRow) bool { return s.less(a, b) })

	id, w, err := s.spill.Create()
	if err != nil {
		return err
	}
	st := s.symtab
	if st == nil {
		st = engine.NewDict()
	}
	for _, r := range seqd {
		if err := w.WriteRecord(encodeSortRow(st, r)); err != nil {
			w.Close()
			return err
		}
	}
	s.symtab = st
	s.runs = append(s.runs, id)
	s.buf = nil
	return w.Close()
}

func encodeSortRow(st *wire.Symtab, r seqRow) []byte {
	var buf wire.Buffer
	buf.BeginStruct(-1)
	buf.BeginField(st.Intern("seq"))
	buf.WriteInt(r.seq)
	buf.BeginField(st.Intern("cols"))
	buf.BeginList(len(r.cols))
	for _, c := range r.cols {
		buf.WriteString(c)
	}
	buf.EndList()
	buf.BeginField(st.Intern("vals"))
	buf.BeginList(len(r.vals))
	for _, v := range r.vals {
		writeValue(&buf, v)
	}
	buf.EndList()
	buf.BeginField(st.Intern("nkeys"))
	buf.WriteInt(int64(len(r.keys)))
	buf.BeginField(st.Intern("keys"))
	buf.BeginList(len(r.keys))
	for _, v := range r.keys {
		writeValue(&buf, v)
	}
	buf.EndList()
	buf.EndStruct()
	return buf.Bytes()
}

func decodeSortRow(st *wire.Symtab, raw []byte) (seqRow, error) {
	d, err := wire.Decode(raw, st)
	if err != nil {
		return seqRow{}, err
	}
	var out seqRow
	err = d.UnpackStruct(func(f wire.Field) error {
		switch f.Label {
		case "seq":
			n, _ := f.Datum.Int()
			out.seq = n
		case "cols":
			items, _ := f.Datum.Items()
			for _, it := range items {
				s, _ := it.String()
				out.cols = append(out.cols, s)
			}
		case "vals":
			items, _ := f.Datum.Items()
			for _, it := range items {
				out.vals = append(out.vals, readValue(it))
			}
		case "keys":
			items, _ := f.Datum.Items()
			for _, it := range items {
				out.keys = append(out.keys, readValue(it))
			}
		}
		return nil
	})
	return out, err
}

// sortSource is one input to the k-way merge: either the final
// in-memory buffer (already sorted) or a spilled run read back
// sequentially.
type sortSource struct {
	mem []seqRow
	pos int

	r      *SpillFileReader
	symtab *wire.Symtab

	peeked *seqRow
	err    error
}

func (s *sortSource) peek() (*seqRow, error) {
	if s.peeked != nil || s.err != nil {
		return s.peeked, s.err
	}
	if s.r != nil {
		raw, err := s.r.ReadRecord()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			s.err = err
			return nil, err
		}
		row, err := decodeSortRow(s.symtab, raw)
		if err != nil {
			s.err = err
			return nil, err
		}
		s.peeked = &row
		return s.peeked, nil
	}
	if s.pos >= len(s.mem) {
		return nil, nil
	}
	row := s.mem[s.pos]
	s.peeked = &row
	return s.peeked, nil
}

func (s *sortSource) advance() {
	s.peeked = nil
	if s.r == nil {
		s.pos++
	}
}

// sortMerge drives a k-way merge across every sortSource using a
// min-heap ordered by Sort.less, emitting rows one at a time.
type sortMerge struct {
	sort    *Sort
	sources []*sortSource
	heapIdx []int // indices into sources, kept heap-ordered
}

func (m *sortMerge) lessIdx(i, j int) bool {
	ri, _ := m.sources[i].peek()
	rj, _ := m.sources[j].peek()
	return m.sort.less(*ri, *rj)
}

func newSortMerge(sort *Sort, sources []*sortSource) *sortMerge {
	m := &sortMerge{sort: sort, sources: sources}
	for i, src := range sources {
		if r, _ := src.peek(); r != nil {
			m.heapIdx = append(m.heapIdx, i)
		}
	}
	heap.OrderSlice(m.heapIdx, m.lessIdx)
	return m
}

// next pops the smallest remaining row across every source, refills
// the heap from that source's next row, and reports whether a row was
// available.
func (m *sortMerge) next() (seqRow, bool, error) {
	if len(m.heapIdx) == 0 {
		return seqRow{}, false, nil
	}
	i := heap.PopSlice(&m.heapIdx, m.lessIdx)
	src := m.sources[i]
	row, err := src.peek()
	if err != nil {
		return seqRow{}, false, err
	}
	out := *row
	src.advance()
	if next, err := src.peek(); err != nil {
		return seqRow{}, false, err
	} else if next != nil {
		heap.PushSlice(&m.heapIdx, i, m.lessIdx)
	}
	return out, true, nil
}

// Flush drains the merged, fully-ordered output one chunk at a time.
func (s *Sort) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	if s.merge == nil {
		if len(s.runs) == 0 {
			seqd := make([]seqRow, len(s.buf))
			base := s.seq - int64(len(s.buf))
			for i, r := range s.buf {
				seqd[i] = seqRow{sortRow: r, seq: base + int64(i)}
			}
			slices.SortFunc(seqd, func(a, b seqRow) bool { return s.less(a, b) })
			s.merge = newSortMerge(s, []*sortSource{{mem: seqd}})
		} else {
			if err := s.spillRun(); err != nil {
				return nil, false, err
			}
			var sources []*sortSource
			for _, id := range s.runs {
				r, err := s.spill.Open(id)
				if err != nil {
					return nil, false, err
				}
				sources = append(sources, &sortSource{r: r, symtab: s.symtab})
			}
			s.merge = newSortMerge(s, sources)
		}
	}

	size := ctx.ChunkSizeHint
	if size <= 0 {
		size = vector.DefaultCapacity
	}
	var rows []seqRow
	for len(rows) < size {
		row, ok, err := s.merge.next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		for _, src := range s.merge.sources {
			if src.r != nil {
				src.r.Close()
			}
		}
		for _, id := range s.runs {
			s.spill.Remove(id)
		}
		s.runs = nil
		return nil, false, nil
	}
	return s.buildChunk(rows), true, nil
}

func (s *Sort) buildChunk(rows []seqRow) *vector.DataChunk {
	n := len(rows)
	chunk := vector.NewDataChunk(n)
	for j, c := range s.cols {
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
		chunk.AddColumn(c, vec)
	}
	chunk.SetCount(n)
	return chunk
}
