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
	"time"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/vector"
)

// QueryResult is a forward-only, row-oriented cursor over one Execute
// call's output (spec.md §6). A Pipeline runs synchronously to
// completion before QueryResult is constructed, so the chunks it
// walks are already fully materialized; Next only advances the local
// read position, it never blocks on more execution.
type QueryResult struct {
	chunks []*vector.DataChunk
	ci     int
	ri     int

	rowCount int64
	elapsed  time.Duration
}

func newQueryResult(chunks []*vector.DataChunk) *QueryResult {
	return &QueryResult{chunks: chunks, ri: -1}
}

// Next advances to the next row, returning false once every chunk is
// exhausted.
func (qr *QueryResult) Next() bool {
	for {
		if qr.ci >= len(qr.chunks) {
			return false
		}
		qr.ri++
		if qr.ri < qr.chunks[qr.ci].Len() {
			qr.rowCount++
			return true
		}
		qr.ci++
		qr.ri = -1
	}
}

// Get returns the value of column name at the current row.
func (qr *QueryResult) Get(name string) (engine.Value, bool) {
	if qr.ci >= len(qr.chunks) {
		return engine.Value{}, false
	}
	return qr.chunks[qr.ci].Get(name, qr.ri)
}

// Columns returns the current chunk's column names, in the order they
// were bound by the translator and compiled plan. Every chunk in one
// QueryResult carries the same columns, since they all flow out of
// the same compiled Return/Project.
func (qr *QueryResult) Columns() []string {
	if len(qr.chunks) == 0 {
		return nil
	}
	cols := qr.chunks[0].Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Stats reports execution statistics for the query that produced this
// result.
type Stats struct {
	RowCount int64
	Elapsed  time.Duration
}

// Stats returns qr's row count and the wall-clock time Execute spent
// producing it.
func (qr *QueryResult) Stats() Stats {
	return Stats{RowCount: qr.rowCount, Elapsed: qr.elapsed}
}
