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

// Project renames and/or reorders columns, aliasing the underlying
// ValueVectors rather than copying them (spec.md §4.5: "Projection may
// allocate new vectors or alias existing ones"; this implementation
// always aliases, since it only selects a subset of existing columns
// -- computed expressions are the translator's concern and are
// resolved into bound columns before reaching Project).
type Project struct {
	names   []string
	aliases []string
}

// NewProject returns a Project operator that keeps only names,
// renamed to aliases (aliases[i] == "" keeps the original name).
func NewProject(names, aliases []string) *Project {
	return &Project{names: names, aliases: aliases}
}

// Push implements PushOperator by replacing chunk with its projected
// view.
func (p *Project) Push(ctx *Context, chunk *vector.DataChunk) (*vector.DataChunk, Outcome, error) {
	if ctx.Cancelled() {
		return nil, Continue, ErrCancelled
	}
	out, err := chunk.Project(p.names, p.aliases)
	if err != nil {
		return nil, Continue, err
	}
	return out, Continue, nil
}

// Flush implements PushOperator; Project holds no buffered state.
func (p *Project) Flush(ctx *Context) (*vector.DataChunk, bool, error) {
	return nil, false, nil
}
