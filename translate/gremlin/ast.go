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

package gremlin

import "github.com/vertexdb/lpg/engine"

// call is one "name(args...)" link in a fluent method chain, e.g.
// V(), hasLabel('Person'), or a predicate argument like gt(18).
type call struct {
	name string
	args []arg
}

// arg is either a literal value or a nested predicate call --
// has('age', gt(18))'s second argument is itself a call.
type arg struct {
	call  *call
	value engine.Value
	isRef bool   // an As()-bound identifier referenced bare, e.g. from('a')
	ref   string // the referenced identifier, when isRef
}

// statement is a parsed traversal: g.<source>(...).<step>(...)...
type statement struct {
	calls []call // calls[0] is the source (V/E/addV/addE)
}
