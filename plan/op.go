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

// Package plan implements the logical query plan IR of spec.md §4.7:
// a tagged tree of traversal and write operators produced by a
// front-end translator (translate/gremlin), optionally rewritten, and
// finally compiled into an exec.Pipeline of physical push operators.
// The tree shape -- one Op chaining to another via input()/setinput()
// the way plan.Op does in the teacher package -- is kept unchanged;
// only the operator vocabulary and the final compile step are
// rewritten for the property-graph domain.
package plan

import (
	"fmt"
	"strings"
)

// Op is one node of a logical plan chain. Every concrete operator
// embeds a from field pointing at its single logical input (nil for a
// source operator like Scan), mirroring the teacher's Op.input()/
// Op.setinput() contract so the tree can be walked and rewritten
// uniformly regardless of operator kind.
type Op interface {
	input() Op
	setinput(Op)
	// describe appends a human-readable line (or lines) for this
	// operator at the given indent to dst, then recurses into its
	// input so printing a Tree reads top-down from the root.
	describe(indent int, dst *strings.Builder)
	fmt.Stringer
}

// base is embedded by every concrete Op to provide the shared
// from-pointer plumbing; concrete ops only implement String() and any
// operator-specific fields.
type base struct {
	from Op
}

func (b *base) input() Op     { return b.from }
func (b *base) setinput(o Op) { b.from = o }

// Chain sets input as op's logical input and returns op, the one piece
// of chain-building a front-end translator needs from outside this
// package (setinput itself stays unexported so only Chain can rewire
// a tree's shape).
func Chain(op Op, input Op) Op {
	op.setinput(input)
	return op
}

func tabify(n int, dst *strings.Builder) {
	for i := 0; i < n; i++ {
		dst.WriteByte('\t')
	}
}

// Tree is a complete compiled query: a chain of Ops rooted at Root,
// read bottom-to-top (Root is the final operator, e.g. a Return or a
// write operator; its input() chain runs back to one or more Scan
// operators).
type Tree struct {
	Root Op
}

// String implements fmt.Stringer, printing the plan top-down.
func (t *Tree) String() string {
	if t.Root == nil {
		return ""
	}
	var b strings.Builder
	t.Root.describe(0, &b)
	return b.String()
}

// Walk calls fn once for every Op in the chain, from Root back to the
// deepest input.
func Walk(root Op, fn func(Op)) {
	for o := root; o != nil; o = o.input() {
		fn(o)
	}
}
