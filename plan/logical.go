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

package plan

import (
	"fmt"
	"strings"

	"github.com/vertexdb/lpg/exec"
)

// Scan is the logical form of exec.NodeScan: every traversal starts
// at one of these (spec.md §4.7's translator contract: "well-formed
// tree... rooted in one or more Scan operators").
type Scan struct {
	base
	Label string
	Var   string
}

func (s *Scan) String() string { return fmt.Sprintf("Scan(label=%q) -> %s", s.Label, s.Var) }
func (s *Scan) describe(indent int, dst *strings.Builder) {
	tabify(indent, dst)
	dst.WriteString(s.String())
	dst.WriteByte('\n')
}

// Expand is the logical form of exec.Expand.
type Expand struct {
	base
	Spec exec.ExpandSpec
}

func (e *Expand) String() string {
	return fmt.Sprintf("Expand(%s -[%s]-> %s)", e.Spec.SrcVar, e.Spec.EdgeType, e.Spec.DstVar)
}
func (e *Expand) describe(indent int, dst *strings.Builder) {
	if e.from != nil {
		e.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(e.String())
	dst.WriteByte('\n')
}

// Filter is the logical form of exec.Filter.
type Filter struct {
	base
	Predicate Expr
}

func (f *Filter) String() string { return fmt.Sprintf("Filter(%s)", f.Predicate) }
func (f *Filter) describe(indent int, dst *strings.Builder) {
	if f.from != nil {
		f.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(f.String())
	dst.WriteByte('\n')
}

// Project renames/narrows the bound columns flowing downstream,
// aliasing rather than copying (spec.md §4.5).
type Project struct {
	base
	Columns  []string
	Aliases  []string // same length as Columns; "" means no rename
}

func (p *Project) String() string { return fmt.Sprintf("Project(%v)", p.Columns) }
func (p *Project) describe(indent int, dst *strings.Builder) {
	if p.from != nil {
		p.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(p.String())
	dst.WriteByte('\n')
}

// Return is the terminal read operator a well-formed tree must be
// rooted in (spec.md §4.7's translator contract), structurally
// identical to Project but named for what it is: the statement's
// final output row shape.
type Return struct {
	base
	Columns []string
	Aliases []string
}

func (r *Return) String() string { return fmt.Sprintf("Return(%v)", r.Columns) }
func (r *Return) describe(indent int, dst *strings.Builder) {
	if r.from != nil {
		r.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(r.String())
	dst.WriteByte('\n')
}

// Aggregate is the logical form of exec.Aggregate.
type Aggregate struct {
	base
	KeyCols []string
	Specs   []exec.AggSpec
}

func (a *Aggregate) String() string { return fmt.Sprintf("Aggregate(keys=%v)", a.KeyCols) }
func (a *Aggregate) describe(indent int, dst *strings.Builder) {
	if a.from != nil {
		a.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(a.String())
	dst.WriteByte('\n')
}

// Sort is the logical form of exec.Sort.
type Sort struct {
	base
	Keys []exec.SortKey
}

func (s *Sort) String() string { return fmt.Sprintf("Sort(%v)", s.Keys) }
func (s *Sort) describe(indent int, dst *strings.Builder) {
	if s.from != nil {
		s.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(s.String())
	dst.WriteByte('\n')
}

// Skip is the logical form of exec.Skip.
type Skip struct {
	base
	N int
}

func (s *Skip) String() string { return fmt.Sprintf("Skip(%d)", s.N) }
func (s *Skip) describe(indent int, dst *strings.Builder) {
	if s.from != nil {
		s.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(s.String())
	dst.WriteByte('\n')
}

// Limit is the logical form of exec.Limit.
type Limit struct {
	base
	N int
}

func (l *Limit) String() string { return fmt.Sprintf("Limit(%d)", l.N) }
func (l *Limit) describe(indent int, dst *strings.Builder) {
	if l.from != nil {
		l.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(l.String())
	dst.WriteByte('\n')
}

// Distinct is the logical form of exec.Distinct.
type Distinct struct {
	base
	Columns []string
}

func (d *Distinct) String() string { return fmt.Sprintf("Distinct(%v)", d.Columns) }
func (d *Distinct) describe(indent int, dst *strings.Builder) {
	if d.from != nil {
		d.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(d.String())
	dst.WriteByte('\n')
}

// CreateNode is the logical form of exec.CreateNode.
type CreateNode struct {
	base
	Labels []string
	Props  []LogicalPropSpec
	OutVar string
}

// LogicalPropSpec is a PropSpec whose value is still an unevaluated
// Expr, compiled just before the exec operator is built.
type LogicalPropSpec struct {
	Key  string
	Expr Expr
}

func (c *CreateNode) String() string { return fmt.Sprintf("CreateNode(%v) -> %s", c.Labels, c.OutVar) }
func (c *CreateNode) describe(indent int, dst *strings.Builder) {
	if c.from != nil {
		c.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(c.String())
	dst.WriteByte('\n')
}

// CreateEdge is the logical form of exec.CreateEdge.
type CreateEdge struct {
	base
	EdgeType       string
	SrcVar, DstVar string
	Props          []LogicalPropSpec
	OutVar         string
}

func (c *CreateEdge) String() string {
	return fmt.Sprintf("CreateEdge(%s: %s -> %s) -> %s", c.EdgeType, c.SrcVar, c.DstVar, c.OutVar)
}
func (c *CreateEdge) describe(indent int, dst *strings.Builder) {
	if c.from != nil {
		c.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(c.String())
	dst.WriteByte('\n')
}

// SetProperty is the logical form of exec.SetProperty.
type SetProperty struct {
	base
	Kind      exec.EntityKind
	TargetVar string
	Key       string
	Expr      Expr
}

func (s *SetProperty) String() string { return fmt.Sprintf("SetProperty(%s.%s)", s.TargetVar, s.Key) }
func (s *SetProperty) describe(indent int, dst *strings.Builder) {
	if s.from != nil {
		s.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(s.String())
	dst.WriteByte('\n')
}

// DeleteNode is the logical form of exec.Delete.
type DeleteNode struct {
	base
	Kind      exec.EntityKind
	TargetVar string
}

func (d *DeleteNode) String() string { return fmt.Sprintf("Delete(%s)", d.TargetVar) }
func (d *DeleteNode) describe(indent int, dst *strings.Builder) {
	if d.from != nil {
		d.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(d.String())
	dst.WriteByte('\n')
}

// Union concatenates two branches' output rows (e.g. a Gremlin
// union() step); its base.from holds the left branch and Right the
// second, so Walk only visits the left spine -- a compiler must
// special-case Union to recurse into Right too.
type Union struct {
	base
	Right Op
}

func (u *Union) String() string { return "Union" }
func (u *Union) describe(indent int, dst *strings.Builder) {
	if u.from != nil {
		u.from.describe(indent, dst)
	}
	if u.Right != nil {
		u.Right.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(u.String())
	dst.WriteByte('\n')
}

// JoinKind selects which physical strategy compile.go should use for
// a Join.
type JoinKind int

const (
	JoinHash JoinKind = iota
	JoinWCOJ
)

// Join is the logical form of a HashJoin or TrieJoin: base.from is
// the build/probe-left branch for a hash join, or unused for a WCOJ
// (whose operand tries are supplied directly to Compile by the
// translator, since a multiway join's inputs are index.Trie instances
// built ahead of time from the Store's secondary indexes, not
// streaming chunk sources).
type Join struct {
	base
	Kind              JoinKind
	Right             Op // build side for JoinHash; unused for JoinWCOJ
	LeftKey, RightKey string
}

func (j *Join) String() string { return fmt.Sprintf("Join(%s = %s)", j.LeftKey, j.RightKey) }
func (j *Join) describe(indent int, dst *strings.Builder) {
	if j.from != nil {
		j.from.describe(indent, dst)
	}
	if j.Right != nil {
		j.Right.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(j.String())
	dst.WriteByte('\n')
}

// Optional is the logical form of exec.OptionalExpand: Gremlin's
// optional() step restricted to its common shape, a single expand
// whose source rows must all survive even when no neighbor matches
// (spec.md's Non-goals do not exclude optional traversal; it's a
// supplemental feature per original_source/'s pattern-matching
// semantics, scoped here to one expand rather than an arbitrary
// wrapped subtree).
type Optional struct {
	base
	Spec exec.ExpandSpec
}

func (o *Optional) String() string {
	return fmt.Sprintf("Optional(Expand %s -[%s]-> %s)", o.Spec.SrcVar, o.Spec.EdgeType, o.Spec.DstVar)
}
func (o *Optional) describe(indent int, dst *strings.Builder) {
	if o.from != nil {
		o.from.describe(indent, dst)
	}
	tabify(indent, dst)
	dst.WriteString(o.String())
	dst.WriteByte('\n')
}
