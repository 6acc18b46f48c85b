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
	"context"
	"fmt"

	"github.com/vertexdb/lpg/exec"
	"github.com/vertexdb/lpg/graph"
	"github.com/vertexdb/lpg/vector"
)

// bufferedSource replays a fixed list of chunks, the Source shape a
// Union's or a hash join's build side needs once its branch has
// already been run to completion and materialized (spec.md §4.7: a
// translator "may eagerly materialize a branch when a physical
// operator's strategy requires it," e.g. a hash join's build side).
type bufferedSource struct {
	chunks []*vector.DataChunk
}

func (b *bufferedSource) Pull(ctx *exec.Context) (*vector.DataChunk, bool, error) {
	if len(b.chunks) == 0 {
		return nil, false, nil
	}
	c := b.chunks[0]
	b.chunks = b.chunks[1:]
	return c, true, nil
}

// Compile lowers a logical plan rooted at root into a Source and an
// ordered operator chain ready to drive an exec.Pipeline, per
// spec.md §4.7's "compiled into a physical push-operator tree bound
// to a Store snapshot." mem and spill may be nil for operators that
// never need to spill (a plan with no Aggregate/Sort/hash-join build
// side). Every write operator in the tree mutates store directly.
func Compile(root Op, store *graph.Store, mem *exec.MemoryContext, spill *exec.SpillManager) (exec.Source, []exec.PushOperator, error) {
	return compile(root, store, store, mem, spill)
}

// CompileWithMutator is Compile, but every write operator in the tree
// calls mutator instead of store directly. store still backs every
// read (Scan, Expand): a mutator decorator only needs to observe
// writes, e.g. logging a walio.Record per call, and passing the real
// store to a plain Compile would bypass that. mutator is typically
// store itself wrapped by a decorator; store is still required
// because reads go through it regardless of who mutates.
func CompileWithMutator(root Op, store *graph.Store, mutator exec.Mutator, mem *exec.MemoryContext, spill *exec.SpillManager) (exec.Source, []exec.PushOperator, error) {
	return compile(root, store, mutator, mem, spill)
}

func compile(op Op, store *graph.Store, mutator exec.Mutator, mem *exec.MemoryContext, spill *exec.SpillManager) (exec.Source, []exec.PushOperator, error) {
	switch v := op.(type) {
	case *Scan:
		return exec.NewNodeScan(store, v.Label, v.Var), nil, nil

	case *Expand:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewExpand(store, v.Spec)), nil

	case *Optional:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewOptionalExpand(store, v.Spec)), nil

	case *Filter:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewFilter(CompilePredicate(v.Predicate))), nil

	case *Project:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewProject(v.Columns, v.Aliases)), nil

	case *Return:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewProject(v.Columns, v.Aliases)), nil

	case *Aggregate:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewAggregate(v.KeyCols, v.Specs, mem, spill)), nil

	case *Sort:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewSort(v.Keys, mem, spill)), nil

	case *Skip:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewSkip(v.N)), nil

	case *Limit:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewLimit(v.N)), nil

	case *Distinct:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewDistinct(v.Columns)), nil

	case *CreateNode:
		var src exec.Source
		var ops []exec.PushOperator
		if v.from == nil {
			// addV() as a traversal source: run once against a single empty row.
			row := vector.NewDataChunk(1)
			row.SetCount(1)
			src = &bufferedSource{chunks: []*vector.DataChunk{row}}
		} else {
			var err error
			src, ops, err = compile(v.from, store, mutator, mem, spill)
			if err != nil {
				return nil, nil, err
			}
		}
		return src, append(ops, exec.NewCreateNode(mutator, v.Labels, compileProps(v.Props), v.OutVar)), nil

	case *CreateEdge:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewCreateEdge(mutator, v.EdgeType, v.SrcVar, v.DstVar, compileProps(v.Props), v.OutVar)), nil

	case *SetProperty:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewSetProperty(mutator, v.Kind, v.TargetVar, v.Key, v.Expr.Compile())), nil

	case *DeleteNode:
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, exec.NewDelete(mutator, v.Kind, v.TargetVar)), nil

	case *Union:
		left, err := runToChunks(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		right, err := runToChunks(v.Right, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return &bufferedSource{chunks: append(left, right...)}, nil, nil

	case *Join:
		if v.Kind == JoinWCOJ {
			return nil, nil, fmt.Errorf("plan: worst-case-optimal joins are compiled via CompileTrieJoin, not Compile")
		}
		buildChunks, err := runToChunks(v.Right, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		hj := exec.NewHashJoin(v.RightKey, v.LeftKey)
		for _, c := range buildChunks {
			hj.Build(c)
		}
		src, ops, err := compile(v.from, store, mutator, mem, spill)
		if err != nil {
			return nil, nil, err
		}
		return src, append(ops, hj), nil

	default:
		return nil, nil, fmt.Errorf("plan: unknown op type %T", op)
	}
}

func compileProps(props []LogicalPropSpec) []exec.PropSpec {
	if props == nil {
		return nil
	}
	out := make([]exec.PropSpec, len(props))
	for i, p := range props {
		out[i] = exec.PropSpec{Key: p.Key, Expr: p.Expr.Compile()}
	}
	return out
}

// runToChunks compiles op and runs it to completion against a fresh
// CursorSink, returning every row it produced; used for plan branches
// a physical strategy must materialize before the rest of the tree
// can consume it (Union's two arms, a hash join's build side).
func runToChunks(op Op, store *graph.Store, mutator exec.Mutator, mem *exec.MemoryContext, spill *exec.SpillManager) ([]*vector.DataChunk, error) {
	src, ops, err := compile(op, store, mutator, mem, spill)
	if err != nil {
		return nil, err
	}
	sink := exec.NewCursorSink()
	pipe := &exec.Pipeline{Source: src, Ops: ops, Sink: sink}
	ctx := &exec.Context{Context: context.Background(), Mem: mem}
	if err := pipe.Run(ctx); err != nil {
		return nil, err
	}
	var chunks []*vector.DataChunk
	for {
		c, ok := sink.Next()
		if !ok {
			break
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
