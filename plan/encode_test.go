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
	"testing"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/exec"
)

func TestEncodeDecodeRoundTripsScanFilterAggregate(t *testing.T) {
	root := chain(
		&Scan{Label: "Person", Var: "n"},
		&Filter{Predicate: Binary{Op: OpGte, Left: Variable{Name: "n"}, Right: Literal{Value: engine.Int64(1)}}},
		&Aggregate{KeyCols: []string{"n"}, Specs: []exec.AggSpec{{Kind: exec.AccumCount, Column: "n", As: "total"}}},
	)
	tree := &Tree{Root: root}

	buf, st := Encode(tree)
	got, err := Decode(buf, st)
	if err != nil {
		t.Fatal(err)
	}

	agg, ok := got.Root.(*Aggregate)
	if !ok {
		t.Fatalf("root is %T, want *Aggregate", got.Root)
	}
	if len(agg.Specs) != 1 || agg.Specs[0].As != "total" || agg.Specs[0].Kind != exec.AccumCount {
		t.Fatalf("got specs %+v", agg.Specs)
	}
	if len(agg.KeyCols) != 1 || agg.KeyCols[0] != "n" {
		t.Fatalf("got keyCols %+v", agg.KeyCols)
	}

	filt, ok := agg.input().(*Filter)
	if !ok {
		t.Fatalf("agg input is %T, want *Filter", agg.input())
	}
	bin, ok := filt.Predicate.(Binary)
	if !ok {
		t.Fatalf("predicate is %T, want Binary", filt.Predicate)
	}
	if bin.Op != OpGte {
		t.Fatalf("got op %v, want OpGte", bin.Op)
	}
	lit, ok := bin.Right.(Literal)
	if !ok {
		t.Fatalf("right operand is %T, want Literal", bin.Right)
	}
	n, _ := lit.Value.AsInt64()
	if n != 1 {
		t.Fatalf("got literal %d, want 1", n)
	}

	scan, ok := filt.input().(*Scan)
	if !ok {
		t.Fatalf("filter input is %T, want *Scan", filt.input())
	}
	if scan.Label != "Person" || scan.Var != "n" {
		t.Fatalf("got scan %+v", scan)
	}
}

func TestEncodeDecodeRoundTripsJoinAndUnion(t *testing.T) {
	left := chain(&Scan{Label: "A", Var: "n"}, &Return{Columns: []string{"n"}, Aliases: []string{""}})
	right := chain(&Scan{Label: "B", Var: "n"}, &Return{Columns: []string{"n"}, Aliases: []string{""}})
	root := &Union{Right: right}
	root.setinput(left)
	tree := &Tree{Root: root}

	buf, st := Encode(tree)
	got, err := Decode(buf, st)
	if err != nil {
		t.Fatal(err)
	}
	u, ok := got.Root.(*Union)
	if !ok {
		t.Fatalf("root is %T, want *Union", got.Root)
	}
	if u.Right == nil || u.input() == nil {
		t.Fatal("expected both Union branches to round-trip non-nil")
	}
}
