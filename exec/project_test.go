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

import "testing"

func TestProjectRenamesAndAliases(t *testing.T) {
	chunk := chunkOfInts("n.age", 30, 40)
	p := NewProject([]string{"n.age"}, []string{"age"})
	out, outcome, err := p.Push(testContext(), chunk)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Continue {
		t.Fatalf("outcome = %v, want Continue", outcome)
	}
	if _, ok := out.Column("n.age"); ok {
		t.Fatal("original name should not survive projection")
	}
	vec, ok := out.Column("age")
	if !ok {
		t.Fatal("expected aliased column age")
	}
	orig, _ := chunk.Column("n.age")
	if vec != orig {
		t.Fatal("Project must alias, not copy")
	}
}

func TestProjectUnknownColumnErrors(t *testing.T) {
	chunk := chunkOfInts("n", 1)
	p := NewProject([]string{"missing"}, []string{"x"})
	_, _, err := p.Push(testContext(), chunk)
	if err == nil {
		t.Fatal("expected error projecting an unbound column")
	}
}
