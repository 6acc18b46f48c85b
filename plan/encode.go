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

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/exec"
	"github.com/vertexdb/lpg/wire"
)

// Encode serializes a logical plan tree for caching a prepared
// statement's plan across a connection (spec.md §4.7 names "a stable,
// serializable plan representation a caller can prepare once and
// execute repeatedly" among the ambient concerns a real engine
// carries). The returned Symtab must accompany buf; Decode needs it
// to resolve field labels back to strings.
func Encode(t *Tree) ([]byte, *wire.Symtab) {
	st := engine.NewDict()
	var b wire.Buffer
	encodeOp(&b, st, t.Root)
	return b.Bytes(), st
}

// Decode rebuilds a Tree from bytes produced by Encode, using the
// Symtab Encode returned alongside them.
func Decode(buf []byte, st *wire.Symtab) (*Tree, error) {
	d, err := wire.Decode(buf, st)
	if err != nil {
		return nil, err
	}
	root, err := decodeOp(d)
	if err != nil {
		return nil, err
	}
	return &Tree{Root: root}, nil
}

func field(b *wire.Buffer, st *wire.Symtab, name string) {
	b.BeginField(st.Intern(name))
}

func writeStrings(b *wire.Buffer, st *wire.Symtab, name string, ss []string) {
	field(b, st, name)
	b.BeginList(len(ss))
	for _, s := range ss {
		b.WriteString(s)
	}
	b.EndList()
}

func readStrings(d wire.Datum) ([]string, error) {
	items, ok := d.Items()
	if !ok {
		return nil, fmt.Errorf("plan: expected a list of strings")
	}
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.String()
		if !ok {
			return nil, fmt.Errorf("plan: list element %d is not a string", i)
		}
		out[i] = s
	}
	return out, nil
}

func encodeOpField(b *wire.Buffer, st *wire.Symtab, name string, op Op) {
	field(b, st, name)
	if op == nil {
		b.WriteNull()
		return
	}
	encodeOp(b, st, op)
}

func decodeOpField(d wire.Datum) (Op, error) {
	if d.IsNull() {
		return nil, nil
	}
	return decodeOp(d)
}

// encodeOp writes op (and, via the "from" field, everything upstream
// of it) as a tagged struct. Every concrete type in logical.go has a
// case here; encodeExpr/decodeExpr mirror the same pattern one level
// down for Filter predicates and write-operator value expressions.
func encodeOp(b *wire.Buffer, st *wire.Symtab, op Op) {
	b.BeginStruct(0)
	switch v := op.(type) {
	case *Scan:
		field(b, st, "type")
		b.WriteString("Scan")
		field(b, st, "label")
		b.WriteString(v.Label)
		field(b, st, "var")
		b.WriteString(v.Var)

	case *Expand:
		field(b, st, "type")
		b.WriteString("Expand")
		encodeOpField(b, st, "from", v.from)
		encodeExpandSpec(b, st, v.Spec)

	case *Optional:
		field(b, st, "type")
		b.WriteString("Optional")
		encodeOpField(b, st, "from", v.from)
		encodeExpandSpec(b, st, v.Spec)

	case *Filter:
		field(b, st, "type")
		b.WriteString("Filter")
		encodeOpField(b, st, "from", v.from)
		field(b, st, "predicate")
		encodeExpr(b, st, v.Predicate)

	case *Project:
		field(b, st, "type")
		b.WriteString("Project")
		encodeOpField(b, st, "from", v.from)
		writeStrings(b, st, "columns", v.Columns)
		writeStrings(b, st, "aliases", v.Aliases)

	case *Return:
		field(b, st, "type")
		b.WriteString("Return")
		encodeOpField(b, st, "from", v.from)
		writeStrings(b, st, "columns", v.Columns)
		writeStrings(b, st, "aliases", v.Aliases)

	case *Skip:
		field(b, st, "type")
		b.WriteString("Skip")
		encodeOpField(b, st, "from", v.from)
		field(b, st, "n")
		b.WriteInt(int64(v.N))

	case *Limit:
		field(b, st, "type")
		b.WriteString("Limit")
		encodeOpField(b, st, "from", v.from)
		field(b, st, "n")
		b.WriteInt(int64(v.N))

	case *Distinct:
		field(b, st, "type")
		b.WriteString("Distinct")
		encodeOpField(b, st, "from", v.from)
		writeStrings(b, st, "columns", v.Columns)

	case *DeleteNode:
		field(b, st, "type")
		b.WriteString("DeleteNode")
		encodeOpField(b, st, "from", v.from)
		field(b, st, "kind")
		b.WriteInt(int64(v.Kind))
		field(b, st, "targetVar")
		b.WriteString(v.TargetVar)

	case *SetProperty:
		field(b, st, "type")
		b.WriteString("SetProperty")
		encodeOpField(b, st, "from", v.from)
		field(b, st, "kind")
		b.WriteInt(int64(v.Kind))
		field(b, st, "targetVar")
		b.WriteString(v.TargetVar)
		field(b, st, "key")
		b.WriteString(v.Key)
		field(b, st, "expr")
		encodeExpr(b, st, v.Expr)

	case *Union:
		field(b, st, "type")
		b.WriteString("Union")
		encodeOpField(b, st, "from", v.from)
		encodeOpField(b, st, "right", v.Right)

	case *Join:
		field(b, st, "type")
		b.WriteString("Join")
		encodeOpField(b, st, "from", v.from)
		encodeOpField(b, st, "right", v.Right)
		field(b, st, "kind")
		b.WriteInt(int64(v.Kind))
		field(b, st, "leftKey")
		b.WriteString(v.LeftKey)
		field(b, st, "rightKey")
		b.WriteString(v.RightKey)

	default:
		// CreateNode/CreateEdge/Aggregate/Sort carry slices of
		// expression specs; encoded separately since they don't fit
		// the scalar-field shape above.
		encodeComplexOp(b, st, op)
	}
	b.EndStruct()
}

func encodeComplexOp(b *wire.Buffer, st *wire.Symtab, op Op) {
	switch v := op.(type) {
	case *Aggregate:
		field(b, st, "type")
		b.WriteString("Aggregate")
		encodeOpField(b, st, "from", v.from)
		writeStrings(b, st, "keyCols", v.KeyCols)
		field(b, st, "specs")
		b.BeginList(len(v.Specs))
		for _, s := range v.Specs {
			b.BeginStruct(0)
			field(b, st, "kind")
			b.WriteInt(int64(s.Kind))
			field(b, st, "column")
			b.WriteString(s.Column)
			field(b, st, "as")
			b.WriteString(s.As)
			b.EndStruct()
		}
		b.EndList()

	case *Sort:
		field(b, st, "type")
		b.WriteString("Sort")
		encodeOpField(b, st, "from", v.from)
		field(b, st, "keys")
		b.BeginList(len(v.Keys))
		for _, k := range v.Keys {
			b.BeginStruct(0)
			field(b, st, "column")
			b.WriteString(k.Column)
			field(b, st, "desc")
			b.WriteBool(k.Desc)
			field(b, st, "nullsFirst")
			b.WriteBool(k.NullsFirst)
			b.EndStruct()
		}
		b.EndList()

	case *CreateNode:
		field(b, st, "type")
		b.WriteString("CreateNode")
		encodeOpField(b, st, "from", v.from)
		writeStrings(b, st, "labels", v.Labels)
		encodePropSpecs(b, st, v.Props)
		field(b, st, "outVar")
		b.WriteString(v.OutVar)

	case *CreateEdge:
		field(b, st, "type")
		b.WriteString("CreateEdge")
		encodeOpField(b, st, "from", v.from)
		field(b, st, "edgeType")
		b.WriteString(v.EdgeType)
		field(b, st, "srcVar")
		b.WriteString(v.SrcVar)
		field(b, st, "dstVar")
		b.WriteString(v.DstVar)
		encodePropSpecs(b, st, v.Props)
		field(b, st, "outVar")
		b.WriteString(v.OutVar)

	default:
		panic(fmt.Sprintf("plan: encodeOp: unhandled op type %T", op))
	}
}

func encodePropSpecs(b *wire.Buffer, st *wire.Symtab, props []LogicalPropSpec) {
	field(b, st, "props")
	b.BeginList(len(props))
	for _, p := range props {
		b.BeginStruct(0)
		field(b, st, "key")
		b.WriteString(p.Key)
		field(b, st, "expr")
		encodeExpr(b, st, p.Expr)
		b.EndStruct()
	}
	b.EndList()
}

func encodeExpandSpec(b *wire.Buffer, st *wire.Symtab, s exec.ExpandSpec) {
	field(b, st, "direction")
	b.WriteInt(int64(s.Direction))
	field(b, st, "edgeType")
	b.WriteString(s.EdgeType)
	field(b, st, "minHops")
	b.WriteInt(int64(s.MinHops))
	field(b, st, "maxHops")
	b.WriteInt(int64(s.MaxHops))
	field(b, st, "srcVar")
	b.WriteString(s.SrcVar)
	field(b, st, "dstVar")
	b.WriteString(s.DstVar)
	field(b, st, "edgeVar")
	b.WriteString(s.EdgeVar)
	field(b, st, "unique")
	b.WriteBool(s.Unique)
}

func decodeExpandSpec(fields map[string]wire.Datum) (exec.ExpandSpec, error) {
	var s exec.ExpandSpec
	if v, ok := fields["direction"].Int(); ok {
		s.Direction = exec.Direction(v)
	}
	if v, ok := fields["edgeType"].String(); ok {
		s.EdgeType = v
	}
	if v, ok := fields["minHops"].Int(); ok {
		s.MinHops = int(v)
	}
	if v, ok := fields["maxHops"].Int(); ok {
		s.MaxHops = int(v)
	}
	if v, ok := fields["srcVar"].String(); ok {
		s.SrcVar = v
	}
	if v, ok := fields["dstVar"].String(); ok {
		s.DstVar = v
	}
	if v, ok := fields["edgeVar"].String(); ok {
		s.EdgeVar = v
	}
	if v, ok := fields["unique"].Bool(); ok {
		s.Unique = v
	}
	return s, nil
}

// decodeOp rebuilds one Op (and, recursively, its from/right
// branches) from a decoded struct Datum.
func decodeOp(d wire.Datum) (Op, error) {
	if d.Kind() != wire.KStruct {
		return nil, fmt.Errorf("plan: decodeOp: expected a struct, got kind %d", d.Kind())
	}
	flat := map[string]wire.Datum{}
	var kind string
	var from, right Op
	var err error
	walkErr := d.UnpackStruct(func(f wire.Field) error {
		switch f.Label {
		case "type":
			kind, _ = f.Datum.String()
		case "from":
			from, err = decodeOpField(f.Datum)
			if err != nil {
				return err
			}
		case "right":
			right, err = decodeOpField(f.Datum)
			if err != nil {
				return err
			}
		default:
			flat[f.Label] = f.Datum
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	switch kind {
	case "Scan":
		label, _ := flat["label"].String()
		v, _ := flat["var"].String()
		return &Scan{Label: label, Var: v}, nil

	case "Expand":
		spec, err := decodeExpandSpec(flat)
		if err != nil {
			return nil, err
		}
		o := &Expand{Spec: spec}
		o.from = from
		return o, nil

	case "Optional":
		spec, err := decodeExpandSpec(flat)
		if err != nil {
			return nil, err
		}
		o := &Optional{Spec: spec}
		o.from = from
		return o, nil

	case "Filter":
		pred, err := decodeExpr(flat["predicate"])
		if err != nil {
			return nil, err
		}
		o := &Filter{Predicate: pred}
		o.from = from
		return o, nil

	case "Project":
		cols, err := readStrings(flat["columns"])
		if err != nil {
			return nil, err
		}
		aliases, err := readStrings(flat["aliases"])
		if err != nil {
			return nil, err
		}
		o := &Project{Columns: cols, Aliases: aliases}
		o.from = from
		return o, nil

	case "Return":
		cols, err := readStrings(flat["columns"])
		if err != nil {
			return nil, err
		}
		aliases, err := readStrings(flat["aliases"])
		if err != nil {
			return nil, err
		}
		o := &Return{Columns: cols, Aliases: aliases}
		o.from = from
		return o, nil

	case "Skip":
		n, _ := flat["n"].Int()
		o := &Skip{N: int(n)}
		o.from = from
		return o, nil

	case "Limit":
		n, _ := flat["n"].Int()
		o := &Limit{N: int(n)}
		o.from = from
		return o, nil

	case "Distinct":
		cols, err := readStrings(flat["columns"])
		if err != nil {
			return nil, err
		}
		o := &Distinct{Columns: cols}
		o.from = from
		return o, nil

	case "DeleteNode":
		k, _ := flat["kind"].Int()
		targetVar, _ := flat["targetVar"].String()
		o := &DeleteNode{Kind: exec.EntityKind(k), TargetVar: targetVar}
		o.from = from
		return o, nil

	case "SetProperty":
		k, _ := flat["kind"].Int()
		targetVar, _ := flat["targetVar"].String()
		key, _ := flat["key"].String()
		e, err := decodeExpr(flat["expr"])
		if err != nil {
			return nil, err
		}
		o := &SetProperty{Kind: exec.EntityKind(k), TargetVar: targetVar, Key: key, Expr: e}
		o.from = from
		return o, nil

	case "Union":
		o := &Union{Right: right}
		o.from = from
		return o, nil

	case "Join":
		k, _ := flat["kind"].Int()
		leftKey, _ := flat["leftKey"].String()
		rightKey, _ := flat["rightKey"].String()
		o := &Join{Kind: JoinKind(k), Right: right, LeftKey: leftKey, RightKey: rightKey}
		o.from = from
		return o, nil

	case "Aggregate":
		keyCols, err := readStrings(flat["keyCols"])
		if err != nil {
			return nil, err
		}
		items, _ := flat["specs"].Items()
		specs := make([]exec.AggSpec, len(items))
		for i, it := range items {
			var sk int64
			var col, as string
			it.UnpackStruct(func(f wire.Field) error {
				switch f.Label {
				case "kind":
					sk, _ = f.Datum.Int()
				case "column":
					col, _ = f.Datum.String()
				case "as":
					as, _ = f.Datum.String()
				}
				return nil
			})
			specs[i] = exec.AggSpec{Kind: exec.AccumKind(sk), Column: col, As: as}
		}
		o := &Aggregate{KeyCols: keyCols, Specs: specs}
		o.from = from
		return o, nil

	case "Sort":
		items, _ := flat["keys"].Items()
		keys := make([]exec.SortKey, len(items))
		for i, it := range items {
			var col string
			var desc, nullsFirst bool
			it.UnpackStruct(func(f wire.Field) error {
				switch f.Label {
				case "column":
					col, _ = f.Datum.String()
				case "desc":
					desc, _ = f.Datum.Bool()
				case "nullsFirst":
					nullsFirst, _ = f.Datum.Bool()
				}
				return nil
			})
			keys[i] = exec.SortKey{Column: col, Desc: desc, NullsFirst: nullsFirst}
		}
		o := &Sort{Keys: keys}
		o.from = from
		return o, nil

	case "CreateNode":
		labels, err := readStrings(flat["labels"])
		if err != nil {
			return nil, err
		}
		props, err := decodePropSpecs(flat["props"])
		if err != nil {
			return nil, err
		}
		outVar, _ := flat["outVar"].String()
		o := &CreateNode{Labels: labels, Props: props, OutVar: outVar}
		o.from = from
		return o, nil

	case "CreateEdge":
		edgeType, _ := flat["edgeType"].String()
		srcVar, _ := flat["srcVar"].String()
		dstVar, _ := flat["dstVar"].String()
		props, err := decodePropSpecs(flat["props"])
		if err != nil {
			return nil, err
		}
		outVar, _ := flat["outVar"].String()
		o := &CreateEdge{EdgeType: edgeType, SrcVar: srcVar, DstVar: dstVar, Props: props, OutVar: outVar}
		o.from = from
		return o, nil

	default:
		return nil, fmt.Errorf("plan: decodeOp: unknown op type %q", kind)
	}
}

func decodePropSpecs(d wire.Datum) ([]LogicalPropSpec, error) {
	items, ok := d.Items()
	if !ok {
		return nil, nil
	}
	out := make([]LogicalPropSpec, len(items))
	for i, it := range items {
		var key string
		var e Expr
		var err error
		walkErr := it.UnpackStruct(func(f wire.Field) error {
			switch f.Label {
			case "key":
				key, _ = f.Datum.String()
			case "expr":
				e, err = decodeExpr(f.Datum)
				return err
			}
			return nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
		out[i] = LogicalPropSpec{Key: key, Expr: e}
	}
	return out, nil
}

// encodeExpr/decodeExpr mirror encodeOp/decodeOp one level down, for
// the Expr tree feeding Filter predicates and write-operator values.
func encodeExpr(b *wire.Buffer, st *wire.Symtab, e Expr) {
	b.BeginStruct(0)
	switch v := e.(type) {
	case Literal:
		field(b, st, "type")
		b.WriteString("Literal")
		field(b, st, "value")
		encodeValue(b, v.Value)

	case Variable:
		field(b, st, "type")
		b.WriteString("Variable")
		field(b, st, "name")
		b.WriteString(v.Name)

	case Property:
		field(b, st, "type")
		b.WriteString("Property")
		field(b, st, "entity")
		encodeExpr(b, st, v.Entity)
		field(b, st, "key")
		b.WriteString(v.Key)

	case Id:
		field(b, st, "type")
		b.WriteString("Id")
		field(b, st, "entity")
		encodeExpr(b, st, v.Entity)

	case Labels:
		field(b, st, "type")
		b.WriteString("Labels")
		field(b, st, "entity")
		encodeExpr(b, st, v.Entity)

	case List:
		field(b, st, "type")
		b.WriteString("List")
		field(b, st, "items")
		b.BeginList(len(v.Items))
		for _, it := range v.Items {
			encodeExpr(b, st, it)
		}
		b.EndList()

	case Binary:
		field(b, st, "type")
		b.WriteString("Binary")
		field(b, st, "op")
		b.WriteInt(int64(v.Op))
		field(b, st, "left")
		encodeExpr(b, st, v.Left)
		field(b, st, "right")
		encodeExpr(b, st, v.Right)

	case Unary:
		field(b, st, "type")
		b.WriteString("Unary")
		field(b, st, "op")
		b.WriteInt(int64(v.Op))
		field(b, st, "operand")
		encodeExpr(b, st, v.Operand)

	default:
		panic(fmt.Sprintf("plan: encodeExpr: unhandled expr type %T", e))
	}
	b.EndStruct()
}

func encodeValue(b *wire.Buffer, v engine.Value) {
	switch v.Kind() {
	case engine.KNull:
		b.WriteNull()
	case engine.KBool:
		bv, _ := v.AsBool()
		b.WriteBool(bv)
	case engine.KInt64:
		iv, _ := v.AsInt64()
		b.WriteInt(iv)
	case engine.KFloat64:
		fv, _ := v.AsFloat64()
		b.WriteFloat64(fv)
	case engine.KString:
		sv, _ := v.AsString()
		b.WriteString(sv)
	case engine.KBytes:
		bv, _ := v.AsBytes()
		b.WriteBlob(bv)
	default:
		// KList/KMap literals aren't needed by any compiled plan today;
		// encode as null rather than silently losing precision.
		b.WriteNull()
	}
}

func decodeValue(d wire.Datum) engine.Value {
	switch d.Kind() {
	case wire.KNull:
		return engine.Null()
	case wire.KBool:
		v, _ := d.Bool()
		return engine.Bool(v)
	case wire.KInt:
		v, _ := d.Int()
		return engine.Int64(v)
	case wire.KFloat:
		v, _ := d.Float()
		return engine.Float64(v)
	case wire.KString:
		v, _ := d.String()
		return engine.String(v)
	case wire.KBytes:
		v, _ := d.Bytes()
		return engine.Bytes(v)
	default:
		return engine.Null()
	}
}

func decodeExpr(d wire.Datum) (Expr, error) {
	if d.Kind() != wire.KStruct {
		return nil, fmt.Errorf("plan: decodeExpr: expected a struct, got kind %d", d.Kind())
	}
	var kind string
	flat := map[string]wire.Datum{}
	err := d.UnpackStruct(func(f wire.Field) error {
		if f.Label == "type" {
			kind, _ = f.Datum.String()
			return nil
		}
		flat[f.Label] = f.Datum
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch kind {
	case "Literal":
		return Literal{Value: decodeValue(flat["value"])}, nil
	case "Variable":
		name, _ := flat["name"].String()
		return Variable{Name: name}, nil
	case "Property":
		entity, err := decodeExpr(flat["entity"])
		if err != nil {
			return nil, err
		}
		key, _ := flat["key"].String()
		return Property{Entity: entity, Key: key}, nil
	case "Id":
		entity, err := decodeExpr(flat["entity"])
		if err != nil {
			return nil, err
		}
		return Id{Entity: entity}, nil
	case "Labels":
		entity, err := decodeExpr(flat["entity"])
		if err != nil {
			return nil, err
		}
		return Labels{Entity: entity}, nil
	case "List":
		items, _ := flat["items"].Items()
		out := make([]Expr, len(items))
		for i, it := range items {
			out[i], err = decodeExpr(it)
			if err != nil {
				return nil, err
			}
		}
		return List{Items: out}, nil
	case "Binary":
		op, _ := flat["op"].Int()
		l, err := decodeExpr(flat["left"])
		if err != nil {
			return nil, err
		}
		r, err := decodeExpr(flat["right"])
		if err != nil {
			return nil, err
		}
		return Binary{Op: BinaryOp(op), Left: l, Right: r}, nil
	case "Unary":
		op, _ := flat["op"].Int()
		operand, err := decodeExpr(flat["operand"])
		if err != nil {
			return nil, err
		}
		return Unary{Op: UnaryOp(op), Operand: operand}, nil
	default:
		return nil, fmt.Errorf("plan: decodeExpr: unknown expr type %q", kind)
	}
}
