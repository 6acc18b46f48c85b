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

// Package walio implements the write-ahead log's on-disk format
// (spec.md §6): an append-only sequence of length-prefixed,
// CRC32C-checksummed records under path/wal/*.log, replayed in order
// on recovery up to the last committed transaction id. It is
// deliberately only the record sink and recovery reader -- the
// transaction manager and MVCC visibility oracle that decide what to
// log and when a transaction is durable are the opaque collaborators
// spec.md §1 keeps external to the core.
package walio

import (
	"fmt"

	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/wire"
)

// Kind identifies one WAL record's shape, matching spec.md §6's
// persisted-state layout exactly: "begin, create-node, create-edge,
// set-prop, delete, commit".
type Kind uint8

const (
	Begin Kind = iota
	CreateNode
	CreateEdge
	SetProp
	Delete
	Commit
)

func (k Kind) String() string {
	switch k {
	case Begin:
		return "begin"
	case CreateNode:
		return "create-node"
	case CreateEdge:
		return "create-edge"
	case SetProp:
		return "set-prop"
	case Delete:
		return "delete"
	case Commit:
		return "commit"
	default:
		return fmt.Sprintf("walio.Kind(%d)", uint8(k))
	}
}

// EntityKind distinguishes a node from an edge for SetProp and
// Delete records, which apply to either.
type EntityKind uint8

const (
	NodeEntity EntityKind = iota
	EdgeEntity
)

// Record is one WAL entry. Only the fields relevant to Kind are
// meaningful; the rest are zero. A single flat struct (rather than
// one Go type per Kind) keeps Append's call signature uniform and
// mirrors how compactly spec.md §6 lists the six record shapes.
type Record struct {
	Kind  Kind
	Txn   uint64

	// CreateNode
	NodeID engine.NodeId
	Labels []string
	Props  []Prop

	// CreateEdge
	EdgeID   engine.EdgeId
	EdgeType string
	Src      engine.NodeId
	Dst      engine.NodeId

	// SetProp, Delete
	Entity   EntityKind
	EntityID uint64
	Key      string
	Value    engine.Value
}

// Prop is one property key/value pair attached to a CreateNode or
// CreateEdge record.
type Prop struct {
	Key   string
	Value engine.Value
}

// fieldNames lists every struct field label a Record can encode, in
// a fixed order. Unlike plan.Encode, which mints a fresh Symtab per
// call and ships it alongside the bytes, a WAL segment is read back
// by a separate process after a crash with no side channel to carry
// a Symtab over -- so encode and decode instead share one symbol
// table built by interning this same slice in this same order,
// giving every field a fixed, reproducible Symbol before the first
// record is ever written.
var fieldNames = []string{
	"kind", "txn", "nodeId", "labels", "props", "key", "value",
	"edgeId", "edgeType", "src", "dst", "entity", "entityId",
}

// newSymtab returns a Symtab with every WAL field name interned in
// fieldNames order, so a Symbol assigned on one call to newSymtab
// always means the same field as the identical Symbol on any other.
func newSymtab() *wire.Symtab {
	st := engine.NewDict()
	for _, name := range fieldNames {
		st.Intern(name)
	}
	return st
}

func encodeRecord(st *wire.Symtab, r Record) []byte {
	var b wire.Buffer
	b.BeginStruct(0)

	field(&b, st, "kind")
	b.WriteInt(int64(r.Kind))
	field(&b, st, "txn")
	b.WriteUint(r.Txn)

	switch r.Kind {
	case CreateNode:
		field(&b, st, "nodeId")
		b.WriteUint(uint64(r.NodeID))
		field(&b, st, "labels")
		b.BeginList(len(r.Labels))
		for _, l := range r.Labels {
			b.WriteString(l)
		}
		b.EndList()
		encodeProps(&b, st, r.Props)

	case CreateEdge:
		field(&b, st, "edgeId")
		b.WriteUint(uint64(r.EdgeID))
		field(&b, st, "edgeType")
		b.WriteString(r.EdgeType)
		field(&b, st, "src")
		b.WriteUint(uint64(r.Src))
		field(&b, st, "dst")
		b.WriteUint(uint64(r.Dst))
		encodeProps(&b, st, r.Props)

	case SetProp:
		field(&b, st, "entity")
		b.WriteInt(int64(r.Entity))
		field(&b, st, "entityId")
		b.WriteUint(r.EntityID)
		field(&b, st, "key")
		b.WriteString(r.Key)
		field(&b, st, "value")
		encodeValue(&b, r.Value)

	case Delete:
		field(&b, st, "entity")
		b.WriteInt(int64(r.Entity))
		field(&b, st, "entityId")
		b.WriteUint(r.EntityID)

	case Begin, Commit:
		// txn alone is enough to mark the boundary.
	}

	b.EndStruct()
	return b.Bytes()
}

func encodeProps(b *wire.Buffer, st *wire.Symtab, props []Prop) {
	field(b, st, "props")
	b.BeginList(len(props))
	for _, p := range props {
		b.BeginStruct(0)
		field(b, st, "key")
		b.WriteString(p.Key)
		field(b, st, "value")
		encodeValue(b, p.Value)
		b.EndStruct()
	}
	b.EndList()
}

func encodeValue(b *wire.Buffer, v engine.Value) {
	switch v.Kind() {
	case engine.KNull:
		b.WriteNull()
	case engine.KBool:
		x, _ := v.AsBool()
		b.WriteBool(x)
	case engine.KInt64:
		x, _ := v.AsInt64()
		b.WriteInt(x)
	case engine.KFloat64:
		x, _ := v.AsFloat64()
		b.WriteFloat64(x)
	case engine.KString:
		x, _ := v.AsString()
		b.WriteString(x)
	case engine.KBytes:
		x, _ := v.AsBytes()
		b.WriteBlob(x)
	default:
		// Lists and maps do not occur as node/edge property values
		// (spec.md §3's PropertyKey -> scalar mapping); fall back to
		// null rather than panicking on a malformed caller.
		b.WriteNull()
	}
}

func decodeRecord(d wire.Datum) (Record, error) {
	var r Record
	err := d.UnpackStruct(func(f wire.Field) error {
		switch f.Label {
		case "kind":
			i, ok := f.Datum.Int()
			if !ok {
				return fmt.Errorf("walio: kind field is not an int")
			}
			r.Kind = Kind(i)
		case "txn":
			i, ok := f.Datum.Int()
			if !ok {
				return fmt.Errorf("walio: txn field is not an int")
			}
			r.Txn = uint64(i)
		case "nodeId":
			i, ok := f.Datum.Int()
			if !ok {
				return fmt.Errorf("walio: nodeId field is not an int")
			}
			r.NodeID = engine.NodeId(uint64(i))
		case "labels":
			items, ok := f.Datum.Items()
			if !ok {
				return fmt.Errorf("walio: labels field is not a list")
			}
			for _, it := range items {
				s, ok := it.String()
				if !ok {
					return fmt.Errorf("walio: label is not a string")
				}
				r.Labels = append(r.Labels, s)
			}
		case "props":
			items, ok := f.Datum.Items()
			if !ok {
				return fmt.Errorf("walio: props field is not a list")
			}
			for _, it := range items {
				p, err := decodeProp(it)
				if err != nil {
					return err
				}
				r.Props = append(r.Props, p)
			}
		case "edgeId":
			i, ok := f.Datum.Int()
			if !ok {
				return fmt.Errorf("walio: edgeId field is not an int")
			}
			r.EdgeID = engine.EdgeId(uint64(i))
		case "edgeType":
			s, ok := f.Datum.String()
			if !ok {
				return fmt.Errorf("walio: edgeType field is not a string")
			}
			r.EdgeType = s
		case "src":
			i, ok := f.Datum.Int()
			if !ok {
				return fmt.Errorf("walio: src field is not an int")
			}
			r.Src = engine.NodeId(uint64(i))
		case "dst":
			i, ok := f.Datum.Int()
			if !ok {
				return fmt.Errorf("walio: dst field is not an int")
			}
			r.Dst = engine.NodeId(uint64(i))
		case "entity":
			i, ok := f.Datum.Int()
			if !ok {
				return fmt.Errorf("walio: entity field is not an int")
			}
			r.Entity = EntityKind(i)
		case "entityId":
			i, ok := f.Datum.Int()
			if !ok {
				return fmt.Errorf("walio: entityId field is not an int")
			}
			r.EntityID = uint64(i)
		case "key":
			s, ok := f.Datum.String()
			if !ok {
				return fmt.Errorf("walio: key field is not a string")
			}
			r.Key = s
		case "value":
			v, err := decodeValue(f.Datum)
			if err != nil {
				return err
			}
			r.Value = v
		default:
			return fmt.Errorf("walio: unknown record field %q", f.Label)
		}
		return nil
	})
	return r, err
}

func decodeProp(d wire.Datum) (Prop, error) {
	var p Prop
	err := d.UnpackStruct(func(f wire.Field) error {
		switch f.Label {
		case "key":
			s, ok := f.Datum.String()
			if !ok {
				return fmt.Errorf("walio: prop key is not a string")
			}
			p.Key = s
		case "value":
			v, err := decodeValue(f.Datum)
			if err != nil {
				return err
			}
			p.Value = v
		default:
			return fmt.Errorf("walio: unknown prop field %q", f.Label)
		}
		return nil
	})
	return p, err
}

func decodeValue(d wire.Datum) (engine.Value, error) {
	switch d.Kind() {
	case wire.KNull:
		return engine.Null(), nil
	case wire.KBool:
		b, _ := d.Bool()
		return engine.Bool(b), nil
	case wire.KInt:
		i, _ := d.Int()
		return engine.Int64(i), nil
	case wire.KFloat:
		f, _ := d.Float()
		return engine.Float64(f), nil
	case wire.KString:
		s, _ := d.String()
		return engine.String(s), nil
	case wire.KBytes:
		by, _ := d.Bytes()
		return engine.Bytes(by), nil
	default:
		return engine.Value{}, fmt.Errorf("walio: unsupported value kind %d", d.Kind())
	}
}

func field(b *wire.Buffer, st *wire.Symtab, name string) {
	b.BeginField(st.Intern(name))
}
