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

package engine

import "sync"

// Symbol is the interned-id form of a PropertyKey, Label, or EdgeType
// (spec.md §3). Comparisons between two Symbols from the same Dict are
// pointer-free integer comparisons; the original string is recovered
// with Dict.Lookup.
type Symbol uint32

// PropertyKey, Label, and EdgeType are the three interned-string
// domains the store distinguishes (spec.md §3). They share the
// implementation below but are kept as distinct types so a Label
// Symbol can never be passed where an EdgeType is expected.
type PropertyKey Symbol
type Label Symbol
type EdgeType Symbol

// Dict is a bidirectional string<->Symbol intern table, one per
// domain (properties, labels, edge types), modeled on ion.Symtab's
// Intern/Get contract. Reads are safe for concurrent use against other
// reads; Intern takes an exclusive lock only when a new string is
// actually inserted.
type Dict struct {
	mu      sync.RWMutex
	toID    map[string]uint32
	strings []string
}

// NewDict returns an empty, ready-to-use Dict.
func NewDict() *Dict {
	return &Dict{toID: make(map[string]uint32)}
}

// Intern returns the Symbol for s, assigning a new one if s has not
// been seen before.
func (d *Dict) Intern(s string) Symbol {
	d.mu.RLock()
	if id, ok := d.toID[s]; ok {
		d.mu.RUnlock()
		return Symbol(id)
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.toID[s]; ok {
		return Symbol(id)
	}
	id := uint32(len(d.strings))
	d.strings = append(d.strings, s)
	d.toID[s] = id
	return Symbol(id)
}

// Lookup returns the string previously interned under sym, and
// whether sym is valid for this Dict.
func (d *Dict) Lookup(sym Symbol) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(sym) >= len(d.strings) {
		return "", false
	}
	return d.strings[sym], true
}

// Symbolize returns the Symbol already assigned to s, without
// interning it if absent.
func (d *Dict) Symbolize(s string) (Symbol, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.toID[s]
	return Symbol(id), ok
}

// Len reports how many distinct strings have been interned.
func (d *Dict) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.strings)
}
