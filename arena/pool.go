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

package arena

import "sync"

// Pool recycles fixed-size objects of type T (spec.md §2, C3) across
// many short-lived uses within a pipeline -- DataChunk backing arrays,
// hash-join build buckets, and similar structures that are expensive
// to allocate fresh on every morsel. It is a thin, typed wrapper
// around sync.Pool so callers get a concrete T back instead of doing
// their own interface{} assertion at every call site.
type Pool[T any] struct {
	new   func() *T
	reset func(*T)
	pool  sync.Pool
}

// NewPool constructs a Pool. newFn allocates a fresh T; resetFn clears
// a T's contents before it is handed out again (e.g. truncating
// slices to length 0 without releasing their capacity).
func NewPool[T any](newFn func() *T, resetFn func(*T)) *Pool[T] {
	p := &Pool[T]{new: newFn, reset: resetFn}
	p.pool.New = func() any { return newFn() }
	return p
}

// Get returns a recycled T, or a freshly allocated one if the pool is
// empty.
func (p *Pool[T]) Get() *T {
	v := p.pool.Get().(*T)
	return v
}

// Put resets v and returns it to the pool for reuse.
func (p *Pool[T]) Put(v *T) {
	if p.reset != nil {
		p.reset(v)
	}
	p.pool.Put(v)
}
