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

import (
	"errors"
	"sync"

	"github.com/vertexdb/lpg/bufmgr"
)

// ErrDenied is returned by MemoryContext.Reserve when granting would
// push the Buffer Manager to Hard or Critical pressure; the caller
// must spill (spec.md §4.9's Requested -> Denied -> Spilled edge).
var ErrDenied = errors.New("exec: memory grant denied under pressure")

// GrantState is a memory grant's position in the state machine spec.md
// §4.9 describes: Requested -> Granted -> Revoking -> Released, or
// Requested -> Denied -> Spilled -> Released.
type GrantState int

const (
	Requested GrantState = iota
	Granted
	Revoking
	Denied
	Spilled
	Released
)

// Grant tracks one operator's outstanding memory reservation within a
// pipeline's MemoryContext.
type Grant struct {
	mu    sync.Mutex
	state GrantState
	bg    *bufmgr.Grant
	cons  *bufmgr.Consumer
}

// State returns the grant's current position in the state machine.
func (g *Grant) State() GrantState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// MarkSpilled transitions a Denied grant to Spilled once the operator
// has written its overflow to the spill directory.
func (g *Grant) MarkSpilled() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Denied {
		g.state = Spilled
	}
}

// Release returns the grant's bytes to the buffer manager and marks it
// Released. Safe to call more than once, and safe on a grant that was
// never actually Granted (Denied/Spilled release is a no-op against
// the manager).
func (g *Grant) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Released {
		return
	}
	if g.bg != nil {
		g.cons.Release(g.bg)
	}
	g.state = Released
}

// MemoryContext is a pipeline's child consumer of the process-wide
// Buffer Manager (spec.md §4.9): "Every pipeline has an
// ExecutionMemoryContext that is a child consumer of the Buffer
// Manager." Operators request grants through it rather than touching
// the Manager directly, so a pipeline's total footprint is visible to
// the Manager under one name.
type MemoryContext struct {
	mgr  *bufmgr.Manager
	cons *bufmgr.Consumer

	mu     sync.Mutex
	grants []*Grant
}

// NewMemoryContext registers a new named consumer with mgr for one
// pipeline invocation.
func NewMemoryContext(mgr *bufmgr.Manager, pipelineName string) *MemoryContext {
	return &MemoryContext{mgr: mgr, cons: mgr.Register(pipelineName)}
}

// Reserve requests bytes from the Buffer Manager. The Manager itself
// never refuses a reservation (bufmgr.Consumer.Reserve always
// succeeds); Reserve treats Hard/Critical pressure *after* granting as
// denial for the purposes of spec.md §4.9's state machine, releasing
// the bytes immediately and returning ErrDenied so the caller spills
// instead of holding memory the rest of the process badly needs.
func (m *MemoryContext) Reserve(bytes int64) (*Grant, error) {
	bg := m.cons.Reserve(bytes)
	if m.mgr.Stats().Pressure >= bufmgr.Hard {
		m.cons.Release(bg)
		return &Grant{state: Denied, cons: m.cons}, ErrDenied
	}
	g := &Grant{state: Granted, bg: bg, cons: m.cons}
	m.mu.Lock()
	m.grants = append(m.grants, g)
	m.mu.Unlock()
	return g, nil
}

// Pressure returns the Buffer Manager's current pressure level, which
// operators should check between chunks to decide whether to start
// spilling proactively rather than wait for a denied Reserve.
func (m *MemoryContext) Pressure() bufmgr.Pressure {
	return m.mgr.Stats().Pressure
}

// Close releases every grant this context ever issued, called once the
// pipeline finishes or is cancelled (spec.md §5: "grants are
// released" on cancel).
func (m *MemoryContext) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.grants {
		g.Release()
	}
	m.grants = nil
}
