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

// Package bufmgr implements the process-wide memory accountant
// described in spec.md §4.10: a single Manager tracks configured
// limit, reserved, and in-use bytes across named consumers and
// broadcasts pressure-level changes so caches, hash tables, and
// adjacency delta buffers can react.
package bufmgr

import (
	"sync"
	"sync/atomic"
)

// Pressure is one of the four levels spec.md §4.10 defines.
type Pressure int

const (
	None Pressure = iota
	Soft
	Hard
	Critical
)

func (p Pressure) String() string {
	switch p {
	case None:
		return "none"
	case Soft:
		return "soft"
	case Hard:
		return "hard"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// thresholds as a fraction of configured_limit at which in_use crosses
// into the next pressure level.
const (
	softFrac     = 0.70
	hardFrac     = 0.90
	criticalFrac = 0.98
)

// BufferStats is a point-in-time snapshot of the manager's counters,
// exposed for telemetry (spec.md §4.10).
type BufferStats struct {
	ConfiguredLimit int64
	Reserved        int64
	InUse           int64
	Pressure        Pressure
}

// Manager is the central memory accountant. The zero value is not
// usable; construct with New.
type Manager struct {
	limit    int64
	reserved int64
	inUse    int64

	mu        sync.Mutex
	consumers map[string]*Consumer
	listeners []chan Pressure
}

// New constructs a Manager with the given configured_limit in bytes.
// If limit <= 0, DetectLimit(0) is used instead (spec.md §4.10's
// "limit = min(configured, detected-system-RAM x fraction)").
func New(limit int64) *Manager {
	if limit <= 0 {
		limit = DetectLimit(0)
	}
	return &Manager{
		limit:     limit,
		consumers: make(map[string]*Consumer),
	}
}

// Consumer is a named claimant against the Manager's budget (a
// pipeline's ExecutionMemoryContext, an adjacency delta buffer, a
// property-storage cache, ...). Consumers are created via
// Manager.Register and hold a back-reference so they can report
// in_use deltas without re-looking themselves up.
type Consumer struct {
	name string
	mgr  *Manager
	used int64
}

// Register creates (or returns the existing) named Consumer.
func (m *Manager) Register(name string) *Consumer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.consumers[name]; ok {
		return c
	}
	c := &Consumer{name: name, mgr: m}
	m.consumers[name] = c
	return c
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() BufferStats {
	return BufferStats{
		ConfiguredLimit: m.limit,
		Reserved:        atomic.LoadInt64(&m.reserved),
		InUse:           atomic.LoadInt64(&m.inUse),
		Pressure:        m.currentPressure(),
	}
}

func (m *Manager) currentPressure() Pressure {
	used := atomic.LoadInt64(&m.inUse)
	limit := m.limit
	if limit <= 0 {
		return None
	}
	frac := float64(used) / float64(limit)
	switch {
	case frac >= criticalFrac:
		return Critical
	case frac >= hardFrac:
		return Hard
	case frac >= softFrac:
		return Soft
	default:
		return None
	}
}

// Subscribe returns a channel on which the Manager broadcasts every
// pressure-level transition. The channel is buffered; slow listeners
// observe only the most recent level, never blocking the broadcaster.
func (m *Manager) Subscribe() <-chan Pressure {
	ch := make(chan Pressure, 1)
	m.mu.Lock()
	m.listeners = append(m.listeners, ch)
	m.mu.Unlock()
	return ch
}

func (m *Manager) broadcast(p Pressure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.listeners {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- p
		}
	}
}

// Grant is a successful reservation returned by Consumer.Reserve. The
// holder must call Release (directly or via exec.MemoryContext)
// once the bytes are no longer needed.
type Grant struct {
	bytes int64
	c     *Consumer
}

// Bytes reports the grant size.
func (g *Grant) Bytes() int64 { return g.bytes }

// Reserve requests bytes against the Manager's budget. It always
// succeeds (the Manager tracks pressure rather than hard-denying
// allocation, matching spec.md's "reports pressure to consumers"
// framing) but broadcasts a Pressure change that operators must react
// to within a bounded number of chunks (spec.md §4.10, §4.9). Callers
// that need hard denial (the Spill state machine, spec.md §4.9) use
// exec.MemoryContext.Reserve instead, which treats Hard/Critical
// as Pressure denial.
func (c *Consumer) Reserve(bytes int64) *Grant {
	before := atomic.AddInt64(&c.mgr.inUse, bytes)
	atomic.AddInt64(&c.used, bytes)
	_ = before
	after := c.mgr.currentPressure()
	c.mgr.broadcast(after)
	return &Grant{bytes: bytes, c: c}
}

// Release returns the grant's bytes to the Manager.
func (c *Consumer) Release(g *Grant) {
	if g == nil || g.bytes == 0 {
		return
	}
	atomic.AddInt64(&c.mgr.inUse, -g.bytes)
	atomic.AddInt64(&c.used, -g.bytes)
	g.bytes = 0
	c.mgr.broadcast(c.mgr.currentPressure())
}

// Used reports the bytes currently attributed to this consumer.
func (c *Consumer) Used() int64 { return atomic.LoadInt64(&c.used) }

// Limit reports the manager's configured ceiling.
func (m *Manager) Limit() int64 { return m.limit }
