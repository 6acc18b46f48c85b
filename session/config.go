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

// Package session implements the embedding API (spec.md §6): Open
// builds a Database from a Config, Database.Session opens a Session,
// and Session.Execute runs one query through the reference Gremlin
// translator and the push-based execution engine, returning a
// QueryResult cursor. Loading Config from a file or environment is an
// external collaborator's job (spec.md §1); this package only
// consumes an already-populated Config value.
package session

// Config carries the recognized options and effects spec.md §6 lists
// for the embedding API.
type Config struct {
	// Path is the persistent directory backing this database. An
	// empty Path means pure in-memory: no WAL directory, no segment
	// snapshots, everything lost on Close.
	Path string

	// MemoryLimit upper-bounds the Buffer Manager's configured_limit
	// in bytes. Zero defers to bufmgr.New's own detected-system-RAM
	// default.
	MemoryLimit int64

	// SpillPath is the directory used for spill files. Empty means a
	// fresh process-scoped temp directory, created on Open and left
	// for the caller to clean up (spill files within it are removed
	// as pipelines complete, but the directory itself is not).
	SpillPath string

	// Threads is a worker count: Open replaces zero or negative with
	// runtime.NumCPU(). Execute and ExecuteAsync run each pipeline on a
	// single goroutine and do not read it.
	Threads int

	// WALEnabled turns on the durable group-commit write-ahead log.
	// Requires Path to be set, since the WAL lives under Path/wal.
	WALEnabled bool

	// WALFlushIntervalMS is the group-commit cadence in milliseconds:
	// how long a caller driving multiple Commits may batch onto one
	// WAL.Sync instead of fsyncing every single one. This package
	// itself fsyncs on every explicit Session.Commit (the conservative
	// default); a caller wanting true group-commit batching drives
	// WAL.Sync on its own schedule using this value, since the batching
	// policy is a scheduling decision external to the WAL format itself.
	WALFlushIntervalMS int64

	// BackwardEdges enables maintaining incoming adjacency alongside
	// outgoing, needed for in()/both() navigation without a full scan.
	BackwardEdges bool

	// QueryLogging emits each query's compiled logical plan to the
	// configured Logger before it runs.
	QueryLogging bool
}
