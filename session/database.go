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

package session

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vertexdb/lpg/bufmgr"
	"github.com/vertexdb/lpg/engine"
	"github.com/vertexdb/lpg/exec"
	"github.com/vertexdb/lpg/graph"
	"github.com/vertexdb/lpg/walio"
)

// Database is one open graph, spec.md §6's top-level embedding handle:
// a Store, the process-wide Buffer Manager consumer and spill area
// this Store's pipelines draw on, and (when enabled) the durable
// write-ahead log every Session's committed writes append to.
type Database struct {
	cfg    Config
	store  *graph.Store
	mem    *bufmgr.Manager
	spill  *exec.SpillManager
	wal    *walio.WAL
	logger Logger

	mu     sync.Mutex
	closed bool
	txnSeq uint64
}

// Open builds a Database from cfg, replaying any existing write-ahead
// log under cfg.Path/wal into a fresh Store first when cfg.WALEnabled
// (spec.md §6: "on startup, the engine replays the write-ahead log to
// restore the last durable state").
func Open(cfg Config) (*Database, error) {
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.NumCPU()
	}

	spillDir := cfg.SpillPath
	if spillDir == "" {
		dir, err := os.MkdirTemp("", "vertexdb-spill-*")
		if err != nil {
			return nil, engine.Wrap(engine.KindResource, err, "creating spill directory")
		}
		spillDir = dir
	}
	spill, err := exec.NewSpillManager(spillDir)
	if err != nil {
		return nil, engine.Wrap(engine.KindResource, err, "opening spill manager")
	}

	mgr := bufmgr.New(cfg.MemoryLimit)
	store := graph.NewStore(graph.Config{BackwardEdges: cfg.BackwardEdges})

	var w *walio.WAL
	if cfg.WALEnabled {
		if cfg.Path == "" {
			spill.Close()
			return nil, engine.Errorf(engine.KindConstraint, "wal_enabled requires a non-empty path")
		}
		walDir := filepath.Join(cfg.Path, "wal")
		if err := walio.Recover(walDir, func(r walio.Record) error {
			return applyRecord(store, r)
		}); err != nil {
			spill.Close()
			return nil, engine.Wrap(engine.KindResource, err, "replaying write-ahead log")
		}
		w, err = walio.Open(walDir)
		if err != nil {
			spill.Close()
			return nil, engine.Wrap(engine.KindResource, err, "opening write-ahead log")
		}
	}

	logger := Logger(noopLogger{})
	if cfg.QueryLogging {
		logger = defaultLogger()
	}

	return &Database{
		cfg:    cfg,
		store:  store,
		mem:    mgr,
		spill:  spill,
		wal:    w,
		logger: logger,
	}, nil
}

// Session opens a new Session against db. Sessions are not safe for
// concurrent use by multiple goroutines (spec.md §6 scopes concurrency
// control to the transaction manager, which this core treats as an
// external collaborator, [[DESIGN.md]]); open one Session per goroutine.
func (db *Database) Session() *Session {
	return &Session{db: db}
}

// Close releases db's spill area and, if a write-ahead log is open,
// syncs and closes it. Close is idempotent.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	var firstErr error
	if db.wal != nil {
		if err := db.wal.Close(); err != nil {
			firstErr = err
		}
	}
	if err := db.spill.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (db *Database) beginTxn() (uint64, error) {
	if db.wal != nil {
		return db.wal.Begin()
	}
	return atomic.AddUint64(&db.txnSeq, 1), nil
}

func (db *Database) commitTxn(txn uint64) error {
	if db.wal != nil {
		return db.wal.Commit(txn)
	}
	return nil
}
