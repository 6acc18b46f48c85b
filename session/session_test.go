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
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCloseInMemory(t *testing.T) {
	db, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
}

func TestExecuteCreatesAndQueriesNodes(t *testing.T) {
	db, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	s := db.Session()

	if _, err := s.Execute("g.addV('Person').property('name', 'Alice')"); err != nil {
		t.Fatalf("Execute addV: %v", err)
	}
	if _, err := s.Execute("g.addV('Person').property('name', 'Bob')"); err != nil {
		t.Fatalf("Execute addV: %v", err)
	}

	res, err := s.Execute("g.V().hasLabel('Person')")
	if err != nil {
		t.Fatalf("Execute g.V(): %v", err)
	}
	n := 0
	for res.Next() {
		n++
	}
	if n != 2 {
		t.Fatalf("got %d Person rows, want 2", n)
	}
	if got := res.Stats().RowCount; got != 2 {
		t.Fatalf("Stats().RowCount = %d, want 2", got)
	}
}

func TestExecuteReturnsParseError(t *testing.T) {
	db, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	s := db.Session()

	if _, err := s.Execute("g.addE('knows').from('a')"); err == nil {
		t.Fatal("expected an error for addE() missing to()")
	}
}

func TestBeginTxCommitGroupsWrites(t *testing.T) {
	db, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	s := db.Session()

	if err := s.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := s.Execute("g.addV('Person').property('name', 'Alice')"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := s.Execute("g.addV('Person').property('name', 'Bob')"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := s.Commit(); err == nil {
		t.Fatal("expected Commit with no active transaction to fail")
	}
}

func TestRollbackEndsTransactionWithoutError(t *testing.T) {
	db, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	s := db.Session()

	if err := s.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := s.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if err := s.Rollback(); err == nil {
		t.Fatal("expected Rollback with no active transaction to fail")
	}
}

func TestWALRecoversAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: dir, WALEnabled: true}

	db1, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s1 := db1.Session()
	if _, err := s1.Execute("g.addV('Person').property('name', 'Alice')"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := s1.Execute("g.addV('Person').property('name', 'Bob')"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := db1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	s2 := db2.Session()

	res, err := s2.Execute("g.V().hasLabel('Person')")
	if err != nil {
		t.Fatalf("Execute after reopen: %v", err)
	}
	n := 0
	for res.Next() {
		n++
	}
	if n != 2 {
		t.Fatalf("got %d Person rows after recovery, want 2", n)
	}
}

func TestWALEnabledRequiresPath(t *testing.T) {
	if _, err := Open(Config{WALEnabled: true}); err == nil {
		t.Fatal("expected an error opening a WAL-enabled database with no Path")
	}
}

func TestWALDirectoryIsUnderConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Config{Path: dir, WALEnabled: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	s := db.Session()
	if _, err := s.Execute("g.addV('Person')"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := db.wal.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "wal"))
	if err != nil {
		t.Fatalf("reading wal directory: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one wal segment under <path>/wal")
	}
}

func TestExecuteAsyncIteratesAndCancels(t *testing.T) {
	db, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	s := db.Session()

	for i := 0; i < 5; i++ {
		if _, err := s.Execute("g.addV('Person')"); err != nil {
			t.Fatalf("Execute addV: %v", err)
		}
	}

	ac, err := s.ExecuteAsync(context.Background(), "g.V().hasLabel('Person')")
	if err != nil {
		t.Fatalf("ExecuteAsync: %v", err)
	}
	n := 0
	for {
		ok, err := ac.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		n++
	}
	if n != 5 {
		t.Fatalf("got %d rows from async cursor, want 5", n)
	}
}

func TestExecuteAsyncCancelStopsIteration(t *testing.T) {
	db, err := Open(Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	s := db.Session()
	for i := 0; i < 3; i++ {
		if _, err := s.Execute("g.addV('Person')"); err != nil {
			t.Fatalf("Execute addV: %v", err)
		}
	}

	ac, err := s.ExecuteAsync(context.Background(), "g.V().hasLabel('Person')")
	if err != nil {
		t.Fatalf("ExecuteAsync: %v", err)
	}
	ac.Cancel()
	for {
		ok, _ := ac.Next()
		if !ok {
			break
		}
	}
}
