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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/s2"
)

// SpillID names one spill file within a SpillManager's directory
// (spec.md §4.9: "The Spill Manager maps a spill id to an append-only
// file in the configured spill directory").
type SpillID string

// SpillManager owns the on-disk overflow area for one pipeline
// invocation. Every file it creates is deleted either on normal
// pipeline completion or, on error, once the consumer has drained its
// in-memory portion (spec.md §4.9) -- SpillManager itself does not
// decide which; Close does the former, Abandon the latter.
type SpillManager struct {
	dir string

	mu    sync.Mutex
	files map[SpillID]string
}

// NewSpillManager returns a manager rooted at dir, creating it if
// necessary.
func NewSpillManager(dir string) (*SpillManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("exec: creating spill dir: %w", err)
	}
	return &SpillManager{dir: dir, files: make(map[SpillID]string)}, nil
}

// Create allocates a fresh spill file and returns a writer for it. The
// id is a fresh uuid, matching the naming convention storage.
// WriteSegment uses for persisted segments.
func (m *SpillManager) Create() (SpillID, *SpillFileWriter, error) {
	id := SpillID(uuid.NewString())
	path := filepath.Join(m.dir, string(id)+".spill")
	f, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("exec: creating spill file: %w", err)
	}
	m.mu.Lock()
	m.files[id] = path
	m.mu.Unlock()
	return id, &SpillFileWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// Open returns a sequential reader over a previously spilled file.
func (m *SpillManager) Open(id SpillID) (*SpillFileReader, error) {
	m.mu.Lock()
	path, ok := m.files[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("exec: unknown spill id %q", id)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("exec: opening spill file: %w", err)
	}
	return &SpillFileReader{f: f, r: bufio.NewReader(f)}, nil
}

// Remove deletes one spill file immediately, used once a consumer has
// fully drained it (an external sort's finished run, a hash join's
// freed partition).
func (m *SpillManager) Remove(id SpillID) {
	m.mu.Lock()
	path, ok := m.files[id]
	delete(m.files, id)
	m.mu.Unlock()
	if ok {
		os.Remove(path)
	}
}

// Close deletes every remaining spill file, called on normal pipeline
// completion.
func (m *SpillManager) Close() error {
	m.mu.Lock()
	files := m.files
	m.files = make(map[SpillID]string)
	m.mu.Unlock()
	var firstErr error
	for _, path := range files {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Abandon is Close's cancellation-path twin (spec.md §5: "on cancel...
// spill files are deleted"); semantically identical, named separately
// so call sites read as documentation of which path they're on.
func (m *SpillManager) Abandon() error { return m.Close() }

// SpillFileWriter appends s2-compressed, length-prefixed records to
// one spill file.
type SpillFileWriter struct {
	f *os.File
	w *bufio.Writer
}

// WriteRecord appends one record, compressing it independently so a
// SpillFileReader can read records sequentially without buffering the
// whole file in memory.
func (w *SpillFileWriter) WriteRecord(raw []byte) error {
	compressed := s2.Encode(nil, raw)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.w.Write(compressed)
	return err
}

// Close flushes and closes the underlying file.
func (w *SpillFileWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// SpillFileReader reads records back in the order they were written.
type SpillFileReader struct {
	f *os.File
	r *bufio.Reader
}

// ReadRecord returns the next record, or io.EOF once the file is
// exhausted.
func (r *SpillFileReader) ReadRecord() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	compressed := make([]byte, n)
	if _, err := io.ReadFull(r.r, compressed); err != nil {
		return nil, err
	}
	return s2.Decode(nil, compressed)
}

// Close closes the underlying file.
func (r *SpillFileReader) Close() error { return r.f.Close() }
