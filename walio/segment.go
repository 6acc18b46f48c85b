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

package walio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// segmentWriter appends length-prefixed, CRC32C-checksummed frames to
// one *.log file, the same bufio+length-prefix shape
// exec.SpillFileWriter uses for spill files, with a checksum in place
// of spill's s2 compression: WAL durability depends on detecting a
// torn write after a crash, not on shrinking bytes on disk.
type segmentWriter struct {
	f *os.File
	w *bufio.Writer
}

// frame is [4-byte little-endian length][4-byte CRC32C of payload][payload].
const frameHeaderLen = 8

func createSegment(dir string, seq uint64) (*segmentWriter, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("walio: creating wal dir: %w", err)
	}
	name := fmt.Sprintf("%020d-%s.log", seq, uuid.NewString())
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("walio: creating wal segment: %w", err)
	}
	return &segmentWriter{f: f, w: bufio.NewWriter(f)}, path, nil
}

// appendFrame writes one checksummed frame; it reports only a write
// error, not the frame's offset within the segment.
func (w *segmentWriter) appendFrame(payload []byte) error {
	var hdr [frameHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[4:8], crc32c(payload))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.w.Write(payload)
	return err
}

// sync flushes buffered frames to the OS and fsyncs the file, the
// durability boundary a transaction's commit must wait on before it
// can report success (spec.md §6's wal_flush_interval_ms governs how
// often a caller batches commits onto one sync rather than forcing
// one fsync per record).
func (w *segmentWriter) sync() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.f.Sync()
}

func (w *segmentWriter) close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// segmentReader reads frames back in the order written, stopping
// cleanly at io.EOF and reporting corruption (a bad checksum) or
// truncation (a short final frame, the signature of a write in
// progress when the process crashed) distinctly so Recover can treat
// a truncated tail as "not yet durable" rather than an error.
type segmentReader struct {
	r *bufio.Reader
	f *os.File
}

// errTruncated marks a frame that ends partway through its header or
// payload: the tail of a segment being written when the process died,
// not a corrupt record.
var errTruncated = errors.New("walio: truncated frame")

func openSegment(path string) (*segmentReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &segmentReader{f: f, r: bufio.NewReader(f)}, nil
}

func (r *segmentReader) nextFrame() ([]byte, error) {
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errTruncated
	}
	n := binary.LittleEndian.Uint32(hdr[0:4])
	wantSum := binary.LittleEndian.Uint32(hdr[4:8])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, errTruncated
	}
	if crc32c(payload) != wantSum {
		return nil, fmt.Errorf("walio: checksum mismatch in %s", r.f.Name())
	}
	return payload, nil
}

func (r *segmentReader) close() error { return r.f.Close() }

// listSegments returns every *.log file in dir, sorted by the
// sequence number encoded in its filename prefix so replay proceeds
// in write order regardless of each file's random uuid suffix.
func listSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".log" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}
