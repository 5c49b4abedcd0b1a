// Package rxlog implements the per-interface receive log: an append-only
// payload store plus a parallel index of cumulative u32 offsets, giving O(1)
// access to any recorded frame.
//
// A Log is not safe for concurrent use; the session lock serializes access.
package rxlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"firestige.xyz/ifcli/internal/api"
)

const (
	// MaxFrame is the largest payload a single frame may carry.
	MaxFrame = 16384

	// HeaderSize is the fixed size of the metadata block that precedes the
	// offset entries in the index store.
	HeaderSize = 4096

	entryWidth = 4
)

// Log is one interface's receive log.
type Log struct {
	index   *os.File
	payload *os.File

	count int    // committed frames
	size  uint32 // payload bytes committed (last index entry)

	header []byte // raw header body
}

// Paths returns the index and payload file paths for a slot.
func Paths(dir string, slot int) (index, payload string) {
	return filepath.Join(dir, fmt.Sprintf("if%02x-offset", slot)),
		filepath.Join(dir, fmt.Sprintf("if%02x-buffer", slot))
}

// Create makes a fresh, empty log for slot in dir, truncating any files left
// by a previous owner of the slot.
func Create(dir string, slot int) (*Log, error) {
	indexPath, payloadPath := Paths(dir, slot)

	index, err := os.OpenFile(indexPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("rxlog: create index %q: %w", indexPath, err)
	}
	payload, err := os.OpenFile(payloadPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("rxlog: create payload %q: %w", payloadPath, err)
	}

	l := &Log{index: index, payload: payload}
	if err := l.writeHeaderBlock(nil); err != nil {
		_ = l.Close()
		return nil, err
	}
	if err := l.writeEntry(0, 0); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

// Open reopens an existing log for continued appending. When the two stores
// disagree (an append was interrupted between its two writes, or the index
// has a torn tail) the log is repaired to the last consistent frame and
// returned together with an error wrapping api.ErrLogCorruption; callers
// should treat that as a warning. Any other error means no log was opened.
func Open(dir string, slot int) (*Log, error) {
	indexPath, payloadPath := Paths(dir, slot)

	index, err := os.OpenFile(indexPath, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("rxlog: open index %q: %w", indexPath, err)
	}
	payload, err := os.OpenFile(payloadPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("rxlog: open payload %q: %w", payloadPath, err)
	}

	l := &Log{index: index, payload: payload}
	if err := l.readHeaderBlock(); err != nil {
		_ = l.Close()
		return nil, err
	}
	problems, err := l.recover()
	if err != nil {
		_ = l.Close()
		return nil, err
	}
	if len(problems) > 0 {
		return l, fmt.Errorf("%w: %v (recovered %d frames)", api.ErrLogCorruption, problems, l.count)
	}
	return l, nil
}

// Count returns the number of committed frames.
func (l *Log) Count() int { return l.count }

// Size returns the number of committed payload bytes.
func (l *Log) Size() uint32 { return l.size }

// Append commits payload as a new frame and returns its index. The payload
// is written first and the index entry second; a crash in between leaves an
// orphan payload tail that Open discards.
func (l *Log) Append(p []byte) (int, error) {
	if len(p) > MaxFrame {
		return 0, fmt.Errorf("rxlog: frame of %d bytes exceeds maximum %d", len(p), MaxFrame)
	}
	if uint64(l.size)+uint64(len(p)) > math.MaxUint32 {
		return 0, fmt.Errorf("rxlog: payload store full (%d bytes)", l.size)
	}

	if len(p) > 0 {
		if _, err := l.payload.WriteAt(p, int64(l.size)); err != nil {
			return 0, fmt.Errorf("rxlog: write payload: %w", err)
		}
	}
	end := l.size + uint32(len(p))
	if err := l.writeEntry(l.count+1, end); err != nil {
		return 0, err
	}

	idx := l.count
	l.count++
	l.size = end
	return idx, nil
}

// Read returns the payload of frame i.
func (l *Log) Read(i int) ([]byte, error) {
	start, end, err := l.bounds(i)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, end-start)
	if len(buf) == 0 {
		return buf, nil
	}
	if _, err := l.payload.ReadAt(buf, int64(start)); err != nil {
		return nil, fmt.Errorf("rxlog: read frame %d: %w", i, err)
	}
	return buf, nil
}

// Offset returns the index entry at position i, i in [0, Count()].
func (l *Log) Offset(i int) (uint32, error) {
	if i < 0 || i > l.count {
		return 0, fmt.Errorf("%w: offset %d of %d", api.ErrNotFound, i, l.count)
	}
	return l.readEntry(i)
}

// Sync flushes both stores to stable storage.
func (l *Log) Sync() error {
	if err := l.payload.Sync(); err != nil {
		return err
	}
	return l.index.Sync()
}

// Close closes both stores. It is safe to call more than once.
func (l *Log) Close() error {
	var errs []error
	if l.index != nil {
		errs = append(errs, l.index.Close())
		l.index = nil
	}
	if l.payload != nil {
		errs = append(errs, l.payload.Close())
		l.payload = nil
	}
	return errors.Join(errs...)
}

func (l *Log) bounds(i int) (uint32, uint32, error) {
	if i < 0 || i >= l.count {
		return 0, 0, fmt.Errorf("%w: frame %d of %d", api.ErrNotFound, i, l.count)
	}
	var pair [2 * entryWidth]byte
	if _, err := l.index.ReadAt(pair[:], entryPos(i)); err != nil {
		return 0, 0, fmt.Errorf("rxlog: read index %d: %w", i, err)
	}
	start := binary.LittleEndian.Uint32(pair[:entryWidth])
	end := binary.LittleEndian.Uint32(pair[entryWidth:])
	if end < start {
		return 0, 0, fmt.Errorf("%w: frame %d offsets %d..%d", api.ErrLogCorruption, i, start, end)
	}
	return start, end, nil
}

func (l *Log) readEntry(i int) (uint32, error) {
	var b [entryWidth]byte
	if _, err := l.index.ReadAt(b[:], entryPos(i)); err != nil {
		return 0, fmt.Errorf("rxlog: read index %d: %w", i, err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (l *Log) writeEntry(i int, off uint32) error {
	var b [entryWidth]byte
	binary.LittleEndian.PutUint32(b[:], off)
	if _, err := l.index.WriteAt(b[:], entryPos(i)); err != nil {
		return fmt.Errorf("rxlog: write index %d: %w", i, err)
	}
	return nil
}

func entryPos(i int) int64 {
	return HeaderSize + int64(i)*entryWidth
}

// recover validates the index against the payload store and truncates both
// to the last consistent frame. It returns a description of every repair.
func (l *Log) recover() ([]string, error) {
	ist, err := l.index.Stat()
	if err != nil {
		return nil, fmt.Errorf("rxlog: stat index: %w", err)
	}
	pst, err := l.payload.Stat()
	if err != nil {
		return nil, fmt.Errorf("rxlog: stat payload: %w", err)
	}

	var problems []string
	entries := int((ist.Size() - HeaderSize) / entryWidth)
	if (ist.Size()-HeaderSize)%entryWidth != 0 {
		problems = append(problems, "torn index entry")
	}

	raw := make([]byte, entries*entryWidth)
	if entries > 0 {
		if _, err := l.index.ReadAt(raw, HeaderSize); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("rxlog: read index: %w", err)
		}
	}

	valid := 0
	var last uint32
	for i := 0; i < entries; i++ {
		off := binary.LittleEndian.Uint32(raw[i*entryWidth:])
		if i == 0 && off != 0 {
			problems = append(problems, "first offset is not zero")
			break
		}
		if off < last || int64(off) > pst.Size() {
			problems = append(problems, fmt.Sprintf("bad offset %d at entry %d", off, i))
			break
		}
		last = off
		valid++
	}

	if valid == 0 {
		if entries > 0 {
			problems = append(problems, "index reset")
		}
		if err := l.writeEntry(0, 0); err != nil {
			return nil, err
		}
		valid, last = 1, 0
	}
	if err := l.index.Truncate(entryPos(valid)); err != nil {
		return nil, fmt.Errorf("rxlog: truncate index: %w", err)
	}
	if pst.Size() > int64(last) {
		problems = append(problems, fmt.Sprintf("%d uncommitted payload bytes", pst.Size()-int64(last)))
		if err := l.payload.Truncate(int64(last)); err != nil {
			return nil, fmt.Errorf("rxlog: truncate payload: %w", err)
		}
	}

	l.count = valid - 1
	l.size = last
	return problems, nil
}
