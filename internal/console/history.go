package console

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HistoryFile is the command history kept in the session root.
const HistoryFile = "history"

// History appends every command line to a file shared by all runs.
type History struct {
	path string
	n    int
	last string
}

// OpenHistory opens (or prepares to create) the history file at path.
func OpenHistory(path string) (*History, error) {
	h := &History{path: path}
	lines, err := h.Lines(0)
	if err != nil {
		return nil, err
	}
	h.n = len(lines)
	if h.n > 0 {
		h.last = lines[h.n-1]
	}
	return h, nil
}

func (h *History) Path() string { return h.path }
func (h *History) Len() int     { return h.n }

// Add records line. Blank lines and immediate repeats are skipped.
func (h *History) Add(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || line == h.last {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	h.n++
	h.last = line
	return nil
}

// Lines returns the last limit lines, or all of them when limit <= 0.
func (h *History) Lines(limit int) ([]string, error) {
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}
