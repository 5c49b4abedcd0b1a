package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"firestige.xyz/ifcli/internal/rxlog"
	"firestige.xyz/ifcli/internal/table"
)

// RunInfo describes one run directory under the session root.
type RunInfo struct {
	ID         uint32
	Dir        string
	Interfaces int
	Modified   time.Time
	Latest     bool
}

// Runs lists the run directories under root, newest first.
func Runs(root string) ([]RunInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: read root %q: %w", root, err)
	}
	latest, _ := os.Readlink(filepath.Join(root, LatestLink))

	var runs []RunInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, ok := ParseRunName(e.Name())
		if !ok {
			continue
		}
		dir := filepath.Join(root, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		slots, _ := rxlog.Discover(dir, table.Capacity)
		runs = append(runs, RunInfo{
			ID:         id,
			Dir:        dir,
			Interfaces: len(slots),
			Modified:   info.ModTime(),
			Latest:     filepath.Base(latest) == e.Name(),
		})
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Modified.After(runs[j].Modified) })
	return runs, nil
}

// ResolveRun turns a run argument into a run directory: an existing path
// is used as is, otherwise it names a run (or latest) under root.
func ResolveRun(root, arg string) (string, error) {
	if st, err := os.Stat(arg); err == nil && st.IsDir() {
		return arg, nil
	}
	dir := filepath.Join(root, arg)
	st, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("session: no run %q: %w", arg, err)
	}
	if !st.IsDir() {
		return "", fmt.Errorf("session: %q is not a run directory", dir)
	}
	return dir, nil
}
