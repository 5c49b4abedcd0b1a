package session

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"firestige.xyz/ifcli/internal/archive"
	"firestige.xyz/ifcli/internal/rxlog"
	"firestige.xyz/ifcli/internal/table"
)

// Export flushes every interface header and log and the ctx file, then
// lists the files that make up the run.
func (s *Session) Export() ([]archive.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.export()
}

func (s *Session) export() ([]archive.Entry, error) {
	var err error
	for _, ifc := range s.tbl.Interfaces() {
		err = multierr.Append(err, ifc.Persist())
		err = multierr.Append(err, ifc.Log().Sync())
	}
	err = multierr.Append(err, s.saveContext())
	if err != nil {
		return nil, err
	}

	entries := []archive.Entry{{Path: filepath.Join(s.dir, ContextFile), Name: ContextFile}}
	for _, ifc := range s.tbl.Interfaces() {
		entries = append(entries, logEntries(s.dir, ifc.Slot())...)
	}
	return entries, nil
}

// Save packs the run into a .tgz at path. The lock is held while packing
// so that no frame lands between digest and copy.
func (s *Session) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.export()
	if err != nil {
		return err
	}
	if err := archive.PackFile(path, entries); err != nil {
		return err
	}
	s.log.WithFields(map[string]interface{}{"archive": path, "files": len(entries)}).Info("session saved")
	return nil
}

// ArchiveName is the default archive file name for a run.
func ArchiveName(id uint32) string { return RunName(id) + ".tgz" }

// DirEntries lists the files of a run directory that is not open, for
// offline export.
func DirEntries(dir string) ([]archive.Entry, error) {
	slots, err := rxlog.Discover(dir, table.Capacity)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("session: no interface logs in %q", dir)
	}
	var entries []archive.Entry
	ctx := filepath.Join(dir, ContextFile)
	if _, err := os.Stat(ctx); err == nil {
		entries = append(entries, archive.Entry{Path: ctx, Name: ContextFile})
	}
	for _, slot := range slots {
		entries = append(entries, logEntries(dir, slot)...)
	}
	return entries, nil
}

func logEntries(dir string, slot int) []archive.Entry {
	index, payload := rxlog.Paths(dir, slot)
	return []archive.Entry{
		{Path: index, Name: filepath.Base(index)},
		{Path: payload, Name: filepath.Base(payload)},
	}
}

// Unpack extracts an archive into a fresh run directory under root and
// returns that directory. A failed extraction removes the directory.
func Unpack(root, path string) (string, error) {
	dir, _, err := makeRunDir(root)
	if err != nil {
		return "", err
	}
	if _, err := archive.UnpackFile(path, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

// Import unpacks the archive at path into a new run directory and reloads
// the session from it.
func (s *Session) Import(path string) (dir string, warn error, err error) {
	dir, err = Unpack(s.opts.Root, path)
	if err != nil {
		return "", nil, err
	}
	warn, err = s.Reload(dir)
	if err != nil {
		return dir, warn, err
	}
	if err := s.linkLatest(); err != nil {
		s.log.WithError(err).Warn("cannot update latest link")
	}
	return dir, warn, nil
}
