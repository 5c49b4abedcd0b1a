package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"firestige.xyz/ifcli/internal/iface"
	"firestige.xyz/ifcli/internal/rxlog"
	"firestige.xyz/ifcli/internal/table"
)

// Reload replaces the current table with the run stored in dir. Every
// interface comes back inactive with its cursor at 0, and links and the
// selection are restored from the ctx file when present. warn collects
// recoverable problems (log corruption, a missing ctx, dropped links); err
// means nothing was loaded and the current table is untouched.
func (s *Session) Reload(dir string) (warn error, err error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	slots, err := rxlog.Discover(abs, table.Capacity)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("session: no interface logs in %q", abs)
	}

	restored := make([]*iface.Interface, 0, len(slots))
	for _, slot := range slots {
		ifc, rerr := iface.Restore(abs, slot)
		if ifc == nil {
			warn = multierr.Append(warn, fmt.Errorf("slot %02x skipped: %w", slot, rerr))
			continue
		}
		warn = multierr.Append(warn, rerr)
		restored = append(restored, ifc)
	}
	if len(restored) == 0 {
		return warn, fmt.Errorf("session: no usable interface in %q", abs)
	}
	ctx, cerr := loadContext(abs)
	if cerr != nil && !errors.Is(cerr, os.ErrNotExist) {
		warn = multierr.Append(warn, cerr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, old := range s.tbl.Reset() {
		if err := old.Close(); err != nil {
			s.log.WithField("slot", old.Slot()).WithError(err).Warn("close on reload")
		}
	}
	clear(s.shown)
	for _, ifc := range restored {
		if err := s.tbl.Put(ifc); err != nil {
			warn = multierr.Append(warn, err)
			_ = ifc.Close()
			continue
		}
		s.trackAsync(ifc)
	}
	for _, l := range ctx.Links {
		if err := s.tbl.PutLink(l.Slot, l.Kind, l.Tx, l.Rx); err != nil {
			warn = multierr.Append(warn, fmt.Errorf("link %02x dropped: %w", l.Slot, err))
		}
	}
	if ctx.Selected != nil {
		if err := s.tbl.Select(*ctx.Selected); err != nil {
			warn = multierr.Append(warn, fmt.Errorf("selection %02x dropped: %w", *ctx.Selected, err))
			_ = s.tbl.Select(restored[0].Slot())
		}
	} else {
		_ = s.tbl.Select(restored[0].Slot())
	}

	s.dir = abs
	if id, ok := ParseRunName(filepath.Base(abs)); ok {
		s.runID = id
	} else if id, ok := ParseRunName(ctx.RunID); ok {
		s.runID = id
	}
	s.persist()

	entry := s.log.WithFields(map[string]interface{}{"dir": abs, "interfaces": len(restored), "links": len(ctx.Links)})
	if warn != nil {
		entry.WithError(warn).Warn("session reloaded with warnings")
	} else {
		entry.Info("session reloaded")
	}
	return warn, nil
}
