package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"firestige.xyz/ifcli/internal/table"
)

// ContextFile is the run-wide metadata file inside a run directory.
const ContextFile = "ctx"

const contextVersion = 1

// runContext is the ctx file: everything about a run that is not stored in
// an interface's own log header.
type runContext struct {
	Version  int          `yaml:"version"`
	RunID    string       `yaml:"run_id"`
	Selected *int         `yaml:"selected,omitempty"`
	Links    []linkRecord `yaml:"links,omitempty"`
}

type linkRecord struct {
	Slot int            `yaml:"slot"`
	Kind table.LinkKind `yaml:"kind"`
	Tx   int            `yaml:"tx"`
	Rx   int            `yaml:"rx"`
}

func (s *Session) contextSnapshot() runContext {
	ctx := runContext{Version: contextVersion, RunID: RunName(s.runID)}
	if sel, ok := s.tbl.Selected(); ok {
		ctx.Selected = &sel
	}
	for _, l := range s.tbl.Links() {
		ctx.Links = append(ctx.Links, linkRecord{Slot: l.Slot(), Kind: l.Kind, Tx: l.Tx.Slot, Rx: l.Rx.Slot})
	}
	return ctx
}

// saveContext atomically replaces the ctx file with a temp file + rename.
// Caller holds the lock.
func (s *Session) saveContext() error {
	data, err := yaml.Marshal(s.contextSnapshot())
	if err != nil {
		return fmt.Errorf("session: marshal context: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.dir, "."+ContextFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("session: create temp context: %w", err)
	}
	tmpName := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("session: write temp context: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("session: close temp context: %w", err)
	}
	final := filepath.Join(s.dir, ContextFile)
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("session: rename temp → %q: %w", final, err)
	}
	return nil
}

// persist saves the context and logs rather than fails: the change it
// records has already happened.
func (s *Session) persist() {
	if err := s.saveContext(); err != nil {
		s.log.WithError(err).Warn("context not saved")
	}
}

func loadContext(dir string) (runContext, error) {
	var ctx runContext
	data, err := os.ReadFile(filepath.Join(dir, ContextFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ctx, fmt.Errorf("session: %s not found: %w", ContextFile, os.ErrNotExist)
		}
		return ctx, fmt.Errorf("session: read %s: %w", ContextFile, err)
	}
	if err := yaml.Unmarshal(data, &ctx); err != nil {
		return ctx, fmt.Errorf("session: unmarshal %s: %w", ContextFile, err)
	}
	if ctx.Version > contextVersion {
		return ctx, fmt.Errorf("session: %s version %d is newer than %d", ContextFile, ctx.Version, contextVersion)
	}
	return ctx, nil
}
