// Package session owns one interactive run: its run directory, the slot
// table, the capture loop and the redraw notifier. Every operation takes
// the session lock, which the capture loop shares.
package session

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/multierr"

	"firestige.xyz/ifcli/internal/capture"
	"firestige.xyz/ifcli/internal/config"
	"firestige.xyz/ifcli/internal/iface"
	"firestige.xyz/ifcli/internal/log"
	"firestige.xyz/ifcli/internal/table"
)

// LatestLink is the symlink in the root naming the newest run.
const LatestLink = "latest"

// Options configure a session.
type Options struct {
	Root       string
	Latest     bool
	Capture    capture.Options
	LineEnding iface.LineEnding
	Presets    []config.Preset
}

// OptionsFrom builds session options from the loaded configuration.
func OptionsFrom(cfg *config.GlobalConfig) Options {
	return Options{
		Root:   cfg.Session.Root,
		Latest: cfg.Session.Latest,
		Capture: capture.Options{
			PollTimeout: cfg.Capture.PollTimeout,
			JoinTimeout: cfg.Capture.JoinTimeout,
		},
		LineEnding: iface.LineEnding{CR: cfg.Console.CR[0], LF: cfg.Console.LF[0]},
		Presets:    cfg.InterfacePresets(),
	}
}

// Session is one run.
type Session struct {
	mu     sync.Mutex
	opts   Options
	dir    string
	runID  uint32
	tbl    *table.Table
	loop   *capture.Loop
	notify *capture.Notifier
	log    log.Logger

	shown  map[table.Handle]int // async frames already handed to the console
	closed bool
}

func newSession(opts Options) *Session {
	if opts.LineEnding == (iface.LineEnding{}) {
		opts.LineEnding = iface.DefaultLineEnding
	}
	s := &Session{
		opts:   opts,
		tbl:    table.New(),
		notify: capture.NewNotifier(),
		log:    log.GetLogger().WithField("component", "session"),
		shown:  make(map[table.Handle]int),
	}
	s.loop = capture.New(s, opts.Capture)
	return s
}

// New starts a fresh run under opts.Root with the default interface and any
// presets, and starts capturing. Failing to create the default interface is
// fatal to the session.
func New(opts Options) (*Session, error) {
	s := newSession(opts)
	dir, id, err := makeRunDir(opts.Root)
	if err != nil {
		return nil, err
	}
	s.dir, s.runID = dir, id

	if _, err := s.Add(); err != nil {
		return nil, fmt.Errorf("session: create default interface: %w", err)
	}
	for i, p := range opts.Presets {
		if err := s.applyPreset(p); err != nil {
			s.log.WithError(err).Warnf("preset %d not applied", i)
		}
	}
	if err := s.linkLatest(); err != nil {
		s.log.WithError(err).Warn("cannot update latest link")
	}
	s.loop.Start()
	s.log.WithField("dir", dir).Info("session started")
	return s, nil
}

// Open resumes the run in dir by reloading it. Recovery warnings are
// logged and returned alongside the usable session.
func Open(opts Options, dir string) (*Session, error) {
	s := newSession(opts)
	warn, err := s.Reload(dir)
	if err != nil {
		return nil, err
	}
	s.loop.Start()
	return s, warn
}

func makeRunDir(root string) (string, uint32, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return "", 0, fmt.Errorf("session: create root %q: %w", root, err)
	}
	for attempt := 0; attempt < 16; attempt++ {
		id := uint32(os.Getpid()&0xffff)<<16 | uint32(rand.Intn(0xffff))
		dir := filepath.Join(root, RunName(id))
		err := os.Mkdir(dir, 0o700)
		if err == nil {
			return dir, id, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", 0, fmt.Errorf("session: create run directory: %w", err)
		}
	}
	return "", 0, errors.New("session: no free run id")
}

// RunName formats a run id as its directory name.
func RunName(id uint32) string { return fmt.Sprintf("%08x", id) }

// ParseRunName is the inverse of RunName.
func ParseRunName(name string) (uint32, bool) {
	if len(name) != 8 {
		return 0, false
	}
	v, err := strconv.ParseUint(name, 16, 32)
	return uint32(v), err == nil
}

func (s *Session) linkLatest() error {
	if !s.opts.Latest || s.opts.Root == "" {
		return nil
	}
	link := filepath.Join(s.opts.Root, LatestLink)
	if err := os.Remove(link); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Symlink(filepath.Base(s.dir), link)
}

func (s *Session) applyPreset(p config.Preset) error {
	slot, err := s.Add()
	if err != nil {
		return err
	}
	for _, kv := range p.Settings() {
		if err := s.Configure(slot, kv.Key, kv.Value); err != nil {
			return fmt.Errorf("slot %d %s=%s: %w", slot, kv.Key, kv.Value, err)
		}
	}
	if p.Connect {
		return s.Connect(slot)
	}
	return nil
}

// Dir is the run directory.
func (s *Session) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Root is the directory holding every run.
func (s *Session) Root() string { return s.opts.Root }

// RunID is the run identifier.
func (s *Session) RunID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Notifier is signalled when an async interface records a frame.
func (s *Session) Notifier() *capture.Notifier { return s.notify }

// LineEnding is what acr and alf append.
func (s *Session) LineEnding() iface.LineEnding { return s.opts.LineEnding }

// Lock, Unlock and Table let the capture loop share the session lock.
func (s *Session) Lock()               { s.mu.Lock() }
func (s *Session) Unlock()             { s.mu.Unlock() }
func (s *Session) Table() *table.Table { return s.tbl }

// Close stops capturing, then closes every interface and saves the context.
func (s *Session) Close() error {
	err := s.loop.Stop()
	if errors.Is(err, capture.ErrJoinTimeout) {
		// Closing handles under a running loop is what the join prevents.
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return err
	}
	s.closed = true

	err = multierr.Append(err, s.saveContext())
	for _, ifc := range s.tbl.Reset() {
		err = multierr.Append(err, ifc.Persist())
		err = multierr.Append(err, ifc.Close())
	}
	s.log.WithField("dir", s.dir).Info("session closed")
	return err
}
