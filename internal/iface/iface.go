// Package iface implements a configured endpoint: its transport, modes,
// buffer size, flags, replay cursor and receive log.
//
// An Interface is not safe for concurrent use. The session lock serializes
// the command side and the capture loop.
package iface

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"firestige.xyz/ifcli/internal/api"
	"firestige.xyz/ifcli/internal/codec"
	"firestige.xyz/ifcli/internal/rxlog"
	"firestige.xyz/ifcli/internal/transport"
)

const (
	DefaultBuffer = 256
	MinBuffer     = 8
	MaxBuffer     = rxlog.MaxFrame
)

// Interface is one endpoint of the session.
type Interface struct {
	slot   int
	kind   transport.Kind
	rxMode codec.Mode
	txMode codec.Mode
	buffer int
	flags  Flags
	active bool

	cursor Cursor

	tr  transport.Transport
	log *rxlog.Log
}

// New creates the interface for slot with fresh log files in dir. It starts
// as a file interface writing to stdout, active, with default buffer size.
func New(dir string, slot int) (*Interface, error) {
	log, err := rxlog.Create(dir, slot)
	if err != nil {
		return nil, err
	}
	i := &Interface{
		slot:   slot,
		kind:   transport.KindFile,
		buffer: DefaultBuffer,
		log:    log,
	}
	i.tr, _ = transport.New(i.kind, transport.DefaultSettings(i.kind))
	if err := i.tr.Connect(); err != nil {
		_ = log.Close()
		return nil, err
	}
	i.active = true
	if err := i.Persist(); err != nil {
		_ = i.Close()
		return nil, err
	}
	return i, nil
}

// Restore rebuilds the interface for slot from the log files in dir. The
// interface comes back inactive with its cursor at 0; sockets get a fresh
// unconnected handle and memory a fresh buffer, everything else waits for
// an explicit connect. A returned error wrapping api.ErrLogCorruption is a
// warning that accompanies a usable interface.
func Restore(dir string, slot int) (*Interface, error) {
	log, warn := rxlog.Open(dir, slot)
	if log == nil {
		return nil, warn
	}

	i := &Interface{
		slot:   slot,
		kind:   transport.KindFile,
		buffer: DefaultBuffer,
		log:    log,
	}
	var m Meta
	settings := transport.DefaultSettings(i.kind)
	if err := log.DecodeHeader(&m); err != nil {
		warn = multierr.Append(warn, fmt.Errorf("%w: slot %02x header: %v", api.ErrLogCorruption, slot, err))
	} else {
		i.apply(m)
		settings = m.Settings
	}

	tr, err := transport.New(i.kind, settings)
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	i.tr = tr
	if i.kind == transport.KindMemory {
		_ = i.tr.Connect()
	}
	i.cursor = Cursor{Count: log.Count(), Size: log.Size()}
	return i, warn
}

func (i *Interface) Slot() int { return i.slot }
func (i *Interface) Kind() transport.Kind { return i.kind }
func (i *Interface) RxMode() codec.Mode { return i.rxMode }
func (i *Interface) TxMode() codec.Mode { return i.txMode }
func (i *Interface) Buffer() int { return i.buffer }
func (i *Interface) Flags() Flags { return i.flags }
func (i *Interface) Active() bool { return i.active }
func (i *Interface) Cursor() Cursor { return i.cursor }
func (i *Interface) Transport() transport.Transport { return i.tr }
func (i *Interface) Settings() transport.Settings { return i.tr.Settings() }

// Log exposes the receive log for read-only consumers such as the dump
// command.
func (i *Interface) Log() *rxlog.Log { return i.log }

// Paths returns the log file paths of the interface inside dir.
func (i *Interface) Paths(dir string) (index, payload string) {
	return rxlog.Paths(dir, i.slot)
}

// Persist writes the interface description to the log header.
func (i *Interface) Persist() error {
	return i.log.WriteHeader(i.meta())
}

// Connect opens the transport and marks the interface active.
func (i *Interface) Connect() error {
	if err := i.tr.Connect(); err != nil {
		i.active = false
		return err
	}
	i.active = true
	return nil
}

// Disconnect closes the transport. The log and settings are kept.
func (i *Interface) Disconnect() error {
	i.active = false
	return i.tr.Disconnect()
}

// Deactivate is called by the capture loop when a read fails or the peer
// hangs up.
func (i *Interface) Deactivate() error {
	return i.Disconnect()
}

// Pollable returns the readiness source of an active, descriptor-backed
// interface.
func (i *Interface) Pollable() (transport.Pollable, bool) {
	if !i.active || !i.kind.Pollable() || !i.tr.Connected() {
		return nil, false
	}
	p, ok := i.tr.(transport.Pollable)
	return p, ok
}

// ReadSize is the number of bytes the capture loop reads per frame.
func (i *Interface) ReadSize() int {
	if i.buffer > rxlog.MaxFrame {
		return rxlog.MaxFrame
	}
	return i.buffer
}

// Record commits p as a new frame and returns its index.
func (i *Interface) Record(p []byte) (int, error) {
	idx, err := i.log.Append(p)
	if err != nil {
		return 0, err
	}
	i.cursor.Count = i.log.Count()
	i.cursor.Size = i.log.Size()
	return idx, nil
}

// Frame returns frame n of the log.
func (i *Interface) Frame(n int) ([]byte, error) {
	return i.log.Read(n)
}

// Close shuts the transport and the log files.
func (i *Interface) Close() error {
	i.active = false
	var err error
	if i.tr != nil {
		err = multierr.Append(err, i.tr.Disconnect())
	}
	if i.log != nil {
		err = multierr.Append(err, i.log.Close())
	}
	return err
}

// Target describes where the interface points, for listings.
func (i *Interface) Target() string { return i.tr.String() }

// IsCorruption reports whether err only carries log recovery warnings.
func IsCorruption(err error) bool {
	if err == nil {
		return false
	}
	for _, e := range multierr.Errors(err) {
		if !errors.Is(e, api.ErrLogCorruption) {
			return false
		}
	}
	return true
}
