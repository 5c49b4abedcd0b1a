package session

import (
	"fmt"

	"firestige.xyz/ifcli/internal/api"
	"firestige.xyz/ifcli/internal/codec"
	"firestige.xyz/ifcli/internal/iface"
	"firestige.xyz/ifcli/internal/table"
	"firestige.xyz/ifcli/internal/transport"
)

// Add creates a file interface on stdout in the lowest free slot and
// selects it.
func (s *Session) Add() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, err := s.tbl.Add(func(slot int) (*iface.Interface, error) {
		return iface.New(s.dir, slot)
	})
	if err != nil {
		return 0, err
	}
	s.persist()
	s.log.WithField("slot", slot).Debug("interface added")
	return slot, nil
}

// Select makes slot current. Selecting an exchange link arms it.
func (s *Session) Select(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tbl.Select(slot); err != nil {
		return err
	}
	s.persist()
	return nil
}

// Selected returns the current slot.
func (s *Session) Selected() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tbl.Selected()
}

// Configure sets one key on the interface at slot.
func (s *Session) Configure(slot int, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, err := s.tbl.Interface(slot)
	if err != nil {
		return err
	}
	defer s.trackAsync(ifc)
	return ifc.Configure(key, value)
}

// SetFlag turns a named flag on or off.
func (s *Session) SetFlag(slot int, name string, on bool) error {
	f, err := iface.ParseFlag(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, err := s.tbl.Interface(slot)
	if err != nil {
		return err
	}
	defer s.trackAsync(ifc)
	return ifc.SetFlag(f, on)
}

// ToggleFlag flips a named flag and returns its new state.
func (s *Session) ToggleFlag(slot int, name string) (bool, error) {
	f, err := iface.ParseFlag(name)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, err := s.tbl.Interface(slot)
	if err != nil {
		return false, err
	}
	defer s.trackAsync(ifc)
	return ifc.ToggleFlag(f)
}

// Connect opens the transport at slot: dials a socket, opens a serial line
// or file, or starts a process.
func (s *Session) Connect(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, err := s.tbl.Interface(slot)
	if err != nil {
		return err
	}
	if err := ifc.Connect(); err != nil {
		return err
	}
	s.log.WithFields(map[string]interface{}{"slot": slot, "target": ifc.Target()}).Info("connected")
	return nil
}

// Disconnect closes the transport at slot; the log is kept.
func (s *Session) Disconnect(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, err := s.tbl.Interface(slot)
	if err != nil {
		return err
	}
	return ifc.Disconnect()
}

// CreateLink adds a tie or exchange forwarding rx's frames to tx.
func (s *Session) CreateLink(kind table.LinkKind, tx, rx int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, err := s.tbl.CreateLink(kind, tx, rx)
	if err != nil {
		return 0, err
	}
	s.persist()
	s.log.WithFields(map[string]interface{}{"slot": slot, "kind": kind, "tx": tx, "rx": rx}).Info("link created")
	return slot, nil
}

// NavKind selects how Navigate moves the cursor.
type NavKind int

const (
	NavRelative NavKind = iota
	NavAbsolute
	NavHead
	NavTail
	NavLast
)

// Nav is a cursor movement.
type Nav struct {
	Kind  NavKind
	Delta int // offset for NavRelative, position for NavAbsolute
}

// Navigate moves the replay cursor of the interface at slot and returns the
// new position. On a link slot the rx end's cursor moves.
func (s *Session) Navigate(slot int, nav Nav) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, err := s.endpoint(slot, false)
	if err != nil {
		return 0, err
	}
	switch nav.Kind {
	case NavRelative:
		return ifc.Move(nav.Delta), nil
	case NavAbsolute:
		return ifc.Seek(nav.Delta), nil
	case NavHead:
		return ifc.Head(), nil
	case NavTail:
		return ifc.Tail(), nil
	case NavLast:
		return ifc.Back(), nil
	}
	return 0, api.ParseError("unknown navigation %d", nav.Kind)
}

// Frame is one recorded frame with what is needed to show it.
type Frame struct {
	Slot  int
	Index int
	Mode  codec.Mode
	Data  []byte
}

// Peek reads the frame under the cursor of slot and, when advance is set,
// moves the cursor past it. On a link slot the rx end is read.
func (s *Session) Peek(slot int, advance bool) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, err := s.endpoint(slot, false)
	if err != nil {
		return Frame{}, err
	}
	pos := ifc.Cursor().Rx
	data, err := ifc.Peek()
	if err != nil {
		return Frame{}, err
	}
	if advance {
		ifc.Move(1)
	}
	return Frame{Slot: ifc.Slot(), Index: pos, Mode: ifc.RxMode(), Data: data}, nil
}

// Cursor reports the replay cursor of slot, or of a link's rx end.
func (s *Session) Cursor(slot int) (iface.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, err := s.endpoint(slot, false)
	if err != nil {
		return iface.Cursor{}, err
	}
	return ifc.Cursor(), nil
}

// endpoint resolves slot to an interface: the interface itself, or the tx
// (or rx) end of a link.
func (s *Session) endpoint(slot int, tx bool) (*iface.Interface, error) {
	e, err := s.tbl.Get(slot)
	if err != nil {
		return nil, err
	}
	switch e := e.(type) {
	case *table.InterfaceEntry:
		return e.Iface, nil
	case *table.Link:
		h, end := e.Rx, "rx"
		if tx {
			h, end = e.Tx, "tx"
		}
		ifc, ok := s.tbl.Resolve(h)
		if !ok {
			return nil, fmt.Errorf("%w: link %d %s end %d is gone", api.ErrInvalidEndpoints, slot, end, h.Slot)
		}
		return ifc, nil
	}
	return nil, fmt.Errorf("%w: %d", api.ErrInvalidSlot, slot)
}

// Transmit sends data out of slot and returns the loopback frame index.
func (s *Session) Transmit(slot int, data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, err := s.endpoint(slot, true)
	if err != nil {
		return 0, err
	}
	idx, err := ifc.Transmit(data, s.opts.LineEnding)
	if err != nil {
		return 0, err
	}
	s.notifyAsync(ifc)
	return idx, nil
}

// Flush sends a bare CR LF out of slot.
func (s *Session) Flush(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ifc, err := s.endpoint(slot, true)
	if err != nil {
		return err
	}
	le := s.opts.LineEnding
	if _, err := ifc.WriteRaw([]byte{le.CR, le.LF}); err != nil {
		return err
	}
	s.notifyAsync(ifc)
	return nil
}

// Row is one line of a listing.
type Row struct {
	Slot     int
	Selected bool

	// Interfaces.
	Kind   transport.Kind
	Target string
	Active bool
	RxMode codec.Mode
	TxMode codec.Mode
	Buffer int
	Flags  iface.Flags
	Cursor iface.Cursor

	// Links.
	IsLink   bool
	LinkKind table.LinkKind
	Tx, Rx   int
	Armed    bool
	Stale    bool
}

func (s *Session) row(e table.Entry) Row {
	sel, ok := s.tbl.Selected()
	r := Row{Slot: e.Slot(), Selected: ok && sel == e.Slot()}
	switch e := e.(type) {
	case *table.InterfaceEntry:
		ifc := e.Iface
		r.Kind, r.Target, r.Active = ifc.Kind(), ifc.Target(), ifc.Active()
		r.RxMode, r.TxMode = ifc.RxMode(), ifc.TxMode()
		r.Buffer, r.Flags, r.Cursor = ifc.Buffer(), ifc.Flags(), ifc.Cursor()
	case *table.Link:
		r.IsLink, r.LinkKind = true, e.Kind
		r.Tx, r.Rx = e.Tx.Slot, e.Rx.Slot
		r.Armed = s.tbl.Armed(e)
		_, txOK := s.tbl.Resolve(e.Tx)
		_, rxOK := s.tbl.Resolve(e.Rx)
		r.Stale = !txOK || !rxOK
	}
	return r
}

// List returns every live slot in order.
func (s *Session) List() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.tbl.Entries()
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, s.row(e))
	}
	return rows
}

// Status describes one slot.
func (s *Session) Status(slot int) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.tbl.Get(slot)
	if err != nil {
		return Row{}, err
	}
	return s.row(e), nil
}
