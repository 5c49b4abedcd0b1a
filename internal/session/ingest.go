package session

import (
	"firestige.xyz/ifcli/internal/iface"
)

// Ingest records a captured frame, forwards it through every armed link
// whose rx end is ifc, and bumps the redraw counter. The capture loop calls
// it with the session lock held. Loopback frames recorded on the tx side are
// not forwarded again, so links cannot echo frames around a cycle.
func (s *Session) Ingest(ifc *iface.Interface, frame []byte) {
	if _, err := ifc.Record(frame); err != nil {
		s.log.WithField("slot", ifc.Slot()).WithError(err).Error("frame not recorded")
		return
	}
	for _, l := range s.tbl.ArmedFrom(ifc.Slot()) {
		tx, ok := s.tbl.Resolve(l.Tx)
		if !ok {
			s.log.WithFields(map[string]interface{}{"link": l.Slot(), "tx": l.Tx.Slot}).Warn("link target is gone, frame not forwarded")
			continue
		}
		if _, err := tx.Transmit(frame, s.opts.LineEnding); err != nil {
			s.log.WithFields(map[string]interface{}{"link": l.Slot(), "tx": l.Tx.Slot}).WithError(err).Warn("forward failed")
			continue
		}
		s.notifyAsync(tx)
	}
	s.notifyAsync(ifc)
}

func (s *Session) notifyAsync(ifc *iface.Interface) {
	if ifc.Flags().Has(iface.FlagAsync) {
		s.notify.Bump()
	}
}

// trackAsync starts or stops tracking which of ifc's frames the console
// has shown. Caller holds the lock.
func (s *Session) trackAsync(ifc *iface.Interface) {
	h, err := s.tbl.Handle(ifc.Slot())
	if err != nil {
		return
	}
	if !ifc.Flags().Has(iface.FlagAsync) {
		delete(s.shown, h)
		return
	}
	if _, ok := s.shown[h]; !ok {
		s.shown[h] = ifc.Cursor().Count
	}
}

// PendingAsync returns the frames recorded on async interfaces since the
// last call, oldest first per interface.
func (s *Session) PendingAsync() []Frame {
	s.notify.Drain()

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Frame
	for _, ifc := range s.tbl.Interfaces() {
		if !ifc.Flags().Has(iface.FlagAsync) {
			continue
		}
		h, err := s.tbl.Handle(ifc.Slot())
		if err != nil {
			continue
		}
		count := ifc.Cursor().Count
		from, ok := s.shown[h]
		if !ok {
			from = count
		}
		for i := from; i < count; i++ {
			data, err := ifc.Frame(i)
			if err != nil {
				break
			}
			out = append(out, Frame{Slot: ifc.Slot(), Index: i, Mode: ifc.RxMode(), Data: data})
		}
		s.shown[h] = count
	}
	return out
}
