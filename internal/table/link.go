package table

import (
	"fmt"
	"strings"

	"firestige.xyz/ifcli/internal/api"
)

// LinkKind selects when a link forwards.
type LinkKind int

const (
	// LinkTie always forwards.
	LinkTie LinkKind = iota
	// LinkExchange forwards only while it is the current selection.
	LinkExchange
)

func (k LinkKind) String() string {
	switch k {
	case LinkTie:
		return "tie"
	case LinkExchange:
		return "exchange"
	}
	return fmt.Sprintf("link(%d)", int(k))
}

func (k LinkKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *LinkKind) UnmarshalText(b []byte) error {
	v, err := ParseLinkKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseLinkKind accepts tie, exchange and ex.
func ParseLinkKind(s string) (LinkKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tie":
		return LinkTie, nil
	case "exchange", "ex":
		return LinkExchange, nil
	}
	return 0, api.ParseError("unknown link kind %q", s)
}

// Link forwards frames received on Rx out through Tx. Both ends are weak
// handles, checked again on every use.
type Link struct {
	slot int
	Kind LinkKind
	Tx   Handle
	Rx   Handle
}

func (l *Link) Slot() int { return l.slot }
func (*Link) entry()      {}

// CreateLink adds a link from rx to tx in the lowest free slot. Both ends
// must be distinct live interfaces.
func (t *Table) CreateLink(kind LinkKind, tx, rx int) (int, error) {
	if tx == rx {
		return 0, fmt.Errorf("%w: tx and rx are both %d", api.ErrInvalidEndpoints, tx)
	}
	if _, err := t.Interface(tx); err != nil {
		return 0, fmt.Errorf("%w: tx: %v", api.ErrInvalidEndpoints, err)
	}
	if _, err := t.Interface(rx); err != nil {
		return 0, fmt.Errorf("%w: rx: %v", api.ErrInvalidEndpoints, err)
	}
	if len(t.free) == 0 {
		return 0, api.ErrFull
	}
	txh, _ := t.Handle(tx)
	rxh, _ := t.Handle(rx)
	slot := t.free[0]
	t.occupy(slot, &Link{slot: slot, Kind: kind, Tx: txh, Rx: rxh})
	return slot, nil
}

// PutLink restores a link at slot during reload, binding it to the current
// occupants of its endpoint slots.
func (t *Table) PutLink(slot int, kind LinkKind, tx, rx int) error {
	if slot < 0 || slot >= Capacity || t.slots[slot].entry != nil {
		return fmt.Errorf("%w: %d", api.ErrInvalidSlot, slot)
	}
	if tx == rx {
		return api.ErrInvalidEndpoints
	}
	txh, err := t.Handle(tx)
	if err != nil {
		return fmt.Errorf("%w: tx: %v", api.ErrInvalidEndpoints, err)
	}
	rxh, err := t.Handle(rx)
	if err != nil {
		return fmt.Errorf("%w: rx: %v", api.ErrInvalidEndpoints, err)
	}
	t.occupy(slot, &Link{slot: slot, Kind: kind, Tx: txh, Rx: rxh})
	return nil
}

// Armed reports whether l forwards right now.
func (t *Table) Armed(l *Link) bool {
	return l.Kind == LinkTie || t.selected == l.slot
}

// Links lists every live link in slot order.
func (t *Table) Links() []*Link {
	var out []*Link
	for _, e := range t.Entries() {
		if l, ok := e.(*Link); ok {
			out = append(out, l)
		}
	}
	return out
}

// ArmedFrom returns the armed links whose rx end is still the interface at
// slot, in slot order. Links whose rx end went stale are skipped.
func (t *Table) ArmedFrom(slot int) []*Link {
	var out []*Link
	for _, l := range t.Links() {
		if l.Rx.Slot != slot || !t.Armed(l) {
			continue
		}
		if _, ok := t.Resolve(l.Rx); !ok {
			continue
		}
		out = append(out, l)
	}
	return out
}
