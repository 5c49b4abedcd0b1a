// Package table is the slot registry shared by interfaces and links.
//
// Slots are allocated lowest-first from a sorted free list. Every slot
// carries a generation that changes whenever its occupant does, so a Handle
// taken earlier can tell that the slot has since been freed or reused.
package table

import (
	"fmt"
	"slices"

	"firestige.xyz/ifcli/internal/api"
	"firestige.xyz/ifcli/internal/iface"
)

// Capacity is the number of slots.
const Capacity = 256

// Handle is a weak reference to a slot's occupant.
type Handle struct {
	Slot int    `yaml:"slot"`
	Gen  uint32 `yaml:"-"`
}

// Entry is a live slot: *InterfaceEntry or *Link.
type Entry interface {
	Slot() int
	entry()
}

// InterfaceEntry holds an interface.
type InterfaceEntry struct {
	slot  int
	Iface *iface.Interface
}

func (e *InterfaceEntry) Slot() int { return e.slot }
func (*InterfaceEntry) entry()      {}

type record struct {
	gen   uint32
	entry Entry
}

// Table is not safe for concurrent use; the session lock guards it.
type Table struct {
	slots    [Capacity]record
	free     []int
	selected int
}

// New returns an empty table with nothing selected.
func New() *Table {
	t := &Table{selected: -1}
	t.free = make([]int, Capacity)
	for i := range t.free {
		t.free[i] = i
	}
	return t
}

// Len returns the number of live entries.
func (t *Table) Len() int { return Capacity - len(t.free) }

// Add stores the interface built by factory in the lowest free slot and
// selects it. The slot is released again if factory fails.
func (t *Table) Add(factory func(slot int) (*iface.Interface, error)) (int, error) {
	if len(t.free) == 0 {
		return 0, api.ErrFull
	}
	slot := t.free[0]
	ifc, err := factory(slot)
	if err != nil {
		return 0, err
	}
	t.occupy(slot, &InterfaceEntry{slot: slot, Iface: ifc})
	t.selected = slot
	return slot, nil
}

// Put stores ifc at its own slot, which must be free. Reload uses it to put
// interfaces back where they were.
func (t *Table) Put(ifc *iface.Interface) error {
	slot := ifc.Slot()
	if slot < 0 || slot >= Capacity {
		return fmt.Errorf("%w: %d", api.ErrInvalidSlot, slot)
	}
	if t.slots[slot].entry != nil {
		return fmt.Errorf("%w: slot %d is taken", api.ErrInvalidSlot, slot)
	}
	t.occupy(slot, &InterfaceEntry{slot: slot, Iface: ifc})
	return nil
}

func (t *Table) occupy(slot int, e Entry) {
	if i, found := slices.BinarySearch(t.free, slot); found {
		t.free = slices.Delete(t.free, i, i+1)
	}
	t.slots[slot].gen++
	t.slots[slot].entry = e
}

// Remove frees slot and returns what it held.
func (t *Table) Remove(slot int) (Entry, error) {
	e, err := t.Get(slot)
	if err != nil {
		return nil, err
	}
	t.slots[slot].gen++
	t.slots[slot].entry = nil
	i, _ := slices.BinarySearch(t.free, slot)
	t.free = slices.Insert(t.free, i, slot)
	if t.selected == slot {
		t.selected = -1
	}
	return e, nil
}

// Reset frees every slot and returns the interfaces that were live, in slot
// order, for the caller to close.
func (t *Table) Reset() []*iface.Interface {
	var out []*iface.Interface
	for _, e := range t.Entries() {
		if ie, ok := e.(*InterfaceEntry); ok {
			out = append(out, ie.Iface)
		}
		_, _ = t.Remove(e.Slot())
	}
	t.selected = -1
	return out
}

// Get returns the entry at slot.
func (t *Table) Get(slot int) (Entry, error) {
	if slot < 0 || slot >= Capacity || t.slots[slot].entry == nil {
		return nil, fmt.Errorf("%w: %d", api.ErrInvalidSlot, slot)
	}
	return t.slots[slot].entry, nil
}

// Interface returns the interface at slot.
func (t *Table) Interface(slot int) (*iface.Interface, error) {
	e, err := t.Get(slot)
	if err != nil {
		return nil, err
	}
	ie, ok := e.(*InterfaceEntry)
	if !ok {
		return nil, fmt.Errorf("%w: slot %d is a link", api.ErrInvalidSlot, slot)
	}
	return ie.Iface, nil
}

// Handle returns a weak reference to the current occupant of slot.
func (t *Table) Handle(slot int) (Handle, error) {
	if _, err := t.Get(slot); err != nil {
		return Handle{}, err
	}
	return Handle{Slot: slot, Gen: t.slots[slot].gen}, nil
}

// Resolve returns the interface h refers to, or false when the slot has
// been freed or reused since h was taken.
func (t *Table) Resolve(h Handle) (*iface.Interface, bool) {
	if h.Slot < 0 || h.Slot >= Capacity || t.slots[h.Slot].gen != h.Gen {
		return nil, false
	}
	ie, ok := t.slots[h.Slot].entry.(*InterfaceEntry)
	if !ok {
		return nil, false
	}
	return ie.Iface, true
}

// Select makes slot the current selection. Selecting an exchange link arms
// it.
func (t *Table) Select(slot int) error {
	if _, err := t.Get(slot); err != nil {
		return err
	}
	t.selected = slot
	return nil
}

// Selected returns the current selection.
func (t *Table) Selected() (int, bool) {
	return t.selected, t.selected >= 0
}

// Entries lists the live entries in slot order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, t.Len())
	for i := range t.slots {
		if e := t.slots[i].entry; e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Interfaces lists the live interfaces in slot order.
func (t *Table) Interfaces() []*iface.Interface {
	var out []*iface.Interface
	for _, e := range t.Entries() {
		if ie, ok := e.(*InterfaceEntry); ok {
			out = append(out, ie.Iface)
		}
	}
	return out
}
