package iface

import (
	"firestige.xyz/ifcli/internal/codec"
	"firestige.xyz/ifcli/internal/transport"
)

const metaVersion = 1

// Meta is the interface description stored in the rx log header and read
// back by reload.
type Meta struct {
	Version  int                `cbor:"version"`
	Slot     int                `cbor:"slot"`
	Kind     string             `cbor:"kind"`
	RxMode   string             `cbor:"rxmode"`
	TxMode   string             `cbor:"txmode"`
	Buffer   int                `cbor:"buffer"`
	Flags    uint8              `cbor:"flags"`
	Settings transport.Settings `cbor:"settings"`
}

func (i *Interface) meta() Meta {
	return Meta{
		Version:  metaVersion,
		Slot:     i.slot,
		Kind:     i.kind.String(),
		RxMode:   i.rxMode.String(),
		TxMode:   i.txMode.String(),
		Buffer:   i.buffer,
		Flags:    uint8(i.flags),
		Settings: i.tr.Settings(),
	}
}

// apply loads m into a fresh interface. Unknown names fall back to defaults
// so that a damaged header still yields a usable interface.
func (i *Interface) apply(m Meta) {
	if k, err := transport.ParseKind(m.Kind); err == nil {
		i.kind = k
	}
	if mode, err := codec.ParseMode(m.RxMode); err == nil {
		i.rxMode = mode
	}
	if mode, err := codec.ParseMode(m.TxMode); err == nil {
		i.txMode = mode
	}
	i.buffer = normalizeBuffer(m.Buffer)
	i.flags = Flags(m.Flags)
}
