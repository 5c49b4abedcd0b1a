package iface

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"firestige.xyz/ifcli/internal/api"
	"firestige.xyz/ifcli/internal/codec"
	"firestige.xyz/ifcli/internal/transport"
)

// Keys lists the configuration keys in display order.
var Keys = []string{"type", "ipaddr", "ipport", "devname", "buffer", "rxmode", "txmode", "baud", "async", "alf", "acr", "as"}

// Configure sets key to value. Keys that do not apply to the interface type
// fail with api.ErrParse and change nothing. A successful change is written
// to the log header before returning.
func (i *Interface) Configure(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	var err error
	switch key {
	case "type":
		var k transport.Kind
		if k, err = transport.ParseKind(value); err == nil {
			err = i.SetKind(k)
		}
	case "ipaddr":
		err = i.setAddr(value)
	case "ipport":
		err = i.setPort(value)
	case "devname":
		err = i.setDevice(value)
	case "baud":
		err = i.setBaud(value)
	case "buffer":
		var n int
		if n, err = strconv.Atoi(value); err != nil {
			return api.ParseError("buffer %q is not a number", value)
		}
		i.buffer = normalizeBuffer(n)
	case "rxmode", "txmode":
		var m codec.Mode
		if m, err = codec.ParseMode(value); err != nil {
			return err
		}
		if key == "rxmode" {
			i.rxMode = m
		} else {
			i.txMode = m
		}
	default:
		f, ferr := ParseFlag(key)
		if ferr != nil {
			return api.ParseError("%q unknown for target interface", key)
		}
		var on bool
		if on, err = ParseSwitch(value); err != nil {
			return err
		}
		i.setFlag(f, on)
	}
	// A transport failure still leaves a changed interface behind.
	if err != nil && !errors.Is(err, api.ErrTransport) {
		return err
	}
	if perr := i.Persist(); perr != nil {
		return perr
	}
	return err
}

// SetFlag turns f on or off and persists the change.
func (i *Interface) SetFlag(f Flags, on bool) error {
	i.setFlag(f, on)
	return i.Persist()
}

// ToggleFlag flips f, persists, and returns the new state.
func (i *Interface) ToggleFlag(f Flags) (bool, error) {
	on := !i.flags.Has(f)
	return on, i.SetFlag(f, on)
}

func (i *Interface) setFlag(f Flags, on bool) {
	if on {
		i.flags |= f
	} else {
		i.flags &^= f
	}
}

// SetKind replaces the transport with a new one of kind k at that kind's
// default endpoint. Files and memory are opened right away; the others wait
// for Connect. The old handle is closed even if opening the new one fails.
func (i *Interface) SetKind(k transport.Kind) error {
	tr, err := transport.New(k, transport.DefaultSettings(k))
	if err != nil {
		return err
	}
	closeErr := i.tr.Disconnect()
	i.tr = tr
	i.kind = k
	i.active = false
	if k.AutoConnect() {
		if err := i.Connect(); err != nil {
			return err
		}
	}
	if closeErr != nil {
		return closeErr
	}
	return nil
}

func (i *Interface) update(fn func(*transport.Settings)) error {
	s := i.tr.Settings()
	fn(&s)
	err := i.tr.Update(s)
	if !i.tr.Connected() {
		i.active = false
	}
	return err
}

func (i *Interface) setAddr(v string) error {
	if !i.kind.IP() {
		return api.ParseError("ipaddr unknown for target interface")
	}
	if v == "" || strings.ContainsAny(v, " /") {
		return api.ParseError("invalid address %q", v)
	}
	if ip := net.ParseIP(v); ip != nil {
		v = ip.String()
	}
	return i.update(func(s *transport.Settings) { s.Addr = v })
}

func (i *Interface) setPort(v string) error {
	if !i.kind.IP() {
		return api.ParseError("ipport unknown for target interface")
	}
	port, err := strconv.Atoi(v)
	if err != nil || port <= 0 || port > 65535 {
		return api.ParseError("invalid port %q", v)
	}
	return i.update(func(s *transport.Settings) { s.Port = port })
}

func (i *Interface) setDevice(v string) error {
	if !i.kind.Device() {
		return api.ParseError("devname unknown for target interface")
	}
	if v == "" {
		return api.ParseError("devname needs a value")
	}
	return i.update(func(s *transport.Settings) { s.Device = v })
}

func (i *Interface) setBaud(v string) error {
	if i.kind != transport.KindSerial {
		return api.ParseError("baud unknown for target interface")
	}
	rate, err := strconv.Atoi(v)
	if err != nil || !transport.SupportedBaud(rate) {
		return api.ParseError("unsupported baud rate %q", v)
	}
	return i.update(func(s *transport.Settings) { s.Baud = rate })
}

func normalizeBuffer(n int) int {
	switch {
	case n < MinBuffer:
		return DefaultBuffer
	case n > MaxBuffer:
		return MaxBuffer
	}
	return n
}
