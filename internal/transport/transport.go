// Package transport implements the byte transports an interface can be bound
// to. Descriptor-backed transports (tcp, udp, serial, exec) also implement
// Pollable so the capture loop can wait on them.
package transport

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	"firestige.xyz/ifcli/internal/api"
)

// Kind is the transport type of an interface.
type Kind int

const (
	KindFile Kind = iota
	KindTCP
	KindUDP
	KindSerial
	KindExec
	KindMemory
)

var kindNames = map[Kind]string{
	KindFile:   "file",
	KindTCP:    "tcp",
	KindUDP:    "udp",
	KindSerial: "serial",
	KindExec:   "exec",
	KindMemory: "memory",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k names a known transport.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Pollable reports whether the kind is backed by a descriptor the capture
// loop should wait on.
func (k Kind) Pollable() bool {
	switch k {
	case KindTCP, KindUDP, KindSerial, KindExec:
		return true
	}
	return false
}

// IP reports whether ipaddr and ipport apply to the kind.
func (k Kind) IP() bool { return k == KindTCP || k == KindUDP }

// Device reports whether devname applies to the kind.
func (k Kind) Device() bool {
	return k == KindFile || k == KindExec || k == KindSerial
}

// AutoConnect reports whether a transport of this kind is opened as soon as
// the kind is assigned.
func (k Kind) AutoConnect() bool { return k == KindFile || k == KindMemory }

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, api.ParseError("unknown interface type %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseKind accepts the long names plus the short aliases ser, fp, bin and
// mem.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp":
		return KindTCP, nil
	case "udp":
		return KindUDP, nil
	case "serial", "ser":
		return KindSerial, nil
	case "file", "fp":
		return KindFile, nil
	case "exec", "bin":
		return KindExec, nil
	case "memory", "mem":
		return KindMemory, nil
	}
	return 0, api.ParseError("unknown interface type %q", s)
}

// Settings are the endpoint parameters of a transport. Only the fields that
// apply to the kind are used.
type Settings struct {
	Addr   string `cbor:"addr,omitempty" yaml:"addr,omitempty"`
	Port   int    `cbor:"port,omitempty" yaml:"port,omitempty"`
	Device string `cbor:"device,omitempty" yaml:"device,omitempty"`
	Baud   int    `cbor:"baud,omitempty" yaml:"baud,omitempty"`
}

const (
	DefaultAddr   = "127.0.0.1"
	DefaultPort   = 80
	DefaultDevice = "/dev/ttyS0"
	DefaultBaud   = 9600
	DefaultExec   = "cat"

	// StdoutName is the file device name that targets the process's
	// standard output instead of a path.
	StdoutName = "stdout"
)

// DialTimeout bounds tcp connection attempts.
var DialTimeout = 5 * time.Second

// DefaultSettings returns the endpoint a freshly typed interface starts with.
func DefaultSettings(k Kind) Settings {
	switch k {
	case KindTCP, KindUDP:
		return Settings{Addr: DefaultAddr, Port: DefaultPort}
	case KindSerial:
		return Settings{Device: DefaultDevice, Baud: DefaultBaud}
	case KindExec:
		return Settings{Device: DefaultExec}
	case KindFile:
		return Settings{Device: StdoutName}
	}
	return Settings{}
}

// Transport is an interface's write path and connection state. A Transport
// is not safe for concurrent use; the session lock serializes access.
type Transport interface {
	Kind() Kind
	Settings() Settings
	// Update replaces the endpoint settings. Sockets, serial lines and
	// processes pick them up on the next Connect; an open file is reopened.
	Update(s Settings) error
	Connect() error
	Disconnect() error
	Connected() bool
	Write(p []byte) (int, error)
	String() string
}

// Pollable is implemented by descriptor-backed transports while connected.
type Pollable interface {
	SyscallConn() (syscall.RawConn, error)
}

// New returns an unconnected transport of kind k.
func New(k Kind, s Settings) (Transport, error) {
	switch k {
	case KindTCP, KindUDP:
		return &socket{kind: k, settings: s}, nil
	case KindSerial:
		return &serial{settings: s}, nil
	case KindFile:
		return &file{settings: s}, nil
	case KindExec:
		return &process{settings: s}, nil
	case KindMemory:
		return &Memory{}, nil
	}
	return nil, api.ParseError("unknown interface type %d", int(k))
}

func notConnected(t Transport) error {
	return fmt.Errorf("%w: %s is not connected", api.ErrTransport, t)
}
